package main

import (
	"github.com/sevigo/metroid/internal/core"
	"github.com/sevigo/metroid/internal/failures"
	"github.com/sevigo/metroid/internal/publish"
)

// Indicates that the application services have been initialized.
type servicesReadyMsg struct {
	svc *services
	err error
}

type failedListedMsg struct {
	records []*core.FailedMessage
}

type failedShownMsg struct {
	record *core.FailedMessage
}

type retriedMsg struct {
	id     int64
	result failures.RetryResult
	err    error
}

type deletedMsg struct{ id int64 }

type republishedMsg struct{ report publish.RetryReport }

// A generic error message for reporting failures from commands.
type errorMsg struct{ err error }

func (e errorMsg) Error() string {
	return e.err.Error()
}
