package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sevigo/metroid/internal/server/handler"
	"github.com/sevigo/metroid/internal/wire"
)

// services is what the console needs from the application.
type services struct {
	failed    handler.FailedMessageService
	publisher handler.Publisher
	// stop drains queued jobs and releases the application's resources.
	stop func()
}

func initializeServicesCmd() tea.Cmd {
	return func() tea.Msg {
		a, cleanup, err := wire.InitializeApp(context.Background())
		if err != nil {
			return servicesReadyMsg{err: fmt.Errorf("failed to initialize app services: %w", err)}
		}
		return servicesReadyMsg{svc: &services{
			failed:    a.FailedMessages,
			publisher: a.Publisher,
			stop: func() {
				_ = a.Stop()
				cleanup()
			},
		}}
	}
}

func listFailedCmd(svc *services, limit int) tea.Cmd {
	return func() tea.Msg {
		records, err := svc.failed.List(context.Background(), limit)
		if err != nil {
			return errorMsg{err}
		}
		return failedListedMsg{records: records}
	}
}

func showFailedCmd(svc *services, id int64) tea.Cmd {
	return func() tea.Msg {
		record, err := svc.failed.Get(context.Background(), id)
		if err != nil {
			return errorMsg{err}
		}
		return failedShownMsg{record: record}
	}
}

func retryFailedCmd(svc *services, id int64) tea.Cmd {
	return func() tea.Msg {
		result, err := svc.failed.Retry(context.Background(), id)
		return retriedMsg{id: id, result: result, err: err}
	}
}

func deleteFailedCmd(svc *services, id int64) tea.Cmd {
	return func() tea.Msg {
		if err := svc.failed.Delete(context.Background(), id); err != nil {
			return errorMsg{err}
		}
		return deletedMsg{id: id}
	}
}

func republishCmd(svc *services) tea.Cmd {
	return func() tea.Msg {
		report, err := svc.publisher.RetryFailed(context.Background())
		if err != nil {
			return errorMsg{err}
		}
		return republishedMsg{report: report}
	}
}
