package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/metroid/internal/config"
	"github.com/sevigo/metroid/internal/jobs"
	"github.com/sevigo/metroid/internal/logger"
	"github.com/sevigo/metroid/internal/publish"
	"github.com/sevigo/metroid/internal/routing"
	"github.com/sevigo/metroid/internal/server"
	"github.com/sevigo/metroid/internal/subscriber"
)

type endingLoop struct{ err error }

func (l endingLoop) Run(context.Context) error { return l.err }
func (endingLoop) TopicName() string           { return "T1" }
func (endingLoop) SubscriptionName() string    { return "S1" }

func newTestApp(t *testing.T, cfg *config.Config, loops []subscriber.Loop) *App {
	t.Helper()
	log := logger.Discard()

	routes, err := routing.NewRegistry(nil, jobs.NewRegistry())
	require.NoError(t, err)

	dispatcher := jobs.NewDispatcher(cfg.Jobs, jobs.NewRegistry(), nil, nil, log)
	publisher := publish.NewClient(cfg.Publish, cfg, nil, nil, log)
	srv := server.NewServer(context.Background(), cfg, server.Dependencies{}, log)

	return NewApp(cfg, nil, routes, nil, publisher, srv, subscriber.NewSupervisor(loops, log), dispatcher, log)
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "0", Enabled: true},
		Jobs:   config.JobsConfig{MaxWorkers: 1, QueueSize: 1, SubmitTimeout: time.Second},
	}
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	a := newTestApp(t, testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.NoError(t, a.Stop())
}

func TestApp_RunFailsWhenSubscriptionEnds(t *testing.T) {
	a := newTestApp(t, testConfig(), []subscriber.Loop{endingLoop{err: errors.New("dispatcher outage")}})

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()

	select {
	case err := <-done:
		var ended *subscriber.RunnerEndedError
		require.ErrorAs(t, err, &ended)
		assert.Equal(t, "T1", ended.TopicName)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.NoError(t, a.Stop())
}
