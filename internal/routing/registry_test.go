package routing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/metroid/internal/core"
)

type jobSet map[string]struct{}

func (s jobSet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

var knownJobs = jobSet{"orders": {}, "invoices": {}, "catch-all": {}}

func validSubscription() core.SubscriptionConfig {
	return core.SubscriptionConfig{
		TopicName:        "T1",
		SubscriptionName: "S1",
		ConnectionTarget: "nats://localhost:4222",
		Handlers: []core.HandlerRule{
			{Subject: "Order.Created", Job: "orders"},
		},
	}
}

func TestNewRegistry_Validation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(s *core.SubscriptionConfig)
		wantField string
	}{
		{"empty topic", func(s *core.SubscriptionConfig) { s.TopicName = "" }, "subscriptions[0].topic_name"},
		{"empty subscription", func(s *core.SubscriptionConfig) { s.SubscriptionName = "" }, "subscriptions[0].subscription_name"},
		{"empty connection target", func(s *core.SubscriptionConfig) { s.ConnectionTarget = "" }, "subscriptions[0].connection_target"},
		{"wrong scheme", func(s *core.SubscriptionConfig) { s.ConnectionTarget = "Endpoint=sb://example" }, "subscriptions[0].connection_target"},
		{"empty subject", func(s *core.SubscriptionConfig) { s.Handlers[0].Subject = "" }, "subscriptions[0].handlers[0].subject"},
		{"unknown job", func(s *core.SubscriptionConfig) { s.Handlers[0].Job = "missing" }, "subscriptions[0].handlers[0].job"},
		{"invalid pattern", func(s *core.SubscriptionConfig) {
			s.Handlers[0].Subject = "tests/invalid["
			s.Handlers[0].IsPattern = true
		}, "subscriptions[0].handlers[0].subject"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := validSubscription()
			tt.mutate(&sub)

			_, err := NewRegistry([]core.SubscriptionConfig{sub}, knownJobs)
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.wantField, cfgErr.Field)
			assert.Contains(t, err.Error(), tt.wantField)
		})
	}
}

func TestNewRegistry_DuplicateSubscription(t *testing.T) {
	_, err := NewRegistry([]core.SubscriptionConfig{validSubscription(), validSubscription()}, knownJobs)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "subscriptions[1].subscription_name", cfgErr.Field)
}

func TestNewRegistry_AcceptsTLSScheme(t *testing.T) {
	sub := validSubscription()
	sub.ConnectionTarget = "tls://broker.internal:4222"
	_, err := NewRegistry([]core.SubscriptionConfig{sub}, knownJobs)
	require.NoError(t, err)
}

func TestRegistry_Route(t *testing.T) {
	sub := validSubscription()
	sub.Handlers = []core.HandlerRule{
		{Subject: `^Order\..*$`, IsPattern: true, Job: "orders"},
		{Subject: "Order.Created", Job: "catch-all"},
		{Subject: `^Invoice/.*$`, IsPattern: true, Job: "invoices"},
	}
	reg, err := NewRegistry([]core.SubscriptionConfig{sub}, knownJobs)
	require.NoError(t, err)

	t.Run("first match wins over later exact match", func(t *testing.T) {
		route, ok, err := reg.Route("T1", "S1", "Order.Created")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "orders", route.Rule.Job)
		assert.Equal(t, 0, route.Index)
	})

	t.Run("pattern match", func(t *testing.T) {
		route, ok, err := reg.Route("T1", "S1", "Invoice/Paid")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "invoices", route.Rule.Job)
	})

	t.Run("no match", func(t *testing.T) {
		_, ok, err := reg.Route("T1", "S1", "invoice/Paid")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown subscription has no handlers", func(t *testing.T) {
		assert.Empty(t, reg.Handlers("T1", "other"))
		_, ok, err := reg.Route("T1", "other", "Order.Created")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestRegistry_LookupBySubject(t *testing.T) {
	sub := validSubscription()
	sub.Handlers = []core.HandlerRule{
		{Subject: `^Invoice/.*$`, IsPattern: true, Job: "invoices"},
		{Subject: "Order.Created", Job: "orders"},
	}
	reg, err := NewRegistry([]core.SubscriptionConfig{sub}, knownJobs)
	require.NoError(t, err)

	rule, ok := reg.LookupBySubject("T1", "S1", `^Invoice/.*$`)
	require.True(t, ok)
	assert.Equal(t, "invoices", rule.Job)

	rule, ok = reg.LookupBySubject("T1", "S1", "Invoice/Paid")
	require.True(t, ok)
	assert.Equal(t, "invoices", rule.Job)

	_, ok = reg.LookupBySubject("T1", "S1", "Unknown")
	assert.False(t, ok)

	_, ok = reg.LookupBySubject("other", "S1", "Order.Created")
	assert.False(t, ok)
}

func TestNewRegistry_Empty(t *testing.T) {
	reg, err := NewRegistry(nil, knownJobs)
	require.NoError(t, err)
	assert.Empty(t, reg.Subscriptions())
}
