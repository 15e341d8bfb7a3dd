package routing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sevigo/metroid/internal/core"
)

// ConnectionSchemes lists the accepted prefixes of a subscription's connection target.
var ConnectionSchemes = []string{"nats://", "tls://"}

// ErrNoHandler is returned when no handler rule can serve a subject.
var ErrNoHandler = errors.New("no handler found")

// JobResolver reports whether a job key has a registered implementation.
type JobResolver interface {
	Has(key string) bool
}

// ConfigError describes an invalid subscription or handler definition.
type ConfigError struct {
	Field string
	Value string
	Msg   string
	Err   error
}

func (e *ConfigError) Error() string {
	s := fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Msg)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Route is the outcome of a successful match.
type Route struct {
	Rule  Rule
	Index int
}

type subscriptionKey struct {
	topic        string
	subscription string
}

// Registry is the validated, read-only mapping from a subscription to its
// ordered handler rules.
type Registry struct {
	subs  []core.SubscriptionConfig
	rules map[subscriptionKey][]Rule
}

// NewRegistry validates every subscription and compiles its handler rules.
// Any violation is returned as a *ConfigError naming the offending field.
func NewRegistry(subs []core.SubscriptionConfig, jobs JobResolver) (*Registry, error) {
	reg := &Registry{
		subs:  make([]core.SubscriptionConfig, 0, len(subs)),
		rules: make(map[subscriptionKey][]Rule, len(subs)),
	}

	for i, sub := range subs {
		if err := validateSubscription(i, sub); err != nil {
			return nil, err
		}
		key := subscriptionKey{topic: sub.TopicName, subscription: sub.SubscriptionName}
		if _, dup := reg.rules[key]; dup {
			return nil, &ConfigError{
				Field: fmt.Sprintf("subscriptions[%d].subscription_name", i),
				Value: sub.SubscriptionName,
				Msg:   "duplicate subscription for topic " + sub.TopicName,
			}
		}

		rules := make([]Rule, 0, len(sub.Handlers))
		for j, h := range sub.Handlers {
			field := fmt.Sprintf("subscriptions[%d].handlers[%d]", i, j)
			if h.Subject == "" {
				return nil, &ConfigError{Field: field + ".subject", Msg: "must not be empty"}
			}
			if jobs != nil && !jobs.Has(h.Job) {
				return nil, &ConfigError{Field: field + ".job", Value: h.Job, Msg: "no job registered under this key"}
			}
			rule, err := NewRule(h)
			if err != nil {
				return nil, &ConfigError{Field: field + ".subject", Value: h.Subject, Msg: "pattern does not compile", Err: err}
			}
			rules = append(rules, rule)
		}

		reg.rules[key] = rules
		reg.subs = append(reg.subs, sub)
	}
	return reg, nil
}

func validateSubscription(i int, sub core.SubscriptionConfig) error {
	prefix := fmt.Sprintf("subscriptions[%d]", i)
	if sub.TopicName == "" {
		return &ConfigError{Field: prefix + ".topic_name", Msg: "must not be empty"}
	}
	if sub.SubscriptionName == "" {
		return &ConfigError{Field: prefix + ".subscription_name", Msg: "must not be empty"}
	}
	if sub.ConnectionTarget == "" {
		return &ConfigError{Field: prefix + ".connection_target", Msg: "must not be empty"}
	}
	for _, scheme := range ConnectionSchemes {
		if strings.HasPrefix(sub.ConnectionTarget, scheme) {
			return nil
		}
	}
	return &ConfigError{
		Field: prefix + ".connection_target",
		Value: sub.ConnectionTarget,
		Msg:   "must start with one of " + strings.Join(ConnectionSchemes, ", "),
	}
}

// Subscriptions returns the validated subscriptions in configuration order.
func (r *Registry) Subscriptions() []core.SubscriptionConfig {
	return r.subs
}

// Handlers returns the ordered rules for a subscription, or nil if none are configured.
func (r *Registry) Handlers(topicName, subscriptionName string) []Rule {
	return r.rules[subscriptionKey{topic: topicName, subscription: subscriptionName}]
}

// Route returns the first rule, in configuration order, that matches subject.
func (r *Registry) Route(topicName, subscriptionName, subject string) (Route, bool, error) {
	return FirstMatch(r.Handlers(topicName, subscriptionName), subject)
}

// FirstMatch evaluates rules in order and returns the first match.
func FirstMatch(rules []Rule, subject string) (Route, bool, error) {
	for i, rule := range rules {
		ok, err := Match(rule, subject)
		if err != nil {
			return Route{}, false, err
		}
		if ok {
			return Route{Rule: rule, Index: i}, true, nil
		}
	}
	return Route{}, false, nil
}

// LookupBySubject finds the rule a failed record was dispatched through.
// Records store the rule's own subject, so an exact match is tried first;
// a rule matching the subject as a message subject is the fallback.
func (r *Registry) LookupBySubject(topicName, subscriptionName, subject string) (Rule, bool) {
	rules := r.Handlers(topicName, subscriptionName)
	for _, rule := range rules {
		if rule.Subject == subject {
			return rule, true
		}
	}
	route, ok, err := FirstMatch(rules, subject)
	if err != nil || !ok {
		return Rule{}, false
	}
	return route.Rule, true
}
