// Package routing decides which handler job processes a message, based on the
// subject carried in the message body.
package routing

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/sevigo/metroid/internal/core"
)

// ErrInvalidPattern is returned when a pattern-mode subject is not a valid regular expression.
var ErrInvalidPattern = errors.New("invalid subject pattern")

// Rule is a HandlerRule with its pattern compiled once at load time.
// A Rule is immutable and safe for concurrent use.
type Rule struct {
	core.HandlerRule
	re *regexp.Regexp
}

// NewRule compiles the rule's pattern when the rule is in pattern mode.
func NewRule(h core.HandlerRule) (Rule, error) {
	r := Rule{HandlerRule: h}
	if !h.IsPattern {
		return r, nil
	}
	re, err := compileAnchored(h.Subject)
	if err != nil {
		return Rule{}, err
	}
	r.re = re
	return r, nil
}

// Match reports whether subject is selected by rule.
// Literal rules compare bytes; pattern rules must match the entire subject.
// Matching is case-sensitive.
func Match(rule Rule, subject string) (bool, error) {
	if !rule.IsPattern {
		return rule.Subject == subject, nil
	}
	re := rule.re
	if re == nil {
		// Rules built without NewRule carry no compiled form.
		var err error
		if re, err = compileAnchored(rule.Subject); err != nil {
			return false, err
		}
	}
	return re.MatchString(subject), nil
}

// Matches is a convenience wrapper around Match.
func (r Rule) Matches(subject string) (bool, error) {
	return Match(r, subject)
}

func compileAnchored(pattern string) (*regexp.Regexp, error) {
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPattern, pattern, err)
	}
	return regexp.MustCompile(`^(?:` + pattern + `)$`), nil
}
