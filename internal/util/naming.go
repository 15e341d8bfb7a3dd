package util

import (
	"regexp"
)

// Characters JetStream rejects in stream and consumer names.
var brokerNameRegexp = regexp.MustCompile(`[\s.*>/\\\x00-\x1f\x7f]`)

const maxBrokerNameLength = 255

// SafeBrokerName replaces every character the broker rejects in a name
// with '_' and caps the result at the broker's name length limit.
func SafeBrokerName(name string) string {
	safe := brokerNameRegexp.ReplaceAllString(name, "_")
	if len(safe) > maxBrokerNameLength {
		safe = safe[:maxBrokerNameLength]
	}
	return safe
}
