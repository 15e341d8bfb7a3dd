package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sevigo/metroid/internal/core"
)

var (
	ErrConfigNotFound = errors.New("subscriptions file not found")
	ErrConfigParsing  = errors.New("subscriptions file parsing failed")
)

// SubscriptionsFile is the structure of the subscriptions YAML file.
type SubscriptionsFile struct {
	Subscriptions []core.SubscriptionConfig `yaml:"subscriptions"`
	Publish       []core.TopicPublishConfig `yaml:"publish"`
}

// LoadSubscriptions reads and strictly parses the subscriptions file at path.
// Unknown fields and values of the wrong type are reported with their line.
func LoadSubscriptions(path string) (*SubscriptionsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseSubscriptions(data)
}

// ParseSubscriptions strictly decodes a subscriptions document.
func ParseSubscriptions(data []byte) (*SubscriptionsFile, error) {
	file := &SubscriptionsFile{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(file); err != nil {
		if errors.Is(err, io.EOF) {
			return file, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrConfigParsing, err)
	}
	return file, nil
}
