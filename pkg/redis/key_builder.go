package redis

import "fmt"

// Tracker key names, before the environment prefix is applied
const (
	KeyPresenceSessions = "presence:sessions"
	KeyVisitorTotal     = "visitor:total"
	KeyVisitorDaily     = "visitor:daily"
	KeySettingPattern   = "settings:%s"
)

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	switch environment {
	case "development", "staging":
		prefix = "staging"
	case "test":
		prefix = "test"
	}

	return &KeyBuilder{prefix: prefix}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// KeySetting namespaces plain string settings so they cannot collide with counters
func (kb *KeyBuilder) KeySetting(name string) string {
	return kb.BuildKey(fmt.Sprintf(KeySettingPattern, name))
}
