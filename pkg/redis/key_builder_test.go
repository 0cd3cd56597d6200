package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewKeyBuilder(t *testing.T) {
	tests := []struct {
		name           string
		environment    string
		expectedPrefix string
	}{
		{"production", "production", "prod"},
		{"development", "development", "staging"},
		{"staging", "staging", "staging"},
		{"test", "test", "test"},
		{"empty defaults to prod", "", "prod"},
		{"unknown defaults to prod", "qa", "prod"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kb := NewKeyBuilder(tt.environment)
			assert.Equal(t, tt.expectedPrefix, kb.GetPrefix())
		})
	}
}

func TestKeyBuilder_BuildKey(t *testing.T) {
	kb := NewKeyBuilder("production")

	assert.Equal(t, "prod:presence:sessions", kb.BuildKey(KeyPresenceSessions))
	assert.Equal(t, "prod:visitor:total", kb.BuildKey(KeyVisitorTotal))
	assert.Equal(t, "prod:visitor:daily", kb.BuildKey(KeyVisitorDaily))
}

func TestKeyBuilder_KeySetting(t *testing.T) {
	kb := NewKeyBuilder("staging")
	assert.Equal(t, "staging:settings:display_option", kb.KeySetting("display_option"))
}
