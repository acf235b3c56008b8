package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSettingsValidate(t *testing.T) {
	settings := DefaultSettings()
	assert.NoError(t, settings.validate())
}

func TestSettingsNegativeTTL(t *testing.T) {
	settings := DefaultSettings()
	settings.TTL = -1
	assert.Error(t, settings.validate())
}

func TestSettingsZeroTTL(t *testing.T) {
	settings := DefaultSettings()
	settings.TTL = 0
	assert.Error(t, settings.validate())
}

func TestSettingsTTLAboveRange(t *testing.T) {
	settings := DefaultSettings()
	settings.TTL = 256
	assert.Error(t, settings.validate())
}

func TestSettingsMaxTTL(t *testing.T) {
	settings := DefaultSettings()
	settings.TTL = 255
	assert.NoError(t, settings.validate())
}

func TestSettingsNegativeInterval(t *testing.T) {
	settings := DefaultSettings()
	settings.Interval = -1
	assert.Error(t, settings.validate())
}

func TestSettingsZeroInterval(t *testing.T) {
	settings := DefaultSettings()
	settings.Interval = 0
	assert.Error(t, settings.validate())
}

func TestSettingsNegativeTimeout(t *testing.T) {
	settings := DefaultSettings()
	settings.Timeout = -1
	assert.Error(t, settings.validate())
}

func TestSettingsZeroTimeout(t *testing.T) {
	settings := DefaultSettings()
	settings.Timeout = 0
	assert.Error(t, settings.validate())
}

func TestSettingsNegativeCountIsValid(t *testing.T) {
	// Negative Count means "unbounded, stop at deadline" (spec.md §6).
	settings := DefaultSettings()
	settings.Count = -1
	assert.NoError(t, settings.validate())
}

func TestIsDeadlineActive(t *testing.T) {
	settings := DefaultSettings()
	assert.False(t, settings.isDeadlineActive())

	settings.Deadline = 5 * time.Second
	assert.True(t, settings.isDeadlineActive())
}

func TestFrameworkTimeoutFallsBackToPerProbeTimeout(t *testing.T) {
	settings := DefaultSettings()
	settings.Deadline = -1
	settings.Timeout = 7 * time.Second
	assert.Equal(t, 7*time.Second, settings.frameworkTimeout())
}

func TestFrameworkTimeoutUsesDeadlineWhenActive(t *testing.T) {
	settings := DefaultSettings()
	settings.Deadline = 30 * time.Second
	settings.Timeout = 7 * time.Second
	assert.Equal(t, 30*time.Second, settings.frameworkTimeout())
}
