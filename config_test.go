package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
label = " tool "
udid = "00008030-001A"
device_id = 4
usbmuxd = "/tmp/usbmuxd"
log_level = "debug"
output = "yaml"
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Config{
		Label:    "tool",
		UDID:     "00008030-001A",
		DeviceID: 4,
		Usbmuxd:  "/tmp/usbmuxd",
		LogLevel: "debug",
		Output:   "yaml",
	}, cfg)
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, `address = "10.0.0.2"`))
	require.NoError(t, err)
	assert.Equal(t, "idevice", cfg.Label)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.Output)
	assert.Equal(t, "10.0.0.2", cfg.Address)
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	_, err := loadConfig(writeConfig(t, `lable = "typo"`))
	assert.ErrorContains(t, err, "lable")

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

type fakeFlags struct {
	strings map[string]string
	ints    map[string]int
}

func (this fakeFlags) IsSet(name string) bool {
	_, s := this.strings[name]
	_, i := this.ints[name]
	return s || i
}

func (this fakeFlags) String(name string) string { return this.strings[name] }
func (this fakeFlags) Int(name string) int       { return this.ints[name] }

func TestApplyFlags(t *testing.T) {
	cfg := defaultConfig()
	cfg.UDID = "from-file"
	cfg.Address = "10.0.0.2"

	cfg.applyFlags(fakeFlags{
		strings: map[string]string{"UDID": "from-flag", "output": "yaml"},
		ints:    map[string]int{"device": 9},
	})

	assert.Equal(t, "from-flag", cfg.UDID)
	assert.Equal(t, 9, cfg.DeviceID)
	assert.Equal(t, "10.0.0.2", cfg.Address)
	assert.Equal(t, "yaml", cfg.Output)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestSetupLogging(t *testing.T) {
	assert.NoError(t, setupLogging("warn"))
	assert.Error(t, setupLogging("loud"))
}
