package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli"

	"idevice/frames"
)

type Config struct {
	Label    string
	UDID     string
	DeviceID int
	Address  string
	Usbmuxd  string
	Record   string
	LogLevel string
	Output   string
}

// config.toml keys.
type fileConfig struct {
	Label    string `toml:"label"`
	UDID     string `toml:"udid"`
	DeviceID int    `toml:"device_id"`
	Address  string `toml:"address"`
	Usbmuxd  string `toml:"usbmuxd"`
	Record   string `toml:"record"`
	LogLevel string `toml:"log_level"`
	Output   string `toml:"output"`
}

func defaultConfig() Config {
	return Config{
		Label:    frames.BundleID,
		LogLevel: "info",
		Output:   string(FormatJSON),
	}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("label") {
		cfg.Label = strings.TrimSpace(raw.Label)
	}
	if meta.IsDefined("udid") {
		cfg.UDID = strings.TrimSpace(raw.UDID)
	}
	if meta.IsDefined("device_id") {
		cfg.DeviceID = raw.DeviceID
	}
	if meta.IsDefined("address") {
		cfg.Address = strings.TrimSpace(raw.Address)
	}
	if meta.IsDefined("usbmuxd") {
		cfg.Usbmuxd = strings.TrimSpace(raw.Usbmuxd)
	}
	if meta.IsDefined("record") {
		cfg.Record = strings.TrimSpace(raw.Record)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("output") {
		cfg.Output = strings.TrimSpace(raw.Output)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}
	return cfg, nil
}

type flagSource interface {
	IsSet(name string) bool
	String(name string) string
	Int(name string) int
}

// applyFlags lets explicitly set flags win over the file.
func (this *Config) applyFlags(ctx flagSource) {
	if ctx.IsSet("UDID") {
		this.UDID = ctx.String("UDID")
	}
	if ctx.IsSet("device") {
		this.DeviceID = ctx.Int("device")
	}
	if ctx.IsSet("address") {
		this.Address = ctx.String("address")
	}
	if ctx.IsSet("record") {
		this.Record = ctx.String("record")
	}
	if ctx.IsSet("log-level") {
		this.LogLevel = ctx.String("log-level")
	}
	if ctx.IsSet("output") {
		this.Output = ctx.String("output")
	}
}

var _ flagSource = (*cli.Context)(nil)
