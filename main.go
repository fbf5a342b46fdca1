package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli"
	"howett.net/plist"

	"idevice/frames"
	"idevice/tunnel"
)

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "UDID, u",
		Usage:  "device UDID, selects the usbmuxd pair record",
		EnvVar: "DEVICE_UDID",
	},
	cli.IntFlag{
		Name:   "device, d",
		Usage:  "usbmuxd device id",
		EnvVar: "DEVICE_ID",
	},
	cli.StringFlag{
		Name:  "address, a",
		Usage: "reach the device over the network instead of usbmuxd",
	},
	cli.StringFlag{
		Name:  "record, r",
		Usage: "pair record plist to use instead of the usbmuxd copy",
	},
	cli.StringFlag{
		Name:   "config, c",
		Usage:  "TOML config file",
		EnvVar: "IDEVICE_CONFIG",
	},
	cli.StringFlag{
		Name:   "log-level",
		Usage:  "trace, debug, info, warn, error or disabled",
		EnvVar: "IDEVICE_LOG_LEVEL",
	},
	cli.StringFlag{
		Name:  "output, o",
		Usage: "json or yaml",
	},
}

func setupLogging(level string) error {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(l)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
	return nil
}

// setup resolves the configuration for one command invocation.
func setup(ctx *cli.Context) (*Config, error) {
	cfg := defaultConfig()
	if path := ctx.String("config"); path != "" {
		loaded, err := loadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.applyFlags(ctx)

	if err := setupLogging(cfg.LogLevel); err != nil {
		return nil, err
	}
	if cfg.Usbmuxd != "" {
		tunnel.UsbmuxdAddress = cfg.Usbmuxd
	}
	return &cfg, nil
}

func (this *Config) dialer() tunnel.Dialer {
	if this.Address != "" {
		return &tunnel.NetDialer{Host: this.Address, Timeout: 5 * time.Second}
	}
	return &tunnel.UsbmuxDialer{DeviceID: this.DeviceID}
}

func (this *Config) pairRecord() (*frames.PairRecord, error) {
	if this.Record != "" {
		b, err := os.ReadFile(this.Record)
		if err != nil {
			return nil, err
		}
		var record frames.PairRecord
		if _, err := plist.Unmarshal(b, &record); err != nil {
			return nil, fmt.Errorf("%s: %w", this.Record, err)
		}
		return &record, nil
	}
	if this.UDID == "" {
		return nil, fmt.Errorf("a UDID or a pair record file is required")
	}
	return tunnel.ReadPairRecord(this.UDID)
}

func (this *Config) lockdown() (*tunnel.LockdownConnection, error) {
	conn, err := tunnel.LockdownDial(this.dialer())
	if err != nil {
		return nil, err
	}
	conn.SetLabel(this.Label)
	return conn, nil
}

func session(ctx *cli.Context, cb func(*Config, *tunnel.LockdownConnection) error) error {
	cfg, err := setup(ctx)
	if err != nil {
		return err
	}

	record, err := cfg.pairRecord()
	if err != nil {
		return err
	}

	conn, err := cfg.lockdown()
	if err != nil {
		return err
	}

	defer conn.Close()

	if err := conn.StartSession(record); err != nil {
		return err
	}

	return cb(cfg, conn)
}

func main() {
	app := cli.NewApp()
	app.Name = "idevice"
	app.Usage = "iOS device management tools"
	app.Version = "1.0.0"
	app.Commands = []cli.Command{
		initValueCommand(),
		initSetCommand(),
		initSyncCommand(),
		initPairCommand(),
		initAppsCommand(),
		initProfilesCommand(),
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
}
