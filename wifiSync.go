package main

import (
	"fmt"

	"github.com/urfave/cli"

	"idevice/frames"
	"idevice/tunnel"
)

const wirelessLockdownDomain = "com.apple.mobile.wireless_lockdown"

func wifiConnections(conn *tunnel.LockdownConnection) (bool, error) {
	v, err := conn.GetValue("EnableWifiConnections", wirelessLockdownDomain)
	if err != nil {
		return false, err
	}
	enabled, ok := v.(frames.Bool)
	if !ok {
		return false, frames.Unexpected("EnableWifiConnections is %s, want bool", v.Kind())
	}
	return bool(enabled), nil
}

func edAction(ctx *cli.Context, ed bool) error {
	return session(ctx, func(cfg *Config, conn *tunnel.LockdownConnection) error {
		if err := conn.SetValue("EnableWifiConnections", frames.Bool(ed), wirelessLockdownDomain); err != nil {
			return err
		}

		// SetValue replies carry no status, read it back
		if enabled, err := wifiConnections(conn); err != nil {
			return err
		} else if enabled == ed {
			fmt.Println("Succeed")
		} else {
			fmt.Println("Failed")
		}

		return nil
	})
}

func syncEnableAction(ctx *cli.Context) error {
	return edAction(ctx, true)
}

func syncDisableAction(ctx *cli.Context) error {
	return edAction(ctx, false)
}

func syncAction(ctx *cli.Context) error {
	return session(ctx, func(cfg *Config, conn *tunnel.LockdownConnection) error {
		if enabled, err := wifiConnections(conn); err != nil {
			return err
		} else if enabled {
			fmt.Println("Device enable WiFi connections")
		} else {
			fmt.Println("Device disable WiFi connections")
		}

		return nil
	})
}

func initSyncCommand() cli.Command {
	return cli.Command{
		Name:   "sync",
		Usage:  "Enable Wi-Fi sync or disable",
		Action: syncAction,
		Flags:  globalFlags,
		Subcommands: []cli.Command{
			{
				Name:      "enable",
				ShortName: "e",
				Action:    syncEnableAction,
				Flags:     globalFlags,
			},
			{
				Name:      "disable",
				ShortName: "d",
				Action:    syncDisableAction,
				Flags:     globalFlags,
			},
		},
	}
}
