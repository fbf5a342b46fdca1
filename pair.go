package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli"
	"howett.net/plist"

	"idevice/tunnel"
)

func pairAction(ctx *cli.Context) error {
	cfg, err := setup(ctx)
	if err != nil {
		return err
	}

	conn, err := cfg.lockdown()
	if err != nil {
		return err
	}

	defer conn.Close()

	udid := cfg.UDID
	if udid == "" {
		if udid, err = conn.UniqueDeviceID(); err != nil {
			return err
		}
	}

	buid := ctx.String("buid")
	if buid == "" && cfg.Address == "" {
		if buid, err = tunnel.ReadBUID(); err != nil {
			return err
		}
	}
	if buid == "" {
		buid = tunnel.NewHostID()
	}

	log.Info().Str("udid", udid).Msg("accept the trust dialog on the device")

	record, err := conn.Pair(tunnel.NewHostID(), buid)
	if err != nil {
		return err
	}

	if path := ctx.String("save"); path != "" {
		b, err := plist.MarshalIndent(record, plist.XMLFormat, "\t")
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, b, 0o600); err != nil {
			return err
		}
	}

	if cfg.Address == "" {
		if err := tunnel.SavePairRecord(udid, cfg.DeviceID, record); err != nil {
			return err
		}
	}

	log.Info().Str("udid", udid).Str("host_id", record.HostID).Msg("paired")
	return nil
}

func initPairCommand() cli.Command {
	return cli.Command{
		Name:   "pair",
		Usage:  "Pair with a device and store the record with usbmuxd",
		Action: pairAction,
		Flags: append([]cli.Flag{
			cli.StringFlag{
				Name:  "buid",
				Usage: "system BUID, read from usbmuxd when empty",
			},
			cli.StringFlag{
				Name:  "save, s",
				Usage: "also write the pair record to this plist file",
			},
		}, globalFlags...),
	}
}
