package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli"

	"idevice/services"
)

type profileInfo struct {
	Index  int    `json:"index" yaml:"index"`
	Size   int    `json:"size" yaml:"size"`
	SHA256 string `json:"sha256" yaml:"sha256"`
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
}

func misagent(ctx *cli.Context, cb func(*Config, *services.MisagentService) error) error {
	cfg, err := setup(ctx)
	if err != nil {
		return err
	}

	record, err := cfg.pairRecord()
	if err != nil {
		return err
	}

	agent, err := services.NewMisagentService(cfg.dialer(), record)
	if err != nil {
		return err
	}

	defer agent.Close()

	return cb(cfg, agent)
}

func profilesListAction(ctx *cli.Context) error {
	return misagent(ctx, func(cfg *Config, agent *services.MisagentService) error {
		profiles, err := agent.CopyAll()
		if err != nil {
			return err
		}

		dir := ctx.String("dir")
		infos := make([]profileInfo, len(profiles))
		for i, p := range profiles {
			sum := sha256.Sum256(p)
			infos[i] = profileInfo{Index: i, Size: len(p), SHA256: hex.EncodeToString(sum[:])}
			if dir != "" {
				infos[i].File = filepath.Join(dir, fmt.Sprintf("%s.mobileprovision", infos[i].SHA256))
				if err := os.WriteFile(infos[i].File, p, 0o644); err != nil {
					return err
				}
			}
		}
		return cfg.print(infos)
	})
}

func profilesInstallAction(ctx *cli.Context) error {
	if len(ctx.Args()) != 1 {
		return fmt.Errorf("usage: profiles install <file>")
	}
	profile, err := os.ReadFile(ctx.Args()[0])
	if err != nil {
		return err
	}

	return misagent(ctx, func(cfg *Config, agent *services.MisagentService) error {
		return agent.Install(profile)
	})
}

func profilesRemoveAction(ctx *cli.Context) error {
	if len(ctx.Args()) != 1 {
		return fmt.Errorf("usage: profiles remove <profile id>")
	}

	return misagent(ctx, func(cfg *Config, agent *services.MisagentService) error {
		return agent.Remove(ctx.Args()[0])
	})
}

func initProfilesCommand() cli.Command {
	return cli.Command{
		Name:  "profiles",
		Usage: "Manage provisioning profiles",
		Subcommands: []cli.Command{
			{
				Name:   "list",
				Usage:  "List installed provisioning profiles",
				Action: profilesListAction,
				Flags: append([]cli.Flag{
					cli.StringFlag{
						Name:  "dir",
						Usage: "write each profile into this directory",
					},
				}, globalFlags...),
			},
			{
				Name:      "install",
				Usage:     "Install a provisioning profile",
				ArgsUsage: "<file>",
				Action:    profilesInstallAction,
				Flags:     globalFlags,
			},
			{
				Name:      "remove",
				Usage:     "Remove a provisioning profile",
				ArgsUsage: "<profile id>",
				Action:    profilesRemoveAction,
				Flags:     globalFlags,
			},
		},
	}
}
