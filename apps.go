package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli"

	"idevice/frames"
	"idevice/services"
)

func installationProxy(ctx *cli.Context, cb func(*Config, *services.InstallationProxyService) error) error {
	cfg, err := setup(ctx)
	if err != nil {
		return err
	}

	record, err := cfg.pairRecord()
	if err != nil {
		return err
	}

	proxy, err := services.NewInstallationProxyService(cfg.dialer(), record)
	if err != nil {
		return err
	}

	defer proxy.Close()

	return cb(cfg, proxy)
}

var logProgress = services.ProgressFunc(func(percent uint64, label string) {
	log.Info().Uint64("percent", percent).Msg(label)
})

func stringArray(list []string) frames.Array {
	out := make(frames.Array, len(list))
	for i, s := range list {
		out[i] = frames.String(s)
	}
	return out
}

func appsListAction(ctx *cli.Context) error {
	return installationProxy(ctx, func(cfg *Config, proxy *services.InstallationProxyService) error {
		options := frames.Dict{"ApplicationType": frames.String(ctx.String("type"))}
		if attrs := ctx.StringSlice("attr"); len(attrs) > 0 {
			options["ReturnAttributes"] = stringArray(attrs)
		}

		apps, err := proxy.Browse(options)
		if err != nil {
			return err
		}
		return cfg.print(apps)
	})
}

func appsLookupAction(ctx *cli.Context) error {
	return installationProxy(ctx, func(cfg *Config, proxy *services.InstallationProxyService) error {
		var ids []string
		if len(ctx.Args()) > 0 {
			ids = ctx.Args()
		}
		apps, err := proxy.GetApps(services.ApplicationType(ctx.String("type")), ids)
		if err != nil {
			return err
		}
		return cfg.print(apps)
	})
}

func appsInstallAction(ctx *cli.Context) error {
	if len(ctx.Args()) != 1 {
		return fmt.Errorf("usage: apps install <package path on device>")
	}

	return installationProxy(ctx, func(cfg *Config, proxy *services.InstallationProxyService) error {
		var options frames.Dict
		if t := ctx.String("package-type"); t != "" {
			options = frames.Dict{"PackageType": frames.String(t)}
		}
		if ctx.Bool("upgrade") {
			return proxy.Upgrade(ctx.Args()[0], options, logProgress)
		}
		return proxy.Install(ctx.Args()[0], options, logProgress)
	})
}

func appsUninstallAction(ctx *cli.Context) error {
	if len(ctx.Args()) != 1 {
		return fmt.Errorf("usage: apps uninstall <bundle id>")
	}

	return installationProxy(ctx, func(cfg *Config, proxy *services.InstallationProxyService) error {
		return proxy.Uninstall(ctx.Args()[0], nil, logProgress)
	})
}

func initAppsCommand() cli.Command {
	typeFlag := cli.StringFlag{
		Name:  "type, t",
		Usage: "System, User, Internal or Any",
		Value: string(services.User),
	}

	return cli.Command{
		Name:  "apps",
		Usage: "Manage installed applications",
		Subcommands: []cli.Command{
			{
				Name:   "list",
				Usage:  "Browse installed applications",
				Action: appsListAction,
				Flags: append([]cli.Flag{
					typeFlag,
					cli.StringSliceFlag{
						Name:  "attr",
						Usage: "attribute to return, repeatable",
					},
				}, globalFlags...),
			},
			{
				Name:      "lookup",
				Usage:     "Look up applications by bundle id",
				ArgsUsage: "[bundle id ...]",
				Action:    appsLookupAction,
				Flags:     append([]cli.Flag{typeFlag}, globalFlags...),
			},
			{
				Name:      "install",
				Usage:     "Install a package already copied to the device",
				ArgsUsage: "<package path>",
				Action:    appsInstallAction,
				Flags: append([]cli.Flag{
					cli.BoolFlag{
						Name:  "upgrade",
						Usage: "upgrade an existing installation",
					},
					cli.StringFlag{
						Name:  "package-type",
						Usage: "PackageType client option, e.g. Developer",
					},
				}, globalFlags...),
			},
			{
				Name:      "uninstall",
				Usage:     "Remove an application",
				ArgsUsage: "<bundle id>",
				Action:    appsUninstallAction,
				Flags:     globalFlags,
			},
		},
	}
}
