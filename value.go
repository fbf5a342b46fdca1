package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli"

	"idevice/frames"
	"idevice/tunnel"
)

// splitKey parses "domain:key" or "key".
func splitKey(s string) (domain string, key string, err error) {
	a := strings.Split(s, ":")
	switch len(a) {
	case 1:
		return "", a[0], nil
	case 2:
		return a[0], a[1], nil
	}
	return "", "", fmt.Errorf("Arguments too many `%s`", s)
}

// parseValue guesses the plist type of a command line value.
func parseValue(s string) frames.Value {
	switch s {
	case "true":
		return frames.Bool(true)
	case "false":
		return frames.Bool(false)
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return frames.Uint(u)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return frames.Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return frames.Real(f)
	}
	return frames.String(s)
}

func getAction(ctx *cli.Context) error {
	args := ctx.Args()

	return session(ctx, func(cfg *Config, conn *tunnel.LockdownConnection) error {
		if len(args) == 0 {
			all, err := conn.GetAllValues("")
			if err != nil {
				return err
			}
			return cfg.print(all)
		}

		for _, s := range args {
			domain, key, err := splitKey(s)
			if err != nil {
				return err
			}

			if key == "" {
				all, err := conn.GetAllValues(domain)
				if err != nil {
					return err
				}
				if err := cfg.print(all); err != nil {
					return err
				}
				continue
			}

			resp, err := conn.GetValue(key, domain)
			if err != nil {
				return err
			}
			if err := cfg.print(resp); err != nil {
				return err
			}
		}
		return nil
	})
}

func setAction(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) != 2 {
		return fmt.Errorf("usage: set [domain:]key value")
	}

	domain, key, err := splitKey(args[0])
	if err != nil {
		return err
	}

	return session(ctx, func(cfg *Config, conn *tunnel.LockdownConnection) error {
		return conn.SetValue(key, parseValue(args[1]), domain)
	})
}

func initValueCommand() cli.Command {
	return cli.Command{
		Name:      "get",
		Usage:     "Get session values",
		ArgsUsage: "[domain:]key ... (domain: alone dumps a domain)",
		Action:    getAction,
		Flags:     globalFlags,
	}
}

func initSetCommand() cli.Command {
	return cli.Command{
		Name:      "set",
		Usage:     "Set a session value",
		ArgsUsage: "[domain:]key value",
		Action:    setAction,
		Flags:     globalFlags,
	}
}
