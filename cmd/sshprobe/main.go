package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/abshkbh/webapp-tools/pkg/config"
	"github.com/abshkbh/webapp-tools/pkg/probe"
)

func run(ctx *cli.Context) error {
	if ctx.Bool("debug") {
		log.SetLevel(log.DebugLevel)
	} else {
		// The transcript on stdout is the output; keep stderr quiet.
		log.SetLevel(log.WarnLevel)
	}

	probeConfig, err := config.GetProbeConfig(ctx.String("config"))
	if err != nil {
		return fmt.Errorf("probe config not found: %v", err)
	}
	if ctx.IsSet("host") {
		probeConfig.Host = ctx.String("host")
	}
	if ctx.IsSet("port") {
		probeConfig.Port = ctx.String("port")
	}
	if ctx.IsSet("user") {
		probeConfig.User = ctx.String("user")
	}
	if ctx.IsSet("timeout") {
		probeConfig.Timeout = ctx.Duration("timeout")
	}
	if ctx.IsSet("known-hosts") {
		probeConfig.KnownHostsFile = ctx.String("known-hosts")
	}
	if ctx.IsSet("ssh-config") {
		probeConfig.SSHConfigFile = ctx.String("ssh-config")
	}
	if ctx.IsSet("strict") {
		probeConfig.Strict = ctx.Bool("strict")
	}
	log.Debugf("probe config: %v", probeConfig)

	runner, err := probe.NewRunner(*probeConfig)
	if err != nil {
		return fmt.Errorf("failed to create probe: %w", err)
	}
	if !runner.Diagnose(context.Background()) {
		return cli.Exit("", 1)
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:  "sshprobe",
		Usage: "Run a fixed set of diagnostic commands on a remote host over SSH.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "./config.yaml",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Remote host or ssh config alias",
			},
			&cli.StringFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Remote SSH port",
			},
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "Remote user; the password comes from the config file or SSHPROBE_PASSWORD",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Connect and handshake timeout",
			},
			&cli.StringFlag{
				Name:  "known-hosts",
				Usage: "known_hosts file to record new host keys in",
			},
			&cli.StringFlag{
				Name:  "ssh-config",
				Usage: "ssh config file used to resolve host aliases (default ~/.ssh/config)",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Exit non-zero when any command fails, not only when the connection does",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("sshprobe exited with error")
	}
}
