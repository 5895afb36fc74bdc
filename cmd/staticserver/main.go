package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sys/unix"

	"github.com/abshkbh/webapp-tools/pkg/config"
	"github.com/abshkbh/webapp-tools/pkg/staticserver"
)

func run(ctx *cli.Context) error {
	if ctx.Bool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	serverConfig, err := config.GetStaticServerConfig(ctx.String("config"))
	if err != nil {
		return fmt.Errorf("server config not found: %v", err)
	}
	if ctx.IsSet("host") {
		serverConfig.Host = ctx.String("host")
	}
	if ctx.IsSet("port") {
		serverConfig.Port = ctx.String("port")
	}
	if ctx.IsSet("root") {
		serverConfig.Root = ctx.String("root")
	}
	log.Debugf("server config: %v", serverConfig)

	s, err := staticserver.New(*serverConfig)
	if err != nil {
		return fmt.Errorf("failed to create static server: %w", err)
	}
	if err := s.Start(); err != nil {
		return err
	}

	// SIGTERM is handled like Ctrl-C so systemd stops are orderly too.
	sigCtx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()
	return s.Serve(sigCtx)
}

func main() {
	app := &cli.App{
		Name:  "staticserver",
		Usage: "Serve a directory over HTTP with permissive CORS headers.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "./config.yaml",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Address to bind; empty binds all interfaces",
			},
			&cli.StringFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "TCP port to listen on",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Directory to serve",
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
		log.WithError(err).Fatal("static server exited with error")
	}
}
