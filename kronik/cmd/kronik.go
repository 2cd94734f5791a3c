// Command kronik drives the TikTok app on an Android emulator, analyzes what
// it watches and stores the results.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kronik/kronik/config"
	"kronik/kronik/utils/color"
	"kronik/kronik/utils/logging"

	"github.com/urfave/cli/v2"
)

var cfg config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.ColorError("error: ")+err.Error())
		logging.Sync()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "kronik",
		Usage: "watch, analyze and react to TikTok videos on an Android emulator",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to kronik.yaml"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.BoolFlag{Name: "no-color", Usage: "disable colored output"},
		},
		Before: func(c *cli.Context) error {
			var err error
			cfg, err = config.LoadConfig(c.String("config"))
			if err != nil {
				return err
			}
			if c.IsSet("log-level") {
				cfg.LogLevel = c.String("log-level")
			}
			if c.Bool("no-color") {
				color.Disable()
			}
			return logging.InitLogger(cfg.LogsDir, cfg.LogLevel)
		},
		After: func(c *cli.Context) error {
			logging.Sync()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "start a session and run the watch loop",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "skip-device", Usage: "use an already running emulator and appium server"},
					&cli.IntFlag{Name: "iterations", Aliases: []string{"n"}, Usage: "stop after N videos"},
					&cli.DurationFlag{Name: "duration", Aliases: []string{"d"}, Usage: "stop after this long"},
					&cli.BoolFlag{Name: "forever", Usage: "run until interrupted"},
					&cli.DurationFlag{Name: "record", Usage: "how long to watch and record each video"},
					&cli.DurationFlag{Name: "pause", Usage: "pause between videos"},
					&cli.BoolFlag{Name: "download", Usage: "download each video with yt-dlp and analyze that"},
					&cli.StringFlag{Name: "status-addr", Usage: "status server address, empty to disable"},
				},
				Action: runAction,
			},
			{
				Name:   "setup",
				Usage:  "create data directories, migrate the database and check host tools",
				Action: setupAction,
			},
			{
				Name:  "sessions",
				Usage: "inspect stored sessions",
				Subcommands: []*cli.Command{
					{
						Name:  "list",
						Usage: "list sessions, newest first",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "limit", Value: 20},
							&cli.StringFlag{Name: "status", Usage: "only active, completed or failed sessions"},
						},
						Action: sessionsListAction,
					},
					{
						Name:      "show",
						Usage:     "show a session and its analyzed videos",
						ArgsUsage: "<session-id>",
						Action:    sessionShowAction,
					},
					{
						Name:      "delete",
						Usage:     "delete a session with its videos and analyses",
						ArgsUsage: "<session-id>",
						Flags:     []cli.Flag{&cli.BoolFlag{Name: "files", Usage: "also remove the session directory"}},
						Action:    sessionDeleteAction,
					},
				},
			},
			{
				Name:      "analyze",
				Usage:     "analyze a local video file",
				ArgsUsage: "<file.mp4>",
				Action:    analyzeAction,
			},
			{
				Name:      "download",
				Usage:     "download a TikTok video with yt-dlp",
				ArgsUsage: "<url>",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "dir", Usage: "output directory", Value: "downloads"}},
				Action:    downloadAction,
			},
			{
				Name:      "search",
				Usage:     "find analyzed videos similar to a text query",
				ArgsUsage: "<query>",
				Flags:     []cli.Flag{&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 5}},
				Action:    searchAction,
			},
			{
				Name:  "token",
				Usage: "issue a bearer token for the session API and event stream",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Value: "operator"},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
				},
				Action: tokenAction,
			},
			{
				Name:   "serve",
				Usage:  "serve the status endpoint and the session API",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "addr", Usage: "listen address"}},
				Action: serveAction,
			},
		},
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
