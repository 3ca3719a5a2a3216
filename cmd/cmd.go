// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   defaultConfigPath,
	}
}

func formatFlag(value string) cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: txt, json, csv, markdown",
		Value:   value,
	}
}

func limitFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "limit",
		Aliases: []string{"l"},
		Usage:   "Posts requested per channel (default from config)",
	}
}

// sessionFlags are shared by create and update.
func sessionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Session title"},
		&cli.StringFlag{Name: "channels", Usage: "Comma-separated channels (names, r/name or reddit URLs)"},
		&cli.IntFlag{Name: "interval", Aliases: []string{"i"}, Usage: "Seconds per slide (1-60)", Value: 10},
		&cli.StringFlag{Name: "transition", Usage: "Transition: fade, slide, zoom, none", Value: "fade"},
		&cli.StringFlag{Name: "prompt", Usage: "Caption prompt"},
		&cli.BoolFlag{Name: "public", Usage: "Make the session shareable"},
		&cli.BoolFlag{Name: "validate", Usage: "Check that every channel exists before saving"},
	}
}

// setupCommand handles setup operations for the database and config file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Create config.toml and store Reddit app credentials",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "client-id", Usage: "Reddit app client id"},
					&cli.StringFlag{Name: "client-secret", Usage: "Reddit app client secret"},
					&cli.StringFlag{Name: "api-key", Usage: "Bearer key required by the HTTP API"},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// authCommand handles Reddit authentication
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Reddit authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize with Reddit in the browser",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "timeout", Usage: "How long to wait for the callback", Value: 2 * time.Minute},
					&cli.BoolFlag{Name: "no-browser", Usage: "Print the authorization URL instead of opening it"},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "token",
				Usage:  "Acquire an application credential (client credentials grant)",
				Action: r.AuthToken,
			},
			{
				Name:  "status",
				Usage: "Show the stored credential's state",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Remove the stored credential",
				Action: r.AuthLogout,
			},
		},
	}
}

// sessionsCommand handles saved slideshow sessions
func sessionsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "sessions",
		Aliases: []string{"session", "s"},
		Usage:   "Manage slideshow sessions",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List sessions, most recently updated first",
				Flags: []cli.Flag{
					formatFlag("txt"),
					&cli.BoolFlag{Name: "favorites", Usage: "Only favorites"},
					&cli.BoolFlag{Name: "public", Usage: "Only public sessions"},
				},
				Action: r.SessionsList,
			},
			{
				Name:  "create",
				Usage: "Create a session",
				Flags: append(sessionFlags(),
					&cli.BoolFlag{Name: "favorite", Usage: "Mark as favorite"},
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				),
				Action: r.SessionsCreate,
			},
			{
				Name:      "show",
				Usage:     "Show a session",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.SessionsShow,
			},
			{
				Name:      "update",
				Usage:     "Change the fields given as flags",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     sessionFlags(),
				Action:    r.SessionsUpdate,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a session",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.SessionsDelete,
			},
			{
				Name:      "favorite",
				Aliases:   []string{"fav"},
				Usage:     "Mark a session as favorite",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "off", Usage: "Remove the favorite mark"},
				},
				Action: r.SessionsFavorite,
			},
			{
				Name:      "export",
				Usage:     "Write sessions to a YAML file (all sessions when no ids are given)",
				ArgsUsage: "[id...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file (default stdout)"},
				},
				Action: r.SessionsExport,
			},
			{
				Name:      "import",
				Usage:     "Create sessions from a YAML file",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Action:    r.SessionsImport,
			},
		},
	}
}

// mediaCommand handles media aggregation
func mediaCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "media",
		Usage: "Aggregate and export media",
		Commands: []*cli.Command{
			{
				Name:      "fetch",
				Usage:     "Aggregate a session's channels into a shuffled media list",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					formatFlag("txt"),
					limitFlag(),
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write files to this directory instead of stdout"},
					&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Hide per-channel progress"},
				},
				Action: r.MediaFetch,
			},
			{
				Name:      "validate",
				Usage:     "Check that channels exist",
				ArgsUsage: "channel...",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.MediaValidate,
			},
			{
				Name:      "export",
				Usage:     "Export media for several sessions (all when no ids are given)",
				ArgsUsage: "[id...]",
				Flags: []cli.Flag{
					formatFlag("json"),
					limitFlag(),
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output directory (default joip_export_{epoch})"},
					&cli.IntFlag{Name: "workers", Usage: "Concurrent writers (max 10)", Value: 3},
					&cli.FloatFlag{Name: "rate", Usage: "Sessions resolved per second", Value: 1.0},
				},
				Action: r.MediaExport,
			},
		},
	}
}

// playCommand launches the interactive player
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "Play a session in the terminal (pick one when no id is given)",
		Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
		Flags: []cli.Flag{
			limitFlag(),
			&cli.BoolFlag{Name: "no-captions", Usage: "Disable captions"},
		},
		Action: r.Play,
	}
}

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "Listen host (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (default from config)"},
			&cli.StringFlag{Name: "api-key", Usage: "Bearer key for /api routes (default from config)"},
		},
		Action: r.Serve,
	}
}
