// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, formatsCommand, convertCommand, historyCommand, prefsCommand, ttsCommand, apiCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// setupCommand handles setup operations for the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Create config if missing, initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// formatsCommand lists supported conversions
func formatsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "formats",
		Aliases: []string{"fmt"},
		Usage:   "Supported conversion formats",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Print the format catalog",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "category",
						Usage: "Only show one category (images, documents, audio, video, archives)",
					},
					&cli.BoolFlag{
						Name:  "remote",
						Usage: "Merge the formats declared by the backend",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.FormatsList,
			},
		},
	}
}

// convertCommand handles batch and single-file conversions
func convertCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "convert",
		Usage: "Convert files",
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Convert a batch of files, using the backend when reachable and the local engine otherwise",
				ArgsUsage: "FILES...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "category",
						Usage: "Format category (inferred from the source format when omitted)",
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Source format (defaults to the first file's extension)",
					},
					&cli.StringFlag{
						Name:     "target",
						Aliases:  []string{"t"},
						Usage:    "Target format",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Directory to save converted files (default: downloads.output_dir)",
					},
					&cli.BoolFlag{
						Name:  "mock",
						Usage: "Convert locally without contacting the backend",
					},
					&cli.BoolFlag{
						Name:  "probe",
						Usage: "Report backend availability and merge its format catalog first",
					},
					&cli.BoolFlag{
						Name:  "no-download",
						Usage: "Only print results",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the job as JSON",
					},
				},
				Action: r.ConvertRun,
			},
			{
				Name:  "single",
				Usage: "Convert one file synchronously through the backend",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "file",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "source",
						Usage: "Source format (defaults to the file extension)",
					},
					&cli.StringFlag{
						Name:     "target",
						Aliases:  []string{"t"},
						Usage:    "Target format",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Directory to save the converted file",
					},
				},
				Action: r.ConvertSingle,
			},
		},
	}
}

// historyCommand handles the conversion history
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Conversion history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Show recent conversions",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries (default: history.limit)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "export",
				Usage: "Export history as csv, markdown, txt or json",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: csv, markdown, txt, json",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (prints to stdout when omitted)",
					},
				},
				Action: r.HistoryExport,
			},
			{
				Name:   "clear",
				Usage:  "Delete all history entries",
				Action: r.HistoryClear,
			},
		},
	}
}

// prefsCommand handles user preferences
func prefsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "prefs",
		Aliases: []string{"preferences"},
		Usage:   "User preferences",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Show one preference",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "key"},
				},
				Action: r.PrefsGet,
			},
			{
				Name:      "set",
				Usage:     "Store a preference (keys: dark_mode)",
				ArgsUsage: "KEY VALUE",
				Action:    r.PrefsSet,
			},
			{
				Name:   "list",
				Usage:  "Show all stored preferences",
				Action: r.PrefsList,
			},
		},
	}
}

func speechFlags(withOutput bool) []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "text",
			Usage:    "Text to speak",
			Required: true,
		},
		&cli.IntFlag{
			Name:  "rate",
			Usage: "Words per minute (50-400)",
			Value: 200,
		},
		&cli.FloatFlag{
			Name:  "volume",
			Usage: "Volume (0-1)",
			Value: 0.9,
		},
		&cli.StringFlag{
			Name:  "voice",
			Usage: "Voice ID (see tts voices)",
		},
	}
	if withOutput {
		flags = append(flags, &cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Directory to save the audio file",
		})
	}
	return flags
}

// ttsCommand handles text-to-speech operations
func ttsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tts",
		Usage: "Text-to-speech through the backend",
		Commands: []*cli.Command{
			{
				Name:  "voices",
				Usage: "List available voices",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.TTSVoices,
			},
			{
				Name:   "speak",
				Usage:  "Convert text to an audio file",
				Flags:  speechFlags(true),
				Action: r.TTSSpeak,
			},
			{
				Name:   "preview",
				Usage:  "Play a short sample (max 500 characters)",
				Flags:  speechFlags(false),
				Action: r.TTSPreview,
			},
			{
				Name:  "health",
				Usage: "Show the speech engine status",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.TTSHealth,
			},
		},
	}
}

// apiCommand handles direct backend API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to the conversion backend",
		Commands: []*cli.Command{
			{
				Name:   "health",
				Usage:  "Check backend reachability",
				Action: r.APIHealth,
			},
			{
				Name:  "get",
				Usage: "Direct GET to the backend, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
		},
	}
}

// serveCommand runs the local HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve a conversion session over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (default: server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (default: server.port)",
			},
			&cli.Int64Flag{
				Name:  "max-upload",
				Usage: "Maximum multipart request size in bytes",
			},
			&cli.BoolFlag{
				Name:  "mock",
				Usage: "Convert locally without contacting the backend",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the session in a browser once listening",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive conversion.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "tui",
		Aliases:   []string{"interactive", "ui"},
		Usage:     "Launch interactive TUI for file conversion",
		ArgsUsage: "[FILES...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Usage: "Preselect a category"},
			&cli.StringFlag{Name: "source", Usage: "Preselect the source format"},
			&cli.StringFlag{Name: "target", Usage: "Preselect the target format"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Directory for downloads"},
			&cli.BoolFlag{Name: "mock", Usage: "Convert locally without contacting the backend"},
		},
		Action: r.TUI,
	}
}
