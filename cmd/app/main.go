package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/metacheck/internal"
	"github.com/starford/metacheck/internal/checker"
	"github.com/starford/metacheck/internal/report"
	pkgconfig "github.com/starford/metacheck/pkg/config"
)

var version = "dev"

func loadOptions(cmd *cli.Command) ([]internal.Option, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

func formatFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "format",
		Usage: "Output format (text or json)",
		Value: report.FormatText,
	}
}

func checkCommand(exitCode *int) *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Check the provenance metadata of sequencing files once",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "path", Aliases: []string{"p"}, Usage: "Archive path to check (repeatable)"},
			&cli.StringFlag{Name: "study", Usage: "Select files by study name, accession number or id"},
			&cli.StringFlag{Name: "collection", Usage: "Select files below this collection"},
			&cli.BoolFlag{Name: "qc-pass", Usage: "Only select files that passed manual QC"},
			&cli.StringFlag{Name: "target", Usage: "Only select files with this target annotation"},
			&cli.StringFlag{Name: "reference", Usage: "Genome the files must be aligned to"},
			&cli.BoolFlag{Name: "skip-checksum", Usage: "Do not compare checksums"},
			&cli.BoolFlag{Name: "skip-header", Usage: "Do not read file headers"},
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}

			req := checker.Request{
				Paths:            cmd.StringSlice("path"),
				DesiredReference: cmd.String("reference"),
				SkipChecksum:     cmd.Bool("skip-checksum"),
				SkipHeader:       cmd.Bool("skip-header"),
			}
			if cmd.String("study") != "" || cmd.String("collection") != "" {
				req.Search = &checker.Search{
					Collection: cmd.String("collection"),
					Study:      cmd.String("study"),
					QCPass:     cmd.Bool("qc-pass"),
					Target:     cmd.String("target"),
				}
			}

			code, err := internal.RunCheck(ctx, req, cmd.String("format"), opts...)
			if err != nil {
				return fmt.Errorf("check: %w", err)
			}
			*exitCode = code
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "watch", Usage: "Also re-check local archive files as they change"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			opts = append(opts, internal.WithWatch(cmd.Bool("watch")))

			if err := internal.RunServe(ctx, opts...); err != nil {
				return fmt.Errorf("app run error: %w", err)
			}
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Re-check local archive files as they change",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			return internal.RunWatch(ctx, opts...)
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the MCP tools on stdin/stdout",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			return internal.RunMCP(ctx, opts...)
		},
	}
}

func runsCommand() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Show stored check runs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "Show the full report of this run"},
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of runs to list", Value: 20},
			&cli.IntFlag{Name: "offset", Usage: "Number of runs to skip"},
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			return internal.RunRuns(ctx, cmd.String("id"),
				int(cmd.Int("limit")), int(cmd.Int("offset")), cmd.String("format"), opts...)
		},
	}
}

func main() {
	exitCode := report.ExitClean

	cmd := &cli.Command{
		Name:    "metacheck",
		Usage:   "Check the provenance metadata of archived sequencing files",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			checkCommand(&exitCode),
			serveCommand(),
			watchCommand(),
			mcpCommand(),
			runsCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(report.ExitFailure)
	}
	os.Exit(exitCode)
}
