package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/starford/uhskit/internal/assets"
	"github.com/starford/uhskit/internal/hintservice"
	"github.com/starford/uhskit/internal/parser"
	"github.com/starford/uhskit/internal/render"
)

// cliLogger reports recoverable problems on stderr. Warnings only unless
// --verbose is set.
func cliLogger(cmd *cli.Command) *slog.Logger {
	level := slog.LevelWarn
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func argN(cmd *cli.Command, n int, usage string) ([]string, error) {
	if cmd.Args().Len() != n {
		return nil, fmt.Errorf("usage: uhskit %s %s", cmd.Name, usage)
	}
	return cmd.Args().Slice(), nil
}

func parseArg(cmd *cli.Command, path string, legacy bool) (*parser.Result, error) {
	opts := []parser.Option{parser.WithLogger(cliLogger(cmd).With(slog.String("path", path)))}
	if legacy {
		opts = append(opts, parser.WithLegacyStub())
	}
	return parser.ParseFile(path, opts...)
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print the hint tree of a file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "reveal-all", Usage: "Show every hint instead of the first of each question"},
			&cli.BoolFlag{Name: "legacy", Usage: "Read only the 88a part of a 9x file"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			args, err := argN(cmd, 1, "show [--reveal-all] <file>")
			if err != nil {
				return err
			}
			res, err := parseArg(cmd, args[0], cmd.Bool("legacy"))
			if err != nil {
				return err
			}
			return render.Tree(os.Stdout, res.Root, render.Options{RevealAll: cmd.Bool("reveal-all")})
		},
	}
}

var errChecksum = errors.New("checksum mismatch")

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Report format, version and checksum of a file",
		ArgsUsage: "<file>",
		Action: func(_ context.Context, cmd *cli.Command) error {
			args, err := argN(cmd, 1, "check <file>")
			if err != nil {
				return err
			}
			res, err := parseArg(cmd, args[0], false)
			if err != nil {
				return err
			}
			if err := render.Summary(os.Stdout, args[0], res); err != nil {
				return err
			}
			if res.CRC == parser.CRCMismatch {
				return fmt.Errorf("%s: %w", args[0], errChecksum)
			}
			return nil
		},
	}
}

func convertCommand() *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "Rewrite a file as 88a or 9x",
		ArgsUsage: "<in> <out>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Usage: "Target format: 88a or 9x",
				Value: hintservice.Format9x,
			},
			&cli.BoolFlag{Name: "force", Usage: "Overwrite the output file"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			args, err := argN(cmd, 2, "convert [--format 88a|9x] <in> <out>")
			if err != nil {
				return err
			}
			format := cmd.String("format")
			if format != hintservice.Format88a && format != hintservice.Format9x {
				return fmt.Errorf("format must be %s or %s", hintservice.Format88a, hintservice.Format9x)
			}
			if _, err := os.Stat(args[1]); err == nil && !cmd.Bool("force") {
				return fmt.Errorf("%s exists, use --force to overwrite", args[1])
			}
			res, err := parseArg(cmd, args[0], false)
			if err != nil {
				return err
			}
			data, err := hintservice.Encode(res.Root, format, cliLogger(cmd))
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], data, 0o644); err != nil {
				return err
			}
			fmt.Printf("%s -> %s (%s, %d bytes)\n", args[0], args[1], format, len(data))
			return nil
		},
	}
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Save embedded images and sounds, plus composited hotspot maps",
		ArgsUsage: "<file> <dir>",
		Action: func(_ context.Context, cmd *cli.Command) error {
			args, err := argN(cmd, 2, "extract <file> <dir>")
			if err != nil {
				return err
			}
			res, err := parseArg(cmd, args[0], false)
			if err != nil {
				return err
			}
			list, err := assets.Extract(res.Root, args[1], cliLogger(cmd))
			for _, a := range list {
				fmt.Printf("%-9s %s\n", a.Kind, a.Path)
			}
			return err
		},
	}
}
