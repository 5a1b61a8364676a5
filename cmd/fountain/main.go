// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Command fountain turns a file into a stream of text frames suitable for
// QR codes and reassembles the file from any sufficiently large subset of
// them.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/pflag"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Error is the default command errs class.
var Error = errs.Class("fountain")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %+v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return Error.New("missing command")
	}

	switch args[0] {
	case "encode":
		return runEncode(ctx, args[1:], stdout, stderr)
	case "decode":
		return runDecode(ctx, args[1:], stdin, stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stderr)
		return Error.New("unknown command %q", args[0])
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprint(w, `Usage:
  fountain encode [flags] <file>    write one text frame per line
  fountain decode [flags] [file]    read frames (stdin by default) and restore the file

Run "fountain <command> --help" for the flags of a command.
`)
}

// parseFlags parses args, printing usage on --help. It reports false when
// the command should stop without error.
func parseFlags(flags *pflag.FlagSet, args []string, stderr io.Writer) (bool, error) {
	flags.SetOutput(stderr)
	if err := flags.Parse(args); err != nil {
		if errs.Is(err, pflag.ErrHelp) {
			return false, nil
		}
		return false, Error.Wrap(err)
	}
	return true, nil
}

// newLogger logs to w, at debug level with development formatting when
// debug is set.
func newLogger(debug bool, w io.Writer) *zap.Logger {
	level, config := zap.InfoLevel, zap.NewProductionEncoderConfig()
	if debug {
		level, config = zap.DebugLevel, zap.NewDevelopmentEncoderConfig()
	}
	config.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(config), zapcore.AddSync(w), level)
	return zap.New(core)
}
