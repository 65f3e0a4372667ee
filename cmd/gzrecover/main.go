// Copyright 2024, Philip Conrad.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Command gzrecover salvages whatever plaintext it can from a gzip
// stream despite corruption, truncation, or junk spliced into the
// middle of it.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/philipaconrad/gzrecover/internal/config"
	"github.com/philipaconrad/gzrecover/internal/diagnostics"
	"github.com/philipaconrad/gzrecover/internal/inflate"
	"github.com/philipaconrad/gzrecover/internal/iowrap"
	"github.com/philipaconrad/gzrecover/internal/resync"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// nopWriteCloser adapts an io.Writer that must never actually be
// closed (standard output, shared across split-mode rotations that
// would otherwise each try to close it) to io.WriteCloser.
type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	res, err := config.Parse(args, stderr)
	if err != nil {
		return 1
	}
	if res.ShowHelp {
		return 0
	}
	if res.ShowVersion {
		fmt.Fprintf(stderr, "gzrecover %s\n", config.Version)
	}

	cfg := res.Config
	diag := diagnostics.New(stderr, cfg.Verbose)

	displayName := cfg.InputPath
	var in io.Reader
	if cfg.InputPath == "" {
		displayName = "stdin"
		in = stdin
	} else {
		f, err := os.Open(cfg.InputPath)
		if err != nil {
			return fail(diag, stderr, errors.Wrap(err, "open"))
		}
		defer f.Close()
		in = f
	}
	diag.OpenedInput(displayName)

	writer, err := openWriter(cfg, stdout, diag)
	if err != nil {
		return fail(diag, stderr, err)
	}
	defer writer.Close()

	dec := &inflate.Decoder{}
	driver := resync.New(
		dec,
		iowrap.NewReader(in),
		writer,
		diag,
		cfg.Split,
		resync.WithInputBufferSize(cfg.InBufSize),
		resync.WithOutputBufferSize(cfg.OutBufSize),
		resync.WithLogger(diag.Logger()),
	)

	empty, err := driver.Run()
	if err != nil {
		return fail(diag, stderr, err)
	}
	if empty {
		diag.EmptyInput()
		return 0
	}

	diag.TotalWritten(driver.BytesWritten())
	return 0
}

// openWriter builds the Output Writer for either stdout (-p) or the
// file-naming policy in internal/config.OutputName.
func openWriter(cfg config.Config, stdout io.Writer, diag *diagnostics.Sink) (*iowrap.Writer, error) {
	if cfg.Stdout {
		return iowrap.NewWriter(func(int) (io.WriteCloser, error) {
			return nopWriteCloser{stdout}, nil
		}, false)
	}

	return iowrap.NewWriter(func(index int) (io.WriteCloser, error) {
		name := config.OutputName(cfg, index)
		sink, err := iowrap.OpenFileSink(name)
		if err != nil {
			return nil, err
		}
		diag.OpenedOutput(name)
		return sink, nil
	}, true)
}

// fail logs and reports a fatal error, returning the process exit
// code the caller should use.
func fail(diag *diagnostics.Sink, stderr io.Writer, err error) int {
	diag.Logger().WithError(err).Error("gzrecover: fatal")
	fmt.Fprintf(stderr, "gzrecover: %v\n", err)
	return 1
}
