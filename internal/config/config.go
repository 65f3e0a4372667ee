// Copyright 2024, Philip Conrad.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package config parses the command line and derives output file names,
// the two pieces of gzrecover.c's main() that aren't decoding itself.
package config

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
)

// Version is printed by -V, matching gzrecover.c's VERSION constant.
const Version = "0.90"

const usageLine = "Usage: gzrecover [-hpsVv] [-o <outfile>] [infile]"

// Parse's error values. The caller's Usage has already been printed to
// stderr by the time any of these is returned, so the caller only
// needs the value to pick an exit code; callers that care which
// violation occurred can use errors.Is.
var (
	ErrMutuallyExclusive = errors.New("gzrecover: -o and -p are mutually exclusive")
	ErrMissingOutputName = errors.New("gzrecover: -o requires an argument")
	ErrUnrecognizedFlag  = errors.New("gzrecover: unrecognized flag")

	// ErrTooManyInputs is raised by more than one positional argument.
	// spec.md's error table doesn't name this case separately from
	// "unrecognized flag", but the two are distinguishable failures
	// with distinguishable messages, so this rewrite gives it its own
	// sentinel rather than overloading ErrUnrecognizedFlag.
	ErrTooManyInputs = errors.New("gzrecover: too many input filenames")
)

// Config holds everything the Orchestrator needs, replacing
// gzrecover.c's process-wide static globals (split_mode, verbose_mode,
// outfile_specified, ...) with a value passed explicitly down to the
// components that need it.
type Config struct {
	InputPath       string // empty means read from standard input
	OutputSpecified bool   // -o was given
	OutputName      string // -o's argument
	Stdout          bool   // -p
	Split           bool   // -s
	Verbose         bool   // -v

	InBufSize  int
	OutBufSize int
}

// ParseResult is what Parse reports in addition to (or instead of) a
// ready-to-run Config.
type ParseResult struct {
	Config      Config
	ShowHelp    bool // -h: usage has already been printed; caller should exit 0
	ShowVersion bool // -V: caller should print the version; run continues
}

// Parse parses args (typically os.Args[1:]) against the CLI surface
// spec.md §6 fixes: -h, -o NAME, -p, -s, -v, -V, plus one optional
// positional input filename. Usage text (on -h, or on a parse error)
// is written to stderr.
func Parse(args []string, stderr io.Writer) (ParseResult, error) {
	fs := pflag.NewFlagSet("gzrecover", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	outName := fs.StringP("output", "o", "", "use NAME as the output filename base")
	stdout := fs.BoolP("stdout", "p", false, "write salvaged output to standard output")
	split := fs.BoolP("split", "s", false, "split mode: rotate output at every recovery edge")
	verbose := fs.BoolP("verbose", "v", false, "verbose diagnostics to standard error")
	showVersion := fs.BoolP("version", "V", false, "print version and continue")
	help := fs.BoolP("help", "h", false, "print this usage text")

	fs.Usage = func() {
		fmt.Fprintln(stderr, usageLine)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		// Under ContinueOnError pflag returns the parse error without
		// printing anything, so the error and the usage text are
		// written here.
		fmt.Fprintf(stderr, "gzrecover: %v\n", err)
		fs.Usage()
		if strings.Contains(err.Error(), "needs an argument") {
			return ParseResult{}, ErrMissingOutputName
		}
		return ParseResult{}, ErrUnrecognizedFlag
	}

	if *help {
		fs.Usage()
		return ParseResult{ShowHelp: true}, nil
	}

	if *outName != "" && *stdout {
		fmt.Fprintln(stderr, "gzrecover: cannot specify output filename (-o) and stdout (-p) simultaneously")
		fs.Usage()
		return ParseResult{}, ErrMutuallyExclusive
	}

	if fs.NArg() > 1 {
		fmt.Fprintln(stderr, "gzrecover: too many input filenames")
		fs.Usage()
		return ParseResult{}, ErrTooManyInputs
	}

	var input string
	if fs.NArg() == 1 {
		input = fs.Arg(0)
	}

	cfg := Config{
		InputPath:       input,
		OutputSpecified: *outName != "",
		OutputName:      *outName,
		Stdout:          *stdout,
		Split:           *split,
		Verbose:         *verbose,
		InBufSize:       1 << 20,
		OutBufSize:      64 << 10,
	}

	return ParseResult{Config: cfg, ShowVersion: *showVersion}, nil
}

// stem derives the <stem> used in the unnamed-output naming policy:
// the input filename with a trailing ".gz" removed and any leading
// directory stripped. A stdin-sourced recovery names itself "stdin",
// matching gzrecover.c's open_outfile, which is handed the literal
// string "stdin" as infile whenever no file argument is given.
func stem(inputPath string) string {
	name := inputPath
	if name == "" {
		return "stdin"
	}
	name = filepath.Base(name)
	return strings.TrimSuffix(name, ".gz")
}

// OutputName derives the name of the index'th (0-based) output
// artifact, per spec.md §6:
//
//	-o NAME, no -s:    NAME
//	-o NAME, -s:       NAME.1, NAME.2, ...
//	no -o, no -s:      <stem>.recovered
//	no -o, -s:         <stem>.recovered.1, <stem>.recovered.2, ...
//
// Split-mode suffixes are 1-based, matching open_outfile's static
// suffix counter in gzrecover.c.
func OutputName(cfg Config, index int) string {
	suffix := index + 1
	switch {
	case cfg.OutputSpecified && cfg.Split:
		return fmt.Sprintf("%s.%d", cfg.OutputName, suffix)
	case cfg.OutputSpecified:
		return cfg.OutputName
	case cfg.Split:
		return fmt.Sprintf("%s.recovered.%d", stem(cfg.InputPath), suffix)
	default:
		return stem(cfg.InputPath) + ".recovered"
	}
}
