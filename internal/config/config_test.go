package config

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseBasicFlags(t *testing.T) {
	var stderr bytes.Buffer
	res, err := Parse([]string{"-v", "-s", "input.gz"}, &stderr)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !res.Config.Verbose || !res.Config.Split {
		t.Fatalf("Config = %+v, want Verbose and Split set", res.Config)
	}
	if res.Config.InputPath != "input.gz" {
		t.Errorf("InputPath = %q, want %q", res.Config.InputPath, "input.gz")
	}
	if res.ShowHelp || res.ShowVersion {
		t.Errorf("unexpected ShowHelp/ShowVersion: %+v", res)
	}
}

func TestParseHelpStopsBeforeRunning(t *testing.T) {
	var stderr bytes.Buffer
	res, err := Parse([]string{"-h"}, &stderr)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !res.ShowHelp {
		t.Fatalf("ShowHelp = false, want true")
	}
	if stderr.Len() == 0 {
		t.Errorf("expected usage text on stderr")
	}
}

func TestParseVersionContinuesRunning(t *testing.T) {
	// -V must not behave like -h: the caller is expected to print the
	// version and keep going, per gzrecover.c falling through its
	// switch statement without a break.
	var stderr bytes.Buffer
	res, err := Parse([]string{"-V", "input.gz"}, &stderr)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !res.ShowVersion {
		t.Fatalf("ShowVersion = false, want true")
	}
	if res.ShowHelp {
		t.Fatalf("ShowHelp = true, want false")
	}
	if res.Config.InputPath != "input.gz" {
		t.Errorf("InputPath = %q, want %q", res.Config.InputPath, "input.gz")
	}
}

func TestParseOutputAndStdoutAreMutuallyExclusive(t *testing.T) {
	var stderr bytes.Buffer
	_, err := Parse([]string{"-o", "out.txt", "-p"}, &stderr)
	if !errors.Is(err, ErrMutuallyExclusive) {
		t.Fatalf("err = %v, want ErrMutuallyExclusive", err)
	}
}

func TestParseTooManyPositionalArgsIsUsageError(t *testing.T) {
	var stderr bytes.Buffer
	_, err := Parse([]string{"a.gz", "b.gz"}, &stderr)
	if !errors.Is(err, ErrTooManyInputs) {
		t.Fatalf("err = %v, want ErrTooManyInputs", err)
	}
}

func TestParseUnknownFlagIsUsageError(t *testing.T) {
	var stderr bytes.Buffer
	_, err := Parse([]string{"--not-a-flag"}, &stderr)
	if !errors.Is(err, ErrUnrecognizedFlag) {
		t.Fatalf("err = %v, want ErrUnrecognizedFlag", err)
	}
}

func TestParseMissingOutputArgument(t *testing.T) {
	var stderr bytes.Buffer
	_, err := Parse([]string{"-o"}, &stderr)
	if !errors.Is(err, ErrMissingOutputName) {
		t.Fatalf("err = %v, want ErrMissingOutputName", err)
	}
}

func TestOutputName(t *testing.T) {
	testcases := []struct {
		note  string
		cfg   Config
		index int
		want  string
	}{
		{
			note:  "no -o, no -s, named input",
			cfg:   Config{InputPath: "/var/log/archive.gz"},
			index: 0,
			want:  "archive.recovered",
		},
		{
			note:  "no -o, no -s, stdin",
			cfg:   Config{InputPath: ""},
			index: 0,
			want:  "stdin.recovered",
		},
		{
			note:  "no -o, -s, second rotation",
			cfg:   Config{InputPath: "data.gz", Split: true},
			index: 1,
			want:  "data.recovered.2",
		},
		{
			note:  "-o, no -s",
			cfg:   Config{OutputSpecified: true, OutputName: "salvaged.txt"},
			index: 0,
			want:  "salvaged.txt",
		},
		{
			note:  "-o, -s, third rotation",
			cfg:   Config{OutputSpecified: true, OutputName: "salvaged.txt", Split: true},
			index: 2,
			want:  "salvaged.txt.3",
		},
		{
			note:  "non-trailing .gz is left alone",
			cfg:   Config{InputPath: "archive.gz.old"},
			index: 0,
			want:  "archive.gz.old.recovered",
		},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.note, func(t *testing.T) {
			t.Parallel()
			got := OutputName(tc.cfg, tc.index)
			if got != tc.want {
				t.Errorf("OutputName() = %q, want %q", got, tc.want)
			}
		})
	}
}
