// Copyright 2024, Philip Conrad.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package iowrap adapts the raw file descriptors an Orchestrator opens
// (the input file or stdin, the output file, stdout, or a split-mode
// sequence of output files) to the narrow interfaces internal/resync
// drives: a window refiller and a rotating output sink.
package iowrap

import (
	"errors"
	"io"
	"syscall"

	pkgerrors "github.com/pkg/errors"
)

// Reader refills a caller-owned buffer from an underlying io.Reader,
// retrying transparently on interrupted or would-block reads. This
// mirrors gzrecover.c's read_internal, which restarts read(2) on EINTR
// or EAGAIN rather than treating either as a real error; plain
// io.Readers backed by pipes rarely produce either from Go, but the
// retry costs nothing and an *os.File on a non-blocking fd can still
// surface them.
type Reader struct {
	r io.Reader
}

// NewReader wraps r for use as an internal/resync.InputReader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Refill fills buf from the start, retrying on EINTR/EAGAIN. It reports
// eof once the underlying reader has nothing left to give; any other
// error is wrapped with the failing operation's name and is fatal.
func (r *Reader) Refill(buf []byte) (n int, eof bool, err error) {
	for {
		n, err = r.r.Read(buf)
		if err == nil {
			return n, false, nil
		}
		if errors.Is(err, io.EOF) {
			return n, n == 0, nil
		}
		if errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EAGAIN) {
			continue
		}
		return 0, false, pkgerrors.Wrap(err, "read")
	}
}
