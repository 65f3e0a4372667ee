// Package resync implements the resynchronizing inflate driver: the
// byte-probing recovery loop that salvages decodable plaintext from a
// gzip stream despite corruption, truncation, or junk spliced into
// the middle of it.
//
// The control flow here is a direct translation of
// original_source/gzrecover.c's main() loop -- founderr/foundgood/
// errpos/errinc become recoveryState, and the zlib-specific bits
// (avail_in, next_in, inflateEnd/init_zlib) become calls against the
// decoder interface below. Where zlib's push-based z_stream lets a
// caller rewrite next_in/avail_in between inflate() calls to continue
// an in-progress member across a refill, Go's pull-based io.Reader
// can't be paused and resumed from outside -- so that one transition
// (avail_in == 0 after a successful, non-erroring step) is handled by
// internal/inflate's own Refiller mechanism instead of by this driver;
// every other state transition below is explicit, matching the
// original line for line.
package resync

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/philipaconrad/gzrecover/internal/inflate"
)

// backStepBytes is how far before a detected error the driver
// re-anchors its next decode attempt, to catch a gzip member whose
// header magic overlaps the tail of the corruption. Empirically
// chosen by the original implementation; not exposed as a flag.
const backStepBytes = 2

const (
	// DefaultInBufSize is the input window size used when the caller
	// does not override it via WithInputBufferSize.
	DefaultInBufSize = 1 << 20
	// DefaultOutBufSize is the per-Step output buffer size used when
	// the caller does not override it via WithOutputBufferSize.
	DefaultOutBufSize = 64 << 10
)

// decoder is the subset of *inflate.Decoder the driver depends on,
// narrowed to an interface so unit tests can drive the state machine
// with a fake that produces faults and recoveries on cue instead of
// needing real corrupted gzip bytes for every case.
type decoder interface {
	Init(slice []byte, refill inflate.Refiller) error
	Step(out []byte) (inflate.Result, error)
	RemainingIn() int
	CurrentInPtr() int
	Promote(refill inflate.Refiller)
	Topup() (eof bool, err error)
	Finish()
}

// InputReader supplies the driver with raw bytes, in whatever chunks
// its underlying source happens to produce them. See internal/iowrap
// for the concrete implementation used by cmd/gzrecover.
type InputReader interface {
	Refill(buf []byte) (n int, eof bool, err error)
}

// OutputSink receives salvaged plaintext and, in split mode, rotates
// to a fresh output file at every recovery edge.
type OutputSink interface {
	Write(p []byte) error
	Rotate() error
}

// EdgeObserver is notified at the two boundaries the driver calls
// recovery edges: the first byte offset where decoding broke, and the
// first offset afterward where it resumed. Both offsets are absolute,
// counted from the start of the input stream.
type EdgeObserver interface {
	ErrorFound(absOffset int64)
	GoodDataFound(absOffset int64)
}

// recoveryState tracks the probe in progress, mapping directly onto
// gzrecover.c's founderr/foundgood/errpos/errinc globals.
type recoveryState struct {
	inError   bool
	foundGood bool
	errPos    int
	errInc    int
}

// Option configures a Driver at construction time.
type Option func(*Driver)

// WithInputBufferSize overrides DefaultInBufSize.
func WithInputBufferSize(n int) Option {
	return func(d *Driver) { d.inBufSize = n }
}

// WithOutputBufferSize overrides DefaultOutBufSize.
func WithOutputBufferSize(n int) Option {
	return func(d *Driver) { d.outBufSize = n }
}

// WithLogger supplies the *logrus.Logger the driver traces probe
// advancement through. Without this option, Run uses a logger at the
// default logrus level (Info), which never prints the trace below --
// the caller has to deliberately lower it to DebugLevel to see it.
func WithLogger(log *logrus.Logger) Option {
	return func(d *Driver) { d.log = log }
}

// Driver runs the resynchronizing inflate loop once over an input
// stream. It is not safe for concurrent use and not reusable after
// Run returns; build a new Driver per stream.
type Driver struct {
	dec      decoder
	in       InputReader
	out      OutputSink
	observer EdgeObserver
	split    bool

	inBufSize  int
	outBufSize int

	win        *window
	readCursor int64
	initStart  int

	state recoveryState

	bytesWritten int64

	log *logrus.Logger
}

// New builds a Driver. dec is typically a fresh *inflate.Decoder;
// accepting it as a parameter (rather than constructing one
// internally) is what makes the state machine testable against a fake.
func New(dec decoder, in InputReader, out OutputSink, observer EdgeObserver, split bool, opts ...Option) *Driver {
	d := &Driver{
		dec:        dec,
		in:         in,
		out:        out,
		observer:   observer,
		split:      split,
		inBufSize:  DefaultInBufSize,
		outBufSize: DefaultOutBufSize,
		log:        logrus.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.win = newWindow(d.inBufSize)
	return d
}

// BytesWritten reports the total plaintext bytes handed to the output
// sink so far. Meaningful to read only after Run returns.
func (d *Driver) BytesWritten() int64 {
	return d.bytesWritten
}

// Run decodes the input stream to completion, salvaging whatever
// plaintext it can. It reports emptyInput if the stream held no bytes
// at all, which the caller treats as a distinct, non-error outcome.
func (d *Driver) Run() (emptyInput bool, err error) {
	eof, err := d.refillWindow()
	if err != nil {
		return false, err
	}
	if eof {
		return true, nil
	}

	if err := d.dec.Init(d.win.valid(), d.liveRefiller()); err != nil {
		return false, errors.Wrap(err, "init decoder")
	}
	d.initStart = 0

	outBuf := make([]byte, d.outBufSize)

	for {
		result, stepErr := d.dec.Step(outBuf)
		if stepErr != nil {
			done, err := d.onError()
			if err != nil {
				return false, err
			}
			if done {
				break
			}
			continue
		}

		if err := d.onSuccess(result, outBuf); err != nil {
			return false, err
		}

		eof, err := d.dec.Topup()
		if err != nil {
			return false, err
		}
		if eof {
			break
		}

		if result.Kind == inflate.End {
			if err := d.onEnd(); err != nil {
				return false, err
			}
		}
	}

	d.dec.Finish()
	return false, nil
}

// refillWindow reads more input into the shared window, in place.
// Every caller of this only does so once the window's current
// contents are no longer needed (fully consumed by a live decode, or
// fully probed without success), so overwriting it loses nothing.
func (d *Driver) refillWindow() (eof bool, err error) {
	n, eof, err := d.in.Refill(d.win.buf)
	if err != nil {
		return false, errors.Wrap(err, "refill input")
	}
	if eof {
		return true, nil
	}
	d.win.len = n
	d.readCursor += int64(n)
	d.initStart = 0
	return false, nil
}

// liveRefiller hands a decoder a Refiller backed by the shared window,
// letting it keep decoding the same gzip member across a refill
// instead of treating the window edge as end of input.
func (d *Driver) liveRefiller() inflate.Refiller {
	return func() ([]byte, bool, error) {
		eof, err := d.refillWindow()
		if err != nil {
			return nil, false, err
		}
		if eof {
			return nil, true, nil
		}
		return d.win.valid(), false, nil
	}
}

// onSuccess handles a Produced or End result: recording the recovery
// edge the first time a probe pays off, and writing whatever
// plaintext came out of this step.
func (d *Driver) onSuccess(result inflate.Result, outBuf []byte) error {
	if d.state.inError && !d.state.foundGood {
		d.state.foundGood = true
		d.state.inError = false
		d.state.errInc = 0
		d.dec.Promote(d.liveRefiller())
		d.notifyGoodDataFound()

		if d.split {
			if err := d.out.Rotate(); err != nil {
				return errors.Wrap(err, "rotate output")
			}
		}
	}

	if result.N > 0 {
		if err := d.out.Write(outBuf[:result.N]); err != nil {
			return errors.Wrap(err, "write output")
		}
		d.bytesWritten += int64(result.N)
	}

	return nil
}

// onError handles a decode fault: recording the first recovery edge
// if this is a fresh failure, then advancing the back-step probe (or,
// once the window is exhausted, refilling and restarting the probe
// from the new window's start while remaining in the error state).
// It reports done once the input is exhausted with no recovery.
func (d *Driver) onError() (done bool, err error) {
	d.state.foundGood = false

	if !d.state.inError {
		d.state.inError = true
		d.state.errPos = d.win.len - d.dec.RemainingIn()
		d.notifyErrorFound()

		if d.dec.RemainingIn() == 0 {
			d.dec.Finish()
			eof, rerr := d.refillWindow()
			if rerr != nil {
				return false, rerr
			}
			if eof {
				return true, nil
			}
			d.state.errInc = 0
			if err := d.dec.Init(d.win.valid(), nil); err != nil {
				return false, errors.Wrap(err, "init decoder")
			}
			return false, nil
		}
	}

	d.dec.Finish()
	d.state.errInc++
	d.log.Debugf("advancing probe: err_pos=%d err_inc=%d", d.state.errPos, d.state.errInc)

	if d.win.len > d.state.errPos+d.state.errInc {
		start := d.state.errPos + d.state.errInc - backStepBytes
		if start < 0 {
			start = 0
		}
		d.initStart = start
		if err := d.dec.Init(d.win.buf[start:d.win.len], nil); err != nil {
			return false, errors.Wrap(err, "init decoder")
		}
		return false, nil
	}

	eof, rerr := d.refillWindow()
	if rerr != nil {
		return false, rerr
	}
	if eof {
		return true, nil
	}
	d.state.errPos = 0
	d.state.errInc = 0
	if err := d.dec.Init(d.win.valid(), nil); err != nil {
		return false, errors.Wrap(err, "init decoder")
	}
	return false, nil
}

// onEnd starts decoding the next gzip member after a clean End. If the
// decoder's read position is still exactly at the window's absolute
// start, it re-inits with the whole window again -- a known quirk
// carried over from the original implementation that can re-decode
// bytes already emitted, rather than "fixed" here. Otherwise it skips
// one byte past the reported end and includes one trailing byte, which
// is where the original found the next member's header actually
// starts after a concatenated stream's boundary.
func (d *Driver) onEnd() error {
	tmp := d.dec.RemainingIn()
	atStart := d.initStart == 0 && d.dec.CurrentInPtr() == 0
	d.dec.Finish()

	if atStart {
		d.initStart = 0
		if err := d.dec.Init(d.win.valid(), d.liveRefiller()); err != nil {
			return errors.Wrap(err, "init decoder")
		}
		return nil
	}

	start := d.win.len - tmp + 1
	end := start + tmp + 1
	if start < 0 {
		start = 0
	}
	if end > d.win.len {
		end = d.win.len
	}
	if start > end {
		start = end
	}
	d.initStart = start
	if err := d.dec.Init(d.win.buf[start:end], d.liveRefiller()); err != nil {
		return errors.Wrap(err, "init decoder")
	}
	return nil
}

func (d *Driver) notifyErrorFound() {
	if d.observer == nil {
		return
	}
	d.observer.ErrorFound(d.readCursor - int64(d.win.len-d.state.errPos))
}

func (d *Driver) notifyGoodDataFound() {
	if d.observer == nil {
		return
	}
	d.observer.GoodDataFound(d.readCursor - int64(d.win.len-d.dec.RemainingIn()))
}
