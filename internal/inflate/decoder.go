package inflate

import (
	"io"

	"github.com/klauspost/compress/gzip"
)

// Kind distinguishes the two non-error outcomes a Step can produce.
type Kind int

const (
	// Produced means Step wrote N bytes of plaintext into out. More
	// is true iff N == len(out): the decoder filled every byte it was
	// given and likely has more to hand over on the next call without
	// needing new input.
	Produced Kind = iota
	// End means the current gzip member finished cleanly: its trailer
	// CRC32/ISIZE were read and agree with what was decoded. A trailer
	// that disagrees or is cut short is reported as an error from this
	// same Step instead -- klauspost/compress checks the trailer on the
	// read that discovers the end of the DEFLATE data. N bytes of
	// trailing plaintext may have been produced in the same call.
	End
)

// Result is what a successful Step call reports. A non-nil, non-EOF
// error from the underlying Read is never wrapped in a Result; it is
// returned directly by Step instead, and the caller treats it as an
// opaque decode fault that only a resync can recover from.
type Result struct {
	Kind Kind
	N    int
	More bool
}

// Decoder adapts a single gzip member's worth of decoding to the
// init/step/finish shape the resync driver drives. It is deliberately
// not safe for concurrent use and not reusable across unrelated
// windows; the driver owns exactly one at a time and tears it down
// with Finish before building the next.
type Decoder struct {
	feed *feeder
	zr   *gzip.Reader
}

// Init points the decoder at a fresh byte range. refill may be nil,
// in which case the decoder never asks for more input than slice
// holds (the mode the driver uses while probing for a resync point);
// otherwise refill is called whenever the decoder exhausts its
// current bytes, which is what lets one gzip member's decode continue
// across an input-window refill without losing its internal state.
//
// Construction of the underlying gzip.Reader is deferred to the first
// Step call: doing the header parse eagerly here would mean a bad
// offset fails from Init, but the resync driver needs every decode
// fault -- bad header included -- to surface as an error from Step,
// so that the normal Err-handling path (not a separate Init-error
// path) is what notices it. Init itself can't actually fail under this
// scheme; it still returns an error to keep the door open for a future
// backing decoder that validates eagerly.
func (d *Decoder) Init(slice []byte, refill Refiller) error {
	d.feed = &feeder{buf: slice, refill: refill}
	d.zr = nil
	return nil
}

// Step performs exactly one Read against the underlying decoder.
func (d *Decoder) Step(out []byte) (Result, error) {
	if d.zr == nil {
		zr, err := gzip.NewReader(d.feed)
		if err != nil {
			return Result{}, err
		}
		zr.Multistream(false)
		d.zr = zr
	}

	n, err := d.zr.Read(out)
	switch {
	case err == nil:
		return Result{Kind: Produced, N: n, More: n == len(out)}, nil
	case err == io.EOF:
		return Result{Kind: End, N: n}, nil
	default:
		return Result{}, err
	}
}

// RemainingIn reports how many bytes of the current window the
// decoder has not yet consumed.
func (d *Decoder) RemainingIn() int {
	if d.feed == nil {
		return 0
	}
	return d.feed.remaining()
}

// CurrentInPtr reports the decoder's read position within the slice it
// was last Init'd with. It is relative, not absolute: the driver
// tracks the absolute start of that slice separately.
func (d *Decoder) CurrentInPtr() int {
	if d.feed == nil {
		return 0
	}
	return d.feed.pos
}

// Promote attaches a Refiller to an already-initialized (previously
// bounded) decoder, without disturbing its read position or the
// gzip.Reader's internal state. The driver calls this the moment a
// probing decoder produces its first good output: from then on it is
// trusted to keep decoding, so it should behave like any other live
// session and top up across window refills instead of erroring out at
// the edge of whatever slice it happened to be probing.
func (d *Decoder) Promote(refill Refiller) {
	if d.feed != nil {
		d.feed.refill = refill
	}
}

// Topup forces an immediate refill if the decoder has no bytes left,
// mirroring the explicit "avail_in == 0" check a zlib-based driver
// makes after every successful inflate() call -- independent of
// whether the call produced ordinary output or a clean member end. It
// reports true once the underlying input is genuinely exhausted.
func (d *Decoder) Topup() (eof bool, err error) {
	if d.feed == nil || d.feed.remaining() > 0 {
		return false, nil
	}
	if d.feed.tryRefill() {
		return false, nil
	}
	if d.feed.refillErr != nil {
		return false, d.feed.refillErr
	}
	return true, nil
}

// Finish releases the underlying gzip.Reader. It is safe to call on an
// already-finished or never-initialized Decoder.
func (d *Decoder) Finish() {
	if d.zr != nil {
		d.zr.Close()
		d.zr = nil
	}
	d.feed = nil
}
