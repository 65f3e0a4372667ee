// Package inflate adapts a gzip-aware decoder to the byte-exact,
// push-style accounting the resync driver needs: how many input bytes
// remain, and where the decoder's read position currently sits inside
// the window it was last handed.
//
// klauspost/compress/gzip (and the flate package underneath it) pull
// bytes from an io.Reader on demand rather than being fed explicit
// avail_in/next_in counters the way zlib is. To get the same
// byte-exact bookkeeping without an extra bufio layer silently
// reading ahead, the reader handed to gzip.NewReader must itself
// satisfy io.ByteReader -- the same trick used by gzran's and pgzip's
// gzip.Reader rewrites.
package inflate

import "io"

// Refiller supplies a feeder with more bytes once it has exhausted
// its current slice. It reports eof when no further input exists.
// A feeder with a nil Refiller is "bounded": it reports io.EOF on
// exhaustion instead of asking for more, which is what the resync
// driver wants while probing a fixed window for a resync point.
type Refiller func() (window []byte, eof bool, err error)

// feeder is the io.Reader/io.ByteReader pair backing a Decoder.
//
// A bounded feeder (refill == nil) never serves past len(buf). A live
// feeder calls refill on exhaustion and keeps serving from whatever
// slice comes back, which is what lets a single gzip.Reader keep
// decoding the same DEFLATE stream across an input-window refill: the
// Reader object it reads from never changes, only the bytes it next
// returns do. zlib gets this by letting a caller rewrite next_in and
// avail_in between calls to inflate(); Go's pull-based io.Reader has
// to do the equivalent from inside Read itself.
type feeder struct {
	buf       []byte
	pos       int
	refill    Refiller
	refillErr error
}

func (f *feeder) Read(p []byte) (int, error) {
	if f.pos >= len(f.buf) {
		if !f.tryRefill() {
			if f.refillErr != nil {
				return 0, f.refillErr
			}
			return 0, io.EOF
		}
	}
	n := copy(p, f.buf[f.pos:])
	f.pos += n
	return n, nil
}

func (f *feeder) ReadByte() (byte, error) {
	if f.pos >= len(f.buf) {
		if !f.tryRefill() {
			if f.refillErr != nil {
				return 0, f.refillErr
			}
			return 0, io.EOF
		}
	}
	b := f.buf[f.pos]
	f.pos++
	return b, nil
}

func (f *feeder) remaining() int {
	return len(f.buf) - f.pos
}

// tryRefill asks for more input when the feeder is live. It reports
// whether bytes are now available; a refill failure is kept in
// refillErr, and Read/ReadByte return it directly, instead of io.EOF,
// from the same call that triggered the refill.
func (f *feeder) tryRefill() bool {
	if f.refill == nil {
		return false
	}
	buf, eof, err := f.refill()
	if err != nil {
		f.refillErr = err
		return false
	}
	if eof {
		return false
	}
	f.buf = buf
	f.pos = 0
	return true
}
