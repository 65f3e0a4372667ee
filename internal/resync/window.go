package resync

// window is the single reusable input buffer the driver decodes from,
// mirroring the original C implementation's one static inbuf array: it
// is overwritten in place on every refill rather than grown or
// replaced, and a refill only ever happens once everything currently
// in it has been consumed (by a live decoder session) or probed past
// (by the error-recovery loop), so nothing still needed is ever
// discarded.
type window struct {
	buf []byte
	len int
}

func newWindow(size int) *window {
	return &window{buf: make([]byte, size)}
}

// valid returns the currently readable portion of the window.
func (w *window) valid() []byte {
	return w.buf[:w.len]
}
