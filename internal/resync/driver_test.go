package resync

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/philipaconrad/gzrecover/internal/inflate"
)

// fakeStep is one scripted response to a Step call.
type fakeStep struct {
	result    inflate.Result
	err       error
	remaining int // RemainingIn() to report immediately after this step
}

// fakeDecoder drives the resync state machine with scripted Step
// outcomes instead of real (de)compressed bytes, so the transition
// logic in Driver can be exercised directly. Since window buffers in
// these tests are filled with window.buf[i] == byte(i) on every refill,
// a slice's first byte doubles as the offset within the current window
// it starts at, which lets Init calls record exactly where the driver
// re-anchored the probe.
type fakeDecoder struct {
	initStarts []int
	liveInits  []bool
	finishes   int
	promoted   int

	remaining int
	curPtr    int

	steps   []fakeStep
	stepIdx int

	// topupEOFAfterStep, when set, makes Topup report EOF once at
	// least this many Step calls have been consumed -- standing in
	// for "the real input stream has nothing left to give", so tests
	// can end the Run loop right after a scripted recovery or a clean
	// member End without needing to script an explicit post-End Step.
	topupEOFAfterStep int
}

func (f *fakeDecoder) Init(slice []byte, refill inflate.Refiller) error {
	start := 0
	if len(slice) > 0 {
		start = int(slice[0])
	}
	f.initStarts = append(f.initStarts, start)
	f.liveInits = append(f.liveInits, refill != nil)
	f.remaining = len(slice)
	f.curPtr = 0
	return nil
}

func (f *fakeDecoder) Step(out []byte) (inflate.Result, error) {
	s := f.steps[f.stepIdx]
	f.stepIdx++
	f.remaining = s.remaining
	return s.result, s.err
}

func (f *fakeDecoder) RemainingIn() int  { return f.remaining }
func (f *fakeDecoder) CurrentInPtr() int { return f.curPtr }
func (f *fakeDecoder) Promote(inflate.Refiller) {
	f.promoted++
}
func (f *fakeDecoder) Topup() (bool, error) {
	if f.topupEOFAfterStep > 0 && f.stepIdx >= f.topupEOFAfterStep {
		return true, nil
	}
	return false, nil
}
func (f *fakeDecoder) Finish() { f.finishes++ }

// fakeInput serves a fixed sequence of chunks, then reports EOF.
type fakeInput struct {
	chunks [][]byte
	idx    int
}

func (f *fakeInput) Refill(buf []byte) (int, bool, error) {
	if f.idx >= len(f.chunks) {
		return 0, true, nil
	}
	chunk := f.chunks[f.idx]
	f.idx++
	for i := range buf {
		buf[i] = byte(i) // lets fakeDecoder.Init recover the window-relative start offset
	}
	return len(chunk), false, nil
}

type fakeSink struct {
	written   []byte
	rotations int
	writeErr  error
}

func (f *fakeSink) Write(p []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, p...)
	return nil
}

func (f *fakeSink) Rotate() error {
	f.rotations++
	return nil
}

type fakeObserver struct {
	errorOffsets []int64
	goodOffsets  []int64
}

func (f *fakeObserver) ErrorFound(off int64)    { f.errorOffsets = append(f.errorOffsets, off) }
func (f *fakeObserver) GoodDataFound(off int64) { f.goodOffsets = append(f.goodOffsets, off) }

func newTestDriver(dec *fakeDecoder, in *fakeInput, out *fakeSink, obs *fakeObserver, split bool) *Driver {
	return New(dec, in, out, obs, split, WithInputBufferSize(16), WithOutputBufferSize(8))
}

func TestDriverCleanDecodeNoErrors(t *testing.T) {
	dec := &fakeDecoder{
		steps: []fakeStep{
			{result: inflate.Result{Kind: inflate.Produced, N: 5}, remaining: 3},
			{result: inflate.Result{Kind: inflate.End, N: 2}, remaining: 0},
		},
		topupEOFAfterStep: 2,
	}
	in := &fakeInput{chunks: [][]byte{{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}}}
	out := &fakeSink{}
	obs := &fakeObserver{}

	d := newTestDriver(dec, in, out, obs, false)
	empty, err := d.Run()
	require.NoError(t, err)
	require.False(t, empty)
	require.Len(t, out.written, 7)
	require.Empty(t, obs.errorOffsets)
	require.Empty(t, obs.goodOffsets)
	require.Equal(t, int64(7), d.BytesWritten())
}

func TestDriverEmptyInputReportsEmpty(t *testing.T) {
	dec := &fakeDecoder{}
	in := &fakeInput{}
	out := &fakeSink{}
	obs := &fakeObserver{}

	d := newTestDriver(dec, in, out, obs, false)
	empty, err := d.Run()
	require.NoError(t, err)
	require.True(t, empty)
	require.Zero(t, dec.finishes)
}

func TestDriverErrorThenBackstepThenRecovery(t *testing.T) {
	boom := errors.New("boom")
	dec := &fakeDecoder{
		steps: []fakeStep{
			// First step fails with bytes still left in the window
			// (len=10, remaining=7 => errPos = 10-7 = 3).
			{err: boom, remaining: 7},
			// First backstep attempt (errInc=1, start=3+1-2=2) fails too.
			{err: boom, remaining: 0},
			// Second backstep attempt (errInc=2, start=3+2-2=3) recovers.
			{result: inflate.Result{Kind: inflate.Produced, N: 4}, remaining: 0},
			{result: inflate.Result{Kind: inflate.End, N: 0}, remaining: 0},
		},
		topupEOFAfterStep: 4,
	}
	in := &fakeInput{chunks: [][]byte{make([]byte, 10)}}
	out := &fakeSink{}
	obs := &fakeObserver{}

	d := newTestDriver(dec, in, out, obs, false)
	empty, err := d.Run()
	require.NoError(t, err)
	require.False(t, empty)

	require.Equal(t, []int64{3}, obs.errorOffsets)
	require.Equal(t, []int64{0}, obs.goodOffsets) // readCursor(10) - (win.len(10) - remaining(0)) = 0
	require.Equal(t, 1, dec.promoted)

	// Init call sequence: initial (start 0), backstep #1 (start 2),
	// backstep #2 (start 3).
	require.Equal(t, []int{0, 2, 3}, dec.initStarts)
	require.Equal(t, []bool{true, false, false}, dec.liveInits)
}

func TestDriverSplitModeRotatesOnRecovery(t *testing.T) {
	boom := errors.New("boom")
	dec := &fakeDecoder{
		steps: []fakeStep{
			{err: boom, remaining: 5}, // errPos = 10-5 = 5
			{result: inflate.Result{Kind: inflate.Produced, N: 1}, remaining: 0},
			{result: inflate.Result{Kind: inflate.End, N: 0}, remaining: 0},
		},
		topupEOFAfterStep: 3,
	}
	in := &fakeInput{chunks: [][]byte{make([]byte, 10)}}
	out := &fakeSink{}
	obs := &fakeObserver{}

	d := newTestDriver(dec, in, out, obs, true)
	_, err := d.Run()
	require.NoError(t, err)
	require.Equal(t, 1, out.rotations)
}

func TestDriverErrorAtWindowEdgeRefillsAndResetsProbe(t *testing.T) {
	boom := errors.New("boom")
	dec := &fakeDecoder{
		steps: []fakeStep{
			// Error detected exactly when the window is exhausted:
			// errPos = 10-0 = 10, remaining == 0 triggers an
			// immediate refill (still erroring) rather than a backstep.
			{err: boom, remaining: 0},
			{result: inflate.Result{Kind: inflate.Produced, N: 2}, remaining: 0},
			{result: inflate.Result{Kind: inflate.End, N: 0}, remaining: 0},
		},
		topupEOFAfterStep: 3,
	}
	in := &fakeInput{chunks: [][]byte{make([]byte, 10), make([]byte, 4)}}
	out := &fakeSink{}
	obs := &fakeObserver{}

	d := newTestDriver(dec, in, out, obs, false)
	_, err := d.Run()
	require.NoError(t, err)

	require.Equal(t, []int64{10}, obs.errorOffsets)
	// The reset-probe reinit starts at offset 0 of the fresh window.
	require.Equal(t, []int{0, 0}, dec.initStarts)
	require.Equal(t, []bool{true, false}, dec.liveInits)
}

func TestDriverWriteErrorPropagates(t *testing.T) {
	dec := &fakeDecoder{
		steps: []fakeStep{
			{result: inflate.Result{Kind: inflate.Produced, N: 3}, remaining: 0},
		},
	}
	in := &fakeInput{chunks: [][]byte{make([]byte, 10)}}
	out := &fakeSink{writeErr: errors.New("disk full")}
	obs := &fakeObserver{}

	d := newTestDriver(dec, in, out, obs, false)
	_, err := d.Run()
	require.Error(t, err)
}
