package capture

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// ErrNoMoreFrames is returned by a non-looping Replay after its last frame.
var ErrNoMoreFrames = errors.New("no more frames")

// Replay is a Camera that plays back a fixed list of frames. It hands out
// clones, so the list stays owned by the caller.
type Replay struct {
	mu     sync.Mutex
	frames []*gocv.Mat
	loop   bool
	next   int
	reads  int
	open   bool
	fps    int
}

// NewReplay creates a Replay over frames, restarting at the first frame when
// loop is set.
func NewReplay(frames []*gocv.Mat, loop bool) *Replay {
	return &Replay{frames: frames, loop: loop, fps: DefaultFPS}
}

func (r *Replay) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = true
	return nil
}

func (r *Replay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = false
	return nil
}

func (r *Replay) ReadFrame() (*gocv.Mat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.open {
		return nil, ErrCameraNotOpen
	}
	if r.next >= len(r.frames) {
		if !r.loop || len(r.frames) == 0 {
			return nil, ErrNoMoreFrames
		}
		r.next = 0
	}

	img := r.frames[r.next].Clone()
	r.next++
	r.reads++
	return &img, nil
}

func (r *Replay) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fps = fps
}

func (r *Replay) FPS() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fps
}

func (r *Replay) IsOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}

// Reads returns how many frames were handed out.
func (r *Replay) Reads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}
