// Package smooth stabilises per-frame labels with a sliding majority vote.
package smooth

// DefaultSize is the number of labels kept in the window.
const DefaultSize = 5

// Window holds the most recent labels of one session. It is not safe for
// concurrent use; each session owns its own Window.
type Window struct {
	size   int
	labels []string
}

// New creates a Window holding up to size labels. Non-positive sizes use
// DefaultSize.
func New(size int) *Window {
	if size <= 0 {
		size = DefaultSize
	}
	return &Window{
		size:   size,
		labels: make([]string, 0, size),
	}
}

// Push appends label, evicting the oldest entry when the window is full,
// and returns the most frequent label in the window. Ties go to the tied
// label that appears earliest in the window.
func (w *Window) Push(label string) string {
	if len(w.labels) == w.size {
		copy(w.labels, w.labels[1:])
		w.labels = w.labels[:w.size-1]
	}
	w.labels = append(w.labels, label)
	return w.Mode()
}

// Mode returns the current majority label, or "" for an empty window.
func (w *Window) Mode() string {
	counts := make(map[string]int, len(w.labels))
	for _, l := range w.labels {
		counts[l]++
	}

	best, bestCount := "", 0
	for _, l := range w.labels {
		if counts[l] > bestCount {
			best, bestCount = l, counts[l]
		}
	}
	return best
}

// Labels returns a copy of the window, oldest first.
func (w *Window) Labels() []string {
	out := make([]string, len(w.labels))
	copy(out, w.labels)
	return out
}

// Len returns the number of labels held.
func (w *Window) Len() int {
	return len(w.labels)
}

// Reset empties the window.
func (w *Window) Reset() {
	w.labels = w.labels[:0]
}
