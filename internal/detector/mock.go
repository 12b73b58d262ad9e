package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector returns canned landmarks. Queued results are served first,
// one per Detect call; after that every call returns the hands set with
// SetHands.
type MockDetector struct {
	mu     sync.Mutex
	queue  [][]HandLandmarks
	hands  []HandLandmarks
	err    error
	calls  int
	closed bool
}

func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the result of every unqueued call.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// Queue appends one-shot results. A nil entry means no hands.
func (m *MockDetector) Queue(results ...[]HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, results...)
}

// SetError makes every call fail with err until cleared with nil.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockDetector) Detect(_ *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}

	hands := m.hands
	if len(m.queue) > 0 {
		hands, m.queue = m.queue[0], m.queue[1:]
	}
	if hands == nil {
		return nil, nil
	}
	return append([]HandLandmarks(nil), hands...), nil
}

func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
