package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync/atomic"
	"time"
)

// service is one running landmark process. Each request is a 12-byte
// big-endian header (rows, cols, byte length) followed by packed RGB
// pixels; each response is a single JSON line. The first line after
// start is a ready marker.
type service struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	header [12]byte
}

// startService launches the process and waits up to timeout for its ready
// marker. A process that exits or stays silent is killed.
func startService(python, script string, args []string, stderr io.Writer, timeout time.Duration) (*service, error) {
	cmd := exec.Command(python, append([]string{script}, args...)...)
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", script, err)
	}

	svc := &service{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}
	disarm := svc.arm(timeout)
	line, err := svc.stdout.ReadBytes('\n')
	if disarm() {
		err = fmt.Errorf("no ready marker after %s", timeout)
	} else if err == nil {
		err = parseReady(line)
	}
	if err != nil {
		cmd.Process.Kill()
		svc.stop()
		return nil, fmt.Errorf("%s not ready: %w", script, err)
	}
	return svc, nil
}

func (s *service) pid() int {
	return s.cmd.Process.Pid
}

// roundTrip sends one frame and returns the raw response line. The process
// is killed when the exchange takes longer than timeout.
func (s *service) roundTrip(rows, cols int, rgb []byte, timeout time.Duration) ([]byte, error) {
	disarm := s.arm(timeout)
	line, err := s.exchange(rows, cols, rgb)
	if disarm() {
		return nil, fmt.Errorf("no response after %s", timeout)
	}
	return line, err
}

func (s *service) exchange(rows, cols int, rgb []byte) ([]byte, error) {
	binary.BigEndian.PutUint32(s.header[0:4], uint32(rows))
	binary.BigEndian.PutUint32(s.header[4:8], uint32(cols))
	binary.BigEndian.PutUint32(s.header[8:12], uint32(len(rgb)))

	if _, err := s.stdin.Write(s.header[:]); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if _, err := s.stdin.Write(rgb); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}

	line, err := s.stdout.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return line, nil
}

// arm kills the process unless the returned func is called within timeout.
// That func reports whether the kill happened. Zero never kills.
func (s *service) arm(timeout time.Duration) func() bool {
	if timeout <= 0 {
		return func() bool { return false }
	}
	var fired atomic.Bool
	t := time.AfterFunc(timeout, func() {
		fired.Store(true)
		s.cmd.Process.Kill()
	})
	return func() bool {
		t.Stop()
		return fired.Load()
	}
}

// stop closes stdin, which the service treats as end of input, and waits
// for it to exit.
func (s *service) stop() error {
	s.stdin.Close()
	return s.cmd.Wait()
}

type wireHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

type wireResponse struct {
	Ready bool       `json:"ready"`
	Hands []wireHand `json:"hands"`
	Error string     `json:"error"`
}

func parseReady(line []byte) error {
	var resp wireResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return fmt.Errorf("parse ready marker: %w", err)
	}
	if resp.Error != "" {
		return errors.New(resp.Error)
	}
	if !resp.Ready {
		return errors.New("missing ready marker")
	}
	return nil
}

// parseResponse decodes one response line. Hands with fewer than
// NumLandmarks points are dropped.
func parseResponse(line []byte) ([]HandLandmarks, error) {
	var resp wireResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}

	hands := make([]HandLandmarks, 0, len(resp.Hands))
	for _, w := range resp.Hands {
		if len(w.Points) < NumLandmarks {
			continue
		}
		h := HandLandmarks{Handedness: w.Handedness, Score: w.Score}
		copy(h.Points[:], w.Points)
		hands = append(hands, h)
	}
	return hands, nil
}
