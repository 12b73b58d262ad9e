package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains []string
	}{
		{
			name:     "error with cause",
			err:      Wrap(KindStartup, "load", "failed to load model", errors.New("file not found")),
			contains: []string{"[startup:load]", "failed to load model", "file not found"},
		},
		{
			name:     "error with reason",
			err:      New(KindDecode, "decode", "no separator").WithReason(ReasonMalformedEnvelope),
			contains: []string{"[decode/malformed_envelope:decode]", "no separator"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				if !strings.Contains(errStr, substr) {
					t.Errorf("error string %q does not contain %q", errStr, substr)
				}
			}
		})
	}
}

func TestWrap(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		if err := Wrap(KindInference, "op", "msg", nil); err != nil {
			t.Errorf("Wrap(nil) = %v, want nil", err)
		}
	})

	t.Run("unwraps to cause", func(t *testing.T) {
		cause := errors.New("boom")
		err := Wrap(KindInference, "predict", "oracle failed", cause)
		if !errors.Is(err, cause) {
			t.Error("wrapped error should match its cause")
		}
	})

	t.Run("keeps existing kind", func(t *testing.T) {
		inner := New(KindDecode, "decode", "bad").WithReason(ReasonEmptyBody)
		err := Wrap(KindExtraction, "extract", "outer", fmt.Errorf("context: %w", inner))
		if KindOf(err) != KindDecode {
			t.Errorf("KindOf = %s, want %s", KindOf(err), KindDecode)
		}
	})
}

func TestIsKindAndReason(t *testing.T) {
	err := fmt.Errorf("frame 7: %w", New(KindDecode, "decode", "bad body").WithReason(ReasonUnsupportedFormat))

	if !IsKind(err, KindDecode) {
		t.Error("expected decode kind through fmt wrapping")
	}
	if IsKind(err, KindInference) {
		t.Error("unexpected inference kind")
	}
	if got := ReasonOf(err); got != ReasonUnsupportedFormat {
		t.Errorf("ReasonOf = %q, want %q", got, ReasonUnsupportedFormat)
	}
	if got := ReasonOf(errors.New("plain")); got != ReasonNone {
		t.Errorf("ReasonOf(plain) = %q, want empty", got)
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("plain errors should report unknown kind")
	}
}

func TestErrorsIsTemplate(t *testing.T) {
	err := New(KindDecode, "decode", "x").WithReason(ReasonEmptyBody)

	if !errors.Is(err, &Error{Kind: KindDecode}) {
		t.Error("kind-only template should match")
	}
	if !errors.Is(err, &Error{Kind: KindDecode, Reason: ReasonEmptyBody}) {
		t.Error("kind+reason template should match")
	}
	if errors.Is(err, &Error{Kind: KindDecode, Reason: ReasonTooLarge}) {
		t.Error("different reason must not match")
	}
}
