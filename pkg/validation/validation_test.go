package validation

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/opd-ai/go-lander/pkg/entity"
)

func TestValidateLabel(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		want        string
		wantErr     bool
		errContains string
	}{
		{name: "simple", input: "Armstrong", want: "Armstrong"},
		{name: "spaces and punctuation", input: "Neil A. O'Hara", want: "Neil A. O'Hara"},
		{name: "trimmed", input: "  Ace  ", want: "Ace"},
		{name: "unicode letters", input: "Гагарин", want: "Гагарин"},
		{name: "empty", input: "", wantErr: true, errContains: "empty"},
		{name: "only whitespace", input: "   ", wantErr: true, errContains: "empty"},
		{name: "too long", input: strings.Repeat("a", MaxLabelLen+1), wantErr: true, errContains: "too long"},
		{name: "exactly max", input: strings.Repeat("b", MaxLabelLen), want: strings.Repeat("b", MaxLabelLen)},
		{name: "markup", input: "<script>", wantErr: true, errContains: "invalid characters"},
		{name: "control character", input: "Ace\x00One", wantErr: true, errContains: "control characters"},
		{name: "invalid utf8", input: "\xff\xfe", wantErr: true, errContains: "UTF-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateLabel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateLabel() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Expected error containing %q, got %v", tt.errContains, err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestValidateLabel_EmptySentinel(t *testing.T) {
	if _, err := ValidateLabel(" "); !errors.Is(err, ErrEmptyLabel) {
		t.Errorf("Expected ErrEmptyLabel, got %v", err)
	}
}

func TestValidateProfileID(t *testing.T) {
	tests := map[string]bool{
		"classic":  true,
		"io":       true,
		"level-10": true,
		"":         false,
		"Moon":     false,
		"../etc":   false,
	}
	tests[strings.Repeat("x", 33)] = false
	for id, ok := range tests {
		if err := ValidateProfileID(id); (err == nil) != ok {
			t.Errorf("ValidateProfileID(%q) error = %v, want ok=%v", id, err, ok)
		}
	}
}

func TestSanitizeControl(t *testing.T) {
	big, nan := 4.0, math.NaN()

	got := SanitizeControl(entity.ControlInput{Tilt: &big})
	if got.Tilt == nil || *got.Tilt != 1 {
		t.Errorf("Expected tilt clamped to 1, got %v", got.Tilt)
	}
	got = SanitizeControl(entity.ControlInput{Thrust: true, Tilt: &nan})
	if got.Tilt != nil || !got.Thrust {
		t.Errorf("Expected NaN tilt dropped and thrust kept, got %+v", got)
	}
}

func TestValidateTickRate(t *testing.T) {
	for rate, ok := range map[int]bool{9: false, 10: true, 60: true, 240: true, 241: false} {
		if err := ValidateTickRate(rate); (err == nil) != ok {
			t.Errorf("ValidateTickRate(%d) error = %v", rate, err)
		}
	}
}

func TestValidateDelta(t *testing.T) {
	for _, dt := range []float64{0, -0.1, math.NaN(), math.Inf(1)} {
		if ValidateDelta(dt) == nil {
			t.Errorf("Expected %v to be rejected", dt)
		}
	}
	if err := ValidateDelta(1.0 / 60); err != nil {
		t.Errorf("Expected 1/60 to be accepted, got %v", err)
	}
}

func TestMessageValidator_ValidateMessage(t *testing.T) {
	validator := NewMessageValidator()
	defer validator.Close()

	tests := []struct {
		name        string
		data        []byte
		wantErr     bool
		errContains string
	}{
		{name: "valid envelope", data: []byte(`{"t":"input","d":{"thrust":true}}`)},
		{name: "too large", data: make([]byte, MaxMessageSize+1), wantErr: true, errContains: "too large"},
		{name: "invalid JSON", data: []byte(`{"t": input`), wantErr: true, errContains: "invalid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateMessage(tt.data, "client1")
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Expected error containing %q, got %v", tt.errContains, err)
			}
		})
	}
}

func TestMessageValidator_RateLimit(t *testing.T) {
	validator := NewMessageValidator()
	defer validator.Close()
	msg := []byte(`{"t":"input"}`)

	var err error
	for i := 0; i <= MaxMessagesPerSecond && err == nil; i++ {
		err = validator.ValidateMessage(msg, "flood")
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("Expected ErrRateLimited, got %v", err)
	}

	validator.Forget("flood")
	if err := validator.ValidateMessage(msg, "flood"); err != nil {
		t.Errorf("Expected forgotten client to start fresh, got %v", err)
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	defer rl.Close()

	for i := 0; i < 5; i++ {
		if !rl.Allow("test-client") {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}
	if rl.Allow("test-client") {
		t.Error("6th request should be denied")
	}
	if !rl.Allow("other-client") {
		t.Error("Different client should be allowed")
	}
	if rl.Clients() != 2 {
		t.Errorf("Expected 2 tracked clients, got %d", rl.Clients())
	}
}

func TestRateLimiter_TokenRefill(t *testing.T) {
	rl := NewRateLimiter(2, 100*time.Millisecond)
	defer rl.Close()

	rl.Allow("test-client")
	rl.Allow("test-client")
	if rl.Allow("test-client") {
		t.Error("Request should be denied after consuming all tokens")
	}

	time.Sleep(150 * time.Millisecond)

	if !rl.Allow("test-client") {
		t.Error("Request should be allowed after token refill")
	}
}

func TestRateLimiter_RemoveIdle(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	defer rl.Close()

	rl.Allow("idle")
	rl.removeIdle(time.Now().Add(time.Second))

	if rl.Clients() != 0 {
		t.Errorf("Expected idle client removed, got %d", rl.Clients())
	}
	rl.Close()
}
