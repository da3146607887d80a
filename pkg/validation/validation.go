// Package validation checks client messages and labels before they reach a session.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/opd-ai/go-lander/pkg/entity"
	"github.com/opd-ai/go-lander/pkg/physics"
)

const (
	MaxMessageSize = 4 * 1024
	MaxLabelLen    = 16
	// MaxMessagesPerSecond leaves headroom over a 60 Hz input stream.
	MaxMessagesPerSecond = 150
	maxProfileIDLen      = 32
)

var (
	// ErrEmptyLabel is returned for blank score-table labels.
	ErrEmptyLabel = errors.New("label cannot be empty")
	// ErrRateLimited is returned when a client exceeds its message budget.
	ErrRateLimited = errors.New("rate limit exceeded")
)

var (
	validLabelChars = regexp.MustCompile(`^[\p{L}\p{N} \-_.']+$`)
	validProfileID  = regexp.MustCompile(`^[a-z0-9][a-z0-9\-_]*$`)
)

// MessageValidator checks raw client messages and enforces a per-client rate.
type MessageValidator struct {
	rateLimiter *RateLimiter
}

// NewMessageValidator creates a validator allowing MaxMessagesPerSecond per client.
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{
		rateLimiter: NewRateLimiter(MaxMessagesPerSecond, time.Second),
	}
}

// Close stops the validator's rate limiter.
func (v *MessageValidator) Close() {
	if v.rateLimiter != nil {
		v.rateLimiter.Close()
	}
}

// Forget drops the rate state of a disconnected client.
func (v *MessageValidator) Forget(clientID string) {
	v.rateLimiter.Forget(clientID)
}

// ValidateMessage checks size, JSON syntax and the client's rate budget.
func (v *MessageValidator) ValidateMessage(data []byte, clientID string) error {
	if len(data) > MaxMessageSize {
		return fmt.Errorf("message too large: %d bytes (max %d)", len(data), MaxMessageSize)
	}
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON format")
	}
	if !v.rateLimiter.Allow(clientID) {
		return fmt.Errorf("%w: max %d messages per second", ErrRateLimited, MaxMessagesPerSecond)
	}
	return nil
}

// ValidateLabel trims a score-table label and checks it is short and printable.
func ValidateLabel(label string) (string, error) {
	if !utf8.ValidString(label) {
		return "", fmt.Errorf("label contains invalid UTF-8")
	}
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return "", ErrEmptyLabel
	}
	if n := utf8.RuneCountInString(trimmed); n > MaxLabelLen {
		return "", fmt.Errorf("label too long: %d characters (max %d)", n, MaxLabelLen)
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("label contains control characters")
		}
	}
	if !validLabelChars.MatchString(trimmed) {
		return "", fmt.Errorf("label contains invalid characters (letters, digits, spaces, - _ . ' allowed)")
	}
	return trimmed, nil
}

// ValidateProfileID checks the shape of a profile identifier. Whether the
// profile exists is the catalog's concern.
func ValidateProfileID(id string) error {
	if id == "" || len(id) > maxProfileIDLen || !validProfileID.MatchString(id) {
		return fmt.Errorf("invalid profile id %q", id)
	}
	return nil
}

// SanitizeControl clamps an analog tilt into [-1, 1] and drops non-finite values.
func SanitizeControl(in entity.ControlInput) entity.ControlInput {
	return in.Sanitized()
}

// ValidateTickRate checks a requested simulation rate.
func ValidateTickRate(rate int) error {
	if rate < 10 || rate > 240 {
		return fmt.Errorf("invalid tick rate: %d (must be 10-240)", rate)
	}
	return nil
}

// ValidateDelta reports whether dt is usable as a frame delta.
func ValidateDelta(dt float64) error {
	if !physics.IsFinite(dt) || dt <= 0 {
		return fmt.Errorf("invalid frame delta: %v", dt)
	}
	return nil
}
