// Package network serves landing sessions over websockets and provides the
// matching client.
//
// Control traffic in both directions is JSON text frames of the form
// {"t": type, "d": payload}. Frame snapshots from the server are binary
// msgpack-encoded engine.FrameSnapshot values.
package network

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/opd-ai/go-lander/pkg/engine"
	"github.com/opd-ai/go-lander/pkg/landing"
	"github.com/opd-ai/go-lander/pkg/scores"
)

// MessageType tags a JSON envelope.
type MessageType string

// Client to server.
const (
	MsgHello  MessageType = "hello"
	MsgInput  MessageType = "input"
	MsgReset  MessageType = "reset"
	MsgSelect MessageType = "select"
	MsgPing   MessageType = "ping"
)

// Server to client.
const (
	MsgWelcome MessageType = "welcome"
	MsgOutcome MessageType = "outcome"
	MsgError   MessageType = "error"
	MsgPong    MessageType = "pong"
)

// Envelope is the JSON wrapper for every text message.
type Envelope struct {
	Type MessageType     `json:"t"`
	Data json.RawMessage `json:"d,omitempty"`
}

// Hello opens a session. Label names the pilot on score tables.
type Hello struct {
	Profile string `json:"profile,omitempty"`
	Label   string `json:"label,omitempty"`
}

// Welcome answers Hello.
type Welcome struct {
	SessionID string   `json:"session"`
	Profile   string   `json:"profile"`
	Seed      uint64   `json:"seed"`
	TickRate  int      `json:"tickRate"`
	Profiles  []string `json:"profiles"`
	Unlocked  []string `json:"unlocked"`
}

// Select queues a profile for the next round.
type Select struct {
	Profile string `json:"profile"`
}

// Ping carries the client's send time in Unix nanoseconds.
type Ping struct {
	Sent int64 `json:"sent"`
}

// OutcomeMessage reports a finished round and what it did to the board.
type OutcomeMessage struct {
	Profile string          `json:"profile"`
	Outcome landing.Outcome `json:"outcome"`
	Record  scores.Record   `json:"record"`
}

// ErrorMessage reports a rejected request. The connection stays open unless
// Fatal is set.
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal,omitempty"`
}

// Error codes.
const (
	CodeBadMessage  = "bad_message"
	CodeRateLimited = "rate_limited"
	CodeLocked      = "profile_locked"
	CodeUnknown     = "unknown_profile"
	CodeBadLabel    = "bad_label"
	CodeFull        = "server_full"
	CodeInternal    = "internal"
)

func (e ErrorMessage) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func encodeEnvelope(t MessageType, payload any) ([]byte, error) {
	env := Envelope{Type: t}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", t, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("malformed envelope: %w", err)
	}
	if env.Type == "" {
		return env, fmt.Errorf("malformed envelope: missing type")
	}
	return env, nil
}

func decodePayload(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("malformed %s payload: %w", env.Type, err)
	}
	return nil
}

// EncodeFrame serialises a snapshot for a binary frame.
func EncodeFrame(f engine.FrameSnapshot) ([]byte, error) {
	return msgpack.Marshal(&f)
}

// DecodeFrame parses a binary frame.
func DecodeFrame(data []byte) (engine.FrameSnapshot, error) {
	var f engine.FrameSnapshot
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("malformed frame: %w", err)
	}
	return f, nil
}
