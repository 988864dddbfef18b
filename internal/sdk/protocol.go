// Package sdk is the session SDK the room client is built on. It speaks a
// small JSON-over-WebSocket signaling protocol and reports session lifecycle
// events (connected, disconnected, error) and remote stream changes as
// Bubble Tea messages.
package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MessageType identifies the kind of WebSocket frame.
type MessageType string

// Client to server.
const (
	MsgConnect    MessageType = "connect"
	MsgPublish    MessageType = "publish"
	MsgUnpublish  MessageType = "unpublish"
	MsgDisconnect MessageType = "disconnect"
)

// Server to client.
const (
	MsgSessionConnected MessageType = "session_connected"
	MsgStreamCreated    MessageType = "stream_created"
	MsgStreamDestroyed  MessageType = "stream_destroyed"
	MsgError            MessageType = "error"
)

// Message is the envelope for all frames.
type Message struct {
	Type    MessageType     `json:"type"`
	Seq     uint64          `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Credentials identify a session and authorize joining it.
type Credentials struct {
	APIKey    string `json:"apiKey"`
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
}

// Validate reports missing fields. Credentials are not otherwise checked
// locally; the server rejects bad ones with an error frame.
func (c Credentials) Validate() error {
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "api key")
	}
	if c.SessionID == "" {
		missing = append(missing, "session id")
	}
	if c.Token == "" {
		missing = append(missing, "token")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ConnectPayload is the first frame a client sends.
type ConnectPayload struct {
	Credentials
	Name string `json:"name,omitempty"`
}

// PublishPayload announces the local publisher.
type PublishPayload struct {
	Name     string `json:"name"`
	HasVideo bool   `json:"hasVideo"`
	HasAudio bool   `json:"hasAudio"`
}

// SessionConnectedPayload acknowledges a successful connect.
type SessionConnectedPayload struct {
	SessionID    string `json:"sessionId"`
	ConnectionID string `json:"connectionId"`
}

// Stream is a published media stream in the session.
type Stream struct {
	ID           string    `json:"id"`
	ConnectionID string    `json:"connectionId"`
	Name         string    `json:"name"`
	HasVideo     bool      `json:"hasVideo"`
	HasAudio     bool      `json:"hasAudio"`
	CreatedAt    time.Time `json:"createdAt"`
}

// StreamCreatedPayload announces a new stream.
type StreamCreatedPayload struct {
	Stream Stream `json:"stream"`
}

// StreamDestroyedPayload announces a stream going away.
type StreamDestroyedPayload struct {
	StreamID string `json:"streamId"`
	Reason   string `json:"reason,omitempty"`
}

// ErrorPayload is sent by the server when a request fails.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	CodeAuthFailed = "auth_failed"
	CodeBadRequest = "bad_request"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrAuthFailed   = errors.New("authentication failed")
)

// ServerError is an error frame received from the server.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %s: %s", e.Code, e.Message)
}

func (e *ServerError) Is(target error) bool {
	return target == ErrAuthFailed && e.Code == CodeAuthFailed
}

// Manifest is the asset manifest returned by the preload endpoint.
type Manifest struct {
	Version    string   `json:"version"`
	ICEServers []string `json:"iceServers"`
	Codecs     []string `json:"codecs"`
}

// Encode builds an envelope for payload. A nil payload produces a frame
// without one.
func Encode(t MessageType, seq uint64, payload any) ([]byte, error) {
	msg := Message{Type: t, Seq: seq}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = raw
	}
	return json.Marshal(msg)
}
