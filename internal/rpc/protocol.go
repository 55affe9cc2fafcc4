package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/uri"
)

// Envelope types
const (
	TypeNotify   = "notify"
	TypeRequest  = "request"
	TypeResponse = "response"
)

// Protocol methods
const (
	MethodRegisterURIHandler   = "registerUriHandler"
	MethodUnregisterURIHandler = "unregisterUriHandler"
	MethodHandleExternalURI    = "handleExternalUri"
)

var (
	// ErrClosed is returned when using a connection that has shut down.
	ErrClosed = errors.New("rpc connection closed")

	// ErrUnknownMethod is returned by handlers for methods they do not serve.
	ErrUnknownMethod = errors.New("unknown method")

	// ErrMalformedMessage is reported for frames that cannot be decoded.
	ErrMalformedMessage = errors.New("malformed message")
)

// Message is the wire envelope.
type Message struct {
	Type   string          `json:"type"`
	ID     uint64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// RegisterParams announces a live handle.
type RegisterParams struct {
	Handle      int    `json:"handle"`
	ExtensionID string `json:"extensionId"`
}

// UnregisterParams retires a handle.
type UnregisterParams struct {
	Handle int `json:"handle"`
}

// HandleExternalURIParams delivers an external URI to a handle.
// DispatchID is set by the main process for log correlation and may be empty.
type HandleExternalURIParams struct {
	Handle     int            `json:"handle"`
	URI        uri.Components `json:"uri"`
	DispatchID string         `json:"dispatchId,omitempty"`
}

// RemoteError is a failure reported by the peer in a response.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s failed: %s", e.Method, e.Message)
}

func encode(msg *Message) ([]byte, error) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", msg.Type, err)
	}
	return data, nil
}

func decode(data []byte) (*Message, error) {
	var msg Message
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	switch msg.Type {
	case TypeNotify, TypeRequest:
		if msg.Method == "" {
			return nil, fmt.Errorf("%w: %s without method", ErrMalformedMessage, msg.Type)
		}
	case TypeResponse:
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, msg.Type)
	}
	return &msg, nil
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	data, err := sonic.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}
	return data, nil
}

// DecodeParams unmarshals raw params into out.
func DecodeParams(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing params", ErrMalformedMessage)
	}
	if err := sonic.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return nil
}
