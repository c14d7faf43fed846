// Package protocol defines the signaling events exchanged over the socket.
//
// Every event travels as {"type": <kind>, "data": <payload>}. Inbound (client to
// server) and outbound (server to client) events are closed sets: decoding an
// unknown type is a validation error, never a silently ignored message.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/huddle/internal/domain"
)

type Kind string

type envelope struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func encode(kind Kind, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", kind, err)
	}
	return json.Marshal(envelope{Type: kind, Data: data})
}

func decode[T any](data []byte, table map[Kind]func() T) (T, Kind, error) {
	var zero T
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return zero, "", domain.Validation("malformed message")
	}
	newMsg, ok := table[env.Type]
	if !ok {
		return zero, env.Type, domain.Validation("unsupported event %q", env.Type)
	}
	msg := newMsg()
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, msg); err != nil {
			return zero, env.Type, domain.Validation("malformed %s payload", env.Type)
		}
	}
	return msg, env.Type, nil
}

// DecodeInbound parses and validates one client event.
func DecodeInbound(data []byte) (Inbound, error) {
	msg, _, err := decode(data, inboundKinds)
	if err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

func EncodeInbound(msg Inbound) ([]byte, error) {
	return encode(msg.Kind(), msg)
}

// DecodeOutbound parses one server event.
func DecodeOutbound(data []byte) (Outbound, error) {
	msg, _, err := decode(data, outboundKinds)
	return msg, err
}

func EncodeOutbound(msg Outbound) ([]byte, error) {
	return encode(msg.Kind(), msg)
}
