package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec names accepted by ParseCodec.
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// Codec converts envelopes to and from wire frames.
type Codec interface {
	Name() string
	// Binary reports whether frames go out as binary websocket messages.
	Binary() bool
	Encode(env *Envelope) ([]byte, error)
	Decode(data []byte) (*Envelope, error)

	decodePayload(raw []byte, v any) error
}

// ParseCodec returns the codec registered under name.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CodecJSON:
		return JSON, nil
	case CodecMsgpack, "messagepack":
		return Msgpack, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

var (
	// JSON is the default codec, sent in text frames.
	JSON Codec = jsonCodec{}
	// Msgpack sends the same envelope shape as MessagePack binary frames.
	Msgpack Codec = msgpackCodec{}
)

type jsonWire struct {
	Type       Kind            `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Timestamp  Timestamp       `json:"timestamp"`
	SenderID   string          `json:"senderId,omitempty"`
	SenderName string          `json:"senderName,omitempty"`
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return CodecJSON }

func (jsonCodec) Binary() bool { return false }

func (c jsonCodec) Encode(env *Envelope) ([]byte, error) {
	payload := json.RawMessage("{}")
	if env.Payload != nil {
		b, err := json.Marshal(env.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", env.Kind, err)
		}
		payload = b
	} else if env.codec == c && len(env.raw) > 0 {
		payload = env.raw
	}

	return json.Marshal(jsonWire{
		Type:       env.Kind,
		Payload:    payload,
		Timestamp:  NewTimestamp(env.SentAt),
		SenderID:   env.SenderID,
		SenderName: env.SenderName,
	})
}

func (c jsonCodec) Decode(data []byte) (*Envelope, error) {
	var w jsonWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &DecodeError{Codec: CodecJSON, Err: ErrMalformedEnvelope, Details: err.Error()}
	}
	if w.Type == "" {
		return nil, &DecodeError{Codec: CodecJSON, Err: ErrMissingKind}
	}

	raw := []byte(w.Payload)
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		raw = nil
	}

	return &Envelope{
		Kind:       w.Type,
		SentAt:     w.Timestamp.Time,
		SenderID:   w.SenderID,
		SenderName: w.SenderName,
		raw:        raw,
		codec:      c,
	}, nil
}

func (jsonCodec) decodePayload(raw []byte, v any) error {
	return json.Unmarshal(raw, v)
}

type msgpackWire struct {
	Type       Kind               `json:"type"`
	Payload    msgpack.RawMessage `json:"payload,omitempty"`
	Timestamp  Timestamp          `json:"timestamp"`
	SenderID   string             `json:"senderId,omitempty"`
	SenderName string             `json:"senderName,omitempty"`
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return CodecMsgpack }

func (msgpackCodec) Binary() bool { return true }

func (c msgpackCodec) Encode(env *Envelope) ([]byte, error) {
	var payload msgpack.RawMessage
	switch {
	case env.Payload != nil:
		b, err := marshalMsgpack(env.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", env.Kind, err)
		}
		payload = b
	case env.codec == c && len(env.raw) > 0:
		payload = env.raw
	default:
		b, err := marshalMsgpack(map[string]any{})
		if err != nil {
			return nil, err
		}
		payload = b
	}

	return marshalMsgpack(msgpackWire{
		Type:       env.Kind,
		Payload:    payload,
		Timestamp:  NewTimestamp(env.SentAt),
		SenderID:   env.SenderID,
		SenderName: env.SenderName,
	})
}

func (c msgpackCodec) Decode(data []byte) (*Envelope, error) {
	var w msgpackWire
	if err := unmarshalMsgpack(data, &w); err != nil {
		return nil, &DecodeError{Codec: CodecMsgpack, Err: ErrMalformedEnvelope, Details: err.Error()}
	}
	if w.Type == "" {
		return nil, &DecodeError{Codec: CodecMsgpack, Err: ErrMissingKind}
	}

	return &Envelope{
		Kind:       w.Type,
		SentAt:     w.Timestamp.Time,
		SenderID:   w.SenderID,
		SenderName: w.SenderName,
		raw:        []byte(w.Payload),
		codec:      c,
	}, nil
}

func (msgpackCodec) decodePayload(raw []byte, v any) error {
	return unmarshalMsgpack(raw, v)
}

// Payload structs only carry json tags; MessagePack reuses them so both
// codecs agree on field names.
func marshalMsgpack(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshalMsgpack(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
