package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Timestamp is written as RFC 3339 and read from RFC 3339, a zone-less
// ISO-8601 local date-time (treated as UTC), or epoch milliseconds.
type Timestamp struct {
	time.Time
}

// zone-less layouts produced by servers serializing local date-times
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// ParseTimestamp parses the textual timestamp forms accepted on the wire.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		parsed, err := ParseTimestamp(s)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}

	var millis float64
	if err := json.Unmarshal(data, &millis); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	t.Time = time.UnixMilli(int64(millis)).UTC()
	return nil
}

var (
	_ msgpack.CustomEncoder = Timestamp{}
	_ msgpack.CustomDecoder = (*Timestamp)(nil)
)

func (t Timestamp) EncodeMsgpack(enc *msgpack.Encoder) error {
	if t.IsZero() {
		return enc.EncodeNil()
	}
	return enc.EncodeString(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return err
	}

	switch v := v.(type) {
	case nil:
		t.Time = time.Time{}
	case string:
		if v == "" {
			t.Time = time.Time{}
			return nil
		}
		parsed, err := ParseTimestamp(v)
		if err != nil {
			return err
		}
		t.Time = parsed
	case time.Time:
		t.Time = v.UTC()
	case int64:
		t.Time = time.UnixMilli(v).UTC()
	case uint64:
		t.Time = time.UnixMilli(int64(v)).UTC()
	case float64:
		t.Time = time.UnixMilli(int64(v)).UTC()
	default:
		return fmt.Errorf("timestamp: unsupported msgpack value %T", v)
	}
	return nil
}
