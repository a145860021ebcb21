package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrMalformedPayload  = errors.New("malformed payload")
	ErrMissingKind       = errors.New("envelope has no type")
	ErrUnknownCodec      = errors.New("unknown codec")
)

// DecodeError reports a frame or payload that could not be decoded.
type DecodeError struct {
	Codec   string
	Err     error
	Details string
}

func (e *DecodeError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s decode: %v (%s)", e.Codec, e.Err, e.Details)
	}
	return fmt.Sprintf("%s decode: %v", e.Codec, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
