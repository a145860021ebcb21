//go:build !linux

package device

import (
	"context"

	"github.com/BioHazard786/huddle/internal/call"
	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/pion/webrtc/v4"
)

// Source reports capture as unavailable on platforms without drivers.
type Source struct{}

var _ call.MediaSource = (*Source)(nil)

func New(opts Options) (*Source, error) {
	return &Source{}, nil
}

func (s *Source) Acquire(context.Context, protocol.MediaKind) (call.LocalMedia, error) {
	return nil, ErrUnavailable
}

func (s *Source) Populate(*webrtc.MediaEngine) {}
