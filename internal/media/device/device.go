// Package device captures the local camera and microphone.
package device

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/BioHazard786/huddle/internal/call"
	"github.com/pion/webrtc/v4"
)

// ErrUnavailable is returned when no capture device could be opened.
var ErrUnavailable = fmt.Errorf("capture device unavailable: %w", call.ErrMediaUnavailable)

// Options tunes capture.
type Options struct {
	// MaxWidth and MaxHeight cap the camera resolution.
	MaxWidth  int
	MaxHeight int
	// VideoBitRate is the VP8 target in bits per second.
	VideoBitRate int
	Logger       *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.MaxWidth <= 0 {
		o.MaxWidth = 640
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = 480
	}
	if o.VideoBitRate <= 0 {
		o.VideoBitRate = 1_500_000
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// closer is a captured track.
type closer interface {
	webrtc.TrackLocal
	Close() error
}

type captured struct {
	tracks []closer
}

func (c *captured) Tracks() []webrtc.TrackLocal {
	out := make([]webrtc.TrackLocal, len(c.tracks))
	for i, t := range c.tracks {
		out[i] = t
	}
	return out
}

func (c *captured) Close() error {
	var errs []error
	for _, t := range c.tracks {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.tracks = nil
	return errors.Join(errs...)
}
