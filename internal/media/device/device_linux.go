//go:build linux

package device

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BioHazard786/huddle/internal/call"
	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
)

// Source captures through V4L2 and malgo.
type Source struct {
	opts     Options
	selector *mediadevices.CodecSelector
	logger   *slog.Logger

	enumerate func() []mediadevices.MediaDeviceInfo
	open      func(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error)
}

var _ call.MediaSource = (*Source)(nil)

// New prepares the VP8 and Opus encoders.
func New(opts Options) (*Source, error) {
	opts.applyDefaults()

	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vpxParams.BitRate = opts.VideoBitRate

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}

	return &Source{
		opts: opts,
		selector: mediadevices.NewCodecSelector(
			mediadevices.WithVideoEncoders(&vpxParams),
			mediadevices.WithAudioEncoders(&opusParams),
		),
		logger:    opts.Logger.With(slog.String("component", "device")),
		enumerate: mediadevices.EnumerateDevices,
		open:      mediadevices.GetUserMedia,
	}, nil
}

// Acquire opens the microphone, and the camera too for video calls. A video
// call whose camera cannot be opened fails rather than going audio only.
func (s *Source) Acquire(ctx context.Context, kind protocol.MediaKind) (call.LocalMedia, error) {
	devices := s.enumerate()
	if len(devices) == 0 {
		return nil, ErrUnavailable
	}
	for _, d := range devices {
		s.logger.Debug("media device", slog.String("kind", fmt.Sprint(d.Kind)), slog.String("label", d.Label))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	video := kind.WantsVideo()
	stream, err := s.open(s.constraints(video))
	if err != nil {
		s.logger.Warn("capture failed", slog.Bool("video", video), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c := &captured{}
	for _, track := range stream.GetTracks() {
		track.OnEnded(func(err error) {
			if err != nil {
				s.logger.Warn("local track ended", slog.Any("error", err))
			}
		})
		c.tracks = append(c.tracks, track)
	}
	if len(c.tracks) == 0 {
		return nil, ErrUnavailable
	}
	s.logger.Info("local media captured", slog.Int("tracks", len(c.tracks)), slog.Bool("video", video))
	return c, nil
}

func (s *Source) constraints(video bool) mediadevices.MediaStreamConstraints {
	c := mediadevices.MediaStreamConstraints{
		Codec: s.selector,
		Audio: func(*mediadevices.MediaTrackConstraints) {},
	}
	if video {
		c.Video = func(t *mediadevices.MediaTrackConstraints) {
			// MJPEG nodes on some cameras emit frames the VP8 encoder rejects.
			t.FrameFormat = prop.FrameFormatOneOf{
				frame.FormatYUYV,
				frame.FormatI420,
				frame.FormatI444,
				frame.FormatRGBA,
			}
			t.Width = prop.IntRanged{Max: s.opts.MaxWidth}
			t.Height = prop.IntRanged{Max: s.opts.MaxHeight}
		}
	}
	return c
}

// Populate registers the capture codecs on a media engine.
func (s *Source) Populate(m *webrtc.MediaEngine) {
	s.selector.Populate(m)
}
