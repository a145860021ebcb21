// Package media provides local media sources for calls.
package media

import (
	"context"
	"sync"
	"time"

	"github.com/BioHazard786/huddle/internal/call"
	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

const frameInterval = 20 * time.Millisecond

// opusSilence is a single Opus frame that decodes to 20ms of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

var _ call.MediaSource = Synthetic{}

// Synthetic produces silent Opus audio and, for video calls, an idle VP8
// track. It needs no capture hardware and is used for headless clients and
// tests.
type Synthetic struct {
	// StreamID labels the tracks. A random ID is used when empty.
	StreamID string
}

// Acquire returns tracks for kind. Audio is always included.
func (s Synthetic) Acquire(ctx context.Context, kind protocol.MediaKind) (call.LocalMedia, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stream := s.StreamID
	if stream == "" {
		stream = "huddle-" + uuid.NewString()[:8]
	}

	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", stream)
	if err != nil {
		return nil, err
	}

	tracks := []webrtc.TrackLocal{audio}
	if kind.WantsVideo() {
		video, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
			"video", stream)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, video)
	}

	sm := &syntheticMedia{
		tracks: tracks,
		audio:  audio,
		stop:   make(chan struct{}),
	}
	sm.wg.Add(1)
	go sm.pump()
	return sm, nil
}

type syntheticMedia struct {
	tracks []webrtc.TrackLocal
	audio  *webrtc.TrackLocalStaticSample
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func (m *syntheticMedia) Tracks() []webrtc.TrackLocal {
	return append([]webrtc.TrackLocal(nil), m.tracks...)
}

// Close stops the audio pump. It is safe to call more than once.
func (m *syntheticMedia) Close() error {
	m.once.Do(func() { close(m.stop) })
	m.wg.Wait()
	return nil
}

func (m *syntheticMedia) pump() {
	defer m.wg.Done()

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			// Unbound tracks and peers that went away both surface here; the
			// pump keeps going until Close.
			_ = m.audio.WriteSample(media.Sample{Data: opusSilence, Duration: frameInterval})
		}
	}
}
