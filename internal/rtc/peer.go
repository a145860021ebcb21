// Package rtc builds the pion peer connections used for calls.
package rtc

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/BioHazard786/huddle/internal/call"
	"github.com/BioHazard786/huddle/internal/utils"
	"github.com/pion/interceptor"
	pion "github.com/pion/webrtc/v4"
)

// ICE timeouts are generous so a short relay or NAT hiccup does not drop the
// call.
const (
	iceDisconnectedTimeout = 30 * time.Second
	iceFailedTimeout       = 120 * time.Second
	iceKeepaliveInterval   = 2 * time.Second
)

// Config selects the ICE servers and transport policy.
type Config struct {
	STUNServers []string
	TURNServers []string
	TURNUser    string
	TURNPass    string
	// ForceRelay restricts ICE to TURN relays.
	ForceRelay bool
	// DetectRelay forces relaying when the host looks to be behind a VPN or
	// CGNAT.
	DetectRelay bool
	// IncludeLoopback gathers loopback candidates, for local testing.
	IncludeLoopback bool
	// Codecs registers codecs on the media engine in place of the pion
	// defaults. Capture sources that encode their own media set it.
	Codecs func(*pion.MediaEngine)
	Logger *slog.Logger
}

// Factory creates peer connections sharing one pion API.
type Factory struct {
	cfg    Config
	api    *pion.API
	logger *slog.Logger
}

var _ call.PeerFactory = (*Factory)(nil)

// NewFactory registers the default codecs and interceptors and returns a
// factory for cfg.
func NewFactory(cfg Config) (*Factory, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	mediaEngine := &pion.MediaEngine{}
	if cfg.Codecs != nil {
		cfg.Codecs(mediaEngine)
	} else if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := pion.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	se := pion.SettingEngine{}
	se.SetICETimeouts(iceDisconnectedTimeout, iceFailedTimeout, iceKeepaliveInterval)
	if cfg.IncludeLoopback {
		se.SetIncludeLoopbackCandidate(true)
	}

	api := pion.NewAPI(
		pion.WithMediaEngine(mediaEngine),
		pion.WithInterceptorRegistry(registry),
		pion.WithSettingEngine(se),
	)

	return &Factory{
		cfg:    cfg,
		api:    api,
		logger: cfg.Logger.With(slog.String("component", "rtc")),
	}, nil
}

// Configuration returns the pion configuration peers are created with.
func (f *Factory) Configuration() pion.Configuration {
	var servers []pion.ICEServer
	if len(f.cfg.STUNServers) > 0 {
		servers = append(servers, pion.ICEServer{URLs: f.cfg.STUNServers})
	}

	relayAvailable := len(f.cfg.TURNServers) > 0
	if relayAvailable {
		servers = append(servers, pion.ICEServer{
			URLs:       f.cfg.TURNServers,
			Username:   f.cfg.TURNUser,
			Credential: f.cfg.TURNPass,
		})
	}

	policy := pion.ICETransportPolicyAll
	if relayAvailable && (f.cfg.ForceRelay || (f.cfg.DetectRelay && utils.ShouldForceRelay())) {
		policy = pion.ICETransportPolicyRelay
	}

	return pion.Configuration{
		ICEServers:         servers,
		ICETransportPolicy: policy,
	}
}

// NewPeer creates a peer connection sending tracks. Without local tracks it
// offers to receive audio and video so the SDP always carries media sections.
func (f *Factory) NewPeer(tracks []pion.TrackLocal, h call.PeerHandlers) (call.Peer, error) {
	pc, err := f.api.NewPeerConnection(f.Configuration())
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	if len(tracks) == 0 {
		if err := addRecvOnlyTransceivers(pc); err != nil {
			pc.Close()
			return nil, err
		}
	}
	for _, track := range tracks {
		sender, err := pc.AddTrack(track)
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("add %s track: %w", track.Kind(), err)
		}
		go drainRTCP(sender)
	}

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil || h.OnICECandidate == nil {
			return
		}
		h.OnICECandidate(c.ToJSON())
	})

	pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		f.logger.Debug("remote track",
			slog.String("kind", track.Kind().String()),
			slog.String("codec", track.Codec().MimeType))
		if h.OnTrack != nil {
			h.OnTrack(call.RemoteTrack{
				ID:       track.ID(),
				StreamID: track.StreamID(),
				Kind:     track.Kind().String(),
				Codec:    track.Codec().MimeType,
			})
		}
		go drainRTP(track)
	})

	pc.OnConnectionStateChange(func(s pion.PeerConnectionState) {
		if h.OnConnectionState != nil {
			h.OnConnectionState(s)
		}
	})

	return pc, nil
}

func addRecvOnlyTransceivers(pc *pion.PeerConnection) error {
	for _, kind := range []pion.RTPCodecType{pion.RTPCodecTypeAudio, pion.RTPCodecTypeVideo} {
		if _, err := pc.AddTransceiverFromKind(kind, pion.RTPTransceiverInit{
			Direction: pion.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			return fmt.Errorf("add %s transceiver: %w", kind, err)
		}
	}
	return nil
}

// drainRTCP reads incoming RTCP so interceptors such as NACK keep working.
func drainRTCP(sender *pion.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// drainRTP consumes remote media. Rendering is not part of the client, but
// the receive buffers must keep moving.
func drainRTP(track *pion.TrackRemote) {
	for {
		if _, _, err := track.ReadRTP(); err != nil {
			return
		}
	}
}
