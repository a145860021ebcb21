// Package call negotiates at most one audio/video call at a time over the
// presence connection.
//
// The Machine is confined to the event loop. Media acquisition runs on its
// own goroutine and resumes on the loop; every resumed step and every peer
// callback checks the session epoch first and backs out if the session has
// moved on in the meantime.
package call

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BioHazard786/huddle/internal/notify"
	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/pion/webrtc/v4"
)

// Config wires a Machine.
type Config struct {
	Sender Sender
	Media  MediaSource
	Peers  PeerFactory
	Notes  *notify.Log
	// Post schedules a task on the event loop the machine is confined to.
	Post   func(func()) bool
	Logger *slog.Logger
}

// Machine is the call signaling state machine.
type Machine struct {
	sender Sender
	media  MediaSource
	peers  PeerFactory
	notes  *notify.Log
	post   func(func()) bool
	logger *slog.Logger

	state       State
	counterpart string
	kind        protocol.MediaKind
	since       time.Time

	// epoch changes whenever the session is torn down. Work started under
	// an older epoch is discarded when it resumes.
	epoch         uint64
	pending       bool
	cancelAcquire context.CancelFunc

	peer       Peer
	local      LocalMedia
	remote     []RemoteTrack
	candidates []webrtc.ICECandidateInit

	onChange []func(Session)
	now      func() time.Time
}

// NewMachine creates an idle machine.
func NewMachine(cfg Config) *Machine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Machine{
		sender: cfg.Sender,
		media:  cfg.Media,
		peers:  cfg.Peers,
		notes:  cfg.Notes,
		post:   cfg.Post,
		logger: cfg.Logger.With(slog.String("component", "call")),
		now:    time.Now,
	}
}

// OnChange registers an observer called after every state change.
func (m *Machine) OnChange(fn func(Session)) {
	m.onChange = append(m.onChange, fn)
}

// Session returns a snapshot of the current call.
func (m *Machine) Session() Session {
	return Session{
		State:         m.state,
		Counterpart:   m.counterpart,
		Media:         m.kind,
		Pending:       m.pending,
		HasLocalMedia: m.local != nil,
		HasPeer:       m.peer != nil,
		RemoteTracks:  append([]RemoteTrack(nil), m.remote...),
		Since:         m.since,
	}
}

// StartCall acquires local media for kind and asks to to join a call. done
// is called on the loop once the request is sent or the attempt fails.
func (m *Machine) StartCall(to string, kind protocol.MediaKind, done func(error)) {
	done = orNop(done)
	to = strings.TrimSpace(to)

	switch {
	case to == "":
		done(newError("start call", to, ErrNoTarget))
		return
	case to == m.sender.Username():
		done(newError("start call", to, ErrSelfCall))
		return
	case m.state != Idle || m.pending:
		done(newError("start call", to, ErrBusy))
		return
	}
	if !kind.Valid() {
		kind = protocol.MediaAudio
	}

	m.counterpart = to
	m.kind = kind
	m.acquire(kind, func(local LocalMedia, err error) {
		if err != nil {
			m.failMedia("start call", err)
			done(wrapError("start call", to, ErrMediaUnavailable, err))
			return
		}

		m.local = local
		m.sender.Send(protocol.New(protocol.KindCallRequest, protocol.CallRequestPayload{
			To:   to,
			From: m.sender.Username(),
			Kind: kind,
			Type: kind,
		}))
		m.notes.Infof("Calling %s...", to)
		m.setState(Outgoing)
		done(nil)
	}, func(err error) {
		done(newError("start call", to, err))
	})
}

// Accept answers the ringing call: local media is acquired, the caller is
// told, and a peer connection is prepared for the caller's offer.
func (m *Machine) Accept(done func(error)) {
	done = orNop(done)
	if m.state != Ringing || m.pending {
		done(newError("accept", "", ErrNoIncomingCall))
		return
	}

	caller := m.counterpart
	m.acquire(m.kind, func(local LocalMedia, err error) {
		if err != nil {
			m.sender.Send(protocol.New(protocol.KindCallResponse, protocol.CallResponsePayload{To: caller, Accepted: false}))
			m.failMedia("accept", err)
			done(wrapError("accept", caller, ErrMediaUnavailable, err))
			return
		}

		m.local = local
		m.sender.Send(protocol.New(protocol.KindCallResponse, protocol.CallResponsePayload{To: caller, Accepted: true}))

		if err := m.createPeer(); err != nil {
			m.sender.Send(protocol.New(protocol.KindCallHangup, protocol.HangupPayload{To: caller}))
			m.notes.Errorf("Could not set up the call with %s", caller)
			m.reset()
			done(wrapError("accept", caller, ErrNegotiation, err))
			return
		}

		m.setState(Active)
		done(nil)
	}, func(err error) {
		done(newError("accept", caller, err))
	})
}

// Decline rejects the ringing call.
func (m *Machine) Decline() error {
	if m.state != Ringing || m.pending {
		return newError("decline", "", ErrNoIncomingCall)
	}

	m.sender.Send(protocol.New(protocol.KindCallResponse, protocol.CallResponsePayload{To: m.counterpart, Accepted: false}))
	m.reset()
	return nil
}

// EndCall hangs up. Without a call it does nothing.
func (m *Machine) EndCall() {
	if m.state == Idle && !m.pending {
		return
	}

	if m.state != Idle {
		m.notes.Infof("Call with %s ended", m.counterpart)
	}
	m.hangup()
}

// hangup tells the counterpart, if a call was signaled, and resets.
func (m *Machine) hangup() {
	if m.state != Idle {
		m.sender.Send(protocol.New(protocol.KindCallHangup, protocol.HangupPayload{To: m.counterpart}))
	}
	m.reset()
}

// CallRequest handles an inbound call. While another call is in progress it
// is declined on the caller's behalf.
func (m *Machine) CallRequest(from string, p protocol.CallRequestPayload) {
	caller := p.From
	if caller == "" {
		caller = from
	}
	if caller == "" {
		m.logger.Warn("call request without caller")
		return
	}

	if m.state != Idle || m.pending {
		m.sender.Send(protocol.New(protocol.KindCallResponse, protocol.CallResponsePayload{To: caller, Accepted: false}))
		m.notes.Warnf("Missed call from %s", caller)
		return
	}

	m.counterpart = caller
	m.kind = p.Media()
	m.notes.Infof("Incoming %s call from %s", m.kind, caller)
	m.setState(Ringing)
}

// CallResponse handles the callee's answer to our request.
func (m *Machine) CallResponse(from string, p protocol.CallResponsePayload) {
	if !m.fromCounterpart("call response", from) {
		return
	}

	switch {
	case m.pending && m.state == Idle && !p.Accepted:
		// Declined before our media was ready.
		m.notes.Warnf("%s declined the call", m.counterpart)
		m.reset()

	case m.state != Outgoing:
		m.logger.Debug("ignoring call response", slog.String("state", m.state.String()))

	case !p.Accepted:
		m.notes.Warnf("%s declined the call", m.counterpart)
		m.reset()

	default:
		if err := m.createPeer(); err != nil {
			m.fail("create peer", err)
			return
		}
		offer, err := m.localDescription(m.peer.CreateOffer(nil))
		if err != nil {
			m.fail("create offer", err)
			return
		}
		m.sender.Send(protocol.New(protocol.KindOffer, protocol.SessionDescriptionPayload{
			To:   m.counterpart,
			Type: offer.Type.String(),
			SDP:  offer.SDP,
		}))
	}
}

// Offer applies the counterpart's offer and replies with an answer.
func (m *Machine) Offer(from string, p protocol.SessionDescriptionPayload) {
	if m.peer == nil {
		m.logger.Info("offer without peer connection, ignoring", slog.String("from", from))
		return
	}
	if !m.fromCounterpart("offer", from) {
		return
	}

	if err := m.applyRemote(webrtc.SDPTypeOffer, p.SDP); err != nil {
		m.fail("apply offer", err)
		return
	}
	answer, err := m.localDescription(m.peer.CreateAnswer(nil))
	if err != nil {
		m.fail("create answer", err)
		return
	}
	m.sender.Send(protocol.New(protocol.KindAnswer, protocol.SessionDescriptionPayload{
		To:   m.counterpart,
		Type: answer.Type.String(),
		SDP:  answer.SDP,
	}))
}

// Answer applies the counterpart's answer to our offer.
func (m *Machine) Answer(from string, p protocol.SessionDescriptionPayload) {
	if m.peer == nil {
		m.logger.Info("answer without peer connection, ignoring", slog.String("from", from))
		return
	}
	if !m.fromCounterpart("answer", from) {
		return
	}

	if err := m.applyRemote(webrtc.SDPTypeAnswer, p.SDP); err != nil {
		m.fail("apply answer", err)
		return
	}
	if m.state == Outgoing {
		m.notes.Successf("Call with %s connected", m.counterpart)
		m.setState(Active)
	}
}

// ICECandidate adds a trickled candidate. Candidates that arrive before the
// remote description are held until it is applied.
func (m *Machine) ICECandidate(from string, p protocol.ICECandidatePayload) {
	if m.peer == nil {
		m.logger.Debug("dropping candidate without peer connection")
		return
	}
	if !m.fromCounterpart("candidate", from) {
		return
	}

	c := webrtc.ICECandidateInit{
		Candidate:        p.Candidate,
		SDPMid:           p.SDPMid,
		SDPMLineIndex:    p.SDPMLineIndex,
		UsernameFragment: p.UsernameFragment,
	}
	if m.peer.RemoteDescription() == nil {
		m.candidates = append(m.candidates, c)
		return
	}
	if err := m.peer.AddICECandidate(c); err != nil {
		m.logger.Warn("add ICE candidate failed", slog.Any("error", err))
	}
}

// Hangup handles the counterpart ending the call.
func (m *Machine) Hangup(from string, _ protocol.HangupPayload) {
	if m.state == Idle && !m.pending {
		return
	}
	if !m.fromCounterpart("hangup", from) {
		return
	}

	if m.state == Ringing {
		m.notes.Infof("Missed call from %s", m.counterpart)
	} else {
		m.notes.Infof("%s ended the call", m.counterpart)
	}
	m.reset()
}

// acquire runs the media source off the loop and resumes with ok, or with
// cancelled when the session changed while waiting.
func (m *Machine) acquire(kind protocol.MediaKind, ok func(LocalMedia, error), cancelled func(error)) {
	m.pending = true
	ep := m.epoch
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelAcquire = cancel
	m.emit()

	media := m.media
	go func() {
		local, err := media.Acquire(ctx, kind)
		resumed := m.post(func() {
			if ep != m.epoch {
				releaseMedia(local)
				cancelled(ErrCancelled)
				return
			}
			cancel()
			m.pending = false
			m.cancelAcquire = nil
			ok(local, err)
		})
		if !resumed {
			cancel()
			releaseMedia(local)
		}
	}()
}

func (m *Machine) createPeer() error {
	if m.peer != nil {
		return nil
	}

	var tracks []webrtc.TrackLocal
	if m.local != nil {
		tracks = m.local.Tracks()
	}

	ep := m.epoch
	peer, err := m.peers.NewPeer(tracks, PeerHandlers{
		OnICECandidate: func(c webrtc.ICECandidateInit) {
			m.post(func() {
				if ep != m.epoch || m.state == Idle {
					return
				}
				m.sender.Send(protocol.New(protocol.KindICECandidate, protocol.ICECandidatePayload{
					To:               m.counterpart,
					Candidate:        c.Candidate,
					SDPMid:           c.SDPMid,
					SDPMLineIndex:    c.SDPMLineIndex,
					UsernameFragment: c.UsernameFragment,
				}))
			})
		},
		OnTrack: func(t RemoteTrack) {
			m.post(func() {
				if ep != m.epoch {
					return
				}
				m.remote = append(m.remote, t)
				m.emit()
			})
		},
		OnConnectionState: func(s webrtc.PeerConnectionState) {
			m.post(func() {
				if ep != m.epoch {
					return
				}
				m.logger.Debug("peer connection state", slog.String("state", s.String()))
				if s == webrtc.PeerConnectionStateFailed {
					m.notes.Errorf("Media connection with %s failed", m.counterpart)
					m.hangup()
				}
			})
		},
	})
	if err != nil {
		return err
	}
	m.peer = peer
	m.emit()
	return nil
}

func (m *Machine) applyRemote(typ webrtc.SDPType, sdp string) error {
	if err := m.peer.SetRemoteDescription(webrtc.SessionDescription{Type: typ, SDP: sdp}); err != nil {
		return err
	}

	held := m.candidates
	m.candidates = nil
	for _, c := range held {
		if err := m.peer.AddICECandidate(c); err != nil {
			m.logger.Warn("add held ICE candidate failed", slog.Any("error", err))
		}
	}
	return nil
}

func (m *Machine) localDescription(desc webrtc.SessionDescription, err error) (webrtc.SessionDescription, error) {
	if err != nil {
		return desc, err
	}
	if err := m.peer.SetLocalDescription(desc); err != nil {
		return desc, err
	}
	return desc, nil
}

// fromCounterpart reports whether an inbound signal belongs to this session.
// Signals without a stamped sender are trusted.
func (m *Machine) fromCounterpart(what, from string) bool {
	if from == "" || from == m.counterpart {
		return true
	}
	m.logger.Debug("ignoring signal from a different peer",
		slog.String("signal", what),
		slog.String("from", from),
		slog.String("counterpart", m.counterpart))
	return false
}

func (m *Machine) failMedia(op string, err error) {
	m.logger.Warn("media acquisition failed", slog.String("op", op), slog.Any("error", err))
	m.notes.Errorf("Could not access camera or microphone")
	m.reset()
}

// fail ends a call whose negotiation broke, telling the counterpart. It adds
// exactly one notification.
func (m *Machine) fail(op string, err error) {
	m.logger.Warn("negotiation failed", slog.String("op", op), slog.Any("error", err))
	m.notes.Errorf("Call with %s failed", m.counterpart)
	m.hangup()
}

// reset releases every resource of the session and returns to Idle.
func (m *Machine) reset() {
	m.epoch++
	if m.cancelAcquire != nil {
		m.cancelAcquire()
		m.cancelAcquire = nil
	}
	m.pending = false

	if m.peer != nil {
		if err := m.peer.Close(); err != nil {
			m.logger.Debug("close peer", slog.Any("error", err))
		}
		m.peer = nil
	}
	releaseMedia(m.local)
	m.local = nil
	m.remote = nil
	m.candidates = nil
	m.counterpart = ""
	m.kind = ""

	m.setState(Idle)
}

func (m *Machine) setState(s State) {
	if m.state != s {
		m.state = s
		m.since = m.now()
	}
	m.emit()
}

func (m *Machine) emit() {
	if len(m.onChange) == 0 {
		return
	}
	snap := m.Session()
	for _, fn := range m.onChange {
		fn(snap)
	}
}

func releaseMedia(local LocalMedia) {
	if local != nil {
		local.Close()
	}
}

func orNop(fn func(error)) func(error) {
	if fn == nil {
		return func(error) {}
	}
	return fn
}
