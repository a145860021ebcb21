// Package chat keeps the conversation of the room the client is in.
package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/BioHazard786/huddle/internal/utils"
)

// DefaultCapacity is the number of lines kept per room visit.
const DefaultCapacity = 100

var (
	ErrNotInRoom = errors.New("not in a room")
	ErrEmpty     = errors.New("message is empty")
)

// Line is one chat message.
type Line struct {
	RoomID string
	Sender string
	Text   string
	Time   time.Time
	Own    bool
}

// Sender is the outbound path.
type Sender interface {
	Send(*protocol.Envelope) error
	Username() string
}

// Transcript is confined to the event loop.
type Transcript struct {
	sender Sender
	room   func() string
	lines  *utils.RingBuffer[Line]
	now    func() time.Time
}

// NewTranscript creates a transcript for the room reported by room.
func NewTranscript(sender Sender, room func() string, capacity int) *Transcript {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Transcript{
		sender: sender,
		room:   room,
		lines:  utils.NewRingBuffer[Line](capacity),
		now:    time.Now,
	}
}

// Send posts text to the current room.
func (t *Transcript) Send(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmpty
	}
	room := t.room()
	if room == "" {
		return ErrNotInRoom
	}
	return t.sender.Send(protocol.New(protocol.KindChat, protocol.ChatPayload{RoomID: room, Content: text}))
}

// Message records an inbound line. Lines for other rooms are ignored.
func (t *Transcript) Message(sender string, sentAt time.Time, p protocol.ChatPayload) {
	room := t.room()
	if room == "" || (p.RoomID != "" && p.RoomID != room) {
		return
	}
	if sentAt.IsZero() {
		sentAt = t.now()
	}
	t.lines.Push(Line{
		RoomID: room,
		Sender: sender,
		Text:   p.Content,
		Time:   sentAt,
		Own:    sender != "" && sender == t.sender.Username(),
	})
}

// Reset clears the transcript. It is called when the room changes.
func (t *Transcript) Reset(string) {
	t.lines.Reset()
}

// Lines returns the transcript, oldest first.
func (t *Transcript) Lines() []Line {
	return t.lines.Snapshot()
}
