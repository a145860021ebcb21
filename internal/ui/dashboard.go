package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BioHazard786/huddle/internal/call"
	"github.com/BioHazard786/huddle/internal/client"
	"github.com/BioHazard786/huddle/internal/connection"
	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	opTimeout     = 15 * time.Second
	shownNotes    = 6
	shownChat     = 12
	sidePanelWide = 32
)

// Controller is the part of the client the dashboard drives.
type Controller interface {
	Snapshot(ctx context.Context) (client.Snapshot, error)
	Changes() <-chan struct{}
	JoinRoom(ctx context.Context, roomID string) error
	LeaveRoom(ctx context.Context) error
	RefreshUsers(ctx context.Context) error
	RefreshRoom(ctx context.Context, roomID string) error
	SendChat(ctx context.Context, text string) error
	StartCall(ctx context.Context, to string, kind protocol.MediaKind) error
	Accept(ctx context.Context) error
	Decline(ctx context.Context) error
	EndCall(ctx context.Context) error
}

type (
	changedMsg  struct{}
	snapshotMsg client.Snapshot
	resultMsg   struct {
		what string
		err  error
	}
)

// Dashboard is the bubbletea model behind `huddle connect`.
type Dashboard struct {
	ctl     Controller
	snap    client.Snapshot
	input   textinput.Model
	spinner spinner.Model

	status   string
	failed   bool
	width    int
	quitting bool
}

// NewDashboard creates the model.
func NewDashboard(ctl Controller) *Dashboard {
	in := textinput.New()
	in.Placeholder = "type a message or /help"
	in.Prompt = "› "
	in.CharLimit = 1000
	in.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &Dashboard{ctl: ctl, input: in, spinner: s}
}

// RunDashboard runs the dashboard on the alternate screen until the user
// quits.
func RunDashboard(ctl Controller) error {
	_, err := tea.NewProgram(NewDashboard(ctl), tea.WithAltScreen()).Run()
	return err
}

func (m *Dashboard) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.refresh(), m.waitChange())
}

func (m *Dashboard) waitChange() tea.Cmd {
	changes := m.ctl.Changes()
	return func() tea.Msg {
		<-changes
		return changedMsg{}
	}
}

func (m *Dashboard) refresh() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		s, err := m.ctl.Snapshot(ctx)
		if err != nil {
			return resultMsg{what: "refresh", err: err}
		}
		return snapshotMsg(s)
	}
}

func (m *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			line := m.input.Value()
			m.input.Reset()
			if strings.TrimSpace(line) == "" {
				return m, nil
			}
			cmd := m.execute(line)
			if m.quitting {
				return m, tea.Quit
			}
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(10, msg.Width-4)

	case changedMsg:
		return m, tea.Batch(m.refresh(), m.waitChange())

	case snapshotMsg:
		m.snap = client.Snapshot(msg)
		return m, nil

	case resultMsg:
		if msg.err != nil {
			m.status, m.failed = fmt.Sprintf("%s: %v", msg.what, msg.err), true
		} else if msg.what != "" {
			m.status, m.failed = msg.what, false
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// execute runs a line of input. Client calls block, so they run as commands.
func (m *Dashboard) execute(line string) tea.Cmd {
	c, err := ParseCommand(line)
	if err != nil {
		m.status, m.failed = err.Error(), true
		return nil
	}

	run := func(what string, fn func(ctx context.Context) error) tea.Cmd {
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()
			return resultMsg{what: what, err: fn(ctx)}
		}
	}

	switch c.Action {
	case ActChat:
		return run("", func(ctx context.Context) error { return m.ctl.SendChat(ctx, c.Arg) })
	case ActJoin:
		return run("joined "+c.Arg, func(ctx context.Context) error { return m.ctl.JoinRoom(ctx, c.Arg) })
	case ActLeave:
		return run("left room", m.ctl.LeaveRoom)
	case ActUsers:
		return run("refreshed users", m.ctl.RefreshUsers)
	case ActRooms:
		room := m.snap.CurrentRoom
		if room == "" {
			m.status, m.failed = "join a room first", true
			return nil
		}
		return run("refreshed "+room, func(ctx context.Context) error { return m.ctl.RefreshRoom(ctx, room) })
	case ActCall, ActVideo:
		kind := protocol.MediaAudio
		if c.Action == ActVideo {
			kind = protocol.MediaVideo
		}
		return run("calling "+c.Arg, func(ctx context.Context) error { return m.ctl.StartCall(ctx, c.Arg, kind) })
	case ActAccept:
		return run("call accepted", m.ctl.Accept)
	case ActDecline:
		return run("call declined", m.ctl.Decline)
	case ActHangup:
		return run("call ended", m.ctl.EndCall)
	case ActHelp:
		m.status, m.failed = HelpText, false
	case ActQuit:
		m.quitting = true
	}
	return nil
}

func (m *Dashboard) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	status := StatusView(m.snap.Connection)
	if st := m.snap.Connection.Status; st == connection.Connecting || st == connection.Reconnecting {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(HeaderStyle.Render("huddle") + "  " + BoldStyle.Render(m.snap.Username) + "  " + status + "\n")

	if banner := CallView(m.snap.Call); banner != "" && (m.snap.Call.State != call.Idle || m.snap.Call.Pending) {
		b.WriteString(CallBannerStyle.Render(banner) + "\n")
	}

	side := lipgloss.JoinVertical(lipgloss.Left,
		PanelStyle.Width(sidePanelWide).Render(m.roomsView()),
		PanelStyle.Width(sidePanelWide).Render(m.usersView()),
	)
	mainWidth := max(30, m.width-sidePanelWide-6)
	main := lipgloss.JoinVertical(lipgloss.Left,
		PanelStyle.Width(mainWidth).Render(m.chatView()),
		PanelStyle.Width(mainWidth).Render(m.notesView()),
	)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, side, main) + "\n")

	b.WriteString(m.input.View() + "\n")
	if m.status != "" {
		style := MutedStyle
		if m.failed {
			style = ErrorStyle
		}
		b.WriteString(style.Render(m.status) + "\n")
	}
	b.WriteString(FooterStyle.Render("/help for commands · ctrl+c to quit"))
	return b.String()
}

func (m *Dashboard) roomsView() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(IconRoom+" Rooms") + "\n")
	for _, r := range m.snap.Rooms {
		line := fmt.Sprintf("%s (%d)", r.Name, r.UserCount)
		switch r.ID {
		case m.snap.ConfirmedRoom:
			line = OwnStyle.Render("● " + line)
		case m.snap.CurrentRoom:
			line = WarningStyle.Render("◌ " + line)
		default:
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Dashboard) usersView() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("%s Online (%d)", IconUser, len(m.snap.Users))) + "\n")
	for _, u := range m.snap.Users {
		name := u.Username
		if name == m.snap.Username {
			name = OwnStyle.Render(name + " (you)")
		}
		b.WriteString("  " + name + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Dashboard) chatView() string {
	var b strings.Builder
	title := IconChat + " Chat"
	if m.snap.CurrentRoom != "" {
		title += " · " + m.snap.CurrentRoom
	}
	b.WriteString(TitleStyle.Render(title) + "\n")

	lines := m.snap.Chat
	if len(lines) > shownChat {
		lines = lines[len(lines)-shownChat:]
	}
	if len(lines) == 0 {
		b.WriteString(MutedStyle.Render("No messages yet"))
	}
	for _, l := range lines {
		sender := BoldStyle.Render(l.Sender)
		if l.Own {
			sender = OwnStyle.Render(l.Sender)
		}
		b.WriteString(fmt.Sprintf("%s %s: %s\n", MutedStyle.Render(l.Time.Local().Format("15:04")), sender, l.Text))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Dashboard) notesView() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Notifications") + "\n")
	notes := m.snap.Notifications
	if len(notes) > shownNotes {
		notes = notes[:shownNotes]
	}
	for _, n := range notes {
		b.WriteString(fmt.Sprintf("%s %s %s\n",
			MutedStyle.Render(n.Time.Local().Format("15:04:05")),
			SeverityIcon(n.Severity),
			SeverityStyle(n.Severity).Render(n.Message)))
	}
	return strings.TrimRight(b.String(), "\n")
}
