package ui

import (
	"fmt"
	"os"
	"time"

	"github.com/BioHazard786/huddle/internal/call"
	"github.com/BioHazard786/huddle/internal/connection"
	"github.com/BioHazard786/huddle/internal/notify"
	"github.com/BioHazard786/huddle/internal/utils"
	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	Primary    = lipgloss.Color("#22d3ee") // Cyan accent
	Secondary  = lipgloss.Color("#7C3AED") // Violet
	Success    = lipgloss.Color("#10B981") // Emerald
	Warning    = lipgloss.Color("#F59E0B") // Amber
	Error      = lipgloss.Color("#EF4444") // Red
	Muted      = lipgloss.Color("#6B7280") // Gray
	Foreground = lipgloss.Color("#F9FAFB") // Light gray
	Panel      = lipgloss.Color("#1F2937")
)

// Text styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	BoldStyle = lipgloss.NewStyle().
			Bold(true)

	OwnStyle = lipgloss.NewStyle().
			Foreground(Primary)
)

// Panel styles
var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			Background(Panel).
			Padding(0, 2)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Muted).
			Padding(0, 1)

	CallBannerStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(Secondary).
			Padding(0, 2)

	FooterStyle = lipgloss.NewStyle().
			Foreground(Muted)
)

var SpinnerStyle = lipgloss.NewStyle().Foreground(Primary)

// Icons
const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconInfo    = "ℹ️"
	IconRoom    = "🚪"
	IconUser    = "👤"
	IconConnect = "🔌"
	IconCall    = "📞"
	IconVideo   = "🎥"
	IconRinging = "🔔"
	IconChat    = "💬"
)

// SeverityStyle returns the style notifications of sev are drawn with.
func SeverityStyle(sev notify.Severity) lipgloss.Style {
	switch sev {
	case notify.Success:
		return SuccessStyle
	case notify.Warning:
		return WarningStyle
	case notify.Error:
		return ErrorStyle
	default:
		return lipgloss.NewStyle()
	}
}

// SeverityIcon returns the icon shown next to a notification.
func SeverityIcon(sev notify.Severity) string {
	switch sev {
	case notify.Success:
		return IconSuccess
	case notify.Warning:
		return IconWarning
	case notify.Error:
		return IconError
	default:
		return IconInfo
	}
}

// StatusView renders the connection status.
func StatusView(s connection.State) string {
	switch s.Status {
	case connection.Connected:
		return SuccessStyle.Render("● connected")
	case connection.Connecting:
		return WarningStyle.Render("◌ connecting")
	case connection.Reconnecting:
		return WarningStyle.Render(fmt.Sprintf("◌ reconnecting (attempt %d)", s.ReconnectAttempt+1))
	default:
		return ErrorStyle.Render("○ disconnected")
	}
}

// CallView describes a call session in one line. Idle sessions render empty.
func CallView(s call.Session) string {
	icon := IconCall
	if s.Media == "video" {
		icon = IconVideo
	}
	switch s.State {
	case call.Ringing:
		return fmt.Sprintf("%s Incoming %s call from %s  (/accept or /decline)", IconRinging, s.Media, BoldStyle.Render(s.Counterpart))
	case call.Outgoing:
		return fmt.Sprintf("%s Calling %s...", icon, BoldStyle.Render(s.Counterpart))
	case call.Active:
		elapsed := "0:00"
		if !s.Since.IsZero() {
			elapsed = utils.FormatDuration(time.Since(s.Since))
		}
		return fmt.Sprintf("%s In call with %s  %s  %s", icon, BoldStyle.Render(s.Counterpart), elapsed,
			MutedStyle.Render(fmt.Sprintf("(%d remote tracks)", len(s.RemoteTracks))))
	}
	if s.Pending {
		return MutedStyle.Render("Opening camera and microphone...")
	}
	return ""
}

func PrintError(msg string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render(IconError), ErrorStyle.Render(msg))
}

func PrintErrorf(format string, args ...any) {
	PrintError(fmt.Sprintf(format, args...))
}

func PrintWarning(msg string) {
	fmt.Printf("%s %s\n", WarningStyle.Render(IconWarning), WarningStyle.Render(msg))
}

func PrintSuccess(msg string) {
	fmt.Printf("%s %s\n", SuccessStyle.Render(IconSuccess), msg)
}

func PrintSuccessf(format string, args ...any) {
	PrintSuccess(fmt.Sprintf(format, args...))
}

func PrintInfo(msg string) {
	fmt.Printf("%s %s\n", IconInfo, msg)
}

func PrintInfof(format string, args ...any) {
	PrintInfo(fmt.Sprintf(format, args...))
}

// PrintNotification prints one notification the way the dashboard shows it.
func PrintNotification(n notify.Notification) {
	fmt.Printf("%s %s %s\n",
		MutedStyle.Render(n.Time.Format("15:04:05")),
		SeverityIcon(n.Severity),
		SeverityStyle(n.Severity).Render(n.Message))
}
