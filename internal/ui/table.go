package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/BioHazard786/huddle/internal/presence"
	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Color.Header = text.Colors{text.FgCyan, text.Bold}
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	return t
}

// UsersTable renders the online users directory, marking self.
func UsersTable(users []protocol.User, self string) string {
	if len(users) == 0 {
		return MutedStyle.Render("No users online")
	}

	t := newTable()
	t.AppendHeader(table.Row{"#", "User", "Status", "Room"})
	for i, u := range users {
		name := u.Username
		if name == self {
			name += " (you)"
		}
		status := string(u.Status)
		if status == "" {
			status = string(protocol.StatusOnline)
		}
		room := u.CurrentRoom
		if room == "" {
			room = "-"
		}
		t.AppendRow(table.Row{i + 1, name, status, room})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d online", len(users)), "", ""})
	return t.Render()
}

// RoomsTable renders the room registry, marking the current room.
func RoomsTable(rooms []presence.Room, current string) string {
	if len(rooms) == 0 {
		return MutedStyle.Render("No rooms")
	}

	t := newTable()
	t.AppendHeader(table.Row{"Room", "Name", "Users", "Members", "Description"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, WidthMax: 30},
		{Number: 5, WidthMax: 40},
	})
	for _, r := range rooms {
		id := r.ID
		if id == current {
			id = "▶ " + id
		}
		names := make([]string, 0, len(r.Users))
		for _, u := range r.Users {
			names = append(names, u.Username)
		}
		t.AppendRow(table.Row{id, r.Name, r.UserCount, strings.Join(names, ", "), r.Description})
	}
	return t.Render()
}

// RenderUsers writes UsersTable to w.
func RenderUsers(w io.Writer, users []protocol.User, self string) {
	fmt.Fprintln(w, UsersTable(users, self))
}

// RenderRooms writes RoomsTable to w.
func RenderRooms(w io.Writer, rooms []presence.Room, current string) {
	fmt.Fprintln(w, RoomsTable(rooms, current))
}
