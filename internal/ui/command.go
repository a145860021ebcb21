package ui

import (
	"errors"
	"fmt"
	"strings"
)

// Action is a dashboard command.
type Action int

const (
	ActChat Action = iota
	ActJoin
	ActLeave
	ActUsers
	ActRooms
	ActCall
	ActVideo
	ActAccept
	ActDecline
	ActHangup
	ActHelp
	ActQuit
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingArgument = errors.New("missing argument")
)

// Command is one parsed line of dashboard input.
type Command struct {
	Action Action
	Arg    string
}

var commands = map[string]struct {
	action  Action
	needArg string
}{
	"/join":    {ActJoin, "room"},
	"/leave":   {ActLeave, ""},
	"/users":   {ActUsers, ""},
	"/rooms":   {ActRooms, ""},
	"/call":    {ActCall, "user"},
	"/video":   {ActVideo, "user"},
	"/accept":  {ActAccept, ""},
	"/decline": {ActDecline, ""},
	"/hangup":  {ActHangup, ""},
	"/help":    {ActHelp, ""},
	"/quit":    {ActQuit, ""},
}

// HelpText lists the dashboard commands.
const HelpText = "/join <room>  /leave  /users  /rooms  /call <user>  /video <user>  /accept  /decline  /hangup  /quit"

// ParseCommand turns a line of input into a Command. Lines that do not start
// with a slash are chat.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return Command{Action: ActChat, Arg: line}, nil
	}

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	def, ok := commands[strings.ToLower(name)]
	if !ok {
		return Command{}, fmt.Errorf("%w %s", ErrUnknownCommand, name)
	}
	if def.needArg != "" && arg == "" {
		return Command{}, fmt.Errorf("%w: %s <%s>", ErrMissingArgument, name, def.needArg)
	}
	return Command{Action: def.action, Arg: arg}, nil
}
