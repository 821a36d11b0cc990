package delivery

import "strings"

// Command is the route an event's text takes through the dispatcher.
type Command int

const (
	CommandText Command = iota
	CommandStart
	CommandHelp
	CommandStatus
)

func (c Command) String() string {
	switch c {
	case CommandStart:
		return "start"
	case CommandHelp:
		return "help"
	case CommandStatus:
		return "status"
	default:
		return "text"
	}
}

// Classify maps message text to a Command by prefix, so "/start@my_bot" and
// "/help me" are commands too. Anything else is free text for generation.
func Classify(text string) Command {
	switch {
	case strings.HasPrefix(text, "/start"):
		return CommandStart
	case strings.HasPrefix(text, "/help"):
		return CommandHelp
	case strings.HasPrefix(text, "/status"):
		return CommandStatus
	default:
		return CommandText
	}
}
