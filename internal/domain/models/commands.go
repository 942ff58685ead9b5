package models

import "strings"

// CommandType enumerates supported operator command categories.
type CommandType string

const (
	CommandProduction CommandType = "prod"
	CommandReport     CommandType = "report"
	CommandHelp       CommandType = "help"
	CommandUnknown    CommandType = "unknown"
)

// Command represents a parsed operator instruction extracted from WhatsApp text.
type Command struct {
	Type CommandType
	Raw  string
	Args []string
}

// ParseCommand derives a Command instance from free-form text messages.
// Arguments keep their original casing since machine names are identifiers.
func ParseCommand(message string) Command {
	tokens := strings.Fields(strings.TrimSpace(message))
	cmd := Command{Raw: message}

	if len(tokens) == 0 {
		cmd.Type = CommandUnknown
		return cmd
	}

	head := strings.ToLower(strings.TrimPrefix(tokens[0], "/"))
	switch head {
	case string(CommandProduction), "producao", "produção":
		cmd.Type = CommandProduction
	case string(CommandReport), "relatorio", "relatório":
		cmd.Type = CommandReport
	case string(CommandHelp), "ajuda":
		cmd.Type = CommandHelp
	default:
		cmd.Type = CommandUnknown
	}

	if len(tokens) > 1 {
		cmd.Args = tokens[1:]
	}

	return cmd
}
