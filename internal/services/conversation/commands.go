package conversation

import (
	"regexp"
	"strings"
)

const (
	cmdNone    = ""
	cmdTrack   = "track"
	cmdList    = "list"
	cmdHistory = "history"
	cmdHelp    = "help"
	cmdCancel  = "cancel"
)

type command struct {
	name string
	args []string
	// raw is the trimmed payload, used as courier or AWB token when the
	// message is not a command.
	raw string
}

func parse(payload string) command {
	raw := strings.TrimSpace(payload)
	fields := strings.Fields(strings.ToLower(raw))
	if len(fields) == 0 {
		return command{raw: raw}
	}
	switch fields[0] {
	case cmdTrack, cmdList, cmdHelp, cmdCancel:
		if len(fields) == 1 {
			return command{name: fields[0], raw: raw}
		}
	case cmdHistory:
		return command{name: cmdHistory, args: fields[1:], raw: raw}
	case "menu", "hi", "hello":
		if len(fields) == 1 {
			return command{name: cmdHelp, raw: raw}
		}
	}
	return command{name: cmdNone, raw: raw}
}

var awbPattern = regexp.MustCompile(`^[A-Z0-9]{6,32}$`)

// normalizeAWB upper-cases the token and reports whether it looks like an
// airway bill number.
func normalizeAWB(token string) (string, bool) {
	awb := strings.ToUpper(strings.TrimSpace(token))
	return awb, awbPattern.MatchString(awb)
}
