// Package command разбирает текстовые команды ревьюеров и исполняет их
// через сервис заявок независимо от транспорта.
package command

import (
	"errors"
	"regexp"
	"strings"

	"osis_bot/internal/admission"
)

// Name задает каноничное имя команды.
type Name string

const (
	NameAccept   Name = "accept"
	NameReject   Name = "reject"
	NameCommit   Name = "commit"
	NameStatus   Name = "status"
	NameSearch   Name = "search"
	NameDetail   Name = "detail"
	NameList     Name = "list"
	NameDelete   Name = "delete"
	NameDivision Name = "division"
	NameHelp     Name = "help"
)

var (
	// ErrNotCommand сообщает, что текст не начинается с "/".
	ErrNotCommand = errors.New("not a command")
	// ErrUnknownCommand сообщает о неизвестной команде.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrMissingTicket сообщает об отсутствующем или некорректном тикете.
	ErrMissingTicket = errors.New("ticket is required")
	// ErrMissingArgument сообщает об отсутствующем обязательном аргументе.
	ErrMissingArgument = errors.New("argument is required")
)

var ticketPattern = regexp.MustCompile(`(?i)^[A-Z]{2,10}\d{2}-\d{6}-[A-Z]$`)

var aliases = map[string]Name{
	"/terima": NameAccept,
	"/accept": NameAccept,
	"/tolak":  NameReject,
	"/reject": NameReject,
	"/push":   NameCommit,
	"/commit": NameCommit,
	"/status": NameStatus,
	"/cari":   NameSearch,
	"/search": NameSearch,
	"/detail": NameDetail,
	"/list":   NameList,
	"/hapus":  NameDelete,
	"/delete": NameDelete,
	"/divisi": NameDivision,
	"/help":   NameHelp,
	"/start":  NameHelp,
}

var needsTicket = map[Name]bool{
	NameAccept:   true,
	NameReject:   true,
	NameStatus:   true,
	NameDetail:   true,
	NameDelete:   true,
	NameDivision: true,
}

// Command хранит разобранную команду.
type Command struct {
	Name Name
	// Keyword хранит введенное имя команды без упоминания бота.
	Keyword string
	Ticket  string
	Args    string
	// Division и Reason заполняются для /divisi.
	Division string
	Reason   string
	Statuses []admission.Status
}

// Parse разбирает текст сообщения. Возвращенный Command заполнен
// настолько, насколько удалось разобрать, даже вместе с ошибкой.
func Parse(text string) (Command, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Command{}, ErrNotCommand
	}
	keyword, rest := splitFirst(text)
	if idx := strings.Index(keyword, "@"); idx != -1 {
		keyword = keyword[:idx]
	}
	keyword = strings.ToLower(keyword)

	cmd := Command{Keyword: keyword}
	name, ok := aliases[keyword]
	if !ok {
		return cmd, ErrUnknownCommand
	}
	cmd.Name = name

	if needsTicket[name] {
		ticket, tail := splitFirst(rest)
		if !ticketPattern.MatchString(ticket) {
			return cmd, ErrMissingTicket
		}
		cmd.Ticket = admission.NormalizeTicket(ticket)
		rest = tail
	}
	cmd.Args = rest

	switch name {
	case NameSearch:
		if cmd.Args == "" {
			return cmd, ErrMissingArgument
		}
	case NameDivision:
		division, reason, _ := strings.Cut(cmd.Args, "|")
		cmd.Division = strings.TrimSpace(division)
		cmd.Reason = strings.TrimSpace(reason)
		if cmd.Division == "" {
			return cmd, ErrMissingArgument
		}
	case NameList:
		for _, field := range strings.Fields(cmd.Args) {
			status, err := parseStatusFilter(field)
			if err != nil {
				return cmd, err
			}
			cmd.Statuses = append(cmd.Statuses, status)
		}
	}
	return cmd, nil
}

func splitFirst(text string) (string, string) {
	text = strings.TrimSpace(text)
	idx := strings.IndexAny(text, " \t\n")
	if idx == -1 {
		return text, ""
	}
	return text[:idx], strings.TrimSpace(text[idx+1:])
}

func parseStatusFilter(value string) (admission.Status, error) {
	switch strings.ToLower(value) {
	case "pending", "baru":
		return admission.StatusPending, nil
	case "terima", "accept":
		return admission.StatusPendingAccept, nil
	case "tolak", "reject":
		return admission.StatusPendingReject, nil
	case "lolos", "accepted":
		return admission.StatusAccepted, nil
	case "ditolak", "rejected":
		return admission.StatusRejected, nil
	default:
		return admission.ParseStatus(value)
	}
}
