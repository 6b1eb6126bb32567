package admission

import (
	"errors"
	"fmt"
	"strings"
)

// Status описывает жизненный цикл заявки.
type Status string

const (
	StatusPending       Status = "PENDING"
	StatusPendingAccept Status = "PENDING_TERIMA"
	StatusPendingReject Status = "PENDING_TOLAK"
	StatusAccepted      Status = "LOLOS"
	StatusRejected      Status = "DITOLAK"
)

// Action описывает действие администратора над заявкой.
type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
	ActionCommit Action = "commit"
)

// ErrInvalidStatus сообщает о значении статуса вне допустимого набора.
var ErrInvalidStatus = errors.New("invalid application status")

// ErrInvalidAction сообщает о неизвестном действии.
var ErrInvalidAction = errors.New("invalid decision action")

// ParseStatus нормализует строку из хранилища или команды в Status.
func ParseStatus(value string) (Status, error) {
	normalized := Status(strings.ToUpper(strings.TrimSpace(value)))
	switch normalized {
	case StatusPending, StatusPendingAccept, StatusPendingReject, StatusAccepted, StatusRejected:
		return normalized, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
	}
}

// IsStaged сообщает, что по заявке есть отложенное решение.
func (s Status) IsStaged() bool {
	return s == StatusPendingAccept || s == StatusPendingReject
}

// IsTerminal сообщает, что решение по заявке зафиксировано.
func (s Status) IsTerminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Label возвращает подпись статуса для сообщений ревьюерам.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "⏳ Menunggu review"
	case StatusPendingAccept:
		return "🟡 Akan diterima (menunggu push)"
	case StatusPendingReject:
		return "🟠 Akan ditolak (menunggu push)"
	case StatusAccepted:
		return "✅ Lolos"
	case StatusRejected:
		return "❌ Ditolak"
	default:
		return string(s)
	}
}

// Transition описывает результат применения действия к текущему статусу.
type Transition struct {
	From          Status
	To            Status
	AlreadyStaged bool
	Override      bool
}

// Changed сообщает, меняет ли переход статус.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Note возвращает пометку для журнала аудита.
func (t Transition) Note() string {
	if t.Override {
		return "reversal from terminal " + string(t.From)
	}
	return ""
}

// Next вычисляет переход для accept/reject. Любая пара статус-действие
// отображается на определенную ячейку таблицы переходов.
func Next(current Status, action Action) (Transition, error) {
	var target Status
	switch action {
	case ActionAccept:
		target = StatusPendingAccept
	case ActionReject:
		target = StatusPendingReject
	default:
		return Transition{}, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	switch current {
	case StatusPending, StatusPendingAccept, StatusPendingReject:
		return Transition{From: current, To: target, AlreadyStaged: current == target}, nil
	case StatusAccepted, StatusRejected:
		return Transition{From: current, To: target, Override: true}, nil
	default:
		return Transition{}, fmt.Errorf("%w: %q", ErrInvalidStatus, current)
	}
}

// Finalize возвращает терминальный статус для отложенного решения.
func Finalize(staged Status) (Status, bool) {
	switch staged {
	case StatusPendingAccept:
		return StatusAccepted, true
	case StatusPendingReject:
		return StatusRejected, true
	default:
		return staged, false
	}
}
