package admission

import (
	"errors"
	"time"
)

var (
	// ErrNotFound сообщает, что тикет не найден.
	ErrNotFound = errors.New("application not found")
	// ErrDuplicateTicket сообщает о конфликте уникального тикета.
	ErrDuplicateTicket = errors.New("ticket already exists")
	// ErrConcurrentUpdate сообщает, что статус изменился между чтением и записью.
	ErrConcurrentUpdate = errors.New("application status changed concurrently")
)

// Application хранит одну заявку кандидата.
type Application struct {
	Ticket string `json:"ticket" db:"ticket"`
	Status Status `json:"status" db:"status"`

	FullName   string `json:"full_name" db:"full_name"`
	NickName   string `json:"nick_name" db:"nick_name"`
	Class      string `json:"class" db:"class"`
	NIS        string `json:"nis" db:"nis"`
	Gender     string `json:"gender" db:"gender"`
	BirthPlace string `json:"birth_place" db:"birth_place"`
	BirthDate  string `json:"birth_date" db:"birth_date"`
	Phone      string `json:"phone" db:"phone"`
	Email      string `json:"email" db:"email"`
	Instagram  string `json:"instagram" db:"instagram"`
	Address    string `json:"address" db:"address"`
	Motivation string `json:"motivation" db:"motivation"`
	Photo      string `json:"photo" db:"photo"`

	DecisionReason   string     `json:"decision_reason,omitempty" db:"decision_reason"`
	DecisionDivision string     `json:"decision_division,omitempty" db:"decision_division"`
	CommittedAt      *time.Time `json:"committed_at,omitempty" db:"committed_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	UpdatedBy string    `json:"updated_by,omitempty" db:"updated_by"`

	Organizations []Organization   `json:"organizations,omitempty" db:"-"`
	Achievements  []Achievement    `json:"achievements,omitempty" db:"-"`
	Divisions     []DivisionChoice `json:"divisions,omitempty" db:"-"`
}

// Organization описывает опыт участия в организации.
type Organization struct {
	Name        string `json:"name" db:"name"`
	Position    string `json:"position" db:"position"`
	Period      string `json:"period" db:"period"`
	Certificate string `json:"certificate,omitempty" db:"certificate"`
}

// Achievement описывает достижение кандидата.
type Achievement struct {
	Name        string `json:"name" db:"name"`
	Level       string `json:"level" db:"level"`
	Year        string `json:"year" db:"year"`
	Certificate string `json:"certificate,omitempty" db:"certificate"`
}

// DivisionChoice хранит выбранную дивизию с обоснованием.
type DivisionChoice struct {
	Priority int    `json:"priority" db:"priority"`
	Division string `json:"division" db:"division"`
	Reason   string `json:"reason" db:"reason"`
}

// AuditLogEntry представляет неизменяемую запись журнала смены статусов.
type AuditLogEntry struct {
	ID             int64     `json:"id" db:"id"`
	Ticket         string    `json:"ticket" db:"ticket"`
	Action         Action    `json:"action" db:"action"`
	PreviousStatus Status    `json:"previous_status" db:"previous_status"`
	NewStatus      Status    `json:"new_status" db:"new_status"`
	Reason         string    `json:"reason" db:"reason"`
	Actor          string    `json:"actor" db:"actor"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

func (a Application) clone() Application {
	out := a
	if a.CommittedAt != nil {
		committed := *a.CommittedAt
		out.CommittedAt = &committed
	}
	out.Organizations = append([]Organization(nil), a.Organizations...)
	out.Achievements = append([]Achievement(nil), a.Achievements...)
	out.Divisions = append([]DivisionChoice(nil), a.Divisions...)
	return out
}
