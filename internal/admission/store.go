package admission

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Filter ограничивает выборку заявок.
type Filter struct {
	Statuses []Status
	Keyword  string
	Limit    int
}

// StatusChange описывает запись нового статуса и сопутствующей записи аудита.
// Запись применяется только если текущий статус совпадает с From.
type StatusChange struct {
	Ticket    string
	From      Status
	To        Status
	Reason    string
	Division  string
	Actor     string
	Committed bool
	At        time.Time
	Audit     *AuditLogEntry
}

// Store хранит заявки, дочерние коллекции и журнал аудита.
type Store interface {
	Create(ctx context.Context, app Application) error
	Get(ctx context.Context, ticket string) (Application, error)
	List(ctx context.Context, filter Filter) ([]Application, error)
	ApplyChange(ctx context.Context, change StatusChange) error
	AddDivision(ctx context.Context, ticket string, choice DivisionChoice, actor string, at time.Time) error
	Delete(ctx context.Context, ticket string) error
	AuditLog(ctx context.Context, ticket string) ([]AuditLogEntry, error)
}

// MemoryStore хранит заявки в памяти, используется без DATABASE_URL.
type MemoryStore struct {
	mu      sync.RWMutex
	apps    map[string]Application
	audit   map[string][]AuditLogEntry
	auditID int64
}

// NewMemoryStore создает хранилище заявок в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		apps:  make(map[string]Application),
		audit: make(map[string][]AuditLogEntry),
	}
}

func (s *MemoryStore) Create(_ context.Context, app Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[app.Ticket]; ok {
		return ErrDuplicateTicket
	}
	s.apps[app.Ticket] = app.clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, ticket string) (Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[ticket]
	if !ok {
		return Application{}, ErrNotFound
	}
	return app.clone(), nil
}

func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keyword := strings.ToLower(strings.TrimSpace(filter.Keyword))
	items := make([]Application, 0, len(s.apps))
	for _, app := range s.apps {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, app.Status) {
			continue
		}
		if keyword != "" && !matchesKeyword(app, keyword) {
			continue
		}
		items = append(items, app.clone())
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].Ticket < items[j].Ticket
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, nil
}

func (s *MemoryStore) ApplyChange(_ context.Context, change StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[change.Ticket]
	if !ok {
		return ErrNotFound
	}
	if app.Status != change.From {
		return ErrConcurrentUpdate
	}
	app.Status = change.To
	app.DecisionReason = change.Reason
	app.DecisionDivision = change.Division
	app.UpdatedAt = change.At
	app.UpdatedBy = change.Actor
	if change.Committed {
		at := change.At
		app.CommittedAt = &at
	}
	s.apps[change.Ticket] = app
	if change.Audit != nil {
		s.auditID++
		entry := *change.Audit
		entry.ID = s.auditID
		s.audit[change.Ticket] = append(s.audit[change.Ticket], entry)
	}
	return nil
}

func (s *MemoryStore) AddDivision(_ context.Context, ticket string, choice DivisionChoice, actor string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[ticket]
	if !ok {
		return ErrNotFound
	}
	app.Divisions = append(app.Divisions, choice)
	app.UpdatedAt = at
	app.UpdatedBy = actor
	s.apps[ticket] = app
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, ticket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[ticket]; !ok {
		return ErrNotFound
	}
	delete(s.apps, ticket)
	delete(s.audit, ticket)
	return nil
}

func (s *MemoryStore) AuditLog(_ context.Context, ticket string) ([]AuditLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]AuditLogEntry(nil), s.audit[ticket]...), nil
}

func containsStatus(statuses []Status, status Status) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

func matchesKeyword(app Application, keyword string) bool {
	for _, field := range []string{app.Ticket, app.FullName, app.NickName, app.Class, app.NIS} {
		if strings.Contains(strings.ToLower(field), keyword) {
			return true
		}
	}
	return false
}
