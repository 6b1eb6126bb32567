package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const maxTicketAttempts = 5

// Notifier получает события для уведомления ревьюеров. Реализация не
// возвращает ошибок: сбой доставки не должен влиять на смену статуса.
type Notifier interface {
	ApplicationReceived(ctx context.Context, app Application)
	CommitCompleted(ctx context.Context, result CommitResult)
}

// Options настраивает Service.
type Options struct {
	TicketPrefix string
	// AutoPush применяет решение сразу к терминальному статусу, если
	// заявка уже проходила хотя бы один commit.
	AutoPush bool
}

// StageResult подтверждает запись отложенного решения.
type StageResult struct {
	Ticket        string
	FullName      string
	From          Status
	To            Status
	Reason        string
	Division      string
	AlreadyStaged bool
	Override      bool
	AutoPushed    bool
}

// CommitItem описывает итог фиксации одной заявки.
type CommitItem struct {
	Ticket   string
	FullName string
	From     Status
	To       Status
	Reason   string
	Division string
	Err      error
}

// CommitResult описывает итог пакетной фиксации решений.
type CommitResult struct {
	Accepted int
	Rejected int
	Failed   int
	Items    []CommitItem
}

// Processed возвращает число обработанных заявок.
func (r CommitResult) Processed() int {
	return r.Accepted + r.Rejected + r.Failed
}

// Service реализует реестр статусов и очередь решений.
type Service struct {
	store     Store
	notifier  Notifier
	logger    *slog.Logger
	opts      Options
	clock     func() time.Time
	newTicket func(prefix string, now time.Time) (string, error)
}

// NewService создает сервис приема заявок и решений.
func NewService(store Store, notifier Notifier, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		notifier:  notifier,
		logger:    logger,
		opts:      opts,
		clock:     time.Now,
		newTicket: NewTicket,
	}
}

// Intake сохраняет новую заявку со статусом PENDING и запускает уведомление.
func (s *Service) Intake(ctx context.Context, draft Application) (Application, error) {
	now := s.clock().UTC()
	app := draft.clone()
	app.Status = StatusPending
	app.CreatedAt = now
	app.UpdatedAt = now
	app.CommittedAt = nil
	app.DecisionReason = ""
	app.DecisionDivision = ""
	if app.UpdatedBy == "" {
		app.UpdatedBy = "intake"
	}

	var err error
	for attempt := 0; attempt < maxTicketAttempts; attempt++ {
		app.Ticket, err = s.newTicket(s.opts.TicketPrefix, now)
		if err != nil {
			return Application{}, err
		}
		err = s.store.Create(ctx, app)
		if !errors.Is(err, ErrDuplicateTicket) {
			break
		}
	}
	if err != nil {
		return Application{}, fmt.Errorf("intake application: %w", err)
	}

	s.logger.Info("application received", slog.String("ticket", app.Ticket))
	if s.notifier != nil {
		s.notifier.ApplicationReceived(ctx, app)
	}
	return app, nil
}

// Accept записывает отложенное решение о приеме.
func (s *Service) Accept(ctx context.Context, ticket, division, actor string) (StageResult, error) {
	return s.Stage(ctx, ticket, ActionAccept, "", division, actor)
}

// Reject записывает отложенное решение об отказе.
func (s *Service) Reject(ctx context.Context, ticket, reason, actor string) (StageResult, error) {
	return s.Stage(ctx, ticket, ActionReject, reason, "", actor)
}

// Stage вычисляет переход и сохраняет новый статус вместе с обоснованием.
// Повторная запись перезаписывает предыдущее решение.
func (s *Service) Stage(ctx context.Context, ticket string, action Action, reason, division, actor string) (StageResult, error) {
	ticket = NormalizeTicket(ticket)
	app, err := s.store.Get(ctx, ticket)
	if err != nil {
		return StageResult{}, err
	}
	transition, err := Next(app.Status, action)
	if err != nil {
		return StageResult{}, err
	}

	result := StageResult{
		Ticket:        app.Ticket,
		FullName:      app.FullName,
		From:          transition.From,
		To:            transition.To,
		Reason:        strings.TrimSpace(reason),
		Division:      strings.TrimSpace(division),
		AlreadyStaged: transition.AlreadyStaged,
		Override:      transition.Override,
	}
	if s.opts.AutoPush && app.CommittedAt != nil {
		if terminal, ok := Finalize(transition.To); ok {
			result.To = terminal
			result.AutoPushed = true
		}
	}

	now := s.clock().UTC()
	change := StatusChange{
		Ticket:    app.Ticket,
		From:      app.Status,
		To:        result.To,
		Reason:    result.Reason,
		Division:  result.Division,
		Actor:     actor,
		Committed: result.AutoPushed,
		At:        now,
	}
	if change.From != change.To {
		change.Audit = &AuditLogEntry{
			Ticket:         app.Ticket,
			Action:         action,
			PreviousStatus: change.From,
			NewStatus:      change.To,
			Reason:         annotate(result.Reason, transition.Note(), result.AutoPushed),
			Actor:          actor,
			CreatedAt:      now,
		}
	}
	if err := s.store.ApplyChange(ctx, change); err != nil {
		return StageResult{}, fmt.Errorf("stage %s %s: %w", action, app.Ticket, err)
	}

	s.logger.Info("decision staged",
		slog.String("ticket", app.Ticket),
		slog.String("action", string(action)),
		slog.String("from", string(result.From)),
		slog.String("to", string(result.To)),
		slog.Bool("override", result.Override),
		slog.Bool("auto_push", result.AutoPushed),
	)
	return result, nil
}

// Commit фиксирует все отложенные решения. Каждая заявка фиксируется
// независимо: ошибка одной строки не останавливает остальные.
func (s *Service) Commit(ctx context.Context, actor string) (CommitResult, error) {
	staged, err := s.store.List(ctx, Filter{Statuses: []Status{StatusPendingAccept, StatusPendingReject}})
	if err != nil {
		return CommitResult{}, fmt.Errorf("list staged applications: %w", err)
	}
	var result CommitResult
	if len(staged) == 0 {
		return result, nil
	}

	for _, app := range staged {
		terminal, ok := Finalize(app.Status)
		if !ok {
			continue
		}
		now := s.clock().UTC()
		item := CommitItem{
			Ticket:   app.Ticket,
			FullName: app.FullName,
			From:     app.Status,
			To:       terminal,
			Reason:   app.DecisionReason,
			Division: app.DecisionDivision,
		}
		item.Err = s.store.ApplyChange(ctx, StatusChange{
			Ticket:    app.Ticket,
			From:      app.Status,
			To:        terminal,
			Reason:    app.DecisionReason,
			Division:  app.DecisionDivision,
			Actor:     actor,
			Committed: true,
			At:        now,
			Audit: &AuditLogEntry{
				Ticket:         app.Ticket,
				Action:         ActionCommit,
				PreviousStatus: app.Status,
				NewStatus:      terminal,
				Reason:         app.DecisionReason,
				Actor:          actor,
				CreatedAt:      now,
			},
		})
		switch {
		case item.Err != nil:
			result.Failed++
			s.logger.Error("commit row failed", slog.String("ticket", app.Ticket), slog.String("error", item.Err.Error()))
		case terminal == StatusAccepted:
			result.Accepted++
		default:
			result.Rejected++
		}
		result.Items = append(result.Items, item)
	}

	s.logger.Info("decisions committed",
		slog.Int("accepted", result.Accepted),
		slog.Int("rejected", result.Rejected),
		slog.Int("failed", result.Failed),
	)
	if s.notifier != nil {
		s.notifier.CommitCompleted(ctx, result)
	}
	return result, nil
}

// Get возвращает заявку по тикету вместе с дочерними коллекциями.
func (s *Service) Get(ctx context.Context, ticket string) (Application, error) {
	return s.store.Get(ctx, NormalizeTicket(ticket))
}

// Search ищет заявки по тикету, имени или классу.
func (s *Service) Search(ctx context.Context, keyword string, limit int) ([]Application, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, nil
	}
	return s.store.List(ctx, Filter{Keyword: keyword, Limit: limit})
}

// List возвращает заявки, опционально отфильтрованные по статусу.
func (s *Service) List(ctx context.Context, limit int, statuses ...Status) ([]Application, error) {
	return s.store.List(ctx, Filter{Statuses: statuses, Limit: limit})
}

// Delete безвозвратно удаляет заявку вместе с дочерними данными.
func (s *Service) Delete(ctx context.Context, ticket, actor string) (Application, error) {
	app, err := s.store.Get(ctx, NormalizeTicket(ticket))
	if err != nil {
		return Application{}, err
	}
	if err := s.store.Delete(ctx, app.Ticket); err != nil {
		return Application{}, fmt.Errorf("delete %s: %w", app.Ticket, err)
	}
	s.logger.Warn("application deleted", slog.String("ticket", app.Ticket), slog.String("actor", actor))
	return app, nil
}

// AddDivision добавляет дивизию к уже принятой заявке.
func (s *Service) AddDivision(ctx context.Context, ticket string, choice DivisionChoice, actor string) (Application, error) {
	ticket = NormalizeTicket(ticket)
	choice.Division = strings.TrimSpace(choice.Division)
	choice.Reason = strings.TrimSpace(choice.Reason)
	if choice.Division == "" {
		return Application{}, errors.New("division is required")
	}
	app, err := s.store.Get(ctx, ticket)
	if err != nil {
		return Application{}, err
	}
	if choice.Priority <= 0 {
		choice.Priority = len(app.Divisions) + 1
	}
	if err := s.store.AddDivision(ctx, ticket, choice, actor, s.clock().UTC()); err != nil {
		return Application{}, fmt.Errorf("add division %s: %w", ticket, err)
	}
	return s.store.Get(ctx, ticket)
}

// AuditLog возвращает историю смены статусов заявки.
func (s *Service) AuditLog(ctx context.Context, ticket string) ([]AuditLogEntry, error) {
	return s.store.AuditLog(ctx, NormalizeTicket(ticket))
}

// NormalizeTicket приводит тикет к каноничному виду.
func NormalizeTicket(ticket string) string {
	return strings.ToUpper(strings.TrimSpace(ticket))
}

func annotate(reason, note string, autoPushed bool) string {
	parts := make([]string, 0, 3)
	if note != "" {
		parts = append(parts, "["+note+"]")
	}
	if autoPushed {
		parts = append(parts, "[auto-push]")
	}
	if reason != "" {
		parts = append(parts, reason)
	}
	return strings.Join(parts, " ")
}
