// Package postgres хранит заявки в Postgres.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"osis_bot/internal/admission"
)

const applicationColumns = `ticket, status, full_name, nick_name, class, nis, gender, birth_place, birth_date,
	phone, email, instagram, address, motivation, photo, decision_reason, decision_division,
	committed_at, created_at, updated_at, updated_by`

// ApplicationStore реализует admission.Store поверх Postgres.
type ApplicationStore struct {
	db *sqlx.DB
}

// NewApplicationStore создает ApplicationStore.
func NewApplicationStore(db *sqlx.DB) *ApplicationStore {
	return &ApplicationStore{db: db}
}

// Create сохраняет заявку и дочерние коллекции в одной транзакции.
func (s *ApplicationStore) Create(ctx context.Context, app admission.Application) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		const query = `
			INSERT INTO applications (` + applicationColumns + `)
			VALUES (:ticket, :status, :full_name, :nick_name, :class, :nis, :gender, :birth_place, :birth_date,
				:phone, :email, :instagram, :address, :motivation, :photo, :decision_reason, :decision_division,
				:committed_at, :created_at, :updated_at, :updated_by)
		`
		if _, err := tx.NamedExecContext(ctx, query, app); err != nil {
			if isUniqueViolation(err) {
				return admission.ErrDuplicateTicket
			}
			return fmt.Errorf("insert application: %w", err)
		}
		for i, org := range app.Organizations {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO application_organizations (ticket, position_idx, name, position, period, certificate)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, app.Ticket, i, org.Name, org.Position, org.Period, org.Certificate); err != nil {
				return fmt.Errorf("insert organization: %w", err)
			}
		}
		for i, ach := range app.Achievements {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO application_achievements (ticket, position_idx, name, level, year, certificate)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, app.Ticket, i, ach.Name, ach.Level, ach.Year, ach.Certificate); err != nil {
				return fmt.Errorf("insert achievement: %w", err)
			}
		}
		for i, div := range app.Divisions {
			priority := div.Priority
			if priority <= 0 {
				priority = i + 1
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO application_divisions (ticket, priority, division, reason)
				VALUES ($1, $2, $3, $4)
			`, app.Ticket, priority, div.Division, div.Reason); err != nil {
				return fmt.Errorf("insert division: %w", err)
			}
		}
		return nil
	})
}

func (s *ApplicationStore) Get(ctx context.Context, ticket string) (admission.Application, error) {
	var app admission.Application
	if err := s.db.GetContext(ctx, &app, `SELECT `+applicationColumns+` FROM applications WHERE ticket = $1`, ticket); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return admission.Application{}, admission.ErrNotFound
		}
		return admission.Application{}, fmt.Errorf("load application: %w", err)
	}
	if err := s.db.SelectContext(ctx, &app.Organizations, `
		SELECT name, position, period, certificate FROM application_organizations
		WHERE ticket = $1 ORDER BY position_idx
	`, ticket); err != nil {
		return admission.Application{}, fmt.Errorf("load organizations: %w", err)
	}
	if err := s.db.SelectContext(ctx, &app.Achievements, `
		SELECT name, level, year, certificate FROM application_achievements
		WHERE ticket = $1 ORDER BY position_idx
	`, ticket); err != nil {
		return admission.Application{}, fmt.Errorf("load achievements: %w", err)
	}
	if err := s.db.SelectContext(ctx, &app.Divisions, `
		SELECT priority, division, reason FROM application_divisions
		WHERE ticket = $1 ORDER BY priority, id
	`, ticket); err != nil {
		return admission.Application{}, fmt.Errorf("load divisions: %w", err)
	}
	return app, nil
}

// List возвращает заявки без дочерних коллекций.
func (s *ApplicationStore) List(ctx context.Context, filter admission.Filter) ([]admission.Application, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.Statuses) > 0 {
		where = append(where, "status IN (?)")
		args = append(args, filter.Statuses)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		pattern := "%" + escapeLike(keyword) + "%"
		where = append(where, "(ticket ILIKE ? OR full_name ILIKE ? OR nick_name ILIKE ? OR class ILIKE ? OR nis ILIKE ?)")
		args = append(args, pattern, pattern, pattern, pattern, pattern)
	}
	query := `SELECT ` + applicationColumns + ` FROM applications`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, ticket"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	items := make([]admission.Application, 0)
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return items, nil
}

// ApplyChange записывает статус, только если текущий статус равен change.From.
func (s *ApplicationStore) ApplyChange(ctx context.Context, change admission.StatusChange) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var committedAt *time.Time
		if change.Committed {
			at := change.At
			committedAt = &at
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE applications
			SET status = $1, decision_reason = $2, decision_division = $3,
				updated_at = $4, updated_by = $5, committed_at = COALESCE($6, committed_at)
			WHERE ticket = $7 AND status = $8
		`, change.To, change.Reason, change.Division, change.At, change.Actor, committedAt, change.Ticket, change.From)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if err := s.expectRow(ctx, tx, res, change.Ticket); err != nil {
			return err
		}
		if change.Audit == nil {
			return nil
		}
		entry := change.Audit
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO application_audit_log (ticket, action, previous_status, new_status, reason, actor, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, entry.Ticket, entry.Action, entry.PreviousStatus, entry.NewStatus, entry.Reason, entry.Actor, entry.CreatedAt); err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}
		return nil
	})
}

func (s *ApplicationStore) AddDivision(ctx context.Context, ticket string, choice admission.DivisionChoice, actor string, at time.Time) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE applications SET updated_at = $1, updated_by = $2 WHERE ticket = $3`, at, actor, ticket)
		if err != nil {
			return fmt.Errorf("touch application: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return admission.ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO application_divisions (ticket, priority, division, reason)
			VALUES ($1, $2, $3, $4)
		`, ticket, choice.Priority, choice.Division, choice.Reason); err != nil {
			return fmt.Errorf("insert division: %w", err)
		}
		return nil
	})
}

// Delete удаляет заявку, ее дочерние записи и журнал.
func (s *ApplicationStore) Delete(ctx context.Context, ticket string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{"application_organizations", "application_achievements", "application_divisions", "application_audit_log"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE ticket = $1`, ticket); err != nil {
				return fmt.Errorf("delete from %s: %w", table, err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM applications WHERE ticket = $1`, ticket)
		if err != nil {
			return fmt.Errorf("delete application: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return admission.ErrNotFound
		}
		return nil
	})
}

func (s *ApplicationStore) AuditLog(ctx context.Context, ticket string) ([]admission.AuditLogEntry, error) {
	entries := make([]admission.AuditLogEntry, 0)
	if err := s.db.SelectContext(ctx, &entries, `
		SELECT id, ticket, action, previous_status, new_status, reason, actor, created_at
		FROM application_audit_log WHERE ticket = $1 ORDER BY id
	`, ticket); err != nil {
		return nil, fmt.Errorf("load audit log: %w", err)
	}
	return entries, nil
}

func (s *ApplicationStore) expectRow(ctx context.Context, tx *sqlx.Tx, res sql.Result, ticket string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM applications WHERE ticket = $1)`, ticket); err != nil {
		return fmt.Errorf("check application: %w", err)
	}
	if !exists {
		return admission.ErrNotFound
	}
	return admission.ErrConcurrentUpdate
}

func (s *ApplicationStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}
