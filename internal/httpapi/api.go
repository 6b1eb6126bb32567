// Package httpapi обслуживает HTTP-интерфейс приема заявок.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"osis_bot/internal/admission"
	"osis_bot/internal/observability"
)

const maxBodyBytes = 1 << 20

// Applications описывает операции сервиса, доступные через HTTP.
type Applications interface {
	Intake(ctx context.Context, draft admission.Application) (admission.Application, error)
	Get(ctx context.Context, ticket string) (admission.Application, error)
}

// IntakeRequest представляет анкету кандидата.
type IntakeRequest struct {
	FullName      string                     `json:"full_name"`
	NickName      string                     `json:"nick_name"`
	Class         string                     `json:"class"`
	NIS           string                     `json:"nis"`
	Gender        string                     `json:"gender"`
	BirthPlace    string                     `json:"birth_place"`
	BirthDate     string                     `json:"birth_date"`
	Phone         string                     `json:"phone"`
	Email         string                     `json:"email"`
	Instagram     string                     `json:"instagram"`
	Address       string                     `json:"address"`
	Motivation    string                     `json:"motivation"`
	Photo         string                     `json:"photo"`
	Organizations []admission.Organization   `json:"organizations"`
	Achievements  []admission.Achievement    `json:"achievements"`
	Divisions     []admission.DivisionChoice `json:"divisions"`
}

func (r IntakeRequest) validate() map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(r.FullName) == "" {
		fields["full_name"] = "required"
	}
	if strings.TrimSpace(r.Class) == "" {
		fields["class"] = "required"
	}
	if len(r.Divisions) == 0 {
		fields["divisions"] = "at least one division is required"
	}
	for _, div := range r.Divisions {
		if strings.TrimSpace(div.Division) == "" {
			fields["divisions"] = "division name is required"
			break
		}
	}
	return fields
}

func (r IntakeRequest) application() admission.Application {
	return admission.Application{
		FullName:      strings.TrimSpace(r.FullName),
		NickName:      strings.TrimSpace(r.NickName),
		Class:         strings.TrimSpace(r.Class),
		NIS:           strings.TrimSpace(r.NIS),
		Gender:        strings.TrimSpace(r.Gender),
		BirthPlace:    strings.TrimSpace(r.BirthPlace),
		BirthDate:     strings.TrimSpace(r.BirthDate),
		Phone:         strings.TrimSpace(r.Phone),
		Email:         strings.TrimSpace(r.Email),
		Instagram:     strings.TrimSpace(r.Instagram),
		Address:       strings.TrimSpace(r.Address),
		Motivation:    r.Motivation,
		Photo:         strings.TrimSpace(r.Photo),
		Organizations: r.Organizations,
		Achievements:  r.Achievements,
		Divisions:     r.Divisions,
	}
}

type intakeResponse struct {
	Ticket string           `json:"ticket"`
	Status admission.Status `json:"status"`
}

type statusResponse struct {
	Ticket    string           `json:"ticket"`
	Status    admission.Status `json:"status"`
	Label     string           `json:"label"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// API обрабатывает запросы приема заявок.
type API struct {
	applications Applications
	logger       *slog.Logger
}

// NewAPI создает API.
func NewAPI(applications Applications, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{applications: applications, logger: logger}
}

// HandleIntake принимает анкету и возвращает выданный тикет.
func (a *API) HandleIntake(w http.ResponseWriter, r *http.Request) {
	var req IntakeRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}
	if fields := req.validate(); len(fields) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Fields: fields})
		return
	}

	app, err := a.applications.Intake(r.Context(), req.application())
	if err != nil {
		a.logger.Error("intake failed",
			slog.String("request_id", observability.RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to save application"})
		return
	}
	writeJSON(w, http.StatusCreated, intakeResponse{Ticket: app.Ticket, Status: app.Status})
}

// HandleStatus возвращает публичный статус заявки.
func (a *API) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ticket := chi.URLParam(r, "ticket")
	app, err := a.applications.Get(r.Context(), ticket)
	if err != nil {
		if errors.Is(err, admission.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "application not found"})
			return
		}
		a.logger.Error("status lookup failed", slog.String("ticket", ticket), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load application"})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Ticket:    app.Ticket,
		Status:    app.Status,
		Label:     publicLabel(app.Status),
		UpdatedAt: app.UpdatedAt,
	})
}

// publicLabel скрывает отложенные решения от кандидата.
func publicLabel(status admission.Status) string {
	switch status {
	case admission.StatusAccepted:
		return "Lolos"
	case admission.StatusRejected:
		return "Tidak lolos"
	default:
		return "Sedang direview"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
