package command

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"osis_bot/internal/admission"
)

const listLimit = 20

// Service - операции над заявками, доступные командам.
type Service interface {
	Accept(ctx context.Context, ticket, division, actor string) (admission.StageResult, error)
	Reject(ctx context.Context, ticket, reason, actor string) (admission.StageResult, error)
	Commit(ctx context.Context, actor string) (admission.CommitResult, error)
	Get(ctx context.Context, ticket string) (admission.Application, error)
	Search(ctx context.Context, keyword string, limit int) ([]admission.Application, error)
	List(ctx context.Context, limit int, statuses ...admission.Status) ([]admission.Application, error)
	Delete(ctx context.Context, ticket, actor string) (admission.Application, error)
	AddDivision(ctx context.Context, ticket string, choice admission.DivisionChoice, actor string) (admission.Application, error)
}

// Reply - ответ на команду. Detail заполняется, когда транспорт должен
// отправить полную карточку заявки.
type Reply struct {
	Text   string
	Detail *admission.Application
}

// Executor исполняет разобранные команды.
type Executor struct {
	service Service
	logger  *slog.Logger
}

// NewExecutor создает Executor.
func NewExecutor(service Service, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{service: service, logger: logger}
}

// Handle разбирает и исполняет текст. Каждая команда получает ответ.
func (e *Executor) Handle(ctx context.Context, text, actor string) Reply {
	cmd, err := Parse(text)
	if err != nil {
		return Reply{Text: parseErrorText(cmd, err)}
	}
	return e.Execute(ctx, cmd, actor)
}

// Execute исполняет команду от имени actor.
func (e *Executor) Execute(ctx context.Context, cmd Command, actor string) Reply {
	switch cmd.Name {
	case NameAccept:
		result, err := e.service.Accept(ctx, cmd.Ticket, cmd.Args, actor)
		if err != nil {
			return e.failure(cmd, err)
		}
		return Reply{Text: stageText(result)}
	case NameReject:
		result, err := e.service.Reject(ctx, cmd.Ticket, cmd.Args, actor)
		if err != nil {
			return e.failure(cmd, err)
		}
		return Reply{Text: stageText(result)}
	case NameCommit:
		result, err := e.service.Commit(ctx, actor)
		if err != nil {
			return e.failure(cmd, err)
		}
		return Reply{Text: commitText(result)}
	case NameStatus:
		app, err := e.service.Get(ctx, cmd.Ticket)
		if err != nil {
			return e.failure(cmd, err)
		}
		return Reply{Text: statusText(app)}
	case NameDetail:
		app, err := e.service.Get(ctx, cmd.Ticket)
		if err != nil {
			return e.failure(cmd, err)
		}
		return Reply{Text: statusText(app), Detail: &app}
	case NameSearch:
		apps, err := e.service.Search(ctx, cmd.Args, listLimit)
		if err != nil {
			return e.failure(cmd, err)
		}
		return Reply{Text: listText(fmt.Sprintf("🔎 Hasil pencarian \"%s\"", esc(cmd.Args)), apps)}
	case NameList:
		apps, err := e.service.List(ctx, listLimit, cmd.Statuses...)
		if err != nil {
			return e.failure(cmd, err)
		}
		return Reply{Text: listText("📋 Daftar pendaftar", apps)}
	case NameDelete:
		app, err := e.service.Delete(ctx, cmd.Ticket, actor)
		if err != nil {
			return e.failure(cmd, err)
		}
		return Reply{Text: fmt.Sprintf("🗑 Pendaftar <code>%s</code> (%s) telah dihapus.", esc(app.Ticket), esc(app.FullName))}
	case NameDivision:
		app, err := e.service.AddDivision(ctx, cmd.Ticket, admission.DivisionChoice{Division: cmd.Division, Reason: cmd.Reason}, actor)
		if err != nil {
			return e.failure(cmd, err)
		}
		return Reply{Text: fmt.Sprintf("➕ Divisi <b>%s</b> ditambahkan untuk <code>%s</code> (%d pilihan).", esc(cmd.Division), esc(app.Ticket), len(app.Divisions))}
	case NameHelp:
		return Reply{Text: HelpText()}
	default:
		return Reply{Text: "Perintah tidak dikenal. Ketik /help."}
	}
}

func (e *Executor) failure(cmd Command, err error) Reply {
	switch {
	case errors.Is(err, admission.ErrNotFound):
		return Reply{Text: fmt.Sprintf("❌ Tiket <code>%s</code> tidak ditemukan.", esc(cmd.Ticket))}
	case errors.Is(err, admission.ErrConcurrentUpdate):
		return Reply{Text: fmt.Sprintf("⚠️ Status <code>%s</code> baru saja berubah. Silakan ulangi perintah.", esc(cmd.Ticket))}
	case errors.Is(err, admission.ErrInvalidStatus):
		return Reply{Text: fmt.Sprintf("⚠️ Status <code>%s</code> tidak valid untuk perintah ini.", esc(cmd.Ticket))}
	default:
		e.logger.Error("command failed",
			slog.String("command", string(cmd.Name)),
			slog.String("ticket", cmd.Ticket),
			slog.String("error", err.Error()),
		)
		return Reply{Text: "⚠️ Gagal memproses perintah. Silakan coba lagi nanti."}
	}
}

func parseErrorText(cmd Command, err error) string {
	switch {
	case errors.Is(err, ErrUnknownCommand), errors.Is(err, ErrNotCommand):
		return "Perintah tidak dikenal. Ketik /help."
	case errors.Is(err, ErrMissingTicket):
		return "⚠️ Tiket tidak valid atau belum diisi.\nContoh: " + usage(cmd)
	case errors.Is(err, ErrMissingArgument):
		return "⚠️ Argumen belum lengkap.\nContoh: " + usage(cmd)
	case errors.Is(err, admission.ErrInvalidStatus):
		return "⚠️ Filter status tidak dikenal. Gunakan: pending, terima, tolak, lolos, ditolak."
	default:
		return "⚠️ Perintah tidak valid. Ketik /help."
	}
}

func usage(cmd Command) string {
	keyword := cmd.Keyword
	switch cmd.Name {
	case NameAccept:
		return keyword + " OSIS25-123456-A [divisi]"
	case NameReject:
		return keyword + " OSIS25-123456-A [alasan]"
	case NameSearch:
		return keyword + " nama atau kelas"
	case NameDivision:
		return keyword + " OSIS25-123456-A Humas | alasan"
	default:
		return keyword + " OSIS25-123456-A"
	}
}

func stageText(result admission.StageResult) string {
	var b strings.Builder
	switch result.To {
	case admission.StatusPendingAccept:
		b.WriteString("🟡 <b>Ditandai diterima</b> (menunggu /push)")
	case admission.StatusPendingReject:
		b.WriteString("🟠 <b>Ditandai ditolak</b> (menunggu /push)")
	case admission.StatusAccepted:
		b.WriteString("✅ <b>Diterima</b> (langsung final)")
	case admission.StatusRejected:
		b.WriteString("❌ <b>Ditolak</b> (langsung final)")
	default:
		b.WriteString("📌 <b>Status diperbarui</b>")
	}
	fmt.Fprintf(&b, "\nTiket: <code>%s</code>", esc(result.Ticket))
	fmt.Fprintf(&b, "\nNama: %s", esc(result.FullName))
	fmt.Fprintf(&b, "\nStatus: %s → %s", result.From, result.To)
	if result.Division != "" {
		fmt.Fprintf(&b, "\nDivisi: %s", esc(result.Division))
	}
	if result.Reason != "" {
		fmt.Fprintf(&b, "\nAlasan: %s", esc(result.Reason))
	}
	if result.AlreadyStaged {
		b.WriteString("\nℹ️ Keputusan ini sudah ditandai sebelumnya, catatan diperbarui.")
	}
	if result.Override {
		fmt.Fprintf(&b, "\n⚠️ Membatalkan keputusan final sebelumnya (%s).", result.From)
	}
	return b.String()
}

func commitText(result admission.CommitResult) string {
	if result.Processed() == 0 {
		return "ℹ️ Tidak ada keputusan yang menunggu push."
	}
	text := fmt.Sprintf("🚀 Push selesai: %d lolos, %d ditolak", result.Accepted, result.Rejected)
	if result.Failed > 0 {
		text += fmt.Sprintf(", %d gagal", result.Failed)
	}
	return text + "."
}

func statusText(app admission.Application) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📌 <code>%s</code> %s\n", esc(app.Ticket), esc(app.FullName))
	fmt.Fprintf(&b, "Status: %s", app.Status.Label())
	if app.DecisionDivision != "" {
		fmt.Fprintf(&b, "\nDivisi: %s", esc(app.DecisionDivision))
	}
	if app.DecisionReason != "" {
		fmt.Fprintf(&b, "\nAlasan: %s", esc(app.DecisionReason))
	}
	if !app.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "\nDiperbarui: %s", app.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return b.String()
}

func listText(title string, apps []admission.Application) string {
	if len(apps) == 0 {
		return title + "\nTidak ada data."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d)", title, len(apps))
	for i, app := range apps {
		fmt.Fprintf(&b, "\n%d. <code>%s</code> %s (%s) %s", i+1, esc(app.Ticket), esc(app.FullName), esc(app.Class), app.Status.Label())
	}
	return b.String()
}

// HelpText возвращает список команд.
func HelpText() string {
	return strings.Join([]string{
		"🤖 <b>Perintah reviewer</b>",
		"/terima &lt;tiket&gt; [divisi] - tandai diterima",
		"/tolak &lt;tiket&gt; [alasan] - tandai ditolak",
		"/push - finalkan semua keputusan",
		"/status &lt;tiket&gt; - cek status",
		"/detail &lt;tiket&gt; - kirim ulang data lengkap",
		"/cari &lt;kata kunci&gt; - cari pendaftar",
		"/list [status] - daftar pendaftar",
		"/divisi &lt;tiket&gt; &lt;divisi&gt; | &lt;alasan&gt; - tambah divisi",
		"/hapus &lt;tiket&gt; - hapus pendaftar",
	}, "\n")
}

func esc(value string) string {
	return html.EscapeString(value)
}
