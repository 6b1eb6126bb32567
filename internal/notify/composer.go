package notify

import (
	"fmt"
	"html"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"osis_bot/internal/admission"
)

// FreeTextThreshold задает экранированную длину свободного текста, после
// которой он выносится в файл.
const FreeTextThreshold = 1000

// inlineLimit ограничивает короткие поля анкеты в тексте сообщения.
const inlineLimit = 256

const (
	HeaderIntake = "📥 <b>PENDAFTARAN BARU</b>"
	HeaderDetail = "🗂 <b>DETAIL PENDAFTAR</b>"
)

// Overflow описывает сгенерированный текстовый файл с длинным полем.
type Overflow struct {
	Field   string
	Path    string
	Caption string
}

// Message содержит готовый к отправке текст и сгенерированные вложения.
type Message struct {
	Text     string
	Overflow []Overflow
}

// Composer формирует текст уведомления из заявки.
type Composer struct {
	overflowDir string
	threshold   int
	logger      *slog.Logger
}

// NewComposer создает Composer. Пустой overflowDir означает временный каталог ОС.
func NewComposer(overflowDir string, logger *slog.Logger) *Composer {
	if overflowDir == "" {
		overflowDir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{overflowDir: overflowDir, threshold: FreeTextThreshold, logger: logger}
}

// Compose собирает многосекционное сообщение. Поля длиннее порога
// записываются в отдельные файлы, в тексте остается пометка.
func (c *Composer) Compose(app admission.Application, header string) Message {
	var msg Message
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	if header == "" {
		header = HeaderIntake
	}
	line("%s", header)
	line("🎫 Tiket: <code>%s</code>", esc(app.Ticket))
	line("")

	line("👤 <b>DATA DIRI</b>")
	line("Nama: %s", orDash(app.FullName))
	line("Panggilan: %s", orDash(app.NickName))
	line("Kelas: %s", orDash(app.Class))
	line("NIS: %s", orDash(app.NIS))
	line("Jenis kelamin: %s", orDash(app.Gender))
	line("TTL: %s", orDash(joinNonEmpty(", ", app.BirthPlace, app.BirthDate)))
	line("No. HP: %s", orDash(app.Phone))
	line("Email: %s", orDash(app.Email))
	line("Instagram: %s", orDash(app.Instagram))
	line("Alamat: %s", orDash(app.Address))
	line("")

	line("🏢 <b>PENGALAMAN ORGANISASI</b>")
	if len(app.Organizations) == 0 {
		line("-")
	}
	for i, org := range app.Organizations {
		line("%d. %s (%s)", i+1, orDash(org.Name), orDash(joinNonEmpty(", ", org.Position, org.Period)))
		line("   Sertifikat: %s", certificateIndicator(org.Certificate))
	}
	line("")

	line("🏆 <b>PRESTASI</b>")
	if len(app.Achievements) == 0 {
		line("-")
	}
	for i, ach := range app.Achievements {
		line("%d. %s (%s)", i+1, orDash(ach.Name), orDash(joinNonEmpty(", ", ach.Level, ach.Year)))
		line("   Sertifikat: %s", certificateIndicator(ach.Certificate))
	}
	line("")

	line("🎯 <b>PILIHAN DIVISI</b>")
	if len(app.Divisions) == 0 {
		line("-")
	}
	for i, div := range app.Divisions {
		priority := div.Priority
		if priority <= 0 {
			priority = i + 1
		}
		line("%d. %s", priority, orDash(div.Division))
		field := fmt.Sprintf("alasan_divisi_%d", priority)
		line("   Alasan: %s", c.freeText(app.Ticket, field, "Alasan divisi "+div.Division, div.Reason, &msg))
	}
	line("")

	line("💭 <b>MOTIVASI</b>")
	line("%s", c.freeText(app.Ticket, "motivasi", "Motivasi", app.Motivation, &msg))
	line("")

	line("📌 Status: <b>%s</b>", esc(app.Status.Label()))
	if app.DecisionDivision != "" {
		line("Divisi keputusan: %s", clip(app.DecisionDivision, inlineLimit))
	}
	if app.DecisionReason != "" {
		line("Catatan: %s", clip(app.DecisionReason, inlineLimit))
	}
	line("")

	line("⚡ <b>AKSI CEPAT</b>")
	line("/terima %s", app.Ticket)
	line("/tolak %s [alasan]", app.Ticket)
	line("/detail %s", app.Ticket)
	b.WriteString("/status " + app.Ticket)

	msg.Text = b.String()
	return msg
}

// ComposeCommitSummary формирует итог пакетной фиксации.
func (c *Composer) ComposeCommitSummary(result admission.CommitResult) string {
	var b strings.Builder
	b.WriteString("🚀 <b>PUSH KEPUTUSAN</b>\n")
	fmt.Fprintf(&b, "✅ Lolos: %d\n", result.Accepted)
	fmt.Fprintf(&b, "❌ Ditolak: %d\n", result.Rejected)
	if result.Failed > 0 {
		fmt.Fprintf(&b, "⚠️ Gagal: %d\n", result.Failed)
	}
	if len(result.Items) > 0 {
		b.WriteString("\n<b>Rincian</b>")
	}
	for i, item := range result.Items {
		b.WriteByte('\n')
		switch {
		case item.Err != nil:
			fmt.Fprintf(&b, "%d. ⚠️ <code>%s</code> %s: gagal (%s)", i+1, esc(item.Ticket), clip(item.FullName, inlineLimit), clip(item.Err.Error(), inlineLimit))
		case item.To == admission.StatusAccepted:
			fmt.Fprintf(&b, "%d. ✅ <code>%s</code> %s", i+1, esc(item.Ticket), clip(item.FullName, inlineLimit))
			if item.Division != "" {
				fmt.Fprintf(&b, " (Divisi: %s)", clip(item.Division, inlineLimit))
			}
		default:
			fmt.Fprintf(&b, "%d. ❌ <code>%s</code> %s", i+1, esc(item.Ticket), clip(item.FullName, inlineLimit))
			if item.Reason != "" {
				fmt.Fprintf(&b, " (Alasan: %s)", clip(item.Reason, inlineLimit))
			}
		}
	}
	return b.String()
}

// freeText возвращает поле для вставки в текст. Порог сравнивается с
// экранированной длиной, чтобы строка сообщения не превысила CaptionLimit.
// В файл пишется исходный текст без изменений.
func (c *Composer) freeText(ticket, field, label, text string, msg *Message) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "-"
	}
	if utf8.RuneCountInString(esc(trimmed)) <= c.threshold {
		return esc(trimmed)
	}
	name := fmt.Sprintf("%s_%s_%s.txt", sanitizeName(ticket), field, uuid.NewString()[:8])
	path := filepath.Join(c.overflowDir, name)
	if err := os.MkdirAll(c.overflowDir, 0o755); err == nil {
		err = os.WriteFile(path, []byte(text), 0o600)
		if err == nil {
			msg.Overflow = append(msg.Overflow, Overflow{
				Field:   field,
				Path:    path,
				Caption: fmt.Sprintf("📎 %s lengkap (%s)", label, ticket),
			})
			return fmt.Sprintf("<i>(teks panjang, lihat file terlampir: %s)</i>", esc(name))
		}
		c.logger.Error("overflow attachment write failed", slog.String("ticket", ticket), slog.String("error", err.Error()))
	} else {
		c.logger.Error("overflow dir create failed", slog.String("dir", c.overflowDir), slog.String("error", err.Error()))
	}
	return clip(trimmed, c.threshold)
}

func certificateIndicator(ref string) string {
	if strings.TrimSpace(ref) == "" {
		return "➖ tidak dilampirkan"
	}
	return "✅ terlampir"
}

func esc(value string) string {
	return html.EscapeString(value)
}

func orDash(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return clip(value, inlineLimit)
}

// clip экранирует value и обрезает результат до limit символов, не
// разрывая HTML-сущности.
func clip(value string, limit int) string {
	escaped := esc(value)
	if utf8.RuneCountInString(escaped) <= limit {
		return escaped
	}
	var b strings.Builder
	n := 0
	for _, r := range value {
		part := esc(string(r))
		size := utf8.RuneCountInString(part)
		if n+size > limit {
			break
		}
		b.WriteString(part)
		n += size
	}
	return b.String() + "…"
}

func joinNonEmpty(sep string, values ...string) string {
	parts := make([]string, 0, len(values))
	for _, value := range values {
		if v := strings.TrimSpace(value); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}

func sanitizeName(value string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, value)
}
