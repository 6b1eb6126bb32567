// Package media находит файлы вложений заявки и помечает их для отправки.
package media

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"osis_bot/internal/admission"
)

const (
	// PhotoMaxBytes ограничивает размер фото для sendPhoto.
	PhotoMaxBytes int64 = 10 << 20
	// DocumentMaxBytes ограничивает размер документа для sendDocument.
	DocumentMaxBytes int64 = 50 << 20
)

// Kind определяет способ отправки вложения.
type Kind int

const (
	KindPhoto Kind = iota + 1
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindPhoto:
		return "photo"
	case KindDocument:
		return "document"
	default:
		return "unknown"
	}
}

// Category определяет тип вложения и его каталог.
type Category string

const (
	CategoryPhoto                   Category = "photo"
	CategoryOrganizationCertificate Category = "organization_certificate"
	CategoryAchievementCertificate  Category = "achievement_certificate"
)

// Item описывает найденное на диске вложение.
type Item struct {
	Kind     Kind
	Category Category
	Ref      string
	Path     string
	Caption  string
	Size     int64
}

// Config описывает расположение загруженных файлов.
type Config struct {
	Root             string
	FlatDir          string
	Dirs             map[Category]string
	PhotoMaxBytes    int64
	DocumentMaxBytes int64
}

// DefaultDirs возвращает подкаталоги по типу вложения относительно Root.
func DefaultDirs() map[Category]string {
	return map[Category]string{
		CategoryPhoto:                   "photos",
		CategoryOrganizationCertificate: filepath.Join("certificates", "organizations"),
		CategoryAchievementCertificate:  filepath.Join("certificates", "achievements"),
	}
}

// Resolver сопоставляет ссылки заявки с файлами на диске.
type Resolver struct {
	cfg    Config
	logger *slog.Logger
}

// NewResolver создает Resolver.
func NewResolver(cfg Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dirs == nil {
		cfg.Dirs = DefaultDirs()
	}
	if cfg.PhotoMaxBytes <= 0 {
		cfg.PhotoMaxBytes = PhotoMaxBytes
	}
	if cfg.DocumentMaxBytes <= 0 {
		cfg.DocumentMaxBytes = DocumentMaxBytes
	}
	return &Resolver{cfg: cfg, logger: logger}
}

type reference struct {
	category Category
	name     string
	caption  string
}

// Resolve возвращает существующие вложения. Отсутствующие файлы
// логируются и пропускаются.
func (r *Resolver) Resolve(ctx context.Context, app admission.Application) []Item {
	refs := collectReferences(app)
	items := make([]Item, 0, len(refs))
	for _, ref := range refs {
		if ctx.Err() != nil {
			break
		}
		path, info, ok := r.locate(ref)
		if !ok {
			r.logger.Warn("attachment missing",
				slog.String("ticket", app.Ticket),
				slog.String("category", string(ref.category)),
				slog.String("ref", ref.name),
			)
			continue
		}
		item := Item{
			Kind:     KindDocument,
			Category: ref.category,
			Ref:      ref.name,
			Path:     path,
			Caption:  ref.caption,
			Size:     info.Size(),
		}
		if isPhotoFile(path) {
			item.Kind = KindPhoto
		}
		if item.Kind == KindPhoto && item.Size > r.cfg.PhotoMaxBytes {
			item.Kind = KindDocument
			item.Caption = StripMarkup(item.Caption)
			r.logger.Info("photo too large, sending as document", slog.String("ticket", app.Ticket), slog.Int64("size", item.Size))
		}
		if item.Kind == KindDocument && item.Size > r.cfg.DocumentMaxBytes {
			r.logger.Warn("attachment exceeds document limit",
				slog.String("ticket", app.Ticket),
				slog.String("ref", ref.name),
				slog.Int64("size", item.Size),
			)
			continue
		}
		if item.Kind == KindDocument {
			item.Caption = StripMarkup(item.Caption)
		}
		items = append(items, item)
	}
	return items
}

// Candidates возвращает упорядоченные пути, где ищется вложение.
func (r *Resolver) Candidates(category Category, name string) []string {
	base := filepath.Base(filepath.Clean(strings.TrimSpace(name)))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return nil
	}
	candidates := make([]string, 0, 3)
	if dir, ok := r.cfg.Dirs[category]; ok && dir != "" {
		candidates = append(candidates, filepath.Join(r.cfg.Root, dir, base))
	}
	if r.cfg.FlatDir != "" {
		candidates = append(candidates, filepath.Join(r.cfg.FlatDir, base))
	}
	candidates = append(candidates, filepath.Join(r.cfg.Root, base))
	return candidates
}

func (r *Resolver) locate(ref reference) (string, os.FileInfo, bool) {
	for _, candidate := range r.Candidates(ref.category, ref.name) {
		info, err := os.Stat(candidate)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			abs = candidate
		}
		return abs, info, true
	}
	return "", nil, false
}

func collectReferences(app admission.Application) []reference {
	refs := make([]reference, 0, 1+len(app.Organizations)+len(app.Achievements))
	if strings.TrimSpace(app.Photo) != "" {
		refs = append(refs, reference{
			category: CategoryPhoto,
			name:     app.Photo,
			caption:  fmt.Sprintf("📸 <b>Foto</b> %s (%s)", html.EscapeString(app.FullName), html.EscapeString(app.Ticket)),
		})
	}
	for _, org := range app.Organizations {
		if strings.TrimSpace(org.Certificate) == "" {
			continue
		}
		refs = append(refs, reference{
			category: CategoryOrganizationCertificate,
			name:     org.Certificate,
			caption:  fmt.Sprintf("📄 <b>Sertifikat Organisasi</b> %s (%s)", html.EscapeString(org.Name), html.EscapeString(app.Ticket)),
		})
	}
	for _, ach := range app.Achievements {
		if strings.TrimSpace(ach.Certificate) == "" {
			continue
		}
		refs = append(refs, reference{
			category: CategoryAchievementCertificate,
			name:     ach.Certificate,
			caption:  fmt.Sprintf("🏆 <b>Sertifikat Prestasi</b> %s (%s)", html.EscapeString(ach.Name), html.EscapeString(app.Ticket)),
		})
	}
	return refs
}

func isPhotoFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	default:
		return false
	}
}

var markupTag = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)

// StripMarkup удаляет HTML-разметку Telegram для подписей документов.
func StripMarkup(text string) string {
	return html.UnescapeString(markupTag.ReplaceAllString(text, ""))
}
