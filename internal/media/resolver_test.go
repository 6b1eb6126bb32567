package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osis_bot/internal/admission"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func TestResolveSkipsMissingPhoto(t *testing.T) {
	root := t.TempDir()
	r := NewResolver(Config{Root: root}, nil)

	items := r.Resolve(context.Background(), admission.Application{Ticket: "OSIS25-100000-A", Photo: "nope.jpg"})
	assert.Empty(t, items)
}

func TestResolveUsesFallbackLocations(t *testing.T) {
	root := t.TempDir()
	flat := filepath.Join(root, "flat")
	writeFile(t, filepath.Join(root, "photos", "me.jpg"), 10)
	writeFile(t, filepath.Join(flat, "org.pdf"), 20)
	writeFile(t, filepath.Join(root, "ach.png"), 30)
	r := NewResolver(Config{Root: root, FlatDir: flat}, nil)

	items := r.Resolve(context.Background(), admission.Application{
		Ticket:        "OSIS25-100000-A",
		FullName:      "Ana & Co",
		Photo:         "me.jpg",
		Organizations: []admission.Organization{{Name: "PMR", Certificate: "org.pdf"}, {Name: "Pramuka"}},
		Achievements:  []admission.Achievement{{Name: "Olimpiade", Certificate: "ach.png"}, {Name: "Lomba", Certificate: "gone.pdf"}},
	})
	require.Len(t, items, 3)

	assert.Equal(t, KindPhoto, items[0].Kind)
	assert.Equal(t, int64(10), items[0].Size)
	assert.Contains(t, items[0].Caption, "Ana &amp; Co")

	assert.Equal(t, KindDocument, items[1].Kind)
	assert.Equal(t, CategoryOrganizationCertificate, items[1].Category)
	assert.NotContains(t, items[1].Caption, "<b>")

	assert.Equal(t, KindPhoto, items[2].Kind)
	assert.Equal(t, CategoryAchievementCertificate, items[2].Category)
	for _, item := range items {
		_, err := os.Stat(item.Path)
		assert.NoError(t, err)
	}
}

func TestResolveRetagsOversizedPhoto(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "photos", "big.jpg"), 64)
	r := NewResolver(Config{Root: root, PhotoMaxBytes: 32}, nil)

	items := r.Resolve(context.Background(), admission.Application{Ticket: "OSIS25-100000-A", FullName: "Ana", Photo: "big.jpg"})
	require.Len(t, items, 1)
	assert.Equal(t, KindDocument, items[0].Kind)
	assert.Equal(t, "📸 Foto Ana (OSIS25-100000-A)", items[0].Caption)
}

func TestCandidatesRejectTraversal(t *testing.T) {
	r := NewResolver(Config{Root: "/srv/uploads", FlatDir: "/srv/flat"}, nil)
	got := r.Candidates(CategoryPhoto, "../../etc/passwd")
	assert.Equal(t, []string{
		filepath.Join("/srv/uploads", "photos", "passwd"),
		filepath.Join("/srv/flat", "passwd"),
		filepath.Join("/srv/uploads", "passwd"),
	}, got)
	assert.Empty(t, r.Candidates(CategoryPhoto, "  "))
}

func TestStripMarkup(t *testing.T) {
	assert.Equal(t, "Foto A & B", StripMarkup("<b>Foto</b> A &amp; B"))
}
