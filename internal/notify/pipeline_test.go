package notify

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osis_bot/internal/admission"
	"osis_bot/internal/media"
)

func writeUpload(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func newPipeline(t *testing.T, root string, photoMax int64) (*Notifier, *fakeSender, string) {
	t.Helper()
	overflowDir := t.TempDir()
	sender := &fakeSender{}
	resolver := media.NewResolver(media.Config{Root: root, PhotoMaxBytes: photoMax}, nil)
	notifier := NewNotifier(-100, NewComposer(overflowDir, nil), resolver, newTestDispatcher(sender, 2), nil)
	return notifier, sender, overflowDir
}

func TestPipelineMissingPhotoFallsBackToText(t *testing.T) {
	notifier, sender, _ := newPipeline(t, t.TempDir(), 0)
	app := sampleApplication()
	app.Organizations = nil
	app.Photo = "hilang.jpg"

	report := notifier.NotifyApplication(context.Background(), -100, app, HeaderIntake)

	require.True(t, report.Delivered)
	assert.False(t, report.Degraded)
	assert.NoError(t, report.Err)
	assert.Equal(t, []string{"sendMessage"}, sender.methods())
}

func TestPipelineOversizedPhotoBecomesDocument(t *testing.T) {
	root := t.TempDir()
	writeUpload(t, filepath.Join(root, "photos", "diri.jpg"), 16)
	writeUpload(t, filepath.Join(root, "certificates", "organizations", "pramuka.jpg"), 16)
	writeUpload(t, filepath.Join(root, "certificates", "achievements", "osn.png"), 64)
	notifier, sender, _ := newPipeline(t, root, 32)

	app := sampleApplication()
	app.Photo = "diri.jpg"
	app.Organizations = []admission.Organization{{Name: "Pramuka", Certificate: "pramuka.jpg"}}
	app.Achievements = []admission.Achievement{{Name: "OSN", Certificate: "osn.png"}}

	report := notifier.NotifyApplication(context.Background(), -100, app, HeaderIntake)

	require.True(t, report.Delivered)
	methods := sender.methods()
	require.NotEmpty(t, methods)
	assert.Equal(t, "sendMediaGroup", methods[0])
	assert.Len(t, sender.calls[0].Paths, 2)
	assert.Equal(t, "sendDocument", methods[len(methods)-1])
	assert.Equal(t, "osn.png", filepath.Base(sender.calls[len(methods)-1].Paths[0]))
	assert.NotContains(t, sender.calls[len(methods)-1].Caption, "<b>")
	for _, method := range methods[1 : len(methods)-1] {
		assert.Equal(t, "sendMessage", method)
	}
}

func TestPipelineLongMotivationIsAttachedAndRemoved(t *testing.T) {
	notifier, sender, overflowDir := newPipeline(t, t.TempDir(), 0)
	app := sampleApplication()
	app.Organizations = nil
	app.Photo = ""
	app.Motivation = "  " + strings.Repeat("m", 1500) + "\n"

	report := notifier.NotifyApplication(context.Background(), -100, app, HeaderIntake)

	require.True(t, report.Delivered)
	assert.Equal(t, []string{"sendMessage", "sendDocument"}, sender.methods())
	assert.Contains(t, sender.calls[0].Text, "lihat file terlampir")
	assert.Equal(t, overflowDir, filepath.Dir(sender.calls[1].Paths[0]))
	assert.Equal(t, app.Motivation, sender.calls[1].Body)

	entries, err := os.ReadDir(overflowDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
