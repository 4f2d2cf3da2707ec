package audit

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"slotbook/internal/models"
)

type stubSource struct {
	slots   []models.Slot
	signups []models.Signup
	err     error
}

func (s *stubSource) ListSlots(context.Context) ([]models.Slot, error) {
	return s.slots, s.err
}

func (s *stubSource) ListSignups(context.Context) ([]models.Signup, error) {
	return s.signups, s.err
}

func testSource() *stubSource {
	return &stubSource{
		slots: []models.Slot{
			{ID: 1, Date: "2099-06-16", Label: "9 am - 10 am", Capacity: 2, Taken: 1},
		},
		signups: []models.Signup{
			{
				ID:        1,
				CreatedAt: time.Date(2099, 6, 15, 10, 30, 0, 0, time.UTC),
				Date:      "2099-06-16",
				SlotLabel: "9 am - 10 am",
				Name:      "Alice",
				Contact:   "79991234567",
				SlotID:    1,
				BatchID:   "batch-1",
				Status:    models.StatusActive,
			},
		},
	}
}

func TestExport(t *testing.T) {
	exporter := NewExporter(testSource())

	var buf bytes.Buffer
	require.NoError(t, exporter.Export(context.Background(), &buf))

	wb, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer wb.Close()

	assert.ElementsMatch(t, []string{"Slots", "Signups"}, wb.GetSheetList())

	rows, err := wb.GetRows("Slots")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, slotColumns, rows[0])
	assert.Equal(t, []string{"1", "2099-06-16", "9 am - 10 am", "2", "1", "1"}, rows[1])

	rows, err = wb.GetRows("Signups")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2099-06-15 10:30:00", rows[1][1])
	assert.Equal(t, "ACTIVE", rows[1][9])
}

func TestExport_SourceError(t *testing.T) {
	exporter := NewExporter(&stubSource{err: assert.AnError})
	assert.Error(t, exporter.Export(context.Background(), io.Discard))
}

func TestPerformBackupAndCleanup(t *testing.T) {
	dir := t.TempDir()
	logger := zerolog.New(io.Discard)
	svc := NewBackupService(NewExporter(testSource()), BackupConfig{
		Enabled:       true,
		Path:          dir,
		RetentionDays: 7,
	}, &logger)

	require.NoError(t, svc.PerformBackup(context.Background()))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Contains(t, files[0].Name(), "snapshot_")

	// Age the snapshot past retention and confirm cleanup removes it.
	old := time.Now().AddDate(0, 0, -8)
	path := filepath.Join(dir, files[0].Name())
	require.NoError(t, os.Chtimes(path, old, old))

	svc.CleanupOldBackups()
	files, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
}
