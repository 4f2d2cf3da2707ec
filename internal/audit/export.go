package audit

import (
	"context"
	"fmt"
	"io"

	"slotbook/internal/models"
)

// TableSource is the read side of the tabular store used for exports.
type TableSource interface {
	ListSlots(ctx context.Context) ([]models.Slot, error)
	ListSignups(ctx context.Context) ([]models.Signup, error)
}

// Exporter dumps both tables into an xlsx workbook for offline auditing.
type Exporter struct {
	store     TableSource
	newWriter func() ExcelWriter
}

func NewExporter(store TableSource) *Exporter {
	return &Exporter{store: store, newWriter: NewExcelizeWriter}
}

var (
	slotColumns   = []string{"ID", "Date", "Label", "Capacity", "Taken", "Available"}
	signupColumns = []string{"ID", "Timestamp", "Date", "Slot Label", "Name", "Contact", "Notes", "Category", "Slot ID", "Status", "Batch ID"}
)

// Export writes the workbook to w.
func (e *Exporter) Export(ctx context.Context, w io.Writer) error {
	ew, err := e.build(ctx)
	if err != nil {
		return err
	}
	defer ew.Close()
	return ew.Save(w)
}

// ExportToFile writes the workbook to disk.
func (e *Exporter) ExportToFile(ctx context.Context, path string) error {
	ew, err := e.build(ctx)
	if err != nil {
		return err
	}
	defer ew.Close()
	return ew.SaveToFile(path)
}

func (e *Exporter) build(ctx context.Context) (ExcelWriter, error) {
	slots, err := e.store.ListSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("read slots: %w", err)
	}
	signups, err := e.store.ListSignups(ctx)
	if err != nil {
		return nil, fmt.Errorf("read signups: %w", err)
	}

	ew := e.newWriter()
	ok := false
	defer func() {
		if !ok {
			_ = ew.Close()
		}
	}()

	if err := ew.AddSheet("Slots"); err != nil {
		return nil, err
	}
	if err := ew.WriteHeader(slotColumns); err != nil {
		return nil, err
	}
	for _, sl := range slots {
		row := []interface{}{sl.ID, sl.Date, sl.Label, sl.Capacity, sl.Taken, sl.Available()}
		if err := ew.WriteRow(row); err != nil {
			return nil, err
		}
	}

	if err := ew.AddSheet("Signups"); err != nil {
		return nil, err
	}
	if err := ew.WriteHeader(signupColumns); err != nil {
		return nil, err
	}
	for _, su := range signups {
		row := []interface{}{
			su.ID,
			su.CreatedAt.Format(models.TimestampFormat),
			su.Date,
			su.SlotLabel,
			su.Name,
			su.Contact,
			su.Notes,
			su.Category,
			su.SlotID,
			su.Status,
			su.BatchID,
		}
		if err := ew.WriteRow(row); err != nil {
			return nil, err
		}
	}

	ok = true
	return ew, nil
}
