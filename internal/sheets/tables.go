package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/sheets/v4"

	"slotbook/internal/models"
)

// Typed table layer over the generic range operations. These methods satisfy
// the store interfaces of the booking, catalog and admin packages.

// ListSlots reads the whole Slots table and refreshes the row cache.
func (s *SheetsService) ListSlots(ctx context.Context) ([]models.Slot, error) {
	rows, err := s.ReadRange(ctx, s.cfg.SlotsSheet+slotsDataRange)
	if err != nil {
		return nil, err
	}
	slots := make([]models.Slot, 0, len(rows))
	for i, row := range rows {
		sl, ok := parseSlotRow(row)
		if !ok {
			continue
		}
		s.setCachedRow(s.cfg.SlotsSheet, sl.ID, i+2)
		s.observeID(s.cfg.SlotsSheet, sl.ID)
		slots = append(slots, sl)
	}
	return slots, nil
}

// ListSignups reads the whole Signups table and refreshes the row cache.
func (s *SheetsService) ListSignups(ctx context.Context) ([]models.Signup, error) {
	rows, err := s.ReadRange(ctx, s.cfg.SignupsSheet+signupsDataRange)
	if err != nil {
		return nil, err
	}
	signups := make([]models.Signup, 0, len(rows))
	for i, row := range rows {
		su, ok := parseSignupRow(row)
		if !ok {
			continue
		}
		s.setCachedRow(s.cfg.SignupsSheet, su.ID, i+2)
		s.observeID(s.cfg.SignupsSheet, su.ID)
		signups = append(signups, su)
	}
	return signups, nil
}

// AppendSlots assigns fresh ids and appends the slots. Used by admin slot
// creation; taken starts at whatever the caller set (normally zero).
func (s *SheetsService) AppendSlots(ctx context.Context, slots []models.Slot) ([]models.Slot, error) {
	if len(slots) == 0 {
		return nil, nil
	}
	ids := s.allocateIDs(s.cfg.SlotsSheet, len(slots))
	rows := make([][]interface{}, 0, len(slots))
	for i := range slots {
		slots[i].ID = ids[i]
		rows = append(rows, slotRowValues(slots[i]))
	}
	startRow, err := s.AppendRows(ctx, s.cfg.SlotsSheet+slotsDataRange, rows)
	if err != nil {
		return nil, err
	}
	for i := range slots {
		s.setCachedRow(s.cfg.SlotsSheet, slots[i].ID, startRow+i)
	}
	return slots, nil
}

// AppendSignups assigns fresh ids and appends the signup rows in one call.
func (s *SheetsService) AppendSignups(ctx context.Context, signups []models.Signup) ([]models.Signup, error) {
	if len(signups) == 0 {
		return nil, nil
	}
	ids := s.allocateIDs(s.cfg.SignupsSheet, len(signups))
	rows := make([][]interface{}, 0, len(signups))
	for i := range signups {
		signups[i].ID = ids[i]
		rows = append(rows, signupRowValues(signups[i]))
	}
	startRow, err := s.AppendRows(ctx, s.cfg.SignupsSheet+signupsDataRange, rows)
	if err != nil {
		return nil, err
	}
	for i := range signups {
		s.setCachedRow(s.cfg.SignupsSheet, signups[i].ID, startRow+i)
	}
	return signups, nil
}

// IncrementTaken writes a capacity-clamped increment for every slot in one
// batch. The formula references the live capacity cell, so even if another
// writer raced us the stored counter cannot overshoot.
func (s *SheetsService) IncrementTaken(ctx context.Context, slots []models.Slot) error {
	data := make([]*sheets.ValueRange, 0, len(slots))
	for _, sl := range slots {
		row, err := s.slotRow(ctx, sl.ID)
		if err != nil {
			return err
		}
		data = append(data, &sheets.ValueRange{
			Range:  fmt.Sprintf("%s!%s%d", s.cfg.SlotsSheet, slotTakenColumn, row),
			Values: [][]interface{}{{clampedIncrementFormula(row, sl.Taken)}},
		})
	}
	return s.UpdateCells(ctx, data)
}

// SetTaken overwrites a slot's counter with an absolute value. Callers floor
// it at zero; the adapter does not second-guess them.
func (s *SheetsService) SetTaken(ctx context.Context, slotID int64, taken int) error {
	row, err := s.slotRow(ctx, slotID)
	if err != nil {
		return err
	}
	return s.UpdateCells(ctx, []*sheets.ValueRange{{
		Range:  fmt.Sprintf("%s!%s%d", s.cfg.SlotsSheet, slotTakenColumn, row),
		Values: [][]interface{}{{int64(taken)}},
	}})
}

// UpdateSignupStatus writes the status cell of one signup row.
func (s *SheetsService) UpdateSignupStatus(ctx context.Context, signupID int64, status string) error {
	row, err := s.signupRow(ctx, signupID)
	if err != nil {
		return err
	}
	return s.UpdateCells(ctx, []*sheets.ValueRange{{
		Range:  fmt.Sprintf("%s!%s%d", s.cfg.SignupsSheet, signupStatusColumn, row),
		Values: [][]interface{}{{status}},
	}})
}

// MarkBatchFailed stamps the given status on every signup row carrying the
// batch id. The batch id makes rollback exact; no heuristic row matching.
func (s *SheetsService) MarkBatchFailed(ctx context.Context, batchID, status string) error {
	signups, err := s.ListSignups(ctx)
	if err != nil {
		return err
	}
	var data []*sheets.ValueRange
	for _, su := range signups {
		if su.BatchID != batchID {
			continue
		}
		row, ok := s.getCachedRow(s.cfg.SignupsSheet, su.ID)
		if !ok {
			return fmt.Errorf("signup %d: row position unknown after fresh read", su.ID)
		}
		data = append(data, &sheets.ValueRange{
			Range:  fmt.Sprintf("%s!%s%d", s.cfg.SignupsSheet, signupStatusColumn, row),
			Values: [][]interface{}{{status}},
		})
	}
	if len(data) == 0 {
		s.log.Warn().Str("batch_id", batchID).Msg("no signup rows found for batch")
		return nil
	}
	return s.UpdateCells(ctx, data)
}

// DeleteSlots removes slot rows by id, in descending sheet order.
func (s *SheetsService) DeleteSlots(ctx context.Context, slotIDs []int64) error {
	rows := make([]int, 0, len(slotIDs))
	for _, id := range slotIDs {
		row, err := s.slotRow(ctx, id)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return s.DeleteRows(ctx, s.cfg.SlotsSheet, rows)
}

func (s *SheetsService) slotRow(ctx context.Context, id int64) (int, error) {
	if row, ok := s.getCachedRow(s.cfg.SlotsSheet, id); ok {
		return row, nil
	}
	if _, err := s.ListSlots(ctx); err != nil {
		return 0, err
	}
	row, ok := s.getCachedRow(s.cfg.SlotsSheet, id)
	if !ok {
		return 0, fmt.Errorf("slot %d not present in sheet", id)
	}
	return row, nil
}

func (s *SheetsService) signupRow(ctx context.Context, id int64) (int, error) {
	if row, ok := s.getCachedRow(s.cfg.SignupsSheet, id); ok {
		return row, nil
	}
	if _, err := s.ListSignups(ctx); err != nil {
		return 0, err
	}
	row, ok := s.getCachedRow(s.cfg.SignupsSheet, id)
	if !ok {
		return 0, fmt.Errorf("signup %d not present in sheet", id)
	}
	return row, nil
}
