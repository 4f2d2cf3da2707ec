package sheets

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"slotbook/internal/models"
)

// Column layouts. Header lives in row 1; data starts at row 2.
//
//	Slots:   A id | B date | C label | D capacity | E taken
//	Signups: A id | B timestamp | C date | D label | E name | F contact |
//	         G notes | H category | I slot id | J status | K batch id
const (
	slotsDataRange   = "!A2:E"
	signupsDataRange = "!A2:K"

	slotTakenColumn    = "E"
	signupStatusColumn = "J"
)

func slotRowValues(sl models.Slot) []interface{} {
	return []interface{}{
		sl.ID,
		sl.Date,
		sl.Label,
		int64(sl.Capacity),
		int64(sl.Taken),
	}
}

func parseSlotRow(row []interface{}) (models.Slot, bool) {
	if len(row) < 4 {
		return models.Slot{}, false
	}
	id := asInt64(row[0])
	if id <= 0 {
		return models.Slot{}, false
	}
	sl := models.Slot{
		ID:       id,
		Date:     asString(row[1]),
		Label:    asString(row[2]),
		Capacity: int(asInt64(row[3])),
	}
	if len(row) > 4 {
		sl.Taken = int(asInt64(row[4]))
	}
	return sl, true
}

func signupRowValues(su models.Signup) []interface{} {
	return []interface{}{
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
}

func parseSignupRow(row []interface{}) (models.Signup, bool) {
	if len(row) < 10 {
		return models.Signup{}, false
	}
	id := asInt64(row[0])
	if id <= 0 {
		return models.Signup{}, false
	}
	su := models.Signup{
		ID:        id,
		Date:      asString(row[2]),
		SlotLabel: asString(row[3]),
		Name:      asString(row[4]),
		Contact:   asString(row[5]),
		Notes:     asString(row[6]),
		Category:  asString(row[7]),
		SlotID:    asInt64(row[8]),
		Status:    asString(row[9]),
	}
	if ts, err := time.Parse(models.TimestampFormat, asString(row[1])); err == nil {
		su.CreatedAt = ts
	}
	if len(row) > 10 {
		su.BatchID = asString(row[10])
	}
	return su, true
}

// clampedIncrementFormula caps the counter at the capacity cell even when a
// racing writer bumped it between our read and this write.
func clampedIncrementFormula(row, taken int) string {
	return fmt.Sprintf("=MIN(D%d,%d)", row, taken+1)
}

var updatedRangeRe = regexp.MustCompile(`![A-Z]+(\d+)`)

// parseRangeStartRow extracts the first row number from an A1 range such as
// "Signups!A12:K13".
func parseRangeStartRow(rng string) (int, error) {
	m := updatedRangeRe.FindStringSubmatch(rng)
	if m == nil {
		return 0, fmt.Errorf("cannot parse range %q", rng)
	}
	row, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("cannot parse range %q: %w", rng, err)
	}
	return row, nil
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case int:
		return int64(t)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
