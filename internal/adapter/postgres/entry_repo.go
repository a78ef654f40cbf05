package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

type entryRow struct {
	ID           int64     `db:"id"`
	UserID       int64     `db:"user_id"`
	ExperimentID int64     `db:"experiment_id"`
	Date         string    `db:"entry_date"`
	Payload      []byte    `db:"payload"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r entryRow) entry() (domain.DailyEntry, error) {
	e := domain.DailyEntry{
		ID:           r.ID,
		UserID:       r.UserID,
		ExperimentID: r.ExperimentID,
		Date:         r.Date,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Payload, &e.Values); err != nil {
		return e, fmt.Errorf("decode entry %d: %w", r.ID, err)
	}
	return e, nil
}

const entryColumns = "id, user_id, experiment_id, entry_date::text AS entry_date, payload, created_at, updated_at"

// UpsertDailyEntry stores values for (user, experiment, date), replacing an
// existing entry's values.
func (d *DB) UpsertDailyEntry(ctx context.Context, userID, experimentID int64, date string, values map[string]domain.Value) (*domain.DailyEntry, error) {
	if _, err := time.Parse(domain.DayLayout, date); err != nil {
		return nil, fmt.Errorf("invalid entry date %q: %w", date, err)
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encode values: %w", err)
	}

	now := time.Now().UTC()
	var row entryRow
	err = d.sql.GetContext(ctx, &row, `
		INSERT INTO daily_entries (user_id, experiment_id, entry_date, payload, created_at, updated_at)
		VALUES ($1, $2, $3::date, $4, $5, $5)
		ON CONFLICT (user_id, experiment_id, entry_date) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
		RETURNING `+entryColumns,
		userID, experimentID, date, payload, now,
	)
	if err != nil {
		return nil, err
	}
	e, err := row.entry()
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEntries lists the user's entries of an experiment by ascending date.
func (d *DB) ListEntries(ctx context.Context, userID, experimentID int64) ([]domain.DailyEntry, error) {
	var rows []entryRow
	if err := d.sql.SelectContext(ctx, &rows,
		"SELECT "+entryColumns+" FROM daily_entries WHERE user_id = $1 AND experiment_id = $2 ORDER BY entry_date",
		userID, experimentID,
	); err != nil {
		return nil, err
	}
	out := make([]domain.DailyEntry, 0, len(rows))
	for _, r := range rows {
		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// FindUsersMissingEntry returns users that own an experiment but logged
// nothing on day.
func (d *DB) FindUsersMissingEntry(ctx context.Context, day string) ([]domain.User, error) {
	var rows []userRow
	if err := d.sql.SelectContext(ctx, &rows, `
		SELECT `+userColumns+` FROM users u
		WHERE EXISTS (SELECT 1 FROM experiments e WHERE e.user_id = u.id)
		AND NOT EXISTS (SELECT 1 FROM daily_entries d WHERE d.user_id = u.id AND d.entry_date = $1::date)
		ORDER BY u.id`,
		day,
	); err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.user())
	}
	return out, nil
}
