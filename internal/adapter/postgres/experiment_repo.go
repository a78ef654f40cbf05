package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

type experimentRow struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

func (r experimentRow) experiment() domain.Experiment {
	return domain.Experiment{ID: r.ID, UserID: r.UserID, Name: r.Name, CreatedAt: r.CreatedAt}
}

// CreateExperiment inserts an experiment owned by userID.
func (d *DB) CreateExperiment(ctx context.Context, userID int64, name string) (*domain.Experiment, error) {
	var row experimentRow
	err := d.sql.GetContext(ctx, &row,
		"INSERT INTO experiments (user_id, name, created_at) VALUES ($1, $2, $3) RETURNING id, user_id, name, created_at",
		userID, name, time.Now().UTC(),
	)
	if err != nil {
		return nil, err
	}
	e := row.experiment()
	return &e, nil
}

// ListExperiments lists the user's experiments in creation order.
func (d *DB) ListExperiments(ctx context.Context, userID int64) ([]domain.Experiment, error) {
	var rows []experimentRow
	if err := d.sql.SelectContext(ctx, &rows,
		"SELECT id, user_id, name, created_at FROM experiments WHERE user_id = $1 ORDER BY id",
		userID,
	); err != nil {
		return nil, err
	}
	out := make([]domain.Experiment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.experiment())
	}
	return out, nil
}

// GetExperiment retrieves an experiment by ID.
func (d *DB) GetExperiment(ctx context.Context, id int64) (*domain.Experiment, error) {
	var row experimentRow
	err := d.sql.GetContext(ctx, &row, "SELECT id, user_id, name, created_at FROM experiments WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e := row.experiment()
	return &e, nil
}

// DeleteExperimentCascade removes an experiment with its parameters and
// entries in one transaction.
func (d *DB) DeleteExperimentCascade(ctx context.Context, id int64) error {
	tx, err := d.sql.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		"DELETE FROM daily_entries WHERE experiment_id = $1",
		"DELETE FROM parameters WHERE experiment_id = $1",
		"DELETE FROM experiments WHERE id = $1",
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("delete experiment %d: %w", id, err)
		}
	}
	return tx.Commit()
}

type parameterRow struct {
	ID           int64  `db:"id"`
	ExperimentID int64  `db:"experiment_id"`
	Name         string `db:"name"`
	Role         string `db:"role"`
	Type         string `db:"type"`
	ClassMin     *int   `db:"class_min"`
	ClassMax     *int   `db:"class_max"`
}

func (r parameterRow) parameter() domain.Parameter {
	return domain.Parameter{
		ID:           r.ID,
		ExperimentID: r.ExperimentID,
		Name:         r.Name,
		Role:         domain.Role(r.Role),
		Type:         domain.ParamType(r.Type),
		ClassMin:     r.ClassMin,
		ClassMax:     r.ClassMax,
	}
}

const parameterColumns = "id, experiment_id, name, role, type, class_min, class_max"

// CreateParameter inserts a parameter. A duplicate name within the
// experiment is reported as a ValidationError.
func (d *DB) CreateParameter(ctx context.Context, p domain.Parameter) (*domain.Parameter, error) {
	var row parameterRow
	err := d.sql.GetContext(ctx, &row,
		"INSERT INTO parameters (experiment_id, name, role, type, class_min, class_max) VALUES ($1, $2, $3, $4, $5, $6) RETURNING "+parameterColumns,
		p.ExperimentID, p.Name, string(p.Role), string(p.Type), p.ClassMin, p.ClassMax,
	)
	if err != nil {
		return nil, uniqueViolation(err, "name", fmt.Sprintf("parameter %q already exists", p.Name))
	}
	out := row.parameter()
	return &out, nil
}

// ListParameters lists an experiment's parameters in creation order.
func (d *DB) ListParameters(ctx context.Context, experimentID int64) ([]domain.Parameter, error) {
	var rows []parameterRow
	if err := d.sql.SelectContext(ctx, &rows,
		"SELECT "+parameterColumns+" FROM parameters WHERE experiment_id = $1 ORDER BY id",
		experimentID,
	); err != nil {
		return nil, err
	}
	out := make([]domain.Parameter, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.parameter())
	}
	return out, nil
}

// GetParameter retrieves a parameter by ID.
func (d *DB) GetParameter(ctx context.Context, id int64) (*domain.Parameter, error) {
	var row parameterRow
	err := d.sql.GetContext(ctx, &row, "SELECT "+parameterColumns+" FROM parameters WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p := row.parameter()
	return &p, nil
}
