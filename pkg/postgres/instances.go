package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
)

const instanceColumns = `id, template_id, shift_date, starts_at, ends_at, note`

// insertInstanceSQL inserts unless (template_id, shift_date) exists and returns whichever id is stored
const insertInstanceSQL = `
	WITH ins AS (
		INSERT INTO shift_instances (template_id, shift_date, starts_at, ends_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (template_id, shift_date) DO NOTHING
		RETURNING id
	)
	SELECT id FROM ins
	UNION ALL
	SELECT id FROM shift_instances WHERE template_id = $1 AND shift_date = $2
	LIMIT 1`

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanInstance(row pgx.Row) (*model.ShiftInstance, error) {
	var i model.ShiftInstance
	if err := row.Scan(&i.ID, &i.TemplateID, &i.Date, &i.StartsAt, &i.EndsAt, &i.Note); err != nil {
		return nil, err
	}
	return &i, nil
}

// GetInstance retrieves a shift instance by id
func (d *DB) GetInstance(ctx context.Context, id int64) (*model.ShiftInstance, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+instanceColumns+` FROM shift_instances WHERE id = $1`, id)
	i, err := scanInstance(row)
	if err != nil {
		return nil, notFound(err)
	}
	return i, nil
}

// ListInstancesInRange retrieves instances dated within [from, to]
func (d *DB) ListInstancesInRange(ctx context.Context, from, to time.Time) ([]model.ShiftInstance, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+instanceColumns+`
		FROM shift_instances
		WHERE shift_date BETWEEN $1 AND $2
		ORDER BY starts_at, template_id
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	defer rows.Close()

	var instances []model.ShiftInstance
	for rows.Next() {
		i, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, *i)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instances: %w", err)
	}

	return instances, nil
}

// InsertInstanceIfAbsent creates the instance unless one exists for its template and date
func (d *DB) InsertInstanceIfAbsent(ctx context.Context, instance model.ShiftInstance) (int64, error) {
	return insertInstance(ctx, d.pool, instance)
}

func insertInstance(ctx context.Context, q queryRower, instance model.ShiftInstance) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, insertInstanceSQL, instance.TemplateID, instance.Date, instance.StartsAt, instance.EndsAt).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// A concurrent insert committed after this statement's snapshot; read it back
		err = q.QueryRow(ctx, `SELECT id FROM shift_instances WHERE template_id = $1 AND shift_date = $2`,
			instance.TemplateID, instance.Date).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert instance: %w", err)
	}
	return id, nil
}

// EnsureInstances inserts missing instances in one transaction and returns all ids in input order
func (d *DB) EnsureInstances(ctx context.Context, instances []model.ShiftInstance) ([]int64, error) {
	if len(instances) == 0 {
		return nil, nil
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]int64, 0, len(instances))
	for _, instance := range instances {
		id, err := insertInstance(ctx, tx, instance)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return ids, nil
}

// FindInstanceIDs returns ids of existing instances of a template on the given dates
func (d *DB) FindInstanceIDs(ctx context.Context, templateID int64, dates []time.Time) ([]int64, error) {
	if len(dates) == 0 {
		return nil, nil
	}

	rows, err := d.pool.Query(ctx, `
		SELECT id FROM shift_instances
		WHERE template_id = $1 AND shift_date = ANY($2::date[])
		ORDER BY shift_date
	`, templateID, dates)
	if err != nil {
		return nil, fmt.Errorf("failed to query instance ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to scan instance ids: %w", err)
	}
	return ids, nil
}
