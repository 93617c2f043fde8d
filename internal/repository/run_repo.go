package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Yulikepython/drive-cleaner/internal/model"
)

type RunRepository struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// runResult is the JSONB payload of a run's phase result.
type runResult struct {
	Discover  *model.DiscoverResult  `json:"discover,omitempty"`
	Reconcile *model.ReconcileResult `json:"reconcile,omitempty"`
}

func (r *RunRepository) Create(ctx context.Context, run model.RunRecord) error {
	startedAt, finishedAt := runTimes(run)

	_, err := r.pool.Exec(ctx,
		`INSERT INTO sweep_runs (id, phase, trigger, status, started_at, finished_at, error_text)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.RunID, string(run.Phase), run.Trigger, string(run.Status), startedAt, finishedAt, run.Error)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (r *RunRepository) Update(ctx context.Context, run model.RunRecord) error {
	_, finishedAt := runTimes(run)

	result, err := json.Marshal(runResult{Discover: run.Discover, Reconcile: run.Reconcile})
	if err != nil {
		return fmt.Errorf("marshal run result: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`UPDATE sweep_runs SET status = $2, finished_at = $3, result = $4, error_text = $5
		 WHERE id = $1`,
		run.RunID, string(run.Status), finishedAt, result, run.Error)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

func (r *RunRepository) FindByID(ctx context.Context, runID string) (model.RunRecord, error) {
	run, err := scanRun(r.pool.QueryRow(ctx,
		`SELECT id, phase, trigger, status, started_at, finished_at, result, error_text
		 FROM sweep_runs WHERE id = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RunRecord{}, model.ErrRunNotFound
	}
	if err != nil {
		return model.RunRecord{}, fmt.Errorf("find run: %w", err)
	}
	return run, nil
}

func (r *RunRepository) List(ctx context.Context, page int, limit int) ([]model.RunRecord, model.Meta, error) {
	page, limit = model.NormalizePage(page, limit, 20, 100)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sweep_runs`).Scan(&total); err != nil {
		return nil, model.Meta{}, fmt.Errorf("count runs: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, phase, trigger, status, started_at, finished_at, result, error_text
		 FROM sweep_runs
		 ORDER BY started_at DESC
		 LIMIT $1 OFFSET $2`, limit, (page-1)*limit)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]model.RunRecord, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, model.Meta{}, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, model.NewMeta(page, limit, total), rows.Err()
}

func scanRun(scanner rowScanner) (model.RunRecord, error) {
	var run model.RunRecord
	var phase, status string
	var startedAt time.Time
	var finishedAt *time.Time
	var resultJSON []byte

	if err := scanner.Scan(&run.RunID, &phase, &run.Trigger, &status, &startedAt, &finishedAt, &resultJSON, &run.Error); err != nil {
		return model.RunRecord{}, err
	}

	run.Phase = model.Phase(phase)
	run.Status = model.RunStatus(status)
	run.StartedAt = startedAt.UTC().Format(time.RFC3339Nano)
	if finishedAt != nil {
		run.FinishedAt = finishedAt.UTC().Format(time.RFC3339Nano)
	}

	if len(resultJSON) > 0 {
		var result runResult
		if err := json.Unmarshal(resultJSON, &result); err == nil {
			run.Discover = result.Discover
			run.Reconcile = result.Reconcile
		}
	}

	return run, nil
}

func runTimes(run model.RunRecord) (time.Time, *time.Time) {
	startedAt, err := time.Parse(time.RFC3339Nano, run.StartedAt)
	if err != nil {
		startedAt = time.Now().UTC()
	}

	var finishedAt *time.Time
	if run.FinishedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, run.FinishedAt); err == nil {
			finishedAt = &t
		}
	}
	return startedAt, finishedAt
}
