package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Yulikepython/drive-cleaner/internal/model"
)

// undefinedTable is the PostgreSQL SQLSTATE for a missing relation.
const undefinedTable = "42P01"

// SweepConfigRepository reads the sweep criteria from one named row of a
// configuration table.
type SweepConfigRepository struct {
	pool     *pgxpool.Pool
	location model.ConfigLocation
}

func NewSweepConfigRepository(pool *pgxpool.Pool, location model.ConfigLocation) *SweepConfigRepository {
	if location.Table == "" {
		location.Table = "sweep_config"
	}
	return &SweepConfigRepository{pool: pool, location: location}
}

func (r *SweepConfigRepository) Load(ctx context.Context) (model.SweepConfig, error) {
	var folder, cutoff, owner string
	var minSize *int64
	var recursive bool

	err := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT folder, cutoff, min_size, owner, recursive FROM %s WHERE name = $1`,
			pgx.Identifier{r.location.Table}.Sanitize()),
		r.location.Name).
		Scan(&folder, &cutoff, &minSize, &owner, &recursive)

	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return model.SweepConfig{}, model.NewConfigurationError("source",
			fmt.Sprintf("no configuration named %q in %s", r.location.Name, r.location.Table))
	case errors.As(err, &pgErr) && pgErr.Code == undefinedTable:
		return model.SweepConfig{}, &model.ConfigurationError{
			Field:  "source",
			Reason: fmt.Sprintf("configuration table %s does not exist", r.location.Table),
			Err:    err,
		}
	case err != nil:
		return model.SweepConfig{}, fmt.Errorf("load sweep config: %w", err)
	}

	year, month, err := model.ParseCutoff(cutoff)
	if err != nil {
		return model.SweepConfig{}, err
	}

	cfg := model.SweepConfig{
		FolderRef:    folder,
		CutoffYear:   year,
		CutoffMonth:  month,
		MinSizeBytes: minSize,
		OwnerEmail:   owner,
		Recursive:    recursive,
	}
	return cfg, cfg.Validate()
}

// Save upserts the named configuration row.
func (r *SweepConfigRepository) Save(ctx context.Context, cfg model.SweepConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	_, err := r.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (name, folder, cutoff, min_size, owner, recursive, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (name) DO UPDATE SET
		   folder = excluded.folder, cutoff = excluded.cutoff, min_size = excluded.min_size,
		   owner = excluded.owner, recursive = excluded.recursive, updated_at = now()`,
			pgx.Identifier{r.location.Table}.Sanitize()),
		r.location.Name, cfg.FolderRef, formatCutoff(cfg), cfg.MinSizeBytes, cfg.OwnerEmail, cfg.Recursive)
	if err != nil {
		return fmt.Errorf("save sweep config: %w", err)
	}
	return nil
}

func formatCutoff(cfg model.SweepConfig) string {
	if cfg.CutoffYear == nil {
		return ""
	}
	if cfg.CutoffMonth == nil {
		return fmt.Sprintf("%04d", *cfg.CutoffYear)
	}
	return fmt.Sprintf("%04d-%02d", *cfg.CutoffYear, *cfg.CutoffMonth)
}
