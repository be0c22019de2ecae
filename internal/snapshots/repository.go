package snapshots

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/explotacion/internal/profitability"
	"github.com/odyssey-erp/explotacion/internal/shared"
)

// PGRepository persists snapshots in profitability_snapshots.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repo.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const snapshotColumns = `id::text, month, group_by, status, payload, COALESCE(error_message, ''), generated_at, created_at, updated_at`

// Insert stores a pending snapshot.
func (r *PGRepository) Insert(ctx context.Context, snap Snapshot) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO profitability_snapshots (id, month, group_by, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`, snap.ID, snap.Month, snap.GroupBy, string(snap.Status), snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("snapshots: insert: %w", err)
	}
	return nil
}

// List returns one page of snapshots, newest first, and the total count.
func (r *PGRepository) List(ctx context.Context, filters ListFilters) ([]Snapshot, int, error) {
	page := shared.NewPagination(filters.Page, filters.Limit, 0)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM profitability_snapshots`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+snapshotColumns+`
		FROM profitability_snapshots
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, 0, err
		}
		// listing omits the payload
		snap.Payload = nil
		out = append(out, snap)
	}
	return out, total, rows.Err()
}

// Get fetches by id.
func (r *PGRepository) Get(ctx context.Context, id string) (Snapshot, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+snapshotColumns+` FROM profitability_snapshots WHERE id::text = $1`, id)
	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrSnapshotNotFound
		}
		return Snapshot{}, err
	}
	return snap, nil
}

// UpdateStatus moves a snapshot through its lifecycle.
func (r *PGRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE profitability_snapshots SET status = $2, updated_at = NOW() WHERE id::text = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSnapshotNotFound
	}
	return nil
}

// SavePayload stores the generated report or the failure message.
func (r *PGRepository) SavePayload(ctx context.Context, id string, payload *profitability.Result, errMsg string) error {
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return err
		}
	}
	var msg *string
	if errMsg != "" {
		msg = &errMsg
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE profitability_snapshots
		SET payload = $2, error_message = $3, generated_at = NOW(), updated_at = NOW()
		WHERE id::text = $1`, id, data, msg)
	return err
}

func scanSnapshot(row pgx.Row) (Snapshot, error) {
	var (
		snap    Snapshot
		status  string
		payload []byte
	)
	if err := row.Scan(&snap.ID, &snap.Month, &snap.GroupBy, &status, &payload, &snap.Error,
		&snap.GeneratedAt, &snap.CreatedAt, &snap.UpdatedAt); err != nil {
		return Snapshot{}, err
	}
	snap.Status = Status(status)
	if len(payload) > 0 {
		var res profitability.Result
		if err := json.Unmarshal(payload, &res); err != nil {
			return Snapshot{}, fmt.Errorf("snapshots: decode payload: %w", err)
		}
		snap.Payload = &res
	}
	return snap, nil
}
