package laboratory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/labflow/labflow/internal/platform/db"
)

// The laboratory table holds exactly one row per tenant schema, keyed by a
// constant id so upserts stay trivial.
type pgRepository struct{}

func NewPgRepository() Repository { return &pgRepository{} }

func (r *pgRepository) Get(ctx context.Context) (*Laboratory, error) {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return nil, errors.New("no database connection in context")
	}

	var (
		lab      Laboratory
		branches []byte
		features []byte
	)
	err := conn.QueryRow(ctx,
		"SELECT name, branches, features, created_at, updated_at FROM laboratory WHERE id = 1",
	).Scan(&lab.Name, &branches, &features, &lab.CreatedAt, &lab.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get laboratory: %w", err)
	}

	if err := json.Unmarshal(branches, &lab.Branches); err != nil {
		return nil, fmt.Errorf("decode branches: %w", err)
	}
	if err := json.Unmarshal(features, &lab.Features); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	return &lab, nil
}

func (r *pgRepository) Upsert(ctx context.Context, lab *Laboratory) error {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return errors.New("no database connection in context")
	}

	branches, err := json.Marshal(lab.Branches)
	if err != nil {
		return fmt.Errorf("encode branches: %w", err)
	}
	features, err := json.Marshal(lab.Features)
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}

	_, err = conn.Exec(ctx, `
		INSERT INTO laboratory (id, name, branches, features, created_at, updated_at)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, branches = EXCLUDED.branches,
			features = EXCLUDED.features, updated_at = EXCLUDED.updated_at`,
		lab.Name, branches, features, lab.CreatedAt, lab.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert laboratory: %w", err)
	}
	return nil
}
