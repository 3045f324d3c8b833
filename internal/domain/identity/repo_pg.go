package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/labflow/labflow/internal/platform/db"
)

type pgRepository struct{}

func NewPgRepository() Repository { return &pgRepository{} }

func (r *pgRepository) GetByUserID(ctx context.Context, userID string) (*Profile, error) {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return nil, errors.New("no database connection in context")
	}

	var (
		p        Profile
		branding []byte
	)
	err := conn.QueryRow(ctx, `
		SELECT user_id, email, full_name, role, branch, branding, created_at, updated_at
		FROM profiles WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.Email, &p.FullName, &p.Role, &p.Branch, &branding,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	if len(branding) > 0 {
		if err := json.Unmarshal(branding, &p.Branding); err != nil {
			return nil, fmt.Errorf("decode branding: %w", err)
		}
	}
	return &p, nil
}

func (r *pgRepository) Create(ctx context.Context, p *Profile) error {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return errors.New("no database connection in context")
	}

	branding, err := json.Marshal(p.Branding)
	if err != nil {
		return fmt.Errorf("encode branding: %w", err)
	}

	_, err = conn.Exec(ctx, `
		INSERT INTO profiles (user_id, email, full_name, role, branch, branding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.UserID, p.Email, p.FullName, string(p.Role), p.Branch, branding,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (r *pgRepository) UpdateBranding(ctx context.Context, userID string, b Branding) error {
	conn := db.ConnFromContext(ctx)
	if conn == nil {
		return errors.New("no database connection in context")
	}

	branding, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode branding: %w", err)
	}

	tag, err := conn.Exec(ctx,
		"UPDATE profiles SET branding = $2, updated_at = $3 WHERE user_id = $1",
		userID, branding, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update branding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}
