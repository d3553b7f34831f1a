package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/SaiYadav1818/settlement-core/internal/domain/model"
)

type MerchantRepo struct {
	db *DB
}

func NewMerchantRepo(db *DB) *MerchantRepo {
	return &MerchantRepo{db: db}
}

func (r *MerchantRepo) FindByID(ctx context.Context, id string) (*model.Merchant, error) {
	var m model.Merchant
	err := r.db.QueryRowContext(ctx, `
		SELECT id, display_name, is_active, secret_key, secret_salt, created_at, updated_at
		FROM merchants
		WHERE id = $1
	`, id).Scan(
		&m.ID, &m.DisplayName, &m.IsActive, &m.SecretKey, &m.SecretSalt,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find merchant: %w", err)
	}
	return &m, nil
}

func (r *MerchantRepo) ListActive(ctx context.Context) ([]model.Merchant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, display_name, is_active, secret_key, secret_salt, created_at, updated_at
		FROM merchants
		WHERE is_active = true
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query merchants: %w", err)
	}
	defer rows.Close()

	var merchants []model.Merchant
	for rows.Next() {
		var m model.Merchant
		if err := rows.Scan(
			&m.ID, &m.DisplayName, &m.IsActive, &m.SecretKey, &m.SecretSalt,
			&m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan merchant: %w", err)
		}
		merchants = append(merchants, m)
	}
	return merchants, rows.Err()
}
