package model

import "time"

// Merchant is a directory entry, read-only to this core. SecretKey and
// SecretSalt are the keyed-digest material (prefix and suffix).
type Merchant struct {
	ID          string    `db:"id"`
	DisplayName string    `db:"display_name"`
	IsActive    bool      `db:"is_active"`
	SecretKey   string    `db:"secret_key"`
	SecretSalt  string    `db:"secret_salt"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}
