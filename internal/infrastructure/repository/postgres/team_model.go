package postgres

import "time"

type teamTableModel struct {
	ID        int64     `db:"id,readonly"`
	Name      string    `db:"name"`
	LogoURL   string    `db:"logo_url"`
	CreatedAt time.Time `db:"created_at,readonly"`
}
