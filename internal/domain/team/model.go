package team

import (
	"errors"
	"strings"
	"time"
)

var ErrAlreadyExists = errors.New("team already exists")

// Team is a club as named on the bookmaker page. The name is its identity.
type Team struct {
	ID        int64
	Name      string
	LogoURL   string
	CreatedAt time.Time
}

func (t Team) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("team name is required")
	}
	return nil
}

// NormalizeName trims and collapses inner whitespace so lookups are stable
// across cycles.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
