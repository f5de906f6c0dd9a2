package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator creates opaque IDs for scraper runs and queued tasks.
type Generator interface {
	NewID() (string, error)
}

type UUIDGenerator struct {
	prefix string
}

func NewUUIDGenerator(prefix string) *UUIDGenerator {
	return &UUIDGenerator{prefix: strings.TrimSpace(prefix)}
}

func (g *UUIDGenerator) NewID() (string, error) {
	v, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	if g.prefix == "" {
		return v.String(), nil
	}
	return g.prefix + "_" + v.String(), nil
}
