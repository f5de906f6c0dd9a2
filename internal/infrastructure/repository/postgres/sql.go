package postgres

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
	"github.com/riskibarqy/oddsline/internal/domain/match"
)

const pqUniqueViolation = "23505"

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqUniqueViolation
	}
	return false
}

func activeStatusArgs() []any {
	out := make([]any, 0, len(match.ActiveStatuses))
	for _, status := range match.ActiveStatuses {
		out = append(out, string(status))
	}
	return out
}

func nullIntFromPtr(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func ptrFromNullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	out := int(v.Int64)
	return &out
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func stringFromPtr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
