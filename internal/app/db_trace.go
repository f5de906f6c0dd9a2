package app

import (
	"regexp"
	"strings"
)

const maxTracedQueryLength = 512

var (
	queryWhitespaceRegex  = regexp.MustCompile(`\s+`)
	queryLineCommentRegex = regexp.MustCompile(`--[^\n]*`)
	// IN lists built from team names and bet ids vary in length per call.
	placeholderListRegex = regexp.MustCompile(`\$\d+(?:\s*,\s*\$\d+)+`)
)

// formatDBQueryForTrace renders a query as a span attribute: comments dropped,
// whitespace collapsed, placeholder lists folded so equal statements group
// together, and the result capped.
func formatDBQueryForTrace(query string) string {
	query = queryLineCommentRegex.ReplaceAllString(query, "")
	query = strings.TrimSpace(queryWhitespaceRegex.ReplaceAllString(query, " "))
	if query == "" {
		return query
	}

	query = placeholderListRegex.ReplaceAllString(query, "$$n...")
	if len(query) <= maxTracedQueryLength {
		return query
	}
	return query[:maxTracedQueryLength] + "..."
}
