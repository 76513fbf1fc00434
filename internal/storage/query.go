package storage

import (
	"fmt"
	"regexp"
	"strings"
)

var bodyFieldRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,63}$`)

// orderClause validates orderBy and dir and returns the SQL ORDER BY
// expression plus the body field to bind, if any. Body fields sort as text.
func orderClause(orderBy, dir string) (expr, field string, err error) {
	switch strings.ToLower(dir) {
	case "", "desc":
		dir = "DESC"
	case "asc":
		dir = "ASC"
	default:
		return "", "", fmt.Errorf("%w: direction %q", ErrInvalidQuery, dir)
	}

	switch orderBy {
	case "", "createdAt":
		return "created_at " + dir + ", id", "", nil
	case "updatedAt":
		return "updated_at " + dir + ", id", "", nil
	case "id":
		return "id " + dir, "", nil
	}
	if !bodyFieldRe.MatchString(orderBy) {
		return "", "", fmt.Errorf("%w: orderBy %q", ErrInvalidQuery, orderBy)
	}
	return "body->>$3 " + dir + ", id", orderBy, nil
}

// normalizeQuery checks the same inputs orderClause does and returns the
// canonical orderBy and descending flag for in-memory sorting.
func normalizeQuery(orderBy, dir string) (string, bool, error) {
	if _, _, err := orderClause(orderBy, dir); err != nil {
		return "", false, err
	}
	if orderBy == "" {
		orderBy = "createdAt"
	}
	return orderBy, !strings.EqualFold(dir, "asc"), nil
}
