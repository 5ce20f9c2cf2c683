// Package postgres implements the outreach repositories against PostgreSQL
// using database/sql with the lib/pq driver.
package postgres

import (
	"database/sql"
	"time"

	"github.com/ignite/aicmo-cam/internal/domain"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullString(s *string) interface{} {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func statusStrings(statuses []domain.LeadStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
