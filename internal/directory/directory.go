// Package directory serves the legal-aid advocate listing backed by Postgres.
package directory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Advocate is one listed legal-aid advocate.
type Advocate struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Specialization    string `json:"specialization"`
	Location          string `json:"location"`
	YearsOfExperience int    `json:"years_of_experience"`
	ContactEmail      string `json:"contact_email"`
	Languages         string `json:"languages"`
}

type Directory struct {
	db *sql.DB
}

func Open(ctx context.Context, databaseURL string) (*Directory, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &Directory{db: db}, nil
}

func NewWithDB(db *sql.DB) *Directory {
	return &Directory{db: db}
}

// EnsureSchema creates the advocates table if it does not exist yet.
func (d *Directory) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS advocates (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			specialization TEXT NOT NULL,
			location TEXT NOT NULL,
			years_of_experience INT NOT NULL DEFAULT 0,
			contact_email TEXT NOT NULL DEFAULT '',
			languages TEXT NOT NULL DEFAULT ''
		)
	`
	if _, err := d.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure advocates table: %w", err)
	}
	return nil
}

// List returns advocates, optionally filtered by specialization and location
// (case-insensitive substring match). Results are ordered by experience.
func (d *Directory) List(ctx context.Context, specialization, location string) ([]Advocate, error) {
	query := `
		SELECT id, name, specialization, location, years_of_experience, contact_email, languages
		FROM advocates
	`
	var (
		clauses []string
		args    []any
	)
	if specialization != "" {
		args = append(args, "%"+specialization+"%")
		clauses = append(clauses, fmt.Sprintf("specialization ILIKE $%d", len(args)))
	}
	if location != "" {
		args = append(args, "%"+location+"%")
		clauses = append(clauses, fmt.Sprintf("location ILIKE $%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY years_of_experience DESC, name ASC"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list advocates: %w", err)
	}
	defer rows.Close()
	return scanAdvocates(rows)
}

// Recommend returns up to limit advocates whose specialization matches any of
// the given practice areas, strongest experience first. Areas that match no
// advocate are skipped.
func (d *Directory) Recommend(ctx context.Context, practiceAreas []string, limit int) ([]Advocate, error) {
	if limit <= 0 {
		limit = 3
	}

	const query = `
		SELECT id, name, specialization, location, years_of_experience, contact_email, languages
		FROM advocates
		WHERE specialization ILIKE $1
		ORDER BY years_of_experience DESC, name ASC
		LIMIT $2
	`

	seen := make(map[string]bool)
	var recommended []Advocate
	for _, area := range practiceAreas {
		area = strings.TrimSpace(area)
		if area == "" {
			continue
		}
		rows, err := d.db.QueryContext(ctx, query, "%"+area+"%", limit)
		if err != nil {
			return nil, fmt.Errorf("recommend advocates: %w", err)
		}
		matches, err := scanAdvocates(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		for _, advocate := range matches {
			if seen[advocate.ID] {
				continue
			}
			seen[advocate.ID] = true
			recommended = append(recommended, advocate)
			if len(recommended) >= limit {
				return recommended, nil
			}
		}
	}
	return recommended, nil
}

func (d *Directory) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *Directory) Close() error {
	return d.db.Close()
}

func scanAdvocates(rows *sql.Rows) ([]Advocate, error) {
	var advocates []Advocate
	for rows.Next() {
		var a Advocate
		if err := rows.Scan(&a.ID, &a.Name, &a.Specialization, &a.Location, &a.YearsOfExperience, &a.ContactEmail, &a.Languages); err != nil {
			return nil, fmt.Errorf("scan advocate: %w", err)
		}
		advocates = append(advocates, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate advocates: %w", err)
	}
	return advocates, nil
}
