package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS components (
	part_id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	value TEXT NOT NULL,
	package TEXT NOT NULL,
	price REAL NOT NULL,
	stock INTEGER NOT NULL,
	alternatives TEXT NOT NULL
);`

// SQLiteProvider serves the catalog from a SQLite database, so a real
// parts library can back the same tools the demo dataset does.
type SQLiteProvider struct {
	db *sql.DB
}

// NewSQLiteProvider opens (or creates) the database at dsn.
func NewSQLiteProvider(dsn string) (*SQLiteProvider, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("catalog: sqlite dsn is required")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: sqlite open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog: sqlite set WAL mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog: sqlite create schema: %w", err)
	}

	return &SQLiteProvider{db: db}, nil
}

// Seed upserts the given parts. Used by the server binary to load the
// demo dataset into a fresh database.
func (p *SQLiteProvider) Seed(ctx context.Context, parts []Part) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: sqlite begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, part := range parts {
		alternatives, err := json.Marshal(part.Alternatives)
		if err != nil {
			return fmt.Errorf("catalog: encode alternatives for %q: %w", part.PartID, err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO components (part_id, type, value, package, price, stock, alternatives)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(part_id) DO UPDATE SET
	type = excluded.type,
	value = excluded.value,
	package = excluded.package,
	price = excluded.price,
	stock = excluded.stock,
	alternatives = excluded.alternatives`,
			part.PartID, part.Type, part.Value, part.Package, part.Price, part.Stock, string(alternatives))
		if err != nil {
			return fmt.Errorf("catalog: seed %q: %w", part.PartID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: sqlite commit seed: %w", err)
	}
	return nil
}

// SearchComponents filters by type in SQL and applies spec filters on the
// decoded rows, matching the static provider's semantics.
func (p *SQLiteProvider) SearchComponents(ctx context.Context, componentType string, specs map[string]any) ([]Part, error) {
	query := `
SELECT part_id, type, value, package, price, stock, alternatives
FROM components`
	var args []any
	if componentType != "" {
		query += `
WHERE lower(type) = lower(?)`
		args = append(args, componentType)
	}
	query += `
ORDER BY part_id ASC`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: sqlite search: %w", err)
	}
	defer rows.Close()

	var results []Part
	for rows.Next() {
		part, err := scanPart(rows)
		if err != nil {
			return nil, err
		}
		if matchesSpecs(part, specs) {
			results = append(results, part)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: sqlite search rows: %w", err)
	}
	return results, nil
}

// GetPricing returns pricing for known part numbers.
func (p *SQLiteProvider) GetPricing(ctx context.Context, partNumbers []string) (map[string]Pricing, error) {
	pricing := make(map[string]Pricing)
	for _, number := range partNumbers {
		var price float64
		var stock int
		err := p.db.QueryRowContext(ctx, `
SELECT price, stock FROM components WHERE part_id = ?`, number).Scan(&price, &stock)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("catalog: sqlite pricing for %q: %w", number, err)
		}
		pricing[number] = Pricing{UnitPrice: price, Stock: stock}
	}
	return pricing, nil
}

// CheckAvailability returns stock for known part numbers.
func (p *SQLiteProvider) CheckAvailability(ctx context.Context, partNumbers []string) (map[string]int, error) {
	availability := make(map[string]int)
	for _, number := range partNumbers {
		var stock int
		err := p.db.QueryRowContext(ctx, `
SELECT stock FROM components WHERE part_id = ?`, number).Scan(&stock)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("catalog: sqlite availability for %q: %w", number, err)
		}
		availability[number] = stock
	}
	return availability, nil
}

// Close closes the underlying database.
func (p *SQLiteProvider) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func scanPart(rows *sql.Rows) (Part, error) {
	var part Part
	var alternatives string
	if err := rows.Scan(&part.PartID, &part.Type, &part.Value, &part.Package, &part.Price, &part.Stock, &alternatives); err != nil {
		return Part{}, fmt.Errorf("catalog: sqlite scan part: %w", err)
	}
	if err := json.Unmarshal([]byte(alternatives), &part.Alternatives); err != nil {
		return Part{}, fmt.Errorf("catalog: decode alternatives for %q: %w", part.PartID, err)
	}
	return part, nil
}
