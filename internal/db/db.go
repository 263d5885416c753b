package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/searchlabs/catalog-search/internal/types"
)

const dbFileName = "catalog.db"

// DB wraps the SQLite catalog index: the denormalized product table and
// the FTS5 lexical index over its normalized text.
type DB struct {
	db     *sql.DB
	logger *log.Logger
}

// New opens (creating if necessary) the catalog database in dataDir.
// Used by the offline index builder.
func New(dataDir string, logger *log.Logger) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFileName)
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	d := &DB{db: conn, logger: logger}

	if err := createTables(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := ApplyMigrations(context.Background(), conn, logger.Infof); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return d, nil
}

// Open opens an existing catalog database for serving. A missing
// artifact is an error: the searcher must refuse to start rather than
// answer queries against an empty index.
func Open(dataDir string, logger *log.Logger) (*DB, error) {
	dbPath := filepath.Join(dataDir, dbFileName)
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("catalog index not found at %s: %w", dbPath, err)
	}
	return New(dataDir, logger)
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS products (
			position INTEGER PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			reference TEXT,
			title TEXT,
			description TEXT,
			features TEXT,
			category TEXT,
			price TEXT,
			search_body TEXT
		);

		-- Lexical index over normalized text. Rows are inserted by the
		-- build job with rowid = products.position so the two stay joined.
		CREATE VIRTUAL TABLE IF NOT EXISTS products_fts USING fts5(
			reference, title, description, features, search_body
		);

		CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
	`)
	if err != nil {
		return fmt.Errorf("failed to create products tables: %w", err)
	}
	return nil
}

// IndexedItem is one catalog row prepared for indexing: the raw item for
// the catalog table plus its normalized text for the lexical index.
type IndexedItem struct {
	Position int
	Item     types.CatalogItem

	// Normalized FTS fields; SearchBody is the concatenation indexed for
	// recall across all text columns.
	Reference   string
	Title       string
	Description string
	Features    string
	SearchBody  string
}

// StoreItems replaces the full catalog in a single transaction. A
// failed build leaves no partial index behind.
func (d *DB) StoreItems(ctx context.Context, items []IndexedItem) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM products`, `DELETE FROM products_fts`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear previous catalog: %w", err)
		}
	}

	productStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO products (position, id, reference, title, description, features, category, price, search_body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare product insert: %w", err)
	}
	defer productStmt.Close()

	ftsStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO products_fts (rowid, reference, title, description, features, search_body)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare fts insert: %w", err)
	}
	defer ftsStmt.Close()

	for _, it := range items {
		var price sql.NullString
		if it.Item.HasPrice {
			price = sql.NullString{String: it.Item.Price.String(), Valid: true}
		}
		if _, err := productStmt.ExecContext(ctx,
			it.Position, it.Item.ID, it.Item.Reference, it.Item.Title,
			it.Item.Description, it.Item.Features, it.Item.Category,
			price, it.SearchBody,
		); err != nil {
			return fmt.Errorf("failed to insert product %q: %w", it.Item.ID, err)
		}
		if _, err := ftsStmt.ExecContext(ctx,
			it.Position, it.Reference, it.Title, it.Description, it.Features, it.SearchBody,
		); err != nil {
			return fmt.Errorf("failed to index product %q: %w", it.Item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog: %w", err)
	}

	d.logger.Debug("Stored catalog items", "count", len(items))
	return nil
}

// SearchLexical runs a phrase-quoted bm25 query against the lexical
// index and returns up to limit hits, best first. An empty normalized
// query and an FTS query-syntax error both yield zero hits; neither is
// fatal to the caller.
func (d *DB) SearchLexical(ctx context.Context, normalizedQuery string, limit int) ([]types.LexicalHit, error) {
	if normalizedQuery == "" {
		return nil, nil
	}

	// Quote as a phrase, matching how the index build normalized text.
	// The normalizer strips everything outside [a-z0-9 ], so the phrase
	// itself cannot contain FTS metacharacters.
	ftsQuery := fmt.Sprintf("%q", normalizedQuery)

	rows, err := d.db.QueryContext(ctx, `
		SELECT p.id, bm25(products_fts) AS score
		FROM products_fts
		JOIN products p ON p.position = products_fts.rowid
		WHERE products_fts MATCH ?
		ORDER BY score
		LIMIT ?
	`, ftsQuery, limit)
	if err != nil {
		if isFTSSyntaxError(err) {
			d.logger.Warn("Lexical query rejected by FTS engine, treating as no results",
				"query", ftsQuery, "error", err)
			return nil, nil
		}
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}
	defer rows.Close()

	var hits []types.LexicalHit
	for rows.Next() {
		var hit types.LexicalHit
		if err := rows.Scan(&hit.ID, &hit.Score); err != nil {
			return nil, fmt.Errorf("failed to scan lexical hit: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lexical hits: %w", err)
	}

	d.logger.Debug("Lexical search completed", "query", ftsQuery, "hits", len(hits))
	return hits, nil
}

// isFTSSyntaxError reports whether err is an FTS5 query parse error as
// opposed to a real engine failure.
func isFTSSyntaxError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "fts5: syntax error") || strings.Contains(msg, "unknown special query")
}

// LoadIDPositions returns the id -> vector position mapping persisted by
// the build job. The first occurrence of an id wins; later duplicates
// are logged and ignored so an id can never resolve to two positions.
func (d *DB) LoadIDPositions(ctx context.Context) (map[string]int, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, position FROM products ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to load id mapping: %w", err)
	}
	defer rows.Close()

	positions := make(map[string]int)
	for rows.Next() {
		var id string
		var position int
		if err := rows.Scan(&id, &position); err != nil {
			return nil, fmt.Errorf("failed to scan id mapping row: %w", err)
		}
		if _, exists := positions[id]; exists {
			d.logger.Warn("Duplicate catalog id in mapping, keeping first position", "id", id, "position", position)
			continue
		}
		positions[id] = position
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating id mapping: %w", err)
	}

	return positions, nil
}

// LoadCatalog returns all catalog items ordered by vector position, so
// the slice index of each item equals its position.
func (d *DB) LoadCatalog(ctx context.Context) ([]types.CatalogItem, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, reference, title, description, features, category, price
		FROM products
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	defer rows.Close()

	var items []types.CatalogItem
	for rows.Next() {
		var item types.CatalogItem
		var reference, title, description, features, category, price sql.NullString
		if err := rows.Scan(&item.ID, &reference, &title, &description, &features, &category, &price); err != nil {
			return nil, fmt.Errorf("failed to scan catalog item: %w", err)
		}
		item.Reference = reference.String
		item.Title = title.String
		item.Description = description.String
		item.Features = features.String
		item.Category = category.String
		if price.Valid && price.String != "" {
			value, err := decimal.NewFromString(price.String)
			if err != nil {
				d.logger.Warn("Unparseable price in catalog", "id", item.ID, "price", price.String)
			} else {
				item.Price = value
				item.HasPrice = true
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog: %w", err)
	}

	return items, nil
}

// Count returns the number of catalog items.
func (d *DB) Count(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

// DB returns the underlying database connection.
func (d *DB) DB() *sql.DB {
	return d.db
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}
