package permissions

import (
	"context"
	"database/sql"
	"embed"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore keeps grants in a sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storageErr("open", errors.Wrap(err, "open db"))
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, storageErr("open", errors.Wrap(err, "set WAL mode"))
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, storageErr("open", errors.Wrap(err, "set busy timeout"))
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, storageErr("migrate", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return errors.Wrap(err, "create migrations table")
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return errors.Wrap(err, "read migrations dir")
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", f).Scan(&applied); err != nil {
			return errors.Wrapf(err, "check migration %s", f)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + f)
		if err != nil {
			return errors.Wrapf(err, "read migration %s", f)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return errors.Wrapf(err, "begin tx for %s", f)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "exec migration %s", f)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", f); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "record migration %s", f)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "commit migration %s", f)
		}
	}
	return nil
}

const grantColumns = "key, origin, account_address, favicon_url, title, state, granted_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrant(r rowScanner) (Grant, error) {
	var (
		g         Grant
		state     string
		grantedAt string
	)
	if err := r.Scan(&g.Key, &g.Origin, &g.AccountAddress, &g.FaviconURL, &g.Title, &state, &grantedAt); err != nil {
		return Grant{}, err
	}
	g.State = State(state)
	if grantedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, grantedAt)
		if err != nil {
			return Grant{}, errors.Wrapf(err, "parse granted_at for %s", g.Key)
		}
		g.GrantedAt = t
	}
	return g, nil
}

func (s *SQLiteStore) Get(ctx context.Context, origin, account string) (Grant, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+grantColumns+" FROM grants WHERE key = ?", Key(origin, account))
	g, err := scanGrant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Grant{}, false, nil
	}
	if err != nil {
		return Grant{}, false, storageErr("get", err)
	}
	return g, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, g Grant) error {
	g = g.Normalized()

	var grantedAt string
	if !g.GrantedAt.IsZero() {
		grantedAt = g.GrantedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO grants (`+grantColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			origin = excluded.origin,
			account_address = excluded.account_address,
			favicon_url = excluded.favicon_url,
			title = excluded.title,
			state = excluded.state,
			granted_at = excluded.granted_at`,
		g.Key, g.Origin, g.AccountAddress, g.FaviconURL, g.Title, string(g.State), grantedAt)
	return storageErr("put", err)
}

func (s *SQLiteStore) Delete(ctx context.Context, origin, account string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM grants WHERE key = ?", Key(origin, account))
	return storageErr("delete", err)
}

func (s *SQLiteStore) ListAll(ctx context.Context) (map[string]Grant, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+grantColumns+" FROM grants")
	if err != nil {
		return nil, storageErr("list", err)
	}
	defer rows.Close()

	out := make(map[string]Grant)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, storageErr("list", err)
		}
		out[g.Key] = g
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list", err)
	}
	return out, nil
}
