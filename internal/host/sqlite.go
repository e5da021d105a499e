package host

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/felixgeelhaar/sessionbridge/internal/snapshot"
)

const keySalt = "salt"

// SQLiteStore persists the host state in a SQLite file. The authorization
// header is encrypted at rest; snapshots are stored as JSON.
type SQLiteStore struct {
	db     *sql.DB
	sealer *sealer
	mu     sync.Mutex
}

// OpenSQLiteStore opens or creates the store at path. passphrase protects
// the authorization header; the same passphrase must be used on reopen.
func OpenSQLiteStore(ctx context.Context, path, passphrase string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, storeError("create store directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storeError("open database", err)
	}
	// One writer keeps SQLITE_BUSY out of the picture.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS host_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			digest TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, storeError("create host_state table", err)
	}

	s := &SQLiteStore{db: db}
	salt, err := s.salt(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.sealer, err = newSealer(passphrase, salt)
	if err != nil {
		db.Close()
		return nil, storeError("derive header key", err)
	}
	return s, nil
}

// salt returns the per-database key salt, creating it on first open.
func (s *SQLiteStore) salt(ctx context.Context) ([]byte, error) {
	value, _, err := s.get(ctx, keySalt)
	if err != nil {
		return nil, err
	}
	if value != "" {
		salt, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return nil, storeError("decode salt", err)
		}
		return salt, nil
	}

	salt, err := newSalt()
	if err != nil {
		return nil, storeError("create salt", err)
	}
	if err := s.put(ctx, keySalt, base64.StdEncoding.EncodeToString(salt), ""); err != nil {
		return nil, err
	}
	return salt, nil
}

func (s *SQLiteStore) get(ctx context.Context, key string) (value, digest string, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT value, digest FROM host_state WHERE key = ?`, key)
	if err := row.Scan(&value, &digest); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return "", "", nil
		}
		return "", "", storeError("read "+key, err)
	}
	return value, digest, nil
}

func (s *SQLiteStore) put(ctx context.Context, key, value, digest string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO host_state (key, value, digest, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, digest = excluded.digest, updated_at = excluded.updated_at
	`, key, value, digest, time.Now().Unix())
	if err != nil {
		return storeError("write "+key, err)
	}
	return nil
}

func (s *SQLiteStore) delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM host_state WHERE key = ?`, key)
	if err != nil {
		return false, storeError("delete "+key, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// AuthorizationHeader implements Store.
func (s *SQLiteStore) AuthorizationHeader(ctx context.Context) (string, error) {
	sealed, _, err := s.get(ctx, keyAuthorization)
	if err != nil || sealed == "" {
		return "", err
	}
	header, err := s.sealer.open(sealed)
	if err != nil {
		return "", storeError("decrypt authorization header", err)
	}
	return header, nil
}

// SetAuthorizationHeader implements Store.
func (s *SQLiteStore) SetAuthorizationHeader(ctx context.Context, header string) error {
	if header == "" {
		_, err := s.delete(ctx, keyAuthorization)
		return err
	}
	sealed, err := s.sealer.seal(header)
	if err != nil {
		return storeError("encrypt authorization header", err)
	}
	return s.put(ctx, keyAuthorization, sealed, "")
}

// CachedClient implements Store.
func (s *SQLiteStore) CachedClient(ctx context.Context) (*snapshot.Client, error) {
	value, _, err := s.get(ctx, keyClient)
	if err != nil || value == "" {
		return nil, err
	}
	var c snapshot.Client
	if err := json.Unmarshal([]byte(value), &c); err != nil {
		return nil, storeError("decode cached client", err)
	}
	return &c, nil
}

// SetCachedClient implements Store. Writing an identical client is skipped.
func (s *SQLiteStore) SetCachedClient(ctx context.Context, client *snapshot.Client) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if client == nil {
		return s.delete(ctx, keyClient)
	}
	data, digest, err := encodeDigest(client)
	if err != nil {
		return false, storeError("encode client", err)
	}
	_, prev, err := s.get(ctx, keyClient)
	if err != nil {
		return false, err
	}
	if prev == digest {
		return false, nil
	}
	if err := s.put(ctx, keyClient, string(data), digest); err != nil {
		return false, err
	}
	return true, nil
}

// CachedEnvironment implements Store.
func (s *SQLiteStore) CachedEnvironment(ctx context.Context) (*snapshot.Environment, error) {
	value, _, err := s.get(ctx, keyEnvironment)
	if err != nil || value == "" {
		return nil, err
	}
	var env snapshot.Environment
	if err := json.Unmarshal([]byte(value), &env); err != nil {
		return nil, storeError("decode cached environment", err)
	}
	return &env, nil
}

// SetCachedEnvironment implements Store.
func (s *SQLiteStore) SetCachedEnvironment(ctx context.Context, env *snapshot.Environment) error {
	if env == nil {
		_, err := s.delete(ctx, keyEnvironment)
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return storeError("encode environment", err)
	}
	return s.put(ctx, keyEnvironment, string(data), "")
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storeError("ping database", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
