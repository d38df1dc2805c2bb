package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/filevault/filevault/internal/entity"
)

// pageSize is the fixed window for hierarchy listings.
const pageSize = 20

// Store persists File and User entities in SQLite. It is an explicitly
// constructed handle passed into each component; there is no package-level
// connection.
type Store struct {
	db *sql.DB
}

// Open connects to the SQLite database at dbPath and applies the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initTables(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS files (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			parent_id TEXT NOT NULL DEFAULT '0',
			is_public BOOLEAN NOT NULL DEFAULT FALSE,
			local_path TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_files_owner ON files(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_files_parent ON files(owner_id, parent_id)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}

	return nil
}

// DB exposes the underlying handle so collaborators (the job queue) can
// share the same database file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks store availability.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateFile assigns an id, persists f and returns the canonical record.
func (s *Store) CreateFile(ctx context.Context, f *entity.File) (*entity.File, error) {
	f.ID = uuid.NewString()
	f.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (id, owner_id, name, kind, parent_id, is_public, local_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.OwnerID, f.Name, string(f.Kind), f.Parent.String(), f.IsPublic, f.LocalPath, f.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	return f, nil
}

// FileByID looks a file up without ownership scoping. Used only for
// parent-existence checks and public-read resolution.
func (s *Store) FileByID(ctx context.Context, id string) (*entity.File, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, kind, parent_id, is_public, local_path, created_at
		 FROM files WHERE id = ?`, id)
	return scanFile(row)
}

// FileByIDAndOwner looks a file up scoped to its owner. A caller can never
// observe another owner's entity through this query.
func (s *Store) FileByIDAndOwner(ctx context.Context, id, ownerID string) (*entity.File, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, kind, parent_id, is_public, local_path, created_at
		 FROM files WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanFile(row)
}

// ChildrenByParent returns one page of an owner's files under the given
// parent, in stable insertion order. Pages are zero-based windows of 20;
// out-of-range pages return an empty slice.
func (s *Store) ChildrenByParent(ctx context.Context, ownerID string, parent entity.ParentRef, page int) ([]*entity.File, error) {
	if page < 0 {
		page = 0
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name, kind, parent_id, is_public, local_path, created_at
		 FROM files WHERE owner_id = ? AND parent_id = ?
		 ORDER BY rowid LIMIT ? OFFSET ?`,
		ownerID, parent.String(), pageSize, page*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	files := make([]*entity.File, 0, pageSize)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	return files, rows.Err()
}

// SetVisibility flips the public flag and returns the refreshed file, or
// entity.ErrNotFound if the id vanished between check and update.
func (s *Store) SetVisibility(ctx context.Context, id string, public bool) (*entity.File, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE files SET is_public = ? WHERE id = ?`, public, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update visibility: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, entity.ErrNotFound
	}

	return s.FileByID(ctx, id)
}

// CreateUser assigns an id and persists u. The email must be unique.
func (s *Store) CreateUser(ctx context.Context, u *entity.User) (*entity.User, error) {
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

// UserByEmail returns the user registered under email, or entity.ErrNotFound.
func (s *Store) UserByEmail(ctx context.Context, email string) (*entity.User, error) {
	u := &entity.User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// CountUsers reports the number of registered users.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// CountFiles reports the number of stored files.
func (s *Store) CountFiles(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*entity.File, error) {
	var (
		f      entity.File
		kind   string
		parent string
	)
	err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &kind, &parent, &f.IsPublic, &f.LocalPath, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan file: %w", err)
	}

	f.Kind = entity.Kind(kind)
	f.Parent = entity.ParseParentRef(parent)
	return &f, nil
}
