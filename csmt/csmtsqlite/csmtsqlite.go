// Package csmtsqlite is a csmt.NodeStore backed by a single SQLite
// connection, guarded by a mutex, with every statement run through
// sqlitex.Exec.
package csmtsqlite

import (
	"context"
	"fmt"
	"sync"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"

	"github.com/example/compactedmt/csmt"
)

// Store is a csmt.NodeStore persisted to a SQLite database.
type Store struct {
	mu sync.Mutex
	db *sqlite.Conn
}

// Open opens or creates a node store database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sqlite.OpenConn(dbPath, 0)
	if err != nil {
		return nil, fmt.Errorf("csmtsqlite: opening database: %w", err)
	}

	if err := sqlitex.ExecScript(db, `
		PRAGMA strict_types = ON;
		PRAGMA foreign_keys = ON;
		CREATE TABLE IF NOT EXISTS node (
			prefix BLOB NOT NULL,
			height INTEGER NOT NULL,
			left_child BLOB NOT NULL,
			right_child BLOB NOT NULL,
			PRIMARY KEY (prefix, height)
		);
		CREATE TABLE IF NOT EXISTS root (
			id INTEGER PRIMARY KEY CHECK (id = 0),
			left_child BLOB NOT NULL,
			right_child BLOB NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("csmtsqlite: initializing schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

var _ csmt.NodeStore = (*Store)(nil)

func (s *Store) Get(ctx context.Context, key csmt.InternalKey) (csmt.BranchNode, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var node csmt.BranchNode
	found := false
	err := s.dbExec(
		"SELECT left_child, right_child FROM node WHERE prefix = ? AND height = ?",
		func(stmt *sqlite.Stmt) error {
			found = true
			leftBytes := make([]byte, 32)
			stmt.ColumnBytes(0, leftBytes)
			rightBytes := make([]byte, 32)
			stmt.ColumnBytes(1, rightBytes)
			copy(node.Left[:], leftBytes)
			copy(node.Right[:], rightBytes)
			return nil
		},
		key.Prefix[:], int64(key.Height),
	)
	if err != nil {
		return csmt.BranchNode{}, false, err
	}
	return node, found, nil
}

func (s *Store) Insert(ctx context.Context, key csmt.InternalKey, node csmt.BranchNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dbExec(
		`INSERT INTO node (prefix, height, left_child, right_child) VALUES (?, ?, ?, ?)
		 ON CONFLICT (prefix, height) DO UPDATE SET left_child = excluded.left_child, right_child = excluded.right_child`,
		nil,
		key.Prefix[:], int64(key.Height), node.Left[:], node.Right[:],
	)
}

func (s *Store) Remove(ctx context.Context, key csmt.InternalKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dbExec(
		"DELETE FROM node WHERE prefix = ? AND height = ?",
		nil,
		key.Prefix[:], int64(key.Height),
	)
}

// LoadRoot returns the RootBranch saved by the last SaveRoot call, for
// passing to csmt.WithRootBranch when reopening a Tree over this store. The
// second result is false if no root has ever been saved.
func (s *Store) LoadRoot(ctx context.Context) (csmt.BranchNode, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var node csmt.BranchNode
	found := false
	err := s.dbExec(
		"SELECT left_child, right_child FROM root WHERE id = 0",
		func(stmt *sqlite.Stmt) error {
			found = true
			leftBytes := make([]byte, 32)
			stmt.ColumnBytes(0, leftBytes)
			rightBytes := make([]byte, 32)
			stmt.ColumnBytes(1, rightBytes)
			copy(node.Left[:], leftBytes)
			copy(node.Right[:], rightBytes)
			return nil
		},
	)
	if err != nil {
		return csmt.BranchNode{}, false, err
	}
	return node, found, nil
}

// SaveRoot persists b as the RootBranch to restore on the next LoadRoot.
func (s *Store) SaveRoot(ctx context.Context, b csmt.BranchNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dbExec(
		`INSERT INTO root (id, left_child, right_child) VALUES (0, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET left_child = excluded.left_child, right_child = excluded.right_child`,
		nil,
		b.Left[:], b.Right[:],
	)
}

func (s *Store) dbExec(query string, resultFn func(stmt *sqlite.Stmt) error, args ...any) error {
	if err := sqlitex.Exec(s.db, query, resultFn, args...); err != nil {
		return fmt.Errorf("csmtsqlite: %w", err)
	}
	return nil
}
