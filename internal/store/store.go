// Package store persists compiled program images and syscall traces to a
// SQL backend, grounded on the teacher's internal/database.DBManager: one
// named connection per backing database, guarded by a single mutex, driver
// selected by a short type name rather than the raw database/sql driver
// string. The schema and queries are written in SQLite's dialect
// (AUTOINCREMENT, `?` placeholders, ON CONFLICT upserts) and are not
// rewritten for the postgres, mysql or sqlserver types.
package store

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"fmt"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"grimoire/internal/bytecode"
)

// Conn is one open backing connection: its driver type, the *sql.DB, and
// bookkeeping timestamps, mirroring the teacher's DBConn.
type Conn struct {
	Type     string
	DB       *sql.DB
	DSN      string
	Created  time.Time
	LastUsed time.Time
}

// ProgramStore persists compiled program images and per-run syscall
// traces. It is safe for concurrent use.
type ProgramStore struct {
	mu          sync.RWMutex
	connections map[string]*Conn
}

// NewProgramStore returns an empty store with no open connections.
func NewProgramStore() *ProgramStore {
	return &ProgramStore{connections: map[string]*Conn{}}
}

// driverName maps a store-level database type name to the database/sql
// driver name registered by the blank imports above.
func driverName(dbType string) (string, error) {
	switch dbType {
	case "sqlite":
		return "sqlite", nil // modernc.org/sqlite, pure Go
	case "sqlite3":
		return "sqlite3", nil // mattn/go-sqlite3, cgo
	case "postgres", "postgresql":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "sqlserver":
		return "sqlserver", nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", dbType)
	}
}

// Connect opens a new named backing connection and creates the schema if
// it does not already exist.
func (s *ProgramStore) Connect(id, dbType, dsn string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.connections[id]; exists {
		return fmt.Errorf("connection %q already exists", id)
	}

	driver, err := driverName(dbType)
	if err != nil {
		return err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := createSchema(db); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.connections[id] = &Conn{Type: dbType, DB: db, DSN: dsn, Created: time.Now(), LastUsed: time.Now()}
	return nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS programs (
	name       TEXT PRIMARY KEY,
	image      BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL
)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS syscall_traces (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	program_name TEXT NOT NULL,
	pc           INTEGER NOT NULL,
	syscall      INTEGER NOT NULL,
	recorded_at  TIMESTAMP NOT NULL
)`)
	return err
}

func (s *ProgramStore) conn(id string) (*Conn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.connections[id]
	if !ok {
		return nil, fmt.Errorf("connection %q not found", id)
	}
	return c, nil
}

// SaveProgram gob-encodes program and upserts it under name on the given
// connection.
func (s *ProgramStore) SaveProgram(connID, name string, program *bytecode.Program) error {
	c, err := s.conn(connID)
	if err != nil {
		return err
	}
	c.LastUsed = time.Now()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(program); err != nil {
		return fmt.Errorf("failed to encode program: %w", err)
	}

	_, err = c.DB.Exec(`
INSERT INTO programs (name, image, created_at) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET image = excluded.image, created_at = excluded.created_at`,
		name, buf.Bytes(), time.Now())
	if err != nil {
		return fmt.Errorf("failed to save program: %w", err)
	}
	return nil
}

// LoadProgram decodes the program stored under name on the given
// connection.
func (s *ProgramStore) LoadProgram(connID, name string) (*bytecode.Program, error) {
	c, err := s.conn(connID)
	if err != nil {
		return nil, err
	}
	c.LastUsed = time.Now()

	var image []byte
	row := c.DB.QueryRow(`SELECT image FROM programs WHERE name = ?`, name)
	if err := row.Scan(&image); err != nil {
		return nil, fmt.Errorf("failed to load program %q: %w", name, err)
	}

	var program bytecode.Program
	if err := gob.NewDecoder(bytes.NewReader(image)).Decode(&program); err != nil {
		return nil, fmt.Errorf("failed to decode program: %w", err)
	}
	return &program, nil
}

// RecordSyscall appends one syscall-trace row, used to replay or audit a
// run's sequence of host interactions.
func (s *ProgramStore) RecordSyscall(connID, programName string, pc int, syscall bytecode.Syscall) error {
	c, err := s.conn(connID)
	if err != nil {
		return err
	}
	c.LastUsed = time.Now()

	_, err = c.DB.Exec(`
INSERT INTO syscall_traces (program_name, pc, syscall, recorded_at) VALUES (?, ?, ?, ?)`,
		programName, pc, int(syscall), time.Now())
	if err != nil {
		return fmt.Errorf("failed to record syscall trace: %w", err)
	}
	return nil
}

// SyscallTraceEntry is one recorded syscall-trace row.
type SyscallTraceEntry struct {
	PC         int
	Syscall    bytecode.Syscall
	RecordedAt time.Time
}

// LoadTrace returns every recorded syscall for programName in recorded
// order.
func (s *ProgramStore) LoadTrace(connID, programName string) ([]SyscallTraceEntry, error) {
	c, err := s.conn(connID)
	if err != nil {
		return nil, err
	}
	c.LastUsed = time.Now()

	rows, err := c.DB.Query(`
SELECT pc, syscall, recorded_at FROM syscall_traces
WHERE program_name = ? ORDER BY id ASC`, programName)
	if err != nil {
		return nil, fmt.Errorf("failed to load trace: %w", err)
	}
	defer rows.Close()

	var entries []SyscallTraceEntry
	for rows.Next() {
		var e SyscallTraceEntry
		var sc int
		if err := rows.Scan(&e.PC, &sc, &e.RecordedAt); err != nil {
			return nil, err
		}
		e.Syscall = bytecode.Syscall(sc)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes one named connection.
func (s *ProgramStore) Close(connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.connections[connID]
	if !exists {
		return fmt.Errorf("connection %q not found", connID)
	}
	if err := c.DB.Close(); err != nil {
		return err
	}
	delete(s.connections, connID)
	return nil
}

// CloseAll closes every open connection, collecting individual close errors
// and returning them rather than stopping at the first, matching the
// teacher's CloseAll.
func (s *ProgramStore) CloseAll() []error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for id, c := range s.connections {
		if err := c.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing connection %q: %w", id, err))
		}
	}
	s.connections = map[string]*Conn{}
	return errs
}
