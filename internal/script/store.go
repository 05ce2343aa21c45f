// Package script records UI interactions as descriptor paths and replays
// them against a possibly restarted spreadsheet process.
package script

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// ErrNotFound is returned when a script does not exist.
var ErrNotFound = errors.New("script not found")

// Action is what a step does to its target.
type Action string

// Step actions.
const (
	ActionFocus  Action = "focus"
	ActionScroll Action = "scroll"
	ActionGet    Action = "get"
	ActionSet    Action = "set"
	ActionAssert Action = "assert"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionFocus, ActionScroll, ActionGet, ActionSet, ActionAssert:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// NeedsProperty reports whether the action reads or writes a property.
func (a Action) NeedsProperty() bool {
	return a == ActionGet || a == ActionSet || a == ActionAssert
}

// Script is a named, ordered list of steps recorded against one endpoint.
type Script struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Endpoint  string    `json:"endpoint"`
	CreatedAt time.Time `json:"created_at"`
	Steps     int       `json:"steps"`
}

// Step is one recorded interaction. Target is a descriptor path.
type Step struct {
	Seq      int    `json:"seq"`
	Action   Action `json:"action"`
	Target   string `json:"target"`
	Property string `json:"property,omitempty"`
	Value    string `json:"value,omitempty"`
}

// Store persists scripts in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore returns an unopened store.
func NewStore() *Store {
	return &Store{}
}

// NewStoreWithDB wraps an open database.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens the database at path.
func (s *Store) Open(path string) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return fmt.Errorf("failed to open script database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping script database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func (s *Store) ready() error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	return nil
}

func generateID() string {
	return uuid.New().String()
}

// CreateScript adds an empty script.
func (s *Store) CreateScript(ctx context.Context, name, endpoint string) (*Script, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("script name must not be empty")
	}

	sc := &Script{
		ID:        generateID(),
		Name:      name,
		Endpoint:  endpoint,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scripts (id, name, endpoint, created_at) VALUES (?, ?, ?, ?)`,
		sc.ID, sc.Name, sc.Endpoint, sc.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create script %q: %w", name, err)
	}
	return sc, nil
}

// GetScript finds a script by id or name.
func (s *Store) GetScript(ctx context.Context, ref string) (*Script, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	sc := &Script{}
	err := s.db.QueryRowContext(ctx,
		`SELECT s.id, s.name, s.endpoint, s.created_at, COUNT(st.seq)
		 FROM scripts s LEFT JOIN steps st ON st.script_id = s.id
		 WHERE s.id = ? OR s.name = ?
		 GROUP BY s.id`,
		ref, ref,
	).Scan(&sc.ID, &sc.Name, &sc.Endpoint, &sc.CreatedAt, &sc.Steps)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get script: %w", err)
	}
	return sc, nil
}

// ListScripts returns every script ordered by name.
func (s *Store) ListScripts(ctx context.Context) ([]*Script, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.name, s.endpoint, s.created_at, COUNT(st.seq)
		 FROM scripts s LEFT JOIN steps st ON st.script_id = s.id
		 GROUP BY s.id ORDER BY s.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list scripts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Script
	for rows.Next() {
		sc := &Script{}
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.Endpoint, &sc.CreatedAt, &sc.Steps); err != nil {
			return nil, fmt.Errorf("failed to scan script: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// DeleteScript removes a script and its steps.
func (s *Store) DeleteScript(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM steps WHERE script_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete steps: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM scripts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete script: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx.Commit()
}

// AppendStep adds step at the end of the script and returns it with its
// sequence number.
func (s *Store) AppendStep(ctx context.Context, scriptID string, step Step) (Step, error) {
	if err := s.ready(); err != nil {
		return Step{}, err
	}
	if _, err := ParseAction(string(step.Action)); err != nil {
		return Step{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Step{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var last int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM steps WHERE script_id = ?`, scriptID,
	).Scan(&last); err != nil {
		return Step{}, fmt.Errorf("failed to read last step: %w", err)
	}

	step.Seq = last + 1
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO steps (script_id, seq, action, target, property, value) VALUES (?, ?, ?, ?, ?, ?)`,
		scriptID, step.Seq, string(step.Action), step.Target, step.Property, step.Value,
	); err != nil {
		return Step{}, fmt.Errorf("failed to append step: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Step{}, fmt.Errorf("failed to commit step: %w", err)
	}
	return step, nil
}

// Steps returns the script's steps in order.
func (s *Store) Steps(ctx context.Context, scriptID string) ([]Step, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, action, target, property, value FROM steps WHERE script_id = ? ORDER BY seq`,
		scriptID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Step
	for rows.Next() {
		var st Step
		var action string
		if err := rows.Scan(&st.Seq, &action, &st.Target, &st.Property, &st.Value); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		st.Action = Action(action)
		out = append(out, st)
	}
	return out, rows.Err()
}
