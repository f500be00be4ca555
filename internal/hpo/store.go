// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package hpo

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Trial states as stored in the study database.
const (
	StateComplete = "complete"
	StateFailed   = "failed"
)

// Trial is one recorded search attempt within a study.
type Trial struct {
	Study     string
	Number    int
	Params    Params
	Value     float64 // objective: validation F1
	State     string
	Dir       string // trial directory at completion time; may be pruned later
	CreatedAt time.Time
}

// Store persists trials in sqlite so an interrupted study resumes where it
// left off instead of restarting from trial zero.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and if needed initializes) the study database.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open study db %s: %w", path, err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS trials (
		study      TEXT NOT NULL,
		number     INTEGER NOT NULL,
		params     TEXT NOT NULL,
		value      REAL NOT NULL,
		state      TEXT NOT NULL,
		dir        TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (study, number)
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize study db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// NextTrialNumber returns the number the next trial in the study should
// use: one past the highest recorded number, starting at 0.
func (s *Store) NextTrialNumber(study string) (int, error) {
	var max sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(number) FROM trials WHERE study = ?`, study).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to query study %s: %w", study, err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

// RecordTrial inserts one finished trial.
func (s *Store) RecordTrial(t Trial) error {
	params, err := json.Marshal(t.Params)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO trials (study, number, params, value, state, dir) VALUES (?, ?, ?, ?, ?, ?)`,
		t.Study, t.Number, string(params), t.Value, t.State, t.Dir,
	)
	if err != nil {
		return fmt.Errorf("failed to record trial %d of study %s: %w", t.Number, t.Study, err)
	}
	return nil
}

// Trials returns all recorded trials of a study in trial order.
func (s *Store) Trials(study string) ([]Trial, error) {
	rows, err := s.db.Query(
		`SELECT study, number, params, value, state, dir, created_at FROM trials WHERE study = ? ORDER BY number`,
		study,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list trials of study %s: %w", study, err)
	}
	defer rows.Close()

	var out []Trial
	for rows.Next() {
		var t Trial
		var params string
		if err := rows.Scan(&t.Study, &t.Number, &params, &t.Value, &t.State, &t.Dir, &t.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(params), &t.Params); err != nil {
			return nil, fmt.Errorf("corrupt params for trial %d of study %s: %w", t.Number, study, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CompletedTrials filters Trials down to successful ones.
func (s *Store) CompletedTrials(study string) ([]Trial, error) {
	all, err := s.Trials(study)
	if err != nil {
		return nil, err
	}
	var out []Trial
	for _, t := range all {
		if t.State == StateComplete {
			out = append(out, t)
		}
	}
	return out, nil
}
