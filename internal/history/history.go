// Package history implements the build-run ledger that supplements spec.md
// with a feature the distillation dropped: a local, schema-migrated record
// of every build invocation, grounded on original_source/common's
// progress_tracker.py and summary_patcher.py (which tracked run state and
// patched a build summary, minus their terminal-colorization concerns,
// which are out of scope here). Schema migrations run via
// golang-migrate/migrate/v4 against a modernc.org/sqlite-backed
// database/sql handle, following the teacher's own sql.Open("sqlite", ...)
// + WAL-mode pattern in boxer.go.
package history

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/autoforge-project/autoforge/internal/aferrors"
	"github.com/autoforge-project/autoforge/internal/builder"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Ledger records build-run history to a local SQLite database.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path, enables WAL
// mode, and migrates it to the latest schema version.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, aferrors.Wrap(aferrors.KindUnknown, fmt.Sprintf("opening history database %q", path), err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, aferrors.Wrap(aferrors.KindUnknown, "enabling WAL mode", err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Ledger{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return aferrors.Wrap(aferrors.KindUnknown, "creating migration driver", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return aferrors.Wrap(aferrors.KindUnknown, "opening embedded migrations", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return aferrors.Wrap(aferrors.KindUnknown, "constructing migrator", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return aferrors.Wrap(aferrors.KindUnknown, "applying history schema migrations", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error { return l.db.Close() }

// Run is a single recorded build-run row.
type Run struct {
	ID            string
	RunName       string
	SolutionName  string
	ProjectName   string
	ConfigName    string
	StartedAt     time.Time
	EndedAt       *time.Time
	FinalState    string
	ExitCode      *int
	ErrorKind     string
	DurationMs    *int64
}

// StartRun inserts a new run row in progress and returns its id.
func (l *Ledger) StartRun(solutionName, projectName, configName, runName string) (string, error) {
	id := uuid.New().String()
	_, err := l.db.Exec(
		`INSERT INTO build_runs (id, run_name, solution_name, project_name, config_name, started_at, final_state)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, runName, solutionName, projectName, configName, time.Now().UTC().Format(time.RFC3339Nano), string(builder.StatePreConfigure),
	)
	if err != nil {
		return "", aferrors.Wrap(aferrors.KindUnknown, "recording build run start", err)
	}
	return id, nil
}

// FinishRun updates a run row with its terminal state.
func (l *Ledger) FinishRun(id string, result builder.Result, runErr error, durationMs int64) error {
	exitCode := result.ReturnCode

	var errorKind string
	if ae, ok := aferrors.AsExitEarly(runErr); ok {
		errorKind = fmt.Sprintf("exit_early(%d)", ae.ExitCode)
	} else if runErr != nil {
		errorKind = runErr.Error()
	}

	_, err := l.db.Exec(
		`UPDATE build_runs SET ended_at = ?, final_state = ?, exit_code = ?, error_kind = ?, duration_ms = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), string(result.FinalState), exitCode, errorKind, durationMs, id,
	)
	if err != nil {
		return aferrors.Wrap(aferrors.KindUnknown, "recording build run completion", err)
	}
	return nil
}

// RecordStep appends a per-step row to a run.
func (l *Ledger) RecordStep(runID, stepName string, state builder.State, returnCode int, durationMs int64) error {
	_, err := l.db.Exec(
		`INSERT INTO build_steps (run_id, step_name, state, started_at, duration_ms, return_code) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, stepName, string(state), time.Now().UTC().Format(time.RFC3339Nano), durationMs, returnCode,
	)
	if err != nil {
		return aferrors.Wrap(aferrors.KindUnknown, fmt.Sprintf("recording step %q", stepName), err)
	}
	return nil
}

// List returns every recorded run, most recent first.
func (l *Ledger) List() ([]Run, error) {
	rows, err := l.db.Query(
		`SELECT id, run_name, solution_name, project_name, config_name, started_at, ended_at, final_state, exit_code, error_kind, duration_ms
		 FROM build_runs ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, aferrors.Wrap(aferrors.KindUnknown, "listing build runs", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r             Run
			startedAt     string
			endedAt       sql.NullString
			exitCode      sql.NullInt64
			errorKind     sql.NullString
			durationMs    sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.RunName, &r.SolutionName, &r.ProjectName, &r.ConfigName, &startedAt, &endedAt, &r.FinalState, &exitCode, &errorKind, &durationMs); err != nil {
			return nil, aferrors.Wrap(aferrors.KindUnknown, "scanning build run row", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		if endedAt.Valid {
			t, _ := time.Parse(time.RFC3339Nano, endedAt.String)
			r.EndedAt = &t
		}
		if exitCode.Valid {
			v := int(exitCode.Int64)
			r.ExitCode = &v
		}
		if errorKind.Valid {
			r.ErrorKind = errorKind.String
		}
		if durationMs.Valid {
			v := durationMs.Int64
			r.DurationMs = &v
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Show returns a single run by id.
func (l *Ledger) Show(id string) (*Run, error) {
	runs, err := l.List()
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if runs[i].ID == id {
			return &runs[i], nil
		}
	}
	return nil, aferrors.New(aferrors.KindUnknown, fmt.Sprintf("unknown build run %q", id))
}
