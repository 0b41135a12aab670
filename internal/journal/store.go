package journal

// #region imports
import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"stepassist/internal/guard"
	"stepassist/internal/observe"
	"stepassist/internal/route"
)

// #endregion

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS guard_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	activity_id  TEXT NOT NULL,
	step_index   INTEGER NOT NULL,
	confidence   REAL NOT NULL,
	action       TEXT NOT NULL,
	band         TEXT NOT NULL,
	reason       TEXT,
	match_count  INTEGER NOT NULL DEFAULT 0,
	observed_at  TEXT NOT NULL,
	created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_guard_log_action ON guard_log(action);

CREATE TABLE IF NOT EXISTS route_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	query_id     TEXT NOT NULL,
	query_text   TEXT NOT NULL,
	mode         TEXT NOT NULL,
	score        REAL NOT NULL,
	class        TEXT NOT NULL,
	reason       TEXT,
	elapsed_ms   INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_route_log_mode ON route_log(mode);
`

// #endregion schema

// #region store-struct
// Store journals guard and route decisions in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region log-guard
// LogGuard persists one guard decision.
func (s *Store) LogGuard(obs observe.Observation, d guard.Decision) error {
	_, err := s.db.Exec(
		`INSERT INTO guard_log
		 (activity_id, step_index, confidence, action, band, reason, match_count, observed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		obs.ActivityID,
		obs.StepIndex,
		obs.Confidence,
		string(d.Action),
		string(d.Band),
		nullIfEmpty(d.Reason),
		d.MatchCount,
		obs.ObservedAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert guard log: %w", err)
	}
	return nil
}

// #endregion log-guard

// #region log-route
// LogRoute persists one routing decision after the answer is built.
func (s *Store) LogRoute(query route.Query, d route.Decision, elapsedMs int64) error {
	_, err := s.db.Exec(
		`INSERT INTO route_log
		 (query_id, query_text, mode, score, class, reason, elapsed_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		query.ID,
		query.Text,
		string(d.Mode),
		d.Score,
		string(d.Class),
		nullIfEmpty(d.Reason),
		elapsedMs,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert route log: %w", err)
	}
	return nil
}

// #endregion log-route

// #region list-guard
// ListGuard returns the most recent guard entries, newest first.
func (s *Store) ListGuard(limit int) ([]GuardEntry, error) {
	return s.queryGuard(`SELECT id, activity_id, step_index, confidence, action, band, reason, match_count, observed_at, created_at
		FROM guard_log ORDER BY id DESC LIMIT ?`, limit)
}

// GuardHistory returns every guard entry in insertion order.
func (s *Store) GuardHistory() ([]GuardEntry, error) {
	return s.queryGuard(`SELECT id, activity_id, step_index, confidence, action, band, reason, match_count, observed_at, created_at
		FROM guard_log ORDER BY id ASC`)
}

func (s *Store) queryGuard(q string, args ...any) ([]GuardEntry, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query guard log: %w", err)
	}
	defer rows.Close()

	var entries []GuardEntry
	for rows.Next() {
		var e GuardEntry
		var reason sql.NullString
		var observedStr, createdStr string
		if err := rows.Scan(&e.ID, &e.ActivityID, &e.StepIndex, &e.Confidence, &e.Action, &e.Band, &reason, &e.MatchCount, &observedStr, &createdStr); err != nil {
			return nil, fmt.Errorf("scan guard row: %w", err)
		}
		if reason.Valid {
			e.Reason = reason.String
		}
		e.ObservedAt, _ = time.Parse(time.RFC3339Nano, observedStr)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion list-guard

// #region list-route
// ListRoute returns the most recent route entries, newest first.
func (s *Store) ListRoute(limit int) ([]RouteEntry, error) {
	return s.queryRoute(`SELECT id, query_id, query_text, mode, score, class, reason, elapsed_ms, created_at
		FROM route_log ORDER BY id DESC LIMIT ?`, limit)
}

// RouteHistory returns every route entry in insertion order.
func (s *Store) RouteHistory() ([]RouteEntry, error) {
	return s.queryRoute(`SELECT id, query_id, query_text, mode, score, class, reason, elapsed_ms, created_at
		FROM route_log ORDER BY id ASC`)
}

func (s *Store) queryRoute(q string, args ...any) ([]RouteEntry, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query route log: %w", err)
	}
	defer rows.Close()

	var entries []RouteEntry
	for rows.Next() {
		var e RouteEntry
		var reason sql.NullString
		var createdStr string
		if err := rows.Scan(&e.ID, &e.QueryID, &e.QueryText, &e.Mode, &e.Score, &e.Class, &reason, &e.ElapsedMs, &createdStr); err != nil {
			return nil, fmt.Errorf("scan route row: %w", err)
		}
		if reason.Valid {
			e.Reason = reason.String
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion list-route

// #region latest-accepted
// LatestAccepted returns the newest accepted guard entry, or nil when the
// journal holds none.
func (s *Store) LatestAccepted() (*GuardEntry, error) {
	entries, err := s.queryGuard(`SELECT id, activity_id, step_index, confidence, action, band, reason, match_count, observed_at, created_at
		FROM guard_log WHERE action = ? ORDER BY id DESC LIMIT 1`, string(guard.ActionAccept))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// #endregion latest-accepted

// #region counts
// CountByAction tallies guard entries per action.
func (s *Store) CountByAction() (map[string]int, error) {
	return s.countGroup(`SELECT action, COUNT(*) FROM guard_log GROUP BY action`)
}

// CountByMode tallies route entries per mode.
func (s *Store) CountByMode() (map[string]int, error) {
	return s.countGroup(`SELECT mode, COUNT(*) FROM route_log GROUP BY mode`)
}

func (s *Store) countGroup(q string) (map[string]int, error) {
	rows, err := s.db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

// #endregion counts

// #region helpers

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
