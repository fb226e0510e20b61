// Package pickdb stores travel-time picks with their source and receiver
// geometry in SQLite and exports them in the tomography input layout.
package pickdb

import (
	"database/sql"
	"errors"
	"fmt"
	"math"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("pickdb: not found")

// DB is a pick database.
type DB struct {
	*sql.DB
}

// Event is a named arrival with the model branch it samples.
type Event struct {
	Name        string
	BranchID    int
	SubID       int
	Description string
}

// Point is a source or receiver location.
type Point struct {
	ID      int64
	X, Y, Z float64
}

// Pick is one travel-time observation.
type Pick struct {
	Event string
	SrcID int64
	RecID int64
	Time  float64
	Error float64
}

// MasterPick is a pick joined with its event and geometry.
type MasterPick struct {
	Pick
	BranchID int
	SubID    int
	Source   Point
	Receiver Point
}

// Offset is the horizontal source-receiver distance.
func (p MasterPick) Offset() float64 {
	return math.Hypot(p.Source.X-p.Receiver.X, p.Source.Y-p.Receiver.Y)
}

// OpenDB opens the database and applies connection pragmas without
// touching the schema.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// pragmas are per connection; a single connection keeps them and lets
	// ":memory:" databases survive between statements
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return &DB{db}, nil
}

// NewDB opens the database and migrates it to the latest schema.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// AddEvent inserts an event. With replace an existing event of the same
// name is overwritten; otherwise a duplicate is an error.
func (db *DB) AddEvent(e Event, replace bool) error {
	q := "INSERT INTO events (event, branchid, subid, description) VALUES (?, ?, ?, ?)"
	if replace {
		// an upsert keeps the row, so picks referencing it stay valid
		q += ` ON CONFLICT(event) DO UPDATE SET
			branchid = excluded.branchid,
			subid = excluded.subid,
			description = excluded.description`
	}
	if _, err := db.Exec(q, e.Name, e.BranchID, e.SubID, e.Description); err != nil {
		return fmt.Errorf("failed to add event %q: %w", e.Name, err)
	}
	return nil
}

// AddSource inserts a source point.
func (db *DB) AddSource(p Point, replace bool) error {
	return db.addPoint("sources", "src", p, replace)
}

// AddReceiver inserts a receiver point.
func (db *DB) AddReceiver(p Point, replace bool) error {
	return db.addPoint("receivers", "rec", p, replace)
}

func (db *DB) addPoint(table, prefix string, p Point, replace bool) error {
	cols := fmt.Sprintf("%[1]sid, %[1]sx, %[1]sy, %[1]sz", prefix)
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?)", table, cols)
	if replace {
		q += fmt.Sprintf(" ON CONFLICT(%[1]sid) DO UPDATE SET %[1]sx = excluded.%[1]sx, %[1]sy = excluded.%[1]sy, %[1]sz = excluded.%[1]sz", prefix)
	}
	if _, err := db.Exec(q, p.ID, p.X, p.Y, p.Z); err != nil {
		return fmt.Errorf("failed to add %s %d: %w", table[:len(table)-1], p.ID, err)
	}
	return nil
}

// AddPick inserts a pick. The event, source and receiver must exist.
func (db *DB) AddPick(p Pick, replace bool) error {
	verb := "INSERT"
	if replace {
		verb = "INSERT OR REPLACE"
	}
	q := verb + " INTO picks (event, srcid, recid, time, error) VALUES (?, ?, ?, ?, ?)"
	if _, err := db.Exec(q, p.Event, p.SrcID, p.RecID, p.Time, p.Error); err != nil {
		return fmt.Errorf("failed to add pick %s/%d/%d: %w", p.Event, p.SrcID, p.RecID, err)
	}
	return nil
}

// Events lists events by name.
func (db *DB) Events() ([]Event, error) {
	rows, err := db.Query("SELECT event, branchid, subid, description FROM events ORDER BY event")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Name, &e.BranchID, &e.SubID, &e.Description); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Event returns the named event or ErrNotFound.
func (db *DB) Event(name string) (Event, error) {
	e := Event{Name: name}
	err := db.QueryRow("SELECT branchid, subid, description FROM events WHERE event = ?", name).
		Scan(&e.BranchID, &e.SubID, &e.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, fmt.Errorf("%w: event %q", ErrNotFound, name)
	}
	return e, err
}

// Sources lists source points by id.
func (db *DB) Sources() ([]Point, error) {
	return db.points("SELECT srcid, srcx, srcy, srcz FROM vmtomo_sources ORDER BY srcid")
}

// Receivers lists receiver points by id.
func (db *DB) Receivers() ([]Point, error) {
	return db.points("SELECT recid, recx, recy, recz FROM vmtomo_receivers ORDER BY recid")
}

func (db *DB) points(q string, args ...any) ([]Point, error) {
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Point
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.ID, &p.X, &p.Y, &p.Z); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Picks lists the picks matching f, joined with their geometry.
func (db *DB) Picks(f Filter) ([]MasterPick, error) {
	where, args := f.where()
	q := `SELECT event, branchid, subid, srcid, srcx, srcy, srcz,
		recid, recx, recy, recz, time, error FROM master_picks` + where +
		" ORDER BY recid, srcid, branchid, subid, event"
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MasterPick
	for rows.Next() {
		var p MasterPick
		if err := rows.Scan(&p.Event, &p.BranchID, &p.SubID,
			&p.Source.ID, &p.Source.X, &p.Source.Y, &p.Source.Z,
			&p.Receiver.ID, &p.Receiver.X, &p.Receiver.Y, &p.Receiver.Z,
			&p.Time, &p.Error); err != nil {
			return nil, err
		}
		p.SrcID, p.RecID = p.Source.ID, p.Receiver.ID
		out = append(out, p)
	}
	return out, rows.Err()
}

// Counts returns the number of rows in each table.
func (db *DB) Counts() (map[string]int, error) {
	out := make(map[string]int, 4)
	for _, table := range []string{"events", "sources", "receivers", "picks"} {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		out[table] = n
	}
	return out, nil
}
