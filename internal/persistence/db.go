// Package persistence provides SQLite-based storage for saved layouts,
// the discovery log and planet metadata.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"github.com/talgya/catplanet/internal/curve"
	"github.com/talgya/catplanet/internal/engine"
	"github.com/talgya/catplanet/internal/layout"
)

// timeFormat sorts lexically in time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when a requested layout does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS layouts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		version INTEGER NOT NULL,
		radius REAL NOT NULL,
		created_at TEXT NOT NULL,
		saved_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS placements (
		layout_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		class TEXT NOT NULL,
		template TEXT NOT NULL,
		pos_x REAL NOT NULL,
		pos_y REAL NOT NULL,
		pos_z REAL NOT NULL,
		rot_w REAL NOT NULL,
		rot_x REAL NOT NULL,
		rot_y REAL NOT NULL,
		rot_z REAL NOT NULL,
		surface_offset REAL NOT NULL,
		blocking INTEGER NOT NULL,
		style TEXT NOT NULL,
		owner INTEGER NOT NULL,
		curve INTEGER NOT NULL,
		motion_json TEXT,
		PRIMARY KEY (layout_id, seq)
	);

	CREATE TABLE IF NOT EXISTS curves (
		layout_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		closed INTEGER NOT NULL,
		points BLOB NOT NULL,
		PRIMARY KEY (layout_id, seq)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_layouts_saved ON layouts(saved_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type layoutRow struct {
	ID        string  `db:"id"`
	Name      string  `db:"name"`
	Version   int     `db:"version"`
	Radius    float64 `db:"radius"`
	CreatedAt string  `db:"created_at"`
	SavedAt   string  `db:"saved_at"`
}

type placementRow struct {
	Class      string         `db:"class"`
	Template   string         `db:"template"`
	PosX       float64        `db:"pos_x"`
	PosY       float64        `db:"pos_y"`
	PosZ       float64        `db:"pos_z"`
	RotW       float64        `db:"rot_w"`
	RotX       float64        `db:"rot_x"`
	RotY       float64        `db:"rot_y"`
	RotZ       float64        `db:"rot_z"`
	Offset     float64        `db:"surface_offset"`
	Blocking   bool           `db:"blocking"`
	Style      string         `db:"style"`
	Owner      int            `db:"owner"`
	Curve      int            `db:"curve"`
	MotionJSON sql.NullString `db:"motion_json"`
}

type summaryRow struct {
	ID        string  `db:"id"`
	Name      string  `db:"name"`
	Radius    float64 `db:"radius"`
	CreatedAt string  `db:"created_at"`
	SavedAt   string  `db:"saved_at"`
	Count     int     `db:"placements"`
}

type curveRow struct {
	Closed bool   `db:"closed"`
	Points []byte `db:"points"`
}

// Summary describes a stored layout without its contents.
type Summary struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Radius     float64   `json:"radius"`
	CreatedAt  time.Time `json:"created_at"`
	SavedAt    time.Time `json:"saved_at"`
	Placements int       `json:"placements"`
}

// SaveLayout writes l, replacing any stored layout with the same ID.
func (db *DB) SaveLayout(l *layout.Layout) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	id := l.ID.String()
	for _, table := range []string{"placements", "curves", "layouts"} {
		col := "layout_id"
		if table == "layouts" {
			col = "id"
		}
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE "+col+" = ?", id); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	_, err = tx.Exec(`INSERT INTO layouts (id, name, version, radius, created_at, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, l.Name, l.Version, l.Radius,
		l.CreatedAt.UTC().Format(timeFormat), time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert layout: %w", err)
	}

	stmt, err := tx.Preparex(`INSERT INTO placements
		(layout_id, seq, class, template, pos_x, pos_y, pos_z, rot_w, rot_x, rot_y, rot_z,
		 surface_offset, blocking, style, owner, curve, motion_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range l.Placements {
		var motion sql.NullString
		if p.Motion != nil {
			motionJSON, _ := json.Marshal(p.Motion)
			motion = sql.NullString{String: string(motionJSON), Valid: true}
		}
		blocking := 0
		if p.Blocking {
			blocking = 1
		}
		_, err := stmt.Exec(
			id, i, p.Class, p.Template,
			p.LocalPosition[0], p.LocalPosition[1], p.LocalPosition[2],
			p.LocalRotation[0], p.LocalRotation[1], p.LocalRotation[2], p.LocalRotation[3],
			p.LocalOffset, blocking, p.Style, p.Owner, p.Curve, motion,
		)
		if err != nil {
			return fmt.Errorf("insert placement %d: %w", i, err)
		}
	}

	for i, c := range l.Curves {
		blob, err := msgpack.Marshal(c.Points)
		if err != nil {
			return fmt.Errorf("encode curve %d: %w", i, err)
		}
		closed := 0
		if c.Closed {
			closed = 1
		}
		if _, err := tx.Exec("INSERT INTO curves (layout_id, seq, closed, points) VALUES (?, ?, ?, ?)",
			id, i, closed, blob); err != nil {
			return fmt.Errorf("insert curve %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("layout saved", "id", id, "name", l.Name, "placements", len(l.Placements), "curves", len(l.Curves))
	return nil
}

// LoadLayout reads the layout with the given ID.
func (db *DB) LoadLayout(id uuid.UUID) (*layout.Layout, error) {
	var row layoutRow
	err := db.conn.Get(&row, "SELECT id, name, version, radius, created_at, saved_at FROM layouts WHERE id = ?", id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("layout %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load layout %s: %w", id, err)
	}
	return db.loadContents(row)
}

// LatestLayout reads the most recently saved layout.
func (db *DB) LatestLayout() (*layout.Layout, error) {
	var row layoutRow
	err := db.conn.Get(&row, "SELECT id, name, version, radius, created_at, saved_at FROM layouts ORDER BY saved_at DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest layout: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load latest layout: %w", err)
	}
	return db.loadContents(row)
}

func (db *DB) loadContents(row layoutRow) (*layout.Layout, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("layout id %q: %w", row.ID, err)
	}
	created, _ := time.Parse(timeFormat, row.CreatedAt)
	l := &layout.Layout{
		Version:   row.Version,
		ID:        id,
		Name:      row.Name,
		Radius:    row.Radius,
		CreatedAt: created,
	}

	var placements []placementRow
	err = db.conn.Select(&placements, `SELECT class, template, pos_x, pos_y, pos_z,
		rot_w, rot_x, rot_y, rot_z, surface_offset, blocking, style, owner, curve, motion_json
		FROM placements WHERE layout_id = ? ORDER BY seq`, row.ID)
	if err != nil {
		return nil, fmt.Errorf("load placements: %w", err)
	}
	for _, p := range placements {
		pl := layout.Placement{
			Class:         p.Class,
			Template:      p.Template,
			LocalPosition: [3]float64{p.PosX, p.PosY, p.PosZ},
			LocalRotation: layout.Quat{p.RotW, p.RotX, p.RotY, p.RotZ},
			LocalOffset:   p.Offset,
			Blocking:      p.Blocking,
			Style:         p.Style,
			Owner:         p.Owner,
			Curve:         p.Curve,
		}
		if p.MotionJSON.Valid {
			var m layout.Motion
			if err := json.Unmarshal([]byte(p.MotionJSON.String), &m); err != nil {
				return nil, fmt.Errorf("decode motion: %w", err)
			}
			pl.Motion = &m
		}
		l.Placements = append(l.Placements, pl)
	}

	var curves []curveRow
	if err := db.conn.Select(&curves, "SELECT closed, points FROM curves WHERE layout_id = ? ORDER BY seq", row.ID); err != nil {
		return nil, fmt.Errorf("load curves: %w", err)
	}
	for i, c := range curves {
		var pts []curve.Point
		if err := msgpack.Unmarshal(c.Points, &pts); err != nil {
			return nil, fmt.Errorf("decode curve %d: %w", i, err)
		}
		l.Curves = append(l.Curves, layout.CurveData{Points: pts, Closed: c.Closed})
	}

	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// ListLayouts returns every stored layout, newest first.
func (db *DB) ListLayouts() ([]Summary, error) {
	var rows []summaryRow
	err := db.conn.Select(&rows, `SELECT l.id, l.name, l.radius, l.created_at, l.saved_at,
		(SELECT COUNT(*) FROM placements p WHERE p.layout_id = l.id) AS placements
		FROM layouts l ORDER BY l.saved_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list layouts: %w", err)
	}

	out := make([]Summary, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			continue
		}
		created, _ := time.Parse(timeFormat, r.CreatedAt)
		saved, _ := time.Parse(timeFormat, r.SavedAt)
		out = append(out, Summary{
			ID:         id,
			Name:       r.Name,
			Radius:     r.Radius,
			CreatedAt:  created,
			SavedAt:    saved,
			Placements: r.Count,
		})
	}
	return out, nil
}

// DeleteLayout removes a stored layout.
func (db *DB) DeleteLayout(id uuid.UUID) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM layouts WHERE id = ?", id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("layout %s: %w", id, ErrNotFound)
	}
	if _, err := tx.Exec("DELETE FROM placements WHERE layout_id = ?", id.String()); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM curves WHERE layout_id = ?", id.String()); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (tick, description, category) VALUES (?, ?, ?)",
			e.Tick, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N events.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair in planet metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// SaveWorldState captures the simulation as a new layout and stores it
// together with the pending discovery log.
func (db *DB) SaveWorldState(sim *engine.Simulation, name string) (*layout.Layout, error) {
	return db.saveWorldState(sim, name, uuid.Nil)
}

// Autosave stores the simulation in a single rolling layout whose ID is kept
// under the autosave_layout meta key, so periodic saves replace one row.
func (db *DB) Autosave(sim *engine.Simulation, name string) (*layout.Layout, error) {
	id := uuid.Nil
	if v, err := db.GetMeta("autosave_layout"); err == nil {
		if parsed, err := uuid.Parse(v); err == nil {
			id = parsed
		}
	}
	l, err := db.saveWorldState(sim, name, id)
	if err != nil {
		return nil, err
	}
	if err := db.SaveMeta("autosave_layout", l.ID.String()); err != nil {
		return nil, fmt.Errorf("save meta: %w", err)
	}
	return l, nil
}

// saveWorldState stores a snapshot under id, or under a fresh ID when id is
// nil. Events drained by the snapshot are handed back to sim if they could
// not be written.
func (db *DB) saveWorldState(sim *engine.Simulation, name string, id uuid.UUID) (*layout.Layout, error) {
	l, events := sim.Snapshot(name)
	if id != uuid.Nil {
		l.ID = id
	}
	slog.Info("saving planet", "name", name, "id", l.ID, "placements", len(l.Placements), "events", len(events))

	if err := db.SaveLayout(l); err != nil {
		sim.Requeue(events)
		return nil, fmt.Errorf("save layout: %w", err)
	}
	if err := db.SaveEvents(events); err != nil {
		sim.Requeue(events)
		return nil, fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveMeta("last_layout", l.ID.String()); err != nil {
		return nil, fmt.Errorf("save meta: %w", err)
	}
	if err := db.SaveMeta("last_tick", fmt.Sprintf("%d", sim.CurrentTick())); err != nil {
		return nil, fmt.Errorf("save meta: %w", err)
	}
	return l, nil
}
