package export

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"sceneaoi/internal/geom"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Record is one finished export.
type Record struct {
	ID           string                `json:"id"`
	Scene        string                `json:"scene"`
	AOI          string                `json:"aoi"`
	Origin       *geom.Point           `json:"origin,omitempty"`
	SR           geom.SpatialReference `json:"wkid"`
	FeatureCount int                   `json:"featureCount"`
	Path         string                `json:"path"`
	CreatedAt    time.Time             `json:"createdAt"`
}

// Ledger persists export records in sqlite.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (creating if needed) the ledger database at path and
// applies the migrations.
func OpenLedger(ctx context.Context, path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?mode=rwc&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	l := &Ledger{db: db}
	if err := l.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return l, nil
}

func (l *Ledger) migrate(ctx context.Context) error {
	names, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}
	sort.Slice(names, func(i, j int) bool { return names[i].Name() < names[j].Name() })
	for _, n := range names {
		data, err := migrations.ReadFile("migrations/" + n.Name())
		if err != nil {
			return fmt.Errorf("read migration: %w", err)
		}
		if _, err := l.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", n.Name(), err)
		}
	}
	return nil
}

func (l *Ledger) Close() error { return l.db.Close() }

// Insert stores rec.
func (l *Ledger) Insert(ctx context.Context, rec Record) error {
	var ox, oy, oz sql.NullFloat64
	if rec.Origin != nil {
		ox = sql.NullFloat64{Float64: rec.Origin.X, Valid: true}
		oy = sql.NullFloat64{Float64: rec.Origin.Y, Valid: true}
		oz = sql.NullFloat64{Float64: rec.Origin.Z, Valid: true}
	}
	_, err := l.db.ExecContext(ctx, `
        INSERT INTO exports (id, scene, aoi_wkt, origin_x, origin_y, origin_z, wkid, feature_count, path, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, rec.ID, rec.Scene, rec.AOI, ox, oy, oz, int(rec.SR), rec.FeatureCount, rec.Path, rec.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert export %s: %w", rec.ID, err)
	}
	return nil
}

// List returns up to limit records, newest first. A limit of zero or less
// returns all of them.
func (l *Ledger) List(ctx context.Context, limit int) ([]Record, error) {
	q := `
        SELECT id, scene, aoi_wkt, origin_x, origin_y, origin_z, wkid, feature_count, path, created_at
        FROM exports
        ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec        Record
			ox, oy, oz sql.NullFloat64
			wkid       int
			created    int64
		)
		if err := rows.Scan(&rec.ID, &rec.Scene, &rec.AOI, &ox, &oy, &oz, &wkid, &rec.FeatureCount, &rec.Path, &created); err != nil {
			return nil, err
		}
		rec.SR = geom.SpatialReference(wkid)
		rec.CreatedAt = time.Unix(0, created).UTC()
		if ox.Valid && oy.Valid {
			p := geom.NewPoint(ox.Float64, oy.Float64, oz.Float64, rec.SR)
			rec.Origin = &p
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
