package db

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"
)

// AttachAdminRoutes mounts the tsweb debugger on mux with a live SQL
// console over the event database and, for SQLite, a backup download.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("create tailsql server: %w", err)
	}
	source := db.Driver + "://pose"
	if db.Driver == DriverSQLite {
		source = "sqlite://" + filepath.Base(db.DSN)
	}
	tsql.SetDB(source, db.DB, &tailsql.DBOptions{
		Label: "Pose events",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("db-stats", "Event table size and schema version", http.HandlerFunc(db.serveStats))
	if db.Driver == DriverSQLite {
		debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(db.serveBackup))
	}
	return nil
}

// serveBackup snapshots the database with VACUUM INTO and streams it
// gzipped.
func (db *DB) serveBackup(w http.ResponseWriter, r *http.Request) {
	name := fmt.Sprintf("pose-backup-%d.db", time.Now().Unix())
	path := filepath.Join(os.TempDir(), name)
	if _, err := db.ExecContext(r.Context(), "VACUUM INTO ?", path); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			logf("remove backup %s: %v", path, err)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", name))
	w.Header().Set("Content-Type", "application/gzip")

	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := io.Copy(gz, f); err != nil {
		logf("write backup: %v", err)
	}
}

// Stats summarises the event database.
type Stats struct {
	Driver  string `json:"driver"`
	Version uint   `json:"schema_version"`
	Dirty   bool   `json:"dirty"`
	Events  int64  `json:"events"`
}

// Stats reports the schema version and the number of stored events.
func (db *DB) Stats() (Stats, error) {
	st := Stats{Driver: db.Driver}
	v, dirty, err := db.MigrateVersion()
	if err != nil {
		return st, err
	}
	st.Version, st.Dirty = v, dirty
	if v == 0 {
		return st, nil
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM detected_poses").Scan(&st.Events); err != nil {
		return st, fmt.Errorf("count events: %w", err)
	}
	return st, nil
}

func (db *DB) serveStats(w http.ResponseWriter, r *http.Request) {
	st, err := db.Stats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		logf("encode stats: %v", err)
	}
}
