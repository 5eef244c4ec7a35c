// Package sqlite implements sink.Store on the SQLite event database.
//
// The schema is owned by internal/db; open the database with
// db.OpenAndMigrate before constructing a store.
package sqlite
