// Package database provides the SQLite connection used by the sqlite
// directory backend.
//
// The file is opened with a busy timeout and optional WAL mode, restricted to
// owner read/write, and brought up to date by Migrate from the embedded
// schema in the top-level migrations package.
//
// Usage:
//
//	db, err := database.Open(cfg.Directory.SQLite)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
