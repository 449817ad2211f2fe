// Package database opens the agent's SQLite database and applies the
// embedded schema migrations.
//
// The database holds one row per setpoint slot. It is opened with a single
// connection and, on devices, synchronous=FULL so that a committed setpoint
// survives a power cut.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Storage.Path, WALMode: true, SyncFull: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
