// Package database provides the SQLite connection used for the area, device
// and entity directories and for the persisted configuration entries.
//
// The database runs in WAL mode with a busy timeout and a single open
// connection. Schema changes are applied from versioned SQL files supplied
// as an fs.FS, normally the embedded migrations package:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS, "."); err != nil {
//	    return err
//	}
//
// All queries use parameterised statements.
package database
