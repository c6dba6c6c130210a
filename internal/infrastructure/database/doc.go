// Package database provides the SQLite connection and schema migrations
// for Mussel Core's durable logs (telemetry samples, settings history and
// the command audit trail).
//
// Queries are always parameterised. The database file is created with
// mode 0600.
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be nullable or carry a default,
// and every .up.sql ships with a .down.sql.
package database
