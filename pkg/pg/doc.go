// Package pg opens the Postgres pool used by the session backend and
// applies its migrations.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, session.Migrations, session.MigrationsDir, cfg, log); err != nil {
//		return err
//	}
//
// Migrations are goose SQL files read from an fs.FS, so they ship inside
// the binary.
package pg
