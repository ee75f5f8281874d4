// Package session persists console sessions behind an opaque cookie.
//
// A session is a Record (login-state stack plus display preferences) stored
// as a JSON blob in a Backend under a random id. The id is the only thing the
// browser ever sees. Backends exist for memory, Redis, S3 and Postgres; all
// implement the same Get/Put/Delete contract.
//
// Store turns blobs into records and never fails a read: an invalid id, a
// missing blob, a backend error or a corrupt blob all produce an empty
// Record.
//
// Manager.Middleware loads the record for each request, binds its login
// state to the request context and commits it right before the response
// starts. A changed record is written under a freshly minted id and the old
// blob is removed in the background, so an id is never reused for different
// content.
//
//	mgr := session.NewFromConfig(cfg,
//	    session.WithBackend(session.NewRedisBackend(client, cfg.KeyPrefix)),
//	    session.WithLogger(log),
//	)
//	r.Use(mgr.Middleware)
package session
