// Package casebook is the composition root for the casebook record keeper.
//
// It connects the core (the record store, its live feeds, photo management
// and edit sessions) with the infrastructure adapters using the hexagonal
// architecture pattern: storage (YAML file or SQLite), an optional S3 photo
// mirror and Prometheus metrics.
//
// Features:
//
//   - **Live Feeds**: latest-value subscriptions to the whole collection or a single record.
//   - **Edit Sessions**: detached working copies committed on explicit triggers and on teardown.
//   - **Scoped Photo Grants**: external capture tools get revocable tokens, never raw paths.
//   - **Reconciliation**: minimal edit scripts between two snapshots for display sync.
//   - **Pluggable Storage**: fs, sqlite or memory via `core.Repository`.
//
// Usage:
//
//	app, err := casebook.New(ctx, "./vault", casebook.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer app.Close()
//
//	rec, err := app.Store.Create(ctx)
//	s, err := app.OpenSession(ctx, rec.ID)
//	_ = s.SetTitle("Stolen bicycle")
//	err = s.Close(ctx) // commits and revokes photo grants
package casebook
