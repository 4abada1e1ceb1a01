// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

// Package tasks runs fire-and-forget work on a bounded pool and exposes its
// outcome through polling.
//
// A submitted task is reported as running from the moment Submit returns,
// even while it waits for a worker slot. Its terminal state becomes visible
// on the first Status call after the work finishes:
//
//	id := tracker.Submit(func(ctx context.Context, report tasks.Progress) (interface{}, error) {
//		report(50)
//		return rebuildIndex(ctx)
//	})
//	...
//	st, _ := tracker.Status(id)
//
// Cancel only succeeds before a worker picks the task up. Failures and panics
// are mirrored into the error aggregator and the task metrics as soon as they
// happen, independent of polling.
package tasks
