// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

/*
Package monitor records request outcomes in a bounded rolling buffer and
derives windowed summaries, per-endpoint percentiles and a letter grade.

# Recording

Every finished request is reported with Record (or through Track and
Middleware, which time the call). The buffer keeps the newest MaxMetrics
entries; older ones are dropped silently.

# Alerts

Record checks each metric against the response time threshold and for an
error. Matching alerts go onto a bounded queue without blocking the caller;
Serve drains the queue into the AlertSink under a token bucket. Alerts that
find the queue full are dropped, and alerts over the rate budget are
suppressed. Both are counted in perfcore_monitor_alerts_total.

# Grading

ComputeGrade starts at 100 and subtracts penalties:

	avg response time  > 1.0s: -20   else > 0.5s: -10
	error rate         > 5%:   -30   else > 1%:   -15
	cache hit rate     < 70%:  -20   else < 80%:  -10

and maps the score to A (>=90), B (>=80), C (>=70), D (>=60) or F.
*/
package monitor
