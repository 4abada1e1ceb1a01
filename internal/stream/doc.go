// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

/*
Package stream buffers pushed records per stream and drains them in batches
on a fixed tick.

Each active stream owns a bounded FIFO buffer. When the buffer is full the
oldest record is discarded to admit the new one. A per-stream loop wakes every
TickInterval, takes up to BatchSize records, enriches them and publishes the
batch as JSON on the in-process watermill topic "stream.<id>":

	p := stream.New(stream.Config{Errors: aggregator})
	defer p.Close()

	p.StartStream("clicks", "web", stream.Options{})
	batches, _ := p.Subscribe(ctx, "clicks")
	p.PushData("clicks", stream.Record{"user": 7})

Delivery is fire-and-forget: batches published with no subscriber are lost.
Records that fail enrichment are counted, reported to the error sink and
left out of the batch; the rest of the batch is unaffected. A failure of the
drain loop itself (a batch that cannot be encoded or published, or a panic)
moves the stream to StateError with the cause in Status.Error.
*/
package stream
