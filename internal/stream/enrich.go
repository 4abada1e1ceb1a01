// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package stream

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Metadata keys added to every enriched record.
const (
	KeyTimestamp          = "timestamp"
	KeyProcessingMetadata = "processing_metadata"

	processedBy       = "perfcore-stream"
	processingVersion = "1.0"
)

// Processed is one enriched record.
type Processed struct {
	Original    Record    `json:"original"`
	ProcessedAt time.Time `json:"processed_at"`
	StreamID    string    `json:"stream_id"`
	Enriched    Record    `json:"enriched_data"`
}

// Batch is the payload published per drain.
type Batch struct {
	StreamID  string      `json:"stream_id"`
	EmittedAt time.Time   `json:"emitted_at"`
	Records   []Processed `json:"records"`
}

// enrich never mutates r. Panics in the transform become errors.
func (p *Processor) enrich(s *stream, r Record) (out Processed, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("enrich panic: %v", rec)
		}
	}()

	now := p.clock.Now()
	enriched := make(Record, len(r)+2)
	for k, v := range r {
		enriched[k] = v
	}
	if _, ok := enriched[KeyTimestamp]; !ok {
		enriched[KeyTimestamp] = now.Format(time.RFC3339)
	}
	enriched[KeyProcessingMetadata] = map[string]interface{}{
		"processed_by":       processedBy,
		"processing_version": processingVersion,
		"quality_score":      p.quality(),
	}

	if s.transform != nil {
		if enriched, err = s.transform(enriched); err != nil {
			return Processed{}, fmt.Errorf("transform: %w", err)
		}
	}

	out = Processed{
		Original:    r,
		ProcessedAt: now,
		StreamID:    s.info.ID,
		Enriched:    enriched,
	}
	// Records must survive publication.
	if _, err := json.Marshal(out); err != nil {
		return Processed{}, fmt.Errorf("encode record: %w", err)
	}
	return out, nil
}

func encodeBatch(b Batch) ([]byte, error) {
	return json.Marshal(b)
}

func decodeBatch(payload []byte) (Batch, error) {
	var b Batch
	if err := json.Unmarshal(payload, &b); err != nil {
		return Batch{}, fmt.Errorf("decode batch: %w", err)
	}
	return b, nil
}
