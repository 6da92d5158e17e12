// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/storage"

	"github.com/scanforge/scanforge/internal/model"
)

// Archiver is an optional cold-storage sink layered on top of the primary
// Postgres-backed Store: one JSON object per scan, uploaded to a
// customer-owned bucket for retention policies the Store itself does not
// implement (§4.H names prune/vacuum as the Store's own bounded-retention
// tools; a GCS archive is for operators who want every scan kept forever
// somewhere cheaper). Losing access to the bucket never fails a scan — the
// Store remains the source of truth for list/get/compare/trend queries.
type Archiver struct {
	client *storage.Client
	bucket string
}

// OpenArchiver builds a GCS client against Application Default Credentials.
// Unlike the teacher's cmd/aleutian/gcs.Client, this never requires a
// service-account key file on disk — scanforge runs in CI and developer
// laptops alike, where ADC (gcloud auth application-default login, or a
// workload identity binding) is the norm and a hardcoded key path is not.
func OpenArchiver(ctx context.Context, bucket string) (*Archiver, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("history: opening GCS client: %w", err)
	}
	return &Archiver{client: client, bucket: bucket}, nil
}

// Close releases the underlying GCS client.
func (a *Archiver) Close() error {
	return a.client.Close()
}

// archivedScan is the envelope written to the bucket: the scan's metadata
// plus every finding it produced, enough to rebuild a Store row if the
// primary database is ever lost.
type archivedScan struct {
	Scan     model.Scan      `json:"scan"`
	Findings []model.Finding `json:"findings"`
}

// ArchiveScan uploads one scan's full record to
// gs://<bucket>/scans/<scan_id>.json. Failure here is always
// EnrichmentUnavailable-shaped from the caller's point of view: logged, and
// never a reason to fail the scan (§7's StorageError only aborts on the
// primary output sink, and the GCS archive is never the primary sink).
func (a *Archiver) ArchiveScan(ctx context.Context, scan model.Scan, findings []model.Finding) error {
	payload, err := json.Marshal(archivedScan{Scan: scan, Findings: findings})
	if err != nil {
		return fmt.Errorf("history: marshal archive payload: %w", err)
	}

	obj := a.client.Bucket(a.bucket).Object(fmt.Sprintf("scans/%s.json", scan.ScanID))
	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"
	w.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return fmt.Errorf("history: writing archive object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("history: closing archive object: %w", err)
	}
	return nil
}
