// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package enrich attaches EPSS/KEV exploitation data and compliance-framework
// mappings to normalized findings, then computes a deterministic priority
// score from the result.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// epssTTL and kevTTL match §4.D's cache rules: EPSS entries are valid for
// 30 days, the KEV list is refreshed weekly.
const (
	epssTTL = 30 * 24 * time.Hour
	kevTTL  = 7 * 24 * time.Hour
)

// cvssEntry is what the cache stores for one CVE: EPSS score/percentile,
// KEV membership, and when the entry was fetched (for TTL purposes).
type cvssEntry struct {
	CVE        string    `json:"cve"`
	EPSSScore  float64   `json:"epss_score"`
	EPSSPctile float64   `json:"epss_percentile"`
	HasEPSS    bool      `json:"has_epss"`
	KEV        bool      `json:"kev"`
	KEVDue     string    `json:"kev_due_date,omitempty"`
	FetchedAt  time.Time `json:"fetched_at"`
}

func (e cvssEntry) epssStale(now time.Time) bool  { return now.Sub(e.FetchedAt) > epssTTL }
func (e cvssEntry) kevStale(now time.Time) bool    { return now.Sub(e.FetchedAt) > kevTTL }

// Cache is the three-tier EPSS/KEV store described in §5's shared-resource
// policy: an in-process L1 (patrickmn/go-cache) backs every lookup, an
// embedded L2 (badger) survives process restarts, and an optional shared L3
// (redis) lets a fleet of scanforge runs amortize upstream lookups. Every
// tier is read-mostly; fresh upstream data is written back through Put.
type Cache struct {
	l1  *gocache.Cache
	l2  *badger.DB
	l3  *redis.Client
	log *slog.Logger
}

// Config controls which cache tiers are active. L2Dir and L3Addr empty
// disables that tier; the cache always has at least L1.
type Config struct {
	L2Dir   string
	L3Addr  string
	L3DB    int
}

// Open builds a Cache from cfg. Badger/Redis failures are logged and that
// tier is skipped — per §4.D, enrichment never blocks the scan.
func Open(cfg Config, log *slog.Logger) (*Cache, error) {
	if log == nil {
		log = slog.Default()
	}
	c := &Cache{
		l1:  gocache.New(epssTTL, time.Hour),
		log: log,
	}

	if cfg.L2Dir != "" {
		opts := badger.DefaultOptions(cfg.L2Dir).WithLogger(nil)
		db, err := badger.Open(opts)
		if err != nil {
			log.Warn("enrich: badger cache unavailable, continuing without L2", "error", err)
		} else {
			c.l2 = db
		}
	}

	if cfg.L3Addr != "" {
		c.l3 = redis.NewClient(&redis.Options{Addr: cfg.L3Addr, DB: cfg.L3DB})
	}

	return c, nil
}

// Close releases the badger and redis handles, if open.
func (c *Cache) Close() error {
	var err error
	if c.l2 != nil {
		err = c.l2.Close()
	}
	if c.l3 != nil {
		if cerr := c.l3.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Get walks L1 → L2 → L3 for cve, promoting hits found in a lower tier back
// up to L1 so the next lookup is fast. A total miss returns ok=false; the
// caller (Enrichment Pipeline) then performs a best-effort upstream lookup.
func (c *Cache) Get(ctx context.Context, cve string) (cvssEntry, bool) {
	if v, ok := c.l1.Get(cve); ok {
		return v.(cvssEntry), true
	}

	if c.l2 != nil {
		var entry cvssEntry
		err := c.l2.View(func(txn *badger.Txn) error {
			item, err := txn.Get([]byte(cve))
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
		})
		if err == nil {
			c.l1.SetDefault(cve, entry)
			return entry, true
		}
	}

	if c.l3 != nil {
		raw, err := c.l3.Get(ctx, redisKey(cve)).Bytes()
		if err == nil {
			var entry cvssEntry
			if json.Unmarshal(raw, &entry) == nil {
				c.l1.SetDefault(cve, entry)
				_ = c.writeL2(cve, entry)
				return entry, true
			}
		}
	}

	return cvssEntry{}, false
}

// Put writes entry to every active tier. L2/L3 failures are logged, not
// returned — a cache write failing never aborts enrichment.
func (c *Cache) Put(ctx context.Context, cve string, entry cvssEntry) {
	c.l1.SetDefault(cve, entry)

	if err := c.writeL2(cve, entry); err != nil {
		c.log.Warn("enrich: badger cache write failed", "cve", cve, "error", err)
	}

	if c.l3 != nil {
		raw, err := json.Marshal(entry)
		if err == nil {
			if err := c.l3.Set(ctx, redisKey(cve), raw, epssTTL).Err(); err != nil {
				c.log.Warn("enrich: redis cache write failed", "cve", cve, "error", err)
			}
		}
	}
}

func (c *Cache) writeL2(cve string, entry cvssEntry) error {
	if c.l2 == nil {
		return nil
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.l2.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(cve), raw).WithTTL(epssTTL))
	})
}

func redisKey(cve string) string {
	return fmt.Sprintf("scanforge:epss-kev:%s", cve)
}
