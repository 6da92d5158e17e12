// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// HTTPClient is the minimal surface Lookup's upstream sources need; the
// default is http.DefaultClient, but tests and offline environments inject
// a fake satisfying this interface instead of standing up a real server.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// FIRSTEPSSSource implements EPSSSource against the FIRST.org EPSS API
// (https://api.first.org/data/v1/epss), batching CVEs into the "cve"
// query parameter per its documented comma-separated form.
type FIRSTEPSSSource struct {
	BaseURL string
	Client  HTTPClient
}

// NewFIRSTEPSSSource builds a source pointed at baseURL (empty defaults to
// the public FIRST.org endpoint).
func NewFIRSTEPSSSource(baseURL string, client HTTPClient) *FIRSTEPSSSource {
	if baseURL == "" {
		baseURL = "https://api.first.org/data/v1/epss"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &FIRSTEPSSSource{BaseURL: baseURL, Client: client}
}

type epssAPIResponse struct {
	Data []struct {
		CVE        string `json:"cve"`
		EPSS       string `json:"epss"`
		Percentile string `json:"percentile"`
	} `json:"data"`
}

// LookupEPSS fetches EPSS score/percentile for every cve in one batched
// request. Per §4.D, a failed request is returned as an error and the
// caller proceeds without EPSS data rather than failing the scan.
func (s *FIRSTEPSSSource) LookupEPSS(ctx context.Context, cves []string) (map[string]EPSSResult, error) {
	if len(cves) == 0 {
		return nil, nil
	}
	url := fmt.Sprintf("%s?cve=%s", s.BaseURL, strings.Join(cves, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("enrich: build EPSS request: %w", err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("enrich: EPSS request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("enrich: EPSS returned status %d", resp.StatusCode)
	}

	var parsed epssAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("enrich: decode EPSS response: %w", err)
	}

	out := make(map[string]EPSSResult, len(parsed.Data))
	for _, row := range parsed.Data {
		score, _ := strconv.ParseFloat(row.EPSS, 64)
		pctile, _ := strconv.ParseFloat(row.Percentile, 64)
		out[row.CVE] = EPSSResult{Score: score, Percentile: pctile}
	}
	return out, nil
}

// CISAKEVSource implements KEVSource against CISA's "Known Exploited
// Vulnerabilities" JSON catalog, which lists every KEV entry in one
// document rather than supporting per-CVE queries; the whole catalog is
// fetched and filtered locally, which is why §4.D specifies a weekly
// refresh interval rather than a per-lookup fetch.
type CISAKEVSource struct {
	CatalogURL string
	Client     HTTPClient
}

// NewCISAKEVSource builds a source pointed at catalogURL (empty defaults to
// the public CISA catalog).
func NewCISAKEVSource(catalogURL string, client HTTPClient) *CISAKEVSource {
	if catalogURL == "" {
		catalogURL = "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &CISAKEVSource{CatalogURL: catalogURL, Client: client}
}

type kevCatalog struct {
	Vulnerabilities []struct {
		CveID             string `json:"cveID"`
		DueDate           string `json:"dueDate"`
		KnownRansomware   string `json:"knownRansomwareCampaignUse"`
	} `json:"vulnerabilities"`
}

// LookupKEV fetches the full catalog and returns the subset matching cves.
func (s *CISAKEVSource) LookupKEV(ctx context.Context, cves []string) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.CatalogURL, nil)
	if err != nil {
		return nil, fmt.Errorf("enrich: build KEV request: %w", err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("enrich: KEV request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("enrich: KEV catalog returned status %d", resp.StatusCode)
	}

	var catalog kevCatalog
	if err := json.NewDecoder(resp.Body).Decode(&catalog); err != nil {
		return nil, fmt.Errorf("enrich: decode KEV catalog: %w", err)
	}

	wanted := make(map[string]bool, len(cves))
	for _, c := range cves {
		wanted[c] = true
	}

	out := make(map[string]string)
	for _, v := range catalog.Vulnerabilities {
		if wanted[v.CveID] {
			out[v.CveID] = v.DueDate
		}
	}
	return out, nil
}
