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
	"io"
	"net/http"
	"strings"
	"testing"
)

type fakeHTTPClient struct {
	status int
	body   string
}

func (f fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(strings.NewReader(f.body)),
	}, nil
}

func TestFIRSTEPSSSource_LookupEPSS(t *testing.T) {
	client := fakeHTTPClient{status: 200, body: `{"data":[{"cve":"CVE-2024-0001","epss":"0.45","percentile":"0.9"}]}`}
	src := NewFIRSTEPSSSource("", client)

	results, err := src.LookupEPSS(context.Background(), []string{"CVE-2024-0001"})
	if err != nil {
		t.Fatalf("LookupEPSS: %v", err)
	}
	got, ok := results["CVE-2024-0001"]
	if !ok {
		t.Fatal("expected a result for CVE-2024-0001")
	}
	if got.Score != 0.45 || got.Percentile != 0.9 {
		t.Errorf("got %+v, want score=0.45 percentile=0.9", got)
	}
}

func TestFIRSTEPSSSource_LookupEPSS_EmptyInput(t *testing.T) {
	src := NewFIRSTEPSSSource("", fakeHTTPClient{status: 200, body: "{}"})
	results, err := src.LookupEPSS(context.Background(), nil)
	if err != nil || results != nil {
		t.Fatalf("expected nil, nil for empty input, got %v, %v", results, err)
	}
}

func TestFIRSTEPSSSource_LookupEPSS_NonOKStatus(t *testing.T) {
	src := NewFIRSTEPSSSource("", fakeHTTPClient{status: 500, body: ""})
	if _, err := src.LookupEPSS(context.Background(), []string{"CVE-2024-0001"}); err == nil {
		t.Fatal("expected an error on non-200 status")
	}
}

func TestCISAKEVSource_LookupKEV_FiltersToRequestedCVEs(t *testing.T) {
	body := `{"vulnerabilities":[
		{"cveID":"CVE-2024-0001","dueDate":"2024-06-01"},
		{"cveID":"CVE-2024-9999","dueDate":"2024-07-01"}
	]}`
	src := NewCISAKEVSource("", fakeHTTPClient{status: 200, body: body})

	out, err := src.LookupKEV(context.Background(), []string{"CVE-2024-0001"})
	if err != nil {
		t.Fatalf("LookupKEV: %v", err)
	}
	if len(out) != 1 || out["CVE-2024-0001"] != "2024-06-01" {
		t.Errorf("got %v, want only CVE-2024-0001 with due date 2024-06-01", out)
	}
}
