// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sink

import (
	"bytes"
	"encoding/json"
	"html/template"
	"path/filepath"

	"github.com/scanforge/scanforge/internal/model"
)

// dashboardData is what dashboard.html's inlined script renders client-side;
// it is the same shape as Envelope but kept separate so the HTML template
// is free to only surface a subset.
type dashboardData struct {
	ScanID    string
	Profile   string
	Outcome   model.ScanOutcome
	Summary   model.Summary
	FindingsJSON template.JS
}

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>scanforge — {{.ScanID}}</title>
<style>
body { font-family: -apple-system, Segoe UI, sans-serif; margin: 2rem; background: #0d1117; color: #c9d1d9; }
h1 { font-size: 1.3rem; }
table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
th, td { border: 1px solid #30363d; padding: 0.4rem 0.6rem; text-align: left; font-size: 0.85rem; }
th { background: #161b22; }
.sev-CRITICAL { color: #f85149; }
.sev-HIGH { color: #ff7b72; }
.sev-MEDIUM { color: #d29922; }
.sev-LOW { color: #58a6ff; }
.sev-INFO { color: #8b949e; }
#filter { margin-top: 1rem; padding: 0.3rem; background: #161b22; color: #c9d1d9; border: 1px solid #30363d; }
</style>
</head>
<body>
<h1>scanforge scan {{.ScanID}}</h1>
<p>Profile: {{.Profile}} — Outcome: {{.Outcome}}</p>
<p>Critical {{.Summary.Critical}} · High {{.Summary.High}} · Medium {{.Summary.Medium}} · Low {{.Summary.Low}} · Info {{.Summary.Info}}</p>
<input id="filter" placeholder="filter by path or rule id" oninput="render()">
<table id="tbl"><thead><tr><th>Severity</th><th>Priority</th><th>Tool</th><th>Path</th><th>Rule</th><th>Message</th></tr></thead><tbody></tbody></table>
<script>
const findings = {{.FindingsJSON}};
function render() {
  const q = document.getElementById('filter').value.toLowerCase();
  const tbody = document.querySelector('#tbl tbody');
  tbody.innerHTML = '';
  for (const f of findings) {
    const hay = (f.location.path + ' ' + f.rule_id).toLowerCase();
    if (q && hay.indexOf(q) === -1) continue;
    const tr = document.createElement('tr');
    tr.innerHTML = '<td class="sev-' + f.severity + '">' + f.severity + '</td>' +
      '<td>' + f.priority.score + '</td>' +
      '<td>' + f.tool.name + '</td>' +
      '<td>' + f.location.path + ':' + (f.location.start_line || '') + '</td>' +
      '<td>' + f.rule_id + '</td>' +
      '<td>' + (f.message || '').replace(/</g, '&lt;') + '</td>';
    tbody.appendChild(tr);
  }
}
render();
</script>
</body>
</html>
`))

// RenderDashboard renders the dashboard.html document for one scan: the
// finding set is embedded inline as JSON so the output works equally as a
// local file:// artifact (WriteDashboard) or an HTTP response
// (Server.handleDashboard).
func RenderDashboard(scan model.Scan, findings []model.Finding) ([]byte, error) {
	Sort(findings)
	payload, err := json.Marshal(findings)
	if err != nil {
		return nil, model.NewError(model.ErrStorageError, "", err)
	}

	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, dashboardData{
		ScanID:       scan.ScanID,
		Profile:      scan.ProfileName,
		Outcome:      scan.Outcome,
		Summary:      scan.Summary,
		FindingsJSON: template.JS(payload),
	}); err != nil {
		return nil, model.NewError(model.ErrStorageError, "", err)
	}
	return buf.Bytes(), nil
}

// WriteDashboard renders the self-contained dashboard.html artifact to dir,
// for local file:// viewing with no server.
func WriteDashboard(dir string, scan model.Scan, findings []model.Finding) error {
	html, err := RenderDashboard(scan, findings)
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, "dashboard.html"), html)
}
