package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"reqtrace/internal/annotation"
	"reqtrace/internal/requirements"
	"reqtrace/internal/trace"
)

func sampleMatrix() *trace.Matrix {
	return &trace.Matrix{
		GeneratedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Requirements: []trace.RequirementCoverage{
			{
				Requirement: requirements.Requirement{ID: "FR:sample-feature/auth.login", Title: "User login", Status: requirements.StatusApproved},
				Tags: []annotation.Tag{
					{ReqID: "FR:sample-feature/auth.login", File: "sources/auth.py", Line: 7, Symbol: "login"},
				},
				Covered: true,
			},
			{
				Requirement: requirements.Requirement{ID: "FR:sample-feature/auth.session.expiry", Title: "Session expiry", Status: requirements.StatusDraft},
			},
		},
		Orphans:  []trace.OrphanTag{{File: "tests/test_auth.py", Line: 1, ReqID: "FR:ghost/auth.gone"}},
		Untraced: []string{"FR:sample-feature/auth.session.expiry"},
		Coverage: 0.5,
		TagCount: 2,
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, sampleMatrix()); err != nil {
		t.Fatalf("JSON: %v", err)
	}

	var decoded trace.Matrix
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Coverage != 0.5 {
		t.Errorf("expected coverage 0.5, got %f", decoded.Coverage)
	}
	if len(decoded.Requirements) != 2 {
		t.Errorf("expected 2 requirements, got %d", len(decoded.Requirements))
	}
	if decoded.Orphans[0].ReqID != "FR:ghost/auth.gone" {
		t.Errorf("unexpected orphan: %+v", decoded.Orphans[0])
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleMatrix())

	for _, want := range []string{
		"# Traceability Matrix",
		"| FR:sample-feature/auth.login | User login | approved | yes | sources/auth.py:7 |",
		"| FR:sample-feature/auth.session.expiry | Session expiry | draft | no |  |",
		"## Untraced Requirements",
		"- FR:sample-feature/auth.session.expiry",
		"## Orphan Tags",
		"`FR:ghost/auth.gone` at tests/test_auth.py:1",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n%s", want, md)
		}
	}
}

func TestTerminal(t *testing.T) {
	out := Terminal(sampleMatrix())

	for _, want := range []string{
		"Traceability Matrix",
		"50.0%",
		"FR:sample-feature/auth.login",
		"sources/auth.py:7",
		"1 orphan tag(s):",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("terminal output missing %q\n%s", want, out)
		}
	}
}

func TestWrite_Formats(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatMarkdown, FormatTerminal} {
		var buf bytes.Buffer
		if err := Write(&buf, sampleMatrix(), format, false); err != nil {
			t.Errorf("Write(%s): %v", format, err)
		}
		if buf.Len() == 0 {
			t.Errorf("Write(%s) produced no output", format)
		}
	}

	var buf bytes.Buffer
	if err := Write(&buf, sampleMatrix(), Format("xml"), false); err == nil {
		t.Error("expected error for unknown format")
	}
}
