package internal

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"yaml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON, &bytes.Buffer{}).(*JSONFormatter); !ok {
		t.Error("expected JSONFormatter for json")
	}
	if _, ok := NewFormatter(FormatText, &bytes.Buffer{}).(*TextFormatter); !ok {
		t.Error("expected TextFormatter for text")
	}
	if _, ok := NewFormatter("unknown", &bytes.Buffer{}).(*TextFormatter); !ok {
		t.Error("expected TextFormatter for unknown format")
	}
}

func TestTextFormatter_PrintRecords(t *testing.T) {
	buf := &bytes.Buffer{}
	f := NewTextFormatter(buf)

	err := f.PrintRecords([]map[string]any{
		{"symbol": "TP53", "score": 0.9},
		{"symbol": "EGFR", "tissues": []any{"lung"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if fields := strings.Fields(lines[0]); strings.Join(fields, " ") != "SCORE SYMBOL TISSUES" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[2], `["lung"]`) {
		t.Errorf("expected nested value as JSON, got %q", lines[2])
	}
}

func TestTextFormatter_PrintRecordsEmpty(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewTextFormatter(buf).PrintRecords(nil); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "(no records)\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestJSONFormatter_PrintRecords(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewJSONFormatter(buf).PrintRecords(nil); err != nil {
		t.Fatal(err)
	}
	var got []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty array, got %v", got)
	}
}

func TestJSONFormatter_PrintTable(t *testing.T) {
	buf := &bytes.Buffer{}
	err := NewJSONFormatter(buf).PrintTable([]string{"name", "state"}, [][]string{{"primary", "closed"}, {"fallback"}})
	if err != nil {
		t.Fatal(err)
	}

	var got []map[string]string
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	want := []map[string]string{
		{"name": "primary", "state": "closed"},
		{"name": "fallback", "state": ""},
	}
	if len(got) != len(want) || got[0]["state"] != "closed" || got[1]["state"] != "" {
		t.Errorf("expected %v, got %v", want, got)
	}
}
