package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"srp-quiz-service/internal/infra/memory"
)

const validIngest = `{
  "session_id": "2b1f0d6e-4a44-4e0a-9d7c-6c1d2a8c1f00",
  "student_number": "12345678",
  "week": 6,
  "topics_run": ["organic", "units"],
  "started_at": "2025-03-01T09:00:00.000Z",
  "completed_at": "2025-03-01T09:20:00.000Z",
  "device": {"w": 1280, "h": 800, "ua": "test"},
  "visibility_blurs": 0,
  "reattempt": false,
  "trials": [
    {"trial_index": 1, "id": "o1", "topic": "organic", "week": 6, "phase": "first_pass", "attempt": 1,
     "rt_ms": 2100, "answer_raw": "Ethanol", "answer_norm": "ethanol", "correct": true, "ts": "2025-03-01T09:01:00.000Z"}
  ]
}`

func TestIngestStoresOnceAndReportsDuplicate(t *testing.T) {
	sink := memory.NewResultStore()
	server := newTestServer(t, memory.NewStaticSource(sampleRows()), sink)
	defer server.Close()

	status, body := postJSON(t, server.URL+"/api/ingest", validIngest)
	if status != http.StatusOK || body["accepted"] != true || body["key"] != "results/6/12345678.json" {
		t.Fatalf("unexpected first ingest: %d %v", status, body)
	}
	stored, ok := sink.Get("results/6/12345678.json")
	if !ok || stored.StoredAt == "" {
		t.Fatalf("expected stored document with stored_at, got %+v", stored)
	}

	status, body = postJSON(t, server.URL+"/api/ingest", validIngest)
	if status != http.StatusOK || body["accepted"] != false || body["reason"] != "already_exists" {
		t.Fatalf("unexpected duplicate ingest: %d %v", status, body)
	}
}

func TestIngestRejectsInvalidDocuments(t *testing.T) {
	server := newTestServer(t, memory.NewStaticSource(sampleRows()), memory.NewResultStore())
	defer server.Close()

	cases := map[string]string{
		"bad student":      strings.Replace(validIngest, `"12345678"`, `"1234"`, 1),
		"no trials":        `{"student_number": "12345678", "week": 6, "trials": []}`,
		"bad phase":        strings.Replace(validIngest, `"first_pass"`, `"warmup"`, 1),
		"unknown week":     strings.Replace(validIngest, `"week": 6,`, `"week": 11,`, 1),
		"not json":         `{"student_number": `,
		"bad completed_at": strings.Replace(validIngest, `"2025-03-01T09:20:00.000Z"`, `"../../7/87654321"`, 1),
	}
	for name, payload := range cases {
		status, _ := postJSON(t, server.URL+"/api/ingest", payload)
		if status != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, status)
		}
	}

	resp, err := http.Get(server.URL + "/api/ingest")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	server := newTestServer(t, memory.NewStaticSource(sampleRows()), memory.NewResultStore())
	defer server.Close()

	status, body := getJSON(t, server.URL+"/api/status?studentId=12345678&week=6")
	if status != http.StatusOK || body["exists"] != false {
		t.Fatalf("unexpected status before ingest: %d %v", status, body)
	}

	postJSON(t, server.URL+"/api/ingest", validIngest)
	status, body = getJSON(t, server.URL+"/api/status?studentId=12345678&week=6")
	if status != http.StatusOK || body["exists"] != true || body["completedAt"] != "2025-03-01T09:20:00.000Z" {
		t.Fatalf("unexpected status after ingest: %d %v", status, body)
	}

	status, _ = getJSON(t, server.URL+"/api/status?studentId=abc&week=6")
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid student, got %d", status)
	}
}

func postJSON(t *testing.T, url, payload string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body
}
