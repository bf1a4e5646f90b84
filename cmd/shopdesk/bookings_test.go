package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTestConfig writes a minimal config file pointing at the given
// backend URL and returns its path.
func writeTestConfig(t *testing.T, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shopdesk.yaml")
	yaml := fmt.Sprintf("api:\n  base_url: %s\n", baseURL)
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// runCommand executes the root command with the given args and returns
// its combined output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestBookingsList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/bookings" {
			t.Errorf("path = %q, want /api/bookings", r.URL.Path)
		}
		if got := r.URL.Query().Get("status"); got != "pending" {
			t.Errorf("status query = %q, want %q", got, "pending")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"bookings": []map[string]any{
				{"id": "b1", "customer": "Ines", "device": "iPhone 14", "slotAt": "2026-09-03T10:00:00Z", "status": "pending"},
				{"id": "b2", "customer": "Marco", "device": "ThinkPad X1", "slotAt": "2026-09-03T11:30:00Z", "status": "pending"},
			},
			"count": 2,
		})
	}))
	defer srv.Close()

	out, err := runCommand(t, "bookings", "list", "-c", writeTestConfig(t, srv.URL), "--status", "pending")
	if err != nil {
		t.Fatalf("bookings list failed: %v", err)
	}
	if !strings.Contains(out, "b1") || !strings.Contains(out, "Ines") {
		t.Errorf("expected table to contain booking b1, got: %s", out)
	}
	if !strings.Contains(out, "2 booking(s)") {
		t.Errorf("expected count line, got: %s", out)
	}
}

func TestBookingsList_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"bookings": []any{}, "count": 0})
	}))
	defer srv.Close()

	out, err := runCommand(t, "bookings", "list", "-c", writeTestConfig(t, srv.URL))
	if err != nil {
		t.Fatalf("bookings list failed: %v", err)
	}
	if !strings.Contains(out, "No bookings found.") {
		t.Errorf("expected empty message, got: %s", out)
	}
}

func TestBookingsUpdate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s, want PATCH", r.Method)
		}
		if r.URL.Path != "/api/bookings/b7" {
			t.Errorf("path = %q, want /api/bookings/b7", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["status"] != "confirmed" {
			t.Errorf("status body = %q, want confirmed", body["status"])
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "b7", "customer": "Ines", "device": "iPhone 14", "slotAt": "2026-09-03T10:00:00Z", "status": "confirmed"})
	}))
	defer srv.Close()

	out, err := runCommand(t, "bookings", "update", "b7", "-c", writeTestConfig(t, srv.URL), "--status", "confirmed")
	if err != nil {
		t.Fatalf("bookings update failed: %v", err)
	}
	if !strings.Contains(out, "Updated booking b7 (status: confirmed)") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestBookingsUpdate_RequiresField(t *testing.T) {
	_, err := runCommand(t, "bookings", "update", "b7", "-c", writeTestConfig(t, "http://localhost"))
	if err == nil {
		t.Fatal("expected error when no fields are passed")
	}
	if !strings.Contains(err.Error(), "nothing to update") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "nothing to update")
	}
}

func TestBookingsList_SendsToken(t *testing.T) {
	t.Setenv("SHOPDESK_TOKEN", "tok-cli-1")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-cli-1" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer tok-cli-1")
		}
		json.NewEncoder(w).Encode(map[string]any{"bookings": []any{}, "count": 0})
	}))
	defer srv.Close()

	if _, err := runCommand(t, "bookings", "list", "-c", writeTestConfig(t, srv.URL)); err != nil {
		t.Fatalf("bookings list failed: %v", err)
	}
}
