package wayback

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"words-record/config"
	"words-record/providers"

	"go.uber.org/zap"
)

// testServer simuliert beide Wayback-Endpunkte auf einem Server. ServeMux wird
// bewusst vermieden, weil er den doppelten Slash in /save/https://... wegputzt.
func testServer(t *testing.T, availableBody string, saveCalled *bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/wayback/available"):
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, availableBody)
		case strings.HasPrefix(r.URL.Path, "/save/"):
			if saveCalled != nil {
				*saveCalled = true
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func testFetcher(serverURL string) *Fetcher {
	cfg := &config.Config{
		WaybackBaseURL:      serverURL,
		WaybackAvailableURL: serverURL + "/wayback/available",
	}
	return NewFetcher(cfg, zap.NewNop())
}

func TestSaveShortCircuitsWhenAlreadyArchived(t *testing.T) {
	available := `{"archived_snapshots":{"closest":{"available":true,"url":"http://web.archive.org/web/20240102030405/https://example.com","timestamp":"20240102030405","status":"200"}}}`
	saveCalled := false
	server := testServer(t, available, &saveCalled)
	defer server.Close()

	result := testFetcher(server.URL).Save(context.Background(), "https://example.com")

	if result.Status != providers.StatusAlreadyArchived {
		t.Fatalf("status = %s, want %s", result.Status, providers.StatusAlreadyArchived)
	}
	if saveCalled {
		t.Error("save endpoint must not be called for an already archived URL")
	}
	want := time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)
	if !result.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", result.Timestamp, want)
	}
	if result.ArchiveURL != "http://web.archive.org/web/20240102030405/https://example.com" {
		t.Errorf("archive_url = %q", result.ArchiveURL)
	}
}

func TestSaveStripsSaveSegmentFromFinalURL(t *testing.T) {
	saveCalled := false
	server := testServer(t, `{"archived_snapshots":{}}`, &saveCalled)
	defer server.Close()

	result := testFetcher(server.URL).Save(context.Background(), "https://example.com/article")

	if result.Status != providers.StatusSuccess {
		t.Fatalf("status = %s (%s)", result.Status, result.Error)
	}
	if !saveCalled {
		t.Fatal("save endpoint was not called")
	}
	if strings.Contains(result.ArchiveURL, "/save/") {
		t.Errorf("archive URL must not contain /save/: %q", result.ArchiveURL)
	}
	if !strings.HasSuffix(result.ArchiveURL, "/https://example.com/article") {
		t.Errorf("archive URL = %q", result.ArchiveURL)
	}
}

func TestSaveReturnsFailedOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/wayback/available") {
			fmt.Fprint(w, `{"archived_snapshots":{}}`)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	result := testFetcher(server.URL).Save(context.Background(), "https://example.com")
	if result.Status != providers.StatusFailed {
		t.Fatalf("status = %s, want failed", result.Status)
	}
	if result.Error == "" {
		t.Error("failed result must carry an error message")
	}
}

func TestCheckReturnsNilOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if snap := testFetcher(server.URL).Check(context.Background(), "https://example.com"); snap != nil {
		t.Fatalf("expected nil snapshot, got %+v", snap)
	}
}

func TestParseTimestamp(t *testing.T) {
	got := parseTimestamp("20230305103000")
	want := time.Date(2023, time.March, 5, 10, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("parseTimestamp = %v, want %v", got, want)
	}

	// Unbrauchbarer Input fällt auf die aktuelle Zeit zurück
	if fallback := parseTimestamp("garbage"); time.Since(fallback) > time.Minute {
		t.Errorf("fallback timestamp too old: %v", fallback)
	}
}
