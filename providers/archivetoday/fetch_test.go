package archivetoday

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"words-record/config"
	"words-record/providers"

	"go.uber.org/zap"
)

func testFetcher(serverURL string) *Fetcher {
	return NewFetcher(&config.Config{ArchiveTodayBaseURL: serverURL}, zap.NewNop())
}

func TestSaveReadsLocationHeader(t *testing.T) {
	var gotForm string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/submit/" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotForm = r.FormValue("url")
		w.Header().Set("Location", "https://archive.today/abc123")
		w.WriteHeader(http.StatusFound)
	}))
	defer server.Close()

	result := testFetcher(server.URL).Save(context.Background(), "https://example.com/article")

	if result.Status != providers.StatusSuccess {
		t.Fatalf("status = %s (%s)", result.Status, result.Error)
	}
	if result.ArchiveURL != "https://archive.today/abc123" {
		t.Errorf("archive_url = %q", result.ArchiveURL)
	}
	if gotForm != "https://example.com/article" {
		t.Errorf("submitted url = %q", gotForm)
	}
}

func TestSaveFailsWithoutLocationHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
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
