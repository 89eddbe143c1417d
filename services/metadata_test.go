package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

const samplePage = `<!DOCTYPE html>
<html><head>
<title>Fallback Title | Site</title>
<meta property="og:title" content="Minister denies involvement" />
<meta property="og:site_name" content="The Guardian" />
<meta name="author" content="Smith, J." />
<meta property="article:published_time" content="2023-03-05T10:30:00Z" />
</head><body>irrelevant</body></html>`

func TestExtractCitationFromURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	extractor := NewMetadataExtractor(zap.NewNop())
	data := extractor.ExtractCitationFromURL(context.Background(), server.URL)

	if data.Title != "Minister denies involvement" {
		t.Errorf("Title = %q (og:title must win over <title>)", data.Title)
	}
	if data.Publication != "The Guardian" {
		t.Errorf("Publication = %q", data.Publication)
	}
	if data.Author != "Smith, J." {
		t.Errorf("Author = %q", data.Author)
	}
	if data.Year != 2023 {
		t.Errorf("Year = %d", data.Year)
	}
	if data.PublicationDate == nil || data.PublicationDate.Day() != 5 {
		t.Errorf("PublicationDate = %v", data.PublicationDate)
	}
	if data.AccessDate.IsZero() {
		t.Error("AccessDate must always be set")
	}
}

func TestExtractCitationFromURLSwallowsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	extractor := NewMetadataExtractor(zap.NewNop())
	data := extractor.ExtractCitationFromURL(context.Background(), server.URL)

	if data.URL != server.URL {
		t.Errorf("URL = %q", data.URL)
	}
	if data.Title != "" || data.Author != "" {
		t.Errorf("expected empty metadata on failure, got title=%q author=%q", data.Title, data.Author)
	}
	if data.AccessDate.IsZero() {
		t.Error("AccessDate must be set even on failure")
	}
}

func TestInferMediumFromURL(t *testing.T) {
	cases := []struct {
		url, medium, platform string
	}{
		{"https://twitter.com/foo/status/1", MediumSocial, "Twitter"},
		{"https://x.com/foo/status/1", MediumSocial, "Twitter"},
		{"https://www.facebook.com/post/1", MediumSocial, "Facebook"},
		{"https://www.youtube.com/watch?v=abc", MediumVideo, "YouTube"},
		{"https://youtu.be/abc", MediumVideo, "YouTube"},
		{"https://www.gov.uk/announcement", MediumGovernment, ""},
		{"https://example.com/article", MediumWeb, ""},
	}
	for _, tc := range cases {
		medium, platform := InferMediumFromURL(tc.url)
		if medium != tc.medium || platform != tc.platform {
			t.Errorf("InferMediumFromURL(%q) = %q/%q, want %q/%q", tc.url, medium, platform, tc.medium, tc.platform)
		}
	}
}
