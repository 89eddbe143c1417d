package services

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CustomTransport fügt jeder Anfrage einen User-Agent-Header hinzu.
type CustomTransport struct {
	Transport http.RoundTripper
}

func (t *CustomTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	return t.Transport.RoundTrip(req)
}

// metadataClient wird für alle Metadaten-Abrufe verwendet.
var metadataClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &CustomTransport{
		Transport: http.DefaultTransport,
	},
}

var (
	titleTagRegex      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	ogTitleRegex       = regexp.MustCompile(`(?i)<meta[^>]+property=["']og:title["'][^>]+content=["']([^"']+)["']`)
	ogSiteNameRegex    = regexp.MustCompile(`(?i)<meta[^>]+property=["']og:site_name["'][^>]+content=["']([^"']+)["']`)
	metaAuthorRegex    = regexp.MustCompile(`(?i)<meta[^>]+name=["']author["'][^>]+content=["']([^"']+)["']`)
	publishedTimeRegex = regexp.MustCompile(`(?i)<meta[^>]+property=["']article:published_time["'][^>]+content=["']([^"']+)["']`)
)

// MetadataExtractor holt best-effort bibliographische Metadaten von einer URL.
type MetadataExtractor struct {
	Logger *zap.Logger
}

// NewMetadataExtractor erstellt einen neuen Metadata-Extraktor.
func NewMetadataExtractor(logger *zap.Logger) *MetadataExtractor {
	return &MetadataExtractor{Logger: logger}
}

// ExtractCitationFromURL lädt die Seite und scrapt Titel, Open-Graph-Tags,
// Autor und Publikationsdatum. Jeder Fehler wird geschluckt: der Aufrufer
// bekommt dann ein minimales Fallback-Objekt, weil dieser Pfad eine
// Best-Effort-Anreicherung speist und keinen korrektheitskritischen Pfad.
func (e *MetadataExtractor) ExtractCitationFromURL(ctx context.Context, target string) CitationData {
	data := CitationData{
		URL:        target,
		AccessDate: time.Now().UTC(),
	}
	data.Medium, data.Platform = InferMediumFromURL(target)

	log := e.Logger.With(zap.String("url", target))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		log.Debug("Metadaten-Request konnte nicht gebaut werden", zap.Error(err))
		return data
	}

	resp, err := metadataClient.Do(req)
	if err != nil {
		log.Debug("Metadaten-Abruf fehlgeschlagen", zap.Error(err))
		return data
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Debug("Metadaten-Abruf mit nicht-200-Status", zap.Int("status", resp.StatusCode))
		return data
	}

	// 2 MB reichen für den <head>-Bereich jeder realen Seite
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		log.Debug("Metadaten-Body konnte nicht gelesen werden", zap.Error(err))
		return data
	}
	html := string(body)

	// og:title hat Vorrang vor <title>
	if m := ogTitleRegex.FindStringSubmatch(html); m != nil {
		data.Title = CleanText(m[1])
	} else if m := titleTagRegex.FindStringSubmatch(html); m != nil {
		data.Title = CleanText(m[1])
	}

	if m := ogSiteNameRegex.FindStringSubmatch(html); m != nil {
		data.Publication = CleanText(m[1])
	}

	if m := metaAuthorRegex.FindStringSubmatch(html); m != nil {
		data.Author = CleanText(m[1])
	}

	if m := publishedTimeRegex.FindStringSubmatch(html); m != nil {
		if t, err := time.Parse(time.RFC3339, m[1]); err == nil {
			data.PublicationDate = &t
			data.Year = t.Year()
		}
	}

	log.Debug("Metadaten extrahiert",
		zap.String("title", data.Title),
		zap.String("publication", data.Publication),
		zap.String("medium", data.Medium))

	return data
}

// InferMediumFromURL leitet Medium und Plattform aus bekannten Hosts ab.
func InferMediumFromURL(target string) (medium, platform string) {
	lower := strings.ToLower(target)

	switch {
	case strings.Contains(lower, "twitter.com"), strings.Contains(lower, "x.com"):
		return MediumSocial, "Twitter"
	case strings.Contains(lower, "facebook.com"):
		return MediumSocial, "Facebook"
	case strings.Contains(lower, "instagram.com"):
		return MediumSocial, "Instagram"
	case strings.Contains(lower, "youtube.com"), strings.Contains(lower, "youtu.be"):
		return MediumVideo, "YouTube"
	case strings.Contains(lower, ".gov"), strings.Contains(lower, "gov.uk"):
		return MediumGovernment, ""
	default:
		return MediumWeb, ""
	}
}
