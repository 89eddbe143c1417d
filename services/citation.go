package services

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Medium-Werte einer Quelle.
const (
	MediumWeb        = "web"
	MediumSocial     = "social"
	MediumBook       = "book"
	MediumAcademic   = "academic"
	MediumVideo      = "video"
	MediumGovernment = "government"
)

// CitationData enthält die bibliographischen Rohdaten für eine Harvard-Zitierung.
// Immutable Value-Objekt; wird pro Anfrage neu erzeugt und nie persistiert
// (nur der gerenderte String landet in der Datenbank).
type CitationData struct {
	Author          string     `json:"author,omitempty"`
	AuthorOrg       string     `json:"author_org,omitempty"`
	Year            int        `json:"year,omitempty"`
	Title           string     `json:"title,omitempty"`
	Publication     string     `json:"publication,omitempty"`
	PublicationDate *time.Time `json:"publication_date,omitempty"`
	AccessDate      time.Time  `json:"access_date"`
	URL             string     `json:"url"`

	// Medium ist web, social, book, academic, video oder government.
	// Platform gilt nur für social, Publisher nur für book, DOI nur für academic.
	Medium    string `json:"medium,omitempty"`
	Platform  string `json:"platform,omitempty"`
	Publisher string `json:"publisher,omitempty"`
	DOI       string `json:"doi,omitempty"`
}

// Feste englische Monatsnamen; keine Locale-Unterstützung.
var monthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// FormatCitationDate rendert ein Datum als "{day} {FullMonthName} {year}".
func FormatCitationDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), monthNames[t.Month()-1], t.Year())
}

// GenerateHarvardCitation rendert die Felder in fester Reihenfolge zu einer
// Harvard-Zitierung. Deterministisch und total: fehlende Autoren werden durch
// "Anon." ersetzt, fehlende Jahre durch "(n.d.)".
func GenerateHarvardCitation(data CitationData) string {
	author := data.Author
	if author == "" {
		author = data.AuthorOrg
	}
	if author == "" {
		author = "Anon."
	}

	year := "(n.d.)"
	if data.Year > 0 {
		year = fmt.Sprintf("(%d)", data.Year)
	} else if data.PublicationDate != nil {
		year = fmt.Sprintf("(%d)", data.PublicationDate.Year())
	}

	head := author + " " + year
	if data.Title != "" {
		head += fmt.Sprintf(" '%s'", data.Title)
	}

	// Optionale Mittelteile, kommasepariert
	var segments []string

	publication := data.Publication
	if data.Medium == MediumSocial && data.Platform != "" {
		publication = data.Platform // Plattform gewinnt bei Social Media
	}
	if publication != "" {
		segments = append(segments, publication)
	}

	// Datum nur für Web- und Social-Media-Quellen
	if (data.Medium == MediumWeb || data.Medium == MediumSocial) && data.PublicationDate != nil {
		segments = append(segments, FormatCitationDate(*data.PublicationDate))
	}

	if data.Medium == MediumBook && data.Publisher != "" {
		segments = append(segments, data.Publisher)
	}

	if data.Medium == MediumAcademic && data.DOI != "" {
		segments = append(segments, "DOI: "+data.DOI)
	}

	citation := head
	if len(segments) > 0 {
		citation += " " + strings.Join(segments, ", ") + "."
	}

	// Pflichtteil: Abrufort und Zugriffsdatum
	citation += fmt.Sprintf(" Available at: %s (Accessed: %s).", data.URL, FormatCitationDate(data.AccessDate))

	return citation
}

// Fünf unabhängige Format-Prüfungen; alle Fehlschläge werden gesammelt.
var citationChecks = []struct {
	pattern *regexp.Regexp
	message string
}{
	{regexp.MustCompile(`^([A-Z]|Anon\.)`), "citation must start with an author, organisation or 'Anon.'"},
	{regexp.MustCompile(`\((\d{4}|n\.d\.)\)`), "citation must contain a year in parentheses or (n.d.)"},
	{regexp.MustCompile(`'[^']+'`), "citation must contain a single-quoted title"},
	{regexp.MustCompile(`Available at: https?://`), "citation must contain 'Available at:' with an http(s) URL"},
	{regexp.MustCompile(`Accessed: \d{1,2} (January|February|March|April|May|June|July|August|September|October|November|December) \d{4}`), "citation must contain an access date in 'Accessed: D Month YYYY' format"},
}

// ValidateCitation prüft eine gerenderte Zitierung gegen alle fünf
// Format-Regeln und akkumuliert sämtliche Verstöße.
func ValidateCitation(citation string) (bool, []string) {
	errors := []string{}
	for _, check := range citationChecks {
		if !check.pattern.MatchString(citation) {
			errors = append(errors, check.message)
		}
	}
	return len(errors) == 0, errors
}

var (
	informalURLRegex   = regexp.MustCompile(`https?://[^\s)\]]+`)
	informalTitleRegex = regexp.MustCompile(`["“]([^"”]+)["”]|'([^']+)'`)
	informalPubRegex   = regexp.MustCompile(`(?:from|in|on)\s+((?:[A-Z][\w&'-]*)(?:\s+(?:[A-Z][\w&'-]*|of|the|and))*)`)
	informalYearRegex  = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
)

// ParseInformalCitation extrahiert bibliographische Daten aus frei
// formuliertem Text. Heuristisch und verlustbehaftet: erste URL, erster
// zitierter Titel, Publikationsname nach from/in/on, erstes Jahr 1900-2099.
func ParseInformalCitation(text string) CitationData {
	data := CitationData{
		AccessDate: time.Now().UTC(),
		Medium:     MediumWeb,
	}

	if m := informalURLRegex.FindString(text); m != "" {
		data.URL = m
	}

	if m := informalTitleRegex.FindStringSubmatch(text); m != nil {
		if m[1] != "" {
			data.Title = m[1]
		} else {
			data.Title = m[2]
		}
	}

	if m := informalPubRegex.FindStringSubmatch(text); m != nil {
		data.Publication = strings.TrimSpace(m[1])
	}

	if m := informalYearRegex.FindStringSubmatch(text); m != nil {
		fmt.Sscanf(m[1], "%d", &data.Year)
	}

	return data
}
