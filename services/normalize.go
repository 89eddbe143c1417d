package services

import (
	"regexp"
	"strings"
	"unicode"
)

// Schlanke Text-Normalisierung für Prompts und gescrapte Metadaten.

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)

	// Die handvoll Entities, die in <title>/<meta>-Content real vorkommen
	htmlEntities = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&apos;", "'",
		"&nbsp;", " ",
	)
)

// CleanText entfernt HTML-Entities, Steuerzeichen und überflüssigen Whitespace.
func CleanText(s string) string {
	s = htmlEntities.Replace(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// NormalizeStatementText bereitet Aussage-Text für LLM-Prompts auf:
// typografische Anführungszeichen vereinheitlichen, Whitespace kollabieren.
func NormalizeStatementText(s string) string {
	s = strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
		"–", "-", "—", "-",
	).Replace(s)
	return CleanText(s)
}
