package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"words-record/config"
	"words-record/models"
	"words-record/providers/anthropic"
)

// ErrInvalidFormat signalisiert, dass die Modell-Antwort nicht dem
// erwarteten Delimiter-Block-Format entspricht.
var ErrInvalidFormat = errors.New("invalid classification format")

// Completer ist die LLM-Schnittstelle des Klassifizierers; in Tests wird sie
// durch einen Stub ersetzt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Enabled() bool
}

// TopicClassification ist das geparste Klassifikations-Ergebnis. Ephemer:
// wird konsumiert, um Topic- und TopicIncident-Zeilen zu upserten, und nie
// selbst persistiert.
type TopicClassification struct {
	PrimaryTopic    string         `json:"primary_topic"`
	Label           string         `json:"label,omitempty"` // Anzeige-Label des Primary Topics
	Keywords        []string       `json:"keywords,omitempty"`
	SecondaryTopics []string       `json:"secondary_topics,omitempty"`
	RelevanceScores map[string]int `json:"relevance_scores,omitempty"` // 0-10, gefloort
	TopicType       string         `json:"topic_type,omitempty"`
	Scale           string         `json:"scale,omitempty"`
	Status          string         `json:"status,omitempty"`
	RelatedTopics   []string       `json:"related_topics,omitempty"` // Slugs
	Confidence      float64        `json:"confidence"`               // [0,1]
	Reasoning       string         `json:"reasoning,omitempty"`
}

// TopicRelationship ist eine vom Modell vorgeschlagene gerichtete Kante.
type TopicRelationship struct {
	FromTopicSlug string `json:"from_topic_slug"`
	ToTopicSlug   string `json:"to_topic_slug"`
	RelationType  string `json:"relation_type"`
	Strength      int    `json:"strength"` // 1-10, Default 5
	Description   string `json:"description,omitempty"`
}

// Classifier kapselt die LLM-gestützte Themen-Klassifikation.
type Classifier struct {
	Config *config.Config
	Logger *zap.Logger
	LLM    Completer
	Topics *TopicService
}

// NewClassifier erstellt einen neuen Classifier.
func NewClassifier(cfg *config.Config, logger *zap.Logger, llm Completer, topics *TopicService) *Classifier {
	return &Classifier{Config: cfg, Logger: logger, LLM: llm, Topics: topics}
}

// FallbackClassification ist der fest kodierte degradierte Wert, der bei
// jedem Fehler im Klassifikationspfad verwendet wird.
func FallbackClassification() *TopicClassification {
	return &TopicClassification{
		PrimaryTopic:    "general-statement",
		SecondaryTopics: []string{},
		RelevanceScores: map[string]int{},
		TopicType:       "OTHER",
		Scale:           "NATIONAL",
		Status:          "ACTIVE",
		Confidence:      0.3,
		Reasoning:       "Automatic fallback: classification unavailable",
	}
}

// buildClassificationPrompt baut den strukturierten Prompt. Der
// Delimiter-Block ist das Wire-Protokoll zwischen System und Modell.
func buildClassificationPrompt(stmt *models.Statement) string {
	var b strings.Builder
	b.WriteString("You are a news taxonomy assistant. Classify the following statement into topics.\n\n")
	fmt.Fprintf(&b, "Speaker: %s\n", NormalizeStatementText(stmt.SpeakerName))
	fmt.Fprintf(&b, "Statement: %s\n", NormalizeStatementText(stmt.Content))
	if stmt.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n", NormalizeStatementText(stmt.Context))
	}
	b.WriteString("\nRespond with EXACTLY this block and nothing else:\n\n")
	b.WriteString("---CLASSIFICATION---\n")
	b.WriteString("Primary Topic: <short topic name>\n")
	b.WriteString("Label: <display label for the primary topic>\n")
	b.WriteString("Keywords: <comma-separated search keywords, or none>\n")
	b.WriteString("Secondary Topics: <comma-separated topic names, or none>\n")
	b.WriteString("Relevance Scores: <topic:score pairs 0-10, comma-separated>\n")
	fmt.Fprintf(&b, "Topic Type: <one of %s>\n", strings.Join(models.TopicTypes, ", "))
	fmt.Fprintf(&b, "Scale: <one of %s>\n", strings.Join(models.TopicScales, ", "))
	fmt.Fprintf(&b, "Status: <one of %s>\n", strings.Join(models.TopicStatuses, ", "))
	b.WriteString("Related Topics: <comma-separated topic slugs, or none>\n")
	b.WriteString("Confidence: <0.0-1.0>\n")
	b.WriteString("Reasoning: <one or two sentences>\n")
	b.WriteString("---END CLASSIFICATION---\n")
	return b.String()
}

var classificationBlockRegex = regexp.MustCompile(`(?s)---CLASSIFICATION---(.*?)---END CLASSIFICATION---`)

// ParseClassification parst den Delimiter-Block zeilenweise. Fehlt der Block
// oder das Primary-Topic-Feld, kommt ErrInvalidFormat zurück.
func ParseClassification(text string) (*TopicClassification, error) {
	m := classificationBlockRegex.FindStringSubmatch(text)
	if m == nil {
		return nil, ErrInvalidFormat
	}

	c := &TopicClassification{
		SecondaryTopics: []string{},
		RelevanceScores: map[string]int{},
	}

	for _, line := range strings.Split(m[1], "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.ToLower(strings.TrimSpace(label)) {
		case "primary topic":
			c.PrimaryTopic = value
		case "label":
			c.Label = value
		case "keywords":
			c.Keywords = splitList(value)
		case "secondary topics":
			c.SecondaryTopics = splitList(value)
		case "relevance scores":
			c.RelevanceScores = parseRelevanceScores(value)
		case "topic type":
			c.TopicType = strings.ToUpper(value)
		case "scale":
			c.Scale = strings.ToUpper(value)
		case "status":
			c.Status = strings.ToUpper(value)
		case "related topics":
			c.RelatedTopics = splitList(value)
		case "confidence":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				c.Confidence = clamp01(f)
			}
		case "reasoning":
			c.Reasoning = value
		}
	}

	if c.PrimaryTopic == "" {
		return nil, ErrInvalidFormat
	}
	return c, nil
}

// splitList zerlegt eine kommaseparierte Liste; "none" zählt als leer.
func splitList(value string) []string {
	if strings.EqualFold(value, "none") || value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseRelevanceScores parst "foo:8, bar:6" in eine Score-Map.
// Scores werden gefloort und auf 0-10 begrenzt.
func parseRelevanceScores(value string) map[string]int {
	scores := map[string]int{}
	for _, pair := range strings.Split(value, ",") {
		name, raw, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			continue
		}
		score := int(math.Floor(f))
		if score < 0 {
			score = 0
		}
		if score > 10 {
			score = 10
		}
		scores[strings.TrimSpace(name)] = score
	}
	return scores
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// ClassifyStatement klassifiziert eine Aussage und gibt typisierte Fehler
// zurück (Transportfehler oder ErrInvalidFormat). Aufrufer entscheiden, ob
// sie auf FallbackClassification degradieren.
func (c *Classifier) ClassifyStatement(ctx context.Context, stmt *models.Statement) (*TopicClassification, error) {
	prompt := buildClassificationPrompt(stmt)

	text, err := c.LLM.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("classify statement %d: %w", stmt.ID, err)
	}

	classification, err := ParseClassification(text)
	if err != nil {
		return nil, fmt.Errorf("classify statement %d: %w", stmt.ID, err)
	}
	return classification, nil
}

// ClassifyOrFallback erhält die historische Semantik des Batch-Pfads: jeder
// Fehler wird geloggt und durch den Fallback ersetzt, der Batch läuft weiter.
// Das zweite Ergebnis meldet, ob degradiert wurde.
func (c *Classifier) ClassifyOrFallback(ctx context.Context, stmt *models.Statement) (*TopicClassification, bool) {
	classification, err := c.ClassifyStatement(ctx, stmt)
	if err != nil {
		c.Logger.Warn("Klassifikation fehlgeschlagen, verwende Fallback",
			zap.Uint("statement_id", stmt.ID),
			zap.Error(err))
		return FallbackClassification(), true
	}
	return classification, false
}

// Achtung: die Open/Close-Tags sind asymmetrisch benannt (RELATIONSHIPS vs
// RELATIONSHIP); das Format muss exakt so gematcht werden.
var relationshipBlockRegex = regexp.MustCompile(`(?s)---RELATIONSHIPS---(.*?)---END RELATIONSHIP---`)

// buildRelationshipPrompt baut den Discovery-Prompt für ein Topic.
func buildRelationshipPrompt(topic *models.Topic, knownSlugs []string) string {
	var b strings.Builder
	b.WriteString("You are a news taxonomy assistant. Propose relationships between topics.\n\n")
	fmt.Fprintf(&b, "Topic: %s (slug: %s)\n", topic.Name, topic.Slug)
	if topic.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", topic.Description)
	}
	fmt.Fprintf(&b, "Known topic slugs: %s\n", strings.Join(knownSlugs, ", "))
	b.WriteString("\nFor each relationship, emit one block:\n\n")
	b.WriteString("---RELATIONSHIPS---\n")
	b.WriteString("Related Topic: <slug>\n")
	fmt.Fprintf(&b, "Relation Type: <one of %s>\n", strings.Join(models.TopicRelationTypes, ", "))
	b.WriteString("Strength: <1-10>\n")
	b.WriteString("Description: <optional one sentence>\n")
	b.WriteString("---END RELATIONSHIP---\n")
	return b.String()
}

// DiscoverTopicRelationships fragt das Modell nach Beziehungen eines Topics.
// Fehlt das Topic oder der API-Key, kommt eine leere Liste zurück (stille
// Degradation, kein Fehler).
func (c *Classifier) DiscoverTopicRelationships(ctx context.Context, topicSlug string) []TopicRelationship {
	log := c.Logger.With(zap.String("topic_slug", topicSlug))

	if c.LLM == nil || !c.LLM.Enabled() {
		log.Debug("Kein API-Key konfiguriert, Relationship-Discovery übersprungen.")
		return []TopicRelationship{}
	}

	topic, err := c.Topics.FindBySlug(ctx, topicSlug)
	if err != nil || topic == nil {
		log.Debug("Topic nicht gefunden, Relationship-Discovery übersprungen.")
		return []TopicRelationship{}
	}

	knownSlugs, err := c.Topics.ActiveSlugs(ctx)
	if err != nil {
		log.Warn("Bekannte Topic-Slugs konnten nicht geladen werden", zap.Error(err))
		return []TopicRelationship{}
	}

	text, err := c.LLM.Complete(ctx, buildRelationshipPrompt(topic, knownSlugs))
	if err != nil {
		if errors.Is(err, anthropic.ErrNoAPIKey) {
			return []TopicRelationship{}
		}
		log.Warn("Relationship-Discovery fehlgeschlagen", zap.Error(err))
		return []TopicRelationship{}
	}

	return ParseRelationshipBlocks(topicSlug, text)
}

// ParseRelationshipBlocks parst alle Relationship-Blöcke einer Antwort.
// Strength fällt auf 5 zurück, Description bleibt leer, wenn nicht gesetzt.
func ParseRelationshipBlocks(fromSlug, text string) []TopicRelationship {
	rels := []TopicRelationship{}

	for _, m := range relationshipBlockRegex.FindAllStringSubmatch(text, -1) {
		rel := TopicRelationship{FromTopicSlug: fromSlug, Strength: 5}

		for _, line := range strings.Split(m[1], "\n") {
			label, value, ok := strings.Cut(strings.TrimSpace(line), ":")
			if !ok {
				continue
			}
			value = strings.TrimSpace(value)

			switch strings.ToLower(strings.TrimSpace(label)) {
			case "related topic":
				rel.ToTopicSlug = Slugify(value)
			case "relation type":
				rel.RelationType = strings.ToUpper(strings.ReplaceAll(value, " ", "_"))
			case "strength":
				if n, err := strconv.Atoi(value); err == nil {
					rel.Strength = n
				}
			case "description":
				rel.Description = value
			}
		}

		if rel.ToTopicSlug != "" && rel.RelationType != "" {
			rels = append(rels, rel)
		}
	}
	return rels
}
