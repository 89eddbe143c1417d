package services

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"words-record/models"
)

type stubCompleter struct {
	reply   string
	err     error
	enabled bool
	calls   int
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	return s.reply, s.err
}

func (s *stubCompleter) Enabled() bool {
	return s.enabled
}

const wellFormedResponse = `Here is the classification you asked for:

---CLASSIFICATION---
Primary Topic: Election Interference
Label: Election Interference 2024
Keywords: election, interference, voting
Secondary Topics: Social Media, Disinformation
Relevance Scores: Election Interference:9.7, Social Media:6, Disinformation:11
Topic Type: election
Scale: national
Status: escalating
Related Topics: media-regulation
Confidence: 0.92
Reasoning: The statement concerns alleged interference in a national election.
---END CLASSIFICATION---
`

func TestParseClassificationWellFormed(t *testing.T) {
	c, err := ParseClassification(wellFormedResponse)
	if err != nil {
		t.Fatalf("ParseClassification returned error: %v", err)
	}

	if c.PrimaryTopic != "Election Interference" {
		t.Errorf("PrimaryTopic = %q", c.PrimaryTopic)
	}
	if c.Label != "Election Interference 2024" {
		t.Errorf("Label = %q", c.Label)
	}
	if len(c.Keywords) != 3 || c.Keywords[0] != "election" || c.Keywords[2] != "voting" {
		t.Errorf("Keywords = %v", c.Keywords)
	}
	if len(c.SecondaryTopics) != 2 || c.SecondaryTopics[0] != "Social Media" || c.SecondaryTopics[1] != "Disinformation" {
		t.Errorf("SecondaryTopics = %v", c.SecondaryTopics)
	}
	// 9.7 wird gefloort, 11 auf 10 begrenzt
	if c.RelevanceScores["Election Interference"] != 9 {
		t.Errorf("primary score = %d, want 9", c.RelevanceScores["Election Interference"])
	}
	if c.RelevanceScores["Social Media"] != 6 {
		t.Errorf("social media score = %d, want 6", c.RelevanceScores["Social Media"])
	}
	if c.RelevanceScores["Disinformation"] != 10 {
		t.Errorf("disinformation score = %d, want 10 (clamped)", c.RelevanceScores["Disinformation"])
	}
	if c.TopicType != "ELECTION" || c.Scale != "NATIONAL" || c.Status != "ESCALATING" {
		t.Errorf("taxonomy fields = %q/%q/%q", c.TopicType, c.Scale, c.Status)
	}
	if len(c.RelatedTopics) != 1 || c.RelatedTopics[0] != "media-regulation" {
		t.Errorf("RelatedTopics = %v", c.RelatedTopics)
	}
	if c.Confidence != 0.92 {
		t.Errorf("Confidence = %v", c.Confidence)
	}
}

func TestParseClassificationClampsConfidence(t *testing.T) {
	c, err := ParseClassification("---CLASSIFICATION---\nPrimary Topic: foo\nConfidence: 1.8\n---END CLASSIFICATION---")
	if err != nil {
		t.Fatalf("ParseClassification returned error: %v", err)
	}
	if c.Confidence != 1 {
		t.Fatalf("Confidence = %v, want clamp to 1", c.Confidence)
	}
}

func TestParseClassificationMissingDelimiter(t *testing.T) {
	_, err := ParseClassification("Primary Topic: foo\nConfidence: 0.9")
	if !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestParseClassificationMissingPrimaryTopic(t *testing.T) {
	_, err := ParseClassification("---CLASSIFICATION---\nConfidence: 0.9\n---END CLASSIFICATION---")
	if !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestClassifyStatementReturnsTypedError(t *testing.T) {
	stub := &stubCompleter{reply: "no delimiters here", enabled: true}
	classifier := NewClassifier(nil, zap.NewNop(), stub, nil)

	_, err := classifier.ClassifyStatement(context.Background(), &models.Statement{ID: 7, Content: "test"})
	if !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected wrapped ErrInvalidFormat, got %v", err)
	}
}

func TestClassifyOrFallbackDegrades(t *testing.T) {
	stub := &stubCompleter{err: errors.New("boom"), enabled: true}
	classifier := NewClassifier(nil, zap.NewNop(), stub, nil)

	c, fellBack := classifier.ClassifyOrFallback(context.Background(), &models.Statement{ID: 1, Content: "test"})
	if !fellBack {
		t.Fatal("expected fallback")
	}
	if c.PrimaryTopic != "general-statement" {
		t.Errorf("fallback PrimaryTopic = %q", c.PrimaryTopic)
	}
	if c.Confidence != 0.3 {
		t.Errorf("fallback Confidence = %v, want 0.3", c.Confidence)
	}
}

func TestClassifyOrFallbackPassesThrough(t *testing.T) {
	stub := &stubCompleter{reply: wellFormedResponse, enabled: true}
	classifier := NewClassifier(nil, zap.NewNop(), stub, nil)

	c, fellBack := classifier.ClassifyOrFallback(context.Background(), &models.Statement{ID: 1, Content: "test"})
	if fellBack {
		t.Fatal("did not expect fallback")
	}
	if c.PrimaryTopic != "Election Interference" {
		t.Errorf("PrimaryTopic = %q", c.PrimaryTopic)
	}
}

func TestParseRelationshipBlocks(t *testing.T) {
	response := `
---RELATIONSHIPS---
Related Topic: Media Regulation
Relation Type: RELATED_TO
Strength: 8
Description: Both concern platform oversight.
---END RELATIONSHIP---

Some chatter in between.

---RELATIONSHIPS---
Related Topic: platform-liability
Relation Type: part of series
---END RELATIONSHIP---
`
	rels := ParseRelationshipBlocks("election-interference", response)
	if len(rels) != 2 {
		t.Fatalf("expected 2 relationships, got %d", len(rels))
	}

	first := rels[0]
	if first.FromTopicSlug != "election-interference" || first.ToTopicSlug != "media-regulation" {
		t.Errorf("first edge = %s -> %s", first.FromTopicSlug, first.ToTopicSlug)
	}
	if first.RelationType != "RELATED_TO" || first.Strength != 8 {
		t.Errorf("first edge type/strength = %s/%d", first.RelationType, first.Strength)
	}

	second := rels[1]
	if second.RelationType != "PART_OF_SERIES" {
		t.Errorf("second edge type = %s", second.RelationType)
	}
	if second.Strength != 5 {
		t.Errorf("second edge strength = %d, want default 5", second.Strength)
	}
}

func TestParseRelationshipBlocksEmptyResponse(t *testing.T) {
	rels := ParseRelationshipBlocks("foo", "no blocks at all")
	if len(rels) != 0 {
		t.Fatalf("expected no relationships, got %d", len(rels))
	}
}
