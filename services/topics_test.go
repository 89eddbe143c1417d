package services

import (
	"testing"

	"words-record/models"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Election Interference", "election-interference"},
		{"  NHS Funding!  ", "nhs-funding"},
		{"COVID-19 / Lockdowns", "covid-19-lockdowns"},
		{"already-a-slug", "already-a-slug"},
		{"---", ""},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSlugifyIdempotent(t *testing.T) {
	inputs := []string{"Election Interference", "NHS Funding!", "Ärger & Co.", "a  b   c"}
	for _, in := range inputs {
		once := Slugify(in)
		if twice := Slugify(once); twice != once {
			t.Errorf("Slugify not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestLinkAttributes(t *testing.T) {
	c := &TopicClassification{
		RelevanceScores: map[string]int{"Scored Topic": 7},
		Confidence:      0.92,
	}

	cases := []struct {
		name         string
		ref          TopicRef
		relevance    int
		relationType string
	}{
		{"primary default", TopicRef{Name: "Primary Topic", Primary: true}, 10, models.IncidentRelationPrimary},
		{"secondary default", TopicRef{Name: "Other Topic"}, 5, models.IncidentRelationRelated},
		{"score overrides default", TopicRef{Name: "Scored Topic"}, 7, models.IncidentRelationRelated},
	}
	for _, tc := range cases {
		relevance, relationType, verified := linkAttributes(tc.ref, c)
		if relevance != tc.relevance || relationType != tc.relationType {
			t.Errorf("%s: got %d/%s, want %d/%s", tc.name, relevance, relationType, tc.relevance, tc.relationType)
		}
		if !verified {
			t.Errorf("%s: verified = false, want true at confidence 0.92", tc.name)
		}
	}

	c.Confidence = 0.8 // Grenze ist exklusiv
	if _, _, verified := linkAttributes(TopicRef{Name: "x"}, c); verified {
		t.Error("verified = true at confidence 0.8, want false")
	}
}
