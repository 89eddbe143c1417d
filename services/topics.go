package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"words-record/models"
)

var slugInvalidRegex = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify normalisiert einen Topic-Namen zum natürlichen Schlüssel:
// lowercase, alles außer a-z0-9 zu Bindestrichen, Ränder getrimmt.
// Idempotent: Slugify(Slugify(x)) == Slugify(x).
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugInvalidRegex.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// TopicRef referenziert ein per EnsureTopicsExist angelegtes Topic.
type TopicRef struct {
	ID      uint
	Slug    string
	Name    string
	Primary bool
}

// TopicService verwaltet Topics, deren Verknüpfungen zu Aussagen und die
// Beziehungen zwischen Topics.
type TopicService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewTopicService erstellt einen neuen TopicService.
func NewTopicService(db *gorm.DB, logger *zap.Logger) *TopicService {
	return &TopicService{DB: db, Logger: logger}
}

// FindBySlug lädt ein Topic über seinen Slug; nil ohne Fehler, wenn es
// nicht existiert.
func (s *TopicService) FindBySlug(ctx context.Context, slug string) (*models.Topic, error) {
	var topic models.Topic
	err := s.DB.WithContext(ctx).Where("slug = ?", slug).First(&topic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find topic %q: %w", slug, err)
	}
	return &topic, nil
}

// ActiveSlugs liefert die Slugs aller aktiven Topics.
func (s *TopicService) ActiveSlugs(ctx context.Context) ([]string, error) {
	var slugs []string
	err := s.DB.WithContext(ctx).
		Model(&models.Topic{}).
		Where("is_active = ?", true).
		Order("slug").
		Pluck("slug", &slugs).Error
	if err != nil {
		return nil, fmt.Errorf("list active topic slugs: %w", err)
	}
	return slugs, nil
}

// EnsureTopicsExist legt alle Topics einer Klassifikation per Slug-Upsert an
// bzw. aktualisiert sie. Das Primary-Topic bekommt beim Anlegen Priorität
// floor(confidence*10), Secondaries Priorität 5 und eine generische
// Beschreibung. Bei bestehenden Topics werden Statement-Zähler und
// Aktivitäts-Zeitstempel fortgeschrieben. Die Referenzen kommen in
// Reihenfolge Primary-zuerst zurück.
func (s *TopicService) EnsureTopicsExist(ctx context.Context, c *TopicClassification) ([]TopicRef, error) {
	now := time.Now().UTC()

	primarySlug := Slugify(c.PrimaryTopic)
	if primarySlug == "" {
		return nil, fmt.Errorf("ensure topics: empty primary topic")
	}

	primaryPriority := int(math.Floor(c.Confidence * 10))

	primary := models.Topic{
		Slug:           primarySlug,
		Name:           c.PrimaryTopic,
		Label:          c.Label,
		TopicType:      c.TopicType,
		Scale:          c.Scale,
		Status:         c.Status,
		IsActive:       true,
		Priority:       primaryPriority,
		StatementCount: 1,
		LastActivityAt: &now,
	}
	if len(c.Keywords) > 0 {
		if raw, err := json.Marshal(c.Keywords); err == nil {
			primary.Keywords = datatypes.JSON(raw)
		}
	}
	if err := s.upsertTopic(ctx, &primary, now); err != nil {
		return nil, err
	}

	refs := []TopicRef{{ID: primary.ID, Slug: primary.Slug, Name: c.PrimaryTopic, Primary: true}}
	seen := map[string]bool{primarySlug: true}

	for _, name := range c.SecondaryTopics {
		slug := Slugify(name)
		if slug == "" {
			continue
		}
		if seen[slug] {
			// Mehrere Namen können auf denselben Slug kollabieren
			s.Logger.Warn("Doppelter Topic-Slug in Klassifikation, überspringe",
				zap.String("slug", slug),
				zap.String("name", name))
			continue
		}
		seen[slug] = true

		secondary := models.Topic{
			Slug:           slug,
			Name:           name,
			Description:    fmt.Sprintf("Related to %s", c.PrimaryTopic),
			Status:         "ACTIVE",
			IsActive:       true,
			Priority:       5,
			StatementCount: 1,
			LastActivityAt: &now,
		}
		if err := s.upsertTopic(ctx, &secondary, now); err != nil {
			return nil, err
		}
		refs = append(refs, TopicRef{ID: secondary.ID, Slug: slug, Name: name})
	}

	return refs, nil
}

// upsertTopic legt ein Topic an oder schreibt bei bestehendem Slug nur die
// Aktivitätsfelder fort. Die ID wird immer über den Slug nachgeladen, weil
// der Conflict-Pfad je nach Treiber keine verlässliche ID zurückliefert.
func (s *TopicService) upsertTopic(ctx context.Context, topic *models.Topic, now time.Time) error {
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "slug"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"statement_count":  gorm.Expr("topics.statement_count + 1"),
			"last_activity_at": now,
			"updated_at":       now,
		}),
	}).Create(topic).Error
	if err != nil {
		return fmt.Errorf("upsert topic %q: %w", topic.Slug, err)
	}

	var existing models.Topic
	if err := s.DB.WithContext(ctx).Where("slug = ?", topic.Slug).First(&existing).Error; err != nil {
		return fmt.Errorf("reload topic %q: %w", topic.Slug, err)
	}
	topic.ID = existing.ID
	return nil
}

// linkAttributes leitet die Attribute einer (topic, incident)-Verknüpfung
// aus der Klassifikation ab: Relevanz aus den Scores, sonst 10 für das
// Primary- und 5 für jedes Secondary-Topic; verifiziert ab Confidence > 0.8.
func linkAttributes(ref TopicRef, c *TopicClassification) (relevance int, relationType string, verified bool) {
	relevance = 5
	relationType = models.IncidentRelationRelated
	if ref.Primary {
		relevance = 10
		relationType = models.IncidentRelationPrimary
	}
	if score, ok := c.RelevanceScores[ref.Name]; ok {
		relevance = score
	}
	return relevance, relationType, c.Confidence > 0.8
}

// LinkIncidentToTopics verknüpft eine klassifizierte Aussage mit den zuvor
// sichergestellten Topics. Pro (topic, incident) existiert genau eine Zeile;
// Wiederholungen aktualisieren die bestehende Verknüpfung, ohne Zähler
// erneut zu inkrementieren. Relevanz kommt aus den Scores der Klassifikation,
// sonst 10 für das Primary- und 5 für jedes Secondary-Topic.
func (s *TopicService) LinkIncidentToTopics(ctx context.Context, incidentID uint, c *TopicClassification, refs []TopicRef) error {
	now := time.Now().UTC()

	for _, ref := range refs {
		relevance, relationType, verified := linkAttributes(ref, c)

		var existing models.TopicIncident
		err := s.DB.WithContext(ctx).
			Where("topic_id = ? AND incident_id = ?", ref.ID, incidentID).
			First(&existing).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			link := models.TopicIncident{
				TopicID:        ref.ID,
				IncidentID:     incidentID,
				RelevanceScore: relevance,
				IsPrimary:      ref.Primary,
				RelationType:   relationType,
				IsVerified:     verified,
			}
			if err := s.DB.WithContext(ctx).Create(&link).Error; err != nil {
				return fmt.Errorf("link topic %d to incident %d: %w", ref.ID, incidentID, err)
			}
			// Incident-Zähler nur bei neuer Verknüpfung
			err = s.DB.WithContext(ctx).Model(&models.Topic{}).
				Where("id = ?", ref.ID).
				Updates(map[string]interface{}{
					"incident_count":   gorm.Expr("incident_count + 1"),
					"last_activity_at": now,
				}).Error
			if err != nil {
				return fmt.Errorf("bump incident count for topic %d: %w", ref.ID, err)
			}
		case err != nil:
			return fmt.Errorf("load topic link %d/%d: %w", ref.ID, incidentID, err)
		default:
			err = s.DB.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
				"relevance_score": relevance,
				"is_primary":      ref.Primary,
				"relation_type":   relationType,
				"is_verified":     verified,
			}).Error
			if err != nil {
				return fmt.Errorf("update topic link %d/%d: %w", ref.ID, incidentID, err)
			}
		}
	}
	return nil
}

// CreateTopicRelationships persistiert entdeckte Topic-Beziehungen. Kanten
// zu unbekannten Slugs werden still übersprungen; pro (from, to, type)
// existiert genau eine Zeile, Strength und Beschreibung werden aktualisiert.
func (s *TopicService) CreateTopicRelationships(ctx context.Context, rels []TopicRelationship) error {
	for _, rel := range rels {
		from, err := s.FindBySlug(ctx, rel.FromTopicSlug)
		if err != nil {
			return err
		}
		to, err := s.FindBySlug(ctx, rel.ToTopicSlug)
		if err != nil {
			return err
		}
		if from == nil || to == nil {
			s.Logger.Debug("Beziehung verweist auf unbekanntes Topic, übersprungen",
				zap.String("from", rel.FromTopicSlug),
				zap.String("to", rel.ToTopicSlug))
			continue
		}

		row := models.TopicRelation{
			FromTopicID:  from.ID,
			ToTopicID:    to.ID,
			RelationType: rel.RelationType,
			Strength:     rel.Strength,
			Description:  rel.Description,
			IsVerified:   rel.Strength >= 8,
		}
		err = s.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "from_topic_id"}, {Name: "to_topic_id"}, {Name: "relation_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"strength", "description", "is_verified", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("upsert topic relation %s -> %s: %w", rel.FromTopicSlug, rel.ToTopicSlug, err)
		}
	}
	return nil
}

// ClassifyAndPersist führt den kompletten Klassifikations-Workflow für eine
// Aussage aus: klassifizieren (mit Fallback), Topics sicherstellen,
// Verknüpfungen schreiben und die Aussage als klassifiziert markieren.
// Gibt die verwendete Klassifikation zurück und ob degradiert wurde.
func (s *TopicService) ClassifyAndPersist(ctx context.Context, classifier *Classifier, stmt *models.Statement) (*TopicClassification, bool, error) {
	classification, fellBack := classifier.ClassifyOrFallback(ctx, stmt)

	refs, err := s.EnsureTopicsExist(ctx, classification)
	if err != nil {
		return classification, fellBack, err
	}
	if err := s.LinkIncidentToTopics(ctx, stmt.ID, classification, refs); err != nil {
		return classification, fellBack, err
	}

	now := time.Now().UTC()
	err = s.DB.WithContext(ctx).Model(stmt).Updates(map[string]interface{}{
		"is_classified": true,
		"classified_at": now,
	}).Error
	if err != nil {
		return classification, fellBack, fmt.Errorf("mark statement %d classified: %w", stmt.ID, err)
	}
	stmt.IsClassified = true
	stmt.ClassifiedAt = &now

	return classification, fellBack, nil
}
