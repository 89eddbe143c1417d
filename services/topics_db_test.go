package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"words-record/models"
)

// newTestDB öffnet eine isolierte In-Memory-Datenbank pro Test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	err = db.AutoMigrate(
		&models.Statement{},
		&models.Topic{},
		&models.TopicIncident{},
		&models.TopicRelation{},
	)
	if err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

func electionClassification() *TopicClassification {
	return &TopicClassification{
		PrimaryTopic:    "Election Interference",
		Label:           "Election Interference 2024",
		Keywords:        []string{"election", "interference", "voting"},
		SecondaryTopics: []string{"Social Media"},
		RelevanceScores: map[string]int{"Social Media": 6},
		TopicType:       "ELECTION",
		Scale:           "NATIONAL",
		Status:          "ESCALATING",
		Confidence:      0.92,
	}
}

func TestEnsureTopicsExistCountsStatementsOnce(t *testing.T) {
	svc := NewTopicService(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	refs, err := svc.EnsureTopicsExist(ctx, electionClassification())
	if err != nil {
		t.Fatalf("EnsureTopicsExist: %v", err)
	}
	if len(refs) != 2 || !refs[0].Primary || refs[1].Primary {
		t.Fatalf("refs = %+v, want primary first", refs)
	}

	primary, err := svc.FindBySlug(ctx, "election-interference")
	if err != nil || primary == nil {
		t.Fatalf("FindBySlug: %v, %v", primary, err)
	}
	if primary.StatementCount != 1 {
		t.Errorf("StatementCount = %d, want 1", primary.StatementCount)
	}
	if primary.Priority != 9 { // floor(0.92*10)
		t.Errorf("Priority = %d, want 9", primary.Priority)
	}
	if primary.Label != "Election Interference 2024" {
		t.Errorf("Label = %q", primary.Label)
	}
	var keywords []string
	if err := json.Unmarshal(primary.Keywords, &keywords); err != nil {
		t.Fatalf("Keywords not valid JSON: %v", err)
	}
	if len(keywords) != 3 || keywords[0] != "election" {
		t.Errorf("Keywords = %v", keywords)
	}

	// Zweite Klassifikation derselben Topics: Zähler geht genau um eins hoch
	if _, err := svc.EnsureTopicsExist(ctx, electionClassification()); err != nil {
		t.Fatalf("second EnsureTopicsExist: %v", err)
	}
	primary, _ = svc.FindBySlug(ctx, "election-interference")
	if primary.StatementCount != 2 {
		t.Errorf("StatementCount after second call = %d, want 2", primary.StatementCount)
	}
}

func TestLinkIncidentToTopicsIdempotent(t *testing.T) {
	svc := NewTopicService(newTestDB(t), zap.NewNop())
	ctx := context.Background()
	c := electionClassification()

	refs, err := svc.EnsureTopicsExist(ctx, c)
	if err != nil {
		t.Fatalf("EnsureTopicsExist: %v", err)
	}

	if err := svc.LinkIncidentToTopics(ctx, 42, c, refs); err != nil {
		t.Fatalf("LinkIncidentToTopics: %v", err)
	}
	if err := svc.LinkIncidentToTopics(ctx, 42, c, refs); err != nil {
		t.Fatalf("repeated LinkIncidentToTopics: %v", err)
	}

	var count int64
	svc.DB.Model(&models.TopicIncident{}).Where("incident_id = ?", 42).Count(&count)
	if count != 2 {
		t.Fatalf("link rows = %d, want 2 (one per topic)", count)
	}

	var link models.TopicIncident
	if err := svc.DB.Where("topic_id = ? AND incident_id = ?", refs[0].ID, 42).First(&link).Error; err != nil {
		t.Fatalf("load primary link: %v", err)
	}
	if link.RelevanceScore != 10 || !link.IsPrimary || link.RelationType != models.IncidentRelationPrimary {
		t.Errorf("primary link = %+v", link)
	}
	if !link.IsVerified { // Confidence 0.92 > 0.8
		t.Error("primary link not verified")
	}

	// Incident-Zähler nur beim ersten Verknüpfen
	primary, _ := svc.FindBySlug(ctx, "election-interference")
	if primary.IncidentCount != 1 {
		t.Errorf("IncidentCount = %d, want 1", primary.IncidentCount)
	}
}

func TestLinkIncidentToTopicsAppliesRelevanceScores(t *testing.T) {
	svc := NewTopicService(newTestDB(t), zap.NewNop())
	ctx := context.Background()
	c := electionClassification()

	refs, err := svc.EnsureTopicsExist(ctx, c)
	if err != nil {
		t.Fatalf("EnsureTopicsExist: %v", err)
	}
	if err := svc.LinkIncidentToTopics(ctx, 7, c, refs); err != nil {
		t.Fatalf("LinkIncidentToTopics: %v", err)
	}

	var link models.TopicIncident
	if err := svc.DB.Where("topic_id = ? AND incident_id = ?", refs[1].ID, 7).First(&link).Error; err != nil {
		t.Fatalf("load secondary link: %v", err)
	}
	// Score aus der Klassifikation überschreibt den Secondary-Default 5
	if link.RelevanceScore != 6 {
		t.Errorf("secondary RelevanceScore = %d, want 6", link.RelevanceScore)
	}
	if link.IsPrimary || link.RelationType != models.IncidentRelationRelated {
		t.Errorf("secondary link = %+v", link)
	}
}

func TestCreateTopicRelationshipsUniqueEdge(t *testing.T) {
	svc := NewTopicService(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	for _, topic := range []models.Topic{
		{Slug: "election-interference", Name: "Election Interference", IsActive: true},
		{Slug: "media-regulation", Name: "Media Regulation", IsActive: true},
	} {
		if err := svc.DB.Create(&topic).Error; err != nil {
			t.Fatalf("seed topic: %v", err)
		}
	}

	edge := TopicRelationship{
		FromTopicSlug: "election-interference",
		ToTopicSlug:   "media-regulation",
		RelationType:  "RELATED_TO",
		Strength:      4,
	}
	if err := svc.CreateTopicRelationships(ctx, []TopicRelationship{edge}); err != nil {
		t.Fatalf("CreateTopicRelationships: %v", err)
	}

	// Wiederholung derselben Kante aktualisiert statt zu duplizieren
	edge.Strength = 9
	edge.Description = "Both concern platform oversight."
	if err := svc.CreateTopicRelationships(ctx, []TopicRelationship{edge}); err != nil {
		t.Fatalf("repeated CreateTopicRelationships: %v", err)
	}

	var rows []models.TopicRelation
	if err := svc.DB.Find(&rows).Error; err != nil {
		t.Fatalf("load relations: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("relation rows = %d, want 1", len(rows))
	}
	if rows[0].Strength != 9 || !rows[0].IsVerified {
		t.Errorf("updated edge = %+v, want strength 9 and verified", rows[0])
	}
}

func TestCreateTopicRelationshipsSkipsUnknownSlug(t *testing.T) {
	svc := NewTopicService(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	if err := svc.DB.Create(&models.Topic{Slug: "known", Name: "Known", IsActive: true}).Error; err != nil {
		t.Fatalf("seed topic: %v", err)
	}

	rels := []TopicRelationship{
		{FromTopicSlug: "known", ToTopicSlug: "ghost", RelationType: "RELATED_TO", Strength: 5},
	}
	if err := svc.CreateTopicRelationships(ctx, rels); err != nil {
		t.Fatalf("CreateTopicRelationships: %v", err)
	}

	var count int64
	svc.DB.Model(&models.TopicRelation{}).Count(&count)
	if count != 0 {
		t.Errorf("relation rows = %d, want 0", count)
	}
}

func TestClassifyAndPersistCountsOnce(t *testing.T) {
	svc := NewTopicService(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	stmt := models.Statement{SpeakerName: "Test Speaker", Content: "A test statement."}
	if err := svc.DB.Create(&stmt).Error; err != nil {
		t.Fatalf("seed statement: %v", err)
	}

	stub := &stubCompleter{reply: wellFormedResponse, enabled: true}
	classifier := NewClassifier(nil, zap.NewNop(), stub, svc)

	classification, fellBack, err := svc.ClassifyAndPersist(ctx, classifier, &stmt)
	if err != nil {
		t.Fatalf("ClassifyAndPersist: %v", err)
	}
	if fellBack {
		t.Fatal("did not expect fallback")
	}
	if stub.calls != 1 {
		t.Errorf("completer called %d times, want 1", stub.calls)
	}
	if classification.PrimaryTopic != "Election Interference" {
		t.Errorf("PrimaryTopic = %q", classification.PrimaryTopic)
	}

	// Topics werden genau einmal fortgeschrieben, nicht pro Teilschritt
	primary, err := svc.FindBySlug(ctx, "election-interference")
	if err != nil || primary == nil {
		t.Fatalf("FindBySlug: %v, %v", primary, err)
	}
	if primary.StatementCount != 1 {
		t.Errorf("StatementCount = %d, want 1", primary.StatementCount)
	}
	if primary.IncidentCount != 1 {
		t.Errorf("IncidentCount = %d, want 1", primary.IncidentCount)
	}

	var reloaded models.Statement
	if err := svc.DB.First(&reloaded, stmt.ID).Error; err != nil {
		t.Fatalf("reload statement: %v", err)
	}
	if !reloaded.IsClassified || reloaded.ClassifiedAt == nil {
		t.Errorf("statement not marked classified: %+v", reloaded)
	}
}
