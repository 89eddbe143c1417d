package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"words-record/config"
	"words-record/models"
	"words-record/providers"
	"words-record/providers/anthropic"
	"words-record/providers/archivetoday"
	"words-record/providers/wayback"
	"words-record/services"
	"words-record/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	sourcesArchivedCounter         prometheus.Counter
	archiveFailuresCounter         prometheus.Counter
	statementsClassifiedCounter    prometheus.Counter
	classificationFallbacksCounter prometheus.Counter
)

func init() {
	sourcesArchivedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sources_archived_total",
		Help: "Total number of sources successfully archived.",
	})
	archiveFailuresCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "archive_failures_total",
		Help: "Total number of sources that could not be archived.",
	})
	statementsClassifiedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "statements_classified_total",
		Help: "Total number of statements classified.",
	})
	classificationFallbacksCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "classification_fallbacks_total",
		Help: "Total number of classifications that degraded to the fallback.",
	})
	prometheus.MustRegister(
		sourcesArchivedCounter,
		archiveFailuresCounter,
		statementsClassifiedCounter,
		classificationFallbacksCounter,
	)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	// Auto-Migration
	logging.Info("Running database auto-migration...")
	db.AutoMigrate(
		&models.Statement{},
		&models.Source{},
		&models.Topic{},
		&models.TopicIncident{},
		&models.TopicRelation{},
	)

	// Setup Archivers
	enabledNames := strings.Split(cfg.EnabledArchivers, ",")
	var archivers []providers.Archiver
	for _, name := range enabledNames {
		switch strings.TrimSpace(name) {
		case "wayback":
			archivers = append(archivers, wayback.NewFetcher(cfg, logging))
		case "archivetoday":
			archivers = append(archivers, archivetoday.NewFetcher(cfg, logging))
		default:
			logging.Warn("Unknown archiver in config", zap.String("archiver_name", name))
		}
	}
	if len(archivers) == 0 {
		logging.Fatal("No valid archivers enabled. Check ENABLED_ARCHIVERS in .env")
	}
	logging.Info("Active archivers loaded", zap.Strings("archivers", enabledNames))

	// S3-Snapshot-Fallback ist optional
	var snapshots services.SnapshotStore
	if cfg.SnapshotStorageEnabled() {
		s3Client, err := storage.NewS3Client(cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		snapshots = storage.NewSnapshotStorage(s3Client, cfg)
		logging.Info("Snapshot storage enabled", zap.String("bucket", cfg.SnapshotS3Bucket))
	} else {
		logging.Info("Snapshot storage disabled (no S3 credentials configured).")
	}

	// Setup Services
	archiveService := services.NewArchiveService(cfg, db, logging, archivers, snapshots)
	topicService := services.NewTopicService(db, logging)
	llm := anthropic.NewClient(cfg, logging)
	classifier := services.NewClassifier(cfg, logging, llm, topicService)
	batchService := services.NewBatchService(cfg, db, logging, archiveService, classifier, topicService)
	metadataExtractor := services.NewMetadataExtractor(logging)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup Routes
	setupStatementRoutes(router, db, batchService, logging)
	setupSourceRoutes(router, db, archiveService, metadataExtractor, logging)
	setupTopicRoutes(router, db, topicService, classifier, logging)
	setupCitationRoutes(router, metadataExtractor, logging)
	setupBatchRoutes(router, batchService, logging)

	// Setup Cron: nächtlicher Archiv-Sweep
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled archive sweep...")
		summary, err := batchService.RunArchiveBatch(context.Background(), 0, false)
		if err != nil {
			logging.Error("Cron archive sweep failed", zap.Error(err))
			return
		}
		sourcesArchivedCounter.Add(float64(summary.Succeeded))
		archiveFailuresCounter.Add(float64(summary.Failed))
		logging.Info("Cron archive sweep completed",
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("failed", summary.Failed))
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupStatementRoutes(router *gin.Engine, db *gorm.DB, batch *services.BatchService, log *zap.Logger) {
	rg := router.Group("/statements")

	rg.POST("/", func(c *gin.Context) {
		var stmt models.Statement
		if err := c.ShouldBindJSON(&stmt); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		stmt.Content = services.NormalizeStatementText(stmt.Content)
		if stmt.Content == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "content must not be empty"})
			return
		}
		if err := db.Create(&stmt).Error; err != nil {
			log.Error("Failed to create statement", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create statement"})
			return
		}
		c.JSON(http.StatusCreated, stmt)
	})

	rg.GET("/:id", func(c *gin.Context) {
		id := c.Param("id")
		var stmt models.Statement
		if err := db.Preload("Sources").First(&stmt, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "statement not found"})
				return
			}
			log.Error("DB error fetching statement", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, stmt)
	})

	// Body-gesteuerter Endpunkt für komplexe Abfragen
	rg.POST("/query", func(c *gin.Context) {
		type StatementQuery struct {
			SpeakerName  string `json:"speaker_name"`
			IsClassified *bool  `json:"is_classified"`
			IsVerified   *bool  `json:"is_verified"`
			Limit        int    `json:"limit"`
		}

		var req StatementQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		query := db.Model(&models.Statement{})
		if req.SpeakerName != "" {
			query = query.Where("speaker_name = ?", req.SpeakerName)
		}
		if req.IsClassified != nil {
			query = query.Where("is_classified = ?", *req.IsClassified)
		}
		if req.IsVerified != nil {
			query = query.Where("is_verified = ?", *req.IsVerified)
		}
		if req.Limit > 0 {
			query = query.Limit(req.Limit)
		}

		var statements []models.Statement
		if err := query.Order("created_at desc").Find(&statements).Error; err != nil {
			log.Error("Database query for statements failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, statements)
	})

	// PUT zum partiellen Aktualisieren; nur gesendete Felder werden geschrieben
	rg.PUT("/:id", func(c *gin.Context) {
		id := c.Param("id")

		var stmt models.Statement
		if err := db.First(&stmt, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "statement not found"})
				return
			}
			log.Error("DB error checking for statement on PUT", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		var updateData map[string]interface{}
		if err := c.ShouldBindJSON(&updateData); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		if err := db.Model(&stmt).Updates(updateData).Error; err != nil {
			log.Error("DB error updating statement", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update statement"})
			return
		}
		c.JSON(http.StatusOK, stmt)
	})

	// Async-Trigger: eine einzelne Aussage klassifizieren
	rg.POST("/:id/classify", func(c *gin.Context) {
		id := c.Param("id")
		var stmt models.Statement
		if err := db.First(&stmt, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "statement not found"})
			return
		}

		go func() {
			classification, fellBack, err := batch.Topics.ClassifyAndPersist(context.Background(), batch.Classifier, &stmt)
			if err != nil {
				batch.Logger.Error("Async classification failed", zap.Uint("statement_id", stmt.ID), zap.Error(err))
				return
			}
			statementsClassifiedCounter.Inc()
			if fellBack {
				classificationFallbacksCounter.Inc()
			}
			batch.Logger.Info("Async classification completed",
				zap.Uint("statement_id", stmt.ID),
				zap.String("primary_topic", classification.PrimaryTopic))
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Classification triggered."})
	})
}

func setupSourceRoutes(router *gin.Engine, db *gorm.DB, archive *services.ArchiveService, metadata *services.MetadataExtractor, log *zap.Logger) {
	rg := router.Group("/sources")

	rg.POST("/", func(c *gin.Context) {
		var source models.Source
		if err := c.ShouldBindJSON(&source); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if source.URL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
			return
		}

		// Fehlende Zitierung best-effort aus den Seiten-Metadaten erzeugen
		if source.Citation == "" {
			data := metadata.ExtractCitationFromURL(c.Request.Context(), source.URL)
			if source.Title != "" {
				data.Title = source.Title
			}
			if source.Author != "" {
				data.Author = source.Author
			}
			if source.Publication != "" {
				data.Publication = source.Publication
			}
			if source.PublishDate != nil {
				data.PublicationDate = source.PublishDate
				data.Year = source.PublishDate.Year()
			}
			source.Citation = services.GenerateHarvardCitation(data)
			if source.Title == "" {
				source.Title = data.Title
			}
			if source.Publication == "" {
				source.Publication = data.Publication
			}
		}

		source.ArchivalPriority = services.CalculateArchivalPriority(&source)

		if err := db.Create(&source).Error; err != nil {
			log.Error("Failed to create source", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create source"})
			return
		}
		c.JSON(http.StatusCreated, source)
	})

	rg.POST("/query", func(c *gin.Context) {
		type SourceQuery struct {
			StatementID *uint  `json:"statement_id"`
			IsArchived  *bool  `json:"is_archived"`
			SourceType  string `json:"source_type"`
			MinPriority *int   `json:"min_priority"`
			Limit       int    `json:"limit"`
		}

		var req SourceQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		query := db.Model(&models.Source{})
		if req.StatementID != nil {
			query = query.Where("statement_id = ?", *req.StatementID)
		}
		if req.IsArchived != nil {
			query = query.Where("is_archived = ?", *req.IsArchived)
		}
		if req.SourceType != "" {
			query = query.Where("source_type = ?", req.SourceType)
		}
		if req.MinPriority != nil {
			query = query.Where("archival_priority >= ?", *req.MinPriority)
		}
		if req.Limit > 0 {
			query = query.Limit(req.Limit)
		}

		var sources []models.Source
		if err := query.Order("archival_priority desc, created_at asc").Find(&sources).Error; err != nil {
			log.Error("Database query for sources failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, sources)
	})

	rg.PUT("/:id", func(c *gin.Context) {
		id := c.Param("id")

		var source models.Source
		if err := db.First(&source, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "source not found"})
				return
			}
			log.Error("DB error checking for source on PUT", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		var updateData map[string]interface{}
		if err := c.ShouldBindJSON(&updateData); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		if err := db.Model(&source).Updates(updateData).Error; err != nil {
			log.Error("DB error updating source", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update source"})
			return
		}
		c.JSON(http.StatusOK, source)
	})

	// Async-Trigger: eine einzelne Quelle archivieren
	rg.POST("/:id/archive", func(c *gin.Context) {
		id := c.Param("id")
		var source models.Source
		if err := db.First(&source, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "source not found"})
			return
		}
		if source.IsArchived {
			c.JSON(http.StatusOK, gin.H{"message": "Source already archived.", "archive_url": source.ArchiveURL})
			return
		}

		go func() {
			result := archive.ArchiveSource(context.Background(), &source)
			if result.Succeeded() {
				sourcesArchivedCounter.Inc()
			} else {
				archiveFailuresCounter.Inc()
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Archiving triggered."})
	})
}

func setupTopicRoutes(router *gin.Engine, db *gorm.DB, topics *services.TopicService, classifier *services.Classifier, log *zap.Logger) {
	rg := router.Group("/topics")

	rg.GET("/", func(c *gin.Context) {
		var all []models.Topic
		if err := db.Where("is_active = ?", true).Order("priority desc, slug asc").Find(&all).Error; err != nil {
			log.Error("Database query for topics failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, all)
	})

	rg.GET("/:slug", func(c *gin.Context) {
		topic, err := topics.FindBySlug(c.Request.Context(), c.Param("slug"))
		if err != nil {
			log.Error("DB error fetching topic", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if topic == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "topic not found"})
			return
		}
		c.JSON(http.StatusOK, topic)
	})

	rg.GET("/:slug/relations", func(c *gin.Context) {
		topic, err := topics.FindBySlug(c.Request.Context(), c.Param("slug"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if topic == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "topic not found"})
			return
		}
		var relations []models.TopicRelation
		if err := db.Where("from_topic_id = ? OR to_topic_id = ?", topic.ID, topic.ID).Find(&relations).Error; err != nil {
			log.Error("Database query for topic relations failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, relations)
	})

	// Async-Trigger: Beziehungen für ein Topic entdecken und persistieren
	rg.POST("/:slug/discover-relations", func(c *gin.Context) {
		slug := c.Param("slug")
		go func() {
			rels := classifier.DiscoverTopicRelationships(context.Background(), slug)
			if len(rels) == 0 {
				return
			}
			if err := topics.CreateTopicRelationships(context.Background(), rels); err != nil {
				log.Error("Failed to persist discovered relationships", zap.String("slug", slug), zap.Error(err))
				return
			}
			log.Info("Discovered topic relationships persisted",
				zap.String("slug", slug),
				zap.Int("count", len(rels)))
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Relationship discovery triggered."})
	})
}

// setupCitationRoutes konfiguriert alle Citation-bezogenen API-Routen
func setupCitationRoutes(router *gin.Engine, metadata *services.MetadataExtractor, log *zap.Logger) {
	rg := router.Group("/citations")

	// POST - Harvard-Zitierung aus strukturierten Daten erzeugen
	rg.POST("/generate", func(c *gin.Context) {
		var data services.CitationData
		if err := c.ShouldBindJSON(&data); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if data.URL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
			return
		}
		if data.AccessDate.IsZero() {
			data.AccessDate = time.Now().UTC()
		}

		citation := services.GenerateHarvardCitation(data)
		valid, validationErrors := services.ValidateCitation(citation)
		c.JSON(http.StatusOK, gin.H{
			"citation": citation,
			"valid":    valid,
			"errors":   validationErrors,
		})
	})

	// POST - bestehende Zitierung gegen die Format-Regeln prüfen
	rg.POST("/validate", func(c *gin.Context) {
		var request struct {
			Citation string `json:"citation" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'citation' field is required."})
			return
		}
		valid, validationErrors := services.ValidateCitation(request.Citation)
		c.JSON(http.StatusOK, gin.H{"valid": valid, "errors": validationErrors})
	})

	// POST - bibliographische Daten aus Freitext extrahieren
	rg.POST("/parse-informal", func(c *gin.Context) {
		var request struct {
			Text string `json:"text" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'text' field is required."})
			return
		}
		data := services.ParseInformalCitation(request.Text)
		c.JSON(http.StatusOK, gin.H{
			"data":     data,
			"citation": services.GenerateHarvardCitation(data),
		})
	})

	// POST - Metadaten einer URL scrapen und direkt zitieren
	rg.POST("/from-url", func(c *gin.Context) {
		var request struct {
			URL string `json:"url" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'url' field is required."})
			return
		}

		data := metadata.ExtractCitationFromURL(c.Request.Context(), request.URL)
		citation := services.GenerateHarvardCitation(data)
		valid, validationErrors := services.ValidateCitation(citation)
		c.JSON(http.StatusOK, gin.H{
			"data":     data,
			"citation": citation,
			"valid":    valid,
			"errors":   validationErrors,
		})
	})

	log.Info("Citation routes configured successfully",
		zap.String("base_path", "/citations"),
		zap.Strings("endpoints", []string{"/generate", "/validate", "/parse-informal", "/from-url"}))
}

func setupBatchRoutes(router *gin.Engine, batch *services.BatchService, log *zap.Logger) {
	rg := router.Group("/batch")

	// Im Debug-Modus werden Batches auf DEBUG_MAX_RECORDS Datensätze begrenzt.
	batchLimit := 0
	if gin.Mode() == gin.DebugMode {
		batchLimit = batch.Config.DebugMaxRecords
		log.Info("Debug mode: batch runs are limited", zap.Int("max_records", batchLimit))
	}

	rg.POST("/archive", func(c *gin.Context) {
		go func() {
			summary, err := batch.RunArchiveBatch(context.Background(), batchLimit, false)
			if err != nil {
				log.Error("Async archive batch failed", zap.Error(err))
				return
			}
			sourcesArchivedCounter.Add(float64(summary.Succeeded))
			archiveFailuresCounter.Add(float64(summary.Failed))
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Archive batch triggered."})
	})

	rg.POST("/classify", func(c *gin.Context) {
		go func() {
			summary, err := batch.RunClassifyBatch(context.Background(), batchLimit, false)
			if err != nil {
				log.Error("Async classify batch failed", zap.Error(err))
				return
			}
			statementsClassifiedCounter.Add(float64(summary.Succeeded))
			classificationFallbacksCounter.Add(float64(summary.Fallbacks))
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Classify batch triggered."})
	})
}
