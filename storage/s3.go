package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"words-record/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewS3Client erstellt einen S3-Client für den Snapshot-Bucket.
func NewS3Client(cfg *config.Config) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.SnapshotS3URL,
				SigningRegion:     cfg.SnapshotS3Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.SnapshotS3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.SnapshotS3Key, cfg.SnapshotS3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}

// SnapshotStorage legt rohe HTML-Snapshots im S3-Bucket ab. Implementiert
// services.SnapshotStore.
type SnapshotStorage struct {
	Client *s3.Client
	Config *config.Config
}

// NewSnapshotStorage erstellt eine neue SnapshotStorage-Instanz.
func NewSnapshotStorage(client *s3.Client, cfg *config.Config) *SnapshotStorage {
	return &SnapshotStorage{Client: client, Config: cfg}
}

// SaveSnapshot lädt einen Snapshot hoch und gibt den Link zurück. Der Key
// ist aus URL-Hash und Zeitstempel abgeleitet, damit wiederholte Snapshots
// derselben Seite nebeneinander existieren.
func (s *SnapshotStorage) SaveSnapshot(ctx context.Context, url string, body []byte) (string, error) {
	sum := sha256.Sum256([]byte(url))
	key := fmt.Sprintf("snapshots/%x/%s.html", sum[:8], time.Now().UTC().Format("20060102150405"))

	if err := UploadFile(ctx, s.Client, s.Config.SnapshotS3Bucket, key, body); err != nil {
		return "", fmt.Errorf("upload snapshot for %s: %w", url, err)
	}

	link := fmt.Sprintf("%s/%s/%s", s.Config.SnapshotS3URL, s.Config.SnapshotS3Bucket, key)
	return link, nil
}

// UploadFile lädt eine Datei in den angegebenen Bucket hoch. Gemeinsamer
// Upload-Pfad für Snapshots und das Backup-Tool.
func UploadFile(ctx context.Context, client *s3.Client, bucket, key string, data []byte) error {
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   bytes.NewReader(data),
	})
	return err
}
