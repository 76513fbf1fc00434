package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/claude/liftlog/internal/models"
)

// S3Config configures the S3 document store.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string // S3-compatible services such as MinIO
	// Static credentials. Leave empty to use the default AWS chain.
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	UsePathStyle    bool
	// PollInterval drives Subscribe. Defaults to 5s.
	PollInterval time.Duration
}

// s3API is the subset of *s3.Client the store needs.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	s3.ListObjectsV2APIClient
}

// S3Store keeps each document as a JSON object at
// <prefix><collection>/<escaped id>.json. Ids are path-escaped so names
// containing "/" stay one key segment. Owner filtering happens client side.
type S3Store struct {
	client s3API
	cfg    S3Config
	now    func() time.Time
}

var (
	_ Store  = (*S3Store)(nil)
	_ Pinger = (*S3Store)(nil)
)

// NewS3Store builds an S3 client from cfg and the default AWS config chain.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: loading AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}
	return newS3Store(s3.NewFromConfig(awsCfg, s3Opts...), cfg), nil
}

func newS3Store(client s3API, cfg S3Config) *S3Store {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &S3Store{client: client, cfg: cfg, now: time.Now}
}

func (s *S3Store) key(collection, id string) string {
	return s.cfg.Prefix + collection + "/" + url.PathEscape(id) + ".json"
}

// idFromKey reverses key for an object listed under prefix.
func idFromKey(prefix, key string) (string, bool) {
	name, ok := strings.CutSuffix(strings.TrimPrefix(key, prefix), ".json")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	id, err := url.PathUnescape(name)
	if err != nil {
		return "", false
	}
	return id, true
}

// Upsert implements Store.
func (s *S3Store) Upsert(ctx context.Context, collection, id string, doc models.Document) error {
	if collection == "" || id == "" || doc.OwnerID == "" {
		return fmt.Errorf("%w: collection, id and owner are required", ErrInvalid)
	}

	now := s.now().UTC()
	doc.ID = id
	doc.CreatedAt, doc.UpdatedAt = now, now

	prev, err := s.get(ctx, s.key(collection, id))
	switch {
	case err == nil:
		if prev.OwnerID != doc.OwnerID {
			return fmt.Errorf("%w: %s/%s belongs to another owner", ErrPermission, collection, id)
		}
		doc.CreatedAt = prev.CreatedAt
	case !errors.Is(err, ErrNotFound):
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encoding document: %v", ErrInvalid, err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(s.key(collection, id)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return classifyS3("put object", err)
	}
	return nil
}

// QueryByOwner implements Store.
func (s *S3Store) QueryByOwner(ctx context.Context, collection, ownerID, orderBy string, dir Direction) ([]models.Document, error) {
	prefix := s.cfg.Prefix + collection + "/"
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(prefix),
	})

	var docs []models.Document
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, classifyS3("list objects", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			id, ok := idFromKey(prefix, key)
			if !ok {
				continue
			}
			doc, err := s.get(ctx, key)
			if errors.Is(err, ErrNotFound) {
				continue // deleted between list and get
			}
			if err != nil {
				return nil, err
			}
			if doc.OwnerID == ownerID {
				doc.ID = id
				docs = append(docs, doc)
			}
		}
	}
	SortDocuments(docs, orderBy, dir)
	return docs, nil
}

// Delete implements Store.
func (s *S3Store) Delete(ctx context.Context, collection, id string) error {
	key := s.key(collection, id)
	if _, err := s.get(ctx, key); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classifyS3("delete object", err)
	}
	return nil
}

// Subscribe polls the collection and emits a snapshot whenever it changes.
func (s *S3Store) Subscribe(ctx context.Context, collection, ownerID string) (<-chan []models.Document, error) {
	first, err := s.QueryByOwner(ctx, collection, ownerID, "createdAt", Desc)
	if err != nil {
		return nil, err
	}

	out := make(chan []models.Document, 1)
	out <- first
	go func() {
		defer close(out)
		last, _ := json.Marshal(first)
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			docs, err := s.QueryByOwner(ctx, collection, ownerID, "createdAt", Desc)
			if err != nil {
				continue
			}
			cur, _ := json.Marshal(docs)
			if bytes.Equal(cur, last) {
				continue
			}
			last = cur
			select {
			case out <- docs:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Ping implements Pinger.
func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.cfg.Bucket)})
	if err != nil {
		return classifyS3("head bucket", err)
	}
	return nil
}

func (s *S3Store) get(ctx context.Context, key string) (models.Document, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return models.Document{}, classifyS3("get object", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Document{}, fmt.Errorf("%w: read %s: %v", ErrUnavailable, key, err)
	}
	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.Document{}, fmt.Errorf("%w: decode %s: %v", ErrInvalid, key, err)
	}
	return doc, nil
}

func classifyS3(op string, err error) error {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: s3 %s: %v", ErrNotFound, op, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: s3 %s: %v", ErrNotFound, op, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "NoSuchBucket", "Forbidden":
			return fmt.Errorf("%w: s3 %s: %v", ErrPermission, op, err)
		}
	}
	return fmt.Errorf("%w: s3 %s: %v", ErrUnavailable, op, err)
}
