// Package storage holds the S3-compatible proof store (MinIO/R2/AWS).
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appconfig "github.com/kartalink/circle-service/internal/config"
)

// S3ProofStore uploads payment proofs and returns their public URL.
type S3ProofStore struct {
	client    *s3.Client
	bucket    string
	publicURL string
	log       zerolog.Logger
}

func NewS3ProofStore(cfg *appconfig.Config, log zerolog.Logger) (*S3ProofStore, error) {
	if strings.TrimSpace(cfg.S3Bucket) == "" {
		return nil, fmt.Errorf("missing S3_BUCKET")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}
	if cfg.S3Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.S3Endpoint,
				HostnameImmutable: true,
			}, nil
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// MinIO and R2 want path-style addressing
		o.UsePathStyle = cfg.S3Endpoint != ""
	})

	publicURL := strings.TrimRight(cfg.S3PublicURL, "/")
	if publicURL == "" {
		publicURL = strings.TrimRight(cfg.S3Endpoint, "/") + "/" + cfg.S3Bucket
	}

	return &S3ProofStore{
		client:    client,
		bucket:    cfg.S3Bucket,
		publicURL: publicURL,
		log:       log,
	}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (p *S3ProofStore) EnsureBucket(ctx context.Context) error {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(p.bucket),
	})
	if err == nil {
		return nil
	}

	p.log.Info().Str("bucket", p.bucket).Msg("creating bucket")
	_, err = p.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(p.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", p.bucket, err)
	}
	return nil
}

// StoreProof writes the proof bytes under a registration-scoped key.
func (p *S3ProofStore) StoreProof(ctx context.Context, registrationID uuid.UUID, contentType string, data []byte) (string, error) {
	key := "proofs/" + registrationID.String()

	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put proof %s: %w", key, err)
	}

	p.log.Debug().Str("key", key).Int("bytes", len(data)).Msg("proof stored")
	return p.publicURL + "/" + key, nil
}
