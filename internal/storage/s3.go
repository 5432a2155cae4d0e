package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/edvin/tenantctl/internal/config"
)

// S3Store implements ObjectStore against an S3-compatible endpoint.
type S3Store struct {
	logger zerolog.Logger
	client *s3.Client
	bucket string
}

func NewS3Store(logger zerolog.Logger, cfg *config.Config) *S3Store {
	opts := s3.Options{
		Region:       cfg.S3Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.S3Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.S3Endpoint)
	}
	return &S3Store{
		logger: logger.With().Str("component", "object-store").Logger(),
		client: s3.New(opts),
		bucket: cfg.S3Bucket,
	}
}

func (s *S3Store) Put(ctx context.Context, key string, body io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	s.logger.Info().Str("key", key).Msg("uploaded object")
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	return out.Body, nil
}

// EnsureRetention reads the bucket lifecycle configuration, replaces any
// rule carrying the same identifier, and writes the merged set back.
func (s *S3Store) EnsureRetention(ctx context.Context, prefix string, days int) error {
	var existing []s3types.LifecycleRule
	out, err := s.client.GetBucketLifecycleConfiguration(ctx, &s3.GetBucketLifecycleConfigurationInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		// A bucket with no lifecycle configuration yet is not an error.
		if !strings.Contains(err.Error(), "NoSuchLifecycleConfiguration") {
			return fmt.Errorf("get lifecycle configuration: %w", err)
		}
	} else {
		existing = out.Rules
	}

	rules := MergeRetentionRule(existing, prefix, days)

	_, err = s.client.PutBucketLifecycleConfiguration(ctx, &s3.PutBucketLifecycleConfigurationInput{
		Bucket: aws.String(s.bucket),
		LifecycleConfiguration: &s3types.BucketLifecycleConfiguration{
			Rules: rules,
		},
	})
	if err != nil {
		return fmt.Errorf("put lifecycle configuration: %w", err)
	}
	s.logger.Info().Str("prefix", prefix).Int("days", days).Msg("retention policy ensured")
	return nil
}

// MergeRetentionRule returns rules with the prefix's expiration rule set,
// replacing any rule with the same identifier idempotently.
func MergeRetentionRule(rules []s3types.LifecycleRule, prefix string, days int) []s3types.LifecycleRule {
	ruleID := RetentionRuleID(prefix, days)

	merged := make([]s3types.LifecycleRule, 0, len(rules)+1)
	for _, r := range rules {
		if r.ID != nil && *r.ID == ruleID {
			continue
		}
		merged = append(merged, r)
	}

	merged = append(merged, s3types.LifecycleRule{
		ID:     aws.String(ruleID),
		Status: s3types.ExpirationStatusEnabled,
		Filter: &s3types.LifecycleRuleFilter{
			Prefix: aws.String(prefix + "/"),
		},
		Expiration: &s3types.LifecycleExpiration{
			Days: aws.Int32(int32(days)),
		},
	})
	return merged
}
