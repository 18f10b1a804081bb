// Package artifact probes the artifact store for object existence.
// "No credentials" is a distinct outcome from "not found": the preflight
// skips rather than fails when the checker cannot authenticate.
package artifact

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"drydock/internal/usecase"
)

type headAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type S3Checker struct {
	api            headAPI
	hasCredentials bool
}

// NewS3Checker loads the default AWS credential chain. A missing chain
// is not an error; it makes every probe report no-credentials.
func NewS3Checker(ctx context.Context, region string) (*S3Checker, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	hasCreds := true
	if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
		hasCreds = false
	}
	return &S3Checker{api: s3.NewFromConfig(cfg), hasCredentials: hasCreds}, nil
}

// NewS3CheckerWithAPI is for tests and custom clients.
func NewS3CheckerWithAPI(api headAPI, hasCredentials bool) *S3Checker {
	return &S3Checker{api: api, hasCredentials: hasCredentials}
}

// Exists probes an s3://bucket/key reference.
func (c *S3Checker) Exists(ctx context.Context, artifactRef string) (usecase.ArtifactProbe, error) {
	if !c.hasCredentials {
		return usecase.ArtifactNoCredentials, nil
	}
	bucket, key, err := splitRef(artifactRef)
	if err != nil {
		return usecase.ArtifactMissing, err
	}
	_, err = c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "NotFound", "NoSuchKey", "NoSuchBucket":
				return usecase.ArtifactMissing, nil
			case "AccessDenied", "InvalidAccessKeyId", "ExpiredToken":
				return usecase.ArtifactNoCredentials, nil
			}
		}
		return usecase.ArtifactMissing, err
	}
	return usecase.ArtifactExists, nil
}

func splitRef(artifactRef string) (bucket, key string, err error) {
	parsed, err := url.Parse(artifactRef)
	if err != nil {
		return "", "", err
	}
	key = strings.TrimPrefix(parsed.Path, "/")
	if parsed.Host == "" || key == "" {
		return "", "", errors.New("artifact ref must be scheme://bucket/key")
	}
	return parsed.Host, key, nil
}

var _ usecase.ArtifactChecker = (*S3Checker)(nil)
