// Package blob resolves stored file paths to access URLs for file fields.
package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const DefaultExpiry = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

type S3Config struct {
	Region    string
	AccessKey string
	SecretKey string
	// Endpoint is set for S3 compatible stores such as MinIO; it switches
	// the client to path-style addressing.
	Endpoint string
	Bucket   string
	Expiry   time.Duration
}

// S3Resolver presigns GET requests for objects of one bucket.
type S3Resolver struct {
	client *s3.PresignClient
	bucket string
	expiry time.Duration
}

func NewS3Resolver(ctx context.Context, c S3Config) (*S3Resolver, error) {
	if c.Bucket == "" {
		return nil, errors.New("blob: bucket is required")
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")))
	if err != nil {
		return nil, fmt.Errorf("blob: load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})

	expiry := c.Expiry
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &S3Resolver{client: newS3PresignClient(client), bucket: c.Bucket, expiry: expiry}, nil
}

// URL returns a presigned GET URL for the object stored under path.
func (r *S3Resolver) URL(ctx context.Context, path string) (string, error) {
	key := strings.TrimPrefix(path, "/")
	req, err := presignGetObject(r.client, ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(r.expiry))
	if err != nil {
		return "", fmt.Errorf("blob: presign %s: %w", key, err)
	}
	return req.URL, nil
}

// PrefixResolver serves files from a public base URL.
type PrefixResolver struct {
	Base string
}

func (r PrefixResolver) URL(_ context.Context, path string) (string, error) {
	if r.Base == "" {
		return "", errors.New("blob: no base URL")
	}
	return url.JoinPath(r.Base, strings.TrimPrefix(path, "/"))
}
