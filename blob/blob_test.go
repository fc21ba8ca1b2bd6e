package blob

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var minio = S3Config{
	Region:    "us-east-1",
	AccessKey: "minioadmin",
	SecretKey: "minioadmin",
	Endpoint:  "http://127.0.0.1:9000",
	Bucket:    "media",
}

func TestS3Resolver_PresignsLocally(t *testing.T) {
	r, err := NewS3Resolver(context.Background(), minio)
	require.NoError(t, err)

	url, err := r.URL(context.Background(), "/img/a.png")
	require.NoError(t, err)
	assert.Contains(t, url, "http://127.0.0.1:9000/media/img/a.png?")
	assert.Contains(t, url, "X-Amz-Expires=900")
	assert.Contains(t, url, "X-Amz-Signature=")
}

func TestNewS3Resolver_Options(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-west-1", lo.Region)
		require.NotNil(t, lo.Credentials)
		creds, err := lo.Credentials.Retrieve(ctx)
		require.NoError(t, err)
		assert.Equal(t, "minioadmin", creds.AccessKeyID)
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}

	c := minio
	c.Region = "eu-west-1"
	c.Expiry = time.Hour
	r, err := NewS3Resolver(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, r.expiry)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}

func TestNewS3Resolver_Errors(t *testing.T) {
	_, err := NewS3Resolver(context.Background(), S3Config{})
	require.Error(t, err)

	origLoad := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = origLoad })
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}
	_, err = NewS3Resolver(context.Background(), minio)
	require.ErrorContains(t, err, "no config")
}

func TestS3Resolver_PresignError(t *testing.T) {
	origPresign := presignGetObject
	t.Cleanup(func() { presignGetObject = origPresign })

	var got *s3.GetObjectInput
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		got = in
		return nil, errors.New("signer down")
	}

	r := &S3Resolver{bucket: "media", expiry: DefaultExpiry}
	_, err := r.URL(context.Background(), "doc.pdf")
	require.ErrorContains(t, err, "presign doc.pdf: signer down")
	assert.Equal(t, "media", aws.ToString(got.Bucket))
	assert.Equal(t, "doc.pdf", aws.ToString(got.Key))
}

func TestPrefixResolver(t *testing.T) {
	url, err := PrefixResolver{Base: "https://cdn.example.com/files/"}.URL(context.Background(), "/img/a b.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/files/img/a%20b.png", url)

	_, err = PrefixResolver{}.URL(context.Background(), "x")
	require.Error(t, err)
}
