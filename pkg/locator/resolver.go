package locator

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ResolverConfig configures URL resolution for locators.
//
// Authentication follows the AWS SDK v2 default chain unless explicit
// credentials are provided; see the Endpoint field for S3-compatible stores.
type ResolverConfig struct {
	// Region is the default AWS region for S3 locators that carry none.
	Region string

	// Endpoint is a custom endpoint URL for S3-compatible stores.
	// Leave empty for AWS S3.
	Endpoint string

	// Profile is the AWS profile name to use from shared config.
	Profile string

	// AccessKeyID/SecretAccessKey are explicit credentials. Both or neither.
	AccessKeyID     string
	SecretAccessKey string

	// ForcePathStyle forces path-style URLs (bucket in path, not subdomain).
	// Required for most S3-compatible stores.
	ForcePathStyle bool

	// PresignExpiry bounds the lifetime of presigned S3 URLs.
	// Zero uses DefaultPresignExpiry.
	PresignExpiry time.Duration
}

// DefaultPresignExpiry is the default lifetime for presigned S3 URLs.
const DefaultPresignExpiry = 15 * time.Minute

// Resolver turns locators into fetchable URLs.
//
// S3 locators resolve to presigned GET URLs so that remote services can read
// private objects without holding credentials. The other variants resolve to
// their well-known public URL forms.
type Resolver struct {
	presign *s3.PresignClient
	expiry  time.Duration
}

// NewResolver creates a Resolver with a presigning S3 client.
func NewResolver(ctx context.Context, cfg ResolverConfig) (*Resolver, error) {
	if (cfg.AccessKeyID != "") != (cfg.SecretAccessKey != "") {
		return nil, fmt.Errorf("%w: access key id and secret must be provided together", ErrIncomplete)
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		},
	}

	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}

	return &Resolver{
		presign: s3.NewPresignClient(s3.NewFromConfig(awsCfg, s3Opts...)),
		expiry:  expiry,
	}, nil
}

// ResolveURL returns a URL a remote service can GET the object from.
func (r *Resolver) ResolveURL(ctx context.Context, l Locator) (string, error) {
	if l == nil {
		return "", fmt.Errorf("%w: nil locator", ErrIncomplete)
	}
	if err := l.Validate(); err != nil {
		return "", err
	}

	switch v := l.(type) {
	case S3Locator:
		return r.resolveS3(ctx, v)
	case BlobStorageLocator:
		return fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s",
			v.Account, v.Container, escapePath(v.Path)), nil
	case CloudStorageLocator:
		return fmt.Sprintf("https://storage.googleapis.com/%s/%s",
			v.Bucket, escapePath(v.Path)), nil
	case HTTPLocator:
		return v.URL, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, l.Kind())
	}
}

func (r *Resolver) resolveS3(ctx context.Context, l S3Locator) (string, error) {
	if r == nil || r.presign == nil {
		// No presigner configured: fall back to the virtual-hosted public form.
		region := l.Region
		if region == "" {
			region = "us-east-1"
		}
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", l.Bucket, region, escapePath(l.Key)), nil
	}

	req, err := r.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.Bucket),
		Key:    aws.String(l.Key),
	}, s3.WithPresignExpires(r.expiry))
	if err != nil {
		return "", fmt.Errorf("presign s3 object %s/%s: %w", l.Bucket, l.Key, err)
	}
	return req.URL, nil
}

// escapePath escapes each path segment while keeping the separators.
func escapePath(p string) string {
	u := url.URL{Path: p}
	return u.EscapedPath()
}
