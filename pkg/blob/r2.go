package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var r2Tracer = otel.Tracer("blob/r2")

// R2Config holds connection settings for the S3-compatible backend.
// PublicBaseURL is the CDN-style base URL captured per version at finish
// time so later rotations do not break old versions.
type R2Config struct {
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
	KeyPrefix       string

	// UploadTTL bounds presigned PUT URLs; defaults to 1 hour (the upload
	// intent TTL). ReadTTL bounds signed GET URLs; defaults to 15 minutes.
	UploadTTL time.Duration
	ReadTTL   time.Duration
}

// R2Client talks to an S3-compatible object store (Cloudflare R2, MinIO,
// AWS S3). R2 requires path-style addressing.
type R2Client struct {
	cfg     R2Config
	client  *s3.Client
	presign *s3.PresignClient
}

// NewR2Client builds the S3 client from static credentials. Construction
// performs no network calls.
func NewR2Client(cfg R2Config) (*R2Client, error) {
	if cfg.Bucket == "" || cfg.Endpoint == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("missing required r2 config fields")
	}
	if cfg.UploadTTL <= 0 {
		cfg.UploadTTL = time.Hour
	}
	if cfg.ReadTTL <= 0 {
		cfg.ReadTTL = 15 * time.Minute
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	return &R2Client{
		cfg:     cfg,
		client:  client,
		presign: s3.NewPresignClient(client),
	}, nil
}

// Kind implements Backend.
func (c *R2Client) Kind() Kind { return KindR2 }

// KeyPrefix implements Backend.
func (c *R2Client) KeyPrefix() string { return c.cfg.KeyPrefix }

// PendingKey builds the collision-free key used between start and finish:
// {prefix}/{assetId}/pending-{intentId}/{basename}.
func (c *R2Client) PendingKey(assetID, intentID, basename string) string {
	return c.withPrefix(path.Join(assetID, "pending-"+intentID, basename))
}

// FinalKey builds the authoritative key recorded at finish:
// {prefix}/{assetId}/{version}/{originalFilename}.
func (c *R2Client) FinalKey(assetID string, version int, filename string) string {
	return c.withPrefix(path.Join(assetID, fmt.Sprintf("%d", version), filename))
}

func (c *R2Client) withPrefix(key string) string {
	if c.cfg.KeyPrefix == "" {
		return key
	}
	return path.Join(c.cfg.KeyPrefix, key)
}

// IssueUpload implements Backend: a presigned PUT for the server-chosen key.
func (c *R2Client) IssueUpload(ctx context.Context, req UploadRequest) (*UploadTicket, error) {
	ctx, span := r2Tracer.Start(ctx, "R2.IssueUpload",
		trace.WithAttributes(
			attribute.String("s3.bucket", c.cfg.Bucket),
			attribute.String("s3.key", req.Key),
		),
	)
	defer span.End()

	in := &s3.PutObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(req.Key),
	}
	if req.ContentType != "" {
		in.ContentType = aws.String(req.ContentType)
	}
	out, err := c.presign.PresignPutObject(ctx, in, s3.WithPresignExpires(c.cfg.UploadTTL))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "presign put failed")
		return nil, failure(KindR2, "presign put", err)
	}
	span.SetStatus(codes.Ok, "presigned")
	return &UploadTicket{URL: out.URL, Method: http.MethodPut, Key: req.Key}, nil
}

// ResolvePublicURL implements Backend. Versions store the public base URL
// captured at finish; when the locator has none, fall back to the current
// config.
func (c *R2Client) ResolvePublicURL(loc Locator) (string, error) {
	if loc.R2Key == "" {
		return "", failure(KindR2, "public url", fmt.Errorf("missing r2 key"))
	}
	base := loc.R2PublicURL
	if base == "" {
		base = c.cfg.PublicBaseURL
	}
	if base == "" {
		return "", nil
	}
	return strings.TrimRight(base, "/") + "/" + escapeKey(loc.R2Key), nil
}

// SignedReadURL implements Backend: presigned GET for private buckets.
func (c *R2Client) SignedReadURL(ctx context.Context, loc Locator, ttl time.Duration) (string, error) {
	if loc.R2Key == "" {
		return "", failure(KindR2, "presign get", fmt.Errorf("missing r2 key"))
	}
	if ttl <= 0 {
		ttl = c.cfg.ReadTTL
	}
	out, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(loc.R2Key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", failure(KindR2, "presign get", err)
	}
	return out.URL, nil
}

// ReadBytes implements Backend.
func (c *R2Client) ReadBytes(ctx context.Context, loc Locator) (io.ReadCloser, error) {
	ctx, span := r2Tracer.Start(ctx, "R2.GetObject",
		trace.WithAttributes(
			attribute.String("s3.bucket", c.cfg.Bucket),
			attribute.String("s3.key", loc.R2Key),
		),
	)
	defer span.End()

	if loc.R2Key == "" {
		return nil, failure(KindR2, "get", fmt.Errorf("missing r2 key"))
	}
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(loc.R2Key),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get object failed")
		return nil, failure(KindR2, "get", err)
	}
	span.SetStatus(codes.Ok, "object retrieved")
	return out.Body, nil
}

// PutObject uploads bytes server-side; used by the migration engine. A
// positive size is forwarded as Content-Length so streamed bodies upload
// without SDK buffering.
func (c *R2Client) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	ctx, span := r2Tracer.Start(ctx, "R2.PutObject",
		trace.WithAttributes(
			attribute.String("s3.bucket", c.cfg.Bucket),
			attribute.String("s3.key", key),
		),
	)
	defer span.End()

	in := &s3.PutObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if size > 0 {
		in.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := c.client.PutObject(ctx, in); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "put object failed")
		return failure(KindR2, "put", err)
	}
	span.SetStatus(codes.Ok, "object uploaded")
	return nil
}

// CopyObject issues a server-side copy; used to finalize pending upload keys.
func (c *R2Client) CopyObject(ctx context.Context, fromKey, toKey string) error {
	if fromKey == toKey {
		return nil
	}
	ctx, span := r2Tracer.Start(ctx, "R2.CopyObject",
		trace.WithAttributes(
			attribute.String("s3.bucket", c.cfg.Bucket),
			attribute.String("s3.copy_source", fromKey),
			attribute.String("s3.key", toKey),
		),
	)
	defer span.End()

	src := url.PathEscape(c.cfg.Bucket + "/" + fromKey)
	_, err := c.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(c.cfg.Bucket),
		Key:        aws.String(toKey),
		CopySource: aws.String(src),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "copy failed")
		return failure(KindR2, "copy", err)
	}
	span.SetStatus(codes.Ok, "object copied")
	return nil
}

// Exists reports whether an object is present.
func (c *R2Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, failure(KindR2, "head", err)
	}
	return true, nil
}

// escapeKey percent-encodes each key segment while keeping the slashes.
func escapeKey(key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

func isNotFound(err error) bool {
	var api smithy.APIError
	if errors.As(err, &api) {
		switch api.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	var re *smithyhttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
