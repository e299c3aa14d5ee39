package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const deleteConcurrency = 8

// s3Client implements Client for every supported provider; behaviour that
// differs between providers is switched on caps.
type s3Client struct {
	cfg       ClientConfig
	caps      Capabilities
	bucket    string
	api       *s3.Client
	presigner *s3.PresignClient
	creds     aws.CredentialsProvider

	// internalBase and publicBase are scheme://host[:port] without a trailing slash.
	internalBase string
	publicBase   string
}

// NewS3Client builds a client for cfg. bucket overrides cfg.Bucket when set.
func NewS3Client(cfg ClientConfig, bucket string) (Client, error) {
	return newS3Client(cfg, bucket, nil)
}

func newS3Client(cfg ClientConfig, bucket string, httpClient *http.Client) (*s3Client, error) {
	if bucket == "" {
		bucket = cfg.Bucket
	}
	if bucket == "" {
		return nil, fmt.Errorf("storage client %q: no bucket", cfg.Name)
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
		if cfg.Provider == ProviderR2 {
			region = "auto"
		}
	}

	c := &s3Client{
		cfg:    cfg,
		caps:   CapabilitiesFor(cfg.Provider),
		bucket: bucket,
		creds:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	}
	c.cfg.Region = region
	if cfg.Endpoint != "" {
		c.internalBase = baseURL(cfg.Endpoint, cfg.UseSSL)
	}
	if cfg.PublicEndpoint != "" {
		c.publicBase = baseURL(cfg.PublicEndpoint, cfg.UseSSL)
	}

	opts := s3.Options{
		Region:      region,
		Credentials: c.creds,
	}
	if c.internalBase != "" {
		opts.BaseEndpoint = aws.String(c.internalBase)
		opts.UsePathStyle = true
	}
	if cfg.Provider != ProviderS3 {
		// third-party providers reject the default CRC trailers
		opts.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		opts.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	}
	if httpClient != nil {
		opts.HTTPClient = httpClient
	}

	c.api = s3.New(opts)
	c.presigner = s3.NewPresignClient(c.api)
	return c, nil
}

func baseURL(endpoint string, useSSL bool) string {
	endpoint = strings.TrimRight(endpoint, "/")
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

func (c *s3Client) Name() string               { return c.cfg.Name }
func (c *s3Client) Bucket() string             { return c.bucket }
func (c *s3Client) Capabilities() Capabilities { return c.caps }

func (c *s3Client) logger() *log.Entry {
	return log.WithFields(log.Fields{"storage_client": c.cfg.Name, "provider": c.cfg.Provider, "bucket": c.bucket})
}

// EnsureBucket creates the bucket when it is missing and the provider allows it.
func (c *s3Client) EnsureBucket(ctx context.Context) error {
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err == nil {
		c.logger().Debug("Bucket exists")
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("s3 head bucket %s: %w", c.bucket, err)
	}
	if !c.caps.SupportsBucketCreation {
		return fmt.Errorf("s3 bucket %s does not exist: %w", c.bucket, ErrUnsupported)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(c.bucket)}
	if c.cfg.Provider == ProviderS3 && c.cfg.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.cfg.Region),
		}
	}
	if _, err := c.api.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("s3 create bucket %s: %w", c.bucket, err)
	}
	c.logger().Info("Bucket created")
	return nil
}

func (c *s3Client) acl() types.ObjectCannedACL {
	if c.caps.SupportsACL && c.cfg.DefaultACL != "" {
		return types.ObjectCannedACL(c.cfg.DefaultACL)
	}
	return ""
}

// PutObject uploads body and returns the stored object's metadata.
func (c *s3Client) PutObject(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) (*ObjectInfo, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		ACL:           c.acl(),
	}
	if _, err := c.api.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("s3 put %s/%s: %w", c.bucket, key, err)
	}

	head, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("s3 head %s/%s after upload: %w", c.bucket, key, err)
	}
	info := headInfo(key, head)
	c.logger().WithFields(log.Fields{"key": key, "size": info.Size, "etag": info.ETag}).Info("Object uploaded")
	return info, nil
}

func headInfo(key string, head *s3.HeadObjectOutput) *ObjectInfo {
	return &ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(head.ContentLength),
		ETag:         trimETag(aws.ToString(head.ETag)),
		ContentType:  aws.ToString(head.ContentType),
		LastModified: aws.ToTime(head.LastModified),
	}
}

func trimETag(etag string) string {
	return strings.Trim(etag, `"`)
}

// GetObject streams an object. The caller closes the reader.
func (c *s3Client) GetObject(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
	if err != nil {
		if isNotFound(err) {
			return nil, nil, fmt.Errorf("s3 get %s/%s: %w", c.bucket, key, ErrObjectNotFound)
		}
		return nil, nil, fmt.Errorf("s3 get %s/%s: %w", c.bucket, key, err)
	}
	info := &ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ETag:         trimETag(aws.ToString(out.ETag)),
		ContentType:  aws.ToString(out.ContentType),
		LastModified: aws.ToTime(out.LastModified),
	}
	return out.Body, info, nil
}

func (c *s3Client) DeleteObject(ctx context.Context, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
	if err != nil {
		return fmt.Errorf("s3 delete %s/%s: %w", c.bucket, key, err)
	}
	c.logger().WithField("key", key).Info("Object deleted")
	return nil
}

// DeleteObjects removes keys concurrently and returns the first failure.
func (c *s3Client) DeleteObjects(ctx context.Context, keys []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(deleteConcurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			return c.DeleteObject(ctx, key)
		})
	}
	return g.Wait()
}

// ObjectExists issues a HEAD; a 404 means false.
func (c *s3Client) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("s3 head %s/%s: %w", c.bucket, key, err)
}

func (c *s3Client) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(c.bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	objects := []ObjectInfo{}
	pages := s3.NewListObjectsV2Paginator(c.api, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list %s/%s: %w", c.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				ETag:         trimETag(aws.ToString(obj.ETag)),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return objects, nil
}

func (c *s3Client) CopyObject(ctx context.Context, srcKey, dstKey string) error {
	_, err := c.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(c.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(copySource(c.bucket, srcKey)),
		ACL:        c.acl(),
	})
	if err != nil {
		return fmt.Errorf("s3 copy %s to %s: %w", srcKey, dstKey, err)
	}
	return nil
}

func copySource(bucket, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return bucket + "/" + strings.Join(parts, "/")
}

// MoveObject copies then deletes the source.
func (c *s3Client) MoveObject(ctx context.Context, srcKey, dstKey string) error {
	if err := c.CopyObject(ctx, srcKey, dstKey); err != nil {
		return err
	}
	return c.DeleteObject(ctx, srcKey)
}

func (c *s3Client) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	req, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("s3 presign get %s/%s: %w", c.bucket, key, err)
	}
	return c.rewriteHost(req.URL), nil
}

func (c *s3Client) PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	req, err := c.presigner.PresignPutObject(ctx, input, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("s3 presign put %s/%s: %w", c.bucket, key, err)
	}
	return c.rewriteHost(req.URL), nil
}

// PresignPostPolicy builds a signed form upload limited to 1..maxSize bytes
// of contentType.
func (c *s3Client) PresignPostPolicy(ctx context.Context, key, contentType string, maxSize int64, expires time.Duration) (*PostPolicy, error) {
	if !c.caps.SupportsPostPolicy {
		return nil, ErrUnsupported
	}
	creds, err := c.creds.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 credentials: %w", err)
	}
	fields, err := signPostPolicy(postPolicyInput{
		Bucket:      c.bucket,
		Key:         key,
		ContentType: contentType,
		MaxSize:     maxSize,
		ACL:         string(c.acl()),
		Region:      c.cfg.Region,
		Credentials: creds,
		Now:         time.Now().UTC(),
		Expires:     expires,
	})
	if err != nil {
		return nil, err
	}
	return &PostPolicy{URL: c.rewriteHost(c.bucketURL()), Fields: fields}, nil
}

// bucketURL is the form action for POST uploads.
func (c *s3Client) bucketURL() string {
	if c.internalBase != "" {
		return c.internalBase + "/" + c.bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.bucket, c.cfg.Region)
}

// rewriteHost swaps the internal endpoint for the public one on providers
// reached through a private network address.
func (c *s3Client) rewriteHost(raw string) string {
	if !c.caps.NeedsHostRewrite || c.publicBase == "" || c.internalBase == "" {
		return raw
	}
	if strings.HasPrefix(raw, c.internalBase) {
		return c.publicBase + strings.TrimPrefix(raw, c.internalBase)
	}
	return raw
}

// BuildURL returns the public URL of key: CDN first, then the public
// endpoint, then the internal endpoint.
func (c *s3Client) BuildURL(key string) string {
	key = strings.TrimLeft(key, "/")
	switch {
	case c.cfg.CDNBaseURL != "":
		return strings.TrimRight(c.cfg.CDNBaseURL, "/") + "/" + key
	case c.publicBase != "":
		return c.publicBase + "/" + c.bucket + "/" + key
	case c.internalBase != "":
		return c.internalBase + "/" + c.bucket + "/" + key
	default:
		return c.bucketURL() + "/" + key
	}
}

// isNotFound recognises the different shapes a 404 takes in the SDK.
func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return true
	}
	return false
}
