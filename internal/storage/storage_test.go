package storage

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minioConfig(endpoint string) ClientConfig {
	return ClientConfig{
		Name:      "local",
		Provider:  ProviderMinio,
		Endpoint:  endpoint,
		Bucket:    "recipes",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	}
}

func TestS3ClientObjectLifecycle(t *testing.T) {
	fake := newFakeS3(t)
	client, err := newS3Client(minioConfig(fake.server.URL), "", fake.server.Client())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, client.EnsureBucket(ctx))
	require.NoError(t, client.EnsureBucket(ctx))

	body := []byte("hello recipe")
	info, err := client.PutObject(ctx, "images/2024/a.jpg", bytes.NewReader(body), int64(len(body)), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), info.Size)
	assert.NotEmpty(t, info.ETag)
	assert.NotContains(t, info.ETag, `"`)

	exists, err := client.ObjectExists(ctx, "images/2024/a.jpg")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = client.ObjectExists(ctx, "images/missing.jpg")
	require.NoError(t, err)
	assert.False(t, exists)

	rc, got, err := client.GetObject(ctx, "images/2024/a.jpg")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, body, data)
	assert.Equal(t, "image/jpeg", got.ContentType)

	_, _, err = client.GetObject(ctx, "images/none.jpg")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, client.MoveObject(ctx, "images/2024/a.jpg", "archive/a.jpg"))
	_, moved := fake.object("recipes", "archive/a.jpg")
	assert.True(t, moved)
	_, stale := fake.object("recipes", "images/2024/a.jpg")
	assert.False(t, stale)

	_, err = client.PutObject(ctx, "archive/b.jpg", bytes.NewReader(body), int64(len(body)), "image/jpeg")
	require.NoError(t, err)

	listed, err := client.ListObjects(ctx, "archive/")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "archive/a.jpg", listed[0].Key)

	require.NoError(t, client.DeleteObjects(ctx, []string{"archive/a.jpg", "archive/b.jpg"}))
	listed, err = client.ListObjects(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestEnsureBucketWithoutCreationCapability(t *testing.T) {
	fake := newFakeS3(t)
	cfg := minioConfig(fake.server.URL)
	cfg.Provider = ProviderS3
	client, err := newS3Client(cfg, "", fake.server.Client())
	require.NoError(t, err)

	err = client.EnsureBucket(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestBuildURLPrecedence(t *testing.T) {
	cfg := minioConfig("minio:9000")

	c, err := newS3Client(cfg, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000/recipes/a/b.png", c.BuildURL("a/b.png"))

	cfg.PublicEndpoint = "files.example.com"
	cfg.UseSSL = true
	c, err = newS3Client(cfg, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/recipes/a/b.png", c.BuildURL("/a/b.png"))

	cfg.CDNBaseURL = "https://cdn.example.com/"
	c, err = newS3Client(cfg, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a/b.png", c.BuildURL("a/b.png"))
}

func TestPresignRewritesHost(t *testing.T) {
	cfg := minioConfig("minio:9000")
	cfg.PublicEndpoint = "localhost:9000"
	c, err := newS3Client(cfg, "", nil)
	require.NoError(t, err)
	ctx := context.Background()

	get, err := c.PresignGet(ctx, "a.png", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(get, "http://localhost:9000/recipes/a.png?"), get)
	assert.Contains(t, get, "X-Amz-Signature=")

	put, err := c.PresignPut(ctx, "a.png", "image/png", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(put, "http://localhost:9000/recipes/a.png?"), put)

	cfg.Provider = ProviderR2
	r2, err := newS3Client(cfg, "", nil)
	require.NoError(t, err)
	get, err = r2.PresignGet(ctx, "a.png", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(get, "http://minio:9000/"), get)
}

func TestPresignPostPolicy(t *testing.T) {
	c, err := newS3Client(minioConfig("minio:9000"), "", nil)
	require.NoError(t, err)

	policy, err := c.PresignPostPolicy(context.Background(), "avatars/x.png", "image/png", 1024, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000/recipes", policy.URL)
	assert.Equal(t, "avatars/x.png", policy.Fields["key"])
	assert.Equal(t, "image/png", policy.Fields["Content-Type"])
	assert.Equal(t, sigV4Algorithm, policy.Fields["x-amz-algorithm"])

	raw, err := base64.StdEncoding.DecodeString(policy.Fields["policy"])
	require.NoError(t, err)
	var doc struct {
		Expiration string            `json:"expiration"`
		Conditions []json.RawMessage `json:"conditions"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, string(raw), `["content-length-range",1,1024]`)
	assert.Contains(t, string(raw), `["eq","$Content-Type","image/png"]`)
	assert.Contains(t, string(raw), `{"bucket":"recipes"}`)

	date := strings.SplitN(policy.Fields["x-amz-credential"], "/", 3)[1]
	mac := hmac.New(sha256.New, signingKey("minioadmin", date, "us-east-1"))
	mac.Write([]byte(policy.Fields["policy"]))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), policy.Fields["x-amz-signature"])

	r2cfg := minioConfig("account.r2.cloudflarestorage.com")
	r2cfg.Provider = ProviderR2
	r2, err := newS3Client(r2cfg, "", nil)
	require.NoError(t, err)
	_, err = r2.PresignPostPolicy(context.Background(), "a", "image/png", 10, time.Minute)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestSignPostPolicyIncludesSessionTokenAndACL(t *testing.T) {
	fields, err := signPostPolicy(postPolicyInput{
		Bucket:      "b",
		Key:         "k",
		MaxSize:     5,
		ACL:         "public-read",
		Region:      "eu-west-1",
		Credentials: aws.Credentials{AccessKeyID: "AK", SecretAccessKey: "SK", SessionToken: "TOKEN"},
		Now:         time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
		Expires:     time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, "AK/20240305/eu-west-1/s3/aws4_request", fields["x-amz-credential"])
	assert.Equal(t, "20240305T100000Z", fields["x-amz-date"])
	assert.Equal(t, "public-read", fields["acl"])
	assert.Equal(t, "TOKEN", fields["x-amz-security-token"])

	_, err = signPostPolicy(postPolicyInput{Bucket: "b", Key: "k", MaxSize: 0})
	assert.Error(t, err)
}

func TestRenderFolder(t *testing.T) {
	now := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	got, err := RenderFolder("avatars/{user_id}/{year}/{month}/{day}", map[string]string{"user_id": "u1"}, now)
	require.NoError(t, err)
	assert.Equal(t, "avatars/u1/2024/3/5", got)

	got, err = RenderFolder("/static/", nil, now)
	require.NoError(t, err)
	assert.Equal(t, "static", got)

	_, err = RenderFolder("avatars/{user_id}", nil, now)
	assert.Error(t, err)

	_, err = RenderFolder("avatars/{user_id", nil, now)
	assert.Error(t, err)
}

func TestProfileAllows(t *testing.T) {
	p := ProfileConfig{AllowedFileTypes: []string{"image/*", "application/pdf"}}
	assert.True(t, p.Allows("image/png"))
	assert.True(t, p.Allows("IMAGE/JPEG; charset=binary"))
	assert.True(t, p.Allows("application/pdf"))
	assert.False(t, p.Allows("text/plain"))
	assert.False(t, p.Allows("imagex/png"))
	assert.True(t, ProfileConfig{}.Allows("text/plain"))
}

func TestValidateUpload(t *testing.T) {
	p := ProfileConfig{Name: "avatars", AllowedFileTypes: []string{"image/*"}, MaxFileSizeMB: 1}

	assert.NoError(t, ValidateUpload(p, "image/png", 1024))
	assert.True(t, models.IsKind(ValidateUpload(p, "text/plain", 10), models.KindValidation))
	assert.True(t, models.IsKind(ValidateUpload(p, "image/png", 2*1024*1024), models.KindValidation))
	assert.True(t, models.IsKind(ValidateUpload(p, "image/png", 0), models.KindValidation))
}

func TestSettingsValidate(t *testing.T) {
	s := Settings{
		DefaultClient: "local",
		Clients:       map[string]ClientConfig{"local": minioConfig("minio:9000")},
		Profiles: map[string]ProfileConfig{
			"avatars": {DefaultFolder: "avatars"},
			"reports": {Client: "missing"},
		},
	}
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown client "missing"`)

	delete(s.Profiles, "reports")
	assert.NoError(t, s.Validate())
}

// stubClient is an in-memory Client whose uploads can be made to fail.
type stubClient struct {
	name       string
	caps       Capabilities
	failPuts   int
	puts       int
	postCalled bool
}

func (s *stubClient) Name() string               { return s.name }
func (s *stubClient) Bucket() string             { return "stub" }
func (s *stubClient) Capabilities() Capabilities { return s.caps }

func (s *stubClient) EnsureBucket(context.Context) error { return nil }

func (s *stubClient) PutObject(_ context.Context, key string, body io.ReadSeeker, size int64, ct string) (*ObjectInfo, error) {
	s.puts++
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != size {
		return nil, errors.New("short body")
	}
	if s.puts <= s.failPuts {
		return nil, errors.New("transient failure")
	}
	return &ObjectInfo{Key: key, Size: size, ETag: "etag", ContentType: ct}, nil
}

func (s *stubClient) GetObject(context.Context, string) (io.ReadCloser, *ObjectInfo, error) {
	return nil, nil, ErrObjectNotFound
}
func (s *stubClient) DeleteObject(context.Context, string) error                { return nil }
func (s *stubClient) DeleteObjects(context.Context, []string) error             { return nil }
func (s *stubClient) ObjectExists(context.Context, string) (bool, error)        { return false, nil }
func (s *stubClient) ListObjects(context.Context, string) ([]ObjectInfo, error) { return nil, nil }
func (s *stubClient) CopyObject(context.Context, string, string) error          { return nil }
func (s *stubClient) MoveObject(context.Context, string, string) error          { return nil }
func (s *stubClient) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://stub/" + key + "?get", nil
}
func (s *stubClient) PresignPut(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://stub/" + key + "?put", nil
}
func (s *stubClient) PresignPostPolicy(_ context.Context, key, _ string, _ int64, _ time.Duration) (*PostPolicy, error) {
	s.postCalled = true
	if !s.caps.SupportsPostPolicy {
		return nil, ErrUnsupported
	}
	return &PostPolicy{URL: "https://stub", Fields: map[string]string{"key": key}}, nil
}
func (s *stubClient) BuildURL(key string) string { return "https://stub/" + key }

func stubFactory(t *testing.T, client *stubClient, profiles map[string]ProfileConfig) *Factory {
	t.Helper()
	settings := Settings{
		DefaultClient: client.name,
		RetryWait:     time.Millisecond,
		Clients:       map[string]ClientConfig{client.name: {Provider: ProviderMinio, Bucket: "stub"}},
		Profiles:      profiles,
	}
	return newFactory(context.Background(), settings, func(ClientConfig, string) (Client, error) {
		return client, nil
	})
}

func TestFactoryUploadRetries(t *testing.T) {
	client := &stubClient{name: "stub", failPuts: 2}
	f := stubFactory(t, client, map[string]ProfileConfig{"images": {DefaultFolder: "images"}})

	body := []byte("payload")
	info, err := f.Upload(context.Background(), "images", "images/a.png", bytes.NewReader(body), int64(len(body)), "image/png")
	require.NoError(t, err)
	assert.Equal(t, 3, client.puts)
	assert.Equal(t, "etag", info.ETag)

	client.puts, client.failPuts = 0, 10
	_, err = f.Upload(context.Background(), "images", "images/b.png", bytes.NewReader(body), int64(len(body)), "image/png")
	require.Error(t, err)
	assert.Equal(t, DefaultUploadRetries, client.puts)
	assert.True(t, models.IsKind(err, models.KindFile))

	_, err = f.Upload(context.Background(), "unknown", "x", bytes.NewReader(body), int64(len(body)), "image/png")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

// gatedClient holds every PutObject until gate is closed and records how
// many uploads were in flight at once.
type gatedClient struct {
	*stubClient
	gate     chan struct{}
	started  chan string
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (g *gatedClient) PutObject(ctx context.Context, key string, _ io.ReadSeeker, size int64, ct string) (*ObjectInfo, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	g.started <- key
	select {
	case <-g.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &ObjectInfo{Key: key, Size: size, ContentType: ct}, nil
}

func TestFactoryUploadConcurrencyIsBounded(t *testing.T) {
	client := &gatedClient{
		stubClient: &stubClient{name: "stub"},
		gate:       make(chan struct{}),
		started:    make(chan string, 3),
	}
	settings := Settings{
		DefaultClient:     "stub",
		UploadConcurrency: 1,
		RetryWait:         time.Millisecond,
		Clients:           map[string]ClientConfig{"stub": {Provider: ProviderMinio, Bucket: "stub"}},
		Profiles:          map[string]ProfileConfig{"images": {DefaultFolder: "images"}},
	}
	f := newFactory(context.Background(), settings, func(ClientConfig, string) (Client, error) {
		return client, nil
	})

	body := []byte("payload")
	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.Upload(context.Background(), "images", fmt.Sprintf("images/%d.png", i), bytes.NewReader(body), int64(len(body)), "image/png")
			errs <- err
		}(i)
	}

	select {
	case <-client.started:
	case <-time.After(2 * time.Second):
		t.Fatal("no upload reached the client")
	}
	select {
	case key := <-client.started:
		t.Fatalf("upload %s started while another was in flight", key)
	case <-time.After(50 * time.Millisecond):
	}

	// a waiter gives up when its context ends
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Upload(ctx, "images", "images/cancelled.png", bytes.NewReader(body), int64(len(body)), "image/png")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindFile))

	close(client.gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, client.peak.Load())
	assert.Len(t, client.started, 2)
}

func TestGeneratePresignedUploadFallsBackToPut(t *testing.T) {
	client := &stubClient{name: "stub"}
	f := stubFactory(t, client, map[string]ProfileConfig{
		"gallery": {DefaultFolder: "gallery/{year}", PresignMethod: PresignPost, AllowedFileTypes: []string{"image/*"}},
	})
	f.now = func() time.Time { return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	up, err := f.GeneratePresignedUpload(ctx, UploadRequest{Profile: "gallery", Filename: "Photo.JPG", ContentType: "image/jpeg", Size: 100})
	require.NoError(t, err)
	assert.True(t, client.postCalled)
	assert.Equal(t, PresignPut, up.Method)
	assert.True(t, strings.HasPrefix(up.ObjectName, "gallery/2024/"))
	assert.True(t, strings.HasSuffix(up.ObjectName, ".jpg"))
	assert.Equal(t, "image/jpeg", up.Headers["Content-Type"])
	assert.Equal(t, "https://stub/"+up.ObjectName, up.URL)

	_, err = f.GeneratePresignedUpload(ctx, UploadRequest{Profile: "gallery", Filename: "a.png", ContentType: "image/png", Size: 100, ForcePost: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupported)

	client.caps.SupportsPostPolicy = true
	up, err = f.GeneratePresignedUpload(ctx, UploadRequest{Profile: "gallery", Filename: "a.png", ContentType: "image/png", Size: 100})
	require.NoError(t, err)
	assert.Equal(t, PresignPost, up.Method)
	assert.Equal(t, up.ObjectName, up.Fields["key"])

	_, err = f.GeneratePresignedUpload(ctx, UploadRequest{Profile: "gallery", Filename: "a.txt", ContentType: "text/plain", Size: 100})
	assert.True(t, models.IsKind(err, models.KindValidation))
}

func TestFactoryProfileBucketOverride(t *testing.T) {
	fake := newFakeS3(t, "recipes")
	settings := Settings{
		DefaultClient: "local",
		Clients:       map[string]ClientConfig{"local": minioConfig(fake.server.URL)},
		Profiles: map[string]ProfileConfig{
			"images":  {DefaultFolder: "images"},
			"reports": {DefaultFolder: "reports", Bucket: "private-reports"},
		},
	}
	f := newFactory(context.Background(), settings, func(cfg ClientConfig, bucket string) (Client, error) {
		return newS3Client(cfg, bucket, fake.server.Client())
	})

	images, _, err := f.ClientForProfile("images")
	require.NoError(t, err)
	assert.Equal(t, "recipes", images.Bucket())

	reports, p, err := f.ClientForProfile("reports")
	require.NoError(t, err)
	assert.Equal(t, "private-reports", reports.Bucket())
	assert.Equal(t, "reports", p.Name)

	_, created := fake.buckets["private-reports"]
	assert.True(t, created)
	assert.Len(t, f.Clients(), 2)
}
