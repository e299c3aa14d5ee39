package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

var (
	ErrProfileNotFound = errors.New("storage: profile not configured")
	ErrClientNotFound  = errors.New("storage: client not available")
)

// ClientBuilder creates a Client for a config and an optional bucket override.
type ClientBuilder func(cfg ClientConfig, bucket string) (Client, error)

// Factory owns every configured client and resolves business profiles to them.
type Factory struct {
	settings  Settings
	clients   map[string]Client
	uploads   *semaphore.Weighted
	retries   int
	retryWait time.Duration
	now       func() time.Time
}

// NewFactory builds one client per configured client and per profile bucket
// override, then makes sure each bucket exists. A client that fails to
// initialise is logged and left out.
func NewFactory(ctx context.Context, settings Settings) *Factory {
	return newFactory(ctx, settings, NewS3Client)
}

// NewFactoryWithBuilder is NewFactory with a custom client constructor.
func NewFactoryWithBuilder(ctx context.Context, settings Settings, build ClientBuilder) *Factory {
	return newFactory(ctx, settings, build)
}

func newFactory(ctx context.Context, settings Settings, build ClientBuilder) *Factory {
	concurrency := settings.UploadConcurrency
	if concurrency <= 0 {
		concurrency = DefaultUploadConcurrency
	}
	retries := settings.UploadRetries
	if retries <= 0 {
		retries = DefaultUploadRetries
	}
	wait := settings.RetryWait
	if wait <= 0 {
		wait = DefaultRetryWait
	}

	f := &Factory{
		settings:  settings,
		clients:   make(map[string]Client),
		uploads:   semaphore.NewWeighted(concurrency),
		retries:   retries,
		retryWait: wait,
		now:       time.Now,
	}

	for name, cfg := range settings.Clients {
		cfg.Name = name
		f.register(ctx, clientKey(name, ""), cfg, "", build)
	}
	for _, p := range settings.Profiles {
		if p.Bucket == "" {
			continue
		}
		clientName := f.profileClientName(p)
		cfg, ok := settings.Clients[clientName]
		if !ok {
			continue
		}
		cfg.Name = clientName
		f.register(ctx, clientKey(clientName, p.Bucket), cfg, p.Bucket, build)
	}
	return f
}

func clientKey(name, bucket string) string {
	if bucket == "" {
		return name
	}
	return name + "/" + bucket
}

func (f *Factory) register(ctx context.Context, key string, cfg ClientConfig, bucket string, build ClientBuilder) {
	if _, ok := f.clients[key]; ok {
		return
	}
	logger := log.WithFields(log.Fields{"storage_client": cfg.Name, "provider": cfg.Provider})
	client, err := build(cfg, bucket)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize storage client, it will be unavailable")
		return
	}
	if err := client.EnsureBucket(ctx); err != nil {
		logger.WithError(err).Warn("Could not verify storage bucket")
	}
	f.clients[key] = client
	logger.WithField("bucket", client.Bucket()).Info("Storage client initialized")
}

func (f *Factory) profileClientName(p ProfileConfig) string {
	if p.Client != "" {
		return p.Client
	}
	return f.settings.DefaultClient
}

// Client returns a client by configured name.
func (f *Factory) Client(name string) (Client, error) {
	c, ok := f.clients[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClientNotFound, name)
	}
	return c, nil
}

// Clients returns every available client ordered by key.
func (f *Factory) Clients() []Client {
	keys := make([]string, 0, len(f.clients))
	for k := range f.clients {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Client, 0, len(keys))
	for _, k := range keys {
		out = append(out, f.clients[k])
	}
	return out
}

// Profile returns the named profile with its name filled in.
func (f *Factory) Profile(name string) (ProfileConfig, error) {
	p, ok := f.settings.Profiles[name]
	if !ok {
		return ProfileConfig{}, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	p.Name = name
	return p, nil
}

// ClientForProfile resolves a profile to its client.
func (f *Factory) ClientForProfile(name string) (Client, ProfileConfig, error) {
	p, err := f.Profile(name)
	if err != nil {
		return nil, p, err
	}
	c, err := f.Client(clientKey(f.profileClientName(p), p.Bucket))
	if err != nil {
		return nil, p, err
	}
	return c, p, nil
}

// Stat describes key in the profile's bucket, or fails with ErrObjectNotFound.
func (f *Factory) Stat(ctx context.Context, profile, key string) (*ObjectInfo, error) {
	client, _, err := f.ClientForProfile(profile)
	if err != nil {
		return nil, err
	}
	objects, err := client.ListObjects(ctx, key)
	if err != nil {
		return nil, err
	}
	for i := range objects {
		if objects[i].Key == key {
			return &objects[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
}

// URL returns the public URL of key under profile, or "" when the profile is unavailable.
func (f *Factory) URL(profile, key string) string {
	client, _, err := f.ClientForProfile(profile)
	if err != nil {
		return ""
	}
	return client.BuildURL(key)
}

// ObjectName renders the profile folder and appends a random file name that
// keeps the lower-cased extension of filename.
func (f *Factory) ObjectName(p ProfileConfig, filename string, params map[string]string) (string, error) {
	folder, err := RenderFolder(p.DefaultFolder, params, f.now())
	if err != nil {
		return "", err
	}
	name := strings.ReplaceAll(uuid.New().String(), "-", "") + strings.ToLower(path.Ext(filename))
	return strings.TrimLeft(folder+"/"+name, "/"), nil
}

// RenderFolder substitutes {year}, {month}, {day} and caller placeholders
// such as {user_id}. A placeholder without a value is an error.
func RenderFolder(tmpl string, params map[string]string, now time.Time) (string, error) {
	values := map[string]string{
		"year":  strconv.Itoa(now.Year()),
		"month": strconv.Itoa(int(now.Month())),
		"day":   strconv.Itoa(now.Day()),
	}
	for k, v := range params {
		values[k] = v
	}

	var b strings.Builder
	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return "", fmt.Errorf("unterminated placeholder in folder %q", tmpl)
		}
		name := rest[open+1 : open+end]
		v, ok := values[name]
		if !ok {
			return "", fmt.Errorf("missing path parameter %q for folder %q", name, tmpl)
		}
		b.WriteString(rest[:open])
		b.WriteString(v)
		rest = rest[open+end+1:]
	}
	return strings.Trim(b.String(), "/"), nil
}

// ValidateUpload checks content type and size against the profile.
func ValidateUpload(p ProfileConfig, contentType string, size int64) error {
	if !p.Allows(contentType) {
		return models.NewValidationError("unsupported file type for profile %s: %s", p.Name, contentType)
	}
	if size <= 0 {
		return models.NewValidationError("file is empty")
	}
	if size > p.MaxBytes() {
		return models.NewValidationError("file is too large, max size is %dMB", p.MaxBytes()/(1024*1024))
	}
	return nil
}

// Upload stores body under key through the profile's client. At most
// UploadConcurrency uploads run at once and each is retried with a fixed wait.
func (f *Factory) Upload(ctx context.Context, profile, key string, body io.ReadSeeker, size int64, contentType string) (*ObjectInfo, error) {
	client, _, err := f.ClientForProfile(profile)
	if err != nil {
		return nil, models.NewFileError("storage profile unavailable", err)
	}

	if err := f.uploads.Acquire(ctx, 1); err != nil {
		return nil, models.NewFileError("upload cancelled", err)
	}
	defer f.uploads.Release(1)

	logger := log.WithFields(log.Fields{"profile": profile, "key": key, "bucket": client.Bucket()})
	attempt := 0
	var info *ObjectInfo
	backoff := retry.WithMaxRetries(uint64(f.retries-1), retry.NewConstant(f.retryWait))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if _, err := body.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind upload body: %w", err)
		}
		var putErr error
		info, putErr = client.PutObject(ctx, key, body, size, contentType)
		if putErr != nil {
			logger.WithError(putErr).WithField("attempt", attempt).Warn("Upload attempt failed")
			return retry.RetryableError(putErr)
		}
		return nil
	})
	if err != nil {
		logger.WithError(err).Error("Upload failed")
		return nil, models.NewFileError("upload to object storage failed", err)
	}
	return info, nil
}

// PresignedUpload tells a browser how to upload one object directly.
type PresignedUpload struct {
	Method     PresignMethod     `json:"method"`
	UploadURL  string            `json:"upload_url"`
	Fields     map[string]string `json:"fields,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	ObjectName string            `json:"object_name"`
	URL        string            `json:"url"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// UploadRequest describes a direct upload to presign.
type UploadRequest struct {
	Profile     string
	Filename    string
	ContentType string
	Size        int64
	ForcePost   bool
	PathParams  map[string]string
}

// GeneratePresignedUpload prefers a POST policy when the profile asks for it
// or ForcePost is set. When the provider cannot sign POST policies it falls
// back to PUT, unless POST was forced.
func (f *Factory) GeneratePresignedUpload(ctx context.Context, req UploadRequest) (*PresignedUpload, error) {
	client, p, err := f.ClientForProfile(req.Profile)
	if err != nil {
		return nil, models.NewFileError("storage profile unavailable", err)
	}
	if err := ValidateUpload(p, req.ContentType, req.Size); err != nil {
		return nil, err
	}
	key, err := f.ObjectName(p, req.Filename, req.PathParams)
	if err != nil {
		return nil, models.NewValidationError("%s", err.Error())
	}

	expires := p.Expiry()
	out := &PresignedUpload{ObjectName: key, URL: client.BuildURL(key), ExpiresAt: f.now().Add(expires).UTC()}

	if req.ForcePost || p.PresignMethod == PresignPost {
		policy, err := client.PresignPostPolicy(ctx, key, req.ContentType, p.MaxBytes(), expires)
		switch {
		case err == nil:
			out.Method = PresignPost
			out.UploadURL = policy.URL
			out.Fields = policy.Fields
			return out, nil
		case errors.Is(err, ErrUnsupported) && !req.ForcePost:
			log.WithFields(log.Fields{"profile": req.Profile, "storage_client": client.Name()}).
				Info("POST policy unsupported, falling back to presigned PUT")
		case errors.Is(err, ErrUnsupported):
			return nil, models.NewFileError("storage provider does not support POST uploads", err)
		default:
			return nil, models.NewFileError("could not generate upload policy", err)
		}
	}

	putURL, err := client.PresignPut(ctx, key, req.ContentType, expires)
	if err != nil {
		return nil, models.NewFileError("could not generate upload URL", err)
	}
	out.Method = PresignPut
	out.UploadURL = putURL
	if req.ContentType != "" {
		out.Headers = map[string]string{"Content-Type": req.ContentType}
	}
	return out, nil
}
