package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultUploadConcurrency = 5
	DefaultUploadRetries     = 3
	DefaultRetryWait         = time.Second
	DefaultMaxFileSizeMB     = 10
	DefaultPresignExpiry     = time.Hour
)

// Provider names the flavour of S3-compatible service behind a client.
type Provider string

const (
	ProviderS3    Provider = "s3"
	ProviderMinio Provider = "minio"
	ProviderR2    Provider = "r2"
)

// Capabilities describes what a provider supports beyond plain object I/O.
type Capabilities struct {
	SupportsACL            bool
	SupportsBucketCreation bool
	SupportsPostPolicy     bool
	NeedsHostRewrite       bool
}

// CapabilitiesFor returns the capability set of provider.
func CapabilitiesFor(p Provider) Capabilities {
	switch p {
	case ProviderS3:
		return Capabilities{SupportsACL: true, SupportsPostPolicy: true}
	case ProviderMinio:
		return Capabilities{SupportsBucketCreation: true, SupportsPostPolicy: true, NeedsHostRewrite: true}
	case ProviderR2:
		return Capabilities{SupportsBucketCreation: true}
	default:
		return Capabilities{}
	}
}

// ClientConfig configures one named storage client.
type ClientConfig struct {
	Name           string   `mapstructure:"name" json:"name"`
	Provider       Provider `mapstructure:"provider" json:"provider"`
	Endpoint       string   `mapstructure:"endpoint" json:"endpoint"`
	PublicEndpoint string   `mapstructure:"public_endpoint" json:"public_endpoint"`
	CDNBaseURL     string   `mapstructure:"cdn_base_url" json:"cdn_base_url"`
	Region         string   `mapstructure:"region" json:"region"`
	Bucket         string   `mapstructure:"bucket" json:"bucket"`
	AccessKey      string   `mapstructure:"access_key" json:"-"`
	SecretKey      string   `mapstructure:"secret_key" json:"-"`
	UseSSL         bool     `mapstructure:"use_ssl" json:"use_ssl"`
	DefaultACL     string   `mapstructure:"default_acl" json:"default_acl"`
}

// PresignMethod selects how browsers upload directly to a profile.
type PresignMethod string

const (
	PresignPost PresignMethod = "post"
	PresignPut  PresignMethod = "put"
)

// ProfileConfig maps a business scenario such as user avatars onto a client.
type ProfileConfig struct {
	Name             string        `mapstructure:"name" json:"name"`
	Client           string        `mapstructure:"client" json:"client"`
	Bucket           string        `mapstructure:"bucket" json:"bucket,omitempty"`
	DefaultFolder    string        `mapstructure:"default_folder" json:"default_folder"`
	AllowedFileTypes []string      `mapstructure:"allowed_file_types" json:"allowed_file_types"`
	MaxFileSizeMB    int64         `mapstructure:"max_file_size_mb" json:"max_file_size_mb"`
	PresignMethod    PresignMethod `mapstructure:"presign_method" json:"presign_method"`
	Expires          time.Duration `mapstructure:"expires" json:"expires"`
}

// MaxBytes is the upload size limit of the profile.
func (p ProfileConfig) MaxBytes() int64 {
	mb := p.MaxFileSizeMB
	if mb <= 0 {
		mb = DefaultMaxFileSizeMB
	}
	return mb * 1024 * 1024
}

// Expiry is the presign lifetime of the profile.
func (p ProfileConfig) Expiry() time.Duration {
	if p.Expires <= 0 {
		return DefaultPresignExpiry
	}
	return p.Expires
}

// Allows reports whether contentType is accepted. Entries like image/* match
// every subtype; an empty list accepts everything.
func (p ProfileConfig) Allows(contentType string) bool {
	if len(p.AllowedFileTypes) == 0 {
		return true
	}
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	for _, allowed := range p.AllowedFileTypes {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == "*/*" || allowed == ct {
			return true
		}
		if prefix, ok := strings.CutSuffix(allowed, "/*"); ok && strings.HasPrefix(ct, prefix+"/") {
			return true
		}
	}
	return false
}

// Settings is the storage section of the application config.
type Settings struct {
	DefaultClient     string                   `mapstructure:"default_client" json:"default_client"`
	UploadConcurrency int64                    `mapstructure:"upload_concurrency" json:"upload_concurrency"`
	UploadRetries     int                      `mapstructure:"upload_retries" json:"upload_retries"`
	RetryWait         time.Duration            `mapstructure:"retry_wait" json:"retry_wait"`
	Clients           map[string]ClientConfig  `mapstructure:"clients" json:"clients"`
	Profiles          map[string]ProfileConfig `mapstructure:"profiles" json:"profiles"`
}

// Validate checks that every profile points at a configured client and every
// client names a known provider.
func (s Settings) Validate() error {
	var errs []error
	for name, c := range s.Clients {
		switch c.Provider {
		case ProviderS3, ProviderMinio, ProviderR2:
		default:
			errs = append(errs, fmt.Errorf("storage client %q: unknown provider %q", name, c.Provider))
		}
		if c.Bucket == "" {
			errs = append(errs, fmt.Errorf("storage client %q: bucket is required", name))
		}
		if c.Provider != ProviderS3 && c.Endpoint == "" {
			errs = append(errs, fmt.Errorf("storage client %q: endpoint is required for %s", name, c.Provider))
		}
	}
	for name, p := range s.Profiles {
		client := p.Client
		if client == "" {
			client = s.DefaultClient
		}
		if _, ok := s.Clients[client]; !ok {
			errs = append(errs, fmt.Errorf("storage profile %q: unknown client %q", name, client))
		}
		switch p.PresignMethod {
		case "", PresignPost, PresignPut:
		default:
			errs = append(errs, fmt.Errorf("storage profile %q: presign_method must be post or put", name))
		}
	}
	return errors.Join(errs...)
}
