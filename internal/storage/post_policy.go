package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

const (
	sigV4Algorithm  = "AWS4-HMAC-SHA256"
	amzDateFormat   = "20060102T150405Z"
	shortDateFormat = "20060102"
	expirationFmt   = "2006-01-02T15:04:05.000Z"
)

type postPolicyInput struct {
	Bucket      string
	Key         string
	ContentType string
	MaxSize     int64
	ACL         string
	Region      string
	Credentials aws.Credentials
	Now         time.Time
	Expires     time.Duration
}

// signPostPolicy returns the form fields of a SigV4 browser upload.
// See https://docs.aws.amazon.com/AmazonS3/latest/API/sigv4-HTTPPOSTConstructPolicy.html
func signPostPolicy(in postPolicyInput) (map[string]string, error) {
	if in.MaxSize < 1 {
		return nil, fmt.Errorf("post policy: max size must be positive")
	}
	shortDate := in.Now.Format(shortDateFormat)
	amzDate := in.Now.Format(amzDateFormat)
	credential := fmt.Sprintf("%s/%s/%s/s3/aws4_request", in.Credentials.AccessKeyID, shortDate, in.Region)

	fields := map[string]string{
		"key":              in.Key,
		"x-amz-algorithm":  sigV4Algorithm,
		"x-amz-credential": credential,
		"x-amz-date":       amzDate,
	}
	conditions := []any{
		map[string]string{"bucket": in.Bucket},
		[]any{"eq", "$key", in.Key},
		[]any{"content-length-range", 1, in.MaxSize},
		map[string]string{"x-amz-algorithm": sigV4Algorithm},
		map[string]string{"x-amz-credential": credential},
		map[string]string{"x-amz-date": amzDate},
	}
	if in.ContentType != "" {
		fields["Content-Type"] = in.ContentType
		conditions = append(conditions, []any{"eq", "$Content-Type", in.ContentType})
	}
	if in.ACL != "" {
		fields["acl"] = in.ACL
		conditions = append(conditions, map[string]string{"acl": in.ACL})
	}
	if in.Credentials.SessionToken != "" {
		fields["x-amz-security-token"] = in.Credentials.SessionToken
		conditions = append(conditions, map[string]string{"x-amz-security-token": in.Credentials.SessionToken})
	}

	doc, err := json.Marshal(map[string]any{
		"expiration": in.Now.Add(in.Expires).Format(expirationFmt),
		"conditions": conditions,
	})
	if err != nil {
		return nil, fmt.Errorf("post policy: %w", err)
	}
	policy := base64.StdEncoding.EncodeToString(doc)

	key := signingKey(in.Credentials.SecretAccessKey, shortDate, in.Region)
	fields["policy"] = policy
	fields["x-amz-signature"] = hex.EncodeToString(hmacSHA256(key, []byte(policy)))
	return fields, nil
}

func signingKey(secret, shortDate, region string) []byte {
	k := hmacSHA256([]byte("AWS4"+secret), []byte(shortDate))
	k = hmacSHA256(k, []byte(region))
	k = hmacSHA256(k, []byte("s3"))
	return hmacSHA256(k, []byte("aws4_request"))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}
