// Package reports turns stored medical report locations into links a browser
// can open.
package reports

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/curasync/portal/pkg/logging"
)

const defaultExpiry = 15 * time.Minute

// Presigner is the subset of the S3 presign client used by Signer.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Signer presigns s3:// report locations. Any other value is returned as-is.
type Signer struct {
	presigner Presigner
	expiry    time.Duration
	logger    *logging.Logger
}

// NewSigner creates a signer. A nil presigner leaves s3:// values untouched.
func NewSigner(presigner Presigner, expiry time.Duration, logger *logging.Logger) *Signer {
	if expiry <= 0 {
		expiry = defaultExpiry
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Signer{presigner: presigner, expiry: expiry, logger: logger.Component("reports")}
}

// NewS3Signer builds a Signer over an S3 client.
func NewS3Signer(client *s3.Client, expiry time.Duration, logger *logging.Logger) *Signer {
	if client == nil {
		return NewSigner(nil, expiry, logger)
	}
	return NewSigner(s3.NewPresignClient(client), expiry, logger)
}

// ReportURL returns a browser-usable link for raw.
func (s *Signer) ReportURL(ctx context.Context, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "s3://") {
		return raw, nil
	}
	if s == nil || s.presigner == nil {
		return raw, nil
	}
	bucket, key, err := parseS3URL(raw)
	if err != nil {
		return "", err
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		s.logger.Warn("report presign failed", "bucket", bucket, "key", key, "error", err)
		return "", fmt.Errorf("reports: presign %s: %w", raw, err)
	}
	return req.URL, nil
}

func parseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("reports: parse %q: %w", raw, err)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("reports: %q must name a bucket and key", raw)
	}
	return bucket, key, nil
}
