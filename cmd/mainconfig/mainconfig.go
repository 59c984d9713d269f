package mainconfig

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/curasync/portal/internal/config"
)

// LoadAWSConfig centralizes AWS SDK initialization. Static keys win over the
// default credential chain when both are set.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	return config.LoadDefaultConfig(ctx, loaders...)
}

// NewS3Client builds the S3 client used for report links. An endpoint
// override (LocalStack, MinIO) switches to path-style addressing.
func NewS3Client(awsCfg aws.Config, cfg *appconfig.Config) *s3.Client {
	endpoint := strings.TrimSpace(cfg.AWSEndpointOverride)
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
}
