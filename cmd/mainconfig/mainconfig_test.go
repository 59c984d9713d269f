package mainconfig

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/curasync/portal/internal/config"
)

func TestLoadAWSConfigStaticCredentials(t *testing.T) {
	cfg := &appconfig.Config{AWSRegion: "eu-west-1", AWSAccessKeyID: "AKID", AWSSecretAccessKey: "secret"}
	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", awsCfg.Region)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKID", creds.AccessKeyID)
}

func TestNewS3ClientEndpointOverride(t *testing.T) {
	cfg := &appconfig.Config{AWSRegion: "us-east-1", AWSEndpointOverride: "http://localhost:4566"}
	client := NewS3Client(aws.Config{Region: "us-east-1"}, cfg)
	opts := client.Options()
	assert.Equal(t, "http://localhost:4566", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)

	plain := NewS3Client(aws.Config{Region: "us-east-1"}, &appconfig.Config{})
	assert.Nil(t, plain.Options().BaseEndpoint)
	assert.False(t, plain.Options().UsePathStyle)
}
