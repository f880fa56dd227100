package probe

import (
	"context"
	"fmt"
	nethttp "net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/datalab/connectctl/internal/models"
)

const defaultS3Region = "us-east-1"

// S3Options are the rclone s3 options the probe understands.
type S3Options struct {
	Provider        string `mapstructure:"provider"`
	EnvAuth         bool   `mapstructure:"env_auth"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	ForcePathStyle  *bool  `mapstructure:"force_path_style"`
}

// DecodeS3Options decodes an s3 option bag.
func DecodeS3Options(cfg models.Configuration) (S3Options, error) {
	var opts S3Options
	if err := decodeOptions(cfg, &opts); err != nil {
		return opts, err
	}
	if opts.Region == "" {
		opts.Region = defaultS3Region
	}
	return opts, nil
}

// S3Prober checks an s3 configuration with HeadBucket, or ListBuckets when
// no bucket is named in the source path.
type S3Prober struct {
	HTTPClient *nethttp.Client
}

// Probe implements Prober.
func (p *S3Prober) Probe(ctx context.Context, cfg models.Configuration, sourcePath string) error {
	opts, err := DecodeS3Options(cfg)
	if err != nil {
		return err
	}
	if err := checkSecrets(map[string]string{
		"access_key_id":     opts.AccessKeyID,
		"secret_access_key": opts.SecretAccessKey,
		"session_token":     opts.SessionToken,
	}); err != nil {
		return err
	}

	client, err := p.newClient(ctx, opts)
	if err != nil {
		return err
	}

	bucket, _ := splitSourcePath(sourcePath)
	if bucket != "" {
		_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	} else {
		_, err = client.ListBuckets(ctx, &s3.ListBucketsInput{MaxBuckets: aws.Int32(1)})
	}
	return probeError("s3", err)
}

func (p *S3Prober) newClient(ctx context.Context, opts S3Options) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithRetryMaxAttempts(1),
	}
	if p.HTTPClient != nil {
		loadOpts = append(loadOpts, awsconfig.WithHTTPClient(p.HTTPClient))
	}
	switch {
	case opts.AccessKeyID != "" || opts.SecretAccessKey != "":
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken),
		))
	case !opts.EnvAuth:
		// Public bucket access
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// rclone defaults to path-style addressing
	pathStyle := true
	if opts.ForcePathStyle != nil {
		pathStyle = *opts.ForcePathStyle
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(withScheme(opts.Endpoint))
		}
		o.UsePathStyle = pathStyle
	}), nil
}
