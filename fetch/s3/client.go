package s3

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/viant/scy"
	"github.com/viant/scy/cred"
)

// ErrInvalidSecret is returned when a secret does not hold aws credentials.
var ErrInvalidSecret = errors.New("s3: secret holds no aws key")

// Config describes how to reach the object store.
type Config struct {
	Region string `json:"region" yaml:"region" toml:"region"`
	// Endpoint overrides the AWS endpoint, e.g. for MinIO
	Endpoint  string `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	PathStyle bool   `json:"pathStyle" yaml:"pathStyle" toml:"pathStyle"`
	// Bucket is used for sources given as plain keys
	Bucket string `json:"bucket" yaml:"bucket" toml:"bucket"`
	// Secret is the scy URL of an aws credential, e.g. file:///etc/lodstream/aws.json.
	// Without it requests are sent anonymously.
	Secret string `json:"secret" yaml:"secret" toml:"secret"`
	// SecretKey decrypts Secret, e.g. blowfish://default
	SecretKey string `json:"secretKey" yaml:"secretKey" toml:"secretKey"`
}

// Enabled reports whether a region or a credential secret is configured.
func (c Config) Enabled() bool { return c.Region != "" || c.Secret != "" }

// LoadCredentials reads the aws credential named by config.Secret. It returns
// nil when no secret is configured.
func LoadCredentials(ctx context.Context, config Config) (*cred.Aws, error) {
	if config.Secret == "" {
		return nil, nil
	}
	resource := scy.NewResource(reflect.TypeOf(cred.Aws{}), config.Secret, config.SecretKey)
	secret, err := scy.New().Load(ctx, resource)
	if err != nil {
		return nil, fmt.Errorf("s3: failed to load secret %s: %w", config.Secret, err)
	}
	var ret *cred.Aws
	switch actual := secret.Target.(type) {
	case *cred.Aws:
		ret = actual
	case cred.Aws:
		ret = &actual
	}
	if ret == nil || ret.Key == "" || ret.Secret == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSecret, config.Secret)
	}
	return ret, nil
}

// Credentials returns a provider for secret, or anonymous credentials for nil.
func Credentials(secret *cred.Aws) aws.CredentialsProvider {
	if secret == nil {
		return aws.AnonymousCredentials{}
	}
	value := aws.Credentials{
		AccessKeyID:     secret.Key,
		SecretAccessKey: secret.Secret,
		SessionToken:    secret.Token,
		Source:          "scy",
	}
	return aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return value, nil
	}))
}

// NewClient creates an S3 client for config. Region and endpoint fall back to
// the values stored with the secret.
func NewClient(ctx context.Context, config Config) (*s3.Client, error) {
	secret, err := LoadCredentials(ctx, config)
	if err != nil {
		return nil, err
	}
	region, endpoint := config.Region, config.Endpoint
	if secret != nil {
		if region == "" {
			region = secret.Region
		}
		if endpoint == "" {
			endpoint = secret.Endpoint
		}
	}
	options := s3.Options{
		Region:       region,
		Credentials:  Credentials(secret),
		UsePathStyle: config.PathStyle,
	}
	if endpoint != "" {
		options.BaseEndpoint = aws.String(endpoint)
	}
	return s3.New(options), nil
}
