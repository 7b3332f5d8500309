package codec

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	gcpKms "cloud.google.com/go/kms/apiv1"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	awsKms "github.com/aws/aws-sdk-go/service/kms"
	"go.uber.org/zap"

	"iotauth/distkey/config"
	"iotauth/distkey/crypto"
)

const (
	// DefaultMasterKeyEnvVar holds the base64 master key of the local wrapper
	DefaultMasterKeyEnvVar = "DISTKEY_MASTER_KEY"
	defaultLocalKeyID      = "local"
)

type (
	WrapperFactory interface {
		NewKeyWrapper(cfg config.WrapperConfig) (crypto.KeyWrapper, error)
	}

	WrapperConstructor func(cfg config.WrapperConfig) (crypto.KeyWrapper, error)

	DefaultWrapperFactory struct {
		providers map[string]WrapperConstructor
		logger    *zap.Logger
	}
)

// NewWrapperFactory returns a factory with the local, aws-kms and gcp-kms wrappers registered
func NewWrapperFactory(logger *zap.Logger) *DefaultWrapperFactory {
	wf := &DefaultWrapperFactory{
		providers: make(map[string]WrapperConstructor),
		logger:    logger,
	}

	wf.providers[config.WrapperLocal] = newLocalWrapper

	wf.providers[config.WrapperAwsKms] = func(cfg config.WrapperConfig) (crypto.KeyWrapper, error) {
		keyID, err := cfg.String("key-id")
		if err != nil {
			return nil, err
		}

		region := os.Getenv(config.AwsRegionEnvVar)
		if region == "" {
			region = config.DefaultAwsRegion
		}
		sess, err := session.NewSession(&aws.Config{
			Region: aws.String(region),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create aws session: %w", err)
		}

		return crypto.NewAWSKMSProvider(awsKms.New(sess), crypto.AWSKMSOptions{
			KeyID: keyID,
		}), nil
	}

	wf.providers[config.WrapperGcpKms] = func(cfg config.WrapperConfig) (crypto.KeyWrapper, error) {
		keyName, err := cfg.String("key-name")
		if err != nil {
			return nil, err
		}

		kmsClient, err := gcpKms.NewKeyManagementClient(context.TODO())
		if err != nil {
			return nil, err
		}

		return crypto.NewGCPKMSProvider(kmsClient, crypto.GCPKMSOptions{
			KeyName: keyName,
		}), nil
	}

	return wf
}

// Register adds or replaces the constructor for a wrapper type
func (wf *DefaultWrapperFactory) Register(wrapperType string, constructor WrapperConstructor) {
	wf.providers[wrapperType] = constructor
}

func (wf *DefaultWrapperFactory) NewKeyWrapper(cfg config.WrapperConfig) (crypto.KeyWrapper, error) {
	constructor, ok := wf.providers[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported wrapper type %s", cfg.Type)
	}

	wrapper, err := constructor(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s wrapper: %w", cfg.Type, err)
	}

	wf.logger.Debug("key wrapper created",
		zap.String("type", cfg.Type),
		zap.String("key_id", wrapper.KeyID()),
	)
	return wrapper, nil
}

// newLocalWrapper reads the master key from the environment variable named by
// "master-key-env", falling back to an inline base64 "master-key"
func newLocalWrapper(cfg config.WrapperConfig) (crypto.KeyWrapper, error) {
	keyID := defaultLocalKeyID
	if id, err := cfg.String("key-id"); err == nil && id != "" {
		keyID = id
	}

	envVar := DefaultMasterKeyEnvVar
	if name, err := cfg.String("master-key-env"); err == nil && name != "" {
		envVar = name
	}

	encoded := strings.TrimSpace(os.Getenv(envVar))
	if encoded == "" {
		inline, err := cfg.String("master-key")
		if err != nil {
			return nil, fmt.Errorf("%s is not set; generate a key with: openssl rand -base64 32", envVar)
		}
		encoded = inline
	}

	masterKey, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode master key: %w", err)
	}
	defer crypto.Zeroize(masterKey)

	return crypto.NewLocalWrapper(keyID, masterKey)
}
