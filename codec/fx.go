package codec

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"iotauth/distkey/config"
	"iotauth/distkey/crypto"
	"iotauth/distkey/metrics"
)

func newWrapperFactoryProvider(logger *zap.Logger) WrapperFactory {
	return NewWrapperFactory(logger)
}

func newKeyWrapper(factory WrapperFactory, configProvider config.ConfigProvider) (crypto.KeyWrapper, error) {
	return factory.NewKeyWrapper(configProvider.GetConfig().Encryption.Wrapper)
}

func newIssuingMaterialsManager(configProvider config.ConfigProvider, wrapper crypto.KeyWrapper,
	metricsProvider metrics.MetricsProvider, clk clock.Clock) (*crypto.IssuingMaterialsManager, error) {

	dist := configProvider.GetConfig().Distribution

	spec, err := crypto.ParseCryptoSpec(dist.CryptoSpec)
	if err != nil {
		return nil, err
	}

	return crypto.NewIssuingMaterialsManager(crypto.IssuingOptions{
		Spec:     spec,
		Validity: dist.ValidityDuration(),
		Wrapper:  wrapper,
		Clock:    clk,
		Meter:    metricsProvider.Meter(),
	})
}

func newCachingMaterialsManager(configProvider config.ConfigProvider, issuing *crypto.IssuingMaterialsManager,
	metricsProvider metrics.MetricsProvider, clk clock.Clock) (crypto.MaterialsManager, error) {

	cfg := configProvider.GetConfig()
	return crypto.NewCachingMaterialsManager(issuing, crypto.CachingConfig{
		MaxCache:        cfg.Encryption.Caching.MaxCache,
		MaxAge:          cfg.Encryption.Caching.MaxAgeDuration(),
		MaxMessagesUsed: cfg.Encryption.Caching.MaxUsage,
		RefreshBefore:   cfg.Distribution.RefreshBeforeDuration(),
		Clock:           clk,
	}, metricsProvider.Meter())
}

func newCipher(mm crypto.MaterialsManager, clk clock.Clock) *crypto.Cipher {
	return crypto.NewCipher(mm, clk)
}

func newKeyEnvelope(wrapper crypto.KeyWrapper) *KeyEnvelope {
	return NewKeyEnvelope(wrapper, nil)
}

func newCodec(cipher *crypto.Cipher, wrapper crypto.KeyWrapper, metricsProvider metrics.MetricsProvider, logger *zap.Logger) (*Codec, error) {
	return NewEncryptionCodec(cipher, nil, wrapper.KeyID(), metricsProvider.Meter(), logger)
}

var Module = fx.Provide(
	clock.New,
	newWrapperFactoryProvider,
	newKeyWrapper,
	newIssuingMaterialsManager,
	newCachingMaterialsManager,
	newCipher,
	newKeyEnvelope,
	newCodec,
)
