package app

import (
	"github.com/uniedit/paygate/internal/adapter/outbound/provider"
	"github.com/uniedit/paygate/internal/adapter/outbound/signature"
	"github.com/uniedit/paygate/internal/infra/config"
	"github.com/uniedit/paygate/internal/infra/httpclient"
	"github.com/uniedit/paygate/internal/port/outbound"
	"github.com/uniedit/paygate/internal/shared/logger"
	"go.uber.org/zap"
)

// buildProviderRegistry registers every provider. Adapters without credentials
// are still registered so callers get a configuration error instead of 404.
func buildProviderRegistry(cfg *config.Config, log *zap.Logger) *provider.Registry {
	client := httpclient.New(cfg.HTTPClient)
	policy := signature.Policy{AllowUnsigned: cfg.Payment.AllowUnsignedWebhooks}

	providers := []outbound.PaymentProviderPort{
		provider.NewCardProvider(provider.CardConfig{
			SecretKey:          cfg.Card.SecretKey,
			BaseURL:            cfg.Card.BaseURL,
			CheckoutURLPattern: cfg.Card.CheckoutURLPattern,
			HTTPClient:         client,
		}, signature.NewTimestampedHMAC(cfg.Card.WebhookSecret, cfg.Payment.SignatureTolerance, policy), log.Named("card")),

		provider.NewWalletProvider(provider.WalletConfig{
			ClientID:           cfg.Wallet.ClientID,
			ClientSecret:       cfg.Wallet.ClientSecret,
			WebhookID:          cfg.Wallet.WebhookID,
			BaseURL:            cfg.Wallet.APIBaseURL(),
			BrandName:          cfg.Wallet.BrandName,
			CheckoutURLPattern: cfg.Wallet.CheckoutURLPattern,
			HTTPClient:         client,
			Policy:             policy,
		}, log.Named("wallet")),

		provider.NewCryptoFiatProvider(provider.CryptoFiatConfig{
			APIKey:             cfg.CryptoFiat.APIKey,
			APIVersion:         cfg.CryptoFiat.APIVersion,
			BaseURL:            cfg.CryptoFiat.BaseURL,
			CheckoutURLPattern: cfg.CryptoFiat.CheckoutURLPattern,
			HTTPClient:         client,
		}, signature.NewHMAC(signature.CoinbaseSignatureHeader, cfg.CryptoFiat.WebhookSecret, policy), log.Named("crypto-fiat")),

		provider.NewCryptoNativeProvider(provider.CryptoNativeConfig{
			APIKey:             cfg.CryptoNative.APIKey,
			BaseURL:            cfg.CryptoNative.BaseURL,
			CheckoutURLPattern: cfg.CryptoNative.CheckoutURLPattern,
			HTTPClient:         client,
		}, signature.NewHMAC(signature.GenericSignatureHeader, cfg.CryptoNative.WebhookSecret, policy), log.Named("crypto-native")),
	}

	if cfg.Payment.Breaker.Enabled {
		settings := provider.BreakerSettings{
			FailureThreshold: cfg.Payment.Breaker.FailureThreshold,
			Interval:         cfg.Payment.Breaker.Interval,
			OpenTimeout:      cfg.Payment.Breaker.OpenTimeout,
		}
		for i, p := range providers {
			providers[i] = provider.WithBreaker(p, settings, log)
		}
	}

	log.Debug("Provider credentials",
		zap.String("card", logger.MaskSecret(cfg.Card.SecretKey)),
		zap.String("wallet", logger.MaskSecret(cfg.Wallet.ClientID)),
		zap.String("crypto_fiat", logger.MaskSecret(cfg.CryptoFiat.APIKey)),
		zap.String("crypto_native", logger.MaskSecret(cfg.CryptoNative.APIKey)),
	)

	return provider.NewRegistry(providers...)
}
