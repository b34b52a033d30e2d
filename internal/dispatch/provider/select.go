package provider

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/smsflow/smsflow/internal/platform/config"
)

// TransportKind tags the carrier variant chosen at startup.
type TransportKind string

const (
	TransportKavenegar TransportKind = "kavenegar"
	TransportTwilio    TransportKind = "twilio"
	TransportMock      TransportKind = "mock"
)

// isPlaceholder reports whether a credential value is absent or still a
// template value that was never filled in.
func isPlaceholder(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return true
	}
	switch v {
	case "changeme", "change-me", "placeholder", "todo", "xxx":
		return true
	}
	return strings.HasPrefix(v, "your-") || strings.HasPrefix(v, "your_")
}

// SelectTransport decides which carrier variant to run with. Missing or
// placeholder credentials downgrade to the mock carrier rather than
// failing startup, so development and staging run without real accounts.
func SelectTransport(cfg *config.Config) TransportKind {
	switch strings.ToLower(strings.TrimSpace(cfg.SMSProvider)) {
	case "kavenegar":
		if isPlaceholder(cfg.KavenegarAPIKey) {
			return TransportMock
		}
		return TransportKavenegar
	case "twilio":
		if isPlaceholder(cfg.TwilioAccountSID) || isPlaceholder(cfg.TwilioAuthToken) {
			return TransportMock
		}
		return TransportTwilio
	default:
		return TransportMock
	}
}

// NewCarrier constructs the carrier for the selected transport. The
// downgrade decision is logged once here; nothing downstream branches on
// carrier identity again.
func NewCarrier(cfg *config.Config, logger *slog.Logger) Carrier {
	kind := SelectTransport(cfg)
	if kind == TransportMock && strings.ToLower(cfg.SMSProvider) != "mock" {
		logger.Warn("carrier credentials absent or placeholders, falling back to mock carrier",
			"configured_provider", cfg.SMSProvider)
	}

	httpClient := &http.Client{
		Timeout: time.Duration(cfg.ProviderTimeoutSeconds) * time.Second,
	}

	switch kind {
	case TransportKavenegar:
		return NewKavenegarCarrier(logger, cfg.KavenegarAPIURL, cfg.KavenegarAPIKey, cfg.KavenegarSender, httpClient)
	case TransportTwilio:
		return NewTwilioCarrier(logger, cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber,
			cfg.TwilioSendConcurrency, httpClient)
	default:
		return NewMockCarrier(logger, cfg.MockSuccessRate,
			time.Duration(cfg.MockLatencyMs)*time.Millisecond, nil)
	}
}
