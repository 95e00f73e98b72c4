// Package channels turns provider-specific webhook payloads into unified
// inbound events. Each provider implements Connector; the Registry selects
// one by channel identifier so callers never branch on provider names.
package channels

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"omnidesk/internal/models"
)

const (
	ChannelWhatsApp  = "whatsapp"
	ChannelMessenger = "messenger"
	ChannelInstagram = "instagram"
)

// Connector is the per-provider capability set: payload normalization and
// webhook verification.
type Connector interface {
	Channel() string

	// Normalize extracts zero or more unified events from a raw payload.
	// Status-only callbacks yield an empty slice; malformed fields degrade
	// to nil fields rather than errors.
	Normalize(body []byte) ([]models.UnifiedInboundEvent, error)

	// VerifySignature checks the provider's HMAC signature over the raw
	// body. A connector without a configured secret accepts everything.
	VerifySignature(r *http.Request, body []byte) error

	// VerifySubscription implements the hub.challenge handshake.
	VerifySubscription(mode, token string) bool
}

// Registry maps channel identifiers to their connectors.
type Registry struct {
	connectors map[string]Connector
}

func NewRegistry(configs []models.ChannelConfig) (*Registry, error) {
	r := &Registry{connectors: make(map[string]Connector)}

	for _, cfg := range configs {
		var c Connector
		switch cfg.Name {
		case ChannelWhatsApp:
			c = NewWhatsAppConnector(cfg)
		case ChannelMessenger, ChannelInstagram:
			c = NewMetaConnector(cfg.Name, cfg)
		default:
			return nil, fmt.Errorf("unknown channel: %s", cfg.Name)
		}
		if _, exists := r.connectors[cfg.Name]; exists {
			return nil, fmt.Errorf("duplicate channel: %s", cfg.Name)
		}
		r.connectors[cfg.Name] = c
	}

	if len(r.connectors) == 0 {
		return nil, fmt.Errorf("no channels configured")
	}
	return r, nil
}

// Get returns the connector for a channel identifier, or nil.
func (r *Registry) Get(channel string) Connector {
	return r.connectors[channel]
}

// Channels returns the configured channel identifiers.
func (r *Registry) Channels() []string {
	out := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		out = append(out, name)
	}
	return out
}

// verifyHubSubscription is the shared hub.mode/hub.verify_token check.
func verifyHubSubscription(mode, token, verifyToken string) bool {
	return mode == "subscribe" && verifyToken != "" && hmac.Equal([]byte(token), []byte(verifyToken))
}

// verifySHA256Signature checks an X-Hub-Signature-256 style header
// ("sha256=<hex>") against an HMAC-SHA256 of the body.
func verifySHA256Signature(r *http.Request, body []byte, secret, headerName string) error {
	if secret == "" {
		return nil
	}

	signatureHeader := r.Header.Get(headerName)
	if signatureHeader == "" {
		return fmt.Errorf("missing signature header: %s", headerName)
	}

	parts := strings.SplitN(signatureHeader, "=", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "sha256" {
		return fmt.Errorf("invalid signature format in header %s", headerName)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	computedSignatureHex := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computedSignatureHex), []byte(parts[1])) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

// parseEpochSeconds converts a provider timestamp in epoch seconds (as a
// decimal string) to a time. Unparseable input yields nil.
func parseEpochSeconds(s string) *time.Time {
	if s == "" {
		return nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil || secs <= 0 {
		return nil
	}
	t := time.Unix(secs, 0).UTC()
	return &t
}

// parseEpochMillis converts an epoch milliseconds timestamp to a time.
func parseEpochMillis(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
