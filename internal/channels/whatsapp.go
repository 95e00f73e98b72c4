package channels

import (
	"encoding/json"
	"net/http"

	"omnidesk/internal/models"
)

// WhatsAppConnector normalizes WhatsApp Cloud API webhook payloads
// (entry[].changes[].value with metadata, contacts, and messages).
type WhatsAppConnector struct {
	verifyToken   string
	webhookSecret string
}

func NewWhatsAppConnector(cfg models.ChannelConfig) *WhatsAppConnector {
	return &WhatsAppConnector{
		verifyToken:   cfg.VerifyToken,
		webhookSecret: cfg.WebhookSecret,
	}
}

func (c *WhatsAppConnector) Channel() string {
	return ChannelWhatsApp
}

func (c *WhatsAppConnector) VerifySubscription(mode, token string) bool {
	return verifyHubSubscription(mode, token, c.verifyToken)
}

func (c *WhatsAppConnector) VerifySignature(r *http.Request, body []byte) error {
	return verifySHA256Signature(r, body, c.webhookSecret, "X-Hub-Signature-256")
}

func (c *WhatsAppConnector) Normalize(body []byte) ([]models.UnifiedInboundEvent, error) {
	var payload models.WhatsAppCloudPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	var events []models.UnifiedInboundEvent
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			events = append(events, normalizeChange(change.Value)...)
		}
	}
	return events, nil
}

func normalizeChange(value models.WhatsAppCloudValue) []models.UnifiedInboundEvent {
	// Contact display names are delivered alongside messages, keyed by the
	// sender's wa_id.
	names := make(map[string]string, len(value.Contacts))
	for _, contact := range value.Contacts {
		if contact.WaID != "" && contact.Profile != nil && contact.Profile.Name != "" {
			names[contact.WaID] = contact.Profile.Name
		}
	}

	var inboxExternalID *string
	if value.Metadata != nil && value.Metadata.PhoneNumberID != "" {
		id := value.Metadata.PhoneNumberID
		inboxExternalID = &id
	}

	var events []models.UnifiedInboundEvent
	for _, msg := range value.Messages {
		// A message without a sender cannot be attributed to a contact.
		if msg.From == "" {
			continue
		}

		event := models.UnifiedInboundEvent{
			Channel:         ChannelWhatsApp,
			InboxExternalID: inboxExternalID,
			Phone:           msg.From,
			SentAt:          parseEpochSeconds(msg.Timestamp),
		}
		if msg.ID != "" {
			id := msg.ID
			event.ProviderMessageID = &id
		}
		if name, ok := names[msg.From]; ok {
			n := name
			event.ContactName = &n
		}
		if msg.Text != nil && msg.Text.Body != "" {
			text := msg.Text.Body
			event.Text = &text
		}
		events = append(events, event)
	}
	return events
}
