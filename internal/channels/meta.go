package channels

import (
	"encoding/json"
	"net/http"

	"omnidesk/internal/models"
)

// MetaConnector normalizes Messenger and Instagram webhook payloads. Both
// share the entry[].messaging[] shape; the channel identifier distinguishes
// which inbox namespace the events belong to.
type MetaConnector struct {
	channel       string
	verifyToken   string
	webhookSecret string
}

func NewMetaConnector(channel string, cfg models.ChannelConfig) *MetaConnector {
	return &MetaConnector{
		channel:       channel,
		verifyToken:   cfg.VerifyToken,
		webhookSecret: cfg.WebhookSecret,
	}
}

func (c *MetaConnector) Channel() string {
	return c.channel
}

func (c *MetaConnector) VerifySubscription(mode, token string) bool {
	return verifyHubSubscription(mode, token, c.verifyToken)
}

func (c *MetaConnector) VerifySignature(r *http.Request, body []byte) error {
	return verifySHA256Signature(r, body, c.webhookSecret, "X-Hub-Signature-256")
}

func (c *MetaConnector) Normalize(body []byte) ([]models.UnifiedInboundEvent, error) {
	var payload models.MetaPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	var events []models.UnifiedInboundEvent
	for _, entry := range payload.Entry {
		var inboxExternalID *string
		if entry.ID != "" {
			id := entry.ID
			inboxExternalID = &id
		}

		for _, messaging := range entry.Messaging {
			// Delivery/read callbacks and echoes of our own sends carry no
			// new inbound message.
			if messaging.Message == nil || messaging.Message.IsEcho {
				continue
			}
			if messaging.Sender == nil || messaging.Sender.ID == "" {
				continue
			}

			event := models.UnifiedInboundEvent{
				Channel:         c.channel,
				InboxExternalID: inboxExternalID,
				Phone:           messaging.Sender.ID,
				SentAt:          parseEpochMillis(messaging.Timestamp),
			}
			if messaging.Message.MID != "" {
				id := messaging.Message.MID
				event.ProviderMessageID = &id
			}
			if messaging.Message.Text != "" {
				text := messaging.Message.Text
				event.Text = &text
			}
			events = append(events, event)
		}
	}
	return events, nil
}
