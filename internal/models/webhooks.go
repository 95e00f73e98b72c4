package models

// Provider webhook payload shapes. These mirror the wire formats loosely on
// purpose: every nested field is a pointer or slice so that partial or
// unknown payloads decode to zero values rather than errors.

// WhatsAppCloudPayload is the WhatsApp Cloud API webhook envelope.
type WhatsAppCloudPayload struct {
	Object string               `json:"object"`
	Entry  []WhatsAppCloudEntry `json:"entry"`
}

type WhatsAppCloudEntry struct {
	ID      string                `json:"id"`
	Changes []WhatsAppCloudChange `json:"changes"`
}

type WhatsAppCloudChange struct {
	Field string             `json:"field"`
	Value WhatsAppCloudValue `json:"value"`
}

type WhatsAppCloudValue struct {
	MessagingProduct string                  `json:"messaging_product"`
	Metadata         *WhatsAppCloudMetadata  `json:"metadata"`
	Contacts         []WhatsAppCloudContact  `json:"contacts"`
	Messages         []WhatsAppCloudMessage  `json:"messages"`
	Statuses         []WhatsAppCloudStatus   `json:"statuses"`
}

type WhatsAppCloudMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type WhatsAppCloudContact struct {
	WaID    string `json:"wa_id"`
	Profile *struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type WhatsAppCloudMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
}

// WhatsAppCloudStatus carries delivery/read callbacks; the normalizer ignores
// these but the shape is kept so status-only payloads decode cleanly.
type WhatsAppCloudStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RecipientID string `json:"recipient_id"`
}

// MetaPayload is the Messenger/Instagram webhook envelope. Both channels share
// the entry[].messaging[] shape and differ only in the top-level object field.
type MetaPayload struct {
	Object string      `json:"object"`
	Entry  []MetaEntry `json:"entry"`
}

type MetaEntry struct {
	ID        string          `json:"id"`
	Time      int64           `json:"time"`
	Messaging []MetaMessaging `json:"messaging"`
}

type MetaMessaging struct {
	Sender    *MetaParty   `json:"sender"`
	Recipient *MetaParty   `json:"recipient"`
	Timestamp int64        `json:"timestamp"`
	Message   *MetaMessage `json:"message"`
}

type MetaParty struct {
	ID string `json:"id"`
}

type MetaMessage struct {
	MID    string `json:"mid"`
	Text   string `json:"text"`
	IsEcho bool   `json:"is_echo"`
}
