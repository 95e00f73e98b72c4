package migrations

// GetInitialSchema returns the initial database schema. The schema is
// embedded so the binary is self-contained; new migrations append statements
// guarded by IF NOT EXISTS.
func GetInitialSchema() string {
	return initialSchema
}

const initialSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS inboxes (
	id          TEXT PRIMARY KEY,
	account_id  TEXT NOT NULL REFERENCES accounts(id),
	channel     TEXT NOT NULL,
	external_id TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	is_default  INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_inboxes_channel_external
	ON inboxes(channel, external_id);

CREATE TABLE IF NOT EXISTS contacts (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL REFERENCES accounts(id),
	inbox_id   TEXT NOT NULL REFERENCES inboxes(id),
	phone      TEXT NOT NULL,
	name       TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_inbox_phone
	ON contacts(inbox_id, phone);

CREATE TABLE IF NOT EXISTS conversations (
	id               TEXT PRIMARY KEY,
	inbox_id         TEXT NOT NULL REFERENCES inboxes(id),
	contact_id       TEXT NOT NULL REFERENCES contacts(id),
	status           TEXT NOT NULL DEFAULT 'OPEN',
	last_activity_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_conversations_inbox_contact
	ON conversations(inbox_id, contact_id, created_at);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	external_id     TEXT,
	direction       TEXT NOT NULL,
	from_addr       TEXT NOT NULL DEFAULT '',
	to_addr         TEXT NOT NULL DEFAULT '',
	text            TEXT,
	timestamp       TIMESTAMP NOT NULL,
	created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_conversation_external
	ON messages(conversation_id, external_id) WHERE external_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_messages_conversation_time
	ON messages(conversation_id, timestamp);

CREATE TABLE IF NOT EXISTS conversation_participants (
	conversation_id      TEXT NOT NULL REFERENCES conversations(id),
	user_account_id      TEXT NOT NULL,
	joined_at            TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	left_at              TIMESTAMP,
	last_read_message_id TEXT,
	last_read_at         TIMESTAMP,
	unread_count         INTEGER NOT NULL DEFAULT 0,
	muted                INTEGER NOT NULL DEFAULT 0,
	muted_until          TIMESTAMP,
	PRIMARY KEY (conversation_id, user_account_id)
);

CREATE TABLE IF NOT EXISTS presence (
	user_account_id          TEXT PRIMARY KEY,
	account_id               TEXT NOT NULL,
	status                   TEXT NOT NULL DEFAULT 'offline',
	last_seen_at             TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	socket_id                TEXT,
	current_conversation_id  TEXT,
	typing_in_conversation_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_presence_status ON presence(status, last_seen_at);

CREATE TABLE IF NOT EXISTS idempotency_keys (
	key           TEXT PRIMARY KEY,
	account_id    TEXT NOT NULL,
	endpoint      TEXT NOT NULL,
	method        TEXT NOT NULL,
	request_body  TEXT NOT NULL DEFAULT '',
	status_code   INTEGER NOT NULL,
	response_body TEXT NOT NULL DEFAULT '',
	expires_at    TIMESTAMP NOT NULL,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_idempotency_expires ON idempotency_keys(expires_at);
`
