package database

// Account and inbox queries
const (
	selectAccountQuery = `
		SELECT id, name, created_at FROM accounts WHERE id = ?
	`

	insertAccountQuery = `
		INSERT INTO accounts (id, name) VALUES (?, ?)
	`

	selectInboxByExternalIDQuery = `
		SELECT id, account_id, channel, external_id, name, is_default, created_at
		FROM inboxes
		WHERE channel = ? AND external_id = ?
	`

	selectDefaultInboxQuery = `
		SELECT id, account_id, channel, external_id, name, is_default, created_at
		FROM inboxes
		WHERE channel = ? AND is_default = 1
		ORDER BY created_at
		LIMIT 1
	`

	insertInboxQuery = `
		INSERT INTO inboxes (id, account_id, channel, external_id, name, is_default, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
)

// Contact queries
const (
	selectContactByPhoneQuery = `
		SELECT id, account_id, inbox_id, phone, name, created_at, updated_at
		FROM contacts
		WHERE inbox_id = ? AND phone = ?
	`

	insertContactQuery = `
		INSERT INTO contacts (id, account_id, inbox_id, phone, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	updateContactNameQuery = `
		UPDATE contacts SET name = ?, updated_at = ? WHERE id = ?
	`
)

// Conversation queries
const (
	selectLatestConversationQuery = `
		SELECT id, inbox_id, contact_id, status, last_activity_at, created_at
		FROM conversations
		WHERE inbox_id = ? AND contact_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`

	selectConversationQuery = `
		SELECT id, inbox_id, contact_id, status, last_activity_at, created_at
		FROM conversations
		WHERE id = ?
	`

	selectConversationAccountQuery = `
		SELECT i.account_id
		FROM conversations c
		JOIN inboxes i ON i.id = c.inbox_id
		WHERE c.id = ?
	`

	insertConversationQuery = `
		INSERT INTO conversations (id, inbox_id, contact_id, status, last_activity_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	updateConversationStatusQuery = `
		UPDATE conversations SET status = ?, last_activity_at = ? WHERE id = ?
	`
)

// Message queries
const (
	selectMessageByExternalIDQuery = `
		SELECT id, conversation_id, external_id, direction, from_addr, to_addr, text, timestamp, created_at
		FROM messages
		WHERE conversation_id = ? AND external_id = ?
	`

	selectMessageQuery = `
		SELECT id, conversation_id, external_id, direction, from_addr, to_addr, text, timestamp, created_at
		FROM messages
		WHERE id = ?
	`

	insertMessageQuery = `
		INSERT INTO messages (id, conversation_id, external_id, direction, from_addr, to_addr, text, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	countInboundAfterQuery = `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = ? AND direction = 'IN' AND timestamp > ?
	`
)

// Participant queries
const (
	selectParticipantQuery = `
		SELECT conversation_id, user_account_id, joined_at, left_at,
		       last_read_message_id, last_read_at, unread_count, muted, muted_until
		FROM conversation_participants
		WHERE conversation_id = ? AND user_account_id = ?
	`

	insertParticipantQuery = `
		INSERT INTO conversation_participants (conversation_id, user_account_id, joined_at)
		VALUES (?, ?, ?)
	`

	incrementUnreadQuery = `
		UPDATE conversation_participants
		SET unread_count = unread_count + 1
		WHERE conversation_id = ? AND left_at IS NULL
	`

	updateReadStateQuery = `
		UPDATE conversation_participants
		SET last_read_message_id = ?, last_read_at = ?, unread_count = ?
		WHERE conversation_id = ? AND user_account_id = ?
	`
)

// Presence queries
const (
	upsertPresenceOnlineQuery = `
		INSERT INTO presence (user_account_id, account_id, status, last_seen_at, socket_id)
		VALUES (?, ?, 'online', ?, ?)
		ON CONFLICT(user_account_id) DO UPDATE SET
			account_id = excluded.account_id,
			status = 'online',
			last_seen_at = excluded.last_seen_at,
			socket_id = excluded.socket_id
	`

	selectPresenceQuery = `
		SELECT user_account_id, account_id, status, last_seen_at,
		       socket_id, current_conversation_id, typing_in_conversation_id
		FROM presence
		WHERE user_account_id = ?
	`

	updatePresenceStatusQuery = `
		UPDATE presence SET status = ?, last_seen_at = ? WHERE user_account_id = ?
	`

	touchPresenceQuery = `
		UPDATE presence SET last_seen_at = ? WHERE user_account_id = ?
	`

	setPresenceOfflineQuery = `
		UPDATE presence
		SET status = 'offline', last_seen_at = ?, socket_id = NULL,
		    current_conversation_id = NULL, typing_in_conversation_id = NULL
		WHERE user_account_id = ?
	`

	setTypingQuery = `
		UPDATE presence SET typing_in_conversation_id = ? WHERE user_account_id = ?
	`

	setCurrentConversationQuery = `
		UPDATE presence SET current_conversation_id = ? WHERE user_account_id = ?
	`

	selectStalePresenceQuery = `
		SELECT user_account_id, account_id, status, last_seen_at,
		       socket_id, current_conversation_id, typing_in_conversation_id
		FROM presence
		WHERE status = 'online' AND last_seen_at < ?
	`
)

// Idempotency queries
const (
	selectIdempotencyQuery = `
		SELECT key, account_id, endpoint, method, request_body, status_code, response_body, expires_at, created_at
		FROM idempotency_keys
		WHERE key = ?
	`

	insertIdempotencyQuery = `
		INSERT INTO idempotency_keys (key, account_id, endpoint, method, request_body, status_code, response_body, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	deleteIdempotencyQuery = `
		DELETE FROM idempotency_keys WHERE key = ?
	`

	deleteExpiredIdempotencyQuery = `
		DELETE FROM idempotency_keys WHERE expires_at < ?
	`
)
