package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"omnidesk/internal/migrations"
	"omnidesk/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// Database wraps the SQLite handle. All domain reads and writes go through a
// Store, which runs either directly on the connection or inside a
// transaction opened by WithTx.
type Database struct {
	db *sql.DB
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(migrations.GetInitialSchema()); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// queryer is the subset of database/sql shared by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store executes domain queries against either the raw connection or an open
// transaction.
type Store struct {
	q queryer
}

// Store returns a non-transactional store.
func (d *Database) Store() *Store {
	return &Store{q: d.db}
}

// WithTx runs fn inside a single transaction. The transaction commits iff fn
// returns nil; any error rolls back every write fn performed.
func (d *Database) WithTx(ctx context.Context, fn func(*Store) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Store{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w (rollback error: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Account and inbox operations

func (s *Store) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	account := &models.Account{}
	err := s.q.QueryRowContext(ctx, selectAccountQuery, id).Scan(
		&account.ID, &account.Name, &account.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (s *Store) InsertAccount(ctx context.Context, id, name string) error {
	if _, err := s.q.ExecContext(ctx, insertAccountQuery, id, name); err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

func (s *Store) GetInboxByExternalID(ctx context.Context, channel, externalID string) (*models.Inbox, error) {
	return s.scanInbox(s.q.QueryRowContext(ctx, selectInboxByExternalIDQuery, channel, externalID))
}

func (s *Store) GetDefaultInbox(ctx context.Context, channel string) (*models.Inbox, error) {
	return s.scanInbox(s.q.QueryRowContext(ctx, selectDefaultInboxQuery, channel))
}

func (s *Store) scanInbox(row *sql.Row) (*models.Inbox, error) {
	inbox := &models.Inbox{}
	err := row.Scan(
		&inbox.ID, &inbox.AccountID, &inbox.Channel, &inbox.ExternalID,
		&inbox.Name, &inbox.IsDefault, &inbox.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inbox: %w", err)
	}
	return inbox, nil
}

func (s *Store) InsertInbox(ctx context.Context, inbox *models.Inbox) error {
	_, err := s.q.ExecContext(ctx, insertInboxQuery,
		inbox.ID, inbox.AccountID, inbox.Channel, inbox.ExternalID, inbox.Name, inbox.IsDefault, inbox.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert inbox: %w", err)
	}
	return nil
}

// Contact operations

func (s *Store) GetContactByPhone(ctx context.Context, inboxID, phone string) (*models.Contact, error) {
	contact := &models.Contact{}
	err := s.q.QueryRowContext(ctx, selectContactByPhoneQuery, inboxID, phone).Scan(
		&contact.ID, &contact.AccountID, &contact.InboxID, &contact.Phone,
		&contact.Name, &contact.CreatedAt, &contact.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return contact, nil
}

func (s *Store) InsertContact(ctx context.Context, contact *models.Contact) error {
	_, err := s.q.ExecContext(ctx, insertContactQuery,
		contact.ID, contact.AccountID, contact.InboxID, contact.Phone,
		contact.Name, contact.CreatedAt, contact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}
	return nil
}

func (s *Store) UpdateContactName(ctx context.Context, contactID, name string, now time.Time) error {
	if _, err := s.q.ExecContext(ctx, updateContactNameQuery, name, now, contactID); err != nil {
		return fmt.Errorf("failed to update contact name: %w", err)
	}
	return nil
}

// Conversation operations

func (s *Store) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	return s.scanConversation(s.q.QueryRowContext(ctx, selectConversationQuery, id))
}

// GetLatestConversation returns the most recently created conversation for
// (inbox, contact), or nil when the contact has no conversation yet.
func (s *Store) GetLatestConversation(ctx context.Context, inboxID, contactID string) (*models.Conversation, error) {
	return s.scanConversation(s.q.QueryRowContext(ctx, selectLatestConversationQuery, inboxID, contactID))
}

func (s *Store) scanConversation(row *sql.Row) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := row.Scan(
		&conv.ID, &conv.InboxID, &conv.ContactID, &conv.Status,
		&conv.LastActivityAt, &conv.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

// GetConversationAccount resolves the owning tenant account of a
// conversation, for cross-tenant authorization checks.
func (s *Store) GetConversationAccount(ctx context.Context, conversationID string) (string, error) {
	var accountID string
	err := s.q.QueryRowContext(ctx, selectConversationAccountQuery, conversationID).Scan(&accountID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve conversation account: %w", err)
	}
	return accountID, nil
}

func (s *Store) InsertConversation(ctx context.Context, conv *models.Conversation) error {
	_, err := s.q.ExecContext(ctx, insertConversationQuery,
		conv.ID, conv.InboxID, conv.ContactID, conv.Status, conv.LastActivityAt, conv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

func (s *Store) UpdateConversationStatus(ctx context.Context, id string, status models.ConversationStatus, lastActivityAt time.Time) error {
	result, err := s.q.ExecContext(ctx, updateConversationStatusQuery, status, lastActivityAt, id)
	if err != nil {
		return fmt.Errorf("failed to update conversation status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no conversation found with ID: %s", id)
	}
	return nil
}

// Message operations

func (s *Store) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	return s.scanMessage(s.q.QueryRowContext(ctx, selectMessageQuery, id))
}

// GetMessageByExternalID is the dedup lookup: the provider's message id is
// unique within a conversation when present.
func (s *Store) GetMessageByExternalID(ctx context.Context, conversationID, externalID string) (*models.Message, error) {
	return s.scanMessage(s.q.QueryRowContext(ctx, selectMessageByExternalIDQuery, conversationID, externalID))
}

func (s *Store) scanMessage(row *sql.Row) (*models.Message, error) {
	msg := &models.Message{}
	err := row.Scan(
		&msg.ID, &msg.ConversationID, &msg.ExternalID, &msg.Direction,
		&msg.From, &msg.To, &msg.Text, &msg.Timestamp, &msg.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

func (s *Store) InsertMessage(ctx context.Context, msg *models.Message) error {
	_, err := s.q.ExecContext(ctx, insertMessageQuery,
		msg.ID, msg.ConversationID, msg.ExternalID, msg.Direction,
		msg.From, msg.To, msg.Text, msg.Timestamp, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// CountInboundAfter counts inbound messages in a conversation strictly newer
// than ts. Used to recompute unread counters on mark-read.
func (s *Store) CountInboundAfter(ctx context.Context, conversationID string, ts time.Time) (int, error) {
	var count int
	if err := s.q.QueryRowContext(ctx, countInboundAfterQuery, conversationID, ts).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count inbound messages: %w", err)
	}
	return count, nil
}

// Participant operations

func (s *Store) GetParticipant(ctx context.Context, conversationID, userAccountID string) (*models.ConversationParticipant, error) {
	p := &models.ConversationParticipant{}
	err := s.q.QueryRowContext(ctx, selectParticipantQuery, conversationID, userAccountID).Scan(
		&p.ConversationID, &p.UserAccountID, &p.JoinedAt, &p.LeftAt,
		&p.LastReadMessageID, &p.LastReadAt, &p.UnreadCount, &p.Muted, &p.MutedUntil,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

func (s *Store) InsertParticipant(ctx context.Context, conversationID, userAccountID string, joinedAt time.Time) error {
	if _, err := s.q.ExecContext(ctx, insertParticipantQuery, conversationID, userAccountID, joinedAt); err != nil {
		return fmt.Errorf("failed to insert participant: %w", err)
	}
	return nil
}

// IncrementUnreadForActive bumps the unread counter of every participant that
// has not left the conversation.
func (s *Store) IncrementUnreadForActive(ctx context.Context, conversationID string) error {
	if _, err := s.q.ExecContext(ctx, incrementUnreadQuery, conversationID); err != nil {
		return fmt.Errorf("failed to increment unread counts: %w", err)
	}
	return nil
}

func (s *Store) UpdateReadState(ctx context.Context, conversationID, userAccountID, messageID string, readAt time.Time, unreadCount int) error {
	result, err := s.q.ExecContext(ctx, updateReadStateQuery,
		messageID, readAt, unreadCount, conversationID, userAccountID,
	)
	if err != nil {
		return fmt.Errorf("failed to update read state: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no participant found for conversation %s", conversationID)
	}
	return nil
}

// Presence operations

func (s *Store) UpsertPresenceOnline(ctx context.Context, userAccountID, accountID, socketID string, now time.Time) error {
	if _, err := s.q.ExecContext(ctx, upsertPresenceOnlineQuery, userAccountID, accountID, now, socketID); err != nil {
		return fmt.Errorf("failed to upsert presence: %w", err)
	}
	return nil
}

func (s *Store) GetPresence(ctx context.Context, userAccountID string) (*models.Presence, error) {
	p := &models.Presence{}
	err := s.q.QueryRowContext(ctx, selectPresenceQuery, userAccountID).Scan(
		&p.UserAccountID, &p.AccountID, &p.Status, &p.LastSeenAt,
		&p.SocketID, &p.CurrentConversationID, &p.TypingInConversationID,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get presence: %w", err)
	}
	return p, nil
}

func (s *Store) UpdatePresenceStatus(ctx context.Context, userAccountID string, status models.PresenceStatus, now time.Time) error {
	if _, err := s.q.ExecContext(ctx, updatePresenceStatusQuery, status, now, userAccountID); err != nil {
		return fmt.Errorf("failed to update presence status: %w", err)
	}
	return nil
}

func (s *Store) TouchPresence(ctx context.Context, userAccountID string, now time.Time) error {
	if _, err := s.q.ExecContext(ctx, touchPresenceQuery, now, userAccountID); err != nil {
		return fmt.Errorf("failed to refresh presence: %w", err)
	}
	return nil
}

func (s *Store) SetPresenceOffline(ctx context.Context, userAccountID string, now time.Time) error {
	if _, err := s.q.ExecContext(ctx, setPresenceOfflineQuery, now, userAccountID); err != nil {
		return fmt.Errorf("failed to set presence offline: %w", err)
	}
	return nil
}

func (s *Store) SetTyping(ctx context.Context, userAccountID string, conversationID *string) error {
	if _, err := s.q.ExecContext(ctx, setTypingQuery, conversationID, userAccountID); err != nil {
		return fmt.Errorf("failed to set typing state: %w", err)
	}
	return nil
}

func (s *Store) SetCurrentConversation(ctx context.Context, userAccountID string, conversationID *string) error {
	if _, err := s.q.ExecContext(ctx, setCurrentConversationQuery, conversationID, userAccountID); err != nil {
		return fmt.Errorf("failed to set current conversation: %w", err)
	}
	return nil
}

// ListStalePresence returns online rows whose last_seen_at is older than
// cutoff. The caller transitions them offline one by one so each transition
// can be broadcast.
func (s *Store) ListStalePresence(ctx context.Context, cutoff time.Time) ([]models.Presence, error) {
	rows, err := s.q.QueryContext(ctx, selectStalePresenceQuery, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale presence: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Presence
	for rows.Next() {
		var p models.Presence
		if err := rows.Scan(
			&p.UserAccountID, &p.AccountID, &p.Status, &p.LastSeenAt,
			&p.SocketID, &p.CurrentConversationID, &p.TypingInConversationID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan presence row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Idempotency operations

func (s *Store) GetIdempotencyRecord(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	rec := &models.IdempotencyRecord{}
	err := s.q.QueryRowContext(ctx, selectIdempotencyQuery, key).Scan(
		&rec.Key, &rec.AccountID, &rec.Endpoint, &rec.Method, &rec.RequestBody,
		&rec.StatusCode, &rec.ResponseBody, &rec.ExpiresAt, &rec.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}
	return rec, nil
}

func (s *Store) InsertIdempotencyRecord(ctx context.Context, rec *models.IdempotencyRecord) error {
	_, err := s.q.ExecContext(ctx, insertIdempotencyQuery,
		rec.Key, rec.AccountID, rec.Endpoint, rec.Method, rec.RequestBody,
		rec.StatusCode, rec.ResponseBody, rec.ExpiresAt, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert idempotency record: %w", err)
	}
	return nil
}

func (s *Store) DeleteIdempotencyRecord(ctx context.Context, key string) error {
	if _, err := s.q.ExecContext(ctx, deleteIdempotencyQuery, key); err != nil {
		return fmt.Errorf("failed to delete idempotency record: %w", err)
	}
	return nil
}

// DeleteExpiredIdempotencyRecords removes every record past its expiry and
// returns the number deleted.
func (s *Store) DeleteExpiredIdempotencyRecords(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.q.ExecContext(ctx, deleteExpiredIdempotencyQuery, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired idempotency records: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}
