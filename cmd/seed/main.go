package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"omnidesk/internal/database"
	"omnidesk/internal/models"

	"github.com/google/uuid"
)

// seed bootstraps a database with a tenant account and one inbox per
// channel so webhooks have somewhere to land.
func main() {
	dbPath := flag.String("db", "./omnidesk.db", "Path to the database file")
	accountName := flag.String("account", "", "Tenant account name to create")
	channel := flag.String("channel", "whatsapp", "Channel for the inbox")
	inboxExternalID := flag.String("inbox-external-id", "", "Provider identifier for the inbox (e.g. phone number ID)")
	inboxName := flag.String("inbox-name", "Default Inbox", "Display name for the inbox")
	flag.Parse()

	if *accountName == "" {
		log.Fatal("-account is required")
	}
	if *inboxExternalID == "" {
		log.Fatal("-inbox-external-id is required")
	}

	db, err := database.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	store := db.Store()

	accountID := uuid.NewString()
	if err := store.InsertAccount(ctx, accountID, *accountName); err != nil {
		log.Fatalf("Failed to create account: %v", err)
	}
	fmt.Printf("Created account %s (%s)\n", *accountName, accountID)

	inbox := &models.Inbox{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		Channel:    *channel,
		ExternalID: *inboxExternalID,
		Name:       *inboxName,
		IsDefault:  true,
		CreatedAt:  now,
	}
	if err := store.InsertInbox(ctx, inbox); err != nil {
		log.Fatalf("Failed to create inbox: %v", err)
	}
	fmt.Printf("Created %s inbox %s (%s) bound to %s\n", inbox.Channel, inbox.Name, inbox.ID, inbox.ExternalID)
}
