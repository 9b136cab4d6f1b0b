package services_test

import (
	"errors"
	"testing"

	"github.com/localnerve/tipjar/internal/services"
	"gorm.io/gorm"
)

func sendTestMessage(t *testing.T, db *gorm.DB, creatorEmail, subject string) uint64 {
	t.Helper()
	creator, err := services.GetCreatorByEmail(db, creatorEmail)
	if err != nil {
		t.Fatalf("GetCreatorByEmail failed: %v", err)
	}
	message, err := services.CreateMessage(db, creator, services.CreateMessageInput{
		FromName: "Sam",
		Subject:  subject,
		Content:  "hello there",
	})
	if err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}
	return message.ID
}

func TestCreateMessage(t *testing.T) {
	db := setupTestDB(t)
	creator := registerTestCreator(t, db, "maria@example.com", "maria")

	message, err := services.CreateMessage(db, creator, services.CreateMessageInput{
		FromName:  "  Sam ",
		FromEmail: "Sam@Example.com",
		Subject:   " hi ",
		Content:   "love the maps",
	})
	if err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}

	if message.FromName != "Sam" || message.Subject != "hi" {
		t.Errorf("fields not trimmed: name=%q subject=%q", message.FromName, message.Subject)
	}
	if message.FromEmail != "sam@example.com" {
		t.Errorf("FromEmail = %q, want lowercased", message.FromEmail)
	}
	if message.IsRead || message.ReadAt != nil {
		t.Error("new message must be unread with no read stamp")
	}
}

func TestCreateMessage_Disabled(t *testing.T) {
	db := setupTestDB(t)
	creator := registerTestCreator(t, db, "maria@example.com", "maria")

	allow := false
	if _, err := services.UpdateProfile(db, creator.ID, services.UpdateProfileInput{
		AllowMessages: &allow,
	}); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	creator.AllowMessages = false

	_, err := services.CreateMessage(db, creator, services.CreateMessageInput{
		Subject: "hi",
		Content: "x",
	})
	if !errors.Is(err, services.ErrMessagesDisabled) {
		t.Fatalf("expected ErrMessagesDisabled, got %v", err)
	}
}

func TestMarkRead(t *testing.T) {
	db := setupTestDB(t)
	creator := registerTestCreator(t, db, "maria@example.com", "maria")
	id := sendTestMessage(t, db, "maria@example.com", "first")

	message, err := services.MarkRead(db, id, creator.ID)
	if err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if !message.IsRead || message.ReadAt == nil {
		t.Fatal("read flag and read stamp must change together")
	}
	readAt := *message.ReadAt

	// Idempotent: a second read keeps the original stamp
	message, err = services.MarkRead(db, id, creator.ID)
	if err != nil {
		t.Fatalf("second MarkRead failed: %v", err)
	}
	if message.ReadAt == nil || !message.ReadAt.Equal(readAt) {
		t.Error("re-reading must not move the read stamp")
	}
}

func TestMarkRead_Ownership(t *testing.T) {
	db := setupTestDB(t)
	registerTestCreator(t, db, "maria@example.com", "maria")
	other := registerTestCreator(t, db, "other@example.com", "other")
	id := sendTestMessage(t, db, "maria@example.com", "first")

	_, err := services.MarkRead(db, id, other.ID)
	if !errors.Is(err, services.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestListMessagesAndUnreadCount(t *testing.T) {
	db := setupTestDB(t)
	creator := registerTestCreator(t, db, "maria@example.com", "maria")

	first := sendTestMessage(t, db, "maria@example.com", "first")
	sendTestMessage(t, db, "maria@example.com", "second")
	sendTestMessage(t, db, "maria@example.com", "third")

	if _, err := services.MarkRead(db, first, creator.ID); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	count, err := services.UnreadCount(db, creator.ID)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("unread count = %d, want 2", count)
	}

	all, err := services.ListMessages(db, creator.ID, false, 10, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("inbox size = %d, want 3", len(all))
	}

	unread, err := services.ListMessages(db, creator.ID, true, 10, 0)
	if err != nil {
		t.Fatalf("ListMessages unread failed: %v", err)
	}
	if len(unread) != 2 {
		t.Errorf("unread listing = %d, want 2", len(unread))
	}
	for _, m := range unread {
		if m.IsRead {
			t.Error("unread listing must not contain read messages")
		}
	}
}
