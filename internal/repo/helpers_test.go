package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/coony/chat-backend/internal/domain"
)

var bg = context.Background()

// newRepoDB opens a file-backed SQLite database per test with foreign keys
// enforced on every pooled connection, then migrates the full schema unless
// bare is set.
func newRepoDB(t *testing.T, bare ...bool) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), fmt.Sprintf("repo_%d.db", time.Now().UnixNano()))
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if len(bare) > 0 && bare[0] {
		return db
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name, username string) *domain.User {
	t.Helper()
	u := &domain.User{Name: name, Username: username, Email: username + "@coony.test", PasswordHash: "x"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

func seedConversation(t *testing.T, db *gorm.DB, a, b *domain.User, at time.Time) *domain.Conversation {
	t.Helper()
	c, err := CreateConversation(bg, db, domain.ConversationKey(a.ID, b.ID), at)
	if err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	if err := AddParticipants(bg, db, c.ID, []uint{a.ID, b.ID}, at); err != nil {
		t.Fatalf("seed participants: %v", err)
	}
	return c
}

func seedUserNoFail(db *gorm.DB, name, username, email string) error {
	return CreateUser(bg, db, &domain.User{Name: name, Username: username, Email: email, PasswordHash: "x"})
}
