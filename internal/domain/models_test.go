package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func allModels() []any {
	return []any{
		&User{}, &Conversation{}, &ConversationParticipant{}, &Message{}, &MessageHide{},
		&Post{}, &Comment{}, &PostLike{}, &PostLikeEvent{}, &NotificationState{}, &Idempotency{},
	}
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		User{}.TableName():                    "users",
		Conversation{}.TableName():            "conversations",
		ConversationParticipant{}.TableName(): "conversation_participants",
		Message{}.TableName():                 "messages",
		MessageHide{}.TableName():             "message_hides",
		Post{}.TableName():                    "posts",
		Comment{}.TableName():                 "comments",
		PostLike{}.TableName():                "post_likes",
		PostLikeEvent{}.TableName():           "post_like_events",
		NotificationState{}.TableName():       "notification_states",
		Idempotency{}.TableName():             "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestConversationKey_SortsAsStrings(t *testing.T) {
	if got := ConversationKey(3, 7); got != "3|7" {
		t.Fatalf("ConversationKey(3,7) = %q", got)
	}
	if got := ConversationKey(7, 3); got != "3|7" {
		t.Fatalf("ConversationKey(7,3) = %q", got)
	}
	// lexical, not numeric: "10" < "2"
	if got := ConversationKey(2, 10); got != "10|2" {
		t.Fatalf("ConversationKey(2,10) = %q; want %q", got, "10|2")
	}
	if ConversationKey(2, 10) != ConversationKey(10, 2) {
		t.Fatalf("key must not depend on argument order")
	}
}

func TestMessage_DeletedLabel(t *testing.T) {
	m := &Message{}
	if got := m.DeletedLabel(); got != "Usuário apagou esta mensagem." {
		t.Fatalf("fallback label = %q", got)
	}
	m.DeletedBy = &User{Name: "Ana"}
	if got := m.DeletedLabel(); got != "Ana apagou esta mensagem." {
		t.Fatalf("named label = %q", got)
	}
}

func TestConversation_OtherAndHasParticipant(t *testing.T) {
	c := &Conversation{Members: []ConversationParticipant{
		{UserID: 1, User: User{ID: 1, Name: "A"}},
		{UserID: 2, User: User{ID: 2, Name: "B"}},
	}}
	if !c.HasParticipant(1) || !c.HasParticipant(2) || c.HasParticipant(3) {
		t.Fatalf("HasParticipant mismatch")
	}
	if o := c.Other(1); o == nil || o.ID != 2 {
		t.Fatalf("Other(1) = %+v", o)
	}
	if o := c.Other(3); o == nil {
		t.Fatalf("Other for a non-member should still return a member")
	}
	solo := &Conversation{Members: []ConversationParticipant{{UserID: 1, User: User{ID: 1}}}}
	if o := solo.Other(1); o != nil {
		t.Fatalf("Other on single-member conversation = %+v; want nil", o)
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(allModels()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	for _, tbl := range allModels() {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}

	if !m.HasIndex(&Conversation{}, "ux_conversation_key") {
		t.Fatalf("expected unique index ux_conversation_key on conversations")
	}
	if !m.HasIndex(&Message{}, "idx_conversation_msgs") {
		t.Fatalf("expected index idx_conversation_msgs on messages")
	}
	if !m.HasIndex(&PostLikeEvent{}, "ux_like_event_post_user") {
		t.Fatalf("expected unique index ux_like_event_post_user on post_like_events")
	}
	if !m.HasIndex(&Idempotency{}, "ux_user_scope_key") {
		t.Fatalf("expected unique index ux_user_scope_key on idempotency")
	}

	now := time.Now().UTC()
	a := &User{Name: "A", Username: "a", Email: "a@x.io", PasswordHash: "h"}
	b := &User{Name: "B", Username: "b", Email: "b@x.io", PasswordHash: "h"}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if err := db.Create(b).Error; err != nil {
		t.Fatalf("insert b: %v", err)
	}

	conv := &Conversation{ConversationKey: ConversationKey(a.ID, b.ID)}
	if err := db.Create(conv).Error; err != nil {
		t.Fatalf("insert conversation: %v", err)
	}
	// Same pair, other order: the unique key must reject it.
	if err := db.Create(&Conversation{ConversationKey: ConversationKey(b.ID, a.ID)}).Error; err == nil {
		t.Fatalf("expected unique violation on conversation_key")
	}

	for _, uid := range []uint{a.ID, b.ID} {
		if err := db.Omit("User").Create(&ConversationParticipant{ConversationID: conv.ID, UserID: uid}).Error; err != nil {
			t.Fatalf("insert participant: %v", err)
		}
	}

	msg := &Message{ConversationID: conv.ID, AuthorID: a.ID, Text: "oi", CreatedAt: now}
	if err := db.Omit("Author", "DeletedBy", "Conversation").Create(msg).Error; err != nil {
		t.Fatalf("insert message: %v", err)
	}
	if err := db.Omit("Message").Create(&MessageHide{MessageID: msg.ID, UserID: b.ID}).Error; err != nil {
		t.Fatalf("insert hide: %v", err)
	}

	// CASCADE: deleting the message removes its hides.
	if err := db.Delete(&Message{}, msg.ID).Error; err != nil {
		t.Fatalf("delete message: %v", err)
	}
	var cnt int64
	if err := db.Model(&MessageHide{}).Where("message_id = ?", msg.ID).Count(&cnt).Error; err != nil {
		t.Fatalf("count hides: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected hides to cascade-delete, got %d", cnt)
	}

	// CASCADE: deleting the conversation removes participants.
	if err := db.Delete(&Conversation{}, conv.ID).Error; err != nil {
		t.Fatalf("delete conversation: %v", err)
	}
	if err := db.Model(&ConversationParticipant{}).Where("conversation_id = ?", conv.ID).Count(&cnt).Error; err != nil {
		t.Fatalf("count participants: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected participants to cascade-delete, got %d", cnt)
	}
}
