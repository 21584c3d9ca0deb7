package handlers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coony/chat-backend/internal/domain"
	"github.com/coony/chat-backend/internal/services"
)

func TestListConversations_EmptyAndETag(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/conversations", f.ana.ID, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"conversations":[]`) {
		t.Fatalf("empty inbox -> %d %s", w.Code, w.Body.String())
	}
	etag := w.Header().Get("ETag")
	if !strings.HasPrefix(etag, `W/"conversations:`) {
		t.Fatalf("missing weak etag: %q", etag)
	}

	w = f.do(http.MethodGet, "/conversations", f.ana.ID, nil, "If-None-Match", etag)
	if w.Code != http.StatusNotModified || w.Body.Len() != 0 {
		t.Fatalf("want 304, got %d %s", w.Code, w.Body.String())
	}

	// A new message invalidates the tag.
	conv := f.conversation(t, f.ana, f.bruno)
	if _, err := f.msgs.Append(bg, conv, f.bruno.ID, "oi"); err != nil {
		t.Fatalf("append: %v", err)
	}
	w = f.do(http.MethodGet, "/conversations", f.ana.ID, nil, "If-None-Match", etag)
	if w.Code != http.StatusOK || w.Header().Get("ETag") == etag {
		t.Fatalf("etag not refreshed: %d %q", w.Code, w.Header().Get("ETag"))
	}
	list := decode[ListConversationsResponse](t, w).Conversations
	if len(list) != 1 || list[0].Partner.ID != f.bruno.ID || list[0].LastMessage != "oi" || list[0].LastMessageAt == nil {
		t.Fatalf("unexpected inbox: %+v", list)
	}
}

func TestListConversations_DeletedPreview(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, f.ana, f.bruno)
	m, err := f.msgs.Append(bg, conv, f.ana.ID, "oi")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := f.msgs.DeleteForEveryone(bg, m.ID, f.ana.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	w := f.do(http.MethodGet, "/conversations", f.bruno.ID, nil)
	list := decode[ListConversationsResponse](t, w).Conversations
	if len(list) != 1 || list[0].LastMessage != "Ana apagou esta mensagem." {
		t.Fatalf("unexpected preview: %+v", list)
	}
}

func TestStartConversation(t *testing.T) {
	f := newFixture(t)

	expectError(t, f.do(http.MethodPost, "/conversations/start", f.ana.ID, `{"username":"  "}`),
		http.StatusBadRequest, ErrCodeValidation)
	expectError(t, f.do(http.MethodPost, "/conversations/start", f.ana.ID, `{"username":"@!!!"}`),
		http.StatusBadRequest, ErrCodeValidation)
	expectError(t, f.do(http.MethodPost, "/conversations/start", f.ana.ID, `{"username":"zeca"}`),
		http.StatusNotFound, ErrCodeNotFound)
	expectError(t, f.do(http.MethodPost, "/conversations/start", f.ana.ID, `{"username":"@ana"}`),
		http.StatusBadRequest, ErrCodeValidation)

	w := f.do(http.MethodPost, "/conversations/start", f.ana.ID, `{"username":"@Bruno"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("start -> %d %s", w.Code, w.Body.String())
	}
	first := decode[ConversationResponse](t, w).Conversation
	if first.Partner.ID != f.bruno.ID || first.LastMessage != "" || first.LastMessageAt != nil {
		t.Fatalf("unexpected conversation: %+v", first)
	}

	// The other side starting it lands on the same conversation.
	w = f.do(http.MethodPost, "/conversations/start", f.bruno.ID, `{"username":"ana"}`)
	again := decode[ConversationResponse](t, w).Conversation
	if again.ID != first.ID || again.Partner.ID != f.ana.ID {
		t.Fatalf("want conversation %d seen from bruno, got %+v", first.ID, again)
	}
}

func TestListConversations_ETagTracksPartnerProfile(t *testing.T) {
	f := newFixture(t)
	f.conversation(t, f.ana, f.bruno)

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := f.db.Model(&domain.User{}).Where("1 = 1").UpdateColumn("updated_at", old).Error; err != nil {
		t.Fatalf("backdate users: %v", err)
	}
	if err := f.db.Model(&domain.Conversation{}).Where("1 = 1").UpdateColumn("updated_at", old).Error; err != nil {
		t.Fatalf("backdate conversations: %v", err)
	}

	etag := f.do(http.MethodGet, "/conversations", f.ana.ID, nil).Header().Get("ETag")
	if w := f.do(http.MethodGet, "/conversations", f.ana.ID, nil, "If-None-Match", etag); w.Code != http.StatusNotModified {
		t.Fatalf("want 304 before the edit, got %d", w.Code)
	}

	name := "Bruno Lima"
	if _, err := f.users.UpdateProfile(bg, f.bruno.ID, services.ProfileInput{Name: &name}); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	w := f.do(http.MethodGet, "/conversations", f.ana.ID, nil, "If-None-Match", etag)
	if w.Code != http.StatusOK {
		t.Fatalf("stale 304 after partner rename: %d", w.Code)
	}
	if list := decode[ListConversationsResponse](t, w).Conversations; len(list) != 1 || list[0].Partner.Name != name {
		t.Fatalf("unexpected inbox: %+v", list)
	}
}
