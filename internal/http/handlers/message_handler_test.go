package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/coony/chat-backend/internal/domain"
	"github.com/coony/chat-backend/internal/services"
)

func sendPath(conv uint) string  { return fmt.Sprintf("/conversations/%d/messages/send", conv) }
func listPath(conv uint) string  { return fmt.Sprintf("/conversations/%d/messages", conv) }
func deletePath(msg uint) string { return fmt.Sprintf("/messages/%d/delete", msg) }

func (f *fixture) listAs(t *testing.T, conv uint, user *domain.User) []uint {
	t.Helper()
	w := f.do(http.MethodGet, listPath(conv), user.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list -> %d %s", w.Code, w.Body.String())
	}
	var ids []uint
	for _, m := range decode[ListMessagesResponse](t, w).Messages {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestSendMessage(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, f.ana, f.bruno)

	w := f.do(http.MethodPost, sendPath(conv), f.ana.ID, SendMessageRequest{Text: "  oi\r\nBruno  "})
	if w.Code != http.StatusCreated {
		t.Fatalf("send -> %d %s", w.Code, w.Body.String())
	}
	m := decode[MessageResponse](t, w).Message
	if m.Text != "oi\nBruno" || !m.IsSelf || !m.CanDeleteForAll || !m.CanDeleteForSelf || m.Author.ID != f.ana.ID {
		t.Fatalf("unexpected message view: %+v", m)
	}

	expectError(t, f.do(http.MethodPost, sendPath(conv), f.ana.ID, `{"text":" \n "}`), http.StatusBadRequest, ErrCodeValidation)
	expectError(t, f.do(http.MethodPost, sendPath(conv), f.carla.ID, `{"text":"intrusa"}`), http.StatusNotFound, ErrCodeNotFound)
	expectError(t, f.do(http.MethodPost, "/conversations/abc/messages/send", f.ana.ID, `{"text":"x"}`), http.StatusBadRequest, ErrCodeBadRequest)
	expectError(t, f.do(http.MethodPost, sendPath(conv), f.ana.ID, `{"text":`), http.StatusBadRequest, ErrCodeBadRequest)

	f.msgs.MaxRunes = 3
	expectError(t, f.do(http.MethodPost, sendPath(conv), f.ana.ID, `{"text":"longo demais"}`), http.StatusBadRequest, ErrCodeValidation)
}

func TestSendMessage_IdempotentReplay(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, f.ana, f.bruno)

	first := f.do(http.MethodPost, sendPath(conv), f.ana.ID, `{"text":"uma vez"}`, "Idempotency-Key", "k-1")
	if first.Code != http.StatusCreated || first.Header().Get("Idempotency-Replayed") != "" {
		t.Fatalf("first send -> %d", first.Code)
	}
	retry := f.do(http.MethodPost, sendPath(conv), f.ana.ID, `{"text":"uma vez"}`, "Idempotency-Key", "k-1")
	if retry.Code != http.StatusCreated || retry.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("retry -> %d replayed=%q", retry.Code, retry.Header().Get("Idempotency-Replayed"))
	}
	if a, b := decode[MessageResponse](t, first).Message.ID, decode[MessageResponse](t, retry).Message.ID; a != b {
		t.Fatalf("replay returned a different message: %d vs %d", a, b)
	}
	if ids := f.listAs(t, conv, f.bruno); len(ids) != 1 {
		t.Fatalf("retry appended again: %v", ids)
	}

	// Another key is another message.
	other := f.do(http.MethodPost, sendPath(conv), f.ana.ID, `{"text":"uma vez"}`, "Idempotency-Key", "k-2")
	if other.Header().Get("Idempotency-Replayed") != "" || len(f.listAs(t, conv, f.bruno)) != 2 {
		t.Fatalf("distinct key was replayed")
	}
}

func TestListMessages(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, f.ana, f.bruno)

	expectError(t, f.do(http.MethodGet, listPath(conv), f.carla.ID, nil), http.StatusNotFound, ErrCodeNotFound)
	expectError(t, f.do(http.MethodGet, listPath(conv+99), f.ana.ID, nil), http.StatusNotFound, ErrCodeNotFound)

	w := f.do(http.MethodGet, listPath(conv), f.ana.ID, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"messages":[]`) {
		t.Fatalf("empty list -> %d %s", w.Code, w.Body.String())
	}

	m1, _ := f.msgs.Append(bg, conv, f.ana.ID, "um")
	m2, _ := f.msgs.Append(bg, conv, f.bruno.ID, "dois")

	w = f.do(http.MethodGet, listPath(conv), f.ana.ID, nil)
	got := decode[ListMessagesResponse](t, w).Messages
	if len(got) != 2 || got[0].ID != m1.ID || got[1].ID != m2.ID {
		t.Fatalf("want oldest first, got %+v", got)
	}
	if !got[0].IsSelf || got[1].IsSelf || got[1].CanDeleteForAll {
		t.Fatalf("viewer-relative flags wrong: %+v", got)
	}

	etag := w.Header().Get("ETag")
	if w = f.do(http.MethodGet, listPath(conv), f.ana.ID, nil, "If-None-Match", etag); w.Code != http.StatusNotModified {
		t.Fatalf("want 304, got %d", w.Code)
	}
	// Hiding changes only the hider's tag.
	if _, err := f.msgs.HideForSelf(bg, m2.ID, f.ana.ID); err != nil {
		t.Fatalf("hide: %v", err)
	}
	if w = f.do(http.MethodGet, listPath(conv), f.ana.ID, nil, "If-None-Match", etag); w.Code != http.StatusOK {
		t.Fatalf("hide did not refresh the tag: %d", w.Code)
	}
}

func TestDeleteMessage_ForSelf(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, f.ana, f.bruno)
	m1, _ := f.msgs.Append(bg, conv, f.ana.ID, "primeira")
	m2, _ := f.msgs.Append(bg, conv, f.bruno.ID, "segunda")

	w := f.do(http.MethodPost, deletePath(m2.ID), f.ana.ID, DeleteMessageRequest{Scope: services.ScopeSelf})
	if w.Code != http.StatusOK {
		t.Fatalf("hide -> %d %s", w.Code, w.Body.String())
	}
	resp := decode[DeleteMessageResponse](t, w)
	if resp.Message != nil || resp.Conversation.ID != conv || resp.Conversation.LastMessage != "primeira" {
		t.Fatalf("unexpected hide response: %+v", resp)
	}

	if ids := f.listAs(t, conv, f.ana); len(ids) != 1 || ids[0] != m1.ID {
		t.Fatalf("ana still sees the hidden message: %v", ids)
	}
	if ids := f.listAs(t, conv, f.bruno); len(ids) != 2 {
		t.Fatalf("hide leaked to bruno: %v", ids)
	}

	// Hiding twice is fine; strangers cannot reach the message at all.
	if w := f.do(http.MethodPost, deletePath(m2.ID), f.ana.ID, `{"scope":"self"}`); w.Code != http.StatusOK {
		t.Fatalf("second hide -> %d", w.Code)
	}
	expectError(t, f.do(http.MethodPost, deletePath(m2.ID), f.carla.ID, `{"scope":"self"}`), http.StatusNotFound, ErrCodeNotFound)
}

func TestDeleteMessage_ForEveryone(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, f.ana, f.bruno)
	m, _ := f.msgs.Append(bg, conv, f.ana.ID, "segredo")

	expectError(t, f.do(http.MethodPost, deletePath(m.ID), f.ana.ID, `{"scope":"everything"}`), http.StatusBadRequest, ErrCodeValidation)
	expectError(t, f.do(http.MethodPost, deletePath(m.ID), f.ana.ID, `{"scope":7}`), http.StatusBadRequest, ErrCodeValidation)
	expectError(t, f.do(http.MethodPost, deletePath(m.ID), f.bruno.ID, `{"scope":"all"}`), http.StatusForbidden, ErrCodeForbidden)
	expectError(t, f.do(http.MethodPost, deletePath(999), f.ana.ID, `{"scope":"all"}`), http.StatusNotFound, ErrCodeNotFound)

	w := f.do(http.MethodPost, deletePath(m.ID), f.ana.ID, `{"scope":" ALL "}`)
	if w.Code != http.StatusOK {
		t.Fatalf("delete -> %d %s", w.Code, w.Body.String())
	}
	resp := decode[DeleteMessageResponse](t, w)
	if resp.Message == nil || !resp.Message.IsDeletedForAll || resp.Message.Text != "" ||
		resp.Message.DisplayText != "Ana apagou esta mensagem." || resp.Message.CanDeleteForAll {
		t.Fatalf("unexpected message: %+v", resp.Message)
	}
	if resp.Conversation.LastMessage != "Ana apagou esta mensagem." {
		t.Fatalf("unexpected preview: %+v", resp.Conversation)
	}

	// Not idempotent: the second attempt is an explicit conflict.
	expectError(t, f.do(http.MethodPost, deletePath(m.ID), f.ana.ID, `{"scope":"all"}`), http.StatusBadRequest, ErrCodeConflict)

	// Still listed for both, with the placeholder.
	w = f.do(http.MethodGet, listPath(conv), f.bruno.ID, nil)
	got := decode[ListMessagesResponse](t, w).Messages
	if len(got) != 1 || got[0].DeletedLabel == nil || *got[0].DeletedLabel != "Ana apagou esta mensagem." {
		t.Fatalf("unexpected list: %+v", got)
	}
}

func TestDeleteMessage_ScopeDefaultsToSelf(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, f.ana, f.bruno)
	m1, _ := f.msgs.Append(bg, conv, f.bruno.ID, "um")
	m2, _ := f.msgs.Append(bg, conv, f.bruno.ID, "dois")

	for _, tc := range []struct {
		name string
		msg  uint
		body any
	}{
		{"empty object", m1.ID, `{}`},
		{"no body", m2.ID, nil},
	} {
		w := f.do(http.MethodPost, deletePath(tc.msg), f.ana.ID, tc.body)
		if w.Code != http.StatusOK {
			t.Fatalf("%s -> %d %s", tc.name, w.Code, w.Body.String())
		}
		if resp := decode[DeleteMessageResponse](t, w); resp.Message != nil {
			t.Fatalf("%s: hide must not return the message: %+v", tc.name, resp.Message)
		}
	}

	if ids := f.listAs(t, conv, f.ana); len(ids) != 0 {
		t.Fatalf("ana still sees hidden messages: %v", ids)
	}
	if ids := f.listAs(t, conv, f.bruno); len(ids) != 2 {
		t.Fatalf("hide leaked to bruno: %v", ids)
	}
	expectError(t, f.do(http.MethodPost, deletePath(m1.ID), f.ana.ID, `{"scope":"Everything"}`), http.StatusBadRequest, ErrCodeValidation)
}
