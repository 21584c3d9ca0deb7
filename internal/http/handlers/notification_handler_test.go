package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/coony/chat-backend/internal/services"
)

func TestNotifications_FeedFilterAndClear(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, f.ana, f.bruno)
	if _, err := f.msgs.Append(bg, conv, f.bruno.ID, "chegou?"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := f.msgs.Append(bg, conv, f.ana.ID, "sim"); err != nil {
		t.Fatalf("append: %v", err)
	}

	w := f.do(http.MethodGet, "/notifications", f.ana.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("feed -> %d %s", w.Code, w.Body.String())
	}
	feed := decode[services.Feed](t, w)
	if feed.Stats.Total != 1 || feed.Stats.Message != 1 || len(feed.Items) != 1 {
		t.Fatalf("want bruno's message only, got %+v", feed)
	}
	if it := feed.Items[0]; it.Title != "Bruno respondeu no chat" || it.Description != "chegou?" || it.RelativeTime != "agora mesmo" {
		t.Fatalf("unexpected item: %+v", it)
	}

	w = f.do(http.MethodGet, "/notifications?type=bogus&q=%20CHEGOU%20", f.ana.ID, nil)
	feed = decode[services.Feed](t, w)
	if feed.Filter != "all" || feed.Query != "CHEGOU" || !feed.HasFilters || len(feed.Items) != 1 {
		t.Fatalf("unexpected filtered feed: %+v", feed)
	}
	w = f.do(http.MethodGet, "/notifications?type=like", f.ana.ID, nil)
	if feed = decode[services.Feed](t, w); len(feed.Items) != 0 || feed.Stats.Message != 1 {
		t.Fatalf("type filter not applied after stats: %+v", feed)
	}

	w = f.do(http.MethodPost, "/notifications/clear", f.ana.ID, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"cleared_at"`) {
		t.Fatalf("clear -> %d %s", w.Code, w.Body.String())
	}
	w = f.do(http.MethodGet, "/notifications", f.ana.ID, nil)
	if feed = decode[services.Feed](t, w); len(feed.Items) != 0 || feed.ClearedAt == nil {
		t.Fatalf("clear did not move the mark: %+v", feed)
	}

	// Clearing is per user.
	w = f.do(http.MethodGet, "/notifications", f.bruno.ID, nil)
	if feed = decode[services.Feed](t, w); feed.Stats.Message != 1 {
		t.Fatalf("bruno's feed affected: %+v", feed)
	}
}
