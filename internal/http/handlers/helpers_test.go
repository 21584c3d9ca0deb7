package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/coony/chat-backend/internal/domain"
	"github.com/coony/chat-backend/internal/http/middleware"
	"github.com/coony/chat-backend/internal/realtime"
	"github.com/coony/chat-backend/internal/repo"
	"github.com/coony/chat-backend/internal/services"
	"github.com/coony/chat-backend/internal/view"
)

var bg = context.Background()

// testUserHeader authenticates test requests without real tokens.
const testUserHeader = "X-Test-User"

// stubIssuer mints "tok-<id>" tokens valid for an hour.
type stubIssuer struct{}

func (stubIssuer) Issue(userID uint) (string, time.Time, error) {
	return "tok-" + strconv.FormatUint(uint64(userID), 10), time.Now().Add(time.Hour), nil
}

type fixture struct {
	db     *gorm.DB
	broker *realtime.MemoryBroker
	users  *services.UserService
	convs  *services.ConversationService
	msgs   *services.MessageService
	r      *gin.Engine

	ana, bruno, carla *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "handlers.db")
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	broker := realtime.NewMemoryBroker(8)
	t.Cleanup(func() { _ = broker.Close() })

	f := &fixture{
		db:     db,
		broker: broker,
		users:  services.NewUserService(db),
		convs:  services.NewConversationService(db),
		msgs:   services.NewMessageService(db, broker),
	}
	f.users.BcryptCost = bcrypt.MinCost

	h := New(Deps{
		Users:         f.users,
		Conversations: f.convs,
		Messages:      f.msgs,
		Notifications: services.NewNotificationService(db),
		Social:        services.NewSocialService(db),
		Tokens:        stubIssuer{},
		Presenter:     view.Presenter{DefaultAvatar: "/avatar.png"},
		CookieName:    "coony_session",
		Broker:        broker,
		Hub:           realtime.NewHub(),
		SendBuffer:    8,
	})
	f.r = testRouter(h)

	f.ana = f.mkUser(t, "Ana", "ana")
	f.bruno = f.mkUser(t, "Bruno", "bruno")
	f.carla = f.mkUser(t, "Carla", "carla")
	return f
}

// testRouter mounts every endpoint behind a header-based identity.
func testRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if n, err := strconv.ParseUint(c.GetHeader(testUserHeader), 10, 64); err == nil {
			middleware.SetUserID(c, uint(n))
		}
		c.Next()
	})

	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)
	r.GET("/me", h.Me)
	r.PATCH("/me", h.UpdateMe)
	r.GET("/search-users", h.SearchUsers)

	r.GET("/conversations", h.ListConversations)
	r.POST("/conversations/start", h.StartConversation)
	r.GET("/conversations/:id/messages", h.ListMessages)
	r.POST("/conversations/:id/messages/send", h.SendMessage)
	r.POST("/messages/:id/delete", h.DeleteMessage)

	r.GET("/notifications", h.ListNotifications)
	r.POST("/notifications/clear", h.ClearNotifications)

	r.GET("/posts", h.ListPosts)
	r.POST("/posts", h.CreatePost)
	r.DELETE("/posts/:id", h.DeletePost)
	r.POST("/posts/:id/like", h.ToggleLike)
	r.POST("/posts/:id/comments", h.CreateComment)

	r.GET("/ws/chat/:id", h.ChatSocket)
	return r
}

func (f *fixture) mkUser(t *testing.T, name, handle string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("segredo"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &domain.User{Name: name, Username: handle, Email: handle + "@coony.test", PasswordHash: string(hash)}
	if err := repo.CreateUser(bg, f.db, u); err != nil {
		t.Fatalf("create user %s: %v", handle, err)
	}
	return u
}

// conversation returns the conversation between a and b.
func (f *fixture) conversation(t *testing.T, a, b *domain.User) uint {
	t.Helper()
	c, err := f.convs.GetOrCreate(bg, a.ID, b.ID)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	return c.ID
}

// do performs a request as user (0 means anonymous) with an optional JSON
// body and extra header pairs.
func (f *fixture) do(method, path string, user uint, body any, headers ...string) *httptest.ResponseRecorder {
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if user != 0 {
		req.Header.Set(testUserHeader, strconv.FormatUint(uint64(user), 10))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v (body=%s)", err, w.Body.String())
	}
	return v
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status %d, want %d (body=%s)", w.Code, status, w.Body.String())
	}
	er := decode[ErrorResponse](t, w)
	if er.Code != code || er.Detail == "" {
		t.Fatalf("unexpected envelope: %+v", er)
	}
}

// Compile-time checks that the concrete services satisfy the contracts.
var (
	_ UserService         = (*services.UserService)(nil)
	_ ConversationService = (*services.ConversationService)(nil)
	_ MessageService      = (*services.MessageService)(nil)
	_ NotificationService = (*services.NotificationService)(nil)
	_ SocialService       = (*services.SocialService)(nil)
)

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }
