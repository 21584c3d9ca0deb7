package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newUserSvc(t *testing.T) *UserService {
	t.Helper()
	s := NewUserService(newSvcDB(t))
	s.BcryptCost = bcrypt.MinCost
	return s
}

var generatedHandle = regexp.MustCompile(`^[a-z0-9_-]+-\d{6}$`)

func TestRegister_GeneratesHandleAndHashesPassword(t *testing.T) {
	s := newUserSvc(t)

	u, err := s.Register(bg, RegisterInput{Name: "  João da Silva ", Email: " Joao@Example.COM ", Password: "segredo1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Name != "João da Silva" || u.Email != "joao@example.com" {
		t.Fatalf("unexpected normalization: %+v", u)
	}
	if !strings.HasPrefix(u.Username, "joao-da-silva-") || !generatedHandle.MatchString(u.Username) {
		t.Fatalf("unexpected handle %q", u.Username)
	}
	if u.PasswordHash == "segredo1" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("segredo1")) != nil {
		t.Fatalf("password not hashed")
	}
}

func TestRegister_Validation_And_DuplicateEmail(t *testing.T) {
	s := newUserSvc(t)

	cases := []RegisterInput{
		{Name: "", Email: "a@b.co", Password: "123456"},
		{Name: "Ana", Email: "not-an-email", Password: "123456"},
		{Name: "Ana", Email: "a@b.co", Password: "123"},
		{Name: "Ana", Email: "a@b.co", Phone: strings.Repeat("9", 21), Password: "123456"},
	}
	for i, in := range cases {
		if _, err := s.Register(bg, in); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d: want ErrValidation, got %v", i, err)
		}
	}

	if _, err := s.Register(bg, RegisterInput{Name: "Ana", Email: "ana@b.co", Password: "123456"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := s.Register(bg, RegisterInput{Name: "Ana 2", Email: "ANA@b.co", Password: "123456"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("want ErrEmailTaken, got %v", err)
	}
}

func TestGenerateHandle_FallbackBase_And_CollisionRetry(t *testing.T) {
	s := newUserSvc(t)

	orig := randSuffix
	defer func() { randSuffix = orig }()

	seq := []string{"000001", "000001", "000002"}
	i := 0
	randSuffix = func() string {
		v := seq[i%len(seq)]
		i++
		return v
	}

	mkUser(t, s.DB, "Taken", "usuario-000001")
	h, err := s.generateHandle(bg, "!!! ###")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	// probes keep colliding until the suffix changes
	if h != "usuario-000002" {
		t.Fatalf("want usuario-000002, got %q", h)
	}

	long := strings.Repeat("a", 80)
	randSuffix = func() string { return "123456" }
	h, _ = s.generateHandle(bg, long)
	if h != strings.Repeat("a", 40)+"-123456" {
		t.Fatalf("base not cut at 40 runes: %q", h)
	}
}

func TestGenerateHandle_ExhaustedAttemptsFallsBack(t *testing.T) {
	s := newUserSvc(t)

	orig := randSuffix
	defer func() { randSuffix = orig }()
	n := 0
	randSuffix = func() string {
		n++
		if n <= handleAttempts {
			return "111111"
		}
		return "222222"
	}
	mkUser(t, s.DB, "Maria", "maria-111111")

	h, err := s.generateHandle(bg, "Maria")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if h != "usuario-222222" {
		t.Fatalf("want fallback handle, got %q", h)
	}
}

func TestAuthenticate_EmailOrHandle(t *testing.T) {
	s := newUserSvc(t)
	u, err := s.Register(bg, RegisterInput{Name: "Bia Souza", Email: "bia@coony.test", Password: "senha123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	for _, login := range []string{"bia@coony.test", " BIA@coony.test ", u.Username, "@" + u.Username, strings.ToUpper(u.Username)} {
		got, err := s.Authenticate(bg, login, "senha123")
		if err != nil {
			t.Fatalf("login %q: %v", login, err)
		}
		if got.ID != u.ID {
			t.Fatalf("login %q resolved to %d", login, got.ID)
		}
	}

	for _, tc := range []struct{ login, pw string }{
		{"bia@coony.test", "errada"},
		{"ninguem@coony.test", "senha123"},
		{"@", "senha123"},
		{"", "senha123"},
		{u.Username, ""},
	} {
		if _, err := s.Authenticate(bg, tc.login, tc.pw); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("login %q/%q: want ErrInvalidCredentials, got %v", tc.login, tc.pw, err)
		}
	}
}

func TestGetByHandle(t *testing.T) {
	s := newUserSvc(t)
	u := mkUser(t, s.DB, "Maria Silva", "maria-silva")

	got, err := s.GetByHandle(bg, "  @Maria Silva ")
	if err != nil || got.ID != u.ID {
		t.Fatalf("got %+v, %v", got, err)
	}
	if _, err := s.GetByHandle(bg, "@"); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("want ErrInvalidHandle, got %v", err)
	}
	if _, err := s.GetByHandle(bg, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
	if _, err := s.Get(bg, 9999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}

func strp(s string) *string { return &s }

func TestUpdateProfile(t *testing.T) {
	s := newUserSvc(t)
	a := mkUser(t, s.DB, "Ana", "ana")
	mkUser(t, s.DB, "Bruno", "bruno")

	got, err := s.UpdateProfile(bg, a.ID, ProfileInput{
		Name:      strp("  Ana Lima "),
		Username:  strp("@Ana Lima"),
		AvatarURL: strp("https://cdn.coony.test/a.png"),
		Bio:       strp("oi\r\nmundo "),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != "Ana Lima" || got.Username != "ana-lima" || got.Bio != "oi\nmundo" {
		t.Fatalf("unexpected profile %+v", got)
	}
	if got.AvatarURL == nil || *got.AvatarURL != "https://cdn.coony.test/a.png" {
		t.Fatalf("avatar not stored: %v", got.AvatarURL)
	}

	got, err = s.UpdateProfile(bg, a.ID, ProfileInput{AvatarURL: strp("  ")})
	if err != nil || got.AvatarURL != nil {
		t.Fatalf("blank avatar should clear it: %v %v", got.AvatarURL, err)
	}

	// keeping your own handle is fine
	if _, err := s.UpdateProfile(bg, a.ID, ProfileInput{Username: strp("ana-lima")}); err != nil {
		t.Fatalf("own handle: %v", err)
	}
	if _, err := s.UpdateProfile(bg, a.ID, ProfileInput{Username: strp("Bruno")}); !errors.Is(err, ErrHandleTaken) {
		t.Fatalf("want ErrHandleTaken, got %v", err)
	}
	if _, err := s.UpdateProfile(bg, a.ID, ProfileInput{Username: strp("@@@")}); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("want ErrInvalidHandle, got %v", err)
	}
	if _, err := s.UpdateProfile(bg, a.ID, ProfileInput{Name: strp("   ")}); !errors.Is(err, ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
	if _, err := s.UpdateProfile(bg, 9999, ProfileInput{Name: strp("X")}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}

func TestSearch_ExcludesSelf_CapsAtEight(t *testing.T) {
	s := newUserSvc(t)
	me := mkUser(t, s.DB, "Carla Mendes", "carla")
	for i := 0; i < 12; i++ {
		mkUser(t, s.DB, fmt.Sprintf("Carla %02d", i), fmt.Sprintf("carla-%02d", i))
	}
	mkUser(t, s.DB, "Zé", "ze-carlos")

	got, err := s.Search(bg, me.ID, "carla")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != SearchLimit {
		t.Fatalf("want %d results, got %d", SearchLimit, len(got))
	}
	for _, u := range got {
		if u.ID == me.ID {
			t.Fatalf("search returned the viewer")
		}
	}
	if got[0].Name != "Carla 00" {
		t.Fatalf("results not ordered by name: %q first", got[0].Name)
	}

	got, _ = s.Search(bg, me.ID, "@ze-car")
	if len(got) != 1 || got[0].Username != "ze-carlos" {
		t.Fatalf("handle search failed: %+v", got)
	}

	got, err = s.Search(bg, me.ID, "   ")
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("blank query should return empty list, got %v %v", got, err)
	}
}
