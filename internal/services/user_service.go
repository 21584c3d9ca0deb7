// Package services – UserService
//
// This file implements UserService, the identity store: registration with
// handle generation, login by email or handle, profile edits and the people
// search used to start conversations.
package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/coony/chat-backend/internal/domain"
	"github.com/coony/chat-backend/internal/repo"
	"github.com/coony/chat-backend/internal/search"
)

const (
	// SearchLimit caps people search results.
	SearchLimit = 8

	handleBaseRunes    = 40
	handleFallbackBase = "usuario"
	handleAttempts     = 25
)

// randSuffix returns the six-digit suffix appended to generated handles.
var randSuffix = func() string { return fmt.Sprintf("%06d", rand.IntN(1_000_000)) }

// RegisterInput carries the sign-up form.
type RegisterInput struct {
	Name     string `validate:"required,max=100"`
	Email    string `validate:"required,email,max=254"`
	Phone    string `validate:"max=20"`
	Password string `validate:"required,min=6,max=72"`
}

// ProfileInput is a partial profile edit; nil fields are left unchanged.
type ProfileInput struct {
	Name      *string
	Username  *string
	AvatarURL *string
	Bio       *string
	Location  *string
}

// UserService owns user identities.
type UserService struct {
	DB       *gorm.DB
	Validate *validator.Validate

	// BcryptCost is the hashing cost for new passwords.
	BcryptCost int
}

// NewUserService constructs a UserService with default validation and cost.
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db, Validate: validator.New(), BcryptCost: bcrypt.DefaultCost}
}

// Register creates a user with a freshly generated handle.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Register")
	defer span.End()

	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	if err := s.validator().Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, fieldErrors(err))
	}

	if _, err := repo.GetUserByEmail(ctx, s.DB, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	cost := s.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), cost)
	if err != nil {
		return nil, err
	}

	// A concurrent sign-up can still grab the email or the handle between the
	// checks and the insert; the unique indexes decide.
	for attempt := 0; attempt < 3; attempt++ {
		handle, err := s.generateHandle(ctx, in.Name)
		if err != nil {
			return nil, err
		}
		u := &domain.User{
			Name:         in.Name,
			Username:     handle,
			Email:        in.Email,
			Phone:        in.Phone,
			PasswordHash: string(hash),
		}
		err = repo.CreateUser(ctx, s.DB, u)
		if err == nil {
			span.SetAttributes(attribute.Int64("user.id", int64(u.ID)))
			return u, nil
		}
		if !repo.IsDuplicate(err) {
			return nil, err
		}
		if _, gerr := repo.GetUserByEmail(ctx, s.DB, in.Email); gerr == nil {
			return nil, ErrEmailTaken
		}
	}
	return nil, ErrHandleTaken
}

// generateHandle derives "<slug>-NNNNNN" from name, probing for a free one.
func (s *UserService) generateHandle(ctx context.Context, name string) (string, error) {
	base := strings.TrimRight(search.Truncate(search.Slugify(name), handleBaseRunes), "-")
	if base == "" {
		base = handleFallbackBase
	}
	for i := 0; i < handleAttempts; i++ {
		candidate := search.Truncate(base+"-"+randSuffix(), search.MaxHandleRunes)
		taken, err := repo.UsernameTaken(ctx, s.DB, candidate, 0)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return handleFallbackBase + "-" + randSuffix(), nil
}

// Authenticate resolves login (an email, or a handle with or without '@')
// and checks password.
func (s *UserService) Authenticate(ctx context.Context, login, password string) (*domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Authenticate")
	defer span.End()

	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var (
		u   *domain.User
		err error
	)
	if i := strings.Index(login, "@"); i > 0 {
		u, err = repo.GetUserByEmail(ctx, s.DB, login)
	} else {
		handle := search.NormalizeHandle(login)
		if handle == "" {
			return nil, ErrInvalidCredentials
		}
		u, err = repo.GetUserByUsername(ctx, s.DB, handle)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Get returns the user with id.
func (s *UserService) Get(ctx context.Context, id uint) (*domain.User, error) {
	u, err := repo.GetUser(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// GetByHandle resolves a raw handle ("@maria-silva", "Maria Silva", ...).
// A handle that normalizes to nothing yields ErrInvalidHandle.
func (s *UserService) GetByHandle(ctx context.Context, raw string) (*domain.User, error) {
	handle := search.NormalizeHandle(raw)
	if handle == "" {
		return nil, ErrInvalidHandle
	}
	u, err := repo.GetUserByUsername(ctx, s.DB, handle)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// UpdateProfile applies in to the user and returns the updated record.
func (s *UserService) UpdateProfile(ctx context.Context, id uint, in ProfileInput) (*domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "UpdateProfile",
		trace.WithAttributes(attribute.Int64("user.id", int64(id))),
	)
	defer span.End()

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := s.validator().Var(name, "required,max=100"); err != nil {
			return nil, fmt.Errorf("%w: name: %s", ErrValidation, fieldErrors(err))
		}
		fields["name"] = name
	}
	if in.Username != nil {
		handle := search.NormalizeHandle(*in.Username)
		if handle == "" {
			return nil, ErrInvalidHandle
		}
		taken, err := repo.UsernameTaken(ctx, s.DB, handle, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrHandleTaken
		}
		fields["username"] = handle
	}
	if in.AvatarURL != nil {
		avatar := strings.TrimSpace(*in.AvatarURL)
		if avatar == "" {
			fields["avatar_url"] = nil
		} else {
			if err := s.validator().Var(avatar, "uri,max=500"); err != nil {
				return nil, fmt.Errorf("%w: avatar_url: %s", ErrValidation, fieldErrors(err))
			}
			fields["avatar_url"] = avatar
		}
	}
	if in.Bio != nil {
		bio := search.NormalizeText(*in.Bio)
		if err := s.validator().Var(bio, "max=500"); err != nil {
			return nil, fmt.Errorf("%w: bio: %s", ErrValidation, fieldErrors(err))
		}
		fields["bio"] = bio
	}
	if in.Location != nil {
		loc := strings.TrimSpace(*in.Location)
		if err := s.validator().Var(loc, "max=120"); err != nil {
			return nil, fmt.Errorf("%w: location: %s", ErrValidation, fieldErrors(err))
		}
		fields["location"] = loc
	}

	// Some drivers report zero affected rows for a no-op update; existence
	// was checked above.
	if err := repo.UpdateUserFields(ctx, s.DB, id, fields); err != nil && !errors.Is(err, repo.ErrNotFound) {
		if repo.IsDuplicate(err) {
			return nil, ErrHandleTaken
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

// Search finds people by name or handle substring, excluding viewerID.
func (s *UserService) Search(ctx context.Context, viewerID uint, q string) ([]domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Search",
		trace.WithAttributes(attribute.Int64("user.id", int64(viewerID))),
	)
	defer span.End()

	q = strings.TrimSpace(q)
	if q == "" {
		return []domain.User{}, nil
	}
	nameTerm := strings.TrimLeft(q, "@")
	handleTerm := search.NormalizeHandle(q)
	return repo.SearchUsers(ctx, s.DB, viewerID, nameTerm, handleTerm, SearchLimit)
}

func (s *UserService) validator() *validator.Validate {
	if s.Validate == nil {
		s.Validate = validator.New()
	}
	return s.Validate
}

// fieldErrors flattens validator errors into "Field:tag" pairs.
func fieldErrors(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		if fe.Field() == "" {
			parts = append(parts, fe.Tag())
			continue
		}
		parts = append(parts, strings.ToLower(fe.Field())+":"+fe.Tag())
	}
	return strings.Join(parts, ", ")
}
