// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a user is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coony/chat-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateUser inserts u and fills its ID.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	return db.WithContext(ctx).Omit(clause.Associations).Create(u).Error
}

// GetUser fetches a user by primary key.
func GetUser(ctx context.Context, db *gorm.DB, id uint) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail fetches a user by (lower-cased) email.
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername fetches a user by exact handle slug.
func GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// UsernameTaken reports whether username belongs to a user other than exceptID.
// Pass exceptID=0 to check against every user.
func UsernameTaken(ctx context.Context, db *gorm.DB, username string, exceptID uint) (bool, error) {
	var n int64
	q := db.WithContext(ctx).Model(&domain.User{}).Where("username = ?", username)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

// UpdateUserFields applies a partial update. Returns ErrNotFound when no row
// matched.
func UpdateUserFields(ctx context.Context, db *gorm.DB, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SearchUsers matches users whose name contains nameTerm or whose username
// contains handleTerm, case-insensitively. Empty terms are ignored; when both
// are empty nothing matches. The excluded user never appears. Results are
// ordered by name and capped at limit.
func SearchUsers(ctx context.Context, db *gorm.DB, excludeID uint, nameTerm, handleTerm string, limit int) ([]domain.User, error) {
	var (
		conds []string
		args  []any
	)
	if nameTerm != "" {
		conds = append(conds, `LOWER(name) LIKE ? ESCAPE '!'`)
		args = append(args, likePattern(nameTerm))
	}
	if handleTerm != "" {
		conds = append(conds, `LOWER(username) LIKE ? ESCAPE '!'`)
		args = append(args, likePattern(handleTerm))
	}
	out := []domain.User{}
	if len(conds) == 0 {
		return out, nil
	}
	q := db.WithContext(ctx).
		Where("("+strings.Join(conds, " OR ")+")", args...).
		Where("id <> ?", excludeID).
		Order("name ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// likePattern lower-cases term, escapes LIKE wildcards with '!' (portable
// across sqlite, postgres and mysql) and wraps it in %.
func likePattern(term string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(strings.ToLower(term)) + "%"
}
