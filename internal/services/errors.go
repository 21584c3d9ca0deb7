// Package services defines the business logic for identities, conversations,
// messages, social activity and notifications. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Identity errors.
var (
	// ErrUserNotFound indicates that no user matches the given id or handle.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidHandle is returned when a handle normalizes to nothing.
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrEmailTaken is returned on registration with an email already in use.
	ErrEmailTaken = errors.New("email already registered")

	// ErrHandleTaken is returned when a profile edit claims another user's handle.
	ErrHandleTaken = errors.New("handle already taken")

	// ErrInvalidCredentials covers unknown logins and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrValidation wraps input rejected by struct validation.
	ErrValidation = errors.New("validation failed")
)

// Conversation and message errors.
var (
	// ErrConversationNotFound indicates that the conversation does not exist
	// or the caller is not one of its participants.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrSelfConversation is returned when both sides of a conversation are
	// the same user.
	ErrSelfConversation = errors.New("cannot start a conversation with yourself")

	// ErrMessageNotFound indicates that the requested message does not exist
	// or is not accessible to the current user.
	ErrMessageNotFound = errors.New("message not found")

	// ErrEmptyMessage is returned when message text is empty after trimming.
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrTooLong is returned when a text exceeds the configured rune limit.
	ErrTooLong = errors.New("text too long")

	// ErrInvalidScope is returned when a delete scope is neither self nor all.
	ErrInvalidScope = errors.New("invalid delete scope")

	// ErrForbiddenDelete is returned when a non-author deletes for everyone.
	ErrForbiddenDelete = errors.New("only the author can delete for everyone")

	// ErrAlreadyDeleted is returned by a second delete-for-everyone.
	ErrAlreadyDeleted = errors.New("message already deleted for everyone")
)

// Social errors.
var (
	// ErrPostNotFound indicates that the post does not exist.
	ErrPostNotFound = errors.New("post not found")

	// ErrEmptyPost is returned when post text is empty after trimming.
	ErrEmptyPost = errors.New("post text is empty")

	// ErrEmptyComment is returned when comment text is empty after trimming.
	ErrEmptyComment = errors.New("comment text is empty")

	// ErrForbiddenPost is returned when someone other than the author deletes a post.
	ErrForbiddenPost = errors.New("only the author can delete this post")
)
