// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package), and the translation of
// service sentinel errors into status, code and detail. Clients branch on the
// codes; the detail is a human-readable string safe to show to users.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "conflict",
//	  "detail": "Mensagem já foi apagada para todos"
//	}
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/coony/chat-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeValidation       = "validation_failed"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// DetailUnauthenticated is the fixed body detail for requests without a
// session identity.
const DetailUnauthenticated = "Autenticação requerida"

// apiError is the HTTP projection of a service error.
type apiError struct {
	status int
	code   string
	detail string
}

// serviceErrors maps service sentinels to their HTTP projection. Order does
// not matter: every sentinel is distinct.
var serviceErrors = []struct {
	target error
	apiError
}{
	{services.ErrUserNotFound, apiError{http.StatusNotFound, ErrCodeNotFound, "Usuário não encontrado"}},
	{services.ErrInvalidHandle, apiError{http.StatusBadRequest, ErrCodeValidation, "Informe um @usuario válido"}},
	{services.ErrEmailTaken, apiError{http.StatusConflict, ErrCodeConflict, "E-mail já cadastrado"}},
	{services.ErrHandleTaken, apiError{http.StatusConflict, ErrCodeConflict, "Este @usuario já está em uso"}},
	{services.ErrInvalidCredentials, apiError{http.StatusUnauthorized, ErrCodeUnauthorized, "Credenciais inválidas"}},
	{services.ErrConversationNotFound, apiError{http.StatusNotFound, ErrCodeNotFound, "Conversa não encontrada"}},
	{services.ErrSelfConversation, apiError{http.StatusBadRequest, ErrCodeValidation, "Você não pode iniciar uma conversa consigo mesmo"}},
	{services.ErrMessageNotFound, apiError{http.StatusNotFound, ErrCodeNotFound, "Mensagem não encontrada"}},
	{services.ErrEmptyMessage, apiError{http.StatusBadRequest, ErrCodeValidation, "Mensagem vazia"}},
	{services.ErrTooLong, apiError{http.StatusBadRequest, ErrCodeValidation, "Texto muito longo"}},
	{services.ErrInvalidScope, apiError{http.StatusBadRequest, ErrCodeValidation, "Escopo inválido"}},
	{services.ErrForbiddenDelete, apiError{http.StatusForbidden, ErrCodeForbidden, "Você só pode apagar para todos as suas próprias mensagens"}},
	{services.ErrAlreadyDeleted, apiError{http.StatusBadRequest, ErrCodeConflict, "Mensagem já foi apagada para todos"}},
	{services.ErrPostNotFound, apiError{http.StatusNotFound, ErrCodeNotFound, "Post não encontrado"}},
	{services.ErrEmptyPost, apiError{http.StatusBadRequest, ErrCodeValidation, "Post vazio"}},
	{services.ErrEmptyComment, apiError{http.StatusBadRequest, ErrCodeValidation, "Comentário vazio"}},
	{services.ErrForbiddenPost, apiError{http.StatusForbidden, ErrCodeForbidden, "Você só pode apagar seus próprios posts"}},
}

// failErr writes the envelope for err. Validation errors keep their field
// list; anything unknown is a 500.
func failErr(c *gin.Context, err error) {
	if errors.Is(err, services.ErrValidation) {
		detail := strings.TrimPrefix(err.Error(), services.ErrValidation.Error())
		detail = strings.TrimLeft(detail, ": ")
		if detail == "" {
			detail = "Dados inválidos"
		}
		fail(c, http.StatusBadRequest, ErrCodeValidation, detail)
		return
	}
	for _, se := range serviceErrors {
		if errors.Is(err, se.target) {
			fail(c, se.status, se.code, se.detail)
			return
		}
	}
	fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
}
