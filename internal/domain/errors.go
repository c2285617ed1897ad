package domain

import "errors"

// Common domain errors
var (
	// User errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameExists     = errors.New("username already exists")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidPassword    = errors.New("invalid password")

	// Auth errors
	ErrUnauthorized = errors.New("authentication required")
	ErrTokenInvalid = errors.New("token invalid or expired")
	ErrForbidden    = errors.New("operation not allowed")

	// Conversation errors
	ErrConversationNotFound = errors.New("conversation not found")

	// Message errors
	ErrMessageNotFound   = errors.New("message not found")
	ErrInvalidRole       = errors.New("invalid message role")
	ErrMessageNotEditable = errors.New("only user messages can be edited")

	// Model config errors
	ErrModelConfigNotFound = errors.New("model config not found")
	ErrNoModelConfig       = errors.New("no default model config")
	ErrUnknownProvider     = errors.New("unknown model provider")
	ErrModelConfigExists   = errors.New("model config already exists")

	// Memory errors
	ErrMemoryNotFound     = errors.New("memory not found")
	ErrNamespaceNotFound  = errors.New("memory namespace not found")
	ErrEmbeddingsFailed   = errors.New("failed to generate embeddings")
	ErrMemorySearchFailed = errors.New("memory search failed")

	// LLM errors
	ErrLLMUnavailable   = errors.New("LLM service unavailable")
	ErrLLMRequestFailed = errors.New("LLM request failed")

	// Validation errors
	ErrInvalidID    = errors.New("invalid ID format")
	ErrEmptyContent = errors.New("content cannot be empty")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("resource not found")
)

// DomainError wraps a domain error with additional context
type DomainError struct {
	Err     error
	Message string
	Code    string
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func NewDomainError(err error, message string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
	}
}

func NewDomainErrorWithCode(err error, message, code string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}
