package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// NotConfiguredMessage is returned when the chatbot is used before initialisation.
	NotConfiguredMessage = "chatbot is not initialized"
	// EmbeddingErrorMessage describes failures while vectorising a query.
	EmbeddingErrorMessage = "embedding request failed"
	// RetrievalErrorMessage describes failures of the vector index or chunk store.
	RetrievalErrorMessage = "retrieval failed"
	// AlignmentErrorMessage describes an index id that has no matching chunk.
	AlignmentErrorMessage = "index id has no matching chunk"
	// GenerationErrorMessage describes generative model failures.
	GenerationErrorMessage = "generative model request failed"
	// AuthErrorMessage describes a rejected model credential.
	AuthErrorMessage = "generative model rejected the API key"
	// QuotaErrorMessage describes a quota or rate limit rejection.
	QuotaErrorMessage = "generative model quota exceeded"
	// NetworkErrorMessage describes transport level failures.
	NetworkErrorMessage = "network error"
)

// Kind categorises an AppError so callers can branch without string matching.
type Kind string

const (
	KindInternal       Kind = "internal"
	KindConfig         Kind = "config"
	KindNotConfigured  Kind = "not_configured"
	KindInvalidInput   Kind = "invalid_input"
	KindNotFound       Kind = "not_found"
	KindEmbedding      Kind = "embedding"
	KindRetrieval      Kind = "retrieval"
	KindIndexAlignment Kind = "index_alignment"
	KindGeneration     Kind = "generation"
	KindAuth           Kind = "auth"
	KindQuota          Kind = "quota"
	KindNetwork        Kind = "network"
	KindRedis          Kind = "redis"
)

// ErrNotConfigured is matched by errors.Is for every not-configured AppError.
var ErrNotConfigured = errors.New(NotConfiguredMessage)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
	Kind    Kind
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
		Kind:    KindInternal,
	}
}

// NewKind creates an AppError of the given kind.
func NewKind(kind Kind, err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
		Kind:    kind,
	}
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	if target == ErrNotConfigured && e.Kind == KindNotConfigured {
		return true
	}
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

// Config reports a missing or invalid input at initialisation time.
func Config(message string, err error) *AppError {
	return NewKind(KindConfig, err, http.StatusBadRequest, message)
}

// InvalidInput reports a malformed request value.
func InvalidInput(message string) *AppError {
	return NewKind(KindInvalidInput, nil, http.StatusBadRequest, message)
}

// NotFound reports a missing resource.
func NotFound(message string) *AppError {
	return NewKind(KindNotFound, nil, http.StatusNotFound, message)
}

// NotConfigured reports use of a component before initialisation.
func NotConfigured(what string) *AppError {
	return NewKind(KindNotConfigured, fmt.Errorf("%s is missing", what), http.StatusConflict, NotConfiguredMessage)
}

// Embedding wraps an embedder failure.
func Embedding(err error) error {
	if err == nil {
		return nil
	}
	return NewKind(KindEmbedding, err, http.StatusBadGateway, EmbeddingErrorMessage)
}

// Retrieval wraps a vector index or chunk store failure.
func Retrieval(err error) error {
	if err == nil {
		return nil
	}
	return NewKind(KindRetrieval, err, http.StatusInternalServerError, RetrievalErrorMessage)
}

// Alignment reports an index id that does not resolve to a chunk.
func Alignment(id int64, chunks int) *AppError {
	return NewKind(KindIndexAlignment,
		fmt.Errorf("id %d outside chunk store of length %d", id, chunks),
		http.StatusUnprocessableEntity, AlignmentErrorMessage)
}

// KindOf returns the kind of the first AppError in the chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// StatusOf returns the HTTP status of the first AppError in the chain.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the safe message of the first AppError in the chain.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return SystemErrorMessage
}
