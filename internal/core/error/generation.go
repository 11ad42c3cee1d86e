package errx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// WrapGeneration classifies a generative model failure. AppErrors already in
// the chain are returned unchanged.
func WrapGeneration(err error) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return NewKind(KindAuth, err, http.StatusUnauthorized, AuthErrorMessage)
		case http.StatusTooManyRequests:
			return NewKind(KindQuota, err, http.StatusTooManyRequests, QuotaErrorMessage)
		}
		// Gemini reports an invalid key as 400 INVALID_ARGUMENT.
		if apiErr.Code == http.StatusBadRequest && apiErr.Status == "INVALID_ARGUMENT" && strings.Contains(apiErr.Message, "API key") {
			return NewKind(KindAuth, err, http.StatusUnauthorized, AuthErrorMessage)
		}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return NewKind(KindNetwork, err, http.StatusGatewayTimeout, NetworkErrorMessage)
	}

	return NewKind(KindGeneration, err, http.StatusBadGateway, GenerationErrorMessage)
}
