// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

import (
	"errors"
	"fmt"
)

// APIError represents a failure response from the Bot API. Callers
// can use errors.As to extract the structured information:
//
//	var apiErr *telegram.APIError
//	if errors.As(err, &apiErr) {
//	    if apiErr.Code == 403 { ... }
//	}
type APIError struct {
	// Code is the error_code field of the response (mirrors the HTTP
	// status in practice: 400, 403, 429, ...).
	Code int `json:"error_code"`
	// Description is the human-readable error text from the server.
	Description string `json:"description"`
	// RetryAfter is the cooldown in seconds from a 429 response's
	// parameters object. Zero when the server sent none.
	RetryAfter int `json:"-"`
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram: %d: %s (retry after %ds)", e.Code, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram: %d: %s", e.Code, e.Description)
}

// IsAPIError checks whether err is an *APIError with the given code.
func IsAPIError(err error, code int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
