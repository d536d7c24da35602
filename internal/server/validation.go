package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"

	"echovia/internal/auth"

	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationResult contains validation results
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// respondWithValidationError sends a structured validation error response
func (ms *MusicServer) respondWithValidationError(w http.ResponseWriter, r *http.Request, errs []ValidationError) {
	ms.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"errors": errs,
	}).Warn("Validation failed")

	ms.respondJSON(w, http.StatusBadRequest, ValidationResult{Valid: false, Errors: errs})
}

// respondWithError sends a structured error response
func (ms *MusicServer) respondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	ms.respondWithErrorFields(w, r, statusCode, message, err, nil)
}

// respondWithErrorFields is respondWithError with extra response fields
func (ms *MusicServer) respondWithErrorFields(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error, extra map[string]interface{}) {
	logEntry := ms.logger.WithFields(logrus.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status_code": statusCode,
		"message":     message,
	})

	if err != nil {
		logEntry = logEntry.WithError(err)
	}

	if statusCode >= 500 {
		logEntry.Error("Server error")
	} else {
		logEntry.Warn("Client error")
	}

	response := map[string]interface{}{
		"error":   message,
		"code":    statusCode,
		"success": false,
	}
	for k, v := range extra {
		response[k] = v
	}

	ms.respondJSON(w, statusCode, response)
}

// respondJSON writes v as the JSON body with the given status
func (ms *MusicServer) respondJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ms.logger.WithError(err).Debug("Failed to write JSON response")
	}
}

// decodeJSON reads a bounded JSON request body into dst
func decodeJSON(r *http.Request, dst interface{}) *ValidationError {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		return &ValidationError{Field: "body", Message: "Request body is required", Code: "MISSING_BODY"}
	}
	return &ValidationError{Field: "body", Message: "Invalid JSON", Code: "INVALID_JSON"}
}

// validateID checks an identifier taken from the path or a body field
func validateID(field, id string) *ValidationError {
	if id == "" {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s is required", field),
			Code:    "MISSING_" + strings.ToUpper(field),
		}
	}
	if len(id) > 64 || strings.ContainsAny(id, "/\\\x00") {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s is malformed", field),
			Code:    "INVALID_" + strings.ToUpper(field),
		}
	}
	return nil
}

// validateSearchQuery validates search query parameters
func validateSearchQuery(query string) *ValidationError {
	if len(query) > 1000 {
		return &ValidationError{
			Field:   "q",
			Message: "Search query too long (max 1000 characters)",
			Code:    "SEARCH_QUERY_TOO_LONG",
		}
	}

	if strings.Contains(query, "\x00") {
		return &ValidationError{
			Field:   "q",
			Message: "Search query contains invalid characters",
			Code:    "INVALID_SEARCH_CHARACTERS",
		}
	}

	return nil
}

// validateURL validates remote media URLs. Empty is allowed when optional.
func validateURL(field, urlStr string, optional bool) *ValidationError {
	if urlStr == "" {
		if optional {
			return nil
		}
		return &ValidationError{Field: field, Message: "URL is required", Code: "MISSING_URL"}
	}

	if len(urlStr) > 2048 {
		return &ValidationError{
			Field:   field,
			Message: "URL too long (max 2048 characters)",
			Code:    "URL_TOO_LONG",
		}
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Host == "" {
		return &ValidationError{Field: field, Message: "Invalid URL format", Code: "INVALID_URL_FORMAT"}
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ValidationError{
			Field:   field,
			Message: "URL must use HTTP or HTTPS protocol",
			Code:    "INVALID_URL_PROTOCOL",
		}
	}

	return nil
}

// validateName validates playlist and album names
func validateName(field, name string) *ValidationError {
	if name == "" {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s is required", field),
			Code:    "MISSING_" + strings.ToUpper(field),
		}
	}

	if utf8.RuneCountInString(name) > 255 {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s too long (max 255 characters)", field),
			Code:    strings.ToUpper(field) + "_TOO_LONG",
		}
	}

	if strings.ContainsAny(name, "\x00\n\r") {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s contains invalid characters", field),
			Code:    "INVALID_" + strings.ToUpper(field) + "_CHARACTERS",
		}
	}

	return nil
}

// validateEmail checks that email is a bare address
func validateEmail(email string) *ValidationError {
	if email == "" {
		return &ValidationError{Field: "email", Message: "Email is required", Code: "MISSING_EMAIL"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &ValidationError{Field: "email", Message: "Invalid email address", Code: "INVALID_EMAIL"}
	}
	return nil
}

// validateSignup checks every signup field and reports all problems at once
func validateSignup(username, email, password string) []ValidationError {
	var errs []ValidationError
	if ve := validateName("username", username); ve != nil {
		errs = append(errs, *ve)
	}
	if ve := validateEmail(email); ve != nil {
		errs = append(errs, *ve)
	}
	if len(password) < auth.MinPasswordLength {
		errs = append(errs, ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("Password must be at least %d characters", auth.MinPasswordLength),
			Code:    "WEAK_PASSWORD",
		})
	}
	return errs
}

// sanitizeInput sanitizes user input to prevent injection attacks
func sanitizeInput(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}
