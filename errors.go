package session

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeValidation         = "VALIDATION_FAILED"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeNoRolesAssigned    = "NO_ROLES_ASSIGNED"
	TextCodeVerificationFailed = "VERIFICATION_FAILED"
	TextCodeNetwork            = "NETWORK_ERROR"
	TextCodePermissionDenied   = "PERMISSION_DENIED"
	TextCodeNotAuthenticated   = "NOT_AUTHENTICATED"
	TextCodeCredentialRejected = "CREDENTIAL_REJECTED"
	TextCodeRemote             = "REMOTE_ERROR"
	TextCodeInvalidTransition  = "INVALID_GUARD_TRANSITION"
)

// metadata key holding field level messages on validation errors
const fieldsKey = "fields"

// ErrValidation is returned for client side field checks. It never reaches the network.
var ErrValidation = goerrors.New("validation failed", goerrors.CategoryValidation).
	WithTextCode(TextCodeValidation).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidCredentials is returned when the API rejects the login or omits the token.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoRolesAssigned is returned when login succeeds remotely but grants zero roles.
var ErrNoRolesAssigned = goerrors.New("user has no roles assigned", goerrors.CategoryAuth).
	WithTextCode(TextCodeNoRolesAssigned).
	WithCode(goerrors.CodeForbidden)

// ErrVerificationFailed is returned when an email verification code is refused.
var ErrVerificationFailed = goerrors.New("verification failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeVerificationFailed).
	WithCode(goerrors.CodeBadRequest)

// ErrNetwork wraps transport failures and timeouts.
var ErrNetwork = goerrors.New("network error", goerrors.CategoryOperation).
	WithTextCode(TextCodeNetwork).
	WithCode(http.StatusServiceUnavailable)

// ErrPermissionDenied is used by the guard when the principal lacks every allowed role.
var ErrPermissionDenied = goerrors.New("permission denied", goerrors.CategoryAuthz).
	WithTextCode(TextCodePermissionDenied).
	WithCode(goerrors.CodeForbidden)

// ErrNotAuthenticated is used when no principal is present.
var ErrNotAuthenticated = goerrors.New("not authenticated", goerrors.CategoryAuth).
	WithTextCode(TextCodeNotAuthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrCredentialRejected is returned when the API refuses a bearer token.
var ErrCredentialRejected = goerrors.New("credential rejected", goerrors.CategoryAuth).
	WithTextCode(TextCodeCredentialRejected).
	WithCode(goerrors.CodeUnauthorized)

// ErrRemote covers API failures that have no more specific mapping.
var ErrRemote = goerrors.New("remote API error", goerrors.CategoryOperation).
	WithTextCode(TextCodeRemote).
	WithCode(goerrors.CodeInternal)

// ErrInvalidTransition is returned when a guard is asked to leave a resolved state.
var ErrInvalidTransition = goerrors.New("invalid guard state transition", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// derive clones a sentinel so callers never mutate the package level value.
func derive(base *goerrors.Error, message string, metadata map[string]any) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	if message != "" {
		clone.Message = message
	}
	clone.Source = base
	if len(metadata) > 0 {
		return clone.WithMetadata(metadata)
	}
	return clone
}

// NewValidationError builds a validation error carrying per field messages.
func NewValidationError(fields map[string]string) *goerrors.Error {
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return derive(ErrValidation, summarizeFields(copied), map[string]any{fieldsKey: copied})
}

func summarizeFields(fields map[string]string) string {
	if len(fields) == 0 {
		return ErrValidation.Message
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func textCode(err error) string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil {
		return ""
	}
	return richErr.TextCode
}

func hasTextCode(err error, codes ...string) bool {
	tc := textCode(err)
	if tc == "" {
		return false
	}
	for _, c := range codes {
		if c == tc {
			return true
		}
	}
	return false
}

// IsValidationError reports client or server side field validation failures.
func IsValidationError(err error) bool {
	return hasTextCode(err, TextCodeValidation)
}

// IsNetworkError reports transport failures. These are retryable by the user.
func IsNetworkError(err error) bool {
	return hasTextCode(err, TextCodeNetwork)
}

// IsNoRolesAssigned reports the zero roles login failure.
func IsNoRolesAssigned(err error) bool {
	return hasTextCode(err, TextCodeNoRolesAssigned)
}

// IsAuthError reports credential, role and verification failures.
func IsAuthError(err error) bool {
	return hasTextCode(err,
		TextCodeInvalidCredentials,
		TextCodeNoRolesAssigned,
		TextCodeVerificationFailed,
		TextCodeNotAuthenticated,
		TextCodeCredentialRejected,
	)
}

// IsPermissionError reports role mismatches.
func IsPermissionError(err error) bool {
	return hasTextCode(err, TextCodePermissionDenied)
}

// FieldErrors extracts per field messages from a validation error.
func FieldErrors(err error) map[string]string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil || richErr.Metadata == nil {
		return nil
	}
	fields, ok := richErr.Metadata[fieldsKey].(map[string]string)
	if !ok {
		return nil
	}
	return fields
}

// UserMessage returns a short message suitable for a banner.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil && richErr.Message != "" {
		return richErr.Message
	}
	return err.Error()
}
