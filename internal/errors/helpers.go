package errors

import "fmt"

// Common error creators for frequent use cases

// NewConfigurationError marks a provisioning gap (unknown tenant, missing
// inbox). These are never retried by the pipeline itself.
func NewConfigurationError(resource, identifier string) *AppError {
	return New(ErrCodeConfiguration, fmt.Sprintf("%s is not provisioned", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage("Service is not configured for this request")
}

// NewDatabaseError creates a database error with operation context
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabase, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Database operation failed")
}

// NewValidationError creates a validation error with field context
func NewValidationError(field, message string) *AppError {
	return New(ErrCodeValidation, message).
		WithContext("field", field).
		WithUserMessage(fmt.Sprintf("Invalid %s: %s", field, message))
}

// NewAuthError creates an authentication error
func NewAuthError(reason string) *AppError {
	return New(ErrCodeAuthentication, "authentication failed").
		WithContext("reason", reason).
		WithUserMessage("Authentication failed")
}

// NewAuthorizationError creates a cross-tenant access error
func NewAuthorizationError(resource, identifier string) *AppError {
	return New(ErrCodeAuthorization, fmt.Sprintf("access to %s denied", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage("Access denied")
}

// NewIdempotencyConflictError marks reuse of a key with a different account,
// endpoint, or method. The original cached record is left untouched.
func NewIdempotencyConflictError(key string) *AppError {
	return New(ErrCodeIdempotencyConflict, "idempotency key already used for a different request").
		WithContext("key", key).
		WithUserMessage("Idempotency key conflict")
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage(fmt.Sprintf("%s not found", resource))
}
