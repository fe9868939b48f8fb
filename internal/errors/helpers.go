package errors

import "time"

// New creates an AppError in the given category.
func New(category ErrorCategory, code, message string, err error) *AppError {
	return &AppError{
		Code:      code,
		Category:  category,
		Message:   message,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// SystemError creates a SYSTEM category error instance.
func SystemError(code, message string, err error) *AppError {
	return New(ErrCategorySystem, code, message, err)
}

// NetworkError creates a NETWORK category error instance.
// Network failures are marked recoverable since re-running may succeed.
func NetworkError(code, message string, err error) *AppError {
	e := New(ErrCategoryNetwork, code, message, err)
	e.Recoverable = true
	return e
}

// ConfigError creates a CONFIG category error instance.
func ConfigError(code, message string, err error) *AppError {
	return New(ErrCategoryConfig, code, message, err)
}

// ReleaseError creates a RELEASE category error instance.
func ReleaseError(code, message string, err error) *AppError {
	return New(ErrCategoryRelease, code, message, err)
}

// ProcessError creates a PROCESS category error instance.
func ProcessError(code, message string, err error) *AppError {
	return New(ErrCategoryProcess, code, message, err)
}

// DatabaseError creates a DATABASE category error instance.
func DatabaseError(code, message string, err error) *AppError {
	return New(ErrCategoryDatabase, code, message, err)
}
