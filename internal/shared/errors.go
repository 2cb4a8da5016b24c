package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrAuthExpired      = fmt.Errorf("authentication expired")
	ErrForbidden        = fmt.Errorf("forbidden")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")

	// Request errors
	ErrRequestFailed = fmt.Errorf("request failed")
	ErrNetwork       = fmt.Errorf("network error")

	// Task errors
	ErrTaskTerminal = fmt.Errorf("task already in a terminal state")
	ErrTaskNotFound = fmt.Errorf("task not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
