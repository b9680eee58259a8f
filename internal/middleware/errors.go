package middleware

import "errors"

var (
	ErrTenantSuspended = errors.New("tenant suspended")
	ErrTenantExpired   = errors.New("tenant expired")
	ErrTenantDeleted   = errors.New("tenant deleted")
)
