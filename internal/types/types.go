// Package types holds context keys shared between middleware and controllers.
package types

type ContextKey string

const (
	UserIDKey        ContextKey = "user_id"
	UserEmailKey     ContextKey = "user_email"
	AccountNumberKey ContextKey = "account_number"
)
