package engine

import "context"

// Evaluator decides user administration scopes with OPA or another engine.
type Evaluator interface {
	// Allowed reports whether role grants scope within the company. An empty companyID
	// evaluates the built-in policy only.
	Allowed(ctx context.Context, companyID, role, scope string) (bool, error)
}
