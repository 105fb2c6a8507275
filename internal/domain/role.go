package domain

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Token scopes. Every issued token carries ScopeAnalyze; admin tokens also
// carry ScopeAdmin.
const (
	ScopeAnalyze = "sentiment:analyze"
	ScopeAdmin   = "admin"
)
