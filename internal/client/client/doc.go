// Package client contains client-side building blocks for the accountkeeper
// CLI: the API contract (Client), its HTTP implementation (HTTPClient) and
// the bootstrap of the local session database (InitDatabase, RunMigrations).
//
// Server rejections are exposed as sentinel errors matched with errors.Is:
// ErrUnavailable, ErrUnauthorized, ErrForbidden, ErrNotFound, ErrConflict and
// ErrInvalidInput. The server's message is kept in *APIError.
package client
