package common

// AuthorizationHeaderName carries the bearer access token on HTTP requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the access token in the Authorization header.
const BearerPrefix = "Bearer "

// DefaultRole is assigned to every self-registered identity.
const DefaultRole = "user"

// AdminRole may act on identities other than its own.
const AdminRole = "admin"
