// Package auth implements the authentication core: credential verification,
// signed access-token issuance and verification, and per-request session
// resolution.
//
// # Components
//
//   - password.go: bcrypt password hashing and verification
//   - token.go: stateless JWT access tokens with typed claims
//   - service.go: credential verification and account registration
//   - middleware.go: per-request identity resolution (bearer header or
//     cookie) and the RequireAuth / RequireAdmin gates
//   - handlers.go: login, registration and logout endpoints for both the
//     server-rendered pages and the JSON API
//   - ratelimit.go: per IP+username login attempt throttling
//   - csrf.go: CSRF protection for browser form flows
//
// # Session model
//
// Sessions are stateless: the access token carries all identity claims and
// is reconstructed from its signature on every request. Nothing is persisted
// server-side and there is no revocation list — logging out clears the
// browser cookie but a copied token stays valid until its expiry.
//
// # Failure semantics
//
// Unknown usernames and wrong passwords collapse into the single
// ErrInvalidCredentials so responses never reveal which field was wrong.
// Token failures are reported as ErrTokenExpired or ErrTokenInvalid; an
// empty token resolves to an anonymous identity, not an error. A valid token
// whose account no longer exists also resolves to anonymous (fail closed).
package auth
