package config

const (
	// DefaultDatabasePath is the default path for the main application database
	DefaultDatabasePath = "./repairhub.db"

	// AccessTokenCookie is the cookie carrying the signed access token for
	// browser sessions.
	AccessTokenCookie = "access_token"
)
