package config

import "time"

const (
	// MaxProjectNameLength is the maximum length for project names.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxProjectNameLength = 255

	// MaxProjectDescriptionLength caps project descriptions.
	MaxProjectDescriptionLength = 4000

	// MaxFilenameLength is the maximum length for uploaded document filenames.
	// The storage key adds a 36 character project ID and a slash, which keeps
	// keys well under the 1024 byte S3 limit.
	MaxFilenameLength = 255

	// MinUsernameLength and MaxUsernameLength bound usernames.
	MinUsernameLength = 3
	MaxUsernameLength = 64

	// MinPasswordLength is the minimum password length.
	MinPasswordLength = 8

	// MaxPasswordLength is bcrypt's input limit; longer inputs are rejected
	// by bcrypt.GenerateFromPassword.
	MaxPasswordLength = 72

	// MinJWTSecretLength applies outside the dev environment.
	MinJWTSecretLength = 32
)

const (
	// DefaultAccessTokenTTL is how long an issued bearer token stays valid.
	DefaultAccessTokenTTL = 30 * time.Minute

	// DefaultPresignTTL is the lifetime of presigned download URLs.
	DefaultPresignTTL = time.Hour

	// DefaultMaxUploadBytes limits a single multipart upload (50 MiB).
	DefaultMaxUploadBytes int64 = 50 << 20
)
