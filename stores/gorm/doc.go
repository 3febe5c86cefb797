// Package gorm provides GORM-backed implementations of the authkit store
// interfaces for relational databases.
//
// The verification engine's two hot mutations map onto single SQL
// statements: the attempts counter is bumped with an in-database
// expression (never read-modify-write in the application), and credential
// consumption is a delete-by-id whose affected-row count decides which of
// two racing verifications actually consumed the credential.
//
// Run AutoMigrate once at startup to create the users, auth_tokens and
// sessions tables.
package gorm
