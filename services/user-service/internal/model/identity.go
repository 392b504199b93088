package model

import "time"

// LocalIdentity is the authentication record kept by the local identity
// provider for self-hosted deployments. Hosted deployments keep identities
// in the external store and never touch this collection.
type LocalIdentity struct {
	ID             string            `bson:"_id"`
	Email          string            `bson:"email"`
	PasswordHash   string            `bson:"password_hash"`
	EmailConfirmed bool              `bson:"email_confirmed"`
	Metadata       map[string]string `bson:"metadata"`
	CreatedAt      time.Time         `bson:"created_at"`
	UpdatedAt      time.Time         `bson:"updated_at"`
}
