package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Known portal roles. The store accepts other values; only admin carries
// special meaning in this service.
const (
	RoleAdmin         = "admin"
	RoleAgente        = "agente"
	RoleCollaboratore = "collaboratore"
)

// RoleAssignment grants a user exactly one authorization role.
// UserID is the identity store's user ID.
type RoleAssignment struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	UserID    string        `bson:"user_id"`
	Role      string        `bson:"role"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}
