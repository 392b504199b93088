package model

import "time"

// Profile represents the business-facing attributes of a portal user.
// Its ID is the identity store's user ID, which makes the profile a
// one-to-one extension of the auth identity.
type Profile struct {
	ID                          string    `bson:"_id"`
	Email                       string    `bson:"email"`
	FullName                    string    `bson:"full_name"`
	Phone                       *string   `bson:"phone"`
	DefaultCommissionPercentage float64   `bson:"default_commission_percentage"`
	CreatedAt                   time.Time `bson:"created_at"`
	UpdatedAt                   time.Time `bson:"updated_at"`
}
