package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Student is an end-user referred to the system. AdminID is always concrete
// once registration completes: attribution falls back to the default admin
// rather than leaving an orphan.
type Student struct {
	ID               primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	Username         string              `json:"username" bson:"username"`
	Password         string              `json:"-" bson:"password"`
	AdminID          primitive.ObjectID  `json:"admin_id" bson:"admin_id"`
	ReferredBy       string              `json:"referred_by" bson:"referred_by"`
	SecurityCodeUsed *primitive.ObjectID `json:"-" bson:"security_code_used,omitempty"`
	CreatedAt        time.Time           `json:"created_at" bson:"created_at"`
}
