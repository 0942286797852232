package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Activity actions written by the ledger.
const (
	ActionSignup         = "signup"
	ActionLogin          = "login"
	ActionVote           = "vote"
	ActionCreatedByAdmin = "created-by-admin"
)

// Activity is a write-once audit record for admin dashboards.
type Activity struct {
	ID        primitive.ObjectID     `json:"id" bson:"_id,omitempty"`
	AdminID   primitive.ObjectID     `json:"admin_id" bson:"admin_id"`
	StudentID *primitive.ObjectID    `json:"student_id,omitempty" bson:"student_id,omitempty"`
	Action    string                 `json:"action" bson:"action"`
	Details   map[string]interface{} `json:"details,omitempty" bson:"details,omitempty"`
	CreatedAt time.Time              `json:"created_at" bson:"created_at"`
}
