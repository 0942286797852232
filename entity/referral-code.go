package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReferralCode maps an opaque code to its owning admin. A code, once issued,
// permanently belongs to that admin; Visits is bumped atomically in the store.
type ReferralCode struct {
	Code      string             `json:"code" bson:"code"`
	AdminID   primitive.ObjectID `json:"admin_id" bson:"admin_id"`
	Visits    int64              `json:"visits" bson:"visits"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}
