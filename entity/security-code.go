package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SecurityCode guards signup/login for admins with the require_security_code
// setting. UsedBy transitions nil -> one student exactly once; the store
// enforces this with a filtered conditional update.
type SecurityCode struct {
	ID        primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	AdminID   primitive.ObjectID  `json:"admin_id" bson:"admin_id"`
	Code      string              `json:"code" bson:"code"`
	UsedBy    *primitive.ObjectID `json:"used_by,omitempty" bson:"used_by,omitempty"`
	CreatedAt time.Time           `json:"created_at" bson:"created_at"`
}

func (s *SecurityCode) Used() bool {
	return s.UsedBy != nil
}
