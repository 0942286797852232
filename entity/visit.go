package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DirectReferrer marks a visit that arrived without a referral token.
const DirectReferrer = "direct"

// Visit is an append-only traffic record. The only permitted mutation is the
// one-time SignedUp false -> true transition with UserID attached, applied by
// the ledger's reconcile.
type Visit struct {
	ID        primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	Path      string              `json:"path" bson:"path"`
	Referrer  string              `json:"referrer" bson:"referrer"`
	IP        string              `json:"ip" bson:"ip"`
	UserAgent string              `json:"user_agent" bson:"user_agent"`
	Utm       map[string]string   `json:"utm,omitempty" bson:"utm,omitempty"`
	SignedUp  bool                `json:"signed_up" bson:"signed_up"`
	UserID    *primitive.ObjectID `json:"user_id,omitempty" bson:"user_id,omitempty"`
	CreatedAt time.Time           `json:"created_at" bson:"created_at"`
}

// ReferrerStat is one row of the top-referrers aggregation.
type ReferrerStat struct {
	Referrer string `json:"referrer" bson:"_id"`
	Count    int64  `json:"count" bson:"count"`
}

type VisitStats struct {
	Total        int64          `json:"total"`
	TopReferrers []ReferrerStat `json:"top_referrers"`
}
