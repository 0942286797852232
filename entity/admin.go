package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChannelKind selects the outbound transport for admin notifications.
type ChannelKind string

const (
	ChannelWhatsApp ChannelKind = "whatsapp" // CallMeBot: phone + apikey
	ChannelTelegram ChannelKind = "telegram" // bot API: chat id
)

// Channel is the admin's outbound notification destination.
// An incomplete channel is not an error: the notifier logs and skips it.
type Channel struct {
	Kind   ChannelKind `json:"kind" bson:"kind"`
	Phone  string      `json:"phone,omitempty" bson:"phone,omitempty"`
	ApiKey string      `json:"-" bson:"api_key,omitempty"`
	ChatId int64       `json:"chat_id,omitempty" bson:"chat_id,omitempty"`
}

// Complete reports whether the channel carries enough to dispatch a message.
func (c Channel) Complete() bool {
	switch c.Kind {
	case ChannelWhatsApp:
		return c.Phone != "" && c.ApiKey != ""
	case ChannelTelegram:
		return c.ChatId != 0
	}
	return false
}

type AdminSettings struct {
	RequireSecurityCode bool `json:"require_security_code" bson:"require_security_code"`
	MaintenanceMode     bool `json:"maintenance_mode" bson:"maintenance_mode"`
}

// Admin owns referral codes and receives signup/vote notifications.
// Admins are never hard-deleted; Disabled is the only removal state.
type Admin struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Username     string             `json:"username" bson:"username"`
	FirstName    string             `json:"firstname" bson:"firstname"`
	LastName     string             `json:"lastname" bson:"lastname"`
	Phone        string             `json:"phone" bson:"phone"`
	Password     string             `json:"-" bson:"password"`
	Channel      Channel            `json:"channel" bson:"channel"`
	ReferralCode string             `json:"referral_code" bson:"referral_code"`
	Settings     AdminSettings      `json:"settings" bson:"settings"`
	IsDefault    bool               `json:"-" bson:"is_default"`
	Disabled     bool               `json:"-" bson:"disabled"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
}

// PublicAdmin is the sanitized projection exposed on the public listing.
type PublicAdmin struct {
	Username     string `json:"username" bson:"username"`
	FirstName    string `json:"firstname" bson:"firstname"`
	LastName     string `json:"lastname" bson:"lastname"`
	ReferralCode string `json:"referral_code" bson:"referral_code"`
}

func (a *Admin) Public() PublicAdmin {
	return PublicAdmin{
		Username:     a.Username,
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		ReferralCode: a.ReferralCode,
	}
}
