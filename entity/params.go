package entity

import (
	"net/http"
	"refhub/lib/validate"
	"strings"
)

// AdminRegisterParams is the admin signup request body.
type AdminRegisterParams struct {
	FirstName string `json:"firstname" validate:"required,min=1,max=64"`
	LastName  string `json:"lastname" validate:"required,min=1,max=64"`
	Phone     string `json:"phone" validate:"required,min=5,max=20"`
	Password  string `json:"password" validate:"required,min=6"`
	ApiKey    string `json:"apikey" validate:"omitempty"`
	ChatId    int64  `json:"chat_id" validate:"omitempty"`
}

func (p *AdminRegisterParams) Bind(_ *http.Request) error {
	return validate.Struct(p)
}

type AdminLoginParams struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (p *AdminLoginParams) Bind(_ *http.Request) error {
	return validate.Struct(p)
}

// StudentRegisterParams carries the optional referral token; attribution never
// fails on an unknown token, it falls through to the default admin.
type StudentRegisterParams struct {
	Username     string `json:"username" validate:"required,min=2,max=64"`
	Password     string `json:"password" validate:"required,min=4"`
	ReferralCode string `json:"referralCode" validate:"omitempty,max=128"`
	SecurityCode string `json:"securityCode" validate:"omitempty,max=128"`
}

func (p *StudentRegisterParams) Bind(_ *http.Request) error {
	p.ReferralCode = strings.TrimSpace(p.ReferralCode)
	return validate.Struct(p)
}

type StudentLoginParams struct {
	Username     string `json:"username" validate:"required"`
	Password     string `json:"password" validate:"required"`
	SecurityCode string `json:"securityCode" validate:"omitempty,max=128"`
}

func (p *StudentLoginParams) Bind(_ *http.Request) error {
	return validate.Struct(p)
}

type VoteParams struct {
	Platform string                 `json:"platform" validate:"omitempty,max=64"`
	Details  map[string]interface{} `json:"details" validate:"omitempty"`
}

func (p *VoteParams) Bind(_ *http.Request) error {
	return validate.Struct(p)
}

// VisitEvent is both the visit-log request body and the attribution input.
// IP and UserAgent are filled by the handler from the request.
type VisitEvent struct {
	Path      string            `json:"path" validate:"required,max=512"`
	Referrer  string            `json:"referrer" validate:"omitempty,max=128"`
	Utm       map[string]string `json:"utm" validate:"omitempty"`
	IP        string            `json:"-"`
	UserAgent string            `json:"-"`
}

func (e *VisitEvent) Bind(_ *http.Request) error {
	e.Referrer = strings.TrimSpace(e.Referrer)
	return validate.Struct(e)
}

// Token returns the referral token presented, "" when the visit is direct.
func (e *VisitEvent) Token() string {
	if e.Referrer == DirectReferrer {
		return ""
	}
	return e.Referrer
}

// SecurityCodesParams adds admin security codes; when empty, codes are generated.
type SecurityCodesParams struct {
	Codes []string `json:"codes" validate:"omitempty,dive,min=1,max=64"`
	Count int      `json:"count" validate:"omitempty,min=1,max=100"`
}

func (p *SecurityCodesParams) Bind(_ *http.Request) error {
	return validate.Struct(p)
}

type ToggleSettingParams struct {
	Key   string `json:"key" validate:"required,oneof=require_security_code maintenance_mode"`
	Value bool   `json:"value"`
}

func (p *ToggleSettingParams) Bind(_ *http.Request) error {
	return validate.Struct(p)
}

type BroadcastParams struct {
	Text string `json:"text" validate:"required,min=1,max=4096"`
}

func (p *BroadcastParams) Bind(_ *http.Request) error {
	return validate.Struct(p)
}
