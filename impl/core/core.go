package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"refhub/entity"
	"refhub/impl/attribution"
	"refhub/impl/auth"
	"refhub/impl/ledger"
	"refhub/impl/notifier"
	"refhub/impl/registry"
	"refhub/lib/sl"
)

var (
	ErrPhoneTaken          = errors.New("phone number already registered")
	ErrUsernameTaken       = errors.New("username already taken")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrSecurityCodeMissing = errors.New("security code required")
	ErrSecurityCodeInvalid = errors.New("invalid or used security code")
	ErrMaintenance         = errors.New("maintenance mode")
)

type Database interface {
	CreateAdmin(ctx context.Context, admin *entity.Admin) (primitive.ObjectID, error)
	GetAdminById(ctx context.Context, id primitive.ObjectID) (*entity.Admin, error)
	GetAdminByPhone(ctx context.Context, phone string) (*entity.Admin, error)
	GetAdminByUsername(ctx context.Context, username string) (*entity.Admin, error)
	SetAdminReferralCode(ctx context.Context, id primitive.ObjectID, code string) error
	UpdateAdminSettings(ctx context.Context, id primitive.ObjectID, settings entity.AdminSettings) error
	GetPublicAdmins(ctx context.Context) ([]entity.PublicAdmin, error)

	CreateStudent(ctx context.Context, student *entity.Student) (primitive.ObjectID, error)
	GetStudentById(ctx context.Context, id primitive.ObjectID) (*entity.Student, error)
	GetStudentByUsername(ctx context.Context, username string) (*entity.Student, error)
	GetStudentsByAdmin(ctx context.Context, adminId primitive.ObjectID) ([]*entity.Student, error)
	SetStudentSecurityCode(ctx context.Context, id, codeId primitive.ObjectID) error

	GetReferralCodesByAdmin(ctx context.Context, adminId primitive.ObjectID) ([]*entity.ReferralCode, error)
	GetActivitiesByAdmin(ctx context.Context, adminId primitive.ObjectID, page, per int64) ([]*entity.Activity, error)

	CreateSecurityCodes(ctx context.Context, codes []*entity.SecurityCode) error
	GetSecurityCodesByAdmin(ctx context.Context, adminId primitive.ObjectID) ([]*entity.SecurityCode, error)
	ConsumeSecurityCode(ctx context.Context, adminId primitive.ObjectID, code string, studentId primitive.ObjectID) (*entity.SecurityCode, error)
	HasUnusedSecurityCode(ctx context.Context, adminId primitive.ObjectID, code string) (bool, error)

	CountVisits(ctx context.Context) (int64, error)
	TopReferrers(ctx context.Context, limit int) ([]entity.ReferrerStat, error)
}

// Core wires the referral pipeline together: attribution, ledger and notifier
// behind the operations the HTTP layer exposes.
type Core struct {
	db           Database
	auth         *auth.Auth
	registry     *registry.Registry
	resolver     *attribution.Resolver
	ledger       *ledger.Ledger
	notifier     *notifier.Notifier
	broadcastKey string
	log          *slog.Logger
}

func New(db Database, a *auth.Auth, reg *registry.Registry, res *attribution.Resolver,
	led *ledger.Ledger, ntf *notifier.Notifier, broadcastKey string, log *slog.Logger) *Core {
	return &Core{
		db:           db,
		auth:         a,
		registry:     reg,
		resolver:     res,
		ledger:       led,
		notifier:     ntf,
		broadcastKey: broadcastKey,
		log:          log.With(sl.Module("core")),
	}
}

// ---- middleware hooks ----

func (c *Core) AdminByToken(ctx context.Context, token string) (*entity.Admin, error) {
	return c.auth.AdminByToken(ctx, token)
}

func (c *Core) StudentByToken(ctx context.Context, token string) (*entity.Student, error) {
	return c.auth.StudentByToken(ctx, token)
}

// ---- admin flows ----

func (c *Core) AdminRegister(ctx context.Context, p *entity.AdminRegisterParams) (*entity.Admin, string, error) {
	if _, err := c.db.GetAdminByPhone(ctx, p.Phone); err == nil {
		return nil, "", ErrPhoneTaken
	} else if err != entity.ErrNotFound {
		return nil, "", err
	}

	hash, err := c.auth.HashPassword(p.Password)
	if err != nil {
		return nil, "", err
	}

	channel := entity.Channel{Kind: entity.ChannelWhatsApp, Phone: p.Phone, ApiKey: p.ApiKey}
	if p.ChatId != 0 {
		channel = entity.Channel{Kind: entity.ChannelTelegram, ChatId: p.ChatId}
	}
	admin := &entity.Admin{
		Username:  c.generateUsername(ctx, p.FirstName, p.LastName),
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Phone:     p.Phone,
		Password:  hash,
		Channel:   channel,
		CreatedAt: time.Now(),
	}
	id, err := c.db.CreateAdmin(ctx, admin)
	if err != nil {
		return nil, "", err
	}
	admin.ID = id

	code, err := c.registry.Issue(ctx, admin)
	if err != nil {
		return nil, "", err
	}
	if err = c.db.SetAdminReferralCode(ctx, id, code); err != nil {
		return nil, "", err
	}
	admin.ReferralCode = code

	token, err := c.auth.IssueToken(id, auth.RoleAdmin)
	if err != nil {
		return nil, "", err
	}
	c.log.Info("admin registered", slog.String("username", admin.Username))
	return admin, token, nil
}

func (c *Core) AdminLogin(ctx context.Context, p *entity.AdminLoginParams) (*entity.Admin, string, error) {
	admin, err := c.db.GetAdminByPhone(ctx, p.Phone)
	if err == entity.ErrNotFound {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if admin.Disabled || !c.auth.CheckPassword(admin.Password, p.Password) {
		return nil, "", ErrInvalidCredentials
	}
	token, err := c.auth.IssueToken(admin.ID, auth.RoleAdmin)
	if err != nil {
		return nil, "", err
	}
	return admin, token, nil
}

// MintReferral issues an additional code for the admin. Previously issued
// codes keep resolving: a code is never reassigned.
func (c *Core) MintReferral(ctx context.Context, admin *entity.Admin) (*entity.ReferralCode, error) {
	code, err := c.registry.Issue(ctx, admin)
	if err != nil {
		return nil, err
	}
	if err = c.db.SetAdminReferralCode(ctx, admin.ID, code); err != nil {
		return nil, err
	}
	return &entity.ReferralCode{Code: code, AdminID: admin.ID, CreatedAt: time.Now()}, nil
}

func (c *Core) ReferralCodes(ctx context.Context, admin *entity.Admin) ([]*entity.ReferralCode, error) {
	return c.db.GetReferralCodesByAdmin(ctx, admin.ID)
}

func (c *Core) AddSecurityCodes(ctx context.Context, admin *entity.Admin, p *entity.SecurityCodesParams) ([]*entity.SecurityCode, error) {
	values := p.Codes
	if len(values) == 0 {
		count := p.Count
		if count == 0 {
			count = 1
		}
		for i := 0; i < count; i++ {
			values = append(values, uuid.NewString()[:8])
		}
	}
	codes := make([]*entity.SecurityCode, 0, len(values))
	now := time.Now()
	for _, v := range values {
		codes = append(codes, &entity.SecurityCode{
			AdminID:   admin.ID,
			Code:      v,
			CreatedAt: now,
		})
	}
	if err := c.db.CreateSecurityCodes(ctx, codes); err != nil {
		return nil, err
	}
	return codes, nil
}

func (c *Core) SecurityCodes(ctx context.Context, admin *entity.Admin) ([]*entity.SecurityCode, error) {
	return c.db.GetSecurityCodesByAdmin(ctx, admin.ID)
}

func (c *Core) ToggleSetting(ctx context.Context, admin *entity.Admin, p *entity.ToggleSettingParams) (entity.AdminSettings, error) {
	settings := admin.Settings
	switch p.Key {
	case "require_security_code":
		settings.RequireSecurityCode = p.Value
	case "maintenance_mode":
		settings.MaintenanceMode = p.Value
	}
	if err := c.db.UpdateAdminSettings(ctx, admin.ID, settings); err != nil {
		return admin.Settings, err
	}
	return settings, nil
}

func (c *Core) Students(ctx context.Context, admin *entity.Admin) ([]*entity.Student, error) {
	return c.db.GetStudentsByAdmin(ctx, admin.ID)
}

func (c *Core) Activities(ctx context.Context, admin *entity.Admin, page, per int64) ([]*entity.Activity, error) {
	return c.db.GetActivitiesByAdmin(ctx, admin.ID, page, per)
}

type Dashboard struct {
	Students   []*entity.Student      `json:"students"`
	Activities []*entity.Activity     `json:"activities"`
	Codes      []*entity.ReferralCode `json:"codes"`
	Settings   entity.AdminSettings   `json:"settings"`
}

func (c *Core) AdminDashboard(ctx context.Context, admin *entity.Admin) (*Dashboard, error) {
	students, err := c.db.GetStudentsByAdmin(ctx, admin.ID)
	if err != nil {
		return nil, err
	}
	activities, err := c.db.GetActivitiesByAdmin(ctx, admin.ID, 1, 200)
	if err != nil {
		return nil, err
	}
	codes, err := c.db.GetReferralCodesByAdmin(ctx, admin.ID)
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		Students:   students,
		Activities: activities,
		Codes:      codes,
		Settings:   admin.Settings,
	}, nil
}

func (c *Core) PublicAdmins(ctx context.Context) ([]entity.PublicAdmin, error) {
	return c.db.GetPublicAdmins(ctx)
}

// ---- student flows ----

func (c *Core) StudentRegister(ctx context.Context, p *entity.StudentRegisterParams, ip, userAgent string) (*entity.Student, string, *entity.Admin, error) {
	if _, err := c.db.GetStudentByUsername(ctx, p.Username); err == nil {
		return nil, "", nil, ErrUsernameTaken
	} else if err != entity.ErrNotFound {
		return nil, "", nil, err
	}

	event := &entity.VisitEvent{
		Referrer:  p.ReferralCode,
		IP:        ip,
		UserAgent: userAgent,
		Path:      "/student/register",
	}
	admin, err := c.resolver.Resolve(ctx, event)
	if err != nil {
		return nil, "", nil, err
	}

	if admin.Settings.RequireSecurityCode {
		if p.SecurityCode == "" {
			return nil, "", nil, ErrSecurityCodeMissing
		}
		ok, err := c.db.HasUnusedSecurityCode(ctx, admin.ID, p.SecurityCode)
		if err != nil {
			return nil, "", nil, err
		}
		if !ok {
			return nil, "", nil, ErrSecurityCodeInvalid
		}
	}

	hash, err := c.auth.HashPassword(p.Password)
	if err != nil {
		return nil, "", nil, err
	}
	referredBy := p.ReferralCode
	if referredBy == "" {
		referredBy = entity.DirectReferrer
	}
	student := &entity.Student{
		Username:   p.Username,
		Password:   hash,
		AdminID:    admin.ID,
		ReferredBy: referredBy,
		CreatedAt:  time.Now(),
	}
	id, err := c.db.CreateStudent(ctx, student)
	if err != nil {
		return nil, "", nil, err
	}
	student.ID = id

	if admin.Settings.RequireSecurityCode {
		sc, err := c.db.ConsumeSecurityCode(ctx, admin.ID, p.SecurityCode, id)
		if err != nil {
			// consumed by a concurrent signup between the pre-check and here
			c.log.Warn("security code consume lost race",
				slog.String("student", student.Username), sl.Err(err))
		} else {
			student.SecurityCodeUsed = &sc.ID
			if err = c.db.SetStudentSecurityCode(ctx, id, sc.ID); err != nil {
				c.log.Warn("link security code", sl.Err(err))
			}
		}
	}

	if _, err = c.ledger.Reconcile(ctx, ip, referredBy, id); err != nil {
		c.log.Warn("reconcile visits", sl.Err(err))
	}
	c.ledger.RecordActivity(ctx, admin.ID, &id, entity.ActionSignup, map[string]interface{}{
		"username": student.Username,
		"referrer": referredBy,
	})
	c.notifier.Notify(admin.ID, fmt.Sprintf(
		"New signup: %s\nReferral: %s\nIP: %s", student.Username, referredBy, ip))

	token, err := c.auth.IssueToken(id, auth.RoleStudent)
	if err != nil {
		return nil, "", nil, err
	}
	return student, token, admin, nil
}

func (c *Core) StudentLogin(ctx context.Context, p *entity.StudentLoginParams) (*entity.Student, string, error) {
	student, err := c.db.GetStudentByUsername(ctx, p.Username)
	if err == entity.ErrNotFound {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if !c.auth.CheckPassword(student.Password, p.Password) {
		return nil, "", ErrInvalidCredentials
	}

	admin, err := c.db.GetAdminById(ctx, student.AdminID)
	if err != nil && err != entity.ErrNotFound {
		return nil, "", err
	}
	if admin != nil && admin.Settings.RequireSecurityCode {
		if p.SecurityCode == "" {
			return nil, "", ErrSecurityCodeMissing
		}
		if _, err = c.db.ConsumeSecurityCode(ctx, admin.ID, p.SecurityCode, student.ID); err != nil {
			if err == entity.ErrNotFound {
				return nil, "", ErrSecurityCodeInvalid
			}
			return nil, "", err
		}
	}

	if admin != nil {
		c.ledger.RecordActivity(ctx, admin.ID, &student.ID, entity.ActionLogin, map[string]interface{}{
			"username": student.Username,
		})
		c.notifier.Notify(admin.ID, fmt.Sprintf("Student login: %s", student.Username))
	}

	token, err := c.auth.IssueToken(student.ID, auth.RoleStudent)
	if err != nil {
		return nil, "", err
	}
	return student, token, nil
}

func (c *Core) StudentVote(ctx context.Context, student *entity.Student, p *entity.VoteParams) error {
	admin, err := c.db.GetAdminById(ctx, student.AdminID)
	if err != nil {
		return err
	}
	if admin.Settings.MaintenanceMode {
		return ErrMaintenance
	}

	details := map[string]interface{}{"platform": p.Platform}
	for k, v := range p.Details {
		details[k] = v
	}
	c.ledger.RecordActivity(ctx, admin.ID, &student.ID, entity.ActionVote, details)
	c.notifier.Notify(admin.ID, fmt.Sprintf(
		"Vote by %s\nPlatform: %s", student.Username, orNA(p.Platform)))
	return nil
}

func (c *Core) StudentProfile(ctx context.Context, student *entity.Student) (*entity.Student, error) {
	s, err := c.db.GetStudentById(ctx, student.ID)
	if err != nil {
		return nil, err
	}
	admin, err := c.db.GetAdminById(ctx, s.AdminID)
	if err == nil && admin.Settings.MaintenanceMode {
		return nil, ErrMaintenance
	}
	return s, nil
}

// ---- visits ----

// LogVisit records first and attributes after: a downed resolver or notifier
// must never lose the visit record.
func (c *Core) LogVisit(ctx context.Context, event *entity.VisitEvent) (*entity.Visit, error) {
	visit, err := c.ledger.RecordVisit(ctx, event)
	if err != nil {
		return nil, err
	}

	admin, err := c.resolver.Resolve(ctx, event)
	if err != nil {
		c.log.Warn("visit attribution", sl.Err(err))
		return visit, nil
	}
	c.notifier.Notify(admin.ID, fmt.Sprintf(
		"Visit on %s\nReferral: %s", event.Path, visit.Referrer))
	return visit, nil
}

func (c *Core) VisitStats(ctx context.Context) (*entity.VisitStats, error) {
	total, err := c.db.CountVisits(ctx)
	if err != nil {
		return nil, err
	}
	top, err := c.db.TopReferrers(ctx, 20)
	if err != nil {
		return nil, err
	}
	return &entity.VisitStats{Total: total, TopReferrers: top}, nil
}

// ---- broadcast ----

func (c *Core) VerifyBroadcastKey(key string) bool {
	return c.broadcastKey != "" && key == c.broadcastKey
}

func (c *Core) Broadcast(message string) {
	c.notifier.Broadcast(message)
}

// ---- helpers ----

func (c *Core) generateUsername(ctx context.Context, first, last string) string {
	base := strings.ToLower(strings.TrimSpace(first) + "." + strings.TrimSpace(last))
	base = strings.ReplaceAll(base, " ", "")
	username := base
	for i := 0; i < 5; i++ {
		if _, err := c.db.GetAdminByUsername(ctx, username); err == entity.ErrNotFound {
			return username
		}
		username = fmt.Sprintf("%s%04d", base, rand.IntN(10000))
	}
	return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8])
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
