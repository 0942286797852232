package bootstrap

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"refhub/entity"
	"refhub/internal/config"
	"refhub/lib/sl"
)

type Database interface {
	EnsureDefaultAdmin(ctx context.Context, seed *entity.Admin) (*entity.Admin, error)
	SetAdminReferralCode(ctx context.Context, id primitive.ObjectID, code string) error
}

type CodeRegistry interface {
	Issue(ctx context.Context, admin *entity.Admin) (string, error)
}

// Bootstrap guarantees attribution always has a concrete admin to land on.
// The seed is created lazily with a store-level conditional upsert: under
// concurrent first requests the first writer wins and everyone else reads the
// existing document back.
type Bootstrap struct {
	db       Database
	registry CodeRegistry
	conf     config.DefaultAdminConfig
	log      *slog.Logger

	mu    sync.RWMutex
	admin *entity.Admin
}

func New(db Database, registry CodeRegistry, conf config.DefaultAdminConfig, log *slog.Logger) *Bootstrap {
	return &Bootstrap{
		db:       db,
		registry: registry,
		conf:     conf,
		log:      log.With(sl.Module("bootstrap")),
	}
}

// DefaultAdmin returns the process-wide fallback admin, seeding it on first
// use. Once resolved it is cached for the process lifetime; re-checking in
// the steady state is a no-op.
func (b *Bootstrap) DefaultAdmin(ctx context.Context) (*entity.Admin, error) {
	b.mu.RLock()
	admin := b.admin
	b.mu.RUnlock()
	if admin != nil {
		return admin, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.admin != nil {
		return b.admin, nil
	}

	seed := &entity.Admin{
		Username:  b.conf.Username,
		FirstName: "Default",
		LastName:  "Admin",
		Phone:     b.conf.Phone,
		Channel: entity.Channel{
			Kind:   entity.ChannelWhatsApp,
			Phone:  b.conf.Phone,
			ApiKey: b.conf.ApiKey,
		},
		IsDefault: true,
		CreatedAt: time.Now(),
	}
	admin, err := b.db.EnsureDefaultAdmin(ctx, seed)
	if err != nil {
		return nil, err
	}

	if admin.ReferralCode == "" {
		code, err := b.registry.Issue(ctx, admin)
		if err != nil {
			return nil, err
		}
		if err = b.db.SetAdminReferralCode(ctx, admin.ID, code); err != nil {
			return nil, err
		}
		admin.ReferralCode = code
		b.log.Info("seeded default admin",
			slog.String("username", admin.Username),
			slog.String("code", code),
		)
	}

	b.admin = admin
	return admin, nil
}

// Ensure runs the seed check eagerly on startup.
func (b *Bootstrap) Ensure(ctx context.Context) error {
	_, err := b.DefaultAdmin(ctx)
	return err
}
