package attribution

import (
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"refhub/entity"
	"refhub/lib/sl"
)

type CodeRegistry interface {
	Resolve(ctx context.Context, code string) (primitive.ObjectID, error)
	Bump(ctx context.Context, code string)
}

type Database interface {
	GetAdminById(ctx context.Context, id primitive.ObjectID) (*entity.Admin, error)
}

type Fallback interface {
	DefaultAdmin(ctx context.Context) (*entity.Admin, error)
}

// Resolver maps an inbound event to exactly one owning admin. The precedence
// chain is fixed: referral-code lookup (which internally covers the encoded
// identity family), then the default admin. The result is never nil on a nil
// error.
type Resolver struct {
	registry CodeRegistry
	db       Database
	fallback Fallback
	log      *slog.Logger
}

func New(registry CodeRegistry, db Database, fallback Fallback, log *slog.Logger) *Resolver {
	return &Resolver{
		registry: registry,
		db:       db,
		fallback: fallback,
		log:      log.With(sl.Module("attribution")),
	}
}

// Resolve attributes an event to its owning admin. On a registry hit the
// code's visit counter is bumped exactly once. An unknown token falls through
// silently; only store failures surface as errors.
func (r *Resolver) Resolve(ctx context.Context, event *entity.VisitEvent) (*entity.Admin, error) {
	token := event.Token()
	if token != "" {
		adminId, err := r.registry.Resolve(ctx, token)
		switch {
		case err == nil:
			r.registry.Bump(ctx, token)
			admin, err := r.db.GetAdminById(ctx, adminId)
			if err == nil {
				return admin, nil
			}
			if err != entity.ErrNotFound {
				return nil, err
			}
			// code maps to a vanished admin: fall through
			r.log.Warn("code owner missing", slog.String("token", token))
		case err == entity.ErrNotFound:
			r.log.Debug("unresolved referral token", slog.String("token", token))
		default:
			return nil, err
		}
	}

	return r.fallback.DefaultAdmin(ctx)
}
