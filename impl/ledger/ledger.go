package ledger

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"refhub/entity"
	"refhub/lib/sl"
)

type Database interface {
	CreateVisit(ctx context.Context, visit *entity.Visit) (primitive.ObjectID, error)
	ReconcileVisits(ctx context.Context, ip, referrer string, studentId primitive.ObjectID) (int64, error)
	CreateActivity(ctx context.Context, activity *entity.Activity) error
}

// Ledger is the append-only record of traffic, signups and admin activity.
type Ledger struct {
	db  Database
	log *slog.Logger
}

func New(db Database, log *slog.Logger) *Ledger {
	return &Ledger{
		db:  db,
		log: log.With(sl.Module("ledger")),
	}
}

// RecordVisit appends a visit. A missing referrer is stored as "direct".
func (l *Ledger) RecordVisit(ctx context.Context, event *entity.VisitEvent) (*entity.Visit, error) {
	referrer := event.Referrer
	if referrer == "" {
		referrer = entity.DirectReferrer
	}
	visit := &entity.Visit{
		Path:      event.Path,
		Referrer:  referrer,
		IP:        event.IP,
		UserAgent: event.UserAgent,
		Utm:       event.Utm,
		SignedUp:  false,
		CreatedAt: time.Now(),
	}
	id, err := l.db.CreateVisit(ctx, visit)
	if err != nil {
		return nil, err
	}
	visit.ID = id
	return visit, nil
}

// Reconcile marks earlier visits from the same (ip, token) pair as signed up.
// The store filter excludes already-linked records, so re-running with the
// same arguments is a no-op.
func (l *Ledger) Reconcile(ctx context.Context, ip, token string, studentId primitive.ObjectID) (int64, error) {
	if token == "" {
		token = entity.DirectReferrer
	}
	return l.db.ReconcileVisits(ctx, ip, token, studentId)
}

// RecordActivity appends an audit record. Failures are logged and swallowed;
// an activity write must never fail the request that triggered it.
func (l *Ledger) RecordActivity(ctx context.Context, adminId primitive.ObjectID, studentId *primitive.ObjectID, action string, details map[string]interface{}) {
	activity := &entity.Activity{
		AdminID:   adminId,
		StudentID: studentId,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now(),
	}
	if err := l.db.CreateActivity(ctx, activity); err != nil {
		l.log.Warn("record activity",
			slog.String("action", action),
			sl.Err(err),
		)
	}
}
