package notifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"refhub/entity"
	"refhub/lib/sl"
)

const dispatchTimeout = 15 * time.Second

// Transport delivers one message to one channel descriptor.
type Transport interface {
	Send(ctx context.Context, channel entity.Channel, text string) error
}

type Database interface {
	GetAdminById(ctx context.Context, id primitive.ObjectID) (*entity.Admin, error)
	GetNotifiableAdmins(ctx context.Context) ([]*entity.Admin, error)
}

// Notifier delivers best-effort messages to admin channels. Dispatch is
// detached from the triggering request: the caller's response never waits on
// delivery, and transport failures are swallowed after one soft retry.
type Notifier struct {
	db         Database
	transports map[entity.ChannelKind]Transport
	log        *slog.Logger
	wg         sync.WaitGroup
}

func New(db Database, log *slog.Logger) *Notifier {
	return &Notifier{
		db:         db,
		transports: make(map[entity.ChannelKind]Transport),
		log:        log.With(sl.Module("notifier")),
	}
}

func (n *Notifier) Register(kind entity.ChannelKind, t Transport) {
	n.transports[kind] = t
}

// Notify dispatches a message to the admin's channel in the background.
// No cancellation is threaded through: once started, the attempt runs to
// completion or failure on its own timeout.
func (n *Notifier) Notify(adminId primitive.ObjectID, message string) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		admin, err := n.db.GetAdminById(ctx, adminId)
		if err != nil {
			n.log.Warn("notify: admin lookup", slog.String("admin_id", adminId.Hex()), sl.Err(err))
			return
		}
		n.send(ctx, admin, message)
	}()
}

// Broadcast delivers to every admin with a complete channel. One recipient's
// failure never stops delivery to the rest.
func (n *Notifier) Broadcast(message string) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout*4)
		defer cancel()

		admins, err := n.db.GetNotifiableAdmins(ctx)
		if err != nil {
			n.log.Warn("broadcast: list admins", sl.Err(err))
			return
		}
		for _, admin := range admins {
			n.send(ctx, admin, message)
		}
	}()
}

// Flush waits for in-flight dispatches. Used on shutdown and in tests.
func (n *Notifier) Flush() {
	n.wg.Wait()
}

func (n *Notifier) send(ctx context.Context, admin *entity.Admin, message string) {
	log := n.log.With(slog.String("admin", admin.Username))

	if !admin.Channel.Complete() {
		log.Info("skipping notification, channel incomplete",
			slog.String("kind", string(admin.Channel.Kind)))
		return
	}
	transport, ok := n.transports[admin.Channel.Kind]
	if !ok {
		log.Warn("no transport for channel", slog.String("kind", string(admin.Channel.Kind)))
		return
	}

	err := transport.Send(ctx, admin.Channel, message)
	if err == nil {
		log.Debug("notification sent")
		return
	}
	log.Warn("sending notification", sl.Err(err))

	// one soft retry, then give up quietly
	if err = transport.Send(ctx, admin.Channel, message); err != nil {
		log.Error("notification failed", sl.Err(err))
	}
}
