package registry

import (
	"context"
	"encoding/base32"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"refhub/entity"
	"refhub/lib/sl"
)

const (
	randomLen   = 6
	maxAttempts = 3
	alphabet    = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// identityCodec is the reversible encoding behind the legacy username-code
// family. Unpadded so encoded tokens look like ordinary codes.
var identityCodec = base32.StdEncoding.WithPadding(base32.NoPadding)

type Database interface {
	CreateReferralCode(ctx context.Context, code *entity.ReferralCode) error
	GetReferralCode(ctx context.Context, code string) (*entity.ReferralCode, error)
	BumpReferralCode(ctx context.Context, code string) error
	GetAdminByUsername(ctx context.Context, username string) (*entity.Admin, error)
}

// Registry issues referral codes and resolves them back to owning admins.
type Registry struct {
	db  Database
	log *slog.Logger
}

func New(db Database, log *slog.Logger) *Registry {
	return &Registry{
		db:  db,
		log: log.With(sl.Module("registry")),
	}
}

// Issue mints a code unique across all active codes. Collisions are retried a
// bounded number of times; the final attempt appends a timestamp suffix so the
// loop can never spin on a crowded prefix.
func (r *Registry) Issue(ctx context.Context, admin *entity.Admin) (string, error) {
	prefix := initials(admin)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code := prefix + randomCode(randomLen)
		if err := r.create(ctx, admin.ID, code); err != nil {
			lastErr = err
			continue
		}
		return code, nil
	}

	code := prefix + randomCode(randomLen) + strings.ToUpper(strconv.FormatInt(time.Now().UnixNano(), 36))
	if err := r.create(ctx, admin.ID, code); err != nil {
		return "", fmt.Errorf("issue code: %w (after %d attempts: %v)", err, maxAttempts, lastErr)
	}
	return code, nil
}

func (r *Registry) create(ctx context.Context, adminId primitive.ObjectID, code string) error {
	return r.db.CreateReferralCode(ctx, &entity.ReferralCode{
		Code:      code,
		AdminID:   adminId,
		Visits:    0,
		CreatedAt: time.Now(),
	})
}

// Resolve maps a code to its owning admin. Direct registry lookup first, then
// the reversible identity encoding, in that order, short-circuiting on the
// first hit. A miss is entity.ErrNotFound, which callers treat as a
// fall-through signal rather than a failure.
func (r *Registry) Resolve(ctx context.Context, code string) (primitive.ObjectID, error) {
	rc, err := r.db.GetReferralCode(ctx, code)
	if err == nil {
		return rc.AdminID, nil
	}
	if err != entity.ErrNotFound {
		return primitive.NilObjectID, err
	}

	username, ok := DecodeIdentity(code)
	if !ok {
		return primitive.NilObjectID, entity.ErrNotFound
	}
	admin, err := r.db.GetAdminByUsername(ctx, username)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return admin.ID, nil
}

// Bump increments the visit counter for a code. Unknown codes are a no-op;
// store failures are logged and swallowed so a counter can never fail a
// signup.
func (r *Registry) Bump(ctx context.Context, code string) {
	if err := r.db.BumpReferralCode(ctx, code); err != nil {
		r.log.Warn("bump referral code", slog.String("code", code), sl.Err(err))
	}
}

// EncodeIdentity produces the legacy reversible token for a username.
func EncodeIdentity(username string) string {
	return identityCodec.EncodeToString([]byte(username))
}

// DecodeIdentity reverses EncodeIdentity. Returns false when the token is not
// a plausible encoded username.
func DecodeIdentity(token string) (string, bool) {
	raw, err := identityCodec.DecodeString(token)
	if err != nil || len(raw) < 2 || len(raw) > 64 {
		return "", false
	}
	for _, b := range raw {
		valid := b >= 'a' && b <= 'z' ||
			b >= 'A' && b <= 'Z' ||
			b >= '0' && b <= '9' ||
			b == '_' || b == '-' || b == '.'
		if !valid {
			return "", false
		}
	}
	return string(raw), true
}

func initials(admin *entity.Admin) string {
	prefix := ""
	if admin.FirstName != "" {
		prefix += admin.FirstName[:1]
	}
	if admin.LastName != "" {
		prefix += admin.LastName[:1]
	}
	if prefix == "" && len(admin.Username) >= 2 {
		prefix = admin.Username[:2]
	}
	return strings.ToUpper(prefix)
}

func randomCode(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return string(b)
}
