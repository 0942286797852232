package registry

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"refhub/entity"
)

type fakeStore struct {
	codes      map[string]*entity.ReferralCode
	admins     map[string]*entity.Admin
	createFail int // fail this many creates before succeeding
	bumpErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		codes:  make(map[string]*entity.ReferralCode),
		admins: make(map[string]*entity.Admin),
	}
}

func (f *fakeStore) CreateReferralCode(_ context.Context, code *entity.ReferralCode) error {
	if f.createFail > 0 {
		f.createFail--
		return assert.AnError
	}
	if _, exists := f.codes[code.Code]; exists {
		return assert.AnError
	}
	f.codes[code.Code] = code
	return nil
}

func (f *fakeStore) GetReferralCode(_ context.Context, code string) (*entity.ReferralCode, error) {
	rc, ok := f.codes[code]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return rc, nil
}

func (f *fakeStore) BumpReferralCode(_ context.Context, code string) error {
	if f.bumpErr != nil {
		return f.bumpErr
	}
	rc, ok := f.codes[code]
	if !ok {
		return nil
	}
	rc.Visits++
	return nil
}

func (f *fakeStore) GetAdminByUsername(_ context.Context, username string) (*entity.Admin, error) {
	admin, ok := f.admins[username]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return admin, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_Issue(t *testing.T) {
	admin := &entity.Admin{
		ID:        primitive.NewObjectID(),
		Username:  "john.doe",
		FirstName: "John",
		LastName:  "Doe",
	}

	t.Run("prefix from initials", func(t *testing.T) {
		store := newFakeStore()
		reg := New(store, testLogger())

		code, err := reg.Issue(context.Background(), admin)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(code, "JD"))
		assert.Len(t, code, 2+randomLen)
		assert.Equal(t, admin.ID, store.codes[code].AdminID)
	})

	t.Run("username prefix when names missing", func(t *testing.T) {
		store := newFakeStore()
		reg := New(store, testLogger())

		code, err := reg.Issue(context.Background(), &entity.Admin{
			ID:       primitive.NewObjectID(),
			Username: "system",
		})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(code, "SY"))
	})

	t.Run("issued codes are distinct", func(t *testing.T) {
		store := newFakeStore()
		reg := New(store, testLogger())

		seen := make(map[string]bool)
		for i := 0; i < 50; i++ {
			code, err := reg.Issue(context.Background(), admin)
			require.NoError(t, err)
			assert.False(t, seen[code])
			seen[code] = true
		}
	})

	t.Run("timestamp suffix after exhausted retries", func(t *testing.T) {
		store := newFakeStore()
		store.createFail = maxAttempts
		reg := New(store, testLogger())

		code, err := reg.Issue(context.Background(), admin)
		require.NoError(t, err)
		assert.Greater(t, len(code), 2+randomLen)
	})

	t.Run("error when store keeps failing", func(t *testing.T) {
		store := newFakeStore()
		store.createFail = maxAttempts + 1
		reg := New(store, testLogger())

		_, err := reg.Issue(context.Background(), admin)
		assert.Error(t, err)
	})
}

func TestRegistry_Resolve(t *testing.T) {
	ownerId := primitive.NewObjectID()
	legacyId := primitive.NewObjectID()

	store := newFakeStore()
	store.codes["JD4F7K2Q"] = &entity.ReferralCode{Code: "JD4F7K2Q", AdminID: ownerId}
	store.admins["jane.roe"] = &entity.Admin{ID: legacyId, Username: "jane.roe"}
	reg := New(store, testLogger())

	t.Run("direct code lookup", func(t *testing.T) {
		id, err := reg.Resolve(context.Background(), "JD4F7K2Q")
		require.NoError(t, err)
		assert.Equal(t, ownerId, id)
	})

	t.Run("encoded identity fallback", func(t *testing.T) {
		id, err := reg.Resolve(context.Background(), EncodeIdentity("jane.roe"))
		require.NoError(t, err)
		assert.Equal(t, legacyId, id)
	})

	t.Run("direct lookup wins over decoding", func(t *testing.T) {
		token := EncodeIdentity("jane.roe")
		store.codes[token] = &entity.ReferralCode{Code: token, AdminID: ownerId}
		defer delete(store.codes, token)

		id, err := reg.Resolve(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, ownerId, id)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := reg.Resolve(context.Background(), "NOSUCH")
		assert.Equal(t, entity.ErrNotFound, err)
	})

	t.Run("decodable token with unknown username", func(t *testing.T) {
		_, err := reg.Resolve(context.Background(), EncodeIdentity("ghost"))
		assert.Equal(t, entity.ErrNotFound, err)
	})
}

func TestRegistry_Bump(t *testing.T) {
	store := newFakeStore()
	store.codes["AB123456"] = &entity.ReferralCode{Code: "AB123456"}
	reg := New(store, testLogger())

	reg.Bump(context.Background(), "AB123456")
	reg.Bump(context.Background(), "AB123456")
	assert.Equal(t, int64(2), store.codes["AB123456"].Visits)

	// store failure is swallowed
	store.bumpErr = assert.AnError
	reg.Bump(context.Background(), "AB123456")
}

func TestIdentityCodec(t *testing.T) {
	tests := []struct {
		name     string
		username string
	}{
		{"plain", "john"},
		{"dotted", "john.doe"},
		{"digits", "user42"},
		{"underscored", "a_b-c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := EncodeIdentity(tt.username)
			decoded, ok := DecodeIdentity(token)
			require.True(t, ok)
			assert.Equal(t, tt.username, decoded)
		})
	}

	t.Run("rejects garbage", func(t *testing.T) {
		_, ok := DecodeIdentity("not base32 at all!!!")
		assert.False(t, ok)
	})

	t.Run("rejects too short", func(t *testing.T) {
		_, ok := DecodeIdentity(EncodeIdentity("x"))
		assert.False(t, ok)
	})

	t.Run("rejects non-identity bytes", func(t *testing.T) {
		_, ok := DecodeIdentity(EncodeIdentity("jo hn"))
		assert.False(t, ok)
	})
}
