package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"refhub/entity"
	"refhub/internal/config"
)

// fakeStore mimics the conditional upsert: the first seed wins, later calls
// read the stored document back.
type fakeStore struct {
	mu          sync.Mutex
	stored      *entity.Admin
	ensureCalls int
	codes       map[primitive.ObjectID]string
}

func (f *fakeStore) EnsureDefaultAdmin(_ context.Context, seed *entity.Admin) (*entity.Admin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureCalls++
	if f.stored == nil {
		stored := *seed
		stored.ID = primitive.NewObjectID()
		f.stored = &stored
	}
	copied := *f.stored
	return &copied, nil
}

func (f *fakeStore) SetAdminReferralCode(_ context.Context, id primitive.ObjectID, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.codes == nil {
		f.codes = make(map[primitive.ObjectID]string)
	}
	f.codes[id] = code
	f.stored.ReferralCode = code
	return nil
}

type fakeRegistry struct {
	mu     sync.Mutex
	issued int
}

func (f *fakeRegistry) Issue(_ context.Context, _ *entity.Admin) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued++
	return "SY123456", nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func conf() config.DefaultAdminConfig {
	return config.DefaultAdminConfig{Username: "system", Phone: "+10000000000", ApiKey: "key"}
}

func TestBootstrap_DefaultAdmin(t *testing.T) {
	t.Run("seeds once and caches", func(t *testing.T) {
		store := &fakeStore{}
		reg := &fakeRegistry{}
		b := New(store, reg, conf(), testLogger())

		first, err := b.DefaultAdmin(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "system", first.Username)
		assert.True(t, first.IsDefault)
		assert.Equal(t, "SY123456", first.ReferralCode)

		second, err := b.DefaultAdmin(context.Background())
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Equal(t, 1, store.ensureCalls)
		assert.Equal(t, 1, reg.issued)
	})

	t.Run("keeps an existing referral code", func(t *testing.T) {
		store := &fakeStore{stored: &entity.Admin{
			ID:           primitive.NewObjectID(),
			Username:     "system",
			IsDefault:    true,
			ReferralCode: "SYOLD111",
		}}
		reg := &fakeRegistry{}
		b := New(store, reg, conf(), testLogger())

		admin, err := b.DefaultAdmin(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "SYOLD111", admin.ReferralCode)
		assert.Zero(t, reg.issued)
	})

	t.Run("concurrent first use resolves to one admin", func(t *testing.T) {
		store := &fakeStore{}
		b := New(store, &fakeRegistry{}, conf(), testLogger())

		const workers = 16
		results := make([]*entity.Admin, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				admin, err := b.DefaultAdmin(context.Background())
				assert.NoError(t, err)
				results[i] = admin
			}(i)
		}
		wg.Wait()

		for _, admin := range results {
			assert.Equal(t, results[0].ID, admin.ID)
		}
		assert.Equal(t, 1, store.ensureCalls)
	})
}
