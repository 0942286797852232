package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"refhub/entity"
)

type fakeStore struct {
	admins   map[primitive.ObjectID]*entity.Admin
	students map[primitive.ObjectID]*entity.Student
}

func (f *fakeStore) GetAdminById(_ context.Context, id primitive.ObjectID) (*entity.Admin, error) {
	admin, ok := f.admins[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return admin, nil
}

func (f *fakeStore) GetStudentById(_ context.Context, id primitive.ObjectID) (*entity.Student, error) {
	student, ok := f.students[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return student, nil
}

func TestAuth_Passwords(t *testing.T) {
	a := New(&fakeStore{}, "secret", time.Hour)

	hash, err := a.HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)

	assert.True(t, a.CheckPassword(hash, "hunter2"))
	assert.False(t, a.CheckPassword(hash, "hunter3"))
	assert.False(t, a.CheckPassword("not a hash", "hunter2"))
}

func TestAuth_Tokens(t *testing.T) {
	admin := &entity.Admin{ID: primitive.NewObjectID(), Username: "teacher"}
	student := &entity.Student{ID: primitive.NewObjectID(), Username: "jo"}
	store := &fakeStore{
		admins:   map[primitive.ObjectID]*entity.Admin{admin.ID: admin},
		students: map[primitive.ObjectID]*entity.Student{student.ID: student},
	}
	a := New(store, "secret", time.Hour)

	t.Run("admin roundtrip", func(t *testing.T) {
		token, err := a.IssueToken(admin.ID, RoleAdmin)
		require.NoError(t, err)

		got, err := a.AdminByToken(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, admin.Username, got.Username)
	})

	t.Run("student roundtrip", func(t *testing.T) {
		token, err := a.IssueToken(student.ID, RoleStudent)
		require.NoError(t, err)

		got, err := a.StudentByToken(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, student.Username, got.Username)
	})

	t.Run("role mismatch rejected", func(t *testing.T) {
		token, err := a.IssueToken(student.ID, RoleStudent)
		require.NoError(t, err)

		_, err = a.AdminByToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		token, err := a.IssueToken(admin.ID, RoleAdmin)
		require.NoError(t, err)

		other := New(store, "different", time.Hour)
		_, err = other.AdminByToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		short := New(store, "secret", -time.Minute)
		token, err := short.IssueToken(admin.ID, RoleAdmin)
		require.NoError(t, err)

		_, err = short.AdminByToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, err := a.AdminByToken(context.Background(), "not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
