package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"refhub/entity"
)

const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

var ErrInvalidToken = errors.New("invalid token")

type Database interface {
	GetAdminById(ctx context.Context, id primitive.ObjectID) (*entity.Admin, error)
	GetStudentById(ctx context.Context, id primitive.ObjectID) (*entity.Student, error)
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth issues and verifies bearer tokens and wraps password hashing.
type Auth struct {
	db     Database
	secret []byte
	ttl    time.Duration
}

func New(db Database, secret string, ttl time.Duration) *Auth {
	return &Auth{
		db:     db,
		secret: []byte(secret),
		ttl:    ttl,
	}
}

func (a *Auth) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (a *Auth) CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (a *Auth) IssueToken(id primitive.ObjectID, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			Issuer:    "refhub",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *Auth) parse(token, wantRole string) (primitive.ObjectID, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Role != wantRole {
		return primitive.NilObjectID, ErrInvalidToken
	}
	id, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidToken
	}
	return id, nil
}

func (a *Auth) AdminByToken(ctx context.Context, token string) (*entity.Admin, error) {
	id, err := a.parse(token, RoleAdmin)
	if err != nil {
		return nil, err
	}
	return a.db.GetAdminById(ctx, id)
}

func (a *Auth) StudentByToken(ctx context.Context, token string) (*entity.Student, error) {
	id, err := a.parse(token, RoleStudent)
	if err != nil {
		return nil, err
	}
	return a.db.GetStudentById(ctx, id)
}
