package authenticate

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"refhub/entity"
	"refhub/lib/api/cont"
	"refhub/lib/api/response"
	"refhub/lib/sl"
)

type AdminAuth interface {
	AdminByToken(ctx context.Context, token string) (*entity.Admin, error)
}

type StudentAuth interface {
	StudentByToken(ctx context.Context, token string) (*entity.Student, error)
}

// Admin authenticates requests as referral-owning admins.
func Admin(log *slog.Logger, auth AdminAuth) func(next http.Handler) http.Handler {
	mod := sl.Module("middleware.authenticate")

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			logger, ww, token, ok := begin(log, mod, w, r)
			if !ok {
				return
			}

			t1 := time.Now()
			defer func() {
				logger.With(
					slog.Int("status", ww.Status()),
					slog.Int("size", ww.BytesWritten()),
					slog.Float64("duration", time.Since(t1).Seconds()),
				).Info("incoming request")
			}()

			admin, err := auth.AdminByToken(r.Context(), token)
			if err != nil {
				logger = logger.With(sl.Err(err))
				authFailed(ww, r, "Unauthorized: token not valid")
				return
			}
			logger = logger.With(slog.String("admin", admin.Username))
			ctx := cont.PutAdmin(r.Context(), admin)

			ww.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))
			next.ServeHTTP(ww, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}

// Student authenticates requests as referred students.
func Student(log *slog.Logger, auth StudentAuth) func(next http.Handler) http.Handler {
	mod := sl.Module("middleware.authenticate")

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			logger, ww, token, ok := begin(log, mod, w, r)
			if !ok {
				return
			}

			t1 := time.Now()
			defer func() {
				logger.With(
					slog.Int("status", ww.Status()),
					slog.Int("size", ww.BytesWritten()),
					slog.Float64("duration", time.Since(t1).Seconds()),
				).Info("incoming request")
			}()

			student, err := auth.StudentByToken(r.Context(), token)
			if err != nil {
				logger = logger.With(sl.Err(err))
				authFailed(ww, r, "Unauthorized: token not valid")
				return
			}
			logger = logger.With(slog.String("student", student.Username))
			ctx := cont.PutStudent(r.Context(), student)

			ww.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))
			next.ServeHTTP(ww, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}

func begin(log *slog.Logger, mod slog.Attr, w http.ResponseWriter, r *http.Request) (*slog.Logger, middleware.WrapResponseWriter, string, bool) {
	remote := r.RemoteAddr
	// if the request is coming from a proxy, use the X-Forwarded-For header
	if xRemote := r.Header.Get("X-Forwarded-For"); xRemote != "" {
		remote = xRemote
	}
	logger := log.With(
		mod,
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", remote),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

	header := r.Header.Get("Authorization")
	if len(header) == 0 {
		logger.With(sl.Err(fmt.Errorf("authorization header not found"))).Info("incoming request")
		authFailed(ww, r, "Authorization header not found")
		return nil, nil, "", false
	}
	token := ""
	if strings.Contains(header, "Bearer") {
		token = strings.Split(header, " ")[1]
	}
	if len(token) == 0 {
		logger.With(sl.Err(fmt.Errorf("token not found"))).Info("incoming request")
		authFailed(ww, r, "Token not found")
		return nil, nil, "", false
	}
	return logger.With(sl.Secret("token", token)), ww, token, true
}

func authFailed(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, response.Error(message))
}
