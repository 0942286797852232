package adminauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"refhub/entity"
	"refhub/impl/core"
	"refhub/lib/api/response"
	"refhub/lib/sl"
)

type Core interface {
	AdminRegister(ctx context.Context, p *entity.AdminRegisterParams) (*entity.Admin, string, error)
	AdminLogin(ctx context.Context, p *entity.AdminLoginParams) (*entity.Admin, string, error)
	PublicAdmins(ctx context.Context) ([]entity.PublicAdmin, error)
}

type authResult struct {
	Token string        `json:"token"`
	Admin *entity.Admin `json:"admin"`
}

func Register(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.adminauth"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var params entity.AdminRegisterParams
		if err := render.Bind(r, &params); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		admin, token, err := handler.AdminRegister(r.Context(), &params)
		if err != nil {
			if err == core.ErrPhoneTaken {
				logger.Info("phone already registered", sl.Secret("phone", params.Phone))
				render.Status(r, 400)
				render.JSON(w, r, response.Error("This phone number has already been used"))
				return
			}
			logger.Error("admin register", sl.Err(err))
			render.Status(r, 500)
			render.JSON(w, r, response.Error("Admin registration failed"))
			return
		}
		logger.Debug("admin registered", slog.String("username", admin.Username))

		render.JSON(w, r, response.Ok(authResult{Token: token, Admin: admin}))
	}
}

func Login(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.adminauth"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var params entity.AdminLoginParams
		if err := render.Bind(r, &params); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		admin, token, err := handler.AdminLogin(r.Context(), &params)
		if err != nil {
			if err == core.ErrInvalidCredentials {
				render.Status(r, 401)
				render.JSON(w, r, response.Error("Invalid credentials"))
				return
			}
			logger.Error("admin login", sl.Err(err))
			render.Status(r, 500)
			render.JSON(w, r, response.Error("Login failed"))
			return
		}

		render.JSON(w, r, response.Ok(authResult{Token: token, Admin: admin}))
	}
}

// PublicList returns the sanitized admin directory, no credentials included.
func PublicList(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.adminauth"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		admins, err := handler.PublicAdmins(r.Context())
		if err != nil {
			logger.Error("list public admins", sl.Err(err))
			render.Status(r, 500)
			render.JSON(w, r, response.Error("Failed to list admins"))
			return
		}

		render.JSON(w, r, response.Ok(admins))
	}
}
