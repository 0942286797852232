package student

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"refhub/entity"
	"refhub/impl/core"
	"refhub/lib/api/cont"
	"refhub/lib/api/req"
	"refhub/lib/api/response"
	"refhub/lib/sl"
)

type Core interface {
	StudentRegister(ctx context.Context, p *entity.StudentRegisterParams, ip, userAgent string) (*entity.Student, string, *entity.Admin, error)
	StudentLogin(ctx context.Context, p *entity.StudentLoginParams) (*entity.Student, string, error)
	StudentVote(ctx context.Context, student *entity.Student, p *entity.VoteParams) error
	StudentProfile(ctx context.Context, student *entity.Student) (*entity.Student, error)
}

type registerResult struct {
	Token   string             `json:"token"`
	Student *entity.Student    `json:"student"`
	Admin   entity.PublicAdmin `json:"admin"`
}

type loginResult struct {
	Token   string          `json:"token"`
	Student *entity.Student `json:"student"`
}

// Register attributes the signup, creates the student and kicks off the
// reconcile+notify pipeline. A dead referral code or a downed notification
// channel never fails this request.
func Register(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.student"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var params entity.StudentRegisterParams
		if err := render.Bind(r, &params); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		logger = logger.With(slog.String("username", params.Username))

		st, token, admin, err := handler.StudentRegister(r.Context(), &params, req.ClientIP(r), r.UserAgent())
		if err != nil {
			switch err {
			case core.ErrUsernameTaken:
				render.Status(r, 400)
				render.JSON(w, r, response.Error("Username exists"))
			case core.ErrSecurityCodeMissing:
				render.Status(r, 400)
				render.JSON(w, r, response.Error("Security code required by teacher"))
			case core.ErrSecurityCodeInvalid:
				render.Status(r, 400)
				render.JSON(w, r, response.Error("Invalid or used security code"))
			default:
				logger.Error("student register", sl.Err(err))
				render.Status(r, 500)
				render.JSON(w, r, response.Error("Student registration failed"))
			}
			return
		}
		logger.Debug("student registered", slog.String("admin", admin.Username))

		render.Status(r, 201)
		render.JSON(w, r, response.Ok(registerResult{
			Token:   token,
			Student: st,
			Admin:   admin.Public(),
		}))
	}
}

func Login(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.student"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var params entity.StudentLoginParams
		if err := render.Bind(r, &params); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		st, token, err := handler.StudentLogin(r.Context(), &params)
		if err != nil {
			switch err {
			case core.ErrInvalidCredentials:
				render.Status(r, 401)
				render.JSON(w, r, response.Error("Invalid credentials"))
			case core.ErrSecurityCodeMissing:
				render.Status(r, 400)
				render.JSON(w, r, response.Error("Teacher requires a security code for login"))
			case core.ErrSecurityCodeInvalid:
				render.Status(r, 400)
				render.JSON(w, r, response.Error("Invalid or used security code"))
			default:
				logger.Error("student login", sl.Err(err))
				render.Status(r, 500)
				render.JSON(w, r, response.Error("Login failed"))
			}
			return
		}

		render.JSON(w, r, response.Ok(loginResult{Token: token, Student: st}))
	}
}

func Vote(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, st, ok := begin(log, w, r)
		if !ok {
			return
		}

		var params entity.VoteParams
		if err := render.Bind(r, &params); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		if err := handler.StudentVote(r.Context(), st, &params); err != nil {
			if err == core.ErrMaintenance {
				render.Status(r, 503)
				render.JSON(w, r, response.Error("Teacher is in maintenance mode"))
				return
			}
			logger.Error("student vote", sl.Err(err))
			render.Status(r, 500)
			render.JSON(w, r, response.Error("Failed to submit vote"))
			return
		}
		render.JSON(w, r, response.Ok(nil))
	}
}

func Profile(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, st, ok := begin(log, w, r)
		if !ok {
			return
		}

		profile, err := handler.StudentProfile(r.Context(), st)
		if err != nil {
			if err == core.ErrMaintenance {
				render.Status(r, 503)
				render.JSON(w, r, response.Error("Teacher is in maintenance mode"))
				return
			}
			logger.Error("student profile", sl.Err(err))
			render.Status(r, 500)
			render.JSON(w, r, response.Error("Failed to fetch profile"))
			return
		}
		render.JSON(w, r, response.Ok(profile))
	}
}

func begin(log *slog.Logger, w http.ResponseWriter, r *http.Request) (*slog.Logger, *entity.Student, bool) {
	logger := log.With(
		sl.Module("http.handlers.student"),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	st := cont.GetStudent(r.Context())
	if st == nil {
		render.Status(r, 401)
		render.JSON(w, r, response.Error("Unauthorized"))
		return logger, nil, false
	}
	return logger.With(slog.String("student", st.Username)), st, true
}
