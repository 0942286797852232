package adminpanel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"refhub/entity"
	"refhub/impl/core"
	"refhub/lib/api/cont"
	"refhub/lib/api/response"
	"refhub/lib/sl"
)

type Core interface {
	MintReferral(ctx context.Context, admin *entity.Admin) (*entity.ReferralCode, error)
	ReferralCodes(ctx context.Context, admin *entity.Admin) ([]*entity.ReferralCode, error)
	AddSecurityCodes(ctx context.Context, admin *entity.Admin, p *entity.SecurityCodesParams) ([]*entity.SecurityCode, error)
	SecurityCodes(ctx context.Context, admin *entity.Admin) ([]*entity.SecurityCode, error)
	ToggleSetting(ctx context.Context, admin *entity.Admin, p *entity.ToggleSettingParams) (entity.AdminSettings, error)
	Students(ctx context.Context, admin *entity.Admin) ([]*entity.Student, error)
	Activities(ctx context.Context, admin *entity.Admin, page, per int64) ([]*entity.Activity, error)
	AdminDashboard(ctx context.Context, admin *entity.Admin) (*core.Dashboard, error)
}

type referralResult struct {
	Code string `json:"code"`
	Link string `json:"link"`
}

// MintReferral issues an extra referral code for the calling admin. Older
// codes keep working.
func MintReferral(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, admin, ok := begin(log, w, r)
		if !ok {
			return
		}

		rc, err := handler.MintReferral(r.Context(), admin)
		if err != nil {
			logger.Error("mint referral", sl.Err(err))
			render.Status(r, 500)
			render.JSON(w, r, response.Error("Failed to generate referral"))
			return
		}
		logger.Debug("referral minted", slog.String("code", rc.Code))

		render.JSON(w, r, response.Ok(referralResult{
			Code: rc.Code,
			Link: fmt.Sprintf("/register?ref=%s", rc.Code),
		}))
	}
}

func ListReferrals(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, admin, ok := begin(log, w, r)
		if !ok {
			return
		}

		codes, err := handler.ReferralCodes(r.Context(), admin)
		if err != nil {
			logger.Error("list referrals", sl.Err(err))
			render.Status(r, 500)
			render.JSON(w, r, response.Error("Failed to list referral codes"))
			return
		}
		render.JSON(w, r, response.Ok(codes))
	}
}

func AddCodes(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, admin, ok := begin(log, w, r)
		if !ok {
			return
		}

		var params entity.SecurityCodesParams
		if err := render.Bind(r, &params); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		codes, err := handler.AddSecurityCodes(r.Context(), admin, &params)
		if err != nil {
			logger.Error("add security codes", sl.Err(err))
			render.Status(r, 500)
			render.JSON(w, r, response.Error("Failed to add codes"))
			return
		}
		render.JSON(w, r, response.Ok(codes))
	}
}

func ListCodes(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, admin, ok := begin(log, w, r)
		if !ok {
			return
		}

		codes, err := handler.SecurityCodes(r.Context(), admin)
		if err != nil {
			logger.Error("list security codes", sl.Err(err))
			render.Status(r, 500)
			render.JSON(w, r, response.Error("Failed to list codes"))
			return
		}
		render.JSON(w, r, response.Ok(codes))
	}
}

func ToggleSetting(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, admin, ok := begin(log, w, r)
		if !ok {
			return
		}

		var params entity.ToggleSettingParams
		if err := render.Bind(r, &params); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		settings, err := handler.ToggleSetting(r.Context(), admin, &params)
		if err != nil {
			logger.Error("toggle setting", sl.Err(err))
			render.Status(r, 500)
			render.JSON(w, r, response.Error("Failed to toggle setting"))
			return
		}
		render.JSON(w, r, response.Ok(settings))
	}
}

func Students(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, admin, ok := begin(log, w, r)
		if !ok {
			return
		}

		students, err := handler.Students(r.Context(), admin)
		if err != nil {
			logger.Error("list students", sl.Err(err))
			render.Status(r, 500)
			render.JSON(w, r, response.Error("Failed to list students"))
			return
		}
		render.JSON(w, r, response.Ok(students))
	}
}

func Activities(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, admin, ok := begin(log, w, r)
		if !ok {
			return
		}

		page := queryInt(r, "page", 1)
		per := queryInt(r, "per", 50)
		activities, err := handler.Activities(r.Context(), admin, page, per)
		if err != nil {
			logger.Error("list activities", sl.Err(err))
			render.Status(r, 500)
			render.JSON(w, r, response.Error("Failed to fetch activities"))
			return
		}
		render.JSON(w, r, response.Ok(activities))
	}
}

func Dashboard(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, admin, ok := begin(log, w, r)
		if !ok {
			return
		}

		dashboard, err := handler.AdminDashboard(r.Context(), admin)
		if err != nil {
			logger.Error("load dashboard", sl.Err(err))
			render.Status(r, 500)
			render.JSON(w, r, response.Error("Failed to load dashboard"))
			return
		}
		render.JSON(w, r, response.Ok(dashboard))
	}
}

func begin(log *slog.Logger, w http.ResponseWriter, r *http.Request) (*slog.Logger, *entity.Admin, bool) {
	logger := log.With(
		sl.Module("http.handlers.adminpanel"),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	admin := cont.GetAdmin(r.Context())
	if admin == nil {
		render.Status(r, 401)
		render.JSON(w, r, response.Error("Unauthorized"))
		return logger, nil, false
	}
	return logger.With(slog.String("admin", admin.Username)), admin, true
}

func queryInt(r *http.Request, key string, def int64) int64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 1 {
		return def
	}
	return n
}
