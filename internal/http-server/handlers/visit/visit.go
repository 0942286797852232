package visit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"refhub/entity"
	"refhub/lib/api/req"
	"refhub/lib/api/response"
	"refhub/lib/sl"
)

type Core interface {
	LogVisit(ctx context.Context, event *entity.VisitEvent) (*entity.Visit, error)
	VisitStats(ctx context.Context) (*entity.VisitStats, error)
}

// Log appends a visit record. Recording always wins: attribution and
// notification failures downstream never surface here.
func Log(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.visit"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var event entity.VisitEvent
		if err := render.Bind(r, &event); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		event.IP = req.ClientIP(r)
		event.UserAgent = r.UserAgent()

		visit, err := handler.LogVisit(r.Context(), &event)
		if err != nil {
			logger.Error("log visit", sl.Err(err))
			render.Status(r, 500)
			render.JSON(w, r, response.Error("Failed to log visit"))
			return
		}
		logger.Debug("visit recorded", slog.String("referrer", visit.Referrer))

		render.JSON(w, r, response.Ok(visit))
	}
}

func Stats(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.visit"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		stats, err := handler.VisitStats(r.Context())
		if err != nil {
			logger.Error("visit stats", sl.Err(err))
			render.Status(r, 500)
			render.JSON(w, r, response.Error("Failed to get stats"))
			return
		}
		render.JSON(w, r, response.Ok(stats))
	}
}
