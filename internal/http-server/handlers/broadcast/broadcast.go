package broadcast

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"refhub/entity"
	"refhub/lib/api/response"
	"refhub/lib/sl"
)

const headerKey = "x-broadcast-key"

type Core interface {
	VerifyBroadcastKey(key string) bool
	Broadcast(message string)
}

// Send fans a message out to every admin with a usable channel. Delivery is
// asynchronous, the response only confirms the message was accepted.
func Send(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.broadcast"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if !handler.VerifyBroadcastKey(r.Header.Get(headerKey)) {
			logger.Info("broadcast rejected", slog.String("remote", r.RemoteAddr))
			render.Status(r, 401)
			render.JSON(w, r, response.Error("Unauthorized"))
			return
		}

		var params entity.BroadcastParams
		if err := render.Bind(r, &params); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		handler.Broadcast(params.Text)
		logger.Info("broadcast accepted", slog.Int("length", len(params.Text)))

		render.Status(r, 202)
		render.JSON(w, r, response.Ok(nil))
	}
}
