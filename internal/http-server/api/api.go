package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"refhub/internal/config"
	"refhub/internal/http-server/handlers/adminauth"
	"refhub/internal/http-server/handlers/adminpanel"
	"refhub/internal/http-server/handlers/broadcast"
	"refhub/internal/http-server/handlers/errors"
	"refhub/internal/http-server/handlers/student"
	"refhub/internal/http-server/handlers/visit"
	"refhub/internal/http-server/middleware/authenticate"
	"refhub/internal/http-server/middleware/timeout"
	"refhub/lib/sl"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.AdminAuth
	authenticate.StudentAuth
	adminauth.Core
	adminpanel.Core
	student.Core
	visit.Core
	broadcast.Core
}

func New(conf *config.Config, log *slog.Logger, handler Handler) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(timeout.Timeout(15))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Route("/v1", func(rootApi chi.Router) {
		rootApi.Get("/admins/public", adminauth.PublicList(log, handler))
		rootApi.Post("/notify/global", broadcast.Send(log, handler))

		rootApi.Route("/visit", func(vs chi.Router) {
			vs.Post("/log", visit.Log(log, handler))
			vs.Get("/stats", visit.Stats(log, handler))
		})

		rootApi.Route("/admin", func(ad chi.Router) {
			ad.Post("/register", adminauth.Register(log, handler))
			ad.Post("/login", adminauth.Login(log, handler))

			ad.Group(func(priv chi.Router) {
				priv.Use(authenticate.Admin(log, handler))
				priv.Post("/referral", adminpanel.MintReferral(log, handler))
				priv.Get("/referrals", adminpanel.ListReferrals(log, handler))
				priv.Post("/security-codes", adminpanel.AddCodes(log, handler))
				priv.Get("/security-codes", adminpanel.ListCodes(log, handler))
				priv.Post("/settings", adminpanel.ToggleSetting(log, handler))
				priv.Get("/students", adminpanel.Students(log, handler))
				priv.Get("/activities", adminpanel.Activities(log, handler))
				priv.Get("/dashboard", adminpanel.Dashboard(log, handler))
			})
		})

		rootApi.Route("/student", func(st chi.Router) {
			st.Post("/register", student.Register(log, handler))
			st.Post("/login", student.Login(log, handler))

			st.Group(func(priv chi.Router) {
				priv.Use(authenticate.Student(log, handler))
				priv.Post("/vote", student.Vote(log, handler))
				priv.Get("/me", student.Profile(log, handler))
			})
		})
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      router,
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIp, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
