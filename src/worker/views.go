package worker

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"reminder/src/services"
	handlers "reminder/src/worker/handlers"
)

type Server struct {
	Router  *chi.Mux
	Handler handlers.Handler
}

func NewServer(backfill *services.BackfillService, cleanup *services.CleanupService) *Server {
	server := &Server{
		Router:  chi.NewRouter(),
		Handler: *handlers.NewHandler(backfill, cleanup),
	}
	server.InitRoutes()
	return server
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) InitRoutes() {
	s.Router.Get("/alive", handlers.Alive)
	s.Router.Route("/api/jobs", func(r chi.Router) {
		r.Post("/backfill", s.Handler.TriggerMonthlyBackfill)
		r.Post("/backfill/{year}/{month}", s.Handler.TriggerBackfillForMonth)
		r.Post("/cleanup", s.Handler.TriggerCleanup)
	})
}

func NewHTTPServer(server *Server, port string) *http.Server {
	httpServer := &http.Server{
		Addr:         ":" + port,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		Handler:      server,
	}
	return httpServer
}
