package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/blood-bank-console/apiclient"
	"github.com/jrsteele09/blood-bank-console/guard"
	"github.com/jrsteele09/blood-bank-console/internal/config"
	"github.com/jrsteele09/blood-bank-console/internal/flash"
	"github.com/jrsteele09/blood-bank-console/session"
)

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	client   *apiclient.Client
	session  *session.Manager
	guards   *guard.Middleware
	flashes  *flash.Queue
	gatherer prometheus.Gatherer
}

// New wires the console routes around an API client and its session manager.
// gatherer backs the /metrics endpoint.
func New(cfg config.Config, client *apiclient.Client, sess *session.Manager, gatherer prometheus.Gatherer) (*Server, error) {
	if client == nil || sess == nil {
		return nil, fmt.Errorf("[Server New] client and session are required")
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		config:   cfg,
		client:   client,
		session:  sess,
		flashes:  flash.New(cfg.GetFlashTTL()),
		gatherer: gatherer,
	}
	s.guards = guard.NewMiddleware(sess,
		guard.WithWait(cfg.GetGuardWait()),
		guard.WithLoadingPage(s.LoadingPageHandler()),
	)

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Flashes exposes the notification queue shown on rendered pages
func (s *Server) Flashes() *flash.Queue {
	return s.flashes
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msg(fmt.Sprintf("[%-19s] %s", colourMethod(method), path))
}

func logError(method, path, error string) {
	log.Error().Msg(fmt.Sprintf("[%-19s] %s %s", colourMethod(method), path, Red+error+ResetColor))
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}
