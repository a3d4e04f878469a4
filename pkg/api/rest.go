/*
 * FogPlace
 *
 * Component placement and traffic routing over fog infrastructures.
 *
 * API version: 1.0.0
 */
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/a-liut/fogplace/internal/model"
	"github.com/a-liut/fogplace/pkg/deployment"
	"github.com/a-liut/fogplace/pkg/placement"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
)

const shutdownTimeout = 10 * time.Second

// A Response is a wrapper object for server's responses
type Response struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// A PlaceRequest asks for a placement that is not kept by the manager.
type PlaceRequest struct {
	Infrastructure *model.Infrastructure `json:"infrastructure"`
	Application    *model.Application    `json:"application"`
	StartHost      *int                  `json:"start_host,omitempty"`
	// Registered strategy name, the manager's strategy when empty
	Strategy string `json:"strategy,omitempty"`
}

func newResponse(message string, errorMessage string) *Response {
	return &Response{
		Message: message,
		Error:   errorMessage,
	}
}

// Handles error responses
func handleError(w http.ResponseWriter, status int, message string, args ...interface{}) {
	writeJSON(w, status, newResponse("", fmt.Sprintf(message, args...)))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Cannot write response")
	}
}

// A Server exposes a Manager over HTTP.
type Server struct {
	manager *deployment.Manager
	scope   tally.Scope
	router  *mux.Router
}

// NewServer returns a Server for manager. Strategies requested by name report to scope.
func NewServer(manager *deployment.Manager, scope tally.Scope) *Server {
	if scope == nil {
		scope = tally.NoopScope
	}
	s := &Server{
		manager: manager,
		scope:   scope,
		router:  mux.NewRouter(),
	}

	s.router.HandleFunc("/place", s.placeHandler).Methods(http.MethodPost)
	s.router.HandleFunc("/strategies", s.strategiesHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/applications", s.applicationsHandler).
		Methods(http.MethodGet, http.MethodPost)
	s.router.HandleFunc("/applications/{id}", s.applicationHandler).
		Methods(http.MethodGet, http.MethodDelete)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleError(w, http.StatusMethodNotAllowed, "Operation not allowed")
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) placeHandler(w http.ResponseWriter, r *http.Request) {
	var req PlaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, http.StatusBadRequest, "Cannot decode request: %s", err)
		return
	}
	if req.Infrastructure == nil || req.Application == nil {
		handleError(w, http.StatusBadRequest, "Both infrastructure and application are required")
		return
	}

	strategy := s.manager.Strategy()
	if req.Strategy != "" && req.Strategy != strategy.Name() {
		var err error
		if strategy, err = placement.Create(req.Strategy, s.scope); err != nil {
			handleError(w, http.StatusBadRequest, "%s", err)
			return
		}
	}

	var opts []placement.Option
	if req.StartHost != nil {
		opts = append(opts, placement.WithStartHost(*req.StartHost))
	}

	eval, err := deployment.Evaluate(strategy, req.Infrastructure, req.Application, s.manager.Audit(), opts...)
	if err != nil {
		handleError(w, http.StatusBadRequest, "%s", err)
		return
	}

	status := http.StatusOK
	if !eval.Accepted() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, eval)
}

func (s *Server) strategiesHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, placement.Names())
}

func (s *Server) applicationsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		// Returns all accepted applications
		writeJSON(w, http.StatusOK, s.manager.GetDeployments())
	case http.MethodPost:
		var app model.Application
		if err := json.NewDecoder(r.Body).Decode(&app); err != nil {
			handleError(w, http.StatusBadRequest, "Cannot decode application: %s", err)
			return
		}

		d, err := s.manager.AddApplication(r.Context(), &app)
		if err != nil {
			if rejected, ok := deployment.IsRejected(err); ok {
				writeJSON(w, http.StatusUnprocessableEntity, rejected.Evaluation)
				return
			}
			if errors.Cause(err) == deployment.ErrInvalidInput {
				handleError(w, http.StatusBadRequest, "%s", err)
				return
			}
			log.WithError(err).WithField("application", app.ID).Error("Cannot add application")
			handleError(w, http.StatusInternalServerError, "Cannot add application %s: %s", app.ID, err)
			return
		}

		writeJSON(w, http.StatusCreated, d)
	}
}

func (s *Server) applicationHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	// Fetch the application
	d, exists := s.manager.GetDeploy(id)
	if !exists {
		handleError(w, http.StatusNotFound, "Application %s not found", id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, d)
	case http.MethodDelete:
		if err := s.manager.DeleteApplication(r.Context(), id); err != nil {
			if errors.Cause(err) == deployment.ErrUnknownApplication {
				handleError(w, http.StatusNotFound, "Application %s not found", id)
				return
			}
			log.WithError(err).WithField("application", id).Error("Cannot delete application")
			handleError(w, http.StatusInternalServerError, "Cannot delete application %s: %s", id, err)
			return
		}

		writeJSON(w, http.StatusOK, newResponse("Application deleted successfully", ""))
	}
}

// StartHTTPInterface serves handler on port until quit is closed.
func StartHTTPInterface(handler http.Handler, port int, quit <-chan struct{}) {
	s := http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}

	go func() {
		<-quit

		log.Info("Stopping HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("Shutdown request error")
		}
	}()

	log.WithField("port", port).Info("Starting HTTP server")

	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("HTTP server failed")
	}

	log.Info("HTTP server stopped")
}
