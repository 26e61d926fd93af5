package signal

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/HMasataka/sensorlink"
	"github.com/HMasataka/sensorlink/domain"
	"github.com/HMasataka/sensorlink/logging"
	"github.com/HMasataka/sensorlink/router"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// BrokerStatus reports whether the broker bridge is consuming.
type BrokerStatus interface {
	Active() bool
}

type HTTPOptions struct {
	Logger  *logging.Logger
	Broker  BrokerStatus
	Metrics http.Handler
}

type health struct {
	Status  string          `json:"status"`
	Clients int             `json:"clients"`
	Broker  string          `json:"broker"`
	Hub     domain.HubStats `json:"hub"`
}

// NewHTTPHandler mounts the WebSocket endpoint and the read-only HTTP API.
func NewHTTPHandler(srv *Server, hub domain.Hub, rt *router.Router, opts HTTPOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/ws", srv.Handle)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		broker := "inactive"
		if opts.Broker != nil && opts.Broker.Active() {
			broker = "active"
		}
		writeJSON(w, opts.Logger, http.StatusOK, health{
			Status:  "ok",
			Clients: hub.Count(),
			Broker:  broker,
			Hub:     hub.Stats(),
		})
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Get("/messages", func(w http.ResponseWriter, req *http.Request) {
		history, err := rt.History(req.Context())
		if err != nil {
			opts.Logger.Error("failed to load history", "error", err)
			writeJSON(w, opts.Logger, http.StatusInternalServerError, domain.ErrorReply{Error: "failed to load messages"})
			return
		}
		writeJSON(w, opts.Logger, http.StatusOK, history)
	})

	r.Get("/messages/{id}", func(w http.ResponseWriter, req *http.Request) {
		msg, err := rt.Message(req.Context(), chi.URLParam(req, "id"))
		switch {
		case errors.Is(err, sensorlink.ErrMessageNotFound):
			writeJSON(w, opts.Logger, http.StatusNotFound, domain.ErrorReply{Error: err.Error()})
		case err != nil:
			opts.Logger.Error("failed to load message", "error", err)
			writeJSON(w, opts.Logger, http.StatusInternalServerError, domain.ErrorReply{Error: "failed to load message"})
		default:
			writeJSON(w, opts.Logger, http.StatusOK, msg)
		}
	})

	return r
}

func writeJSON(w http.ResponseWriter, logger *logging.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write response", "error", err)
	}
}
