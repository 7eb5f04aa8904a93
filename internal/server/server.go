// Package server serves predictions from an exported model over HTTP.
//
// Routes:
//
//	GET  /healthz      liveness
//	GET  /v1/model     architecture, signature and statistics of the loaded model
//	POST /v1/predict   PNG body -> {"class", "confidence", "scores"}
//	POST /v1/reload    reload the newest bundle from the export directory
//	GET  /v1/runs      training runs, when a registry is attached
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sasha-s/go-deadlock"

	"github.com/brice-v/digitnet/internal/export"
	"github.com/brice-v/digitnet/internal/model"
	"github.com/brice-v/digitnet/internal/registry"
	"github.com/brice-v/digitnet/internal/samples"
	"github.com/brice-v/digitnet/internal/serialization"
	"github.com/brice-v/digitnet/internal/tensor"
)

// MaxImageBytes bounds the size of a prediction request body.
const MaxImageBytes = 8 << 20

// loaded pairs a bundle with the lock serializing its forward passes;
// layers keep per-call state. Requests queue on mu for as long as the
// backlog takes, so it is a plain mutex without deadlock timeouts.
type loaded struct {
	bundle *export.Bundle
	mu     sync.Mutex
}

// Server answers prediction requests.
type Server struct {
	exportDir string
	registry  *registry.Registry
	logger    *log.Logger

	mu    deadlock.RWMutex // guards model
	model *loaded

	router *mux.Router
}

// Options configures New.
type Options struct {
	Registry *registry.Registry // optional, enables GET /v1/runs
	Logger   *log.Logger        // defaults to log.Default()
}

// New loads the bundle in exportDir and builds the router.
func New(exportDir string, opts Options) (*Server, error) {
	s := &Server{exportDir: exportDir, registry: opts.Registry, logger: opts.Logger}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}

	s.router = mux.NewRouter()
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/v1/model", s.handleModel).Methods("GET")
	s.router.HandleFunc("/v1/predict", s.handlePredict).Methods("POST")
	s.router.HandleFunc("/v1/reload", s.handleReload).Methods("POST")
	s.router.HandleFunc("/v1/runs", s.handleRuns).Methods("GET")
	s.router.Use(s.requestID)
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Reload loads the newest bundle and swaps it in. In-flight requests
// finish on the previous model.
func (s *Server) Reload() error {
	dir, err := export.Resolve(s.exportDir)
	if err != nil {
		return err
	}
	b, err := export.Load(dir)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.model = &loaded{bundle: b}
	s.mu.Unlock()
	s.logger.Printf("[server] loaded %s model from %s (run %s)", b.Header.Architecture, b.Dir, b.Header.RunID)
	return nil
}

func (s *Server) current() *loaded {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Printf("[server] %s %s %s (%v)", id, r.Method, r.URL.Path, time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]string{"status": "ok"})
}

// ModelInfo is the body of GET /v1/model.
type ModelInfo struct {
	Architecture string                   `json:"architecture"`
	RunID        string                   `json:"run_id"`
	CreatedAt    time.Time                `json:"created_at"`
	Dir          string                   `json:"dir"`
	Signature    *serialization.Signature `json:"signature"`
	Statistics   *export.Statistics       `json:"statistics"`
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	b := s.current().bundle
	jsonResponse(w, ModelInfo{
		Architecture: b.Header.Architecture,
		RunID:        b.Header.RunID,
		CreatedAt:    b.Header.CreatedAt,
		Dir:          b.Dir,
		Signature:    b.Header.Signature,
		Statistics:   b.Statistics,
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, MaxImageBytes+1))
	if err != nil {
		http.Error(w, fmt.Sprintf("read body: %v", err), http.StatusBadRequest)
		return
	}
	if len(data) > MaxImageBytes {
		http.Error(w, "image too large", http.StatusRequestEntityTooLarge)
		return
	}

	sample, err := samples.Decode(data)
	if errors.Is(err, samples.ErrNotPNG) {
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	pred, err := s.predict(sample.Vector)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, pred)
}

func (s *Server) predict(vec []float32) (model.Prediction, error) {
	m := s.current()
	x, err := tensor.New(tensor.Shape{1, model.Features}, vec)
	if err != nil {
		return model.Prediction{}, err
	}

	m.mu.Lock()
	probs, err := m.bundle.Run(model.OutputName, map[string]*tensor.Tensor{model.InputName: x})
	m.mu.Unlock()
	if err != nil {
		return model.Prediction{}, err
	}

	scores := append([]float32(nil), probs.Row(0)...)
	class := tensor.Argmax(scores)
	return model.Prediction{Class: class, Confidence: scores[class], Scores: scores}, nil
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.Reload(); err != nil {
		s.logger.Printf("[server] reload failed: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.handleModel(w, r)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		http.Error(w, "no run registry configured", http.StatusNotFound)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := s.registry.List(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []registry.Run{}
	}
	jsonResponse(w, runs)
}

func jsonResponse(w http.ResponseWriter, x interface{}) {
	bytes, err := json.Marshal(x)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(bytes)
}
