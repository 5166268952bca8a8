package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/CTAG07/markovchain/pkg/markov"
	"github.com/CTAG07/markovchain/pkg/store"
)

const (
	// maxGenerateLength caps the length query parameter.
	maxGenerateLength = 10000
	maxBodyBytes      = 64 << 20
)

// MarkovAPI holds the dependencies for the Markov model API handlers.
type MarkovAPI struct {
	store         *store.Store
	defaultOrder  int
	defaultLength int
	mu            sync.Mutex // serializes create, import and delete
	logger        *slog.Logger
}

// NewMarkovAPI creates a new instance of the MarkovAPI.
func NewMarkovAPI(s *store.Store, config *Config, logger *slog.Logger) *MarkovAPI {
	return &MarkovAPI{
		store:         s,
		defaultOrder:  config.DefaultOrder,
		defaultLength: config.DefaultLength,
		logger:        logger,
	}
}

// RegisterRoutes sets up the routing for all /api/markov endpoints.
func (m *MarkovAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/markov/models", m.handleListAndCreateModels)
	mux.HandleFunc("/api/markov/models/", m.handleModelByName)
	mux.HandleFunc("/api/markov/import", m.handleImport)
}

type CreateModelRequest struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

type TrainResponse struct {
	Model  store.ModelInfo `json:"model"`
	Tokens int             `json:"tokens"`
}

type GenerateResponse struct {
	Text   string   `json:"text"`
	Tokens []string `json:"tokens"`
}

// handleListAndCreateModels handles GET for listing and POST for creating models.
func (m *MarkovAPI) handleListAndCreateModels(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		models, err := m.store.List(r.Context())
		if err != nil {
			m.logger.Error("Failed to list models", "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve models: %v", err))
			return
		}
		respondWithJSON(w, http.StatusOK, models)

	case http.MethodPost:
		var req CreateModelRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
			return
		}
		if req.Order == 0 {
			req.Order = m.defaultOrder
		}
		if req.Name == "" || req.Order < 1 {
			respondWithError(w, http.StatusBadRequest, "Model name and a positive order are required")
			return
		}

		m.mu.Lock()
		defer m.mu.Unlock()

		if _, err := m.store.Info(r.Context(), req.Name); err == nil {
			respondWithError(w, http.StatusConflict, fmt.Sprintf("Model '%s' already exists", req.Name))
			return
		} else if !errors.Is(err, store.ErrNotFound) {
			m.logger.Error("Failed to check for existing model", "name", req.Name, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
			return
		}

		chain, err := markov.NewChecked(req.Order, markov.WithLogger(m.logger))
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		info, err := m.store.Put(r.Context(), req.Name, chain)
		if err != nil {
			m.logger.Error("Failed to insert new model", "name", req.Name, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to create model: %v", err))
			return
		}
		respondWithJSON(w, http.StatusCreated, info)

	default:
		w.Header().Set("Allow", "GET, POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleModelByName routes actions for a specific model, e.g., train, generate, export, delete.
func (m *MarkovAPI) handleModelByName(w http.ResponseWriter, r *http.Request) {

	path := strings.TrimPrefix(r.URL.Path, "/api/markov/models/")
	parts := strings.Split(path, "/")
	modelName := parts[0]

	if modelName == "" || len(parts) > 2 {
		respondWithError(w, http.StatusBadRequest, "Model name not specified")
		return
	}

	if len(parts) == 1 { // Path is just /api/markov/models/{name}
		if r.Method != http.MethodDelete {
			w.Header().Set("Allow", "DELETE")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		m.mu.Lock()
		err := m.store.Remove(r.Context(), modelName)
		m.mu.Unlock()
		if err != nil {
			m.respondWithStoreError(w, modelName, "remove", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	switch action := parts[1]; action {
	case "train":
		m.handleTrain(w, r, modelName)
	case "generate":
		m.handleGenerate(w, r, modelName)
	case "stream":
		m.handleStream(w, r, modelName)
	case "stats":
		m.handleStats(w, r, modelName)
	case "export":
		m.handleExport(w, r, modelName)
	default:
		respondWithError(w, http.StatusNotFound, "Action not found")
	}
}

// handleTrain trains an existing model on the request body.
func (m *MarkovAPI) handleTrain(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var tokens int
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	info, err := m.store.Update(r.Context(), name, 0, func(chain *markov.Chain) error {
		var err error
		tokens, err = chain.TrainReader(body, nil)
		return err
	})
	if err != nil {
		m.respondWithStoreError(w, name, "train", err)
		return
	}
	respondWithJSON(w, http.StatusOK, TrainResponse{Model: info, Tokens: tokens})
}

// handleGenerate samples text from a model.
func (m *MarkovAPI) handleGenerate(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	length, ok := m.parseLength(w, r)
	if !ok {
		return
	}

	chain, err := m.store.Get(r.Context(), name)
	if err != nil {
		m.respondWithStoreError(w, name, "load", err)
		return
	}

	var tokens []string
	if seed := markov.Fields(r.URL.Query().Get("seed")); len(seed) > 0 {
		if len(seed) != chain.Order() {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("seed must have exactly %d tokens", chain.Order()))
			return
		}
		tokens, ok = chain.GenerateFrom(seed, length)
	} else {
		tokens, ok = chain.GenerateTokens(length)
	}
	if !ok {
		respondWithError(w, http.StatusUnprocessableEntity, "no data")
		return
	}
	respondWithJSON(w, http.StatusOK, GenerateResponse{Text: strings.Join(tokens, " "), Tokens: tokens})
}

// handleStream writes generated tokens as plain text, flushing after each
// one, until the walk ends or the client goes away.
func (m *MarkovAPI) handleStream(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	length, ok := m.parseLength(w, r)
	if !ok {
		return
	}

	chain, err := m.store.Get(r.Context(), name)
	if err != nil {
		m.respondWithStoreError(w, name, "load", err)
		return
	}

	var seed []string
	if fields := markov.Fields(r.URL.Query().Get("seed")); len(fields) > 0 {
		seed = fields
	}
	tokens, ok := chain.GenerateStream(r.Context(), seed, length)
	if !ok {
		if chain.IsEmpty() {
			respondWithError(w, http.StatusUnprocessableEntity, "no data")
		} else {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("seed must have exactly %d tokens", chain.Order()))
		}
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	flusher, _ := w.(http.Flusher)
	sep := ""
	for token := range tokens {
		if _, err = fmt.Fprint(w, sep, token); err != nil {
			m.logger.Debug("Stream client went away", "name", name, "error", err)
			return
		}
		sep = " "
		if flusher != nil {
			flusher.Flush()
		}
	}
	_, _ = fmt.Fprintln(w)
}

// handleStats reports the statistics of a model.
func (m *MarkovAPI) handleStats(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	info, err := m.store.Info(r.Context(), name)
	if err != nil {
		m.respondWithStoreError(w, name, "load", err)
		return
	}
	chain, err := m.store.Get(r.Context(), name)
	if err != nil {
		m.respondWithStoreError(w, name, "load", err)
		return
	}
	respondWithJSON(w, http.StatusOK, ModelStats{ModelInfo: info, Stats: chain.Stats()})
}

// handleExport writes a model in the binary format, or as JSON with ?format=json.
func (m *MarkovAPI) handleExport(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	chain, err := m.store.Get(r.Context(), name)
	if err != nil {
		m.respondWithStoreError(w, name, "load", err)
		return
	}

	var buf bytes.Buffer
	ext, contentType := formatMsgpack, "application/msgpack"
	if r.URL.Query().Get("format") == formatJSON {
		ext, contentType = formatJSON, "application/json"
		err = chain.ExportJSON(&buf)
	} else {
		err = chain.Save(&buf)
	}
	if err != nil {
		m.logger.Error("Failed to export model", "name", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Export failed: %v", err))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.%s\"", name, ext))
	_, _ = buf.WriteTo(w)
}

// handleImport stores a model uploaded in the binary format, or as JSON
// when the request has a JSON content type.
func (m *MarkovAPI) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		respondWithError(w, http.StatusBadRequest, "Model name not specified")
		return
	}

	var (
		chain *markov.Chain
		err   error
	)
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		chain, err = markov.ImportJSON(body, markov.WithLogger(m.logger))
	} else {
		chain, err = markov.Load(body, markov.WithLogger(m.logger))
	}
	if err != nil {
		m.logger.Warn("Rejected model import", "name", name, "error", err)
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Import failed: %v", err))
		return
	}

	m.mu.Lock()
	info, err := m.store.Put(r.Context(), name, chain)
	m.mu.Unlock()
	if err != nil {
		m.logger.Error("Failed to import model", "name", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Import failed: %v", err))
		return
	}
	respondWithJSON(w, http.StatusCreated, info)
}

// parseLength reads the length query parameter, writing a 400 response and
// returning false when it is invalid.
func (m *MarkovAPI) parseLength(w http.ResponseWriter, r *http.Request) (int, bool) {
	s := r.URL.Query().Get("length")
	if s == "" {
		return m.defaultLength, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > maxGenerateLength {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("length must be an integer between 0 and %d", maxGenerateLength))
		return 0, false
	}
	return n, true
}

// respondWithStoreError maps store and model errors to HTTP statuses.
func (m *MarkovAPI) respondWithStoreError(w http.ResponseWriter, name, op string, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Model not found")
	case errors.As(err, &maxErr):
		respondWithError(w, http.StatusRequestEntityTooLarge, "Request body too large")
	default:
		m.logger.Error("Model operation failed", "name", name, "op", op, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to %s model: %v", op, err))
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		err := json.NewEncoder(w).Encode(payload)
		if err != nil {
			fmt.Printf("ERROR: Failed to encode JSON response: %v\n", err)
		}
	}
}
