// internal/handlers/wordset.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"

	"github.com/beaterboo/beaterboo/internal/models"
	"github.com/beaterboo/beaterboo/internal/repo"
	"github.com/beaterboo/beaterboo/internal/store"
	"github.com/beaterboo/beaterboo/internal/words"
)

// WordSetServer exposes the word-set repository over HTTP. Device identity
// travels exclusively in the X-Device-ID header; an absent header is an
// unrecognized device that owns nothing.
type WordSetServer struct {
	repo  *repo.Repository
	words *words.Generator
	log   *logrus.Logger
}

// NewWordSetServer wires the handlers over the repository and card generator.
func NewWordSetServer(r *repo.Repository, g *words.Generator, log *logrus.Logger) *WordSetServer {
	if log == nil {
		log = logrus.New()
	}
	return &WordSetServer{repo: r, words: g, log: log}
}

// Router builds the route table. OPTIONS preflights answer 204 with the CORS
// headers and no body.
func (s *WordSetServer) Router() http.Handler {
	router := httprouter.New()

	router.HandlerFunc(http.MethodGet, "/wordsets", s.ListWordSets)
	router.HandlerFunc(http.MethodPost, "/wordsets", s.SaveWordSet)
	router.HandlerFunc(http.MethodPut, "/wordsets", s.SaveWordSet)
	router.HandlerFunc(http.MethodPost, "/wordsets/generate", s.GenerateCards)
	router.HandlerFunc(http.MethodGet, "/wordsets/:id/permissions", s.WordSetPermissions)
	router.HandlerFunc(http.MethodDelete, "/wordsets/:id", s.DeleteWordSet)

	router.GlobalOPTIONS = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		w.WriteHeader(http.StatusNoContent)
	})

	return corsMiddleware(router)
}

// ListWordSets returns every known set. The repository degrades through its
// tiers, so this endpoint never fails outright.
func (s *WordSetServer) ListWordSets(w http.ResponseWriter, r *http.Request) {
	sets := s.repo.LoadAll(r.Context())
	writeJSON(w, http.StatusOK, sets)
}

// SaveWordSet creates or updates a set for the calling device. If the remote
// store is unreachable and offline writes are disabled, the stamped set is
// still returned with 202 so the client can proceed optimistically.
func (s *WordSetServer) SaveWordSet(w http.ResponseWriter, r *http.Request) {
	deviceID := r.Header.Get("X-Device-ID")

	var set models.WordSet
	if err := json.NewDecoder(r.Body).Decode(&set); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if set.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	saved, err := s.repo.Save(r.Context(), set, deviceID)
	if err != nil {
		s.log.WithError(err).WithField("set", saved.ID).Warn("word set not durably saved")
		writeJSON(w, http.StatusAccepted, saved)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// WordSetPermissions answers {"canDelete": bool} for the calling device.
// Unknown ids are 404; connectivity failures answer false rather than error.
func (s *WordSetServer) WordSetPermissions(w http.ResponseWriter, r *http.Request) {
	setID := httprouter.ParamsFromContext(r.Context()).ByName("id")
	deviceID := r.Header.Get("X-Device-ID")

	can, err := s.repo.CanDelete(r.Context(), setID, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "word set not found")
		return
	}
	if err != nil {
		s.log.WithError(err).WithField("set", setID).Warn("permission check degraded")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"canDelete": can})
}

// DeleteWordSet removes a set owned by the calling device. Ownership
// violations are 403, unknown ids 404, and connectivity failures 502
// (destructive operations fail closed).
func (s *WordSetServer) DeleteWordSet(w http.ResponseWriter, r *http.Request) {
	setID := httprouter.ParamsFromContext(r.Context()).ByName("id")
	deviceID := r.Header.Get("X-Device-ID")

	err := s.repo.Delete(r.Context(), setID, deviceID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	case errors.Is(err, store.ErrNotPermitted):
		writeError(w, http.StatusForbidden, "you do not have permission to delete this set")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "word set not found")
	default:
		s.log.WithError(err).WithField("set", setID).Warn("delete failed")
		writeError(w, http.StatusBadGateway, "word set storage unavailable")
	}
}

// GenerateCards produces card candidates for a topic. Provider failures are
// absorbed with the built-in fallback list, so this always returns cards.
func (s *WordSetServer) GenerateCards(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic        string   `json:"topic"`
		Category     string   `json:"category"`
		Count        int      `json:"count"`
		ExcludeWords []string `json:"excludeWords"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	cards := s.words.Cards(r.Context(), req.Topic, req.Category, req.Count, req.ExcludeWords)
	writeJSON(w, http.StatusOK, map[string]interface{}{"cards": cards})
}
