package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"lifesim/internal/apperr"
	"lifesim/internal/engine"
	"lifesim/internal/game"
	"lifesim/internal/story"
)

const maxSnapshotBytes = 8 << 20

type Server struct {
	log  *slog.Logger
	game *game.Service
	idem *idempotencyCache
	mux  *chi.Mux
}

func New(logger *slog.Logger, gameSvc *game.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		log:  logger,
		game: gameSvc,
		idem: newIdempotencyCache(1024),
		mux:  chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// The stream outlives the request timeout below.
	r.Get("/v1/games/{id}/ws", s.handleStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(s.idem.middleware)

		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		})

		r.Route("/v1", func(r chi.Router) {
			r.Get("/templates", s.handleTemplates)
			r.Post("/games", s.handleCreateGame)
			r.Get("/games", s.handleListGames)
			r.Post("/games/import", s.handleImport)

			r.Route("/games/{id}", func(r chi.Router) {
				r.Get("/", s.handleDashboard)
				r.Delete("/", s.handleDeleteGame)
				r.Post("/advance", s.handleAdvance)
				r.Post("/orders", s.handleOrder)
				r.Post("/transfers", s.handleTransfer)
				r.Post("/stats", s.handleStats)
				r.Post("/changes", s.handleChanges)
				r.Put("/retirement", s.handleRetirement)
				r.Get("/event", s.handleEvent)
				r.Post("/event/resolve", s.handleResolve)
				r.Get("/ledger", s.handleLedger)
				r.Post("/ledger", s.handleLedgerAdd)
				r.Get("/stocks/{symbol}", s.handleStock)
				r.Get("/snapshot", s.handleSnapshot)
			})
		})
	})
}

func (s *Server) handleTemplates(w http.ResponseWriter, _ *http.Request) {
	out := make([]map[string]string, 0)
	for _, name := range engine.TemplateNames() {
		t, err := engine.LookupTemplate(name)
		if err != nil {
			continue
		}
		out = append(out, map[string]string{"name": t.Name, "description": t.Description})
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": out, "default": engine.DefaultTemplate})
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var in game.NewGameInput
	if err := decodeOptionalJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.NewGame(r.Context(), in)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.List(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": out})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSnapshotBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(body) > maxSnapshotBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "snapshot too large")
		return
	}
	out, err := s.game.Import(r.Context(), body)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.Dashboard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	if err := s.game.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	in := game.AdvanceInput{Unit: game.UnitDay, Count: 1}
	if err := decodeOptionalJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.Advance(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	var in game.OrderInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.PlaceOrder(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var in game.TransferInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.Transfer(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var in game.StatsInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.UpdateStats(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	var in story.StateChanges
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.ApplyChanges(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRetirement(w http.ResponseWriter, r *http.Request) {
	var in game.RetirementInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.Update401k(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok, err := s.game.PendingEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"pending": false, "event": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": true, "event": ev})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Choice string `json:"choice"`
	}
	if err := decodeOptionalJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.ResolveEvent(r.Context(), chi.URLParam(r, "id"), in.Choice)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = v
	}
	out, err := s.game.Ledger(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (s *Server) handleLedgerAdd(w http.ResponseWriter, r *http.Request) {
	var in game.LedgerInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.AddLedgerEntry(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.StockQuote(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "symbol"))
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.game.Snapshot(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="lifesim-%s.json"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(snap)
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation),
		errors.Is(err, apperr.ErrInsufficientFunds),
		errors.Is(err, apperr.ErrInsufficientShares):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrGameNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperr.ErrEventPending),
		errors.Is(err, apperr.ErrNoPendingEvent),
		errors.Is(err, apperr.ErrGameExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, apperr.ErrInvalidState):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

// decodeOptionalJSON is decodeJSON that accepts an empty body.
func decodeOptionalJSON(r *http.Request, out any) error {
	if err := decodeJSON(r, out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
