package main

import (
	"net/http"
	"slices"

	"github.com/AdamBeresnev/darts-bracket/internal/bracket"
	"github.com/AdamBeresnev/darts-bracket/internal/httputil"
	"github.com/AdamBeresnev/darts-bracket/internal/middleware"
	"github.com/AdamBeresnev/darts-bracket/internal/notify"
	"github.com/AdamBeresnev/darts-bracket/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type handlers struct {
	svc *service.Services
	hub *notify.Hub
}

func newRouter(svc *service.Services, hub *notify.Hub, auth *middleware.Authenticator, registry *prometheus.Registry, origins []string) http.Handler {
	h := &handlers{svc: svc, hub: hub}
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Get("/ws/tournaments/{id}", h.tournamentSocket)

	r.Group(func(r chi.Router) {
		r.Use(auth.LoadActor)

		r.Get("/tournaments", h.listTournaments)
		r.Get("/tournaments/{id}", h.getTournament)
		r.Get("/matches/{id}", h.getMatch)
		r.Get("/dartboards", h.listBoards)
		r.Get("/players", h.listPlayers)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Post("/players", h.createPlayer)

			r.Post("/tournaments", h.createTournament)
			r.Post("/tournaments/{id}/registration", h.openRegistration)
			r.Post("/tournaments/{id}/entries", h.register)
			r.Post("/tournaments/{id}/teams/draw", h.drawTeams)
			r.Post("/tournaments/{id}/bracket", h.generateBracket)

			r.Post("/matches/{id}/start", h.startMatch)
			r.Post("/matches/{id}/report", h.reportResult)
			r.Post("/matches/{id}/override", h.overrideResult)
			r.Post("/matches/{id}/on-my-way", h.markOnMyWay)
			r.Post("/matches/{id}/arrived", h.markArrived)
			r.Post("/matches/{id}/board", h.assignBoard)
			r.Delete("/matches/{id}/board", h.releaseBoard)

			r.Post("/dartboards", h.createBoard)
			r.Delete("/dartboards/{id}", h.deleteBoard)
		})
	})

	return r
}

// originChecker accepts websocket upgrades from the configured origins.
func originChecker(origins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "Invalid ID", err)
		return uuid.Nil, false
	}
	return id, true
}

func actor(r *http.Request) bracket.Actor {
	return middleware.GetActor(r.Context())
}

func (h *handlers) tournamentSocket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	h.hub.ServeWS(w, r, notify.TournamentRoom(id))
}

func (h *handlers) listTournaments(w http.ResponseWriter, r *http.Request) {
	tournaments, err := h.svc.Tournaments.ListTournaments(r.Context())
	if err != nil {
		httputil.InternalServerError(w, "Failed to list tournaments", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tournaments)
}

func (h *handlers) getTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	data, err := h.svc.Tournaments.GetTournamentView(r.Context(), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to get tournament", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, data)
}

func (h *handlers) createTournament(w http.ResponseWriter, r *http.Request) {
	var in service.TournamentInput
	if err := httputil.ReadJSON(r, &in); err != nil {
		httputil.BadRequest(w, "Invalid tournament", err)
		return
	}
	t, err := h.svc.Tournaments.CreateTournament(r.Context(), actor(r), in)
	if err != nil {
		httputil.ServiceError(w, "Failed to create tournament", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, t)
}

func (h *handlers) openRegistration(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := h.svc.Tournaments.OpenRegistration(r.Context(), actor(r), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to open registration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in service.EntryInput
	if err := httputil.ReadJSON(r, &in); err != nil {
		httputil.BadRequest(w, "Invalid entry", err)
		return
	}
	entry, err := h.svc.Entries.Register(r.Context(), actor(r), id, in)
	if err != nil {
		httputil.ServiceError(w, "Failed to register", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, entry)
}

func (h *handlers) drawTeams(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	teams, err := h.svc.Entries.DrawTeams(r.Context(), actor(r), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to draw teams", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, teams)
}

func (h *handlers) generateBracket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	data, err := h.svc.Brackets.GenerateBracket(r.Context(), actor(r), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to generate bracket", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, data)
}

func (h *handlers) getMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	data, err := h.svc.Matches.GetMatch(r.Context(), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to get match", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, data)
}

func (h *handlers) startMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	data, err := h.svc.Matches.StartMatch(r.Context(), actor(r), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to start match", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, data)
}

func (h *handlers) reportResult(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in struct {
		ClaimsWin *bool `json:"claims_win"`
	}
	if err := httputil.ReadJSON(r, &in); err != nil || in.ClaimsWin == nil {
		httputil.BadRequest(w, "claims_win is required", err)
		return
	}
	m, err := h.svc.Matches.ReportResult(r.Context(), actor(r), id, *in.ClaimsWin)
	if err != nil {
		httputil.ServiceError(w, "Failed to report result", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *handlers) overrideResult(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in struct {
		WinnerID uuid.UUID `json:"winner_id"`
	}
	if err := httputil.ReadJSON(r, &in); err != nil {
		httputil.BadRequest(w, "Invalid winner", err)
		return
	}
	m, err := h.svc.Matches.OverrideResult(r.Context(), actor(r), id, in.WinnerID)
	if err != nil {
		httputil.ServiceError(w, "Failed to override result", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *handlers) markOnMyWay(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	data, err := h.svc.Matches.MarkOnMyWay(r.Context(), actor(r), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to mark on my way", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, data)
}

func (h *handlers) markArrived(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	data, err := h.svc.Matches.MarkArrived(r.Context(), actor(r), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to mark arrival", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, data)
}

func (h *handlers) assignBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in struct {
		DartboardID uuid.UUID `json:"dartboard_id"`
	}
	if err := httputil.ReadJSON(r, &in); err != nil {
		httputil.BadRequest(w, "Invalid dartboard", err)
		return
	}
	m, err := h.svc.Boards.Assign(r.Context(), actor(r), id, in.DartboardID)
	if err != nil {
		httputil.ServiceError(w, "Failed to assign board", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *handlers) releaseBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := h.svc.Boards.Release(r.Context(), actor(r), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to release board", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *handlers) listBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := h.svc.Boards.ListBoards(r.Context(), r.URL.Query().Get("available") == "true")
	if err != nil {
		httputil.InternalServerError(w, "Failed to list boards", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, boards)
}

func (h *handlers) createBoard(w http.ResponseWriter, r *http.Request) {
	var in service.BoardInput
	if err := httputil.ReadJSON(r, &in); err != nil {
		httputil.BadRequest(w, "Invalid dartboard", err)
		return
	}
	board, err := h.svc.Boards.CreateBoard(r.Context(), actor(r), in)
	if err != nil {
		httputil.ServiceError(w, "Failed to create board", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, board)
}

func (h *handlers) deleteBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Boards.DeleteBoard(r.Context(), actor(r), id); err != nil {
		httputil.ServiceError(w, "Failed to delete board", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.svc.Players.ListPlayers(r.Context())
	if err != nil {
		httputil.InternalServerError(w, "Failed to list players", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, players)
}

func (h *handlers) createPlayer(w http.ResponseWriter, r *http.Request) {
	var in service.PlayerInput
	if err := httputil.ReadJSON(r, &in); err != nil {
		httputil.BadRequest(w, "Invalid player", err)
		return
	}
	player, err := h.svc.Players.CreatePlayer(r.Context(), actor(r), in)
	if err != nil {
		httputil.ServiceError(w, "Failed to create player", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, player)
}
