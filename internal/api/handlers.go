package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MJE43/lightgrid/internal/engine"
	"github.com/MJE43/lightgrid/internal/grid"
	"github.com/MJE43/lightgrid/internal/layout"
	"github.com/MJE43/lightgrid/internal/puzzle"
	"github.com/MJE43/lightgrid/internal/scripting"
	"github.com/MJE43/lightgrid/internal/store"
	"github.com/MJE43/lightgrid/internal/tracer"
)

const maxBodyBytes = 1 << 20

// decodeBody reads a JSON body into dst. An empty body leaves dst alone when
// optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.errorHandler.HandleValidationError(w, r, "id", "session id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) unavailable(w http.ResponseWriter, r *http.Request, what string) {
	engineErr := NewError(ErrTypeServiceUnavailable, what+" is not configured").
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("path", r.URL.Path).
		Build()
	s.errorHandler.logError(r, engineErr, http.StatusServiceUnavailable)
	s.errorHandler.writeErrorResponse(w, http.StatusServiceUnavailable, engineErr)
}

func (s *Server) logSession(r *http.Request, action string, v puzzle.View) {
	s.securityLogger.LogSessionOperation(
		middleware.GetReqID(r.Context()),
		action,
		v.ID.String(),
		v.ServerSeedHash,
		v.ClientSeed,
		v.Nonce,
		v.State.String(),
	)
}

// handleListGames returns the layout sources and difficulty table
func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, GamesResponse{
		Sources:       s.sources(),
		Difficulties:  layout.Difficulties,
		EngineVersion: EngineVersion,
	})
}

// handleListLevels returns the hand-made levels, optionally by difficulty
func (s *Server) handleListLevels(w http.ResponseWriter, r *http.Request) {
	difficulty := r.URL.Query().Get("difficulty")
	if err := validateDifficulty(difficulty); err != nil {
		s.errorHandler.HandleValidationError(w, r, err.Field, err.Message)
		return
	}

	levels := []layout.Level{}
	if src, ok := s.lookup("levels"); ok {
		if ls, ok := src.(*layout.LevelSource); ok {
			levels = ls.Pack().Levels(difficulty)
		}
	}
	s.writeJSON(w, http.StatusOK, LevelsResponse{Levels: levels, EngineVersion: EngineVersion})
}

// handleCreateSession starts a session and its countdown
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON: "+err.Error())
		return
	}
	if err := ValidateCreateSessionRequest(&req); err != nil {
		s.errorHandler.HandleValidationError(w, r, err.Field, err.Message)
		return
	}

	v, err := s.manager.Create(r.Context(), puzzle.CreateRequest{
		Source:     req.Source,
		Difficulty: req.Difficulty,
		Level:      req.Level,
		ClientSeed: req.ClientSeed,
		Player:     req.Player,
	})
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	s.logSession(r, "create", v)
	s.writeJSON(w, http.StatusCreated, SessionResponse{Session: v, EngineVersion: EngineVersion})
}

// handleGetSession returns the current view of a session
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	v, err := s.manager.Get(id)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, SessionResponse{Session: v, EngineVersion: EngineVersion})
}

// handleRotate turns one mirror
func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	var req RotateRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON: "+err.Error())
		return
	}
	if err := ValidateRotateRequest(&req); err != nil {
		s.errorHandler.HandleValidationError(w, r, err.Field, err.Message)
		return
	}

	v, err := s.manager.Rotate(r.Context(), id, grid.P(*req.X, *req.Y))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	if v.State.Finished() {
		s.logSession(r, "finish", v)
	}
	s.writeJSON(w, http.StatusOK, SessionResponse{Session: v, EngineVersion: EngineVersion})
}

// handleExpire ends a playing session as lost
func (s *Server) handleExpire(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	v, err := s.manager.Expire(r.Context(), id)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.logSession(r, "expire", v)
	s.writeJSON(w, http.StatusOK, SessionResponse{Session: v, EngineVersion: EngineVersion})
}

// handleReset replaces a session with a fresh layout under a new ID
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	v, err := s.manager.Reset(r.Context(), id)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.logSession(r, "reset", v)
	s.writeJSON(w, http.StatusCreated, SessionResponse{Session: v, EngineVersion: EngineVersion})
}

// managerMover applies bot moves to one managed session
type managerMover struct {
	manager *puzzle.Manager
	id      uuid.UUID
}

func (m managerMover) Rotate(ctx context.Context, p grid.Position) (puzzle.View, error) {
	return m.manager.Rotate(ctx, m.id, p)
}

// handleAutoplay lets a script play the session until it finishes or yields
func (s *Server) handleAutoplay(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	var req AutoplayRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON: "+err.Error())
		return
	}
	if err := ValidateAutoplayRequest(&req); err != nil {
		s.errorHandler.HandleValidationError(w, r, err.Field, err.Message)
		return
	}

	v, err := s.manager.Get(id)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	script := req.Script
	if script == "" {
		script = scripting.PathWalker
	}
	budget := req.MoveBudget
	if budget == 0 {
		budget = s.autoplayBudget
	}
	bot, err := scripting.NewBot(script, scripting.BotOptions{MoveBudget: budget})
	if err != nil {
		s.errorHandler.HandleValidationError(w, r, "script", err.Error())
		return
	}

	rep, err := bot.Run(r.Context(), v, managerMover{manager: s.manager, id: id})
	if err != nil {
		if status, _ := classify(err); status == http.StatusInternalServerError {
			s.errorHandler.HandleValidationError(w, r, "script", err.Error())
			return
		}
		s.errorHandler.HandleError(w, r, err)
		return
	}

	s.securityLogger.LogAuditEvent(
		middleware.GetReqID(r.Context()),
		"autoplay",
		"session:"+id.String(),
		string(rep.Reason),
		map[string]interface{}{
			"moves":  rep.Moves,
			"state":  rep.Final.State.String(),
			"custom": req.Script != "",
		},
	)
	s.writeJSON(w, http.StatusOK, AutoplayResponse{Report: rep, EngineVersion: EngineVersion})
}

// handleVerify regenerates a layout from revealed seeds and traces it
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON: "+err.Error())
		return
	}
	if err := ValidateVerifyRequest(&req); err != nil {
		s.errorHandler.HandleValidationError(w, r, err.Field, err.Message)
		return
	}

	sourceID := req.Source
	if sourceID == "" {
		sourceID = puzzle.DefaultSource
	}
	src, ok := s.lookup(sourceID)
	if !ok {
		s.errorHandler.HandleError(w, r, layout.ErrSourceNotFound)
		return
	}

	l, err := src.Generate(req.Seeds, req.Nonce, layout.Params{Difficulty: req.Difficulty, Level: req.Level})
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	res, err := tracer.TraceGrid(l.Grid)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	resp := VerifyResponse{
		ServerSeedHash: engine.HashSeed(req.Seeds.Server),
		Difficulty:     l.Difficulty.Name,
		Level:          l.Level,
		Board:          puzzle.BoardOf(l.Grid),
		Trace:          res,
		Render:         layout.Render(l.Grid, res.Path),
		EngineVersion:  EngineVersion,
		Echo:           req,
	}
	if req.ExpectedHash != "" {
		matches := req.ExpectedHash == resp.ServerSeedHash
		resp.HashMatches = &matches
	}

	s.securityLogger.LogVerifyOperation(middleware.GetReqID(r.Context()), sourceID, req.Seeds, req.Nonce, res.Outcome.String())
	s.writeJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, key string) (int, *FieldError) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, invalid(key, "must be a non-negative integer")
	}
	return v, nil
}

// handleLeaderboard returns one page of won sessions, best first
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.unavailable(w, r, "Result store")
		return
	}
	q := r.URL.Query()
	query := store.LeaderboardQuery{
		Difficulty: q.Get("difficulty"),
		Source:     q.Get("source"),
		Level:      q.Get("level"),
	}
	var ferr *FieldError
	if query.Page, ferr = queryInt(r, "page"); ferr != nil {
		s.errorHandler.HandleValidationError(w, r, ferr.Field, ferr.Message)
		return
	}
	if query.PerPage, ferr = queryInt(r, "per_page"); ferr != nil {
		s.errorHandler.HandleValidationError(w, r, ferr.Field, ferr.Message)
		return
	}

	page, err := s.db.Leaderboard(r.Context(), query)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, LeaderboardResponse{LeaderboardPage: page, EngineVersion: EngineVersion})
}

// handleClearLeaderboard deletes every stored result. Admin only.
func (s *Server) handleClearLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.unavailable(w, r, "Result store")
		return
	}
	n, err := s.db.ClearLeaderboard(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.securityLogger.LogAuditEvent(
		middleware.GetReqID(r.Context()),
		"clear_leaderboard",
		"results",
		"success",
		map[string]interface{}{"deleted": n},
	)
	s.writeJSON(w, http.StatusOK, ClearLeaderboardResponse{Deleted: n, EngineVersion: EngineVersion})
}

// handleGetResult returns a stored result, including its revealed seed
func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.unavailable(w, r, "Result store")
		return
	}
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	res, err := s.db.GetResult(r.Context(), id)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ResultResponse{Result: res, EngineVersion: EngineVersion})
}
