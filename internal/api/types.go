package api

import (
	"github.com/MJE43/lightgrid/internal/engine"
	"github.com/MJE43/lightgrid/internal/layout"
	"github.com/MJE43/lightgrid/internal/puzzle"
	"github.com/MJE43/lightgrid/internal/scripting"
	"github.com/MJE43/lightgrid/internal/store"
	"github.com/MJE43/lightgrid/internal/tracer"
)

// EngineError represents a structured error response with context
type EngineError struct {
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e EngineError) Error() string {
	return e.Message
}

// Error types
const (
	// Input validation
	ErrTypeValidation  = "validation_error"
	ErrTypeOutOfBounds = "out_of_bounds"
	ErrTypeScript      = "script_error"

	// Sessions and layouts
	ErrTypeSessionNotFound = "session_not_found"
	ErrTypeSessionFinished = "session_finished"
	ErrTypeSourceNotFound  = "source_not_found"
	ErrTypeInvalidLayout   = "invalid_layout"
	ErrTypeGeneration      = "generation_failed"
	ErrTypeResultNotFound  = "result_not_found"

	// Access
	ErrTypeUnauthorized = "unauthorized"

	// System
	ErrTypeTimeout            = "timeout"
	ErrTypeInternal           = "internal_error"
	ErrTypeServiceUnavailable = "service_unavailable"
)

// ErrorCategory groups error types for monitoring
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryPuzzle     ErrorCategory = "puzzle"
	CategorySecurity   ErrorCategory = "security"
	CategorySystem     ErrorCategory = "system"
	CategoryTimeout    ErrorCategory = "timeout"
)

// GetErrorCategory returns the category for an error type
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeValidation, ErrTypeOutOfBounds, ErrTypeScript:
		return CategoryValidation
	case ErrTypeSessionNotFound, ErrTypeSessionFinished, ErrTypeSourceNotFound,
		ErrTypeInvalidLayout, ErrTypeGeneration, ErrTypeResultNotFound:
		return CategoryPuzzle
	case ErrTypeUnauthorized:
		return CategorySecurity
	case ErrTypeTimeout:
		return CategoryTimeout
	default:
		return CategorySystem
	}
}

// CreateSessionRequest starts a new puzzle session
type CreateSessionRequest struct {
	Source     string `json:"source,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Level      string `json:"level,omitempty"`
	ClientSeed string `json:"client_seed,omitempty"`
	Player     string `json:"player,omitempty"`
}

// RotateRequest names the mirror to turn
type RotateRequest struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

// SessionResponse wraps a session view
type SessionResponse struct {
	Session       puzzle.View `json:"session"`
	EngineVersion string      `json:"engine_version"`
}

// AutoplayRequest runs a bot script against a session
type AutoplayRequest struct {
	// Script defines move(state). Empty selects the built-in path walker.
	Script     string `json:"script,omitempty"`
	MoveBudget int    `json:"move_budget,omitempty"`
}

// AutoplayResponse reports how the bot run ended
type AutoplayResponse struct {
	Report        scripting.Report `json:"report"`
	EngineVersion string           `json:"engine_version"`
}

// VerifyRequest regenerates a layout from revealed seeds
type VerifyRequest struct {
	Source     string       `json:"source,omitempty"`
	Difficulty string       `json:"difficulty,omitempty"`
	Level      string       `json:"level,omitempty"`
	Seeds      engine.Seeds `json:"seeds"`
	Nonce      uint64       `json:"nonce"`
	// ExpectedHash is the server seed hash shown while the session was
	// playing. Optional.
	ExpectedHash string `json:"expected_hash,omitempty"`
}

// VerifyResponse is the regenerated layout and its initial trace
type VerifyResponse struct {
	ServerSeedHash string        `json:"server_seed_hash"`
	HashMatches    *bool         `json:"hash_matches,omitempty"`
	Difficulty     string        `json:"difficulty"`
	Level          string        `json:"level,omitempty"`
	Board          puzzle.Board  `json:"board"`
	Trace          tracer.Result `json:"trace"`
	Render         string        `json:"render"`
	EngineVersion  string        `json:"engine_version"`
	Echo           VerifyRequest `json:"echo"`
}

// GamesResponse lists layout sources and difficulties
type GamesResponse struct {
	Sources       []layout.Spec       `json:"sources"`
	Difficulties  []layout.Difficulty `json:"difficulties"`
	EngineVersion string              `json:"engine_version"`
}

// LevelsResponse lists hand-made levels
type LevelsResponse struct {
	Levels        []layout.Level `json:"levels"`
	EngineVersion string         `json:"engine_version"`
}

// LeaderboardResponse is one page of ranked results
type LeaderboardResponse struct {
	*store.LeaderboardPage
	EngineVersion string `json:"engine_version"`
}

// ClearLeaderboardResponse reports how many results were removed
type ClearLeaderboardResponse struct {
	Deleted       int64  `json:"deleted"`
	EngineVersion string `json:"engine_version"`
}

// ResultResponse wraps a stored result
type ResultResponse struct {
	Result        *puzzle.Result `json:"result"`
	EngineVersion string         `json:"engine_version"`
}

// wsInbound is a command sent over the session socket
type wsInbound struct {
	Type    string         `json:"type"`
	Payload *RotateRequest `json:"payload,omitempty"`
}

// wsOutbound is pushed to the client on every change
type wsOutbound struct {
	Type    string       `json:"type"`
	Session *puzzle.View `json:"session,omitempty"`
	Error   *EngineError `json:"error,omitempty"`
}
