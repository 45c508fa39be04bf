package api

import (
	"fmt"
	"strings"

	"github.com/MJE43/lightgrid/internal/layout"
)

const (
	maxSeedLength   = 256
	maxPlayerLength = 64
	maxScriptBytes  = 64 << 10
	maxMoveBudget   = 10_000
)

// FieldError is a validation failure on one request field
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *FieldError {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func validateDifficulty(name string) *FieldError {
	if name == "" {
		return nil
	}
	if _, err := layout.DifficultyByName(name); err != nil {
		return invalid("difficulty", "must be one of: %s", strings.Join(layout.DifficultyNames(), ", "))
	}
	return nil
}

// ValidateCreateSessionRequest checks a session request before any layout is
// generated
func ValidateCreateSessionRequest(req *CreateSessionRequest) *FieldError {
	if err := validateDifficulty(req.Difficulty); err != nil {
		return err
	}
	if len(req.ClientSeed) > maxSeedLength {
		return invalid("client_seed", "too long (max %d bytes)", maxSeedLength)
	}
	if len(req.Player) > maxPlayerLength {
		return invalid("player", "too long (max %d bytes)", maxPlayerLength)
	}
	return nil
}

// ValidateRotateRequest requires both coordinates
func ValidateRotateRequest(req *RotateRequest) *FieldError {
	if req == nil {
		return invalid("payload", "is required")
	}
	if req.X == nil {
		return invalid("x", "is required")
	}
	if req.Y == nil {
		return invalid("y", "is required")
	}
	return nil
}

// ValidateVerifyRequest validates a verify request
func ValidateVerifyRequest(req *VerifyRequest) *FieldError {
	if req.Seeds.Server == "" {
		return invalid("seeds.server", "server seed is required")
	}
	if req.Seeds.Client == "" {
		return invalid("seeds.client", "client seed is required")
	}
	if len(req.Seeds.Server) > maxSeedLength || len(req.Seeds.Client) > maxSeedLength {
		return invalid("seeds", "too long (max %d bytes)", maxSeedLength)
	}
	return validateDifficulty(req.Difficulty)
}

// ValidateAutoplayRequest bounds the script and its move budget
func ValidateAutoplayRequest(req *AutoplayRequest) *FieldError {
	if len(req.Script) > maxScriptBytes {
		return invalid("script", "too large (max %d bytes)", maxScriptBytes)
	}
	if req.MoveBudget < 0 {
		return invalid("move_budget", "must be >= 0")
	}
	if req.MoveBudget > maxMoveBudget {
		return invalid("move_budget", "too large (max %d)", maxMoveBudget)
	}
	return nil
}
