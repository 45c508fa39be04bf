package api

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/MJE43/lightgrid/internal/engine"
)

// SecurityLogger writes audit lines that never carry a raw seed or token
type SecurityLogger struct {
	logger *log.Logger
}

// NewSecurityLogger creates a security logger writing to stdout
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{
		logger: log.New(os.Stdout, "[SECURITY] ", log.LstdFlags|log.LUTC),
	}
}

// LogSessionOperation logs a session lifecycle action. Only the server seed
// hash is written; the seed itself may still be secret.
func (sl *SecurityLogger) LogSessionOperation(
	requestID string,
	action string,
	sessionID string,
	serverSeedHash string,
	clientSeed string,
	nonce uint64,
	state string,
) {
	sl.logger.Printf(
		"session_operation request_id=%s action=%s session_id=%s server_hash=%s client_hash=%s nonce=%d state=%s engine_version=%s timestamp=%s",
		requestID,
		action,
		sessionID,
		short(serverSeedHash),
		sl.hashSeed(clientSeed),
		nonce,
		state,
		EngineVersion,
		time.Now().UTC().Format(time.RFC3339),
	)
}

// LogVerifyOperation logs a layout verification
func (sl *SecurityLogger) LogVerifyOperation(
	requestID string,
	source string,
	seeds engine.Seeds,
	nonce uint64,
	outcome string,
) {
	sl.logger.Printf(
		"verify_operation request_id=%s source=%s server_hash=%s client_hash=%s nonce=%d outcome=%s engine_version=%s timestamp=%s",
		requestID,
		source,
		sl.hashSeed(seeds.Server),
		sl.hashSeed(seeds.Client),
		nonce,
		outcome,
		EngineVersion,
		time.Now().UTC().Format(time.RFC3339),
	)
}

// LogSecurityEvent logs failed validations, rejected tokens and the like
func (sl *SecurityLogger) LogSecurityEvent(
	requestID string,
	eventType string,
	description string,
	context map[string]interface{},
	remoteAddr string,
) {
	sl.logger.Printf(
		"security_event request_id=%s type=%s description=%q context=%+v remote_addr=%s engine_version=%s timestamp=%s",
		requestID,
		eventType,
		description,
		sl.sanitizeContext(context),
		remoteAddr,
		EngineVersion,
		time.Now().UTC().Format(time.RFC3339),
	)
}

// LogAuditEvent logs audit events for compliance and debugging
func (sl *SecurityLogger) LogAuditEvent(
	requestID string,
	action string,
	resource string,
	outcome string,
	details map[string]interface{},
) {
	sl.logger.Printf(
		"audit_event request_id=%s action=%s resource=%s outcome=%s details=%+v engine_version=%s timestamp=%s",
		requestID,
		action,
		resource,
		outcome,
		sl.sanitizeContext(details),
		EngineVersion,
		time.Now().UTC().Format(time.RFC3339),
	)
}

// LogSystemStartup logs system startup information
func (sl *SecurityLogger) LogSystemStartup(addr string, config map[string]interface{}) {
	sl.logger.Printf(
		"system_startup addr=%s config=%+v engine_version=%s git_commit=%s build_time=%s timestamp=%s",
		addr,
		sl.sanitizeContext(config),
		EngineVersion,
		GitCommit,
		BuildTime,
		time.Now().UTC().Format(time.RFC3339),
	)
}

// LogSystemShutdown logs system shutdown information
func (sl *SecurityLogger) LogSystemShutdown(reason string, uptime time.Duration) {
	sl.logger.Printf(
		"system_shutdown reason=%s uptime=%v engine_version=%s timestamp=%s",
		reason,
		uptime,
		EngineVersion,
		time.Now().UTC().Format(time.RFC3339),
	)
}

// hashSeed returns the first 16 hex chars of the seed's SHA-256
func (sl *SecurityLogger) hashSeed(seed string) string {
	if seed == "" {
		return "empty"
	}
	hash := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(hash[:])[:16]
}

func short(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	if hash == "" {
		return "empty"
	}
	return hash
}

// sanitizeContext hashes seeds and redacts secrets
func (sl *SecurityLogger) sanitizeContext(context map[string]interface{}) map[string]interface{} {
	if context == nil {
		return nil
	}

	sanitized := make(map[string]interface{}, len(context))
	for key, value := range context {
		switch key {
		case "server_seed", "client_seed":
			if strVal, ok := value.(string); ok {
				sanitized[key+"_hash"] = sl.hashSeed(strVal)
			} else {
				sanitized[key+"_hash"] = fmt.Sprintf("non_string_value_%T", value)
			}
		case "token", "admin_token", "secret", "password", "authorization":
			sanitized[key] = "[REDACTED]"
		case "seeds":
			if seeds, ok := value.(engine.Seeds); ok {
				sanitized["server_seed_hash"] = sl.hashSeed(seeds.Server)
				sanitized["client_seed_hash"] = sl.hashSeed(seeds.Client)
			} else {
				sanitized[key] = "[SEEDS_OBJECT]"
			}
		default:
			sanitized[key] = value
		}
	}
	return sanitized
}
