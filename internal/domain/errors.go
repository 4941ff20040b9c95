package domain

import (
	"errors"
	"fmt"
)

// Category sentinels. Use with NewSubSystemError for subsystem-specific errors.
var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrDuplicate     = fmt.Errorf("duplicate")
	ErrTimeout       = fmt.Errorf("operation timed out")
	ErrInvalidInput  = fmt.Errorf("invalid input")
	ErrProviderError = fmt.Errorf("provider error")
)

// Routing sentinels.
var (
	ErrUnknownMode    = fmt.Errorf("unrecognized mode")
	ErrUnknownAgent   = fmt.Errorf("unknown agent")
	ErrEmptySelection = fmt.Errorf("routing selected no agents")
)

// Responder / transport sentinels.
var (
	ErrConfigLoad  = fmt.Errorf("failed to load configuration")
	ErrRateLimit   = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid = fmt.Errorf("authentication failed")
	ErrDecryption  = fmt.Errorf("decryption failed")
	ErrEncryption  = fmt.Errorf("encryption operation failed")
	ErrAuditWrite  = fmt.Errorf("audit log write failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "Router.Route")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier (e.g., "router", "responder"); used for ErrorCode dispatch
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// NewSubSystemError creates a DomainError tagged with a subsystem for ErrorCode dispatch.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a transient error that may succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrTimeout)
}

// IsRoutingError reports whether err is a caller-facing routing failure
// (bad mode or agent reference) rather than an internal defect.
func IsRoutingError(err error) bool {
	return errors.Is(err, ErrUnknownMode) || errors.Is(err, ErrUnknownAgent) || errors.Is(err, ErrInvalidInput)
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

const (
	CodeUnknown        ErrorCode = "UNKNOWN"
	CodeUnknownMode    ErrorCode = "UNKNOWN_MODE"
	CodeUnknownAgent   ErrorCode = "UNKNOWN_AGENT"
	CodeEmptySelection ErrorCode = "EMPTY_SELECTION"
	CodeConfigLoad     ErrorCode = "CONFIG_LOAD"
	CodeRateLimit      ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid    ErrorCode = "AUTH_INVALID"
	CodeDecryption     ErrorCode = "DECRYPTION"
	CodeEncryption     ErrorCode = "ENCRYPTION"
	CodeAuditWrite     ErrorCode = "AUDIT_WRITE"

	// Subsystem-specific codes resolved through subSystemCodeMap.
	CodeAgentNotFound     ErrorCode = "AGENT_NOT_FOUND"
	CodeAgentDuplicate    ErrorCode = "AGENT_DUPLICATE"
	CodeResponderNotFound ErrorCode = "RESPONDER_NOT_FOUND"
	CodeResponderTimeout  ErrorCode = "RESPONDER_TIMEOUT"
	CodeResponderProvider ErrorCode = "RESPONDER_PROVIDER"
	CodeSessionNotFound   ErrorCode = "SESSION_NOT_FOUND"
	CodePayloadInvalid    ErrorCode = "PAYLOAD_INVALID"

	// Category error codes, the fallback when no subsystem-specific code matches.
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeDuplicate     ErrorCode = "DUPLICATE"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeInvalidInput  ErrorCode = "INVALID_INPUT"
	CodeProviderError ErrorCode = "PROVIDER_ERROR"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:      CodeNotFound,
	ErrDuplicate:     CodeDuplicate,
	ErrTimeout:       CodeTimeout,
	ErrInvalidInput:  CodeInvalidInput,
	ErrProviderError: CodeProviderError,

	ErrUnknownMode:    CodeUnknownMode,
	ErrUnknownAgent:   CodeUnknownAgent,
	ErrEmptySelection: CodeEmptySelection,
	ErrConfigLoad:     CodeConfigLoad,
	ErrRateLimit:      CodeRateLimit,
	ErrAuthInvalid:    CodeAuthInvalid,
	ErrDecryption:     CodeDecryption,
	ErrEncryption:     CodeEncryption,
	ErrAuditWrite:     CodeAuditWrite,
}

// subSystemCodeMap maps (category sentinel, subsystem) pairs to specific ErrorCodes.
var subSystemCodeMap = map[error]map[string]ErrorCode{
	ErrNotFound: {
		"registry":  CodeAgentNotFound,
		"responder": CodeResponderNotFound,
		"session":   CodeSessionNotFound,
	},
	ErrDuplicate: {
		"registry": CodeAgentDuplicate,
	},
	ErrTimeout: {
		"responder": CodeResponderTimeout,
	},
	ErrInvalidInput: {
		"httpapi": CodePayloadInvalid,
	},
	ErrProviderError: {
		"responder": CodeResponderProvider,
	},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code := de.Code(); code != CodeUnknown {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
// If SubSystem is set, checks the subSystemCodeMap for a specific code.
func (e *DomainError) Code() ErrorCode {
	if e.SubSystem != "" {
		if subsysMap, ok := subSystemCodeMap[e.Err]; ok {
			if code, ok := subsysMap[e.SubSystem]; ok {
				return code
			}
		}
	}
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
