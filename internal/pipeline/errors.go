package pipeline

import "fmt"

// Kind classifies a pipeline failure. Agents return errors; they never panic
// across the agent boundary.
type Kind string

const (
	KindConfigurationMissing      Kind = "ConfigurationMissing"
	KindLockHeld                  Kind = "LockHeld"
	KindHubUnavailable            Kind = "HubUnavailable"
	KindBranchExists              Kind = "BranchExists"
	KindPatchConflict             Kind = "PatchConflict"
	KindVerificationMismatch      Kind = "VerificationMismatch"
	KindEnvironmentBlocked        Kind = "EnvironmentBlocked"
	KindStaticCheckFailed         Kind = "StaticCheckFailed"
	KindRuntimeFailed             Kind = "RuntimeFailed"
	KindTestFailed                Kind = "TestFailed"
	KindQueryParseFailed          Kind = "QueryParseFailed"
	KindDatabaseUnavailable       Kind = "DatabaseUnavailable"
	KindLLMUnavailable            Kind = "LLMUnavailable"
	KindPushFailed                Kind = "PushFailed"
	KindTimeout                   Kind = "Timeout"
	KindCancelled                 Kind = "Cancelled"
	KindInternalInvariantViolated Kind = "InternalInvariantViolated"
)

// Error is the structured failure record carried in outcomes and the run
// context.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
	LogPath string `json:"log_path,omitempty"`
}

func (e *Error) Error() string {
	if e.Cause != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Errorf builds an Error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error recording err as the cause.
func Wrap(kind Kind, message string, err error) *Error {
	e := &Error{Kind: kind, Message: message}
	if err != nil {
		e.Cause = err.Error()
	}
	return e
}

// AsError converts any error into a pipeline Error, passing through values
// that already are one.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if pe, ok := err.(*Error); ok {
		return pe
	}
	return &Error{Kind: KindInternalInvariantViolated, Message: err.Error()}
}
