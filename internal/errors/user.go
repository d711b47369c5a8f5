package errors

import "errors"

// ErrorInfo holds a user-facing message and suggested action for an error.
type ErrorInfo struct {
	// Message is the user-friendly error description.
	Message string
	// Action is a suggested action to resolve the issue (empty if none).
	Action string
}

// errorEntry pairs a sentinel error with its user-facing info.
type errorEntry struct {
	err  error
	info ErrorInfo
}

// errorInfoEntries is the pre-built mapping of sentinel errors to their user-facing messages.
// Using a slice (not a map) because errors.Is() requires proper error chain traversal.
//
//nolint:gochecknoglobals // Pre-built mapping for efficiency
var errorInfoEntries = []errorEntry{
	{
		err: ErrEnvironmentUnavailable,
		info: ErrorInfo{
			Message: "The environment could not be prepared. The pipeline cannot start.",
			Action:  "Check that the generator command is installed and the workspace is writable.",
		},
	},
	{
		err: ErrQuotaExceeded,
		info: ErrorInfo{
			Message: "The generation service reported a quota limit. The pipeline is paused, not failed.",
			Action:  "Run 'crucible resume' once quota is available. No automatic retry will occur.",
		},
	},
	{
		err: ErrServiceUnavailable,
		info: ErrorInfo{
			Message: "The generation service is unreachable. The pipeline is paused, not failed.",
			Action:  "Run 'crucible resume' when the service is back. No automatic retry will occur.",
		},
	},
	{
		err: ErrRetryBoundExceeded,
		info: ErrorInfo{
			Message: "Too many consecutive stage failures or rejections.",
			Action:  "Inspect the run's event log, then start a new run with refined requirements.",
		},
	},
	{
		err: ErrPipelinePaused,
		info: ErrorInfo{
			Message: "The pipeline is waiting for an explicit resume signal.",
			Action:  "Run 'crucible resume' to continue from the paused stage.",
		},
	},
	{
		err: ErrNotApproved,
		info: ErrorInfo{
			Message: "Delivery is only possible after the validator approves the artifact.",
			Action:  "Let the pipeline reach the approved phase before requesting delivery.",
		},
	},
	{
		err: ErrStartNotConfirmed,
		info: ErrorInfo{
			Message: "The project intent was not explicitly confirmed.",
			Action:  "Answer the start confirmation prompt affirmatively to begin development.",
		},
	},
	{
		err: ErrRunNotFound,
		info: ErrorInfo{
			Message: "No pipeline run with that identifier exists.",
			Action:  "Run 'crucible status' to list known runs.",
		},
	},
	{
		err: ErrLockTimeout,
		info: ErrorInfo{
			Message: "Another crucible process appears to hold the run lock.",
			Action:  "Wait for the other process to finish, or remove a stale .lock file.",
		},
	},
}

// UserMessage returns a user-friendly message for the given error.
// Falls back to the raw error text for errors without a registered message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range errorInfoEntries {
		if errors.Is(err, entry.err) {
			return entry.info.Message
		}
	}
	return err.Error()
}

// Actionable returns the suggested action for the given error, or an empty
// string when no action is registered.
func Actionable(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range errorInfoEntries {
		if errors.Is(err, entry.err) {
			return entry.info.Action
		}
	}
	return ""
}
