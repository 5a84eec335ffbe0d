package domain

// Command is the control surface's tagged command type. Each control
// action is its own struct so that adding or removing an action is a
// compile-time-checked change, not a string comparison.
type Command interface {
	// isCommand restricts implementations to this package.
	isCommand()
}

// StartCommand requests a new sync run.
type StartCommand struct {
	OrgID       string
	Systems     []string
	EntityTypes []string
	Config      BatchConfig
}

// StatusCommand requests a full status snapshot for a run.
type StatusCommand struct {
	OrgID  string
	SyncID string
}

// PauseCommand requests a pause at the next batch boundary.
type PauseCommand struct {
	OrgID  string
	SyncID string
}

// ResumeCommand resumes a paused run.
type ResumeCommand struct {
	OrgID  string
	SyncID string
}

// CancelCommand cooperatively cancels a run.
type CancelCommand struct {
	OrgID  string
	SyncID string
}

// ConflictsCommand requests conflict stats and open conflicts for a run.
type ConflictsCommand struct {
	OrgID  string
	SyncID string
}

// ResolveConflictCommand manually resolves a conflict.
type ResolveConflictCommand struct {
	OrgID      string
	ConflictID string
	Resolution ResolutionAction
	CustomData map[string]string
	ResolvedBy string
}

func (StartCommand) isCommand()           {}
func (StatusCommand) isCommand()          {}
func (PauseCommand) isCommand()           {}
func (ResumeCommand) isCommand()          {}
func (CancelCommand) isCommand()          {}
func (ConflictsCommand) isCommand()       {}
func (ResolveConflictCommand) isCommand() {}
