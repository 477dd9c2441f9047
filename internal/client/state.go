// Package client drives the chunked upload protocol from the sending side:
// an explicit upload state machine, an HTTP client for the server API, and
// an Uploader that sends a file in order with bounded retry.
package client

// Phase names a State variant.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseUploading  Phase = "uploading"
	PhaseFinalizing Phase = "finalizing"
	PhaseDone       Phase = "done"
	PhaseError      Phase = "error"
	PhaseCanceled   Phase = "canceled"
)

// State is one phase of an upload run. The concrete types below are the
// only implementations.
type State interface {
	Phase() Phase
	isState()
}

// Idle is the initial state and the state after Reset.
type Idle struct{}

// Uploading means chunks are being sent.
type Uploading struct {
	SessionID          string
	TotalChunks        int
	UploadedChunkCount int
}

// Finalizing means every chunk arrived and finalize is in flight.
type Finalizing struct {
	SessionID   string
	TotalChunks int
}

// Done means finalize succeeded; SessionID can be used to fetch the preview.
type Done struct {
	SessionID string
}

// Failed is the terminal error state. Message is the raw error text; use
// UserMessage to turn it into display copy.
type Failed struct {
	Message string
}

// Canceled means the user stopped the run.
type Canceled struct{}

func (Idle) Phase() Phase       { return PhaseIdle }
func (Uploading) Phase() Phase  { return PhaseUploading }
func (Finalizing) Phase() Phase { return PhaseFinalizing }
func (Done) Phase() Phase       { return PhaseDone }
func (Failed) Phase() Phase     { return PhaseError }
func (Canceled) Phase() Phase   { return PhaseCanceled }

func (Idle) isState()       {}
func (Uploading) isState()  {}
func (Finalizing) isState() {}
func (Done) isState()       {}
func (Failed) isState()     {}
func (Canceled) isState()   {}

// Action is an event fed to Reduce.
type Action interface {
	isAction()
}

// StartUpload begins a run against a freshly created session.
type StartUpload struct {
	SessionID   string
	TotalChunks int
}

// ChunkOK reports how many chunks have been accepted so far.
type ChunkOK struct {
	UploadedChunkCount int
}

// StartFinalize moves an upload into finalize.
type StartFinalize struct{}

// Finish marks finalize as successful.
type Finish struct{}

// Fail ends the run with an error message.
type Fail struct {
	Message string
}

// Cancel ends the run at the user's request.
type Cancel struct{}

// Reset returns to Idle.
type Reset struct{}

func (StartUpload) isAction()   {}
func (ChunkOK) isAction()       {}
func (StartFinalize) isAction() {}
func (Finish) isAction()        {}
func (Fail) isAction()          {}
func (Cancel) isAction()        {}
func (Reset) isAction()         {}

// Reduce returns the state that follows s after a. Events that do not
// apply to the current phase leave it unchanged, so a late ChunkOK after a
// cancel or failure cannot revive progress. Fail, Cancel, Reset and
// StartUpload apply from any state.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case StartUpload:
		return Uploading{SessionID: a.SessionID, TotalChunks: a.TotalChunks}
	case ChunkOK:
		if up, ok := s.(Uploading); ok {
			up.UploadedChunkCount = a.UploadedChunkCount
			return up
		}
	case StartFinalize:
		if up, ok := s.(Uploading); ok {
			return Finalizing{SessionID: up.SessionID, TotalChunks: up.TotalChunks}
		}
	case Finish:
		if fin, ok := s.(Finalizing); ok {
			return Done{SessionID: fin.SessionID}
		}
	case Fail:
		return Failed{Message: a.Message}
	case Cancel:
		return Canceled{}
	case Reset:
		return Idle{}
	}
	return s
}

// Snapshot is the flat view of a State the presentation layer renders.
type Snapshot struct {
	Status             Phase   `json:"status"`
	Progress           float64 `json:"progress"`
	Error              string  `json:"error,omitempty"`
	SessionID          string  `json:"sessionId,omitempty"`
	TotalChunks        int     `json:"totalChunks"`
	UploadedChunkCount int     `json:"uploadedChunkCount"`
}

// SnapshotOf flattens s. Progress is uploaded/total while uploading and
// saturates at 1 while finalizing.
func SnapshotOf(s State) Snapshot {
	snap := Snapshot{Status: s.Phase()}
	switch s := s.(type) {
	case Uploading:
		snap.SessionID = s.SessionID
		snap.TotalChunks = s.TotalChunks
		snap.UploadedChunkCount = s.UploadedChunkCount
		if s.TotalChunks > 0 {
			snap.Progress = float64(s.UploadedChunkCount) / float64(s.TotalChunks)
		}
	case Finalizing:
		snap.SessionID = s.SessionID
		snap.TotalChunks = s.TotalChunks
		snap.UploadedChunkCount = s.TotalChunks
		snap.Progress = 1
	case Done:
		snap.SessionID = s.SessionID
	case Failed:
		snap.Error = s.Message
	}
	return snap
}
