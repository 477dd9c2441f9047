package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStates = []State{
	Idle{},
	Uploading{SessionID: "s1", TotalChunks: 3, UploadedChunkCount: 1},
	Finalizing{SessionID: "s1", TotalChunks: 3},
	Done{SessionID: "s1"},
	Failed{Message: "boom"},
	Canceled{},
}

func TestReduce_StartUpload(t *testing.T) {
	for _, s := range allStates {
		next := Reduce(s, StartUpload{SessionID: "s2", TotalChunks: 5})
		assert.Equal(t, Uploading{SessionID: "s2", TotalChunks: 5}, next, "from %s", s.Phase())
	}
}

func TestReduce_ChunkOK(t *testing.T) {
	up := Uploading{SessionID: "s1", TotalChunks: 3, UploadedChunkCount: 1}
	assert.Equal(t,
		Uploading{SessionID: "s1", TotalChunks: 3, UploadedChunkCount: 2},
		Reduce(up, ChunkOK{UploadedChunkCount: 2}))

	for _, s := range []State{Idle{}, Failed{Message: "x"}, Done{SessionID: "s1"}, Canceled{}, Finalizing{SessionID: "s1", TotalChunks: 3}} {
		assert.Equal(t, s, Reduce(s, ChunkOK{UploadedChunkCount: 1}), "from %s", s.Phase())
	}
}

func TestReduce_StartFinalize(t *testing.T) {
	up := Uploading{SessionID: "s1", TotalChunks: 2, UploadedChunkCount: 2}
	assert.Equal(t, Finalizing{SessionID: "s1", TotalChunks: 2}, Reduce(up, StartFinalize{}))

	for _, s := range allStates {
		if s.Phase() == PhaseUploading {
			continue
		}
		assert.Equal(t, s, Reduce(s, StartFinalize{}), "from %s", s.Phase())
	}
}

func TestReduce_Finish(t *testing.T) {
	fin := Finalizing{SessionID: "s1", TotalChunks: 2}
	assert.Equal(t, Done{SessionID: "s1"}, Reduce(fin, Finish{}))

	for _, s := range allStates {
		if s.Phase() == PhaseFinalizing {
			continue
		}
		assert.Equal(t, s, Reduce(s, Finish{}), "from %s", s.Phase())
	}
}

func TestReduce_FailCancelResetFromAnyState(t *testing.T) {
	for _, s := range allStates {
		assert.Equal(t, Failed{Message: "network error"}, Reduce(s, Fail{Message: "network error"}), "fail from %s", s.Phase())
		assert.Equal(t, Canceled{}, Reduce(s, Cancel{}), "cancel from %s", s.Phase())
		assert.Equal(t, Idle{}, Reduce(s, Reset{}), "reset from %s", s.Phase())
	}
}

func TestSnapshotOf(t *testing.T) {
	tests := []struct {
		state State
		want  Snapshot
	}{
		{Idle{}, Snapshot{Status: PhaseIdle}},
		{
			Uploading{SessionID: "s1", TotalChunks: 4, UploadedChunkCount: 1},
			Snapshot{Status: PhaseUploading, Progress: 0.25, SessionID: "s1", TotalChunks: 4, UploadedChunkCount: 1},
		},
		{
			Uploading{SessionID: "s1"},
			Snapshot{Status: PhaseUploading, SessionID: "s1"},
		},
		{
			Finalizing{SessionID: "s1", TotalChunks: 4},
			Snapshot{Status: PhaseFinalizing, Progress: 1, SessionID: "s1", TotalChunks: 4, UploadedChunkCount: 4},
		},
		{Done{SessionID: "s1"}, Snapshot{Status: PhaseDone, SessionID: "s1"}},
		{Failed{Message: "boom"}, Snapshot{Status: PhaseError, Error: "boom"}},
		{Canceled{}, Snapshot{Status: PhaseCanceled}},
	}
	for _, tt := range tests {
		t.Run(string(tt.state.Phase()), func(t *testing.T) {
			assert.Equal(t, tt.want, SnapshotOf(tt.state))
		})
	}
}
