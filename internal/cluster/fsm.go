// Package cluster provides Raft-based replication of rendition state between
// renditionctl nodes controlling the same stream.
package cluster

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sync"

	"github.com/hashicorp/raft"
)

func init() {
	// Register types for gob encoding/decoding
	gob.Register(SetDisabledCommand{})
	gob.Register(InitializeCommand{})
}

// RenditionState represents the shared state across all cluster nodes.
type RenditionState struct {
	// Disabled maps rendition ids to their disabled flag.
	Disabled map[string]bool
	// Changes counts applied state changes.
	Changes uint64
}

// CommandType identifies the type of Raft command.
type CommandType uint8

const (
	// CommandSetDisabled records the disabled flag of one rendition.
	CommandSetDisabled CommandType = 1
	// CommandInitialize initializes the FSM state.
	CommandInitialize CommandType = 2
)

// Command represents a Raft log command.
type Command struct {
	Type CommandType
	Data any
}

// SetDisabledCommand records the disabled flag of one rendition.
type SetDisabledCommand struct {
	RenditionID string
	Disabled    bool
}

// InitializeCommand sets the initial state.
type InitializeCommand struct {
	State RenditionState
}

// ApplyFunc is called for every rendition whose replicated state was applied.
type ApplyFunc func(id string, disabled bool)

// RenditionFSM implements the raft.FSM interface for rendition state.
type RenditionFSM struct {
	mu      sync.RWMutex
	state   RenditionState
	onApply ApplyFunc
	logger  *slog.Logger
}

// NewRenditionFSM creates a new RenditionFSM.
// onApply may be nil.
func NewRenditionFSM(onApply ApplyFunc, logger *slog.Logger) *RenditionFSM {
	return &RenditionFSM{
		state: RenditionState{
			Disabled: make(map[string]bool),
		},
		onApply: onApply,
		logger:  logger,
	}
}

// Apply applies a Raft log entry to the FSM.
func (f *RenditionFSM) Apply(log *raft.Log) any {
	var cmd Command
	if err := gob.NewDecoder(bytes.NewReader(log.Data)).Decode(&cmd); err != nil {
		f.logger.Error("failed to decode command", "error", err)
		return fmt.Errorf("decode command: %w", err)
	}

	switch cmd.Type {
	case CommandSetDisabled:
		return f.applySetDisabled(cmd.Data)
	case CommandInitialize:
		return f.applyInitialize(cmd.Data)
	default:
		f.logger.Error("unknown command type", "type", cmd.Type)
		return fmt.Errorf("unknown command type: %d", cmd.Type)
	}
}

// applySetDisabled records one rendition's flag and notifies the apply hook.
func (f *RenditionFSM) applySetDisabled(data any) any {
	setCmd, ok := data.(SetDisabledCommand)
	if !ok {
		return fmt.Errorf("invalid set disabled command data")
	}

	f.mu.Lock()
	f.state.Disabled[setCmd.RenditionID] = setCmd.Disabled
	f.state.Changes++
	f.mu.Unlock()

	f.logger.Debug("applied rendition state", "rendition", setCmd.RenditionID, "disabled", setCmd.Disabled)

	if f.onApply != nil {
		f.onApply(setCmd.RenditionID, setCmd.Disabled)
	}
	return nil
}

// applyInitialize merges the initial state; ids already recorded keep their value.
func (f *RenditionFSM) applyInitialize(data any) any {
	initCmd, ok := data.(InitializeCommand)
	if !ok {
		return fmt.Errorf("invalid initialize command data")
	}

	applied := make(map[string]bool)

	f.mu.Lock()
	for id, disabled := range initCmd.State.Disabled {
		if _, exists := f.state.Disabled[id]; exists {
			continue
		}
		f.state.Disabled[id] = disabled
		applied[id] = disabled
	}
	f.mu.Unlock()

	f.logger.Info("initialized FSM state", "renditions", len(applied))

	if f.onApply != nil {
		for id, disabled := range applied {
			f.onApply(id, disabled)
		}
	}
	return nil
}

// Snapshot returns an FSMSnapshot for creating a point-in-time snapshot.
func (f *RenditionFSM) Snapshot() (raft.FSMSnapshot, error) {
	return &fsmSnapshot{state: f.GetState()}, nil
}

// Restore restores the FSM state from a snapshot.
func (f *RenditionFSM) Restore(snapshot io.ReadCloser) error {
	defer snapshot.Close()

	var state RenditionState
	if err := gob.NewDecoder(snapshot).Decode(&state); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if state.Disabled == nil {
		state.Disabled = make(map[string]bool)
	}

	f.mu.Lock()
	f.state = state
	f.mu.Unlock()

	if f.onApply != nil {
		for id, disabled := range state.Disabled {
			f.onApply(id, disabled)
		}
	}

	f.logger.Info("restored FSM state from snapshot", "renditions", len(state.Disabled))
	return nil
}

// GetState returns a copy of the current FSM state.
func (f *RenditionFSM) GetState() RenditionState {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return RenditionState{
		Disabled: maps.Clone(f.state.Disabled),
		Changes:  f.state.Changes,
	}
}

// fsmSnapshot implements raft.FSMSnapshot.
type fsmSnapshot struct {
	state RenditionState
}

// Persist writes the snapshot to the given sink.
func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s.state); err != nil {
		sink.Cancel()
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if _, err := sink.Write(buf.Bytes()); err != nil {
		sink.Cancel()
		return fmt.Errorf("write snapshot: %w", err)
	}

	return sink.Close()
}

// Release releases any resources held by the snapshot.
func (s *fsmSnapshot) Release() {}

// EncodeCommand encodes a command for Raft submission.
func EncodeCommand(cmd Command) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(cmd); err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}
	return buf.Bytes(), nil
}
