package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/raft"
)

var (
	// ErrNotStarted is returned when the cluster has not been started.
	ErrNotStarted = errors.New("cluster not started")
	// ErrShutdown is returned after the cluster was shut down.
	ErrShutdown = errors.New("cluster is shut down")
)

// Manager manages a Raft cluster replicating rendition state.
type Manager struct {
	config    Config
	raft      *raft.Raft
	fsm       *RenditionFSM
	transport *raft.NetworkTransport
	logOutput io.Writer
	logger    *slog.Logger
	mu        sync.RWMutex
	shutdown  bool

	onApply ApplyFunc

	// Local changes waiting to be replicated, in the order they were made.
	queueMu sync.Mutex
	queue   []SetDisabledCommand
	pending map[string]int
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}

	setDisabled func(id string, disabled bool) error
}

// NewManager creates a new cluster manager. onApply receives every
// replicated rendition state and may be nil.
func NewManager(config Config, onApply ApplyFunc, logger *slog.Logger) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	m := &Manager{
		config:    config,
		logOutput: os.Stderr,
		logger:    logger,
		shutdown:  false,
		onApply:   onApply,
		pending:   make(map[string]int),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	m.fsm = NewRenditionFSM(m.applyReplicated, logger)
	m.setDisabled = m.SetDisabled

	go m.replicate()

	return m, nil
}

// Start initializes and starts the Raft cluster.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.raft != nil {
		return fmt.Errorf("cluster already started")
	}

	// Create Raft configuration
	raftConfig := raft.DefaultConfig()
	// Use bind address as LocalID for consistency with bootstrap configuration
	raftConfig.LocalID = raft.ServerID(m.config.BindAddr)
	raftConfig.HeartbeatTimeout = m.config.HeartbeatTimeout
	raftConfig.ElectionTimeout = m.config.ElectionTimeout
	raftConfig.LeaderLeaseTimeout = m.config.HeartbeatTimeout
	raftConfig.SnapshotInterval = m.config.SnapshotInterval
	raftConfig.SnapshotThreshold = m.config.SnapshotThreshold
	raftConfig.Logger = newRaftLogger(m.logOutput, m.config.RaftLogLevel)

	// Create in-memory stores
	logStore := raft.NewInmemStore()
	stableStore := raft.NewInmemStore()
	snapshotStore := raft.NewInmemSnapshotStore()

	// Create network transport
	addr, err := net.ResolveTCPAddr("tcp", m.config.BindAddr)
	if err != nil {
		return fmt.Errorf("resolve bind address: %w", err)
	}

	transport, err := raft.NewTCPTransport(m.config.BindAddr, addr, 3, 10*time.Second, nil)
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}
	m.transport = transport

	// Create Raft instance
	r, err := raft.NewRaft(raftConfig, m.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		transport.Close()
		return fmt.Errorf("create raft: %w", err)
	}
	m.raft = r

	configuration := raft.Configuration{
		Servers: make([]raft.Server, 0, len(m.config.Peers)),
	}

	for _, peer := range m.config.Peers {
		// Use peer address as both ID and address for simplicity
		configuration.Servers = append(configuration.Servers, raft.Server{
			ID:       raft.ServerID(peer),
			Address:  raft.ServerAddress(peer),
			Suffrage: raft.Voter,
		})
	}

	future := m.raft.BootstrapCluster(configuration)
	if err := future.Error(); err != nil && err != raft.ErrCantBootstrap {
		m.logger.Error("failed to bootstrap cluster", "error", err)
		// Continue anyway - node might be joining existing cluster
	}

	m.logger.Info("cluster started",
		"node_id", m.config.RaftID,
		"raft_id", m.config.BindAddr,
		"bind", m.config.BindAddr,
		"peers", len(m.config.Peers))

	return nil
}

// SetDisabled replicates the disabled flag of one rendition.
// Only the leader can apply; followers get raft.ErrNotLeader.
func (m *Manager) SetDisabled(id string, disabled bool) error {
	return m.apply(Command{
		Type: CommandSetDisabled,
		Data: SetDisabledCommand{RenditionID: id, Disabled: disabled},
	})
}

// RecordDisabled queues a rendition state change for replication and
// returns without waiting for the commit. Changes are applied in the order
// they were recorded; failures are logged.
func (m *Manager) RecordDisabled(id string, disabled bool) {
	m.queueMu.Lock()
	if m.closed {
		m.queueMu.Unlock()
		m.logger.Warn("failed to replicate rendition state",
			"rendition", id,
			"disabled", disabled,
			"error", ErrShutdown,
		)
		return
	}
	m.queue = append(m.queue, SetDisabledCommand{RenditionID: id, Disabled: disabled})
	m.pending[id]++
	m.queueMu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// replicate drains the queue until the manager shuts down.
func (m *Manager) replicate() {
	defer close(m.stopped)

	for {
		select {
		case <-m.done:
			return
		case <-m.wake:
		}

		for {
			cmd, ok := m.next()
			if !ok {
				break
			}

			err := m.setDisabled(cmd.RenditionID, cmd.Disabled)

			m.queueMu.Lock()
			if m.pending[cmd.RenditionID]--; m.pending[cmd.RenditionID] <= 0 {
				delete(m.pending, cmd.RenditionID)
			}
			m.queueMu.Unlock()

			if err != nil {
				m.logger.Warn("failed to replicate rendition state",
					"rendition", cmd.RenditionID,
					"disabled", cmd.Disabled,
					"error", err,
				)
			}
		}
	}
}

func (m *Manager) next() (SetDisabledCommand, bool) {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()

	if m.closed || len(m.queue) == 0 {
		return SetDisabledCommand{}, false
	}
	cmd := m.queue[0]
	m.queue = m.queue[1:]
	return cmd, true
}

// hasPending reports whether local changes to id are still queued or in
// flight.
func (m *Manager) hasPending(id string) bool {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	return m.pending[id] > 0
}

// applyReplicated forwards replicated state to onApply. Entries for ids
// with local changes still pending are older than the local state and
// are skipped.
func (m *Manager) applyReplicated(id string, disabled bool) {
	if m.onApply == nil {
		return
	}
	if m.hasPending(id) {
		m.logger.Debug("skipping replicated state behind local change",
			"rendition", id,
			"disabled", disabled,
		)
		return
	}
	m.onApply(id, disabled)
}

// Initialize seeds the replicated state. Renditions already known to the
// cluster keep their replicated value.
func (m *Manager) Initialize(state RenditionState) error {
	return m.apply(Command{
		Type: CommandInitialize,
		Data: InitializeCommand{State: state},
	})
}

func (m *Manager) apply(cmd Command) error {
	m.mu.RLock()
	if m.shutdown {
		m.mu.RUnlock()
		return ErrShutdown
	}
	r := m.raft
	m.mu.RUnlock()

	if r == nil {
		return ErrNotStarted
	}

	data, err := EncodeCommand(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	future := r.Apply(data, m.config.ApplyTimeout)
	if err := future.Error(); err != nil {
		return fmt.Errorf("apply command: %w", err)
	}
	if resp, ok := future.Response().(error); ok && resp != nil {
		return fmt.Errorf("apply command: %w", resp)
	}

	return nil
}

// GetState returns the current FSM state.
func (m *Manager) GetState() RenditionState {
	return m.fsm.GetState()
}

// IsLeader returns true if this node is the Raft leader.
func (m *Manager) IsLeader() bool {
	m.mu.RLock()
	r := m.raft
	m.mu.RUnlock()

	if r == nil {
		return false
	}

	return r.State() == raft.Leader
}

// LeaderAddr returns the address of the current Raft leader.
func (m *Manager) LeaderAddr() string {
	m.mu.RLock()
	r := m.raft
	m.mu.RUnlock()

	if r == nil {
		return ""
	}

	leaderAddr, _ := r.LeaderWithID()
	return string(leaderAddr)
}

// State returns the current Raft state.
func (m *Manager) State() string {
	m.mu.RLock()
	r := m.raft
	m.mu.RUnlock()

	if r == nil {
		return "NotStarted"
	}

	return r.State().String()
}

// NodeID returns the configured RaftID label. Raft addresses this node by
// BindAddr.
func (m *Manager) NodeID() string {
	return m.config.RaftID
}

// Shutdown gracefully shuts down the Raft cluster. Queued changes that
// were not replicated yet are dropped.
func (m *Manager) Shutdown() error {
	m.queueMu.Lock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	m.queueMu.Unlock()

	// The replicator may be inside apply, which needs m.mu.
	defer func() { <-m.stopped }()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return nil
	}

	m.shutdown = true

	if m.raft != nil {
		if err := m.raft.Shutdown().Error(); err != nil {
			m.logger.Error("failed to shutdown raft", "error", err)
			return fmt.Errorf("shutdown raft: %w", err)
		}
	}

	if m.transport != nil {
		if err := m.transport.Close(); err != nil {
			m.logger.Error("failed to close transport", "error", err)
			return fmt.Errorf("close transport: %w", err)
		}
	}

	m.logger.Info("cluster shut down")
	return nil
}

// WaitForLeader blocks until a leader is elected or context is canceled.
func (m *Manager) WaitForLeader(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if m.LeaderAddr() != "" {
				return nil
			}
		}
	}
}
