// Package integration provides in-process integration testing utilities for
// renditionctl nodes.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agleyzer/renditionctl/internal/app"
	"github.com/agleyzer/renditionctl/internal/config"
)

// TestHarness runs an origin serving manifests and one or more nodes.
type TestHarness struct {
	t      *testing.T
	origin *httptest.Server
	nodes  []*Node
	logger *slog.Logger
}

// Node is one running renditionctl stack with its HTTP surface.
type Node struct {
	ID       string
	RaftAddr string
	App      *app.App
	HTTP     *httptest.Server
	stopped  bool
}

// Rendition is the JSON form served by /renditions.
type Rendition struct {
	ID      string `json:"id"`
	Codecs  string `json:"codecs"`
	URI     string `json:"uri"`
	Enabled bool   `json:"enabled"`
}

// NewTestHarness creates a new test harness.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	h := &TestHarness{
		t:      t,
		logger: slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil)),
	}
	t.Cleanup(h.Cleanup)
	return h
}

// StartOrigin serves the given manifests by path, e.g. "/master.m3u8".
func (h *TestHarness) StartOrigin(manifests map[string]string) {
	h.t.Helper()

	h.origin = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := manifests[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		io.WriteString(w, body)
	}))
}

// ManifestURL returns the origin URL of path.
func (h *TestHarness) ManifestURL(path string) string {
	return h.origin.URL + path
}

// StartNode starts a standalone node for the manifest at path.
func (h *TestHarness) StartNode(path string, configure func(*config.Config)) *Node {
	h.t.Helper()

	cfg := config.Default()
	cfg.Manifest = h.ManifestURL(path)
	if configure != nil {
		configure(&cfg)
	}

	a, err := app.New(context.Background(), &cfg, h.logger)
	if err != nil {
		h.t.Fatalf("failed to start node: %v", err)
	}

	node := &Node{
		ID:       fmt.Sprintf("node%d", len(h.nodes)+1),
		RaftAddr: cfg.Cluster.Bind,
		App:      a,
		HTTP:     httptest.NewServer(a.Server.Handler()),
	}
	h.nodes = append(h.nodes, node)
	return node
}

// StartCluster starts nodeCount clustered nodes for the manifest at path
// and waits for a leader to seed the replicated state.
func (h *TestHarness) StartCluster(path string, nodeCount int) []*Node {
	h.t.Helper()

	peers := make([]string, nodeCount)
	for i := range peers {
		peers[i] = findAvailableAddr(h.t)
	}

	nodes := make([]*Node, 0, nodeCount)
	for i := 0; i < nodeCount; i++ {
		bind := peers[i]
		id := fmt.Sprintf("node%d", i+1)
		nodes = append(nodes, h.StartNode(path, func(cfg *config.Config) {
			cfg.Cluster = config.Cluster{
				Enabled: true,
				RaftID:  id,
				Bind:    bind,
				Peers:   peers,
			}
		}))
		h.t.Logf("Started node %s (Raft: %s)", id, bind)
	}

	for _, n := range nodes {
		if err := n.App.SeedCluster(context.Background(), 15*time.Second); err != nil {
			h.t.Fatalf("failed to seed cluster on %s: %v", n.ID, err)
		}
	}

	return nodes
}

// Leader returns the running node that currently leads the cluster.
func (h *TestHarness) Leader(timeout time.Duration) *Node {
	h.t.Helper()

	var leader *Node
	h.WaitForCondition(func() bool {
		for _, n := range h.nodes {
			if !n.stopped && n.App.Cluster != nil && n.App.Cluster.IsLeader() {
				leader = n
				return true
			}
		}
		return false
	}, timeout, "leader election")

	h.t.Logf("Leader is %s", leader.ID)
	return leader
}

// Followers returns the running nodes other than leader.
func (h *TestHarness) Followers(leader *Node) []*Node {
	var out []*Node
	for _, n := range h.nodes {
		if n != leader && !n.stopped {
			out = append(out, n)
		}
	}
	return out
}

// Renditions fetches /renditions from node.
func (h *TestHarness) Renditions(node *Node) []Rendition {
	h.t.Helper()

	var reps []Rendition
	h.getJSON(node, "/renditions", &reps)
	return reps
}

// Rendition fetches a single rendition from node.
func (h *TestHarness) Rendition(node *Node, id string) Rendition {
	h.t.Helper()

	var rep Rendition
	h.getJSON(node, "/renditions/"+id, &rep)
	return rep
}

// SetEnabled enables or disables a rendition through node's HTTP surface.
func (h *TestHarness) SetEnabled(node *Node, id string, enabled bool) {
	h.t.Helper()

	body := fmt.Sprintf(`{"enabled": %t}`, enabled)
	req, err := http.NewRequest(http.MethodPut, node.HTTP.URL+"/renditions/"+id, strings.NewReader(body))
	if err != nil {
		h.t.Fatalf("failed to build request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		h.t.Fatalf("failed to set rendition state: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		h.t.Fatalf("unexpected status code setting %s: %d", id, resp.StatusCode)
	}
}

// FetchMaster fetches the filtered master playlist from node.
func (h *TestHarness) FetchMaster(node *Node) string {
	h.t.Helper()

	resp, err := http.Get(node.HTTP.URL + "/master.m3u8")
	if err != nil {
		h.t.Fatalf("failed to fetch master playlist: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("failed to read master playlist: %v", err)
	}
	return string(body)
}

func (h *TestHarness) getJSON(node *Node, path string, v any) {
	h.t.Helper()

	resp, err := http.Get(node.HTTP.URL + path)
	if err != nil {
		h.t.Fatalf("failed to fetch %s: %v", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		h.t.Fatalf("unexpected status code for %s: %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		h.t.Fatalf("failed to decode %s: %v", path, err)
	}
}

// StopNode shuts down a node's HTTP surface and cluster membership.
func (h *TestHarness) StopNode(node *Node) {
	h.t.Helper()

	if node.stopped {
		return
	}
	node.stopped = true
	node.HTTP.Close()
	if err := node.App.Close(); err != nil {
		h.t.Logf("failed to stop %s: %v", node.ID, err)
	}
	h.t.Logf("Stopped node %s", node.ID)
}

// Cleanup stops all nodes and the origin.
func (h *TestHarness) Cleanup() {
	for _, n := range h.nodes {
		if !n.stopped {
			n.stopped = true
			n.HTTP.Close()
			_ = n.App.Close()
		}
	}
	if h.origin != nil {
		h.origin.Close()
	}
}

// WaitForCondition polls condition until it holds or timeout expires.
func (h *TestHarness) WaitForCondition(condition func() bool, timeout time.Duration, description string) {
	h.t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		<-ticker.C
	}

	h.t.Fatalf("timeout waiting for %s after %v", description, timeout)
}

func findAvailableAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available port: %v", err)
	}
	defer l.Close()

	return fmt.Sprintf("127.0.0.1:%d", l.Addr().(*net.TCPAddr).Port)
}
