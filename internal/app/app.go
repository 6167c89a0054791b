// Package app assembles the rendition control stack for one manifest.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agleyzer/renditionctl/internal/cluster"
	"github.com/agleyzer/renditionctl/internal/config"
	"github.com/agleyzer/renditionctl/internal/events"
	"github.com/agleyzer/renditionctl/internal/manifest"
	"github.com/agleyzer/renditionctl/internal/parser"
	"github.com/agleyzer/renditionctl/internal/rendition"
	"github.com/agleyzer/renditionctl/internal/server"
	"github.com/agleyzer/renditionctl/internal/session"
	"github.com/agleyzer/renditionctl/internal/variant"
)

// App holds the wired components.
type App struct {
	Manifest *manifest.Manifest
	Session  *session.Controller
	Selector *rendition.Selector
	Bus      *events.Bus
	Cluster  *cluster.Manager
	Server   *server.Server

	logger *slog.Logger
}

// New fetches the manifest named in cfg and wires the session, selector,
// optional cluster and HTTP server around it. The cluster, when enabled,
// is started; call Close to stop it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.Manifest == "" {
		return nil, fmt.Errorf("manifest URL is required")
	}

	logger.Info("fetching manifest", "url", cfg.Manifest)
	m, err := parser.ParseManifest(ctx, cfg.Manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	logger.Info("parsed manifest",
		"playlists", len(m.Playlists),
		"audioGroups", len(m.AudioGroups),
	)

	return FromManifest(ctx, m, cfg, logger)
}

// FromManifest wires the stack around an already parsed manifest.
func FromManifest(ctx context.Context, m *manifest.Manifest, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{
		Manifest: m,
		Session:  session.New(cfg.Support(), logger),
		Bus:      events.NewBus(),
		logger:   logger,
	}

	a.Session.SetManifest(m)
	for _, id := range cfg.Exclude {
		a.Session.Exclude(id)
	}
	if cfg.AudioTrack != "" {
		a.Session.SetAudioTrack(cfg.AudioTrack)
	}
	a.Session.OnSwitch(func(v *variant.Variant) {
		logger.Debug("switched rendition", "rendition", v.ID, "uri", v.URI)
	})

	var selectorOpts []rendition.Option
	serverOpts := []server.Option{server.WithEvents(a.Bus)}

	if cfg.Cluster.Enabled {
		manager, err := cluster.NewManager(cfg.ClusterConfig(), func(id string, disabled bool) {
			a.Session.ApplyDisabled(id, disabled)
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create cluster manager: %w", err)
		}
		if err := manager.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start cluster: %w", err)
		}

		a.Cluster = manager
		selectorOpts = append(selectorOpts, rendition.WithRecorder(manager))
		serverOpts = append(serverOpts, server.WithCluster(manager))
	}

	a.Selector = rendition.New(a.Session, a.Bus, logger, selectorOpts...)
	a.Server = server.New(a.Selector, a.Session, cfg.Port, logger, serverOpts...)

	for _, id := range cfg.Disable {
		a.Selector.Toggle(id).SetEnabled(false)
	}

	return a, nil
}

// SeedCluster waits for a leader and, on the leader, seeds the replicated
// state with the local disabled flags. Renditions the cluster already
// tracks keep their replicated value.
func (a *App) SeedCluster(ctx context.Context, timeout time.Duration) error {
	if a.Cluster == nil {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := a.Cluster.WaitForLeader(waitCtx); err != nil {
		return fmt.Errorf("wait for leader: %w", err)
	}
	if !a.Cluster.IsLeader() {
		a.logger.Info("following cluster leader", "leader", a.Cluster.LeaderAddr())
		return nil
	}

	state := cluster.RenditionState{Disabled: a.Session.DisabledState()}
	if err := a.Cluster.Initialize(state); err != nil {
		return fmt.Errorf("seed cluster state: %w", err)
	}
	a.logger.Info("seeded cluster state", "renditions", len(state.Disabled))
	return nil
}

// Close shuts down the cluster, if any.
func (a *App) Close() error {
	if a.Cluster == nil {
		return nil
	}
	return a.Cluster.Shutdown()
}
