// The renditionctl command lists the renditions of an HLS manifest and lets
// operators enable or disable them over HTTP or in a terminal picker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agleyzer/renditionctl/internal/app"
	"github.com/agleyzer/renditionctl/internal/config"
	"github.com/agleyzer/renditionctl/internal/tui"
)

const (
	version = "1.0.0"
)

type mode int

const (
	modeServe mode = iota
	modeList
	modeTUI
)

var errVersion = errors.New("version requested")

func main() {
	cfg, m, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, errVersion) {
		fmt.Printf("renditionctl v%s\n", version)
		os.Exit(0)
	}
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logLevel := slog.LevelInfo
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	}

	// The picker owns the terminal and the -list table owns stdout.
	var logOutput io.Writer = os.Stdout
	if m == modeTUI {
		logOutput = io.Discard
	} else if m == modeList {
		logOutput = os.Stderr
		logLevel = max(logLevel, slog.LevelWarn)
	}

	logger := slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{
		Level: logLevel,
	}))

	logger.Info("renditionctl starting", "version", version)

	if err := run(cfg, m, logger); err != nil {
		logger.Error("application error", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger.Info("renditionctl stopped")
}

// parseFlags builds the configuration from an optional TOML file and the
// command line. Flags that were set explicitly override file values.
func parseFlags(args []string, output io.Writer) (*config.Config, mode, error) {
	fs := flag.NewFlagSet("renditionctl", flag.ContinueOnError)
	fs.SetOutput(output)

	var (
		port        = fs.Int("port", 8080, "HTTP server port")
		verbose     = fs.Bool("verbose", false, "Enable verbose logging")
		showVersion = fs.Bool("version", false, "Show version and exit")
		configPath  = fs.String("config", "", "Path to a TOML config file")
		codecList   = fs.String("codecs", "", "Comma-separated list of playable codec families (e.g., 'avc1,mp4a')")
		audioTrack  = fs.String("audio-track", "", "Audio track name for audio-only manifests")
		disable     = fs.String("disable", "", "Comma-separated list of rendition ids disabled at startup")
		list        = fs.Bool("list", false, "Print the renditions and exit")
		interactive = fs.Bool("tui", false, "Pick renditions in an interactive terminal UI")
		raftID      = fs.String("raft-id", "", "Raft node id (random if not set)")
		raftBind    = fs.String("raft-bind", "", "Raft bind address (host:port); enables clustering")
		peers       = fs.String("peers", "", "Comma-separated list of Raft peer addresses, including this node")
		raftLog     = fs.String("raft-log", "", "Raft log level (trace, debug, info, warn, error, off)")
	)

	fs.Usage = func() {
		fmt.Fprintf(output, "renditionctl - HLS rendition control v%s\n\n", version)
		fmt.Fprintf(output, "Usage: renditionctl [options] <manifest-url>\n\n")
		fmt.Fprintf(output, "Arguments:\n")
		fmt.Fprintf(output, "  <manifest-url>    URL of the HLS manifest (master or media)\n\n")
		fmt.Fprintf(output, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(output, "\nExamples:\n")
		fmt.Fprintf(output, "  renditionctl https://example.com/master.m3u8\n")
		fmt.Fprintf(output, "  renditionctl --list --codecs avc1,hvc1,mp4a https://example.com/master.m3u8\n")
		fmt.Fprintf(output, "  renditionctl --tui --disable 0-low.m3u8 https://example.com/master.m3u8\n")
		fmt.Fprintf(output, "  renditionctl --raft-bind 127.0.0.1:7000 --peers 127.0.0.1:7000,127.0.0.1:7001 https://example.com/master.m3u8\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, modeServe, err
	}

	if *showVersion {
		return nil, modeServe, errVersion
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, modeServe, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if fs.NArg() > 0 {
		cfg.Manifest = fs.Arg(0)
	}
	if set["port"] {
		cfg.Port = *port
	}
	if set["verbose"] {
		cfg.Verbose = *verbose
	}
	if set["codecs"] {
		cfg.Codecs = config.SplitList(*codecList)
	}
	if set["audio-track"] {
		cfg.AudioTrack = *audioTrack
	}
	if set["disable"] {
		cfg.Disable = config.SplitList(*disable)
	}
	if set["raft-id"] {
		cfg.Cluster.RaftID = *raftID
	}
	if set["raft-bind"] {
		cfg.Cluster.Bind = *raftBind
		cfg.Cluster.Enabled = *raftBind != ""
	}
	if set["peers"] {
		cfg.Cluster.Peers = config.SplitList(*peers)
	}
	if set["raft-log"] {
		cfg.Cluster.LogLevel = *raftLog
	}

	if cfg.Manifest == "" {
		fs.Usage()
		return nil, modeServe, fmt.Errorf("manifest URL is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, modeServe, err
	}

	m := modeServe
	switch {
	case *list && *interactive:
		return nil, modeServe, fmt.Errorf("--list and --tui are mutually exclusive")
	case *list:
		m = modeList
		cfg.Cluster.Enabled = false
	case *interactive:
		m = modeTUI
	}

	return cfg, m, nil
}

func run(cfg *config.Config, m mode, logger *slog.Logger) error {
	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if m == modeList {
		fmt.Print(renderRenditions(a.Selector.List()))
		return nil
	}

	if a.Cluster != nil {
		go func() {
			if err := a.SeedCluster(ctx, 30*time.Second); err != nil {
				logger.Warn("cluster state not seeded", "error", err)
			}
		}()
	}

	if m == modeTUI {
		go func() {
			if err := a.Server.Start(ctx); err != nil {
				logger.Error("HTTP server error", "error", err)
			}
		}()
		err := tui.Run(ctx, tui.NewPicker(a.Selector, cfg.Manifest), a.Bus)
		cancel()
		return err
	}

	logger.Info("rendition control ready",
		"renditions", fmt.Sprintf("http://localhost:%d/renditions", cfg.Port),
		"master_url", fmt.Sprintf("http://localhost:%d/master.m3u8", cfg.Port),
		"health", fmt.Sprintf("http://localhost:%d/health", cfg.Port),
	)

	// Start server (blocks until shutdown)
	return a.Server.Start(ctx)
}
