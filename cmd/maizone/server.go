package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/internetsb/maizone/internal/api"
	"github.com/internetsb/maizone/internal/config"
	"github.com/internetsb/maizone/internal/dedup"
	"github.com/internetsb/maizone/internal/diary"
	"github.com/internetsb/maizone/internal/engage"
	"github.com/internetsb/maizone/internal/llm"
	"github.com/internetsb/maizone/internal/persona"
	"github.com/internetsb/maizone/internal/prompt"
	"github.com/internetsb/maizone/internal/qzone"
	"github.com/internetsb/maizone/internal/reconcile"
	"github.com/internetsb/maizone/internal/schedule"
	"github.com/internetsb/maizone/internal/silence"
	"github.com/internetsb/maizone/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the maizone server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running maizone server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show maizone system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "maizone.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "maizone version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Without a configured token the management API gets an ephemeral one,
	// printed so the CLI can still reach it this session.
	apiToken := cfg.Server.AuthToken
	if apiToken == "" {
		apiToken = uuid.NewString()
		slog.Warn("no server.auth_token configured, using ephemeral token", "token", apiToken)
	}

	// Refuse to start twice. The health endpoint is authoritative; the PID
	// file may be stale after a crash.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	// A corrupt dedup file is logged, not fatal: the store reopens empty
	// and is rewritten on the next mutation.
	handled, err := dedup.Open(filepath.Join(cfg.Storage.DataDir, "handled_feeds.json"), cfg.Engage.HandledCapacity)
	if handled == nil {
		return fmt.Errorf("opening handled-feed store: %w", err)
	}
	if err != nil {
		slog.Warn("handled-feed store reset", "error", err)
	}
	replied, err := dedup.Open(filepath.Join(cfg.Storage.DataDir, "replied_comments.json"), cfg.Engage.RepliedCapacity)
	if replied == nil {
		return fmt.Errorf("opening replied-comment store: %w", err)
	}
	if err != nil {
		slog.Warn("replied-comment store reset", "error", err)
	}

	planning := schedule.NewPlanningDB(cfg.Storage.PlanningDBPath)
	defer planning.Close()

	// Remote clients.
	gateway := qzone.New(cfg.Gateway.BaseURL, cfg.Gateway.Token)
	if err := gateway.RenewCookies(ctx); err != nil {
		slog.Warn("cookie renewal failed, continuing with existing session", "error", err)
	}
	oracle := llm.New(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)

	// Engagement core.
	personaMgr := persona.NewManager(store)
	prompts := prompt.NewBuilder(nil, 0)
	cooldowns := engage.NewCooldownTracker(cfg.Schedule.PostCooldown(), cfg.Schedule.BrowseCooldown())
	gate := engage.NewGate(oracle, prompts, cooldowns, "", nil)
	poster := engage.NewPoster(oracle, prompts, gateway, store, personaMgr, cfg.Engage.TopicList())

	windows := silence.Parse(cfg.Engage.SilentHours)
	policy := reconcile.NewPolicy(reconcile.ListMode(cfg.Engage.ReadListMode), cfg.Engage.Owners())
	reconciler := reconcile.New(gateway, oracle, prompts, personaMgr, handled, replied, windows, policy, reconcile.Config{
		SelfID:              cfg.Gateway.SelfID,
		FetchCount:          cfg.Engage.FetchCount,
		AutoReply:           cfg.Engage.AutoReply,
		CommentProbability:  cfg.Engage.CommentProbability,
		LikeProbability:     cfg.Engage.LikeProbability,
		CommentDuringSilent: cfg.Engage.CommentDuringSilent,
		LikeDuringSilent:    cfg.Engage.LikeDuringSilent,
		PacingMin:           time.Duration(cfg.Engage.PacingMinSeconds) * time.Second,
		PacingMax:           time.Duration(cfg.Engage.PacingMaxSeconds) * time.Second,
	})

	diarySvc := diary.New(oracle, planning, store, gateway, personaMgr, prompts, diary.Config{
		Words:      cfg.Diary.Words,
		MinSources: cfg.Diary.MinSources,
		Publish:    cfg.Diary.Publish,
	})

	sched := engage.NewScheduler(gate, cooldowns, planning, poster, reconciler, diarySvc,
		cfg.Schedule.CheckInterval(), cfg.Schedule.DiaryTime)

	// Control surfaces.
	deps := api.AppDeps{
		Store:     store,
		Persona:   personaMgr,
		Poster:    poster,
		Browser:   reconciler,
		Diary:     diarySvc,
		Handled:   handled,
		Replied:   replied,
		Cooldowns: cooldowns,
		Token:     apiToken,
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port),
		Handler: api.NewAppHandler(deps),
	}
	mcpSrv := server.NewStreamableHTTPServer(api.NewMCPServer(api.MCPDeps{Deps: deps}))
	mcpAddr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.MCPPort)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("scheduler started", "interval", cfg.Schedule.CheckInterval())
		sched.Run(gctx)
		return nil
	})
	g.Go(func() error {
		slog.Info("control API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("control API: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("MCP server listening", "addr", mcpAddr)
		if err := mcpSrv.Start(mcpAddr); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("MCP server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("control API shutdown", "error", err)
		}
		if err := mcpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("MCP server shutdown", "error", err)
		}
		return nil
	})

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("maizone is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop maizone (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to maizone (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	// Check the LLM endpoint.
	llmResp, err := client.Get(cfg.LLM.BaseURL + "/models")
	if err != nil {
		printStatus("LLM", "not reachable at %s", cfg.LLM.BaseURL)
	} else {
		llmResp.Body.Close()
		printStatus("LLM", "running at %s (model %s)", cfg.LLM.BaseURL, cfg.LLM.Model)
	}

	// Check the QQ gateway.
	gwResp, err := client.Get(cfg.Gateway.BaseURL)
	if err != nil {
		printStatus("Gateway", "not reachable at %s", cfg.Gateway.BaseURL)
	} else {
		gwResp.Body.Close()
		printStatus("Gateway", "running at %s", cfg.Gateway.BaseURL)
	}

	// Cooldown and dedup state if the server is up.
	if cfg.Server.AuthToken != "" && resp != nil && resp.StatusCode == 200 {
		statusResp, err := apiGet(client, serverURL+"/status", cfg.Server.AuthToken)
		if err == nil {
			var st struct {
				PostCooldownRemaining   string `json:"post_cooldown_remaining"`
				BrowseCooldownRemaining string `json:"browse_cooldown_remaining"`
				HandledFeeds            int    `json:"handled_feeds"`
				RepliedFeeds            int    `json:"replied_feeds"`
			}
			if json.NewDecoder(statusResp.Body).Decode(&st) == nil {
				printStatus("Post cooldown", "%s remaining", st.PostCooldownRemaining)
				printStatus("Browse cooldown", "%s remaining", st.BrowseCooldownRemaining)
				printStatus("Handled feeds", "%d", st.HandledFeeds)
				printStatus("Replied feeds", "%d", st.RepliedFeeds)
			}
			statusResp.Body.Close()
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func apiGet(client *http.Client, url, token string) (*http.Response, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return client.Do(req)
}
