// Package crowdplay parses command flags and composes the orchestrator: the
// settings store, chat transports, merge engine, game client, and bridge.
package crowdplay

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/crowdplay/internal/ai"
	"github.com/louisbranch/crowdplay/internal/chat"
	"github.com/louisbranch/crowdplay/internal/game"
	"github.com/louisbranch/crowdplay/internal/merge"
	entrypoint "github.com/louisbranch/crowdplay/internal/platform/cmd"
	"github.com/louisbranch/crowdplay/internal/platform/timeouts"
	"github.com/louisbranch/crowdplay/internal/session/app"
	"github.com/louisbranch/crowdplay/internal/storage"
	"github.com/louisbranch/crowdplay/internal/storage/sqlite"
	"github.com/louisbranch/crowdplay/internal/transport/bridge"
	"github.com/louisbranch/crowdplay/internal/transport/twitch"
)

// Config holds crowdplay command configuration.
type Config struct {
	HTTPAddr      string        `env:"CROWDPLAY_HTTP_ADDR"             envDefault:":8090"`
	DBPath        string        `env:"CROWDPLAY_DB_PATH"               envDefault:"crowdplay.db"`
	TwitchNick    string        `env:"CROWDPLAY_TWITCH_NICK"`
	TwitchToken   string        `env:"CROWDPLAY_TWITCH_TOKEN"`
	TwitchChannel string        `env:"CROWDPLAY_TWITCH_CHANNEL"`
	GameBaseURL   string        `env:"CROWDPLAY_GAME_BASE_URL"         envDefault:"http://localhost:8082"`
	GameAuthToken string        `env:"CROWDPLAY_GAME_AUTH_TOKEN"`
	OpenAIAPIKey  string        `env:"CROWDPLAY_OPENAI_API_KEY"`
	OpenAIURL     string        `env:"CROWDPLAY_OPENAI_RESPONSES_URL"`
	PartyName     string        `env:"CROWDPLAY_PARTY_NAME"`
	Model         string        `env:"CROWDPLAY_MODEL"`
	PollInterval  time.Duration `env:"CROWDPLAY_CONTEXT_POLL_INTERVAL" envDefault:"30s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "bridge HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "settings database path")
	fs.StringVar(&cfg.TwitchNick, "twitch-nick", cfg.TwitchNick, "twitch bot login name")
	fs.StringVar(&cfg.TwitchChannel, "twitch-channel", cfg.TwitchChannel, "twitch channel to join")
	fs.StringVar(&cfg.GameBaseURL, "game-base-url", cfg.GameBaseURL, "game service base URL")
	fs.StringVar(&cfg.PartyName, "party", cfg.PartyName, "party name override")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "language model override; empty means tally mode")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the orchestrator and serves until ctx is done.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceCrowdplay, func(ctx context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open settings store: %w", err)
		}
		defer store.Close()

		settings, err := loadSettings(ctx, store, cfg)
		if err != nil {
			return err
		}

		var invoker merge.Invoker
		if cfg.OpenAIAPIKey != "" && settings.Model != "" {
			invoker = ai.NewClient(ai.Config{
				ResponsesURL: cfg.OpenAIURL,
				APIKey:       cfg.OpenAIAPIKey,
			})
		} else {
			log.Print("no model configured; merging by tally")
		}

		gameClient := game.NewHTTPClient(game.HTTPConfig{
			BaseURL:   cfg.GameBaseURL,
			AuthToken: cfg.GameAuthToken,
		})

		// The twitch client and the coordinator reference each other: chat
		// events flow in, announcements flow out. The handler closure defers
		// the coordinator lookup until the first event, which cannot arrive
		// before wiring completes.
		var coordinator *app.Coordinator
		twitchClient, err := twitch.New(twitch.Config{
			Nick:    cfg.TwitchNick,
			Token:   cfg.TwitchToken,
			Channel: cfg.TwitchChannel,
		}, func(event chat.Event) { coordinator.HandleChatEvent(event) })
		if err != nil {
			return fmt.Errorf("build twitch client: %w", err)
		}

		sink := &deferredSink{}
		coordinator, err = app.New(app.Config{
			Settings: settings,
			Game:     gameClient,
			Chat:     twitchClient,
			Merger:   merge.NewEngine(invoker, nil),
			Sink:     sink,
		})
		if err != nil {
			return fmt.Errorf("build coordinator: %w", err)
		}

		return serve(ctx, cfg, settings, coordinator, twitchClient, gameClient, sink)
	})
}

// loadSettings reads persisted operator settings, seeding defaults on first
// run. Party and model overrides from the environment win for this process
// but are not written back.
func loadSettings(ctx context.Context, store storage.SettingsStore, cfg Config) (storage.Settings, error) {
	settings, err := store.LoadSettings(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		settings = storage.DefaultSettings()
		if cfg.PartyName != "" {
			settings.PartyName = cfg.PartyName
		}
		if err := store.SaveSettings(ctx, settings); err != nil {
			return storage.Settings{}, fmt.Errorf("seed settings: %w", err)
		}
	case err != nil:
		return storage.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	if cfg.PartyName != "" {
		settings.PartyName = cfg.PartyName
	}
	if cfg.Model != "" {
		settings.Model = cfg.Model
	}
	return settings.Normalize(), nil
}

func serve(ctx context.Context, cfg Config, settings storage.Settings, coordinator *app.Coordinator, twitchClient *twitch.Client, gameClient game.Client, sink *deferredSink) error {
	bridgeServer := bridge.NewServer(coordinator)
	sink.set(bridgeServer)

	poller := game.NewPoller(gameClient, settings.PartyName, cfg.PollInterval, coordinator.UpdateGameContext)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           bridgeServer.Handler(),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return coordinator.Run(groupCtx) })
	group.Go(func() error { return twitchClient.Run(groupCtx) })
	group.Go(func() error { return poller.Run(groupCtx) })
	group.Go(func() error {
		log.Printf("bridge listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve bridge: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// deferredSink breaks the construction cycle between the coordinator, which
// needs a snapshot sink, and the bridge server, which needs the coordinator.
// The target is set once during wiring, before anything broadcasts.
type deferredSink struct {
	mu     sync.Mutex
	target app.SnapshotSink
}

func (s *deferredSink) set(target app.SnapshotSink) {
	s.mu.Lock()
	s.target = target
	s.mu.Unlock()
}

// Broadcast forwards to the wired sink, dropping snapshots sent before wiring.
func (s *deferredSink) Broadcast(snapshot app.Snapshot) {
	s.mu.Lock()
	target := s.target
	s.mu.Unlock()
	if target != nil {
		target.Broadcast(snapshot)
	}
}
