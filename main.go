// Command chatdeck is the live chat client core. It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Builds the emote catalog, recency tracker, and message pipeline.
//   - Opens a chat session over IRC (anonymous when no credentials are set)
//     and backfills recent history.
//   - Starts the OAuth token refresher for the stored chat identity.
//   - Exposes an HTTP surface with /healthz, /readyz, /status, /metrics,
//     emote endpoints, viewer preferences, and chat send.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/chatdeck/chat"
	"github.com/onnwee/chatdeck/config"
	"github.com/onnwee/chatdeck/db"
	"github.com/onnwee/chatdeck/emotes"
	"github.com/onnwee/chatdeck/message"
	"github.com/onnwee/chatdeck/oauth"
	"github.com/onnwee/chatdeck/server"
	"github.com/onnwee/chatdeck/telemetry"
	"github.com/onnwee/chatdeck/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production
	// relies on real env).
	_ = godotenv.Load()

	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()

	// OpenTelemetry tracing is optional; requires OTEL_EXPORTER_OTLP_ENDPOINT.
	shutdown, err := telemetry.InitTracing("chatdeck", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Best-effort: warm up a Twitch app access token when client id/secret
	// are provided. This token backs Helix API calls (emotes, history,
	// channel metadata), not IRC chat.
	appTokens := &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret}
	if cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" {
		ctx2, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		if tok, err := appTokens.Get(ctx2); err != nil {
			slog.Warn("twitch app token fetch failed", slog.Any("err", err))
		} else if len(tok) > 6 {
			masked := "***" + tok[len(tok)-6:]
			slog.Info("twitch app token acquired", slog.String("tail", masked))
		}
		cancel()
	}

	database, err := db.Connect()
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Versioned migrations first, embedded SQL as fallback for deployments
	// without a migrations directory.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting fallback to embedded SQL",
			slog.Any("err", err),
			slog.String("component", "db_migrate"))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
			os.Exit(1)
		}
	}

	// Root context with graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Remote collaborator client. It serves the emote tiers and the chat
	// history backfill.
	api := &twitchapi.Client{AppTokenSource: appTokens, ClientID: cfg.TwitchClientID}

	catalog := emotes.NewCatalog(api)
	// Retryable fetch failures (timeouts, 5xx, rate limits) keep the tier
	// uncached so the next call retries the remote; fatal ones cache the
	// fallback.
	catalog.SetErrorClassifier(twitchapi.IsRetryableError)
	recent := emotes.NewRecencyTracker(ctx, &db.RecencyStore{DB: database}, cfg.ProfileKey)
	pipeline := message.NewPipeline(catalog, recent)

	// Prefetch the merged emote set so the picker and pipeline start warm.
	// The channel tier is keyed by the broadcaster's id, which has to be
	// resolved from the joined channel's login first.
	go func() {
		channelID := ""
		if cfg.TwitchChannel != "" {
			rctx, cancel := context.WithTimeout(ctx, 8*time.Second)
			user, err := api.GetUserByLogin(rctx, cfg.TwitchChannel)
			cancel()
			if err != nil {
				slog.Warn("broadcaster lookup failed, skipping channel emotes",
					slog.String("channel", cfg.TwitchChannel), slog.Any("err", err))
			} else {
				channelID = user.ID
			}
		}
		catalog.GetAll(ctx, channelID, cfg.SubscriptionTier)
	}()

	// Viewer display preferences, loaded once at startup; the HTTP surface
	// saves mutations best-effort.
	prefsStore := &db.PrefsStore{DB: database}
	if prefs, err := prefsStore.Load(ctx, cfg.ProfileKey); err != nil {
		slog.Warn("viewer prefs load failed, using defaults", slog.Any("err", err))
	} else {
		slog.Info("viewer prefs loaded",
			slog.Bool("show_timestamps", prefs.ShowTimestamps),
			slog.Bool("compact_mode", prefs.CompactMode))
	}

	session := chat.NewSession(chat.IRCFactory(), chat.Hooks{
		Append: func(m message.Message) {
			switch v := m.(type) {
			case message.Standard:
				slog.Info("chat", slog.String("author", v.Author.Name), slog.String("text", pipeline.RenderText(v.Text, v.Emotes)))
			case message.Donation:
				slog.Info("donation", slog.String("author", v.Author.Name), slog.Int("amount", v.Amount), slog.String("text", pipeline.RenderText(v.Text, v.Emotes)))
			case message.System:
				slog.Info("system", slog.String("severity", string(v.Severity)), slog.String("content", v.Content))
			}
		},
		Clear: func() {
			slog.Info("chat cleared")
		},
		SelfAffected: func(m message.System) {
			slog.Warn("moderation action against this user", slog.String("content", m.Content))
		},
		Notice: func(err error) {
			slog.Warn("session notice", slog.Any("err", err))
		},
	})

	if cfg.TwitchChannel != "" {
		identity := chat.Identity{UserID: cfg.TwitchUserID, Username: cfg.TwitchUsername, Token: cfg.TwitchOAuthToken}
		if err := cfg.ValidateChatReady(); err != nil {
			slog.Info("chat credentials incomplete, connecting anonymously (read-only)", slog.Any("err", err))
			identity = chat.Identity{}
		}
		if err := session.Open(ctx, cfg.TwitchChannel, identity); err != nil {
			slog.Error("chat session open failed", slog.Any("err", err))
		} else if err := session.LoadHistory(ctx, api, cfg.HistoryLimit); err != nil {
			slog.Warn("history backfill failed", slog.Any("err", err))
		}
		defer session.Close()
	} else {
		slog.Info("TWITCH_CHANNEL not set, chat session disabled")
	}

	// Background refresher for the stored chat identity token.
	if cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" {
		userCfg := twitchapi.UserOAuthConfig(cfg.TwitchClientID, cfg.TwitchClientSecret, cfg.TwitchRedirectURI, cfg.TwitchScopes)
		oauth.StartRefresher(ctx, database, "twitch", 5*time.Minute, 15*time.Minute, func(rctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
			return twitchapi.RefreshUserToken(rctx, userCfg, refreshToken)
		})
	}

	composer := chat.NewComposer(session, pipeline, catalog, cfg.SearchDebounce, cfg.HoverDelay)

	handlers := server.NewHandlers(database, session, composer, catalog, recent, prefsStore, cfg.ProfileKey, cfg.TwitchChannel)
	go func() {
		if err := server.Start(ctx, handlers, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
}

// setupLogging configures the default slog handler from LOG_LEVEL and
// LOG_FORMAT (text | json).
func setupLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT"))
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))
}
