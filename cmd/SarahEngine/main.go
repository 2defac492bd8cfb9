package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/my21staff/SarahEngine/internal/api"
	"github.com/my21staff/SarahEngine/internal/flow"
	"github.com/my21staff/SarahEngine/internal/genai"
	"github.com/my21staff/SarahEngine/internal/messaging"
	"github.com/my21staff/SarahEngine/internal/scheduler"
	"github.com/my21staff/SarahEngine/internal/settings"
	"github.com/my21staff/SarahEngine/internal/store"
	"github.com/my21staff/SarahEngine/internal/twiliowhatsapp"
	"github.com/my21staff/SarahEngine/internal/util"
	"github.com/my21staff/SarahEngine/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for engine state data
	DefaultStateDir = "/var/lib/sarahengine"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "sarahengine.db"
	// DefaultFlushCron runs the quiet-hours flush every five minutes
	DefaultFlushCron = "*/5 * * * *"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping Sarah engine with configured modules")
	if err := run(ctx, flags); err != nil {
		slog.Error("Sarah engine failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Sarah engine exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	ConvexURL      string
	SettingsURL    string
	StateDir       string
	OpenAIKey      string
	APIAddr        string
	APIKey         string
	WorkspaceID    string
	Channel        string
	KapsoBaseURL   string
	KapsoAPIKey    string
	QuietFlushCron string
}

// Flags holds command line flag values
type Flags struct {
	qrOutput      *string
	stateDir      *string
	dbDSN         *string
	redisAddr     *string
	redisPassword *string
	convexURL     *string
	settingsURL   *string
	openaiKey     *string
	apiAddr       *string
	apiKey        *string
	workspaceID   *string
	channel       *string
	kapsoBaseURL  *string
	kapsoAPIKey   *string
	flushCron     *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("SARAH_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		ConvexURL:      os.Getenv("CONVEX_URL"),
		SettingsURL:    os.Getenv("SETTINGS_BASE_URL"),
		StateDir:       os.Getenv("SARAH_STATE_DIR"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		APIAddr:        os.Getenv("API_ADDR"),
		APIKey:         os.Getenv("API_KEY"),
		WorkspaceID:    os.Getenv("WORKSPACE_ID"),
		Channel:        os.Getenv("MESSAGING_CHANNEL"),
		KapsoBaseURL:   os.Getenv("KAPSO_BASE_URL"),
		KapsoAPIKey:    os.Getenv("KAPSO_API_KEY"),
		QuietFlushCron: os.Getenv("QUIET_FLUSH_CRON"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No SARAH_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.Channel == "" {
		config.Channel = "kapso"
	}
	if config.QuietFlushCron == "" {
		config.QuietFlushCron = DefaultFlushCron
	}

	// Without an explicit database URL, fall back to SQLite in the state directory
	// unless redis or convex backends are configured.
	if config.DatabaseURL == "" && config.RedisAddr == "" && config.ConvexURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No store backend configured, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"REDIS_ADDR_SET", config.RedisAddr != "",
		"CONVEX_URL_SET", config.ConvexURL != "",
		"SETTINGS_BASE_URL_SET", config.SettingsURL != "",
		"SARAH_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"MESSAGING_CHANNEL", config.Channel,
		"WORKSPACE_ID", config.WorkspaceID)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:      flag.String("qr-output", "", "path to write WhatsApp login QR code"),
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for engine data (overrides $SARAH_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN for the conversation store (overrides $DATABASE_URL)"),
		redisAddr:     flag.String("redis-addr", config.RedisAddr, "redis address for the conversation store (overrides $REDIS_ADDR)"),
		redisPassword: flag.String("redis-password", config.RedisPassword, "redis password (overrides $REDIS_PASSWORD)"),
		convexURL:     flag.String("convex-url", config.ConvexURL, "Convex site URL for the conversation store (overrides $CONVEX_URL)"),
		settingsURL:   flag.String("settings-url", config.SettingsURL, "base URL for workspace bot settings (overrides $SETTINGS_BASE_URL)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		apiKey:        flag.String("api-key", config.APIKey, "API key protecting the HTTP endpoints (overrides $API_KEY)"),
		workspaceID:   flag.String("workspace-id", config.WorkspaceID, "workspace attributed to inbound messages (overrides $WORKSPACE_ID)"),
		channel:       flag.String("channel", config.Channel, "messaging channel: kapso, twilio or whatsapp (overrides $MESSAGING_CHANNEL)"),
		kapsoBaseURL:  flag.String("kapso-base-url", config.KapsoBaseURL, "Kapso gateway base URL (overrides $KAPSO_BASE_URL)"),
		kapsoAPIKey:   flag.String("kapso-api-key", config.KapsoAPIKey, "Kapso gateway API key (overrides $KAPSO_API_KEY)"),
		flushCron:     flag.String("flush-cron", config.QuietFlushCron, "cron schedule for the quiet-hours flush (overrides $QUIET_FLUSH_CRON)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"redisAddr_set", *flags.redisAddr != "",
		"convexURL_set", *flags.convexURL != "",
		"settingsURL_set", *flags.settingsURL != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"channel", *flags.channel,
		"workspaceID", *flags.workspaceID)

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if *flags.dbDSN == "" || store.DetectDSNType(*flags.dbDSN) == "postgres" {
		return nil
	}
	stateDir := filepath.Dir(*flags.dbDSN)
	slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
		return err
	}
	return nil
}

// buildStore selects the conversation store backend: Convex, Redis, Postgres,
// SQLite, or in-memory as a last resort.
func buildStore(flags Flags) (store.Store, error) {
	switch {
	case *flags.convexURL != "":
		slog.Debug("Configuring Convex conversation store", "convex_url_set", true)
		return store.NewConvexStore(store.WithConvexBaseURL(*flags.convexURL))
	case *flags.redisAddr != "":
		slog.Debug("Configuring Redis conversation store", "redis_addr", *flags.redisAddr)
		return store.NewRedisStore(store.WithRedisAddr(*flags.redisAddr), store.WithRedisPassword(*flags.redisPassword))
	case *flags.dbDSN != "" && store.DetectDSNType(*flags.dbDSN) == "postgres":
		slog.Debug("Configuring PostgreSQL conversation store", "dsn_set", true)
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	case *flags.dbDSN != "":
		slog.Debug("Configuring SQLite conversation store", "db_path", *flags.dbDSN)
		return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
	default:
		slog.Debug("No store backend configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
}

// buildMessagingService selects the outbound messaging backend.
func buildMessagingService(flags Flags) (messaging.Service, error) {
	switch strings.ToLower(*flags.channel) {
	case "twilio":
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, err
		}
		return messaging.NewTwilioService(client), nil
	case "whatsapp":
		var waOpts []whatsapp.Option
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		waOpts = append(waOpts, whatsapp.WithDBDSN(filepath.Join(*flags.stateDir, "whatsmeow.db")))
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, err
		}
		return messaging.NewWhatsAppService(client), nil
	default:
		return messaging.NewKapsoService(
			messaging.WithKapsoBaseURL(*flags.kapsoBaseURL),
			messaging.WithKapsoAPIKey(*flags.kapsoAPIKey),
		)
	}
}

// run assembles the modules and serves until the context is cancelled.
func run(ctx context.Context, flags Flags) error {
	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	var settingsClient *settings.Client
	if *flags.settingsURL != "" {
		settingsClient, err = settings.NewClient(settings.WithBaseURL(*flags.settingsURL))
		if err != nil {
			return err
		}
	}

	composer := flow.NewComposer()
	if *flags.openaiKey != "" {
		gaClient, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
		if err != nil {
			return err
		}
		composer = flow.NewGenAIComposer(gaClient)
		slog.Info("GenAI reply composition enabled")
	} else {
		slog.Info("No OpenAI API key set, using template replies")
	}

	engine := flow.NewEngine(st,
		flow.WithSettingsClient(settingsClient),
		flow.WithComposer(composer),
	)

	baseService, err := buildMessagingService(flags)
	if err != nil {
		return err
	}
	msgService := messaging.NewQuietHoursService(baseService, settingsClient, *flags.workspaceID)

	if err := msgService.Start(ctx); err != nil {
		return err
	}
	defer msgService.Stop()

	dispatcher := messaging.NewInboundDispatcher(msgService, engine, *flags.workspaceID)
	go dispatcher.Run(ctx)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.AddJob(*flags.flushCron, func() {
		msgService.FlushDue(context.Background())
	}); err != nil {
		return err
	}

	server := api.NewServer(engine, st, msgService, dispatcher,
		api.WithAddr(*flags.apiAddr),
		api.WithAPIKey(*flags.apiKey),
		api.WithWorkspaceID(*flags.workspaceID),
	)
	return server.Run(ctx)
}
