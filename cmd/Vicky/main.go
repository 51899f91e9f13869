package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/BTreeMap/Vicky/internal/api"
	"github.com/BTreeMap/Vicky/internal/cloudapi"
	"github.com/BTreeMap/Vicky/internal/flow"
	"github.com/BTreeMap/Vicky/internal/genai"
	"github.com/BTreeMap/Vicky/internal/lockfile"
	"github.com/BTreeMap/Vicky/internal/messaging"
	"github.com/BTreeMap/Vicky/internal/metrics"
	"github.com/BTreeMap/Vicky/internal/scheduler"
	"github.com/BTreeMap/Vicky/internal/store"
	"github.com/BTreeMap/Vicky/internal/twiliowhatsapp"
	"github.com/BTreeMap/Vicky/internal/util"
	"github.com/BTreeMap/Vicky/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir holds the lock file and any file-based databases.
	DefaultStateDir = "/var/lib/vicky"
	// DefaultSessionDBFileName is the SQLite session store filename.
	DefaultSessionDBFileName = "vicky.db"
	// DefaultWhatsAppDBFileName is the whatsmeow device store filename.
	DefaultWhatsAppDBFileName = "whatsmeow.db"
	// DefaultSessionTTL expires abandoned funnels.
	DefaultSessionTTL = 24 * time.Hour
)

// Messaging providers accepted by MESSAGING_PROVIDER.
const (
	ProviderCloud     = "cloud"
	ProviderTwilio    = "twilio"
	ProviderWhatsmeow = "whatsmeow"
)

func main() {
	config := loadEnvironmentConfig()

	flags, err := parseCommandLineFlags(config, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	initializeLogger(flags.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping Vicky", "provider", flags.Provider, "session_store", flags.SessionStore, "api_addr", flags.APIAddr)
	if err := run(ctx, flags); err != nil {
		slog.Error("Vicky failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Vicky exited successfully")
}

// Config holds environment configuration. Flags override it.
type Config struct {
	Provider       string
	MetaToken      string
	PhoneID        string
	VerifyToken    string
	AppSecret      string
	AdvisorNumber  string
	OpenAIKey      string
	OpenAIModel    string
	KnowledgeFile  string
	TwilioSID      string
	TwilioToken    string
	TwilioFrom     string
	TwilioURL      string
	SessionStore   string
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	WhatsAppDSN    string
	StateDir       string
	APIAddr        string
	MinPension     float64
	MinLoan        float64
	CollectContact bool
	SessionTTL     time.Duration
	PurgeSchedule  string
	LogLevel       string

	QROutput    string
	NumericCode bool
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		Provider:       strings.ToLower(util.GetEnv(ProviderCloud, "MESSAGING_PROVIDER")),
		MetaToken:      os.Getenv("META_TOKEN"),
		PhoneID:        os.Getenv("WABA_PHONE_ID"),
		VerifyToken:    os.Getenv("VERIFY_TOKEN"),
		AppSecret:      os.Getenv("META_APP_SECRET"),
		AdvisorNumber:  util.GetEnv(messaging.DefaultAdvisorNumber, "ADVISOR_NUMBER"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    os.Getenv("OPENAI_MODEL"),
		KnowledgeFile:  os.Getenv("KNOWLEDGE_FILE"),
		TwilioSID:      os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:     os.Getenv("TWILIO_FROM_NUMBER"),
		TwilioURL:      os.Getenv("TWILIO_WEBHOOK_URL"),
		SessionStore:   strings.ToLower(util.GetEnv(store.BackendMemory, "SESSION_STORE")),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		WhatsAppDSN:    os.Getenv("WHATSAPP_DB_DSN"),
		StateDir:       util.GetEnv(DefaultStateDir, "VICKY_STATE_DIR"),
		APIAddr:        apiAddrFromEnv(),
		MinPension:     util.ParseFloatEnv("MIN_PENSION", flow.DefaultMinPension),
		MinLoan:        util.ParseFloatEnv("MIN_LOAN", flow.DefaultMinLoan),
		CollectContact: util.ParseBoolEnv("COLLECT_CONTACT", false),
		SessionTTL:     util.ParseDurationEnv("SESSION_TTL", DefaultSessionTTL),
		PurgeSchedule:  util.GetEnv(scheduler.DefaultMaintenanceSchedule, "PURGE_SCHEDULE"),
		LogLevel:       util.GetEnv("debug", "LOG_LEVEL"),
	}

	slog.Debug("environment variables loaded",
		"MESSAGING_PROVIDER", config.Provider,
		"META_TOKEN_SET", config.MetaToken != "",
		"WABA_PHONE_ID", config.PhoneID,
		"VERIFY_TOKEN_SET", config.VerifyToken != "",
		"META_APP_SECRET_SET", config.AppSecret != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"SESSION_STORE", config.SessionStore,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"VICKY_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr)

	return config
}

// apiAddrFromEnv prefers API_ADDR and accepts a bare PORT as hosting platforms set it.
func apiAddrFromEnv() string {
	if addr := util.GetEnv("", "API_ADDR"); addr != "" {
		return addr
	}
	if port := util.GetEnv("", "PORT"); port != "" {
		return ":" + strings.TrimPrefix(port, ":")
	}
	return api.DefaultServerAddress
}

// parseCommandLineFlags parses args with environment defaults.
func parseCommandLineFlags(config Config, args []string) (Config, error) {
	fs := flag.NewFlagSet("vicky", flag.ContinueOnError)
	fs.StringVar(&config.Provider, "provider", config.Provider, "messaging provider: cloud, twilio or whatsmeow (overrides $MESSAGING_PROVIDER)")
	fs.StringVar(&config.StateDir, "state-dir", config.StateDir, "state directory for Vicky data (overrides $VICKY_STATE_DIR)")
	fs.StringVar(&config.SessionStore, "session-store", config.SessionStore, "session store: memory, sqlite, postgres or redis (overrides $SESSION_STORE)")
	fs.StringVar(&config.DatabaseURL, "db-dsn", config.DatabaseURL, "session database DSN (overrides $DATABASE_URL)")
	fs.StringVar(&config.RedisAddr, "redis-addr", config.RedisAddr, "Redis address (overrides $REDIS_ADDR)")
	fs.StringVar(&config.APIAddr, "api-addr", config.APIAddr, "API server address (overrides $API_ADDR and $PORT)")
	fs.StringVar(&config.AdvisorNumber, "advisor-number", config.AdvisorNumber, "WhatsApp number that receives leads (overrides $ADVISOR_NUMBER)")
	fs.StringVar(&config.OpenAIKey, "openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)")
	fs.StringVar(&config.KnowledgeFile, "knowledge-file", config.KnowledgeFile, "plain-text reference for free-form answers (overrides $KNOWLEDGE_FILE)")
	fs.Float64Var(&config.MinPension, "min-pension", config.MinPension, "minimum monthly pension (overrides $MIN_PENSION)")
	fs.Float64Var(&config.MinLoan, "min-loan", config.MinLoan, "minimum loan amount (overrides $MIN_LOAN)")
	fs.BoolVar(&config.CollectContact, "collect-contact", config.CollectContact, "ask for name, phone and city before closing (overrides $COLLECT_CONTACT)")
	fs.DurationVar(&config.SessionTTL, "session-ttl", config.SessionTTL, "expire idle sessions after this long, 0 disables (overrides $SESSION_TTL)")
	fs.StringVar(&config.PurgeSchedule, "purge-schedule", config.PurgeSchedule, "cron schedule for purging expired sessions, \"off\" disables (overrides $PURGE_SCHEDULE)")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "debug, info, warn or error (overrides $LOG_LEVEL)")
	fs.StringVar(&config.QROutput, "qr-output", config.QROutput, "path to write the whatsmeow login QR code")
	fs.BoolVar(&config.NumericCode, "numeric-code", config.NumericCode, "use a numeric whatsmeow login code instead of a QR code")

	if err := fs.Parse(args); err != nil {
		return config, err
	}
	config.Provider = strings.ToLower(config.Provider)
	config.SessionStore = strings.ToLower(config.SessionStore)
	return config, nil
}

// initializeLogger installs a text handler on stdout at the named level.
func initializeLogger(level string) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(level)}))
	slog.SetDefault(logger)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

// run wires every component and blocks until ctx is cancelled or the server fails.
func run(ctx context.Context, config Config) error {
	lock, err := lockfile.AcquireLock(config.StateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := store.Open(config.SessionStore, buildStoreOptions(config)...)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer st.Close()

	if err := startMaintenance(ctx, config, st); err != nil {
		return err
	}

	svc, twilioSvc, err := buildMessagingService(ctx, config)
	if err != nil {
		return err
	}

	fm := metrics.NewFunnelMetrics(nil)
	dispatcherOpts := []messaging.DispatcherOption{
		messaging.WithAdvisorNumber(config.AdvisorNumber),
		messaging.WithMetrics(fm),
	}
	if answerer := buildAnswerer(config); answerer != nil {
		dispatcherOpts = append(dispatcherOpts, messaging.WithAnswerer(answerer))
	}
	d := messaging.NewDispatcher(svc, flow.NewManager(st, buildFlowConfig(config)), st, dispatcherOpts...)

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start messaging service: %w", err)
	}
	defer svc.Stop()
	go d.Run(ctx)

	apiOpts := buildAPIOptions(config, fm)
	if twilioSvc != nil {
		apiOpts = append(apiOpts, api.WithTwilio(twilioSvc))
	}
	return api.NewServer(d, apiOpts...).Run(ctx)
}

// startMaintenance schedules the purge job when the store supports it.
func startMaintenance(ctx context.Context, config Config, st store.Store) error {
	purger, ok := st.(store.Purger)
	if !ok || config.PurgeSchedule == "" || strings.EqualFold(config.PurgeSchedule, "off") {
		slog.Debug("Store maintenance disabled", "schedule", config.PurgeSchedule)
		return nil
	}
	sched := scheduler.NewScheduler()
	err := sched.AddJob(config.PurgeSchedule, "purge-expired", func(ctx context.Context) error {
		_, err := store.PurgeExpired(ctx, purger, time.Now(), config.SessionTTL, store.DefaultDedupRetention)
		return err
	})
	if err != nil {
		return err
	}
	go sched.Run(ctx)
	return nil
}

// buildStoreOptions constructs session store options for the selected backend.
func buildStoreOptions(config Config) []store.Option {
	opts := []store.Option{store.WithSessionTTL(config.SessionTTL)}
	switch config.SessionStore {
	case store.BackendSQLite:
		dsn := config.DatabaseURL
		if dsn == "" || store.DetectDSNType(dsn) == store.BackendPostgres {
			dsn = filepath.Join(config.StateDir, DefaultSessionDBFileName)
			slog.Debug("No SQLite DSN provided, using state directory", "sqlite_path", dsn)
		}
		opts = append(opts, store.WithSQLiteDSN(dsn))
	case store.BackendPostgres:
		opts = append(opts, store.WithPostgresDSN(config.DatabaseURL))
	case store.BackendRedis:
		opts = append(opts, store.WithRedisAddr(config.RedisAddr), store.WithRedisPassword(config.RedisPassword))
	}
	return opts
}

func buildFlowConfig(config Config) flow.Config {
	return flow.Config{
		MinPension:     config.MinPension,
		MinLoan:        config.MinLoan,
		CollectContact: config.CollectContact,
	}
}

// whatsAppDSN defaults the device store to SQLite in the state directory.
func whatsAppDSN(config Config) string {
	if config.WhatsAppDSN != "" {
		return config.WhatsAppDSN
	}
	return "file:" + filepath.Join(config.StateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
}

// buildMessagingService constructs the provider. The Twilio service is also
// returned on its own because its webhook is mounted on the API server.
func buildMessagingService(ctx context.Context, config Config) (messaging.Service, *messaging.TwilioService, error) {
	switch config.Provider {
	case "", ProviderCloud:
		client := cloudapi.NewClient(cloudapi.WithToken(config.MetaToken), cloudapi.WithPhoneID(config.PhoneID))
		if !client.Configured() {
			slog.Warn("Cloud API credentials missing; replies will fail", "meta_token_set", config.MetaToken != "", "phone_id_set", config.PhoneID != "")
		}
		return messaging.NewCloudService(client), nil, nil
	case ProviderTwilio:
		client, err := twiliowhatsapp.NewClient(
			twiliowhatsapp.WithAccountSID(config.TwilioSID),
			twiliowhatsapp.WithAuthToken(config.TwilioToken),
			twiliowhatsapp.WithFromWhats(config.TwilioFrom),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("create Twilio client: %w", err)
		}
		var opts []messaging.TwilioOption
		if config.TwilioURL != "" {
			opts = append(opts, messaging.WithTwilioSignature(config.TwilioToken, config.TwilioURL))
		}
		svc := messaging.NewTwilioService(client, opts...)
		return svc, svc, nil
	case ProviderWhatsmeow:
		waOpts := []whatsapp.Option{whatsapp.WithDBDSN(whatsAppDSN(config))}
		if config.QROutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(config.QROutput))
		}
		if config.NumericCode {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(ctx, waOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create whatsmeow client: %w", err)
		}
		return messaging.NewWhatsAppService(client), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown messaging provider %q", config.Provider)
	}
}

// buildAnswerer returns nil when free-form answers are disabled.
func buildAnswerer(config Config) messaging.Answerer {
	genaiOpts := []genai.Option{genai.WithAPIKey(config.OpenAIKey)}
	if config.OpenAIModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(config.OpenAIModel))
	}
	client, err := genai.NewClient(genaiOpts...)
	if err != nil {
		if errors.Is(err, genai.ErrMissingAPIKey) {
			slog.Info("No OpenAI API key; free-form questions get the menu")
		} else {
			slog.Warn("GenAI client unavailable", "error", err)
		}
		return nil
	}
	knowledge, err := genai.LoadKnowledge(config.KnowledgeFile)
	if err != nil {
		slog.Warn("Knowledge file unreadable, answering without it", "error", err)
	}
	return genai.NewKnowledgeAnswerer(client, knowledge)
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(config Config, fm *metrics.FunnelMetrics) []api.Option {
	apiOpts := []api.Option{api.WithMetrics(fm)}
	if config.APIAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(config.APIAddr))
	}
	if config.VerifyToken != "" {
		apiOpts = append(apiOpts, api.WithVerifyToken(config.VerifyToken))
	}
	if config.AppSecret != "" {
		apiOpts = append(apiOpts, api.WithAppSecret(config.AppSecret))
	} else {
		slog.Warn("META_APP_SECRET not set; webhook signatures are not verified")
	}
	return apiOpts
}
