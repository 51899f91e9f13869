package main

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/BTreeMap/Vicky/internal/api"
	"github.com/BTreeMap/Vicky/internal/flow"
	"github.com/BTreeMap/Vicky/internal/messaging"
	"github.com/BTreeMap/Vicky/internal/scheduler"
	"github.com/BTreeMap/Vicky/internal/store"
	"github.com/BTreeMap/Vicky/internal/twiliowhatsapp"
)

var configEnv = []string{
	"MESSAGING_PROVIDER", "META_TOKEN", "WABA_PHONE_ID", "VERIFY_TOKEN", "META_APP_SECRET",
	"ADVISOR_NUMBER", "OPENAI_API_KEY", "OPENAI_MODEL", "KNOWLEDGE_FILE",
	"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_FROM_NUMBER", "TWILIO_WEBHOOK_URL",
	"SESSION_STORE", "DATABASE_URL", "REDIS_ADDR", "REDIS_PASSWORD", "WHATSAPP_DB_DSN",
	"VICKY_STATE_DIR", "API_ADDR", "PORT", "MIN_PENSION", "MIN_LOAN", "COLLECT_CONTACT",
	"SESSION_TTL", "PURGE_SCHEDULE", "LOG_LEVEL",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnv {
		t.Setenv(key, "")
	}
}

func TestLoadEnvironmentConfigDefaults(t *testing.T) {
	clearConfigEnv(t)
	config := loadEnvironmentConfig()

	if config.StateDir != DefaultStateDir {
		t.Errorf("Expected default state dir %q, got %q", DefaultStateDir, config.StateDir)
	}
	if config.Provider != ProviderCloud {
		t.Errorf("Expected default provider %q, got %q", ProviderCloud, config.Provider)
	}
	if config.SessionStore != store.BackendMemory {
		t.Errorf("Expected memory session store, got %q", config.SessionStore)
	}
	if config.AdvisorNumber != messaging.DefaultAdvisorNumber {
		t.Errorf("Expected default advisor %q, got %q", messaging.DefaultAdvisorNumber, config.AdvisorNumber)
	}
	if config.APIAddr != api.DefaultServerAddress {
		t.Errorf("Expected default API address, got %q", config.APIAddr)
	}
	if config.MinPension != flow.DefaultMinPension || config.MinLoan != flow.DefaultMinLoan {
		t.Errorf("Unexpected minimums: pension %v loan %v", config.MinPension, config.MinLoan)
	}
	if config.CollectContact {
		t.Error("contact collection should be off by default")
	}
	if config.PurgeSchedule != scheduler.DefaultMaintenanceSchedule {
		t.Errorf("Expected default purge schedule, got %q", config.PurgeSchedule)
	}
	if config.SessionTTL != DefaultSessionTTL {
		t.Errorf("Expected default TTL %v, got %v", DefaultSessionTTL, config.SessionTTL)
	}
}

func TestLoadEnvironmentConfigOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("MESSAGING_PROVIDER", "Twilio")
	t.Setenv("SESSION_STORE", "REDIS")
	t.Setenv("VICKY_STATE_DIR", "/tmp/custom_vicky")
	t.Setenv("ADVISOR_NUMBER", "5215550000000")
	t.Setenv("MIN_PENSION", "6,500")
	t.Setenv("MIN_LOAN", "50000")
	t.Setenv("COLLECT_CONTACT", "true")
	t.Setenv("SESSION_TTL", "30m")

	config := loadEnvironmentConfig()
	if config.Provider != ProviderTwilio || config.SessionStore != store.BackendRedis {
		t.Errorf("provider/store not lowercased: %q %q", config.Provider, config.SessionStore)
	}
	if config.StateDir != "/tmp/custom_vicky" || config.AdvisorNumber != "5215550000000" {
		t.Errorf("unexpected config: %+v", config)
	}
	if config.MinPension != 6500 || config.MinLoan != 50000 || !config.CollectContact || config.SessionTTL != 30*time.Minute {
		t.Errorf("unexpected funnel config: %+v", config)
	}
}

func TestAPIAddrFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		apiAddr string
		port    string
		want    string
	}{
		{"default", "", "", api.DefaultServerAddress},
		{"port only", "", "9090", ":9090"},
		{"api addr wins", "127.0.0.1:8081", "9090", "127.0.0.1:8081"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("API_ADDR", tt.apiAddr)
			t.Setenv("PORT", tt.port)
			if got := apiAddrFromEnv(); got != tt.want {
				t.Errorf("apiAddrFromEnv() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseCommandLineFlags(t *testing.T) {
	base := Config{Provider: ProviderCloud, SessionStore: store.BackendMemory, MinLoan: flow.DefaultMinLoan}
	config, err := parseCommandLineFlags(base, []string{
		"-provider", "WHATSMEOW",
		"-session-store", "sqlite",
		"-min-loan", "45000",
		"-collect-contact",
		"-session-ttl", "2h",
		"-numeric-code",
	})
	if err != nil {
		t.Fatalf("parseCommandLineFlags: %v", err)
	}
	if config.Provider != ProviderWhatsmeow || config.SessionStore != store.BackendSQLite {
		t.Errorf("unexpected provider/store: %q %q", config.Provider, config.SessionStore)
	}
	if config.MinLoan != 45000 || !config.CollectContact || config.SessionTTL != 2*time.Hour || !config.NumericCode {
		t.Errorf("flags not applied: %+v", config)
	}

	if _, err := parseCommandLineFlags(base, []string{"-no-such-flag"}); err == nil {
		t.Error("unknown flag should fail")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelDebug,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"loud":    slog.LevelDebug,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func applyStoreOptions(opts []store.Option) store.Opts {
	var cfg store.Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func TestBuildStoreOptions(t *testing.T) {
	stateDir := t.TempDir()
	tests := []struct {
		name      string
		config    Config
		wantDSN   string
		wantRedis string
	}{
		{"memory", Config{SessionStore: store.BackendMemory}, "", ""},
		{"sqlite default path", Config{SessionStore: store.BackendSQLite, StateDir: stateDir}, filepath.Join(stateDir, DefaultSessionDBFileName), ""},
		{"sqlite explicit path", Config{SessionStore: store.BackendSQLite, DatabaseURL: "/data/s.db"}, "/data/s.db", ""},
		{"postgres", Config{SessionStore: store.BackendPostgres, DatabaseURL: "postgres://u:p@h/db"}, "postgres://u:p@h/db", ""},
		{"redis", Config{SessionStore: store.BackendRedis, RedisAddr: "localhost:6379"}, "", "localhost:6379"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.SessionTTL = time.Hour
			cfg := applyStoreOptions(buildStoreOptions(tt.config))
			if cfg.DSN != tt.wantDSN || cfg.RedisAddr != tt.wantRedis {
				t.Errorf("got DSN %q redis %q", cfg.DSN, cfg.RedisAddr)
			}
			if cfg.SessionTTL != time.Hour {
				t.Errorf("session TTL not passed: %v", cfg.SessionTTL)
			}
		})
	}
}

func TestBuildFlowConfig(t *testing.T) {
	got := buildFlowConfig(Config{MinPension: 6000, MinLoan: 45000, CollectContact: true})
	want := flow.Config{MinPension: 6000, MinLoan: 45000, CollectContact: true}
	if got != want {
		t.Errorf("buildFlowConfig = %+v, want %+v", got, want)
	}
}

func TestWhatsAppDSN(t *testing.T) {
	got := whatsAppDSN(Config{StateDir: "/srv/vicky"})
	if want := "file:/srv/vicky/whatsmeow.db?_foreign_keys=on"; got != want {
		t.Errorf("whatsAppDSN = %q, want %q", got, want)
	}
	if got := whatsAppDSN(Config{WhatsAppDSN: "postgres://x"}); got != "postgres://x" {
		t.Errorf("explicit DSN ignored: %q", got)
	}
}

func TestBuildMessagingService(t *testing.T) {
	clearConfigEnv(t)
	ctx := context.Background()

	svc, twilioSvc, err := buildMessagingService(ctx, Config{Provider: ProviderCloud, MetaToken: "t", PhoneID: "1"})
	if err != nil || twilioSvc != nil {
		t.Fatalf("cloud: svc=%T twilio=%v err=%v", svc, twilioSvc, err)
	}
	if _, ok := svc.(*messaging.CloudService); !ok {
		t.Errorf("expected *messaging.CloudService, got %T", svc)
	}

	svc, twilioSvc, err = buildMessagingService(ctx, Config{Provider: ProviderTwilio, TwilioSID: "AC1", TwilioToken: "tok", TwilioFrom: "+15550001111"})
	if err != nil || twilioSvc == nil || svc == nil {
		t.Fatalf("twilio: svc=%T twilio=%v err=%v", svc, twilioSvc, err)
	}

	if _, _, err := buildMessagingService(ctx, Config{Provider: ProviderTwilio}); !errors.Is(err, twiliowhatsapp.ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
	if _, _, err := buildMessagingService(ctx, Config{Provider: "telegram"}); err == nil {
		t.Error("unknown provider should fail")
	}
}

func TestBuildAnswererWithoutKey(t *testing.T) {
	clearConfigEnv(t)
	if a := buildAnswerer(Config{}); a != nil {
		t.Errorf("expected no answerer without an API key, got %T", a)
	}
	if a := buildAnswerer(Config{OpenAIKey: "sk-test", KnowledgeFile: filepath.Join(t.TempDir(), "missing.txt")}); a == nil {
		t.Error("an unreadable knowledge file should not disable answers")
	}
}

func TestBuildAPIOptions(t *testing.T) {
	if got := len(buildAPIOptions(Config{}, nil)); got != 1 {
		t.Errorf("expected only the metrics option, got %d", got)
	}
	if got := len(buildAPIOptions(Config{APIAddr: ":9000", VerifyToken: "v", AppSecret: "s"}, nil)); got != 4 {
		t.Errorf("expected 4 options, got %d", got)
	}
}

func TestStartMaintenance(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := store.NewInMemoryStore(time.Hour)

	tests := []struct {
		schedule string
		wantErr  bool
	}{
		{scheduler.DefaultMaintenanceSchedule, false},
		{"off", false},
		{"", false},
		{"every tuesday", true},
	}
	for _, tt := range tests {
		err := startMaintenance(ctx, Config{PurgeSchedule: tt.schedule, SessionTTL: time.Hour}, st)
		if (err != nil) != tt.wantErr {
			t.Errorf("startMaintenance(%q) error = %v, wantErr %v", tt.schedule, err, tt.wantErr)
		}
	}
}
