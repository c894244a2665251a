package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging / Docs
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SWAGGER_ENABLED", "on")
	t.Setenv("API_BASE_PATH", "api/v1/") // no leading slash + trailing slash -> "/api/v1"

	// Storage
	t.Setenv("DB_PATH", "db.sqlite")
	t.Setenv("DB_TRACING", "true")
	t.Setenv("STORAGE_DIR", "/var/lib/documind")
	t.Setenv("MAX_UPLOAD_BYTES", "2048")

	// Background work
	t.Setenv("ASYNC_CORE_WORKERS", "2")
	t.Setenv("ASYNC_MAX_WORKERS", "4")
	t.Setenv("ASYNC_QUEUE_CAPACITY", "0")
	t.Setenv("ASYNC_KEEP_ALIVE", "5s")

	// Rate limiting
	t.Setenv("RATE_RPS", " 2.5 ")
	t.Setenv("RATE_BURST", "3")

	// Web protection
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	// Idempotency
	t.Setenv("IDEMPOTENCY_TTL", "48h")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Server
	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}

	// Logging / Docs
	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api/v1" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}

	// Storage
	if cfg.DBPath != "db.sqlite" || !cfg.DBTracing || cfg.StorageDir != "/var/lib/documind" || cfg.MaxUploadBytes != 2048 {
		t.Fatalf("storage fields unexpected: %+v", cfg)
	}

	// Background work
	want := AsyncConfig{CoreWorkers: 2, MaxWorkers: 4, QueueCapacity: 0, KeepAlive: 5 * time.Second, NamePrefix: "documind-async-"}
	if cfg.Async != want {
		t.Fatalf("async unexpected: %+v", cfg.Async)
	}

	// Rate limiting
	if cfg.RateRPS != 2.5 || cfg.RateBurst != 3 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}

	// Web protection
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}

	// Idempotency
	if cfg.IdempotencyTTL != 48*time.Hour {
		t.Fatalf("idempotency ttl unexpected: %v", cfg.IdempotencyTTL)
	}

	// OTEL
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"log level", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"blank port", map[string]string{"PORT": "   "}, "PORT must not be empty"},
		{"zero timeout", map[string]string{"READ_TIMEOUT": "0s"}, "timeouts must be positive"},
		{"header bytes", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"blank db path", map[string]string{"DB_PATH": "   "}, "DB_PATH must not be empty"},
		{"blank storage dir", map[string]string{"STORAGE_DIR": "   "}, "STORAGE_DIR must not be empty"},
		{"upload limit", map[string]string{"MAX_UPLOAD_BYTES": "0"}, "MAX_UPLOAD_BYTES"},
		{"no core workers", map[string]string{"ASYNC_CORE_WORKERS": "0"}, "ASYNC_CORE_WORKERS"},
		{"max below core", map[string]string{"ASYNC_CORE_WORKERS": "8", "ASYNC_MAX_WORKERS": "4"}, "ASYNC_MAX_WORKERS"},
		{"negative queue", map[string]string{"ASYNC_QUEUE_CAPACITY": "-1"}, "ASYNC_QUEUE_CAPACITY"},
		{"api at root", map[string]string{"API_BASE_PATH": "/"}, "API_BASE_PATH"},
		{"negative rps", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"zero burst", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"negative hsts", map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		{"zero idempotency ttl", map[string]string{"IDEMPOTENCY_TTL": "0s"}, "IDEMPOTENCY_TTL"},
		{"sample ratio", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); !containsErr(err, tc.want) {
				t.Fatalf("Load() error = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

// --- malformed values ---

func TestLoad_MalformedValuesAreReported(t *testing.T) {
	t.Setenv("RATE_RPS", "fast")
	t.Setenv("ASYNC_MAX_WORKERS", "many")
	t.Setenv("ENABLE_HSTS", "sometimes")
	t.Setenv("IDEMPOTENCY_TTL", "a day")

	_, err := Load()
	if err == nil {
		t.Fatal("expected errors for malformed values")
	}
	for _, want := range []string{`RATE_RPS="fast"`, `ASYNC_MAX_WORKERS="many"`, `ENABLE_HSTS="sometimes"`, `IDEMPOTENCY_TTL="a day"`} {
		if !containsErr(err, want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad_ReportsAllProblemsTogether(t *testing.T) {
	t.Setenv("MAX_UPLOAD_BYTES", "0")
	t.Setenv("RATE_BURST", "0")
	_, err := Load()
	if !containsErr(err, "MAX_UPLOAD_BYTES") || !containsErr(err, "RATE_BURST") {
		t.Fatalf("expected both problems, got: %v", err)
	}
}

// --- helpers ---

func TestEnv_TypedReads(t *testing.T) {
	var e env
	t.Setenv("X_EMPTY", "")
	t.Setenv("X_SET", "val")
	t.Setenv("F", "3.14")
	t.Setenv("I", " 42 ")
	t.Setenv("I64", "10485760")
	t.Setenv("D", "150ms")

	if e.text("X_EMPTY", "d") != "d" || e.text("X_SET", "d") != "val" || e.text("X_UNSET", "d") != "d" {
		t.Fatal("text fallback/read failed")
	}
	if e.number("F", 0) != 3.14 || e.integer("I", 0) != 42 || e.integer64("I64", 0) != 10<<20 {
		t.Fatal("numeric reads failed")
	}
	if e.duration("D", time.Second) != 150*time.Millisecond {
		t.Fatal("duration read failed")
	}
	if len(e.errs) != 0 {
		t.Fatalf("unexpected errors: %v", e.errs)
	}

	t.Setenv("BAD", "zzz")
	if e.integer("BAD", 7) != 7 || e.duration("BAD", 2*time.Second) != 2*time.Second || e.number("BAD", 1.5) != 1.5 {
		t.Fatal("malformed values must yield the default")
	}
	if len(e.errs) != 3 {
		t.Fatalf("want 3 recorded errors, got %v", e.errs)
	}
}

func TestEnv_Flag(t *testing.T) {
	var e env
	for _, v := range []string{"1", "true", "TRUE", " yes ", "Y", "on", "On"} {
		t.Setenv("B", v)
		if !e.flag("B", false) {
			t.Fatalf("flag(%q) = false; want true", v)
		}
	}
	for _, v := range []string{"0", "false", "FALSE", " no ", "N", "off", "Off"} {
		t.Setenv("B", v)
		if e.flag("B", true) {
			t.Fatalf("flag(%q) = true; want false", v)
		}
	}
	t.Setenv("B", "")
	if !e.flag("B", true) || e.flag("B", false) {
		t.Fatal("empty must yield the default")
	}
	if len(e.errs) != 0 {
		t.Fatalf("unexpected errors: %v", e.errs)
	}
}

func TestSplitCSV(t *testing.T) {
	if splitCSV("") != nil {
		t.Fatal("empty input must give nil")
	}
	if got := splitCSV(" a, ,b ,  c  ,"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitCSV = %#v", got)
	}
}

func TestNormalizeBasePath(t *testing.T) {
	for in, want := range map[string]string{"": "/", "v1": "/v1", "/v1/": "/v1", " / ": "/", "api/v1/": "/api/v1"} {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}

// Ensure tests do not inherit PORT from the environment.
func TestMain(m *testing.M) {
	os.Unsetenv("PORT")
	os.Exit(m.Run())
}

// containsErr reports whether err's message contains the given substring.
func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIBasePath != "/api" {
		t.Fatalf("API_BASE_PATH default expected '/api', got %q", cfg.APIBasePath)
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Fatalf("MAX_UPLOAD_BYTES default expected 10 MiB, got %d", cfg.MaxUploadBytes)
	}
	want := AsyncConfig{CoreWorkers: 10, MaxWorkers: 50, QueueCapacity: 100, KeepAlive: time.Minute, NamePrefix: "documind-async-"}
	if cfg.Async != want {
		t.Fatalf("async defaults unexpected: %+v", cfg.Async)
	}
	if cfg.OTEL.ServiceName != "go-documind-backend" {
		t.Fatalf("service name default unexpected: %q", cfg.OTEL.ServiceName)
	}
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	// No special env needed; defaults are valid.
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.APIBasePath == "" {
		t.Fatalf("unexpected empty config from MustLoad")
	}
}
