package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Lock backends.
const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string
	NATSURL     string
	// EventChannel prefixes the redis stream and NATS subject used for staff notifications.
	EventChannel string

	JWTSecret string
	JWTTTL    time.Duration
	JWTIssuer string
	// ChatEncryptionKey seals consultation messages at rest. Falls back to JWTSecret.
	ChatEncryptionKey string

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	DocumentMaxSizeMB      int

	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string
	ChatbotTimeout time.Duration

	RiskModelPath         string
	CrisisFollowUpTimeout time.Duration
	CascadeMaxRetries     int

	LockBackend         string
	LockTTL             time.Duration
	LeaderboardCacheTTL time.Duration

	RateLimitMax    int
	RateLimitWindow time.Duration

	CORSAllowOrigins string
	AccessLog        bool

	SeedEnabled bool
	SeedToken   string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MINDCARE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	durations := map[string]time.Duration{}
	for _, key := range []string{"jwt.ttl", "chatbot.timeout", "crisis.followup_timeout", "lock.ttl", "leaderboard.cache_ttl", "rate_limit.window"} {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if d <= 0 {
			return Config{}, fmt.Errorf("invalid %s: must be positive", key)
		}
		durations[key] = d
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		EventChannel:           v.GetString("event.channel"),
		JWTSecret:              v.GetString("jwt.secret"),
		JWTTTL:                 durations["jwt.ttl"],
		JWTIssuer:              v.GetString("jwt.issuer"),
		ChatEncryptionKey:      v.GetString("chat.encryption_key"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		DocumentMaxSizeMB:      v.GetInt("document.max_size_mb"),
		OpenAIAPIKey:           v.GetString("openai.api_key"),
		OpenAIBaseURL:          v.GetString("openai.base_url"),
		OpenAIModel:            v.GetString("openai.model"),
		ChatbotTimeout:         durations["chatbot.timeout"],
		RiskModelPath:          v.GetString("risk.model_path"),
		CrisisFollowUpTimeout:  durations["crisis.followup_timeout"],
		CascadeMaxRetries:      v.GetInt("crisis.max_retries"),
		LockBackend:            strings.ToLower(strings.TrimSpace(v.GetString("lock.backend"))),
		LockTTL:                durations["lock.ttl"],
		LeaderboardCacheTTL:    durations["leaderboard.cache_ttl"],
		RateLimitMax:           v.GetInt("rate_limit.max"),
		RateLimitWindow:        durations["rate_limit.window"],
		CORSAllowOrigins:       v.GetString("cors.allow_origins"),
		AccessLog:              v.GetBool("http.access_log"),
		SeedEnabled:            v.GetBool("seed.enabled"),
		SeedToken:              v.GetString("seed.token"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.ChatEncryptionKey == "" {
		cfg.ChatEncryptionKey = cfg.JWTSecret
	}
	if cfg.LockBackend != LockBackendMemory && cfg.LockBackend != LockBackendRedis {
		return Config{}, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
	}
	if cfg.LockBackend == LockBackendRedis && cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("redis lock backend requires MINDCARE_REDIS_URL")
	}
	if cfg.DocumentMaxSizeMB <= 0 {
		cfg.DocumentMaxSizeMB = 10
	}
	if cfg.CascadeMaxRetries < 0 {
		cfg.CascadeMaxRetries = 0
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "MindCare API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("event.channel", "mindcare")
	v.SetDefault("jwt.ttl", "24h")
	v.SetDefault("jwt.issuer", "mindcare-api")
	v.SetDefault("cloudinary.folder", "mindcare/credentials")
	v.SetDefault("document.max_size_mb", 10)
	v.SetDefault("openai.model", "gpt-3.5-turbo")
	v.SetDefault("chatbot.timeout", "15s")
	v.SetDefault("risk.model_path", "")
	v.SetDefault("crisis.followup_timeout", "10s")
	v.SetDefault("crisis.max_retries", 3)
	v.SetDefault("lock.backend", LockBackendMemory)
	v.SetDefault("lock.ttl", "10s")
	v.SetDefault("leaderboard.cache_ttl", "1m")
	v.SetDefault("rate_limit.max", 120)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("http.access_log", false)
	v.SetDefault("seed.enabled", false)
}
