package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName               string
	AppEnv                string
	AppPort               string
	CORSAllowOrigins      string
	DatabaseURL           string
	RedisURL              string
	NATSURL               string
	RealtimeChannel       string
	JWTSecret             string
	JWTTTL                time.Duration
	StaffSignupCode       string
	AnalyticsCacheTTL     time.Duration
	NotificationKeepAlive time.Duration
	EventQueueBuffer      int
	SubmitRateLimit       int
	SubmitRateWindow      time.Duration
	StorageProvider       string
	ScreenshotMaxSizeMB   int
	CloudinaryCloudName   string
	CloudinaryAPIKey      string
	CloudinaryAPISecret   string
	CloudinaryFolder      string
	S3Bucket              string
	S3Region              string
	MailProvider          string
	MailFrom              string
	ResendAPIKey          string
	SendGridAPIKey        string
	SeedEnabled           bool
	SeedToken             string
	SeedPassword          string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsDevelopment reports whether the service runs with development defaults.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == "" || c.AppEnv == "development" || c.AppEnv == "local"
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("BROVOICE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "BroVoice API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("realtime.channel", "brovoice")
	v.SetDefault("jwt.ttl", "24h")
	v.SetDefault("analytics.cache_ttl", "2m")
	v.SetDefault("notifications.keepalive", "30s")
	v.SetDefault("events.buffer", 64)
	v.SetDefault("complaints.rate_limit", 5)
	v.SetDefault("complaints.rate_window", "1m")
	v.SetDefault("storage.provider", "cloudinary")
	v.SetDefault("storage.max_size_mb", 5)
	v.SetDefault("cloudinary.folder", "brovoice/screenshots")
	v.SetDefault("mail.provider", "log")
	v.SetDefault("mail.from", "BroVoice <onboarding@resend.dev>")
	v.SetDefault("seed.enabled", false)
	v.SetDefault("seed.password", "brovoice-demo")

	jwtTTL, err := parseDuration(v, "jwt.ttl", "24h")
	if err != nil {
		return Config{}, fmt.Errorf("invalid jwt ttl: %w", err)
	}
	analyticsTTL, err := parseDuration(v, "analytics.cache_ttl", "2m")
	if err != nil {
		return Config{}, fmt.Errorf("invalid analytics cache ttl: %w", err)
	}
	keepAlive, err := parseDuration(v, "notifications.keepalive", "30s")
	if err != nil {
		return Config{}, fmt.Errorf("invalid notification keepalive: %w", err)
	}
	rateWindow, err := parseDuration(v, "complaints.rate_window", "1m")
	if err != nil {
		return Config{}, fmt.Errorf("invalid complaint rate window: %w", err)
	}

	cfg := Config{
		AppName:               v.GetString("app.name"),
		AppEnv:                strings.ToLower(v.GetString("app.env")),
		AppPort:               v.GetString("app.port"),
		CORSAllowOrigins:      v.GetString("cors.allow_origins"),
		DatabaseURL:           v.GetString("database.url"),
		RedisURL:              v.GetString("redis.url"),
		NATSURL:               v.GetString("nats.url"),
		RealtimeChannel:       v.GetString("realtime.channel"),
		JWTSecret:             v.GetString("jwt.secret"),
		JWTTTL:                jwtTTL,
		StaffSignupCode:       v.GetString("staff.signup_code"),
		AnalyticsCacheTTL:     analyticsTTL,
		NotificationKeepAlive: keepAlive,
		EventQueueBuffer:      v.GetInt("events.buffer"),
		SubmitRateLimit:       v.GetInt("complaints.rate_limit"),
		SubmitRateWindow:      rateWindow,
		StorageProvider:       strings.ToLower(v.GetString("storage.provider")),
		ScreenshotMaxSizeMB:   v.GetInt("storage.max_size_mb"),
		CloudinaryCloudName:   v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:      v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:   v.GetString("cloudinary.api_secret"),
		CloudinaryFolder:      v.GetString("cloudinary.folder"),
		S3Bucket:              v.GetString("s3.bucket"),
		S3Region:              v.GetString("s3.region"),
		MailProvider:          strings.ToLower(v.GetString("mail.provider")),
		MailFrom:              v.GetString("mail.from"),
		ResendAPIKey:          v.GetString("resend.api_key"),
		SendGridAPIKey:        v.GetString("sendgrid.api_key"),
		SeedEnabled:           v.GetBool("seed.enabled"),
		SeedToken:             v.GetString("seed.token"),
		SeedPassword:          v.GetString("seed.password"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.EventQueueBuffer <= 0 {
		cfg.EventQueueBuffer = 64
	}

	if cfg.ScreenshotMaxSizeMB <= 0 {
		cfg.ScreenshotMaxSizeMB = 5
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key, fallback string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		raw = fallback
	}
	return time.ParseDuration(raw)
}
