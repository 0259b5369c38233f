package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Security   SecurityConfig
	App        AppConfig
	Encryption EncryptionConfig
	RateLimit  RateLimitConfig
	Worker     WorkerConfig
}

type ServerConfig struct {
	Host string
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

// JWTConfig holds signing secrets and lifetimes. Team-member secrets fall
// back to the staff secrets when unset.
type JWTConfig struct {
	AccessSecret        string
	RefreshSecret       string
	TeamAccessSecret    string
	TeamRefreshSecret   string
	InviteSecret        string
	AccessTTLMinutes    int
	RefreshTTLHours     int
	TeamAccessTTLHours  int
	TeamRefreshTTLHours int
	InviteTTLHours      int
}

type SecurityConfig struct {
	BcryptCost           int
	HashTimeoutSeconds   int
	AttemptWindowMinutes int
	MaxFailedAttempts    int
	AttemptStore         string // memory, redis
	ResetTokenTTLMinutes int
	VerifyTokenTTLHours  int
	TrustedProxies       []string // CIDRs or addresses allowed to set X-Forwarded-For
}

type AppConfig struct {
	FrontendURL    string
	AllowedOrigins []string
}

type EncryptionConfig struct {
	Key string
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

type WorkerConfig struct {
	Concurrency    int
	TrialSweepCron string
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (j *JWTConfig) AccessTTL() time.Duration {
	return time.Duration(j.AccessTTLMinutes) * time.Minute
}

func (j *JWTConfig) RefreshTTL() time.Duration {
	return time.Duration(j.RefreshTTLHours) * time.Hour
}

func (j *JWTConfig) TeamAccessTTL() time.Duration {
	return time.Duration(j.TeamAccessTTLHours) * time.Hour
}

func (j *JWTConfig) TeamRefreshTTL() time.Duration {
	return time.Duration(j.TeamRefreshTTLHours) * time.Hour
}

func (j *JWTConfig) InviteTTL() time.Duration {
	return time.Duration(j.InviteTTLHours) * time.Hour
}

func (s *SecurityConfig) HashTimeout() time.Duration {
	return time.Duration(s.HashTimeoutSeconds) * time.Second
}

func (s *SecurityConfig) AttemptWindow() time.Duration {
	return time.Duration(s.AttemptWindowMinutes) * time.Minute
}

func (s *SecurityConfig) ResetTokenTTL() time.Duration {
	return time.Duration(s.ResetTokenTTLMinutes) * time.Minute
}

func (s *SecurityConfig) VerifyTokenTTL() time.Duration {
	return time.Duration(s.VerifyTokenTTLHours) * time.Hour
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "chefenplace")
	v.SetDefault("DATABASE_PASSWORD", "chefenplace_secret")
	v.SetDefault("DATABASE_NAME", "chefenplace")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("JWT_REFRESH_SECRET", "change-me-too-in-production")
	v.SetDefault("CHEF_INVITE_SECRET", "")
	v.SetDefault("JWT_ACCESS_TTL_MINUTES", 30)
	v.SetDefault("JWT_REFRESH_TTL_HOURS", 7*24)
	v.SetDefault("JWT_TEAM_ACCESS_TTL_HOURS", 12)
	v.SetDefault("JWT_TEAM_REFRESH_TTL_HOURS", 30*24)
	v.SetDefault("JWT_INVITE_TTL_HOURS", 7*24)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("HASH_TIMEOUT_SECONDS", 5)
	v.SetDefault("LOGIN_ATTEMPT_WINDOW_MINUTES", 15)
	v.SetDefault("LOGIN_MAX_FAILED_ATTEMPTS", 5)
	v.SetDefault("LOGIN_ATTEMPT_STORE", "memory")
	v.SetDefault("RESET_TOKEN_TTL_MINUTES", 60)
	v.SetDefault("VERIFY_TOKEN_TTL_HOURS", 24)
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("WORKER_CONCURRENCY", 10)
	v.SetDefault("TRIAL_SWEEP_CRON", "0 * * * *")

	// Load from .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
			Env:  v.GetString("SERVER_ENV"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DATABASE_HOST"),
			Port:     v.GetInt("DATABASE_PORT"),
			User:     v.GetString("DATABASE_USER"),
			Password: v.GetString("DATABASE_PASSWORD"),
			Name:     v.GetString("DATABASE_NAME"),
			SSLMode:  v.GetString("DATABASE_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		JWT: JWTConfig{
			AccessSecret:        v.GetString("JWT_SECRET"),
			RefreshSecret:       v.GetString("JWT_REFRESH_SECRET"),
			TeamAccessSecret:    v.GetString("JWT_TEAM_SECRET"),
			TeamRefreshSecret:   v.GetString("JWT_TEAM_REFRESH_SECRET"),
			InviteSecret:        v.GetString("CHEF_INVITE_SECRET"),
			AccessTTLMinutes:    v.GetInt("JWT_ACCESS_TTL_MINUTES"),
			RefreshTTLHours:     v.GetInt("JWT_REFRESH_TTL_HOURS"),
			TeamAccessTTLHours:  v.GetInt("JWT_TEAM_ACCESS_TTL_HOURS"),
			TeamRefreshTTLHours: v.GetInt("JWT_TEAM_REFRESH_TTL_HOURS"),
			InviteTTLHours:      v.GetInt("JWT_INVITE_TTL_HOURS"),
		},
		Security: SecurityConfig{
			BcryptCost:           v.GetInt("BCRYPT_COST"),
			HashTimeoutSeconds:   v.GetInt("HASH_TIMEOUT_SECONDS"),
			AttemptWindowMinutes: v.GetInt("LOGIN_ATTEMPT_WINDOW_MINUTES"),
			MaxFailedAttempts:    v.GetInt("LOGIN_MAX_FAILED_ATTEMPTS"),
			AttemptStore:         v.GetString("LOGIN_ATTEMPT_STORE"),
			ResetTokenTTLMinutes: v.GetInt("RESET_TOKEN_TTL_MINUTES"),
			VerifyTokenTTLHours:  v.GetInt("VERIFY_TOKEN_TTL_HOURS"),
			TrustedProxies:       splitList(v.GetString("TRUSTED_PROXIES")),
		},
		App: AppConfig{
			FrontendURL:    strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Encryption: EncryptionConfig{
			Key: v.GetString("ENCRYPTION_KEY"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Worker: WorkerConfig{
			Concurrency:    v.GetInt("WORKER_CONCURRENCY"),
			TrialSweepCron: v.GetString("TRIAL_SWEEP_CRON"),
		},
	}

	if cfg.JWT.AccessSecret == cfg.JWT.RefreshSecret {
		return nil, fmt.Errorf("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if cfg.JWT.InviteSecret == "" {
		cfg.JWT.InviteSecret = cfg.JWT.AccessSecret
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
