package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	PostgresURI string
	RedisURI    string
	MongoURI    string
	Port        string
	Environment string // ENV: production, development, etc.

	AllowedOrigins []string // CORS: from ALLOWED_ORIGINS, must include the mini-program web origin

	// Token signing. Access and refresh use distinct secrets and lifetimes.
	JWTAccessSecret  string
	JWTRefreshSecret string
	JWTAccessTTL     time.Duration
	JWTRefreshTTL    time.Duration

	// Optional fixed phone+code pair for the SMS login path. When unset, any
	// valid phone with the fallback code is accepted (development only).
	StubPhone string
	StubCode  string

	// WeChat mini-program credentials for the code2session exchange.
	WechatAppID  string
	WechatSecret string

	// LLM provider (OpenAI-compatible chat/completions endpoint).
	QwenAPIKey       string
	QwenAPIBase      string
	QwenModel        string
	ChatSystemPrompt string

	// Chat context-window assembly.
	ChatContextMaxTokens     int
	ChatContextReserveTokens int
	ChatContextMaxMessages   int
	ChatSummaryEnabled       bool
	ChatSummaryMaxTokens     int
	ChatSummaryUseLLM        bool
	ChatTitleUseLLM          bool

	// CMS (Strapi-shaped content API) for inspirations.
	CMSBaseURL string

	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
}

func Load() *Config {
	return &Config{
		PostgresURI: getEnv("POSTGRES_URI", "postgres://localhost:5432/giftmind?sslmode=disable"),
		RedisURI:    getEnv("REDIS_URI", "redis://localhost:6379/0"),
		MongoURI:    getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017/giftmind")),
		Port:        getEnv("PORT", "8080"),
		Environment: strings.ToLower(strings.TrimSpace(getEnv("ENV", "development"))),

		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		JWTAccessSecret:  getEnv("JWT_ACCESS_SECRET", "dev-access-secret-change-me"),
		JWTRefreshSecret: getEnv("JWT_REFRESH_SECRET", "dev-refresh-secret-change-me"),
		JWTAccessTTL:     getEnvDuration("JWT_ACCESS_EXPIRES_IN", 2*time.Hour),
		JWTRefreshTTL:    getEnvDuration("JWT_REFRESH_EXPIRES_IN", 30*24*time.Hour),

		StubPhone: getEnv("STUB_PHONE", ""),
		StubCode:  getEnv("STUB_CODE", ""),

		WechatAppID:  getEnv("WECHAT_MINI_APPID", ""),
		WechatSecret: getEnv("WECHAT_MINI_SECRET", ""),

		QwenAPIKey:       getEnv("QWEN_API_KEY", ""),
		QwenAPIBase:      getEnv("QWEN_API_BASE", "https://dashscope.aliyuncs.com/compatible/v1"),
		QwenModel:        getEnv("QWEN_MODEL", "qwen-plus"),
		ChatSystemPrompt: getEnv("CHAT_SYSTEM_PROMPT", "你是一个送礼助手小犀，帮助用户完善送礼需求并给出贴心建议。"),

		ChatContextMaxTokens:     getEnvInt("CHAT_CONTEXT_MAX_TOKENS", 6000),
		ChatContextReserveTokens: getEnvInt("CHAT_CONTEXT_RESERVE_TOKENS", 1500),
		ChatContextMaxMessages:   getEnvInt("CHAT_CONTEXT_MAX_MESSAGES", 12),
		ChatSummaryEnabled:       getEnvBool("CHAT_CONTEXT_SUMMARY_ENABLED", true),
		ChatSummaryMaxTokens:     getEnvInt("CHAT_CONTEXT_SUMMARY_MAX_TOKENS", 500),
		ChatSummaryUseLLM:        getEnvBool("CHAT_SUMMARY_USE_LLM", false),
		ChatTitleUseLLM:          getEnvBool("CHAT_TITLE_USE_LLM", false),

		CMSBaseURL: getEnv("CMS_BASE_URL", "http://localhost:1337/api"),

		CloudinaryName:      getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
	}
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// StubConfigured reports whether the fixed phone+code pair is set. When it is
// not, the SMS login path accepts the fallback code for any valid phone.
func (c *Config) StubConfigured() bool {
	return c.StubPhone != "" && c.StubCode != ""
}

func parseOrigins(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration parses either a Go duration ("2h") or a bare number of
// seconds ("7200"), the latter for parity with older deployments.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}
