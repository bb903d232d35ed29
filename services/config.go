package services

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/udistrital/microservicios_crud/helpers"

	beego "github.com/beego/beego/v2/server/web"
)

// Config centraliza la configuración del proceso y de la resolución entre servicios.
type Config struct {
	AppName  string
	HTTPPort int
	RunMode  string
	LogLevel string
	// Modules son los servicios que publica este proceso.
	Modules     []string
	DatabaseURL string
	// ServiceURLs es la URL base de cada servicio, propio o hermano.
	ServiceURLs         map[string]string
	RequestTimeout      time.Duration
	ResolverBudget      time.Duration
	ResolverCacheTTL    time.Duration
	ResolverConcurrency int
	RetryCount          int
	RedisAddr           string
	JWTSecret           string
	AuthRequired        bool
	CORSOrigins         []string
}

// Servicios conocidos; cada uno tiene su clave <nombre>_url.
var serviceNames = []string{"catalogos", "organizacion", "personal", "archivos"}

var (
	cfg  Config
	once sync.Once
)

// GetConfig devuelve la configuración cargada desde variables de entorno o app.conf.
func GetConfig() Config {
	once.Do(func() {
		cfg = load()
		helpers.SetDefaultRetryCount(cfg.RetryCount)
	})
	return cfg
}

func load() Config {
	port := getInt("HTTP_PORT", "httpport", 8080)
	c := Config{
		AppName:             getString("APP_NAME", "appname", "microservicios_crud"),
		HTTPPort:            port,
		RunMode:             getString("RUN_MODE", "runmode", "dev"),
		LogLevel:            strings.ToLower(getString("LOG_LEVEL", "log_level", "info")),
		Modules:             getList("MODULES", "modules", serviceNames),
		DatabaseURL:         getString("DATABASE_URL", "database_url", ""),
		ServiceURLs:         map[string]string{},
		RequestTimeout:      getMillis("REQUEST_TIMEOUT_MS", "request_timeout_ms", 5000),
		ResolverBudget:      getMillis("RESOLVER_BUDGET_MS", "resolver_budget_ms", 10000),
		ResolverCacheTTL:    getMillis("RESOLVER_CACHE_TTL_MS", "resolver_cache_ttl_ms", 0),
		ResolverConcurrency: getInt("RESOLVER_CONCURRENCY", "resolver_concurrency", 4),
		RetryCount:          getInt("RETRY_COUNT", "retry_count", 2),
		RedisAddr:           getString("REDIS_ADDR", "redis_addr", ""),
		JWTSecret:           getString("JWT_SECRET", "jwt_secret", ""),
		AuthRequired:        getBool("AUTH_REQUIRED", "auth_required", false),
		CORSOrigins:         getList("CORS_ORIGINS", "cors_origins", []string{"http://localhost:4200"}),
	}

	// Sin URL explícita un servicio se busca en este mismo proceso.
	self := fmt.Sprintf("http://127.0.0.1:%d", port)
	for _, name := range serviceNames {
		key := name + "_url"
		c.ServiceURLs[name] = normalizeBase(getString(strings.ToUpper(key), key, self))
	}
	return c
}

func getString(envKey, confKey, def string) string {
	if val := strings.TrimSpace(os.Getenv(envKey)); val != "" {
		return val
	}
	if val, err := beego.AppConfig.String(confKey); err == nil && strings.TrimSpace(val) != "" {
		return val
	}
	return def
}

func getInt(envKey, confKey string, def int) int {
	if val := strings.TrimSpace(os.Getenv(envKey)); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	if val, err := beego.AppConfig.Int(confKey); err == nil {
		return val
	}
	return def
}

func getBool(envKey, confKey string, def bool) bool {
	if val := strings.TrimSpace(os.Getenv(envKey)); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	if val, err := beego.AppConfig.Bool(confKey); err == nil {
		return val
	}
	return def
}

func getMillis(envKey, confKey string, def int) time.Duration {
	return time.Duration(getInt(envKey, confKey, def)) * time.Millisecond
}

// getList lee una lista separada por comas.
func getList(envKey, confKey string, def []string) []string {
	raw := getString(envKey, confKey, "")
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func normalizeBase(value string) string {
	return strings.TrimRight(strings.TrimSpace(value), "/")
}
