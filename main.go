package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/udistrital/microservicios_crud/internal/middlewares"
	"github.com/udistrital/microservicios_crud/internal/modules"
	"github.com/udistrital/microservicios_crud/internal/resolver"
	"github.com/udistrital/microservicios_crud/internal/store/migrations"
	"github.com/udistrital/microservicios_crud/internal/store/postgres"
	"github.com/udistrital/microservicios_crud/internal/validation"
	"github.com/udistrital/microservicios_crud/routers"
	"github.com/udistrital/microservicios_crud/services"

	"github.com/beego/beego/v2/core/logs"
	beego "github.com/beego/beego/v2/server/web"
)

var logLevels = map[string]int{
	"debug": logs.LevelDebug,
	"info":  logs.LevelInformational,
	"warn":  logs.LevelWarning,
	"error": logs.LevelError,
}

func main() {
	// .env es opcional; las variables ya definidas tienen prioridad.
	_ = godotenv.Load()

	cfg := services.GetConfig()
	_ = logs.SetLogger(logs.AdapterConsole)
	if level, ok := logLevels[cfg.LogLevel]; ok {
		logs.SetLevel(level)
	}

	var rdb redis.UniversalClient
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	res := resolver.New(resolver.StaticEndpoints(cfg.ServiceURLs), resolver.Options{
		Timeout:     cfg.RequestTimeout,
		CacheTTL:    cfg.ResolverCacheTTL,
		Concurrency: cfg.ResolverConcurrency,
		Redis:       rdb,
	})

	backend := func(string) modules.Backend { return modules.MemoryBackend() }
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			logs.Critical("no fue posible abrir la base de datos: %v", err)
			panic(err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = migrations.Apply(ctx, db, cfg.Modules...)
		cancel()
		if err != nil {
			logs.Critical("migraciones: %v", err)
			panic(err)
		}
		backend = func(schema string) modules.Backend { return modules.PostgresBackend(db, schema) }
	} else {
		logs.Warn("database_url vacío: los datos se guardan en memoria y se pierden al reiniciar")
	}

	validator := validation.New()
	mods := make([]modules.Module, 0, len(cfg.Modules))
	for _, name := range cfg.Modules {
		mod, err := modules.Build(name, modules.Env{Backend: backend(name), Resolver: res, Validator: validator})
		if err != nil {
			logs.Critical("%v", err)
			panic(err)
		}
		mods = append(mods, mod)
		logs.Info("servicio publicado module=%s resources=%d", name, len(mod.Resources))
	}

	beego.BConfig.AppName = cfg.AppName
	beego.BConfig.RunMode = cfg.RunMode
	beego.BConfig.Listen.HTTPPort = cfg.HTTPPort
	beego.BConfig.CopyRequestBody = true
	beego.BeeApp.Handlers = routers.Init(routers.Options{
		Modules: mods,
		Auth: middlewares.Options{
			JWTSecret:    cfg.JWTSecret,
			AuthRequired: cfg.AuthRequired,
			Budget:       cfg.ResolverBudget,
		},
		CORSOrigins: cfg.CORSOrigins,
	})
	beego.Run()
}
