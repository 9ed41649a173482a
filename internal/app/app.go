package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	httpapp "design_vault/internal/app/http"
	"design_vault/internal/config"
	"design_vault/internal/lib/logger/sl"
	"design_vault/internal/repository"
	fileservice "design_vault/internal/services/file_service"
	tagservice "design_vault/internal/services/tag_service"
	filestorage "design_vault/internal/storage/filestorage"
	"design_vault/internal/storage/postgresql"
	redisapp "design_vault/internal/storage/redis"
	"design_vault/internal/transcode"
	httprouters "design_vault/internal/transport/http"
)

type App struct {
	HTTPServer *httpapp.Server
	log        *slog.Logger
	storage    *postgresql.Storage
	redis      *redisapp.Client
}

func New(ctx context.Context, log *slog.Logger, cfg *config.Config) (*App, error) {
	const op = "app.New"

	storage, err := postgresql.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := storage.HealthCheck(ctx); err != nil {
		storage.Stop()
		return nil, fmt.Errorf("%s: postgres is unreachable: %w", op, err)
	}

	if err := storage.Migrate(ctx); err != nil {
		storage.Stop()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var redisClient *redisapp.Client
	if cfg.Redis.RedisAddr != "" {
		redisClient = redisapp.NewClient(redisapp.Options{
			Addr:     cfg.Redis.RedisAddr,
			Password: cfg.Redis.RedisPassword,
			DB:       cfg.Redis.RedisDB,
		})
		if err := redisClient.HealthCheck(ctx); err != nil {
			// кэш тегов не обязателен, ошибки кэша дальше только логируются
			log.Warn("redis is unavailable, tag cache will miss", sl.Err(err))
		}
	}

	repo := repository.NewRepositoryWithPool(storage.Pool(), redisClient, cfg.Redis.TagsTTL)

	fileStorage, err := filestorage.NewLocalFileStorage(cfg.FileStorage.BaseDir, cfg.FileStorage.BaseURL)
	if err != nil {
		storage.Stop()
		return nil, fmt.Errorf("%s: failed to initialize file storage: %w", op, err)
	}

	var transcoder transcode.Transcoder
	if cfg.Transcode.Enabled {
		transcoder = transcode.WithFallback(
			log,
			transcode.NewFFmpeg(log, cfg.Transcode.FFmpegPath),
			cfg.Transcode.Timeout,
		)
	}

	fileService := fileservice.NewFileService(log, repo.Files, repo.TagCache, fileStorage, transcoder, fileservice.Options{
		MaxSize:       cfg.FileStorage.MaxSize,
		FullLoadLimit: cfg.Gallery.FullLoadLimit,
	})

	var generator tagservice.Generator
	if cfg.TagGeneration.Endpoint != "" {
		generator = tagservice.NewHTTPGenerator(cfg.TagGeneration.Endpoint, cfg.TagGeneration.APIKey, &http.Client{})
	}

	tagService := tagservice.NewTagService(log, generator, tagservice.Options{
		AttemptTimeout: cfg.TagGeneration.AttemptTimeout,
		MaxRetries:     cfg.TagGeneration.MaxRetries,
		InitialBackoff: cfg.TagGeneration.InitialBackoff,
		CacheTTL:       cfg.TagGeneration.CacheTTL,
	})

	routers := httprouters.NewRouter(log, fileService, tagService)

	server := httpapp.New(log, httpapp.Config{
		Host:         cfg.HTTP.Host,
		Port:         cfg.HTTP.Port,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		// запас сверх лимита файла на поля формы
		BodyLimit:  fmt.Sprintf("%dK", cfg.FileStorage.MaxSize/1024+1024),
		UploadsDir: cfg.FileStorage.BaseDir,
	}, routers)

	return &App{
		HTTPServer: server,
		log:        log,
		storage:    storage,
		redis:      redisClient,
	}, nil
}

// Stop останавливает HTTP-сервер и закрывает соединения
func (a *App) Stop() {
	if err := a.HTTPServer.Stop(); err != nil {
		a.log.Error("failed to stop http server", sl.Err(err))
	}
	if a.redis != nil {
		a.redis.Close()
	}
	a.storage.Stop()
}
