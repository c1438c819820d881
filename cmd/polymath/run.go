package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/polymath/internal/access"
	"github.com/xxxsen/polymath/internal/ai"
	"github.com/xxxsen/polymath/internal/config"
	"github.com/xxxsen/polymath/internal/db"
	"github.com/xxxsen/polymath/internal/embedcache"
	"github.com/xxxsen/polymath/internal/filestore"
	"github.com/xxxsen/polymath/internal/handler"
	"github.com/xxxsen/polymath/internal/job"
	"github.com/xxxsen/polymath/internal/library"
	"github.com/xxxsen/polymath/internal/middleware"
	"github.com/xxxsen/polymath/internal/query"
	"github.com/xxxsen/polymath/internal/repo"
	"github.com/xxxsen/polymath/internal/schedule"
	"github.com/xxxsen/polymath/internal/service"
)

func newRunCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the library server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			initLogger(cfg)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
			return runServer(cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	return cmd
}

func initLogger(cfg *config.Config) {
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
}

func runServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logutil.GetLogger(ctx)

	sources, err := buildSources(cfg)
	if err != nil {
		return err
	}
	libraries := service.NewLibraryService(sources...)
	if err := libraries.Reload(ctx); err != nil {
		return fmt.Errorf("initial library load: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewLibraryReloadJob(libraries), cfg.Schedule.LibraryReload); err != nil {
		return err
	}

	var provider access.Provider = access.NewFileProvider(cfg.Access.File)
	if cfg.Access.ReloadSpec != "" {
		cached, err := access.NewCachedProvider(ctx, provider)
		if err != nil {
			return fmt.Errorf("load trust configuration: %w", err)
		}
		if err := scheduler.AddJob(job.NewAccessReloadJob(cached), cfg.Access.ReloadSpec); err != nil {
			return err
		}
		provider = cached
	}
	engine := query.NewEngine(access.NewResolver(provider), query.NewBudgeter(ai.EstimateTokens))

	deps := handler.RouterDeps{
		Query:  handler.NewQueryHandler(libraries, engine),
		Health: handler.NewHealthHandler(libraries),
	}
	stack, err := buildAIStack(ctx, cfg, scheduler)
	if err != nil {
		log.Warn("ask endpoint disabled", zap.Error(err))
	} else {
		defer stack.Close()
		deps.Ask = handler.NewAskHandler(service.NewAskService(libraries, engine, stack.embedder, stack.answerer))
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	web, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			middleware.RateLimit(time.Duration(cfg.RateLimitMs)*time.Millisecond, cfg.TrustedProxies...),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := web.Run(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()
	log.Info("http server listening", zap.String("addr", addr), zap.Int("chunks", libraries.Current().Len()))

	<-ctx.Done()
	log.Info("server stopping...")
	return nil
}

func buildSources(cfg *config.Config) ([]service.LibrarySource, error) {
	sources := make([]service.LibrarySource, 0, len(cfg.Libraries))
	for _, item := range cfg.Libraries {
		store, err := filestore.New(item.FileStore.Type, item.FileStore.Data)
		if err != nil {
			return nil, fmt.Errorf("library %s: %w", item.Name, err)
		}
		tag := item.AccessTag
		if item.Private {
			tag = library.DefaultPrivateAccessTag
		}
		sources = append(sources, service.LibrarySource{
			Name:      item.Name,
			Store:     store,
			Prefix:    item.Prefix,
			AccessTag: tag,
		})
	}
	return sources, nil
}

type aiStack struct {
	embedder ai.IEmbedder
	answerer *ai.Answerer
	closers  []func() error
}

func (s *aiStack) Close() {
	for _, fn := range s.closers {
		_ = fn()
	}
}

// buildAIStack wires providers (each retried, then falling back in order)
// -> sql cache -> lru. The cache cleanup job is registered on scheduler when
// a database is configured.
func buildAIStack(ctx context.Context, cfg *config.Config, scheduler schedule.Scheduler) (*aiStack, error) {
	members := make([]ai.Member, 0, 1+len(cfg.AI.Fallbacks))
	provider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return nil, err
	}
	members = append(members, ai.Member{Provider: provider, CompletionModel: cfg.AI.CompletionModel})
	for _, fb := range cfg.AI.Fallbacks {
		p, err := ai.NewProvider(fb.Provider, fb.Data)
		if err != nil {
			return nil, err
		}
		members = append(members, ai.Member{Provider: p, CompletionModel: fb.CompletionModel})
	}
	modelID := cfg.AI.EmbedModelID
	if modelID == "" {
		modelID = library.EmbeddingModelID
	}
	_, model, err := ai.SplitModelID(modelID)
	if err != nil {
		return nil, err
	}
	embedder, generator, err := ai.BuildGroup(ctx, members, model, cfg.AI.Retry.Attempts, time.Duration(cfg.AI.Retry.DelaySeconds)*time.Second)
	if err != nil {
		return nil, err
	}
	stack := &aiStack{}
	if dbc := cfg.EmbedCache.DB; dbc.Driver != "" {
		conn, err := db.Open(ctx, dbc.Driver, dbc.DSN)
		if err != nil {
			return nil, err
		}
		stack.closers = append(stack.closers, conn.Close)
		if err := db.ApplyMigrations(ctx, conn); err != nil {
			stack.Close()
			return nil, err
		}
		cacheRepo := repo.NewEmbeddingCacheRepo(conn)
		embedder = embedcache.WrapDB(embedder, cacheRepo)
		if scheduler != nil {
			if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(cacheRepo, cfg.EmbedCache.KeepDays), cfg.Schedule.CacheCleanup); err != nil {
				stack.Close()
				return nil, err
			}
		}
	}
	stack.embedder = embedcache.WrapLRU(embedder, cfg.EmbedCache.LRUSize, time.Duration(cfg.EmbedCache.LRUTTLSeconds)*time.Second)
	stack.answerer = ai.NewAnswerer(generator, ai.AnswererConfig{
		Timeout:       time.Duration(cfg.AI.Timeout) * time.Second,
		MaxInputChars: cfg.AI.MaxInputChars,
	})
	return stack, nil
}
