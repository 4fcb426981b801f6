package svc

import (
	"context"
	"fmt"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"quotewatch/internal/application/port"
	"quotewatch/internal/application/service"
	"quotewatch/internal/application/subscription"
	"quotewatch/internal/application/usecase/watch"
	"quotewatch/internal/infrastructure/config"
	"quotewatch/internal/infrastructure/exchange/fugle"
	"quotewatch/internal/infrastructure/network"
	"quotewatch/internal/infrastructure/storage/composite"
	"quotewatch/internal/infrastructure/storage/memory"
	pgrepo "quotewatch/internal/infrastructure/storage/postgres"
	redisrepo "quotewatch/internal/infrastructure/storage/redis"
	sqliterepo "quotewatch/internal/infrastructure/storage/sqlite"
	"quotewatch/internal/interfaces/console"
	"quotewatch/internal/interfaces/httpapi"
)

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// 基础设施层（第一层初始化）
	redisClient *redisclient.Client
	redisRepo   *redisrepo.Repo
	sqliteRepo  *sqliterepo.Repo
	pgRepo      *pgrepo.Repo
	memStore    *memory.Store

	Records port.RecordStore
	Prefs   port.PreferenceStore
	Cache   port.QuoteCache // redis 未启用时为 nil

	Session *fugle.Session
	Rest    *fugle.RestClient

	// 输出端口
	Sink port.Sink

	// 应用业务组件（依赖基础设施）
	Manager   *watch.Manager
	Favorites *service.FavoriteService
	Stocks    *service.StockService
	Quotes    *service.QuoteService
	QuoteSync *service.QuoteSyncService
	Reach     port.Reachability // network 未启用时为 nil

	// 资源管理
	closerChain []func() error
}

// New 创建并初始化 ServiceContext
// 只建立对象与存储连接，不连行情服务
func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		Sink:        console.NewSink(),
		closerChain: make([]func() error, 0),
	}

	if err := sc.initializeComponents(); err != nil {
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

// initializeComponents 按依赖顺序初始化
func (sc *ServiceContext) initializeComponents() error {
	// 0. 存储层
	if err := sc.initializeStorage(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInitFailed, err)
	}

	cfg := sc.Config

	// 1. Fugle 连接
	sc.Session = fugle.NewSession(fugle.SessionConfig{
		URL:            cfg.Fugle.WsURL,
		APIKey:         cfg.Fugle.APIKey,
		PingInterval:   cfg.PingInterval(),
		ConnectTimeout: cfg.ConnectTimeout(),
		ReadTimeout:    cfg.ReadTimeout(),
		WriteTimeout:   cfg.WriteTimeout(),
	})
	sc.Rest = fugle.NewRestClient(fugle.RestConfig{
		BaseURL:        cfg.Fugle.RestURL,
		APIKey:         cfg.Fugle.APIKey,
		ConnectTimeout: cfg.ConnectTimeout(),
		ReadTimeout:    cfg.ReadTimeout(),
		WriteTimeout:   cfg.WriteTimeout(),
	})

	// 2. 连接管理
	sc.Manager = watch.NewManager(watch.ManagerDeps{
		Session:        sc.Session,
		Registry:       subscription.NewRegistry(),
		Preferences:    sc.Prefs,
		DefaultChannel: cfg.App.DefaultChannel,
		DefaultSymbols: cfg.App.DefaultSymbols,
		MaxDefault:     cfg.App.MaxFavorites,
	})
	sc.closerChain = append(sc.closerChain, func() error {
		sc.Manager.Close()
		return nil
	})

	// 3. 应用服务
	reconciler := sc.Manager.Reconciler()
	sc.Favorites = service.NewFavoriteService(sc.Prefs, sc.Records, reconciler)
	sc.Stocks = service.NewStockService(sc.Records, reconciler)
	sc.Quotes = service.NewQuoteService(sc.Rest, sc.Records)
	sc.QuoteSync = service.NewQuoteSyncService(sc.Manager, sc.Records, sc.Cache)

	if err := sc.Favorites.Load(sc.Ctx); err != nil {
		log.Warn().Err(err).Msg("load favorites failed")
	}

	if cfg.Network.Enabled {
		sc.Reach = network.NewMonitor(cfg.Network.ProbeAddr, cfg.ProbeEvery())
	}

	log.Info().
		Int("record_stores", sc.recordStoreCount()).
		Bool("redis", sc.redisRepo != nil).
		Bool("network_monitor", sc.Reach != nil).
		Msg("✓ All components initialized")
	return nil
}

// initializeStorage 初始化存储层
// 记录：sqlite / postgres 全部写入；偏好：sqlite > postgres > redis > memory
func (sc *ServiceContext) initializeStorage() error {
	if sc.Config.Redis.Enabled {
		if err := sc.initRedis(); err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
	}
	if sc.Config.SQLite.Enabled {
		if err := sc.initSQLite(); err != nil {
			return fmt.Errorf("sqlite initialization failed: %w", err)
		}
	}
	if sc.Config.Postgres.Enabled {
		if err := sc.initPostgres(); err != nil {
			return fmt.Errorf("postgres initialization failed: %w", err)
		}
	}

	var stores []port.RecordStore
	if sc.sqliteRepo != nil {
		stores = append(stores, sc.sqliteRepo)
	}
	if sc.pgRepo != nil {
		stores = append(stores, sc.pgRepo)
	}

	switch {
	case sc.sqliteRepo != nil:
		sc.Prefs = sc.sqliteRepo
	case sc.pgRepo != nil:
		sc.Prefs = sc.pgRepo
	case sc.redisRepo != nil:
		sc.Prefs = sc.redisRepo
	}

	if len(stores) == 0 || sc.Prefs == nil {
		sc.memStore = memory.New()
		log.Warn().Msg("no durable store enabled, using in-memory store")
	}
	if len(stores) == 0 {
		stores = append(stores, sc.memStore)
	}
	if sc.Prefs == nil {
		sc.Prefs = sc.memStore
	}

	if len(stores) == 1 {
		sc.Records = stores[0]
	} else {
		sc.Records = composite.New(stores...)
	}
	if sc.redisRepo != nil {
		sc.Cache = sc.redisRepo
	}
	return nil
}

// initRedis 初始化 Redis 连接
func (sc *ServiceContext) initRedis() error {
	rdb := redisclient.NewClient(&redisclient.Options{
		Addr:     sc.Config.Redis.Addr,
		Password: sc.Config.Redis.Password,
		DB:       sc.Config.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(sc.Ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	sc.redisClient = rdb
	sc.redisRepo = redisrepo.New(
		rdb,
		sc.Config.Redis.Prefix,
		sc.Config.RedisTTL(),
		sc.Config.Redis.StateStream,
		sc.Config.Redis.QuoteChannel,
	)

	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return rdb.Close()
	})

	log.Info().
		Str("addr", sc.Config.Redis.Addr).
		Int("db", sc.Config.Redis.DB).
		Msg("✓ Redis initialized")
	return nil
}

// initSQLite 初始化 SQLite 数据库
func (sc *ServiceContext) initSQLite() error {
	repo, err := sqliterepo.New(sc.Config.SQLite.Path)
	if err != nil {
		return fmt.Errorf("sqlite repo creation failed: %w", err)
	}
	sc.sqliteRepo = repo

	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing sqlite connection")
		return repo.Close()
	})

	log.Info().
		Str("path", sc.Config.SQLite.Path).
		Msg("✓ SQLite initialized")
	return nil
}

func (sc *ServiceContext) initPostgres() error {
	repo, err := pgrepo.New(sc.Config.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("postgres repo creation failed: %w", err)
	}
	sc.pgRepo = repo

	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing postgres connection")
		return repo.Close()
	})

	log.Info().Msg("✓ Postgres initialized")
	return nil
}

func (sc *ServiceContext) recordStoreCount() int {
	if c, ok := sc.Records.(*composite.Repo); ok {
		return c.Len()
	}
	return 1
}

// BuildWatchServiceDeps 构建前台 watch 所需依赖
func (sc *ServiceContext) BuildWatchServiceDeps() watch.ServiceDeps {
	c := sc.Config.Reconnect
	return watch.ServiceDeps{
		Manager: sc.Manager,
		Retry: watch.RetryConfig{
			MaxRetries:   c.MaxRetries,
			InitialDelay: time.Duration(c.InitialDelayMs) * time.Millisecond,
			MaxDelay:     time.Duration(c.MaxDelayMs) * time.Millisecond,
			Multiplier:   c.Multiplier,
		},
		Reachability: sc.Reach,
		Sink:         sc.Sink,
		StatusEvery:  sc.Config.StatusEvery(),
	}
}

// BuildHTTPServer 构建 HTTP 接口；未启用时返回 ErrHTTPDisabled
func (sc *ServiceContext) BuildHTTPServer() (*httpapi.Server, error) {
	if !sc.Config.HTTP.Enabled {
		return nil, ErrHTTPDisabled
	}
	return httpapi.New(sc.Config.HTTP.Addr, httpapi.Deps{
		Stocks:     sc.Stocks,
		Favorites:  sc.Favorites,
		Quotes:     sc.Quotes,
		Connection: sc.Manager,
	}, sc.Config.App.LogLevel == "debug" || sc.Config.App.LogLevel == "trace"), nil
}

// Close 按相反顺序关闭所有资源
func (sc *ServiceContext) Close() error {
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			log.Error().Err(err).Msg("error closing resource")
		}
	}
	sc.closerChain = nil
	return nil
}
