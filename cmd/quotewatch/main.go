package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"quotewatch/internal/application/port"
	"quotewatch/internal/application/service"
	"quotewatch/internal/application/usecase/watch"
	"quotewatch/internal/infrastructure/config"
	"quotewatch/internal/infrastructure/logger"
	"quotewatch/internal/infrastructure/svc"
	"quotewatch/internal/interfaces/console"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "quotewatch",
		Usage: "Fugle 台股即时行情监看",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config.toml",
				Value:   "configs/config.toml",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override app.log_level",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "连线并持续输出行情（默认命令）",
				Action: runAction,
			},
			{
				Name:      "quote",
				Usage:     "REST 查询一次报价",
				ArgsUsage: "SYMBOL...",
				Action:    quoteAction,
			},
			{
				Name:      "trades",
				Usage:     "REST 查询当日成交明细",
				ArgsUsage: "SYMBOL",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "date", Usage: "`YYYY-MM-DD`，空为今日"},
					&cli.IntFlag{Name: "limit", Value: 20},
				},
				Action: tradesAction,
			},
			{
				Name:  "favorites",
				Usage: "自选股管理",
				Commands: []*cli.Command{
					{Name: "list", Usage: "列出自选股", Action: favoritesListAction},
					{Name: "toggle", Usage: "加入/移除自选", ArgsUsage: "SYMBOL", Action: favoritesToggleAction},
				},
			},
		},
		Action: runAction,
	}

	if err := cmd.Run(ctx, os.Args); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("quotewatch exited")
	}
}

// setup 读配置、初始化日志与 ServiceContext
func setup(ctx context.Context, cmd *cli.Command) (*svc.ServiceContext, error) {
	path := cmd.String("config")
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	level := cfg.App.LogLevel
	if v := cmd.String("log-level"); v != "" {
		level = v
	}
	logger.Setup(level)

	return svc.New(ctx, cfg)
}

// loadConfig 配置文件不存在时使用默认值
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("config", path).Msg("config file not found, using defaults")
		return config.Default(), nil
	}
	return config.Load(path)
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	sc, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer sc.Close()

	if err := sc.Config.RequireAPIKey(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		runErr  error
	)
	spawn := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn(ctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			log.Error().Err(err).Str("component", name).Msg("component stopped")
			errOnce.Do(func() {
				runErr = fmt.Errorf("%s: %w", name, err)
				cancel()
			})
		}()
	}

	spawn("watch", watch.NewService(sc.BuildWatchServiceDeps()).Run)
	spawn("quote-sync", sc.QuoteSync.Run)
	if srv, err := sc.BuildHTTPServer(); err == nil {
		spawn("http", srv.Run)
	} else if !errors.Is(err, svc.ErrHTTPDisabled) {
		return err
	}

	log.Info().
		Str("channel", sc.Config.App.DefaultChannel).
		Strs("default_symbols", sc.Config.App.DefaultSymbols).
		Bool("http", sc.Config.HTTP.Enabled).
		Msg("quotewatch started")

	wg.Wait()
	return runErr
}

func quoteAction(ctx context.Context, cmd *cli.Command) error {
	syms := cmd.Args().Slice()
	if len(syms) == 0 {
		return errors.New("at least one SYMBOL is required")
	}
	sc, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer sc.Close()
	if err := sc.Config.RequireAPIKey(); err != nil {
		return err
	}

	res := sc.Quotes.FetchBatch(ctx, syms)
	for _, it := range res.Items {
		if it.Result.OK() {
			continue
		}
		log.Warn().
			Str("symbol", it.Symbol).
			Str("result", it.Result.Kind.String()).
			Int("code", it.Result.Code).
			Str("message", it.Result.Message).
			Msg("quote unavailable")
	}
	if err := sc.Sink.WriteQuotes(time.Now(), res.Stocks()); err != nil {
		return err
	}
	if res.Status == service.BatchError {
		return errors.New("some quotes failed")
	}
	return nil
}

func tradesAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return errors.New("exactly one SYMBOL is required")
	}
	sc, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer sc.Close()
	if err := sc.Config.RequireAPIKey(); err != nil {
		return err
	}

	res := sc.Quotes.Trades(ctx, cmd.Args().First(), cmd.String("date"), int(cmd.Int("limit")))
	switch res.Kind {
	case port.ResultSuccess:
		fmt.Printf("%s %s (%d)\n", res.Data.Symbol, res.Data.Date, len(res.Data.Data))
		for _, t := range res.Data.Data {
			fmt.Printf("  %s  %10.2f  %8d\n", t.Time, t.Price, t.Size)
		}
		return nil
	case port.ResultEmpty:
		fmt.Println("(no trades)")
		return nil
	case port.ResultFailure:
		return fmt.Errorf("trades failed: HTTP %d %s", res.Code, res.Message)
	default:
		return fmt.Errorf("trades failed: %w", res.Err)
	}
}

func favoritesListAction(ctx context.Context, cmd *cli.Command) error {
	sc, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer sc.Close()

	stocks, err := sc.Stocks.UserStocks(ctx)
	if err != nil {
		return err
	}
	fmt.Println(console.NewFormatter(true).Table(stocks))
	return nil
}

func favoritesToggleAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return errors.New("exactly one SYMBOL is required")
	}
	sc, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer sc.Close()

	sym := cmd.Args().First()
	on, err := sc.Favorites.Toggle(ctx, sym)
	if err != nil {
		return err
	}
	if on {
		fmt.Printf("%s added to favorites\n", sym)
	} else {
		fmt.Printf("%s removed from favorites\n", sym)
	}
	return nil
}
