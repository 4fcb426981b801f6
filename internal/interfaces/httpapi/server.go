package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"quotewatch/internal/application/port"
	"quotewatch/internal/application/service"
	"quotewatch/internal/application/subscription"
	"quotewatch/internal/application/usecase/watch"
	"quotewatch/internal/domain/model"
)

type Stocks interface {
	Get(ctx context.Context, symbol string) (*model.Stock, error)
	All(ctx context.Context) ([]model.Stock, error)
	UserStocks(ctx context.Context) ([]model.Stock, error)
	HotStocks(ctx context.Context) ([]model.Stock, error)
}

type Favorites interface {
	List(ctx context.Context) ([]string, error)
	Toggle(ctx context.Context, symbol string) (bool, error)
}

type Quotes interface {
	FetchBatch(ctx context.Context, symbols []string) service.BatchResult
}

type Connection interface {
	State() watch.StateChange
	Subscriptions() []subscription.Record
	Stats() watch.BusStats
}

type Deps struct {
	Stocks     Stocks
	Favorites  Favorites
	Quotes     Quotes
	Connection Connection
}

// Server 只读为主的 HTTP 接口
type Server struct {
	addr   string
	deps   Deps
	engine *gin.Engine
}

func New(addr string, deps Deps, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{addr: addr, deps: deps, engine: gin.New()}
	s.engine.Use(gin.Recovery(), requestID(), accessLog())
	s.setupRoutes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/status", s.getStatus)
	api.GET("/stocks", s.getStocks)
	api.GET("/stocks/:symbol", s.getStock)
	api.GET("/favorites", s.getFavorites)
	api.POST("/favorites/:symbol/toggle", s.toggleFavorite)
	api.GET("/quotes", s.getQuotes)
}

// Run 监听直到 ctx 结束，然后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Msg("http api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	}
}

// ========== Middleware ==========

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", c.GetString("request_id")).
			Msg("http")
	}
}

// ========== Handlers ==========

type subscriptionView struct {
	Channel string `json:"channel"`
	Symbol  string `json:"symbol"`
	ID      string `json:"id"`
}

func (s *Server) getStatus(c *gin.Context) {
	st := s.deps.Connection.State()
	recs := s.deps.Connection.Subscriptions()
	subs := make([]subscriptionView, 0, len(recs))
	for _, r := range recs {
		subs = append(subs, subscriptionView{Channel: r.Key.Channel, Symbol: r.Key.Symbol, ID: r.ServerID})
	}
	c.JSON(http.StatusOK, gin.H{
		"state":         st.State.String(),
		"status":        st.StatusText(),
		"message":       st.Message,
		"since":         st.At,
		"subscriptions": subs,
		"bus":           s.deps.Connection.Stats(),
	})
}

func (s *Server) getStocks(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		list []model.Stock
		err  error
	)
	switch view := c.DefaultQuery("view", "all"); view {
	case "all":
		list, err = s.deps.Stocks.All(ctx)
	case "user":
		list, err = s.deps.Stocks.UserStocks(ctx)
	case "hot":
		list, err = s.deps.Stocks.HotStocks(ctx)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown view: " + view})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []model.Stock{}
	}
	c.JSON(http.StatusOK, gin.H{"stocks": list})
}

func (s *Server) getStock(c *gin.Context) {
	st, err := s.deps.Stocks.Get(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		writeError(c, err)
		return
	}
	if st == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown symbol"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) getFavorites(c *gin.Context) {
	syms, err := s.deps.Favorites.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if syms == nil {
		syms = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"symbols": syms, "max": port.MaxFavorites})
}

func (s *Server) toggleFavorite(c *gin.Context) {
	sym := c.Param("symbol")
	fav, err := s.deps.Favorites.Toggle(c.Request.Context(), sym)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": strings.ToUpper(strings.TrimSpace(sym)), "favorite": fav})
}

type quoteView struct {
	Symbol  string       `json:"symbol"`
	Status  string       `json:"status"`
	Code    int          `json:"code,omitempty"`
	Message string       `json:"message,omitempty"`
	Stock   *model.Stock `json:"stock,omitempty"`
}

func (s *Server) getQuotes(c *gin.Context) {
	var syms []string
	for _, p := range strings.Split(c.Query("symbols"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			syms = append(syms, p)
		}
	}
	if len(syms) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols is required"})
		return
	}
	if len(syms) > port.MaxFavorites*2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many symbols"})
		return
	}

	res := s.deps.Quotes.FetchBatch(c.Request.Context(), syms)
	items := make([]quoteView, 0, len(res.Items))
	for _, it := range res.Items {
		items = append(items, quoteView{
			Symbol:  it.Symbol,
			Status:  it.Result.Kind.String(),
			Code:    it.Result.Code,
			Message: it.Result.Message,
			Stock:   it.Stock,
		})
	}
	c.JSON(http.StatusOK, gin.H{"status": res.Status, "items": items})
}

func writeError(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrFavoritesFull):
		code = http.StatusConflict
	case errors.Is(err, port.ErrPersistence):
		code = http.StatusServiceUnavailable
	}
	log.Warn().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(code, gin.H{"error": err.Error()})
}
