package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/k-negishi/eventboard/internal/domain"
	"github.com/k-negishi/eventboard/internal/gateway"
	"github.com/k-negishi/eventboard/internal/metrics"
	"github.com/k-negishi/eventboard/internal/usecase"
)

// midnightSchedule 日付が変わったら必ず再生成する
const midnightSchedule = "0 0 * * *"

// eventsResponse GET /events のレスポンス
type eventsResponse struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Today       string                  `json:"today"`
	Counts      map[string]int          `json:"counts"`
	Events      []domain.ProcessedEvent `json:"events"`
}

// errorResponse エラー時のレスポンス
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Server イベント一覧を配信するHTTPサーバー
type Server struct {
	lister   usecase.Lister
	metrics  *metrics.Metrics
	log      *zap.Logger
	location *time.Location
	router   *gin.Engine

	mu      sync.RWMutex
	listing *usecase.Listing

	cron *cron.Cron
}

// New ルーティングを登録したサーバーを作成
func New(lister usecase.Lister, m *metrics.Metrics, location *time.Location, log *zap.Logger) *Server {
	if location == nil {
		location = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		lister:   lister,
		metrics:  m,
		log:      log,
		location: location,
		router:   gin.New(),
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.registerRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/events", s.listEvents)
	s.router.GET("/events.ics", s.exportICS)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

// requestLogger リクエストごとにアクセスログを出力
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// Refresh 一覧を再生成してキャッシュを置き換える
//
// 失敗した場合は前回の一覧を残す。
func (s *Server) Refresh(ctx context.Context) error {
	start := time.Now()
	listing, err := s.lister.Execute(ctx)
	if err != nil {
		s.metrics.ObserveBuild(time.Since(start), nil, err)
		s.log.Error("イベント一覧の再生成に失敗しました", zap.Error(err))
		return err
	}
	s.metrics.ObserveBuild(time.Since(start), usecase.Count(listing.Events), nil)

	s.mu.Lock()
	s.listing = &listing
	s.mu.Unlock()

	s.log.Info("イベント一覧を再生成しました", zap.Int("count", len(listing.Events)))
	return nil
}

// StartScheduler cron式 schedule と毎日0時に一覧を再生成する
func (s *Server) StartScheduler(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithLocation(s.location))
	refresh := func() {
		_ = s.Refresh(ctx)
	}

	for _, expr := range []string{schedule, midnightSchedule} {
		if expr == "" {
			continue
		}
		if _, err := c.AddFunc(expr, refresh); err != nil {
			return fmt.Errorf("スケジュール %q の登録に失敗しました: %w", expr, err)
		}
	}

	c.Start()
	s.cron = c
	return nil
}

// StopScheduler 実行中のジョブの完了を待って停止する
func (s *Server) StopScheduler() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Run addr で待ち受け、ctx がキャンセルされたら停止する
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTPサーバーを起動します", zap.String("listen", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("HTTPサーバーを停止します")
		return srv.Shutdown(shutdownCtx)
	}
}

// current キャッシュ済みの一覧を返す。未生成なら生成する
func (s *Server) current(ctx context.Context) (usecase.Listing, error) {
	s.mu.RLock()
	cached := s.listing
	s.mu.RUnlock()
	if cached != nil {
		return *cached, nil
	}

	if err := s.Refresh(ctx); err != nil {
		return usecase.Listing{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.listing, nil
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// listEvents GET /events?temporal=current,future
func (s *Server) listEvents(c *gin.Context) {
	temporals, err := domain.ParseTemporals(c.Query("temporal"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	listing, err := s.current(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "listing_error", Message: "イベント一覧の生成に失敗しました"})
		return
	}

	events := usecase.Filter(listing.Events, temporals...)
	counts := make(map[string]int, 3)
	for t, n := range usecase.Count(events) {
		counts[t.String()] = n
	}

	c.JSON(http.StatusOK, eventsResponse{
		GeneratedAt: listing.GeneratedAt,
		Today:       listing.Today.Format("2006-01-02"),
		Counts:      counts,
		Events:      events,
	})
}

// exportICS GET /events.ics
func (s *Server) exportICS(c *gin.Context) {
	listing, err := s.current(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "listing_error", Message: "イベント一覧の生成に失敗しました"})
		return
	}
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(gateway.EncodeICS(listing.Events, listing.GeneratedAt)))
}
