// Package statushttp serves the status API: read-only views of running
// advisors and order snapshots, plus the admin stop endpoint the CLI
// `stop` command calls.
package statushttp

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"keel/internal/logger"
	"keel/internal/order"
)

// AdvisorLister is the supervisor surface the server needs.
type AdvisorLister interface {
	Running() []string
	StopAll() int
}

type Server struct {
	addr     string
	router   *gin.Engine
	advisors AdvisorLister
	orders   *order.Store
	onStop   func()
}

type ServerConfig struct {
	Addr     string
	Advisors AdvisorLister
	Orders   *order.Store

	// OnStop is invoked after a stop request has terminated the
	// advisors, letting the app shut the process down.
	OnStop func()
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Advisors == nil {
		return nil, errors.New("status http server requires a supervisor")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8090"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{
		addr:     cfg.Addr,
		router:   router,
		advisors: cfg.Advisors,
		orders:   cfg.Orders,
		onStop:   cfg.OnStop,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := router.Group("/api")
	api.GET("/advisors", s.handleAdvisors)
	api.GET("/orders", s.handleOrders)
	api.POST("/advisors/stop", s.handleStop)
	return s, nil
}

func (s *Server) handleAdvisors(c *gin.Context) {
	running := s.advisors.Running()
	sort.Strings(running)
	c.JSON(http.StatusOK, gin.H{"count": len(running), "advisors": running})
}

type orderView struct {
	ClientID    string `json:"client_id"`
	VenueID     string `json:"venue_id"`
	AccountID   string `json:"account_id"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force"`
	Price       string `json:"price"`
	Size        string `json:"size"`
	Status      string `json:"status"`
	ServerID    string `json:"server_id,omitempty"`
	ErrorReason string `json:"error_reason,omitempty"`
	EnqueuedAt  int64  `json:"enqueued_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

func (s *Server) handleOrders(c *gin.Context) {
	if s.orders == nil {
		c.JSON(http.StatusOK, gin.H{"count": 0, "orders": []orderView{}})
		return
	}
	all := s.orders.All()
	sort.Slice(all, func(i, j int) bool { return all[i].EnqueuedAt.Before(all[j].EnqueuedAt) })
	views := make([]orderView, 0, len(all))
	for _, o := range all {
		views = append(views, orderView{
			ClientID:    o.ClientID,
			VenueID:     o.VenueID,
			AccountID:   o.AccountID,
			Symbol:      o.Symbol,
			Side:        string(o.Side),
			Type:        string(o.Type),
			TimeInForce: string(o.TimeInForce),
			Price:       o.Price.String(),
			Size:        o.Size.String(),
			Status:      string(o.Status),
			ServerID:    o.ServerID,
			ErrorReason: o.ErrorReason,
			EnqueuedAt:  o.EnqueuedAt.UnixMilli(),
			UpdatedAt:   o.UpdatedAt.UnixMilli(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(views), "orders": views})
}

func (s *Server) handleStop(c *gin.Context) {
	stopped := s.advisors.StopAll()
	c.JSON(http.StatusOK, gin.H{"stopped": stopped})
	if s.onStop != nil {
		go s.onStop()
	}
}

// Start serves until the context is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("http: status server listening on %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("http: %s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
