package httpapi

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"dinetab-order-services/internal/auth"
	"dinetab-order-services/internal/config"
	"dinetab-order-services/internal/http/handlers"
	"dinetab-order-services/internal/middleware"
	"dinetab-order-services/internal/queue"
	"dinetab-order-services/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func NewRouter(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config, queueClient *queue.Client, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(logger))
	r.Use(middleware.RequestID())

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"Cache-Control",
			},
			AllowCredentials: true,
			MaxAge:           300,
		}
		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}
		r.Use(cors.Handler(options))
	}

	h := &handlers.Handler{DB: db, Logger: logger, Config: cfg, Queue: queueClient, WS: wsServer}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/ws", wsServer.HandleWS)

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/menu", h.PublicMenu)
		r.Post("/orders", h.PublicOrderCreate)
		r.Get("/orders/{orderId}", h.OrderDetail)
		r.Post("/waiter-calls", h.WaiterCallRaise)
	})

	r.Post("/api/staff/login", h.StaffLogin)

	r.Route("/api/staff", func(r chi.Router) {
		r.Use(middleware.StaffAuth(cfg.JWTSecret))

		r.Post("/orders", h.StaffOrderCreate)
		r.Get("/orders", h.OrdersList)
		r.Get("/orders/{orderId}", h.OrderDetail)
		r.Patch("/orders/{orderId}/status", h.OrderStatusUpdate)
		r.Post("/orders/{orderId}/reject", h.OrderReject)
		r.Patch("/orders/{orderId}/items/{itemId}", h.OrderItemStatusUpdate)
		r.Patch("/orders/{orderId}/priority", h.OrderPriorityUpdate)

		r.Get("/waiter-calls", h.WaiterCallsList)
		r.Post("/waiter-calls/{callId}/resolve", h.WaiterCallResolve)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRoles(auth.RoleCounter))

			r.Get("/billing/unbilled-groups", h.UnbilledGroups)
			r.Post("/bills", h.BillCreate)
			r.Get("/bills", h.BillsList)
			r.Get("/bills/{billId}", h.BillDetail)
			r.Post("/bills/{billId}/pay", h.BillPay)

			r.Get("/transactions", h.TransactionsList)
			r.Post("/transactions", h.TransactionCreate)
			r.Get("/transactions/{txnId}", h.TransactionDetail)
			r.Get("/transactions/{txnId}/receipt.pdf", h.TransactionReceiptPDF)

			r.Get("/customers", h.CustomersList)
			r.Get("/customers/{phone}", h.CustomerDetail)
			r.Post("/customers", h.CustomerUpsert)
			r.Post("/customers/{phone}/rekey", h.CustomerRekey)

			r.Get("/inventory", h.InventoryLevels)
			r.Get("/inventory/low-stock", h.InventoryLowStock)
			r.Post("/inventory/receive", h.InventoryReceive)
			r.Post("/inventory/deduct", h.InventoryDeduct)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRoles(auth.RoleAdmin))

			r.Get("/settings", h.SettingsGet)
			r.Put("/settings", h.SettingsUpdate)
			r.Post("/staff", h.StaffCreate)
		})
	})

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack keeps websocket upgrades working through the logging wrapper.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
