package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/efreitasn/tokenswap/internal/domain"
	"github.com/efreitasn/tokenswap/internal/service"
)

// PrincipalHeader carries the caller identity, authenticated upstream.
const PrincipalHeader = "X-Principal"

// RequestIDHeader echoes the id assigned to each request.
const RequestIDHeader = "X-Request-ID"

// NewRouter creates a chi router with all routes registered, request logging,
// and Content-Type validation middleware.
func NewRouter(svc *service.Exchange, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	accountH := NewAccountHandler(svc)
	orderH := NewOrderHandler(svc)
	adminH := NewAdminHandler(svc)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/whoami", accountH.WhoAmI)
	r.Post("/deposits", accountH.Deposit)
	r.Post("/withdrawals", accountH.Withdraw)
	r.Get("/deposit-address", accountH.DepositAddress)
	r.Get("/balances", accountH.Balances)
	r.Get("/balances/all", accountH.AllBalances)
	r.Get("/balances/{token}", accountH.Balance)
	r.Get("/tokens", accountH.Tokens)
	r.Get("/tokens/{token}/symbol", accountH.Symbol)

	r.Post("/orders", orderH.PlaceOrder)
	r.Get("/orders", orderH.ListOrders)
	r.Get("/orders/{order_id}", orderH.GetOrder)
	r.Delete("/orders/{order_id}", orderH.CancelOrder)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/credit", adminH.Credit)
		r.Post("/clear", adminH.Clear)
		r.Get("/reconciliations", adminH.Reconciliations)
		r.Post("/reconciliations/{reconciliation_id}", adminH.Resolve)
	})

	return r
}

// principal returns the caller identity, empty when absent.
func principal(r *http.Request) domain.Principal {
	return domain.Principal(strings.TrimSpace(r.Header.Get(PrincipalHeader)))
}

// requestLogging returns middleware that assigns a request id and logs each
// request's method, path, status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.New().String()
			}
			w.Header().Set(RequestIDHeader, id)

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("request_id", id),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("principal", string(principal(r))),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests that carry a body. If the Content-Type header doesn't start
// with "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if r.ContentLength != 0 && (ct == "" || !strings.HasPrefix(ct, "application/json")) {
				WriteError(w, http.StatusBadRequest, "ValidationError",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
