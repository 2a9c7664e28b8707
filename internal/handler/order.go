package handler

import (
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/tokenswap/internal/domain"
	"github.com/efreitasn/tokenswap/internal/service"
)

// ratePrecision is the number of decimal places rendered for implied rates.
const ratePrecision = 18

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	svc *service.Exchange
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc *service.Exchange) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// placeOrderRequest is the JSON request body for POST /orders.
type placeOrderRequest struct {
	From       string `json:"from"`
	FromAmount uint64 `json:"from_amount"`
	To         string `json:"to"`
	ToAmount   uint64 `json:"to_amount"`
}

// orderResponse is the JSON representation of an order.
// Rate is to_amount/from_amount as a decimal string.
type orderResponse struct {
	ID         uint64          `json:"id"`
	Owner      string          `json:"owner"`
	From       string          `json:"from"`
	FromAmount uint64          `json:"from_amount"`
	To         string          `json:"to"`
	ToAmount   uint64          `json:"to_amount"`
	Remaining  uint64          `json:"remaining"`
	Rate       string          `json:"rate"`
	Status     string          `json:"status"`
	CreatedAt  string          `json:"created_at"`
	ClosedAt   *string         `json:"closed_at"`
	Trades     []tradeResponse `json:"trades"`
}

// tradeResponse is a single fill in the order response.
type tradeResponse struct {
	TradeID    string `json:"trade_id"`
	TakerOrder uint64 `json:"taker_order_id"`
	MakerOrder uint64 `json:"maker_order_id"`
	Taker      string `json:"taker"`
	Maker      string `json:"maker"`
	TakerToken string `json:"taker_token"`
	MakerToken string `json:"maker_token"`
	TakerGave  uint64 `json:"taker_gave"`
	MakerGave  uint64 `json:"maker_gave"`
	Rate       string `json:"rate"`
	ExecutedAt string `json:"executed_at"`
}

// PlaceOrder handles POST /orders.
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}

	order, err := h.svc.PlaceOrder(principal(r), service.OrderRequest{
		From:       domain.Token(req.From),
		FromAmount: req.FromAmount,
		To:         domain.Token(req.To),
		ToAmount:   req.ToAmount,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteOK(w, http.StatusCreated, buildOrderResponse(order))
}

// GetOrder handles GET /orders/{order_id}. An unknown or purged order
// yields {"ok": null}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	order, found := h.svc.CheckOrder(id)
	if !found {
		WriteOK(w, http.StatusOK, nil)
		return
	}
	WriteOK(w, http.StatusOK, buildOrderResponse(order))
}

// CancelOrder handles DELETE /orders/{order_id}.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	order, err := h.svc.CancelOrder(principal(r), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteOK(w, http.StatusOK, buildOrderResponse(order))
}

// ListOrders handles GET /orders. Query parameters from, to and owner
// narrow the result; owner=me selects the caller's orders.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := service.OrderFilter{
		From:  domain.Token(q.Get("from")),
		To:    domain.Token(q.Get("to")),
		Owner: domain.Principal(q.Get("owner")),
	}
	if filter.Owner == "me" {
		filter.Owner = principal(r)
		if filter.Owner == "" {
			writeServiceError(w, domain.ErrUnauthenticated)
			return
		}
	}

	out := []orderResponse{}
	for o := range h.svc.ListOrders(filter) {
		out = append(out, buildOrderResponse(o))
	}
	WriteOK(w, http.StatusOK, out)
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (domain.OrderID, bool) {
	raw := chi.URLParam(r, "order_id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "ValidationError", "order_id must be a non-negative integer")
		return 0, false
	}
	return domain.OrderID(id), true
}

// rate renders num/den as a decimal string, trailing zeros trimmed.
func rate(num, den uint64) string {
	if den == 0 {
		return "0"
	}
	n := decimal.NewFromBigInt(new(big.Int).SetUint64(num), 0)
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(den), 0)
	return n.DivRound(d, ratePrecision).String()
}

const timeLayout = "2006-01-02T15:04:05Z"

func buildOrderResponse(o domain.Order) orderResponse {
	resp := orderResponse{
		ID:         uint64(o.ID),
		Owner:      string(o.Owner),
		From:       string(o.From),
		FromAmount: o.FromAmount,
		To:         string(o.To),
		ToAmount:   o.ToAmount,
		Remaining:  o.Remaining,
		Rate:       rate(o.ToAmount, o.FromAmount),
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt.UTC().Format(timeLayout),
		Trades:     buildTradeResponses(o.Trades),
	}
	if o.ClosedAt != nil {
		s := o.ClosedAt.UTC().Format(timeLayout)
		resp.ClosedAt = &s
	}
	return resp
}

// buildTradeResponses renders fills; the rate is what the taker received
// per unit given.
func buildTradeResponses(trades []*domain.Trade) []tradeResponse {
	out := make([]tradeResponse, 0, len(trades))
	for _, t := range trades {
		out = append(out, tradeResponse{
			TradeID:    t.TradeID,
			TakerOrder: uint64(t.TakerOrder),
			MakerOrder: uint64(t.MakerOrder),
			Taker:      string(t.Taker),
			Maker:      string(t.Maker),
			TakerToken: string(t.TakerToken),
			MakerToken: string(t.MakerToken),
			TakerGave:  t.TakerGave,
			MakerGave:  t.MakerGave,
			Rate:       rate(t.MakerGave, t.TakerGave),
			ExecutedAt: t.ExecutedAt.UTC().Format(timeLayout),
		})
	}
	return out
}
