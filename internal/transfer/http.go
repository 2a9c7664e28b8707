package transfer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/efreitasn/tokenswap/internal/domain"
)

type transferInRequest struct {
	From   domain.Principal `json:"from"`
	Amount uint64           `json:"amount"`
	Memo   string           `json:"memo"`
}

type transferOutRequest struct {
	To     domain.Principal `json:"to"`
	Amount uint64           `json:"amount"`
	Memo   string           `json:"memo"`
}

type transferResponse struct {
	Amount *uint64 `json:"amount"`
}

type remoteError struct {
	Error string `json:"error"`
}

// HTTPLedger talks to a remote token ledger over JSON/HTTP.
//
// A 2xx response carrying the moved amount confirms the transfer, a 4xx
// rejects it, and anything else (5xx, a 2xx without an amount, timeouts,
// transport errors) leaves it unconfirmed. Requests are never retried.
type HTTPLedger struct {
	http *resty.Client
}

// NewHTTPLedger creates a client for the ledger service at baseURL.
func NewHTTPLedger(baseURL string, timeout time.Duration) *HTTPLedger {
	return newHTTPLedger(resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout))
}

func newHTTPLedger(c *resty.Client) *HTTPLedger {
	c.SetHeader("Accept", "application/json")
	return &HTTPLedger{http: c}
}

// TransferIn implements Ledger.
func (l *HTTPLedger) TransferIn(ctx context.Context, token domain.Token, from domain.Principal, amount uint64, memo string) (uint64, error) {
	return l.post(ctx, token, "transfer-in", transferInRequest{From: from, Amount: amount, Memo: memo})
}

// TransferOut implements Ledger.
func (l *HTTPLedger) TransferOut(ctx context.Context, token domain.Token, to domain.Principal, amount uint64, memo string) (uint64, error) {
	return l.post(ctx, token, "transfer-out", transferOutRequest{To: to, Amount: amount, Memo: memo})
}

func (l *HTTPLedger) post(ctx context.Context, token domain.Token, action string, body any) (uint64, error) {
	var out transferResponse
	var rerr remoteError

	resp, err := l.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&rerr).
		Post("/tokens/" + url.PathEscape(string(token)) + "/" + action)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w: %v", action, token, ErrUnconfirmed, err)
	}

	status := resp.StatusCode()
	switch {
	case status >= http.StatusOK && status < http.StatusMultipleChoices:
		if out.Amount == nil {
			return 0, fmt.Errorf("%s %s: %w: HTTP %d without amount", action, token, ErrUnconfirmed, status)
		}
		return *out.Amount, nil
	case status >= http.StatusBadRequest && status < http.StatusInternalServerError:
		return 0, fmt.Errorf("%s %s: %w: HTTP %d %s", action, token, ErrRejected, status, rerr.Error)
	default:
		return 0, fmt.Errorf("%s %s: %w: HTTP %d", action, token, ErrUnconfirmed, status)
	}
}

// Classify folds a transfer error into the outcome it represents.
// Unknown errors are treated as unconfirmed.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRejected):
		return ErrRejected
	default:
		return ErrUnconfirmed
	}
}
