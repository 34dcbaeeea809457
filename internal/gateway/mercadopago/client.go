// Package mercadopago adapts the Mercado Pago SDK to the PIX charges and
// payment lookups the checkout needs, plus webhook signature verification.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/sethvargo/go-retry"

	"github.com/pkordes/carpool/backend/internal/domain"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.mercadopago.com"

// Client talks to the Mercado Pago payments API through the SDK. Network
// errors, 429 and 5xx answers are retried with exponential backoff; other
// 4xx answers are not. Every error wraps domain.ErrGateway.
type Client struct {
	payments   payment.Client
	maxRetries uint64
	backoff    time.Duration
}

type settings struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint64
	backoff    time.Duration
}

// Option configures a Client.
type Option func(*settings)

// WithBaseURL points the client at another host, e.g. an httptest server.
func WithBaseURL(u string) Option {
	return func(s *settings) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) { s.httpClient = hc }
}

// WithRetries sets how many times a transient failure is retried and the
// base delay of the exponential backoff.
func WithRetries(n uint64, base time.Duration) Option {
	return func(s *settings) {
		s.maxRetries = n
		s.backoff = base
	}
}

// NewClient returns a Client authenticated with accessToken.
func NewClient(accessToken string, opts ...Option) (*Client, error) {
	s := settings{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		maxRetries: 3,
		backoff:    200 * time.Millisecond,
	}
	for _, o := range opts {
		o(&s)
	}

	rq := &requester{hc: s.httpClient}
	if s.baseURL != DefaultBaseURL {
		base, err := url.Parse(s.baseURL)
		if err != nil || base.Host == "" {
			return nil, fmt.Errorf("mercadopago.NewClient: invalid base url %q", s.baseURL)
		}
		rq.base = base
	}
	cfg, err := config.New(accessToken, config.WithHTTPClient(rq))
	if err != nil {
		return nil, fmt.Errorf("mercadopago.NewClient: %w", err)
	}
	return &Client{
		payments:   payment.NewClient(cfg),
		maxRetries: s.maxRetries,
		backoff:    s.backoff,
	}, nil
}

// CreatePix creates a PIX payment. The idempotency key is sent on every
// attempt so a retried request cannot charge twice.
func (c *Client) CreatePix(ctx context.Context, req domain.PixRequest) (domain.PixQRCode, error) {
	body := payment.Request{
		TransactionAmount: req.Amount,
		Description:       req.Description,
		PaymentMethodID:   "pix",
		Payer:             &payment.PayerRequest{Email: req.PayerEmail},
	}
	if req.PayerCPF != "" {
		body.Payer.Identification = &payment.IdentificationRequest{Type: "CPF", Number: req.PayerCPF}
	}

	var resp *payment.Response
	err := c.call(ctx, req.IdempotencyKey, func(ctx context.Context) error {
		var err error
		resp, err = c.payments.Create(ctx, body)
		return err
	})
	if err != nil {
		return domain.PixQRCode{}, fmt.Errorf("mercadopago.Client.CreatePix: %w", err)
	}

	td := resp.PointOfInteraction.TransactionData
	return domain.PixQRCode{
		PaymentID:    strconv.Itoa(resp.ID),
		QRCodeBase64: td.QRCodeBase64,
		QRCodeText:   td.QRCode,
		Amount:       resp.TransactionAmount,
		Status:       domain.GatewayStatus(resp.Status),
	}, nil
}

// GetPayment fetches the current state of a payment.
func (c *Client) GetPayment(ctx context.Context, id string) (domain.GatewayPayment, error) {
	n, err := strconv.Atoi(id)
	if err != nil || n <= 0 {
		return domain.GatewayPayment{}, fmt.Errorf("%w: invalid payment id", domain.ErrValidation)
	}

	var resp *payment.Response
	err = c.call(ctx, "", func(ctx context.Context) error {
		var err error
		resp, err = c.payments.Get(ctx, n)
		return err
	})
	if err != nil {
		return domain.GatewayPayment{}, fmt.Errorf("mercadopago.Client.GetPayment: %w", err)
	}

	gp := domain.GatewayPayment{
		ID:                strconv.Itoa(resp.ID),
		Status:            domain.GatewayStatus(resp.Status),
		StatusDetail:      resp.StatusDetail,
		TransactionAmount: resp.TransactionAmount,
	}
	if !resp.DateApproved.IsZero() {
		at := resp.DateApproved
		gp.DateApproved = &at
	}
	return gp, nil
}

// errNotFound is returned for a gateway 404.
var errNotFound = fmt.Errorf("%w: payment not found at gateway", domain.ErrNotFound)

// call runs one SDK operation under the retry policy. The attempt travels in
// the context so the requester can pin the idempotency key and report what
// the gateway answered.
func (c *Client) call(ctx context.Context, idempotencyKey string, op func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoff))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		a := &attempt{idempotencyKey: idempotencyKey}
		err := op(context.WithValue(ctx, attemptKey{}, a))
		if err == nil {
			return nil
		}
		switch {
		case ctx.Err() != nil:
			return fmt.Errorf("%w: %v", domain.ErrGateway, err)
		case a.status == http.StatusNotFound:
			return errNotFound
		case a.networkErr, a.status == http.StatusTooManyRequests, a.status >= 500:
			return retry.RetryableError(a.failure(err))
		}
		return a.failure(err)
	})
}

type attemptKey struct{}

// attempt is the state of one HTTP exchange, filled in by the requester.
type attempt struct {
	idempotencyKey string
	status         int
	message        string
	networkErr     bool
}

func (a *attempt) failure(err error) error {
	if a.status == 0 {
		return fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	msg := a.message
	if msg == "" {
		msg = err.Error()
	}
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return fmt.Errorf("%w: status %d: %s", domain.ErrGateway, a.status, msg)
}

// requester is the http layer handed to the SDK. The SDK's own requester
// retries internally; this one does not, so go-retry stays the only policy.
type requester struct {
	hc   *http.Client
	base *url.URL
}

func (r *requester) Do(req *http.Request) (*http.Response, error) {
	if r.base != nil {
		req.URL.Scheme = r.base.Scheme
		req.URL.Host = r.base.Host
		req.Host = ""
	}
	a, _ := req.Context().Value(attemptKey{}).(*attempt)
	if a != nil && a.idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", a.idempotencyKey)
	}

	resp, err := r.hc.Do(req)
	if a == nil {
		return resp, err
	}
	if err != nil {
		a.networkErr = true
		return nil, err
	}
	a.status = resp.StatusCode
	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(payload))
		a.message = errorMessage(payload)
	}
	return resp, nil
}

// errorMessage extracts the "message" of a Mercado Pago error body.
func errorMessage(payload []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &e); err == nil && e.Message != "" {
		return e.Message
	}
	return strings.TrimSpace(string(payload))
}
