package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/questline/walletcore/internal/services/ledger"
	"github.com/questline/walletcore/internal/wallet"
)

// LedgerService is the mutating surface the handlers need.
type LedgerService interface {
	CreateAccount(ctx context.Context, accountID string) (wallet.Account, error)
	LinkPayoutAddress(ctx context.Context, accountID, address string) error
	Credit(ctx context.Context, p ledger.CreditParams) (wallet.Record, error)
	Debit(ctx context.Context, p ledger.DebitParams) (wallet.Record, error)
	TopUpCash(ctx context.Context, accountID string, amount int64, method, externalRef string) (wallet.Record, error)
	WithdrawCash(ctx context.Context, accountID string, amount int64, destination string) (wallet.Record, error)
	RedeemForExternalPayout(ctx context.Context, accountID string, amount int64, window time.Duration) (wallet.Record, error)
	Refund(ctx context.Context, accountID, originalRecordID string, amount int64) (wallet.Record, error)
	TransitionStatus(ctx context.Context, recordID string, next wallet.Status) (wallet.Record, error)
}

// Reporter is the read-only surface.
type Reporter interface {
	Balance(ctx context.Context, accountID string) (wallet.BalanceView, error)
	Transactions(ctx context.Context, accountID string, f wallet.Filter, p wallet.Page) ([]wallet.Record, error)
	Stats(ctx context.Context, accountID string) (wallet.StatsView, error)
}

// HandlerProvider wraps the ledger service and reporter and exposes HTTP handlers.
type HandlerProvider struct {
	ledger   LedgerService
	reporter Reporter
}

// NewHandler returns a new handler provider.
func NewHandler(l LedgerService, r Reporter) *HandlerProvider {
	return &HandlerProvider{ledger: l, reporter: r}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps the ledger error taxonomy to HTTP. A duplicate
// operation is success-shaped: the caller gets the original record and 200.
func writeServiceError(w http.ResponseWriter, err error, dup wallet.Record) {
	switch {
	case errors.Is(err, wallet.ErrDuplicateOperation):
		writeJSON(w, http.StatusOK, dup)
	case errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, wallet.ErrInvalidKind):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, wallet.ErrAccountNotFound),
		errors.Is(err, wallet.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, wallet.ErrAccountExists),
		errors.Is(err, wallet.ErrInsufficientBalance),
		errors.Is(err, wallet.ErrNoPayoutAddress),
		errors.Is(err, wallet.ErrInvalidTransition),
		errors.Is(err, wallet.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, wallet.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, wallet.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage unavailable, retry later")
	default:
		slog.Error("unhandled service error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func accountIDFromPath(r *http.Request) (string, bool) {
	id := chi.URLParam(r, "accountId")
	return id, id != ""
}

// decodeJSON reads a size-capped request body into dst, rejecting unknown
// fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}

		return errors.New("invalid JSON")
	}

	return nil
}

// --- Account handlers ---

type createAccountRequest struct {
	AccountID string `json:"accountId"`
}

// CreateAccountHandler handles POST /accounts.
func (h *HandlerProvider) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "accountId required")
		return
	}

	acct, err := h.ledger.CreateAccount(r.Context(), req.AccountID)
	if err != nil {
		writeServiceError(w, err, wallet.Record{})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"accountId":   acct.ID,
		"coinBalance": acct.CoinBalance,
		"cashBalance": acct.CashBalance,
		"createdAt":   acct.CreatedAt,
	})
}

type payoutAddressRequest struct {
	Address string `json:"address"`
}

// LinkPayoutAddressHandler handles POST /accounts/{accountId}/payout-address.
func (h *HandlerProvider) LinkPayoutAddressHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing accountId")
		return
	}

	var req payoutAddressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "address required")
		return
	}

	err := h.ledger.LinkPayoutAddress(r.Context(), accountID, req.Address)
	if err != nil {
		writeServiceError(w, err, wallet.Record{})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Mutation handlers ---

type mutationRequest struct {
	Amount         int64           `json:"amount"`
	Kind           string          `json:"kind"`
	Description    string          `json:"description"`
	Context        json.RawMessage `json:"context"`
	ExternalRef    string          `json:"externalRef"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

// CreditHandler handles POST /accounts/{accountId}/credit.
func (h *HandlerProvider) CreditHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing accountId")
		return
	}

	var req mutationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	kind, ok := wallet.ParseKind(req.Kind)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid kind")
		return
	}

	rec, err := h.ledger.Credit(r.Context(), ledger.CreditParams{
		AccountID:      accountID,
		Amount:         req.Amount,
		Kind:           kind,
		Description:    req.Description,
		Context:        req.Context,
		ExternalRef:    req.ExternalRef,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		writeServiceError(w, err, rec)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// DebitHandler handles POST /accounts/{accountId}/debit.
func (h *HandlerProvider) DebitHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing accountId")
		return
	}

	var req mutationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	kind, ok := wallet.ParseKind(req.Kind)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid kind")
		return
	}

	rec, err := h.ledger.Debit(r.Context(), ledger.DebitParams{
		AccountID:      accountID,
		Amount:         req.Amount,
		Kind:           kind,
		Description:    req.Description,
		Context:        req.Context,
		ExternalRef:    req.ExternalRef,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		writeServiceError(w, err, rec)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

type topUpRequest struct {
	Amount      int64  `json:"amount"`
	Method      string `json:"method"`
	ExternalRef string `json:"externalRef"`
}

// TopUpHandler handles POST /accounts/{accountId}/topup.
func (h *HandlerProvider) TopUpHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing accountId")
		return
	}

	var req topUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.ledger.TopUpCash(r.Context(), accountID, req.Amount, req.Method, req.ExternalRef)
	if err != nil {
		writeServiceError(w, err, rec)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

type withdrawRequest struct {
	Amount      int64  `json:"amount"`
	Destination string `json:"destination"`
}

// WithdrawHandler handles POST /accounts/{accountId}/withdraw.
func (h *HandlerProvider) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing accountId")
		return
	}

	var req withdrawRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Destination == "" {
		writeError(w, http.StatusBadRequest, "destination required")
		return
	}

	rec, err := h.ledger.WithdrawCash(r.Context(), accountID, req.Amount, req.Destination)
	if err != nil {
		writeServiceError(w, err, rec)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

type redeemRequest struct {
	Amount int64  `json:"amount"`
	Window string `json:"window"` // optional Go duration, server default when empty
}

// RedeemHandler handles POST /accounts/{accountId}/redeem.
func (h *HandlerProvider) RedeemHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing accountId")
		return
	}

	var req redeemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var window time.Duration
	if req.Window != "" {
		var err error
		window, err = time.ParseDuration(req.Window)
		if err != nil || window < 0 {
			writeError(w, http.StatusBadRequest, "invalid window")
			return
		}
	}

	rec, err := h.ledger.RedeemForExternalPayout(r.Context(), accountID, req.Amount, window)
	if err != nil {
		writeServiceError(w, err, rec)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

type refundRequest struct {
	OriginalRecordID string `json:"originalRecordId"`
	Amount           int64  `json:"amount"`
}

// RefundHandler handles POST /accounts/{accountId}/refund.
func (h *HandlerProvider) RefundHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing accountId")
		return
	}

	var req refundRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.OriginalRecordID == "" {
		writeError(w, http.StatusBadRequest, "originalRecordId required")
		return
	}

	rec, err := h.ledger.Refund(r.Context(), accountID, req.OriginalRecordID, req.Amount)
	if err != nil {
		writeServiceError(w, err, rec)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

type transitionRequest struct {
	Status string `json:"status"`
}

// TransitionStatusHandler handles POST /records/{recordId}/status.
func (h *HandlerProvider) TransitionStatusHandler(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "recordId")
	if recordID == "" {
		writeError(w, http.StatusBadRequest, "missing recordId")
		return
	}

	var req transitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, ok := wallet.ParseStatus(req.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	rec, err := h.ledger.TransitionStatus(r.Context(), recordID, status)
	if err != nil {
		writeServiceError(w, err, rec)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// --- Reporting handlers ---

// GetBalanceHandler handles GET /accounts/{accountId}/balance.
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing accountId")
		return
	}

	view, err := h.reporter.Balance(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, err, wallet.Record{})
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// ListRecordsHandler handles GET /accounts/{accountId}/records.
func (h *HandlerProvider) ListRecordsHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing accountId")
		return
	}

	filter, page, err := parseListQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	recs, err := h.reporter.Transactions(r.Context(), accountID, filter, page)
	if err != nil {
		writeServiceError(w, err, wallet.Record{})
		return
	}

	if recs == nil {
		recs = []wallet.Record{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"records": recs})
}

// GetStatsHandler handles GET /accounts/{accountId}/stats.
func (h *HandlerProvider) GetStatsHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing accountId")
		return
	}

	view, err := h.reporter.Stats(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, err, wallet.Record{})
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func parseListQuery(r *http.Request) (wallet.Filter, wallet.Page, error) {
	var (
		f wallet.Filter
		p wallet.Page
	)

	q := r.URL.Query()

	if raw := q.Get("kind"); raw != "" {
		kind, ok := wallet.ParseKind(raw)
		if !ok {
			return f, p, errors.New("invalid kind filter")
		}
		f.Kind = kind
	}

	if raw := q.Get("status"); raw != "" {
		status, ok := wallet.ParseStatus(raw)
		if !ok {
			return f, p, errors.New("invalid status filter")
		}
		f.Status = status
	}

	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, p, errors.New("invalid from timestamp")
		}
		f.From = t
	}

	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, p, errors.New("invalid to timestamp")
		}
		f.To = t
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, p, errors.New("invalid limit")
		}
		p.Limit = n
	}

	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, p, errors.New("invalid offset")
		}
		p.Offset = n
	}

	return f, p, nil
}
