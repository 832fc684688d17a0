/*
handlers.go - HTTP API handlers for the order ledger

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to ledger.Engine.

ENDPOINTS:
  Parties:
    GET    /api/parties                  List parties (?type=Customer)
    POST   /api/parties                  Create party
    POST   /api/parties/resolve          Find by typed name or create
    GET    /api/parties/{id}             Get party
    DELETE /api/parties/{id}             Delete unreferenced party
    GET    /api/parties/{id}/balance     Sum of postings
    GET    /api/parties/{id}/statement   Postings with running balance

  Orders:
    GET    /api/orders                   List orders, newest first (?status=)
    POST   /api/orders                   Create order and derive postings
    POST   /api/orders/preview           Derive without saving
    GET    /api/orders/{id}              Get order
    PUT    /api/orders/{id}              Update order, rebuild postings
    DELETE /api/orders/{id}              Delete order and its postings
    GET    /api/orders/{id}/postings     Postings of one order

  Ledger:
    GET    /api/balances                 Every party's balance + totals
    POST   /api/ledger                   Manual entry
    DELETE /api/ledger/{id}              Delete manual entry

  Admin:
    POST   /api/admin/reconcile          Compare postings with derivation (?repair=true)

OWNERSHIP:
  Every /api request carries X-User-ID. Session handling lives outside
  this service.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, bad party references
  - 404: Resource not found
  - 409: Conflict (derived posting, party in use)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/tradebook/order-ledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *ledger.Engine
	// Ping checks the backing store for /healthz. Optional.
	Ping func(ctx context.Context) error

	validate *validator.Validate
}

// NewHandler creates a new handler around the engine.
func NewHandler(engine *ledger.Engine, ping func(ctx context.Context) error) *Handler {
	return &Handler{
		Engine:   engine,
		Ping:     ping,
		validate: validator.New(),
	}
}

// =============================================================================
// PARTY ENDPOINTS
// =============================================================================

// ListParties returns the caller's directory.
// GET /api/parties?type=Customer
func (h *Handler) ListParties(w http.ResponseWriter, r *http.Request) {
	parties, err := h.Engine.ListParties(r.Context(), userFrom(r))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	filter := ledger.PartyType(r.URL.Query().Get("type"))
	out := make([]PartyDTO, 0, len(parties))
	for _, p := range parties {
		if filter != "" && p.Type != filter {
			continue
		}
		out = append(out, toPartyDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateParty adds a party.
// POST /api/parties
func (h *Handler) CreateParty(w http.ResponseWriter, r *http.Request) {
	var req CreatePartyRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	p, err := h.Engine.SaveParty(r.Context(), userFrom(r), ledger.Party{
		Name:    req.Name,
		Type:    ledger.PartyType(req.Type),
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPartyDTO(p))
}

// ResolveParty finds a party by typed name, creating it when missing.
// POST /api/parties/resolve
func (h *Handler) ResolveParty(w http.ResponseWriter, r *http.Request) {
	var req ResolvePartyRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	p, created, err := h.Engine.ResolveParty(r.Context(), userFrom(r), req.Name, ledger.PartyType(req.Type))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, ResolvePartyResponse{Party: toPartyDTO(p), Created: created})
}

// GetParty returns one party.
// GET /api/parties/{id}
func (h *Handler) GetParty(w http.ResponseWriter, r *http.Request) {
	p, err := h.Engine.GetParty(r.Context(), userFrom(r), partyParam(r))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPartyDTO(p))
}

// DeleteParty removes a party nothing references.
// DELETE /api/parties/{id}
func (h *Handler) DeleteParty(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.DeleteParty(r.Context(), userFrom(r), partyParam(r)); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetBalance returns the sum of the party's postings.
// GET /api/parties/{id}/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := partyParam(r)
	bal, err := h.Engine.Balance(r.Context(), userFrom(r), id)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{PartyID: string(id), Balance: bal})
}

// GetStatement returns the party's postings with a running balance.
// GET /api/parties/{id}/statement
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	st, err := h.Engine.Statement(r.Context(), userFrom(r), partyParam(r))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	dto := StatementDTO{
		Party:   toPartyDTO(st.Party),
		Lines:   make([]StatementLineDTO, len(st.Lines)),
		Balance: st.Balance,
	}
	for i, l := range st.Lines {
		dto.Lines[i] = StatementLineDTO{Posting: toPostingDTO(l.Posting), Running: l.Running}
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// ORDER ENDPOINTS
// =============================================================================

// ListOrders returns the caller's orders, newest first.
// GET /api/orders?status=Pending
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Engine.ListOrders(r.Context(), userFrom(r))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	filter := ledger.OrderStatus(r.URL.Query().Get("status"))
	out := make([]OrderDTO, 0, len(orders))
	for _, o := range orders {
		if filter != "" && o.Status != filter {
			continue
		}
		out = append(out, toOrderDTO(o))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateOrder saves a new order and derives its postings.
// POST /api/orders
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	h.saveOrder(w, r, req.toOrder(""), http.StatusCreated)
}

// UpdateOrder replaces the order's fields and rebuilds its postings.
// PUT /api/orders/{id}
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	h.saveOrder(w, r, req.toOrder(orderParam(r)), http.StatusOK)
}

func (h *Handler) saveOrder(w http.ResponseWriter, r *http.Request, o ledger.Order, status int) {
	res, err := h.Engine.SaveOrder(r.Context(), userFrom(r), o)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, status, SaveOrderResponse{
		Order:    toOrderDTO(res.Order),
		Postings: toPostingDTOs(res.Postings),
	})
}

// PreviewOrder derives postings and margin without writing anything.
// POST /api/orders/preview
func (h *Handler) PreviewOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	o := req.toOrder("")
	if err := ledger.ValidateOrder(o); err != nil {
		writeEngineError(w, r, err)
		return
	}

	p := ledger.PreviewOrder(o)
	net := make(map[string]decimal.Decimal, len(p.NetByParty))
	for id, v := range p.NetByParty {
		net[string(id)] = v
	}
	writeJSON(w, http.StatusOK, PreviewResponse{
		Margin:           p.Margin,
		MarginPercentage: p.MarginPercentage,
		Postings:         toDraftDTOs(p.Postings),
		NetByParty:       net,
	})
}

// GetOrder returns one order.
// GET /api/orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Engine.GetOrder(r.Context(), userFrom(r), orderParam(r))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

// DeleteOrder removes the order and every posting derived from it.
// DELETE /api/orders/{id}
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.DeleteOrder(r.Context(), userFrom(r), orderParam(r)); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetOrderPostings returns the postings attached to one order.
// GET /api/orders/{id}/postings
func (h *Handler) GetOrderPostings(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Engine.OrderPostings(r.Context(), userFrom(r), orderParam(r))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostingDTOs(ps))
}

// =============================================================================
// LEDGER ENDPOINTS
// =============================================================================

// GetBalances returns every party's balance with receivable/payable totals.
// GET /api/balances
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Engine.Balances(r.Context(), userFrom(r))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	resp := BalancesResponse{
		Parties:    make([]PartyBalanceDTO, len(sum.Parties)),
		Receivable: sum.Receivable,
		Payable:    sum.Payable,
	}
	for i, pb := range sum.Parties {
		resp.Parties[i] = PartyBalanceDTO{Party: toPartyDTO(pb.Party), Balance: pb.Balance}
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateEntry records a posting not tied to any order.
// POST /api/ledger
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	p, err := h.Engine.RecordEntry(r.Context(), userFrom(r), ledger.PostingDraft{
		PartyID: ledger.PartyID(req.PartyID),
		Amount:  req.Amount,
		Type:    ledger.TransactionType(req.Type),
		Notes:   req.Notes,
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPostingDTO(p))
}

// DeleteEntry removes a manual posting.
// DELETE /api/ledger/{id}
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := ledger.PostingID(chi.URLParam(r, "id"))
	if err := h.Engine.DeleteEntry(r.Context(), userFrom(r), id); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

// Reconcile compares stored postings with a fresh derivation.
// POST /api/admin/reconcile?repair=true
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	repair := false
	if v := r.URL.Query().Get("repair"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid repair flag", err)
			return
		}
		repair = b
	}

	report, err := h.Engine.Reconcile(r.Context(), userFrom(r), repair)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	resp := ReconcileResponse{
		Clean:      report.Clean(),
		Checked:    report.Checked,
		Repaired:   report.Repaired,
		Drifted:    make([]DriftDTO, len(report.Drifted)),
		Unbalanced: make([]string, len(report.Unbalanced)),
	}
	for i, d := range report.Drifted {
		resp.Drifted[i] = DriftDTO{
			OrderID:    string(d.OrderID),
			Missing:    toDraftDTOs(d.Missing),
			Unexpected: toPostingDTOs(d.Unexpected),
		}
	}
	for i, id := range report.Unbalanced {
		resp.Unbalanced[i] = string(id)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health reports whether the store answers.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		if err := h.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func partyParam(r *http.Request) ledger.PartyID { return ledger.PartyID(chi.URLParam(r, "id")) }
func orderParam(r *http.Request) ledger.OrderID { return ledger.OrderID(chi.URLParam(r, "id")) }

// decodeRequest decodes a JSON body into dst and validates it. It writes
// the error response itself and reports whether the handler may continue.
func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return false
		}
		resp := ErrorResponse{Error: "Invalid request body"}
		for _, fe := range verrs {
			resp.Fields = append(resp.Fields, ledger.FieldError{
				Field:   fe.Field(),
				Message: fmt.Sprintf("failed %s", fe.Tag()),
			})
		}
		writeJSON(w, http.StatusBadRequest, resp)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps ledger errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  verr.Kind.Error(),
			Fields: verr.Fields,
		})
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid reference", err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case ledger.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request.failed")
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}
