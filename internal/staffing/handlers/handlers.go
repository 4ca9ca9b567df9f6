package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gartstein/staffing/internal/staffing/auth"
	"github.com/gartstein/staffing/internal/staffing/controller"
	"github.com/gartstein/staffing/internal/staffing/eligibility"
	e "github.com/gartstein/staffing/internal/staffing/errors"
	"github.com/gartstein/staffing/internal/staffing/models"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
)

// ContractController is the contract lifecycle the HTTP routes invoke.
type ContractController interface {
	Now() time.Time
	CreateContract(ctx context.Context, actor, firmID uuid.UUID, in controller.ContractInput) (*models.Contract, error)
	GetContract(ctx context.Context, actor, firmID, id uuid.UUID) (*models.Contract, error)
	ListContracts(ctx context.Context, actor uuid.UUID, f models.ContractFilter) (*models.ContractPage, error)
	ListEmployeeContracts(ctx context.Context, actor, firmID, employeeID uuid.UUID) ([]*models.Contract, error)
	UpdateContract(ctx context.Context, actor, firmID, id uuid.UUID, patch models.ContractUpdate) (*models.Contract, error)
	CheckRenewal(ctx context.Context, actor, firmID, id uuid.UUID, start time.Time, end *time.Time) (eligibility.Result, error)
	RenewContract(ctx context.Context, actor, firmID, id uuid.UUID, in controller.RenewInput) (*controller.RenewResult, error)
	TerminateContract(ctx context.Context, actor, firmID, id uuid.UUID, reason string) (*models.Contract, error)
	DeleteContract(ctx context.Context, actor, firmID, id uuid.UUID) error
}

// TransferController is the transfer workflow the HTTP routes invoke.
type TransferController interface {
	RequestTransfer(ctx context.Context, actor, firmID uuid.UUID, in controller.TransferInput) (*models.Transfer, error)
	ListTransfers(ctx context.Context, actor uuid.UUID, f models.TransferFilter) ([]*models.Transfer, error)
	GetTransfer(ctx context.Context, actor, firmID, id uuid.UUID) (*models.Transfer, error)
	ApproveTransfer(ctx context.Context, actor, firmID, id uuid.UUID, seed *models.ContractSeed) (*controller.ApproveResult, error)
	RejectTransfer(ctx context.Context, actor, firmID, id uuid.UUID, reason string) (*models.Transfer, error)
	CompleteTransfer(ctx context.Context, actor, firmID, id uuid.UUID) (*controller.CompleteResult, error)
	UpdateTransfer(ctx context.Context, actor, firmID, id uuid.UUID, patch models.TransferUpdate) (*models.Transfer, error)
	CancelTransfer(ctx context.Context, actor, firmID, id uuid.UUID) (*models.Transfer, error)
}

// Handler serves the contract and transfer routes on a gateway ServeMux
// behind the JWT middleware.
type Handler struct {
	contracts ContractController
	transfers TransferController
	mux       *runtime.ServeMux
	handler   http.Handler
	logger    *zap.Logger
}

// call is one authenticated request scoped to a firm.
type call struct {
	r      *http.Request
	actor  uuid.UUID
	firmID uuid.UUID
	params map[string]string
}

type endpoint func(ctx context.Context, c *call) (int, any, error)

// NewHandler builds the routing table.
func NewHandler(contracts ContractController, transfers TransferController, jwtSecret string, logger *zap.Logger) (*Handler, error) {
	h := &Handler{
		contracts: contracts,
		transfers: transfers,
		logger:    logger.Named("http_handler"),
	}
	h.mux = runtime.NewServeMux(
		runtime.WithMarshalerOption(runtime.MIMEWildcard, &runtime.JSONPb{
			MarshalOptions:   protojson.MarshalOptions{EmitUnpopulated: true},
			UnmarshalOptions: protojson.UnmarshalOptions{DiscardUnknown: true},
		}),
	)

	routes := []struct {
		method, path string
		fn           endpoint
	}{
		{http.MethodPost, "/v1/firms/{firmId}/contracts", h.createContract},
		{http.MethodGet, "/v1/firms/{firmId}/contracts", h.listContracts},
		{http.MethodGet, "/v1/firms/{firmId}/contracts/{contractId}", h.getContract},
		{http.MethodPut, "/v1/firms/{firmId}/contracts/{contractId}", h.updateContract},
		{http.MethodDelete, "/v1/firms/{firmId}/contracts/{contractId}", h.deleteContract},
		{http.MethodGet, "/v1/firms/{firmId}/contracts/{contractId}/renewal-eligibility", h.checkRenewal},
		{http.MethodPost, "/v1/firms/{firmId}/contracts/{contractId}/renew", h.renewContract},
		{http.MethodPost, "/v1/firms/{firmId}/contracts/{contractId}/terminate", h.terminateContract},
		{http.MethodGet, "/v1/firms/{firmId}/employees/{employeeId}/contracts", h.listEmployeeContracts},

		{http.MethodPost, "/v1/firms/{firmId}/transfers", h.requestTransfer},
		{http.MethodGet, "/v1/firms/{firmId}/transfers", h.listTransfers},
		{http.MethodGet, "/v1/firms/{firmId}/transfers/{transferId}", h.getTransfer},
		{http.MethodPut, "/v1/firms/{firmId}/transfers/{transferId}", h.updateTransfer},
		{http.MethodDelete, "/v1/firms/{firmId}/transfers/{transferId}", h.cancelTransfer},
		{http.MethodPost, "/v1/firms/{firmId}/transfers/{transferId}/approve", h.approveTransfer},
		{http.MethodPost, "/v1/firms/{firmId}/transfers/{transferId}/reject", h.rejectTransfer},
		{http.MethodPost, "/v1/firms/{firmId}/transfers/{transferId}/complete", h.completeTransfer},
	}
	for _, route := range routes {
		if err := h.mux.HandlePath(route.method, route.path, h.wrap(route.fn)); err != nil {
			return nil, err
		}
	}

	h.handler = auth.HTTPMiddleware(h.mux, jwtSecret, h.authError)
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// HandlePath adds a route that bypasses the firm scoping, such as a probe.
func (h *Handler) HandlePath(method, path string, fn runtime.HandlerFunc) error {
	return h.mux.HandlePath(method, path, fn)
}

func (h *Handler) wrap(fn endpoint) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		actor, ok := auth.UserFromContext(r.Context())
		if !ok {
			h.writeError(w, r, e.ErrUnauthenticated)
			return
		}
		firmID, err := pathUUID(params, "firmId")
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		code, body, err := fn(r.Context(), &call{r: r, actor: actor, firmID: firmID, params: params})
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, r, code, body)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, code int, body any) {
	if body == nil {
		w.WriteHeader(code)
		return
	}
	_, outbound := runtime.MarshalerForRequest(h.mux, r)
	data, err := outbound.Marshal(body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", outbound.ContentType(body))
	w.WriteHeader(code)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("Failed to write response", zap.Error(err))
	}
}

// decode reads the JSON body into v. An empty body leaves v untouched.
func (h *Handler) decode(r *http.Request, v any) error {
	inbound, _ := runtime.MarshalerForRequest(h.mux, r)
	if err := inbound.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return e.Invalid(e.ReasonInvalidField, "request body is not valid JSON for this route")
	}
	return nil
}

func pathUUID(params map[string]string, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(params[name])
	if err != nil {
		return uuid.Nil, invalidField(name, "a UUID")
	}
	return id, nil
}

func (h *Handler) createContract(ctx context.Context, c *call) (int, any, error) {
	var req createContractRequest
	if err := h.decode(c.r, &req); err != nil {
		return 0, nil, err
	}
	in, err := req.toInput()
	if err != nil {
		return 0, nil, err
	}
	created, err := h.contracts.CreateContract(ctx, c.actor, c.firmID, in)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, toContractResponse(created, h.contracts.Now()), nil
}

func (h *Handler) listContracts(ctx context.Context, c *call) (int, any, error) {
	f, err := contractFilter(c.firmID, c.r)
	if err != nil {
		return 0, nil, err
	}
	page, err := h.contracts.ListContracts(ctx, c.actor, f)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, contractPageResponse{
		Contracts: toContractResponses(page.Contracts, h.contracts.Now()),
		Pagination: paginationResponse{
			Total:      page.Total,
			Page:       page.Page,
			Limit:      page.Limit,
			TotalPages: page.TotalPages,
		},
	}, nil
}

func contractFilter(firmID uuid.UUID, r *http.Request) (models.ContractFilter, error) {
	q := r.URL.Query()
	f := models.ContractFilter{FirmID: firmID, SortBy: q.Get("sortBy")}

	if v := q.Get("status"); v != "" {
		status := models.ContractStatus(strings.ToUpper(v))
		f.Status = &status
	}
	if v := q.Get("type"); v != "" {
		typ := models.ContractType(strings.ToUpper(v))
		f.Type = &typ
	}
	if v := q.Get("employeeId"); v != "" {
		id, err := parseUUID("employeeId", v)
		if err != nil {
			return f, err
		}
		f.EmployeeID = &id
	}
	switch strings.ToLower(q.Get("sortOrder")) {
	case "", "desc":
		f.SortDesc = true
	case "asc":
	default:
		return f, invalidField("sortOrder", "asc or desc")
	}

	var err error
	if f.Page, err = queryInt(q.Get("page"), "page"); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(q.Get("limit"), "limit"); err != nil {
		return f, err
	}
	return f, nil
}

func queryInt(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, invalidField(name, "an integer")
	}
	return n, nil
}

func (h *Handler) getContract(ctx context.Context, c *call) (int, any, error) {
	id, err := pathUUID(c.params, "contractId")
	if err != nil {
		return 0, nil, err
	}
	contract, err := h.contracts.GetContract(ctx, c.actor, c.firmID, id)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, toContractResponse(contract, h.contracts.Now()), nil
}

func (h *Handler) updateContract(ctx context.Context, c *call) (int, any, error) {
	id, err := pathUUID(c.params, "contractId")
	if err != nil {
		return 0, nil, err
	}
	var req updateContractRequest
	if err := h.decode(c.r, &req); err != nil {
		return 0, nil, err
	}
	patch, err := req.toPatch()
	if err != nil {
		return 0, nil, err
	}
	updated, err := h.contracts.UpdateContract(ctx, c.actor, c.firmID, id, patch)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, toContractResponse(updated, h.contracts.Now()), nil
}

func (h *Handler) deleteContract(ctx context.Context, c *call) (int, any, error) {
	id, err := pathUUID(c.params, "contractId")
	if err != nil {
		return 0, nil, err
	}
	if err := h.contracts.DeleteContract(ctx, c.actor, c.firmID, id); err != nil {
		return 0, nil, err
	}
	return http.StatusNoContent, nil, nil
}

func (h *Handler) checkRenewal(ctx context.Context, c *call) (int, any, error) {
	id, err := pathUUID(c.params, "contractId")
	if err != nil {
		return 0, nil, err
	}
	q := c.r.URL.Query()
	start, err := parseDate("startDate", q.Get("startDate"))
	if err != nil {
		return 0, nil, err
	}
	var end *time.Time
	if v := q.Get("endDate"); v != "" {
		if end, err = parseOptionalDate("endDate", &v); err != nil {
			return 0, nil, err
		}
	}
	res, err := h.contracts.CheckRenewal(ctx, c.actor, c.firmID, id, start, end)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, toEligibilityResponse(res), nil
}

func (h *Handler) renewContract(ctx context.Context, c *call) (int, any, error) {
	id, err := pathUUID(c.params, "contractId")
	if err != nil {
		return 0, nil, err
	}
	var req renewContractRequest
	if err := h.decode(c.r, &req); err != nil {
		return 0, nil, err
	}
	in, err := req.toInput()
	if err != nil {
		return 0, nil, err
	}
	res, err := h.contracts.RenewContract(ctx, c.actor, c.firmID, id, in)
	if err != nil {
		return 0, nil, err
	}
	now := h.contracts.Now()
	return http.StatusCreated, renewResponse{
		Previous:    toContractResponse(res.Previous, now),
		Contract:    toContractResponse(res.Contract, now),
		Eligibility: toEligibilityResponse(res.Eligibility),
	}, nil
}

func (h *Handler) terminateContract(ctx context.Context, c *call) (int, any, error) {
	id, err := pathUUID(c.params, "contractId")
	if err != nil {
		return 0, nil, err
	}
	var req reasonRequest
	if err := h.decode(c.r, &req); err != nil {
		return 0, nil, err
	}
	terminated, err := h.contracts.TerminateContract(ctx, c.actor, c.firmID, id, req.Reason)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, toContractResponse(terminated, h.contracts.Now()), nil
}

func (h *Handler) listEmployeeContracts(ctx context.Context, c *call) (int, any, error) {
	employeeID, err := pathUUID(c.params, "employeeId")
	if err != nil {
		return 0, nil, err
	}
	history, err := h.contracts.ListEmployeeContracts(ctx, c.actor, c.firmID, employeeID)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, contractListResponse{Contracts: toContractResponses(history, h.contracts.Now())}, nil
}

func (h *Handler) requestTransfer(ctx context.Context, c *call) (int, any, error) {
	var req transferRequest
	if err := h.decode(c.r, &req); err != nil {
		return 0, nil, err
	}
	in, err := req.toInput()
	if err != nil {
		return 0, nil, err
	}
	t, err := h.transfers.RequestTransfer(ctx, c.actor, c.firmID, in)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, toTransferResponse(t), nil
}

func (h *Handler) listTransfers(ctx context.Context, c *call) (int, any, error) {
	q := c.r.URL.Query()
	f := models.TransferFilter{
		FirmID:    c.firmID,
		Direction: models.TransferDirection(strings.ToLower(q.Get("direction"))),
	}
	if v := q.Get("status"); v != "" {
		status := models.TransferStatus(strings.ToUpper(v))
		f.Status = &status
	}
	transfers, err := h.transfers.ListTransfers(ctx, c.actor, f)
	if err != nil {
		return 0, nil, err
	}
	out := make([]transferResponse, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, toTransferResponse(t))
	}
	return http.StatusOK, transferListResponse{Transfers: out}, nil
}

func (h *Handler) getTransfer(ctx context.Context, c *call) (int, any, error) {
	id, err := pathUUID(c.params, "transferId")
	if err != nil {
		return 0, nil, err
	}
	t, err := h.transfers.GetTransfer(ctx, c.actor, c.firmID, id)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, toTransferResponse(t), nil
}

func (h *Handler) updateTransfer(ctx context.Context, c *call) (int, any, error) {
	id, err := pathUUID(c.params, "transferId")
	if err != nil {
		return 0, nil, err
	}
	var req updateTransferRequest
	if err := h.decode(c.r, &req); err != nil {
		return 0, nil, err
	}
	patch, err := req.toPatch()
	if err != nil {
		return 0, nil, err
	}
	t, err := h.transfers.UpdateTransfer(ctx, c.actor, c.firmID, id, patch)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, toTransferResponse(t), nil
}

func (h *Handler) cancelTransfer(ctx context.Context, c *call) (int, any, error) {
	id, err := pathUUID(c.params, "transferId")
	if err != nil {
		return 0, nil, err
	}
	t, err := h.transfers.CancelTransfer(ctx, c.actor, c.firmID, id)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, toTransferResponse(t), nil
}

func (h *Handler) approveTransfer(ctx context.Context, c *call) (int, any, error) {
	id, err := pathUUID(c.params, "transferId")
	if err != nil {
		return 0, nil, err
	}
	var req approveTransferRequest
	if err := h.decode(c.r, &req); err != nil {
		return 0, nil, err
	}
	seed, err := req.toSeed()
	if err != nil {
		return 0, nil, err
	}
	res, err := h.transfers.ApproveTransfer(ctx, c.actor, c.firmID, id, seed)
	if err != nil {
		return 0, nil, err
	}
	resp := approveResponse{Transfer: toTransferResponse(res.Transfer)}
	if res.Contract != nil {
		contract := toContractResponse(res.Contract, h.contracts.Now())
		resp.Contract = &contract
	}
	return http.StatusOK, resp, nil
}

func (h *Handler) rejectTransfer(ctx context.Context, c *call) (int, any, error) {
	id, err := pathUUID(c.params, "transferId")
	if err != nil {
		return 0, nil, err
	}
	var req reasonRequest
	if err := h.decode(c.r, &req); err != nil {
		return 0, nil, err
	}
	t, err := h.transfers.RejectTransfer(ctx, c.actor, c.firmID, id, req.Reason)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, toTransferResponse(t), nil
}

func (h *Handler) completeTransfer(ctx context.Context, c *call) (int, any, error) {
	id, err := pathUUID(c.params, "transferId")
	if err != nil {
		return 0, nil, err
	}
	res, err := h.transfers.CompleteTransfer(ctx, c.actor, c.firmID, id)
	if err != nil {
		return 0, nil, err
	}
	now := h.contracts.Now()
	resp := completeResponse{
		Transfer:            toTransferResponse(res.Transfer),
		TerminatedContracts: toContractResponses(res.Terminated, now),
	}
	if res.Contract != nil {
		contract := toContractResponse(res.Contract, now)
		resp.Contract = &contract
	}
	return http.StatusOK, resp, nil
}
