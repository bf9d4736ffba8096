package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"partial-matching/internal/engine"
	"partial-matching/internal/fund"
	"partial-matching/internal/matching"
	"partial-matching/internal/orderbook"
)

// Handler handles HTTP requests for the partial matching API
type Handler struct {
	registry *engine.Registry
	catalog  fund.Catalog
	views    *orderbook.Projector
	logger   *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(registry *engine.Registry, catalog fund.Catalog, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		registry: registry,
		catalog:  catalog,
		views:    orderbook.NewProjector(registry, catalog),
		logger:   logger,
	}
}

// CreateEngine handles POST /partial-matching/create-engine
func (h *Handler) CreateEngine(c *gin.Context) {
	var req CreateEngineRequest
	if !h.bind(c, &req, true) {
		return
	}

	params := engine.CreateParams{
		EngineID: req.EngineID,
		TTL:      time.Duration(req.TTLSeconds) * time.Second,
	}
	if req.FundID != "" {
		spec, err := h.catalog.Get(req.FundID)
		if err != nil {
			h.writeError(c, err)
			return
		}
		params.FundID = spec.FundID
	}

	e, err := h.registry.Create(params)
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeData(c, http.StatusCreated, EngineResponse{
		EngineID:   e.ID(),
		FundID:     e.FundID(),
		TTLSeconds: int64(e.TTL() / time.Second),
		CreatedAt:  e.CreatedAt(),
	})
}

// AddOrder handles POST /partial-matching/add-order
func (h *Handler) AddOrder(c *gin.Context) {
	var req AddOrderRequest
	if !h.bind(c, &req, false) {
		return
	}

	spec, err := h.catalog.Get(req.FundID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	qty, err := spec.ParseUnits(string(req.Quantity))
	if err != nil {
		h.writeError(c, &matching.ValidationError{Field: "quantity", Reason: err.Error()})
		return
	}
	price, err := parsePrice(spec, req.Price)
	if err != nil {
		h.writeError(c, err)
		return
	}

	e, err := h.registry.Resolve(req.EngineID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	order, err := e.AddOrder(engine.AddOrderRequest{
		Order: matching.NewOrder{
			OrderID:   newOrderID(req.EngineID, req.AccountID, req.IdempotencyKey),
			FundID:    spec.FundID,
			AccountID: req.AccountID,
			Side:      matching.Side(req.Side),
			Price:     price,
			Quantity:  qty,
		},
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, AddOrderResponse{
		OrderID:     order.OrderID,
		EngineID:    e.ID(),
		Status:      string(order.Status),
		Seq:         order.Seq,
		SubmittedAt: order.SubmittedAt,
	})
}

// CancelOrder handles POST /partial-matching/cancel-order
func (h *Handler) CancelOrder(c *gin.Context) {
	var req CancelOrderRequest
	if !h.bind(c, &req, false) {
		return
	}
	e, err := h.registry.Get(req.EngineID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	order, err := e.CancelOrder(req.OrderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, h.orderDTO(e.ID(), order))
}

// ProcessAll handles POST /partial-matching/process-all
func (h *Handler) ProcessAll(c *gin.Context) {
	var req ProcessAllRequest
	if !h.bind(c, &req, false) {
		return
	}
	e, err := h.registry.Get(req.EngineID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	opts := engine.ProcessOptions{}
	if len(req.NAV) > 0 {
		opts.NAV = make(map[string]int64, len(req.NAV))
		for fundID, raw := range req.NAV {
			spec, err := h.catalog.Get(fundID)
			if err != nil {
				h.writeError(c, err)
				return
			}
			nav, err := spec.ParsePrice(string(raw))
			if err != nil {
				h.writeError(c, &matching.ValidationError{Field: "nav." + fundID, Reason: err.Error()})
				return
			}
			opts.NAV[spec.FundID] = nav
		}
	}

	// Publication must not be cut short by the client going away
	res, err := e.ProcessAll(context.WithoutCancel(c.Request.Context()), opts)
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, ProcessAllResponse{
		EngineID:    e.ID(),
		Status:      string(res.Status),
		Trades:      h.tradeDTOs("", res.Trades),
		QueueStatus: h.queueStatus(e.Orders("")),
		Iterations:  res.Iterations,
		DurationMs:  float64(res.Duration.Microseconds()) / 1000,
	})
}

// QueueStatus handles POST /partial-matching/queue-status
func (h *Handler) QueueStatus(c *gin.Context) {
	e, ok := h.engineFromBody(c)
	if !ok {
		return
	}
	writeData(c, http.StatusOK, h.queueStatus(e.Orders("")))
}

// ClearQueue handles POST /partial-matching/clear-queue
func (h *Handler) ClearQueue(c *gin.Context) {
	e, ok := h.engineFromBody(c)
	if !ok {
		return
	}
	drained, err := e.ClearQueue()
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, ClearQueueResponse{
		EngineID:      e.ID(),
		DrainedCount:  len(drained),
		DrainedOrders: h.orderDTOs("", drained),
	})
}

// Orders handles POST /partial-matching/orders
func (h *Handler) Orders(c *gin.Context) {
	var req OrdersRequest
	if !h.bind(c, &req, false) {
		return
	}
	e, err := h.registry.Get(req.EngineID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := h.orderDTOs("", e.Orders(matching.OrderStatus(req.Status)))
	if req.IncludeTrades {
		for i := range out {
			out[i].Trades = h.tradeDTOs("", e.TradesFor(out[i].OrderID))
		}
	}
	writeData(c, http.StatusOK, out)
}

// SetNAV handles POST /partial-matching/set-nav
func (h *Handler) SetNAV(c *gin.Context) {
	var req SetNAVRequest
	if !h.bind(c, &req, false) {
		return
	}
	spec, err := h.catalog.Get(req.FundID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	nav, err := spec.ParsePrice(string(req.NAV))
	if err != nil {
		h.writeError(c, &matching.ValidationError{Field: "nav", Reason: err.Error()})
		return
	}
	asOf := time.Now().UTC()
	if err := h.catalog.SetNAV(spec.FundID, nav, asOf); err != nil {
		h.writeError(c, err)
		return
	}
	h.logger.Info("fund NAV updated", zap.String("fund_id", spec.FundID), zap.Int64("nav", nav))
	writeData(c, http.StatusOK, FundNAVResponse{
		FundID:  spec.FundID,
		NAV:     spec.FormatPrice(nav),
		NAVAsOf: asOf,
	})
}

// ListEngines handles GET /partial-matching/engines
func (h *Handler) ListEngines(c *gin.Context) {
	summaries := h.registry.List()
	out := make([]EngineSummaryDTO, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, engineSummaryDTO(s))
	}
	writeData(c, http.StatusOK, out)
}

// DeleteEngine handles DELETE /partial-matching/engines/:engine_id
func (h *Handler) DeleteEngine(c *gin.Context) {
	engineID := c.Param("engine_id")
	if err := h.registry.Delete(engineID); err != nil {
		h.writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, CleanupResponse{RemovedEngineIDs: []string{engineID}})
}

// Cleanup handles POST /partial-matching/cleanup
func (h *Handler) Cleanup(c *gin.Context) {
	var req CleanupRequest
	if !h.bind(c, &req, true) {
		return
	}

	var removed []string
	if req.TTL != nil {
		removed = h.registry.Cleanup(time.Duration(*req.TTL) * time.Second)
	} else {
		removed = h.registry.CleanupExpired()
	}
	writeData(c, http.StatusOK, CleanupResponse{RemovedEngineIDs: removed})
}

// Health handles GET /healthz
func (h *Handler) Health(c *gin.Context) {
	writeData(c, http.StatusOK, HealthResponse{Status: "ok", Engines: h.registry.Len()})
}

func (h *Handler) engineFromBody(c *gin.Context) (*engine.Engine, bool) {
	var req EngineRequest
	if !h.bind(c, &req, false) {
		return nil, false
	}
	e, err := h.registry.Get(req.EngineID)
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	return e, true
}

// bind decodes and validates the JSON body. An empty body is accepted when optional.
func (h *Handler) bind(c *gin.Context, req any, optional bool) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	if optional && errors.Is(err, io.EOF) {
		return true
	}
	h.writeError(c, bindingError(err))
	return false
}

func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &matching.ValidationError{Field: fe.Field(), Reason: describeRule(fe)}
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &matching.ValidationError{Field: typeErr.Field, Reason: "must be a " + typeErr.Type.String()}
	}
	if errors.Is(err, io.EOF) {
		return &matching.ValidationError{Field: "body", Reason: "required"}
	}
	return &matching.ValidationError{Field: "body", Reason: "malformed JSON: " + err.Error()}
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "max":
		return fmt.Sprintf("longer than %s characters", fe.Param())
	default:
		return "failed " + fe.Tag() + " check"
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status, resp := MapErrorToHTTP(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.String("code", resp.Code), zap.Error(err))
	}
	c.JSON(status, Response{Success: false, Error: &resp})
}

func writeData(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Success: true, Data: data})
}

var orderIDNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8") // DNS namespace UUID

// newOrderID returns a random ID, or a deterministic UUIDv5 when the caller supplied an
// idempotency key so retries carry the same order ID
func newOrderID(engineID, accountID, idempotencyKey string) string {
	if idempotencyKey == "" {
		return "ord_" + uuid.New().String()
	}
	key := engineID + "\x00" + accountID + "\x00" + idempotencyKey
	return "ord_" + uuid.NewSHA1(orderIDNamespace, []byte(key)).String()
}
