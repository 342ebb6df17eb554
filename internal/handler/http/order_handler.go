package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/shop-service/internal/order"
)

const defaultLimit = 100

type CreateOrderRequest struct {
	MemberID uuid.UUID `json:"memberId" validate:"required"`
	ItemID   uuid.UUID `json:"itemId" validate:"required"`
	Count    int       `json:"count" validate:"min=1"`
}

// OrderListQuery holds the query string of the order listing endpoints.
type OrderListQuery struct {
	Offset     int    `validate:"min=0"`
	Limit      int    `validate:"min=1,max=1000"`
	Status     string `validate:"omitempty,oneof=ORDER CANCEL"`
	MemberName string `validate:"max=100"`
	Categories bool
}

func (q OrderListQuery) search() order.Search {
	return order.Search{Status: order.OrderStatus(q.Status), MemberName: q.MemberName}
}

func (q OrderListQuery) page() *order.Page {
	return &order.Page{Offset: q.Offset, Limit: q.Limit}
}

func (q OrderListQuery) collections() []order.Collection {
	if q.Categories {
		return []order.Collection{order.CollectionOrderItems, order.CollectionItemCategories}
	}
	return []order.Collection{order.CollectionOrderItems}
}

func parseOrderListQuery(r *http.Request) (OrderListQuery, error) {
	values := r.URL.Query()
	q := OrderListQuery{
		Limit:      defaultLimit,
		Status:     values.Get("status"),
		MemberName: values.Get("memberName"),
	}

	ints := map[string]*int{"offset": &q.Offset, "limit": &q.Limit}
	for name, dst := range ints {
		raw := values.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("invalid query parameter %s: %q", name, raw)
		}
		*dst = v
	}

	if raw := values.Get("categories"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return q, fmt.Errorf("invalid query parameter categories: %q", raw)
		}
		q.Categories = v
	}
	return q, nil
}

type OrderHandler struct {
	service  order.Service
	validate *validator.Validate
}

func NewOrderHandler(service order.Service) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/api/orders", h.handleCreateOrder)
	router.Get("/api/orders/{id}", h.handleGetOrder)
	router.Post("/api/orders/{id}/cancel", h.handleCancelOrder)

	router.Get("/api/v2/simple-orders", h.handleSimpleOrders(order.StrategyLazy))
	router.Get("/api/v3/simple-orders", h.handleSimpleOrders(order.StrategyJoin))

	router.Get("/api/v2/orders", h.handleOrders(order.StrategyLazy, false))
	router.Get("/api/v3/orders", h.handleOrders(order.StrategyJoin, false))
	router.Get("/api/v3.1/orders", h.handleOrders(order.StrategyBatch, true))

	router.Get("/api/v4/orders", h.handleOrderDTOs(order.StrategyLazy))
	router.Get("/api/v5/orders", h.handleOrderDTOs(order.StrategyBatch))
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var requestPayload CreateOrderRequest
	if !decodeRequest(w, r, h.validate, &requestPayload) {
		return
	}

	id, err := h.service.Order(r.Context(), requestPayload.MemberID, requestPayload.ItemID, requestPayload.Count)
	if err != nil {
		respondWithServiceError(w, err, "Failed to create order")
		return
	}

	respondWithJSON(w, http.StatusCreated, IDResponse{ID: id})
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	o, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get order by id")
		return
	}

	respondWithJSON(w, http.StatusOK, order.ToOrderResponse(o))
}

func (h *OrderHandler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.CancelOrder(r.Context(), orderID); err != nil {
		respondWithServiceError(w, err, "Failed to cancel order")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// listQuery parses and validates the listing query; it writes the error response
// itself.
func (h *OrderHandler) listQuery(w http.ResponseWriter, r *http.Request) (OrderListQuery, bool) {
	q, err := parseOrderListQuery(r)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to parse order list query")
		respondWithError(w, http.StatusBadRequest, err.Error())
		return q, false
	}
	return q, validateRequest(w, h.validate, q)
}

func (h *OrderHandler) handleSimpleOrders(strategy order.Strategy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, ok := h.listQuery(w, r)
		if !ok {
			return
		}

		orders, err := h.service.FindOrders(r.Context(), q.search(), nil, order.LoadOptions{Strategy: strategy})
		if err != nil {
			respondWithServiceError(w, err, "Failed to list orders")
			return
		}

		respondWithJSON(w, http.StatusOK, order.ToSimpleOrderResponses(orders))
	}
}

// handleOrders serves the order listings with their items. Only paged endpoints
// apply offset and limit.
func (h *OrderHandler) handleOrders(strategy order.Strategy, paged bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, ok := h.listQuery(w, r)
		if !ok {
			return
		}

		var page *order.Page
		if paged {
			page = q.page()
		}

		orders, err := h.service.FindOrders(r.Context(), q.search(), page, order.LoadOptions{
			Strategy:    strategy,
			Collections: q.collections(),
		})
		if err != nil {
			respondWithServiceError(w, err, "Failed to list orders")
			return
		}

		log.Debug().Str("strategy", strategy.String()).Int("orders", len(orders)).Msg("Orders listed")
		respondWithJSON(w, http.StatusOK, order.ToOrderResponses(orders))
	}
}

// handleOrderDTOs serves orders selected directly into their response shape.
func (h *OrderHandler) handleOrderDTOs(strategy order.Strategy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, ok := h.listQuery(w, r)
		if !ok {
			return
		}

		dtos, err := h.service.FindOrderDTOs(r.Context(), q.search(), nil, strategy)
		if err != nil {
			respondWithServiceError(w, err, "Failed to list orders")
			return
		}

		log.Debug().Str("strategy", strategy.String()).Int("orders", len(dtos)).Msg("Order DTOs listed")
		respondWithJSON(w, http.StatusOK, dtos)
	}
}
