package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/asquebay/restaurant-order-service/internal/model"
	"github.com/asquebay/restaurant-order-service/internal/repository"
	"github.com/asquebay/restaurant-order-service/internal/service"
)

// OrderService — операции над заказами, которые нужны хэндлеру
// это позволяет хэндлеру не зависеть от конкретной реализации сервиса
type OrderService interface {
	Create(ctx context.Context, req model.CreateOrderRequest) (model.Order, error)
	ChangeStatus(ctx context.Context, orderID int64, status string) (model.Order, error)
	Delete(ctx context.Context, orderID int64) error
	GetOrder(ctx context.Context, orderID int64) (model.Order, error)
	ListOrders(ctx context.Context, filter repository.OrderFilter) ([]model.Order, error)
}

// KitchenDisplay отдаёт очередь активных заказов для кухни
type KitchenDisplay interface {
	KitchenDisplay(ctx context.Context, search string) ([]model.Order, error)
}

// TableService — управление столами и ручная смена их статуса
type TableService interface {
	List(ctx context.Context) ([]model.Table, error)
	Get(ctx context.Context, tableID int64) (model.Table, error)
	Create(ctx context.Context, req model.CreateTableRequest) (model.Table, error)
	Update(ctx context.Context, tableID int64, req model.UpdateTableRequest) (model.Table, error)
	Delete(ctx context.Context, tableID int64) error
	UpdateStatus(ctx context.Context, tableID int64, status string) (model.Table, error)
}

// Handler обрабатывает HTTP-запросы
type Handler struct {
	orders  OrderService
	kitchen KitchenDisplay
	tables  TableService
	log     *slog.Logger
	mux     *http.ServeMux
}

// NewHandler создает новый экземпляр Handler
func NewHandler(orders OrderService, kitchen KitchenDisplay, tables TableService, log *slog.Logger) *Handler {
	h := &Handler{
		orders:  orders,
		kitchen: kitchen,
		tables:  tables,
		log:     log,
		mux:     http.NewServeMux(),
	}
	h.registerRoutes()
	return h
}

// ServeHTTP делает Handler совместимым с http.Handler
// каждый запрос получает request id и попадает в лог
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	withRequestID(h.log, h.mux).ServeHTTP(w, r)
}

// registerRoutes регистрирует все эндпоинты
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("POST /orders", h.createOrder)
	h.mux.HandleFunc("GET /orders", h.listOrders)
	h.mux.HandleFunc("GET /orders/{id}", h.getOrder)
	h.mux.HandleFunc("PATCH /orders/{id}/status", h.changeStatus)
	h.mux.HandleFunc("DELETE /orders/{id}", h.deleteOrder)

	h.mux.HandleFunc("GET /kitchen-display", h.kitchenDisplay)

	h.mux.HandleFunc("GET /tables", h.listTables)
	h.mux.HandleFunc("POST /tables", h.createTable)
	h.mux.HandleFunc("GET /tables/{id}", h.getTable)
	h.mux.HandleFunc("PUT /tables/{id}", h.updateTable)
	h.mux.HandleFunc("PATCH /tables/{id}", h.updateTable)
	h.mux.HandleFunc("DELETE /tables/{id}", h.deleteTable)
	h.mux.HandleFunc("PATCH /tables/{id}/status", h.updateTableStatus)

	h.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req model.CreateOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.orders.Create(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, order)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	var filter repository.OrderFilter

	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		status := model.OrderStatus(s)
		filter.Status = &status
	}
	if s := q.Get("table_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			h.respondError(w, http.StatusBadRequest, "table_id must be a positive integer")
			return
		}
		filter.TableID = &id
	}

	orders, err := h.orders.ListOrders(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, orders)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, order)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.orders.ChangeStatus(r.Context(), id, req.Status)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, order)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.orders.Delete(r.Context(), id); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) kitchenDisplay(w http.ResponseWriter, r *http.Request) {
	orders, err := h.kitchen.KitchenDisplay(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, orders)
}

func (h *Handler) listTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.tables.List(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, tables)
}

func (h *Handler) createTable(w http.ResponseWriter, r *http.Request) {
	var req model.CreateTableRequest
	if !h.decode(w, r, &req) {
		return
	}

	table, err := h.tables.Create(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, table)
}

func (h *Handler) getTable(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	table, err := h.tables.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, table)
}

func (h *Handler) updateTable(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req model.UpdateTableRequest
	if !h.decode(w, r, &req) {
		return
	}

	table, err := h.tables.Update(r.Context(), id, req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, table)
}

func (h *Handler) deleteTable(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.tables.Delete(r.Context(), id); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateTableStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if !h.decode(w, r, &req) {
		return
	}

	table, err := h.tables.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, table)
}

// pathID извлекает {id} из URL; при ошибке уже отвечает 400
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// respondServiceError переводит ошибки сервисного слоя в HTTP-статусы
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *service.ValidationError
		terr *service.TransitionError
	)
	switch {
	case errors.As(err, &verr):
		h.respondJSON(w, http.StatusBadRequest, map[string]string{
			"error":  service.ErrValidation.Error(),
			"field":  verr.Field,
			"reason": verr.Reason,
		})
	case errors.As(err, &terr):
		h.respondJSON(w, http.StatusConflict, map[string]string{
			"error": service.ErrInvalidTransition.Error(),
			"from":  string(terr.From),
			"to":    string(terr.To),
		})
	case errors.Is(err, service.ErrValidation):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "not found")
	default:
		requestLogger(r.Context(), h.log).Error("internal server error", slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("failed to marshal JSON response", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(response)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
