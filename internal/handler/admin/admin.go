// Package admin serves the API-key protected operator routes.
package admin

import (
	"net/http"
	"time"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/handler"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// Handler exposes stock corrections and the order fulfillment path.
type Handler struct {
	admin domain.AdminService
}

func NewHandler(admin domain.AdminService) *Handler {
	return &Handler{admin: admin}
}

type adjustStockRequest struct {
	Delta int    `json:"delta"`
	Note  string `json:"note"`
}

type productResponse struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	Stock             int             `json:"stock"`
	Active            bool            `json:"active"`
	LowStockThreshold int             `json:"lowStockThreshold"`
	LowStock          bool            `json:"lowStock"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// AdjustStock handles POST /admin/products/:id/stock
func (h *Handler) AdjustStock(c echo.Context) error {
	const op = "admin.adjust_stock"

	var req adjustStockRequest
	if err := handler.Bind(c, op, &req); err != nil {
		return err
	}

	p, err := h.admin.AdjustStock(c.Request().Context(), c.Param("id"), req.Delta, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, productResponse{
		ID:                p.ID,
		Name:              p.Name,
		Price:             p.Price,
		Stock:             p.Stock,
		Active:            p.Active,
		LowStockThreshold: p.LowStockThreshold,
		LowStock:          p.IsLowStock(),
		UpdatedAt:         p.UpdatedAt,
	})
}

type advanceStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
	Note   string             `json:"note"`
}

// AdvanceStatus handles POST /admin/orders/:id/status
func (h *Handler) AdvanceStatus(c echo.Context) error {
	const op = "admin.advance_status"

	var req advanceStatusRequest
	if err := handler.Bind(c, op, &req); err != nil {
		return err
	}
	order, err := h.admin.AdvanceStatus(c.Request().Context(), c.Param("id"), req.Status, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, order)
}
