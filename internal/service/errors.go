package service

import (
	"strconv"

	"github.com/dukerupert/storefront/internal/domain"
)

// insufficientStock names the product, the requested quantity and what is
// left so the shopper can be told exactly which line failed.
func insufficientStock(op string, p *domain.Product, requested int) error {
	return domain.ErrInsufficientStock.WithOp(op).
		WithDetail("product_id", p.ID).
		WithDetail("name", p.Name).
		WithDetail("requested", strconv.Itoa(requested)).
		WithDetail("available", strconv.Itoa(p.Stock))
}

func unavailable(op string, p *domain.Product) error {
	return domain.ErrProductUnavailable.WithOp(op).
		WithDetail("product_id", p.ID).
		WithDetail("name", p.Name)
}

func productNotFound(op, productID string) error {
	return domain.NotFound(op, "product", productID)
}

func orderNotFound(op, orderID string) error {
	return domain.ErrOrderNotFound.WithOp(op).WithDetail("order_id", orderID)
}

// checkPurchasable validates a product against a requested quantity.
func checkPurchasable(op string, p *domain.Product, productID string, qty int) error {
	if p == nil {
		return productNotFound(op, productID)
	}
	if !p.Active {
		return unavailable(op, p)
	}
	if p.Stock < qty {
		return insufficientStock(op, p, qty)
	}
	return nil
}
