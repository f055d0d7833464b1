package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusPaid, OrderStatusProcessing, true},
		{OrderStatusPaid, OrderStatusCancelled, false},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusDelivered, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusPaid, false},
		{OrderStatusCancelled, OrderStatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrderStatus_Valid(t *testing.T) {
	if !OrderStatusShipped.Valid() {
		t.Error("shipped should be valid")
	}
	if OrderStatus("lost").Valid() {
		t.Error("unknown status should be invalid")
	}
}

func TestOrder_Record(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	o := &Order{Status: OrderStatusPending, PaymentStatus: PaymentStatusPending}
	o.Record(now, "created", "")

	o.Status = OrderStatusPaid
	o.PaymentStatus = PaymentStatusCompleted
	o.Record(now.Add(time.Minute), "payment received", "evt_1")

	if len(o.History) != 2 {
		t.Fatalf("History len = %d, want 2", len(o.History))
	}
	if o.History[1].Status != OrderStatusPaid || o.History[1].PaymentStatus != PaymentStatusCompleted {
		t.Errorf("second entry = %+v", o.History[1])
	}
	if !o.UpdatedAt.Equal(now.Add(time.Minute)) {
		t.Errorf("UpdatedAt = %v", o.UpdatedAt)
	}
	if !o.HasEvent("evt_1") {
		t.Error("HasEvent(evt_1) should be true")
	}
	if o.HasEvent("evt_2") || o.HasEvent("") {
		t.Error("HasEvent should be false for unknown or empty id")
	}
}

func TestOrder_QuantitiesAndProductIDs(t *testing.T) {
	o := &Order{Items: []OrderItem{
		{ProductID: "b", Quantity: 1, UnitPrice: decimal.NewFromInt(3)},
		{ProductID: "a", Quantity: 2, UnitPrice: decimal.NewFromInt(5)},
		{ProductID: "b", Quantity: 4, UnitPrice: decimal.NewFromInt(3)},
	}}

	q := o.Quantities()
	if q["a"] != 2 || q["b"] != 5 {
		t.Errorf("Quantities() = %v", q)
	}

	ids := o.ProductIDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("ProductIDs() = %v, want [a b]", ids)
	}
}
