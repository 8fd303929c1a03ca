package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusProcessing, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestPaymentMethod_Valid(t *testing.T) {
	assert.True(t, PaymentMobileMoney.Valid())
	assert.True(t, PaymentCard.Valid())
	assert.True(t, PaymentCashOnDelivery.Valid())
	assert.False(t, PaymentMethod("cheque").Valid())
}

func TestProduct_InStock(t *testing.T) {
	assert.True(t, (&Product{Stock: 1}).InStock())
	assert.False(t, (&Product{Stock: 0}).InStock())
}
