package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ProductSoldEvent_Payload(t *testing.T) {
	// given
	e := ProductSoldEvent{
		ProductID: 7,
		Quantity:  5,
		Remaining: 15,
		SoldAt:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	// when
	data, err := e.Payload()

	// then
	require.NoError(t, err)
	assert.Equal(t, "catalog.product.sold", e.Subject())
	assert.JSONEq(t, `{"product_id":7,"quantity":5,"remaining":15,"sold_at":"2025-01-02T03:04:05Z"}`, string(data))
}
