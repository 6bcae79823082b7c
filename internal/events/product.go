// Package events holds the domain events published by the catalog.
package events

import (
	"encoding/json"
	"time"
)

// ProductSoldSubject is the subject sale events are published on.
const ProductSoldSubject = "catalog.product.sold"

// StreamSubjects lists the subjects the catalog stream must capture.
var StreamSubjects = []string{"catalog.product.>"}

type ProductSoldEvent struct {
	ProductID int64     `json:"product_id"`
	Quantity  int32     `json:"quantity"`
	Remaining int32     `json:"remaining"`
	SoldAt    time.Time `json:"sold_at"`
}

func (e ProductSoldEvent) Subject() string {
	return ProductSoldSubject
}

func (e ProductSoldEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
