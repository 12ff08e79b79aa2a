// Package events holds the messages exchanged over the ORDER and PRODUCT
// queues and the records they carry.
package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	apperrors "github.com/yashrajoria/shopflow/services/common/errors"
)

func init() {
	// prices travel as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// Product is a catalog entry. Orders keep a snapshot of it as it was when the
// purchase intent was published.
type Product struct {
	ID          string          `json:"_id" bson:"_id"`
	Name        string          `json:"name" bson:"name"`
	Description string          `json:"description" bson:"description"`
	Price       decimal.Decimal `json:"price" bson:"price"`
	CreatedAt   time.Time       `json:"createdAt" bson:"createdAt"`
}

// PurchaseIntent is published to ORDER when a user buys products.
type PurchaseIntent struct {
	Products  []Product `json:"products"`
	UserEmail string    `json:"userEmail"`
	// IntentID correlates log lines across services and keys optional
	// de-duplication. Older producers omit it.
	IntentID string `json:"intentId,omitempty"`
}

// Order is the immutable record created from one consumed intent.
type Order struct {
	ID         string          `json:"_id" bson:"_id"`
	Products   []Product       `json:"products" bson:"products"`
	User       string          `json:"user" bson:"user"`
	TotalPrice decimal.Decimal `json:"total_price" bson:"total_price"`
	CreatedAt  time.Time       `json:"createdAt" bson:"createdAt"`
}

// OrderCreated is published to PRODUCT after an order is stored.
type OrderCreated struct {
	NewOrder Order `json:"newOrder"`
}

// DecodePurchaseIntent parses an ORDER message. Bodies that are not a JSON
// object, or that carry no user email, are MalformedMessage.
func DecodePurchaseIntent(body []byte) (PurchaseIntent, error) {
	var intent PurchaseIntent
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return intent, apperrors.ErrMalformedMessage.Wrap(fmt.Errorf("body is not a JSON object"))
	}
	if err := json.Unmarshal(trimmed, &intent); err != nil {
		return intent, apperrors.ErrMalformedMessage.Wrap(err)
	}
	if strings.TrimSpace(intent.UserEmail) == "" {
		return intent, apperrors.ErrMalformedMessage.Wrap(fmt.Errorf("userEmail is required"))
	}
	return intent, nil
}

// DecodeOrderCreated parses a PRODUCT message.
func DecodeOrderCreated(body []byte) (OrderCreated, error) {
	var evt OrderCreated
	if err := json.Unmarshal(body, &evt); err != nil {
		return evt, apperrors.ErrMalformedMessage.Wrap(err)
	}
	if evt.NewOrder.ID == "" {
		return evt, apperrors.ErrMalformedMessage.Wrap(fmt.Errorf("newOrder is missing"))
	}
	return evt, nil
}
