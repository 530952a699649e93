package subscriber

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/fatflowers/subgate/internal/models"
	"github.com/fatflowers/subgate/pkg/types"
)

// applyMetadata merges payload fields into the subscriber. Each logical
// field resolves through its synonym accessor (first match wins); absent
// fields leave the stored value untouched, so a sparse payload never wipes
// earlier data.
func applyMetadata(sub *models.Subscriber, p *types.Payload) {
	if p == nil {
		return
	}

	if v, ok := p.SubscriptionType(); ok {
		sub.SubscriptionType = &v
	}
	if v, ok := p.OneTime(); ok {
		sub.IsOneTime = v
	}
	if v, ok := p.RenewalAt(); ok {
		sub.RenewalAt = &v
	}
	if v, ok := p.TrialEndsAt(); ok {
		sub.TrialEndsAt = &v
	}
	if v, ok := p.CustomerID(); ok {
		sub.ExternalCustomerID = &v
	}
	if v, ok := p.StripeCustomerID(); ok {
		sub.StripeCustomerID = &v
	}
	if v, ok := p.SubscriptionID(); ok {
		sub.ExternalSubscriptionID = &v
	}
	if v, ok := p.StripeSubscriptionID(); ok {
		sub.StripeSubscriptionID = &v
	}
	if v, ok := p.ProductID(); ok {
		sub.ExternalProductID = &v
	}
	if v, ok := p.ProductName(); ok {
		sub.ExternalProductName = &v
	}
	if v, ok := p.Price(); ok {
		sub.Price = &v
	}
	if v, ok := p.Currency(); ok {
		sub.Currency = &v
	}
	if v, ok := p.OrderID(); ok {
		sub.OrderID = &v
	}

	// Keep the raw payload for fields we do not map yet.
	if raw, err := json.Marshal(p.Fields); err == nil {
		sub.Extra = datatypes.JSON(raw)
	}
}
