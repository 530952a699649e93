package types

import (
	"encoding/json"
	"strconv"
	"time"
)

// Payload is the decoded webhook body. Event and CustomerEmail are the only
// required fields; everything else stays in Fields because the provider's
// payload shape varies by event type and API version. The accessor methods
// resolve each logical field against its known synonyms, first match wins,
// so new payload variants only ever extend the ordered key lists here.
type Payload struct {
	Event         string
	CustomerEmail string
	Fields        map[string]any
}

// ParsePayload decodes a raw webhook body. A nil error only means the body
// was a JSON object; required-field validation is the caller's job.
func ParsePayload(raw []byte) (*Payload, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	p := &Payload{Fields: fields}
	p.Event, _ = p.String("event")
	p.CustomerEmail, _ = p.String("customer_email")
	return p, nil
}

// String returns the first non-empty string value among keys. Numeric values
// are stringified: the provider sends prices both as "10" and as 10.
func (p *Payload) String(keys ...string) (string, bool) {
	for _, key := range keys {
		v, ok := p.Fields[key]
		if !ok {
			continue
		}
		switch s := v.(type) {
		case string:
			if s != "" {
				return s, true
			}
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64), true
		case json.Number:
			return s.String(), true
		}
	}
	return "", false
}

// Bool returns the first present boolean-ish value among keys. The provider
// sends flags as true/false, "1"/"0" and 1/0 depending on event version.
func (p *Payload) Bool(keys ...string) (bool, bool) {
	for _, key := range keys {
		v, ok := p.Fields[key]
		if !ok {
			continue
		}
		switch b := v.(type) {
		case bool:
			return b, true
		case string:
			return b == "1" || b == "true" || b == "yes", true
		case float64:
			return b != 0, true
		}
	}
	return false, false
}

// Time returns the first parseable RFC3339 timestamp among keys.
func (p *Payload) Time(keys ...string) (time.Time, bool) {
	s, ok := p.String(keys...)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Synonym priorities below mirror the provider's documented field evolution:
// newest name first, legacy names as fallbacks.

func (p *Payload) SubscriptionType() (string, bool) {
	return p.String("subscription_type", "subscription_price_name", "price_name", "price_custom_id", "subscription_plan_custom_id")
}

func (p *Payload) OneTime() (bool, bool) {
	return p.Bool("subscription_onetime", "subscription_one_time")
}

func (p *Payload) RenewalAt() (time.Time, bool) {
	return p.Time("subscription_current_period_end", "renewal_date")
}

func (p *Payload) TrialEndsAt() (time.Time, bool) {
	return p.Time("trial_ends_at")
}

func (p *Payload) Price() (string, bool) {
	return p.String("subscription_plan_price", "order_amount", "price")
}

func (p *Payload) Currency() (string, bool) { return p.String("currency") }

func (p *Payload) CustomerID() (string, bool) { return p.String("customer_id") }

func (p *Payload) StripeCustomerID() (string, bool) { return p.String("customer_stripe_id") }

func (p *Payload) ProductID() (string, bool) { return p.String("product_id") }

func (p *Payload) ProductName() (string, bool) { return p.String("product_name") }

func (p *Payload) SubscriptionID() (string, bool) { return p.String("subscription_id") }

func (p *Payload) StripeSubscriptionID() (string, bool) { return p.String("subscription_stripe_id") }

func (p *Payload) OrderID() (string, bool) { return p.String("order_id") }

func (p *Payload) CustomerName() (string, bool) { return p.String("customer_name") }
