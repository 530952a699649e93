package subscriber

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/subgate/internal/models"
	"github.com/fatflowers/subgate/pkg/types"
)

func mustPayload(t *testing.T, body string) *types.Payload {
	t.Helper()
	p, err := types.ParsePayload([]byte(body))
	require.NoError(t, err)
	return p
}

func TestApplyMetadata_MapsFields(t *testing.T) {
	sub := &models.Subscriber{}
	p := mustPayload(t, `{
		"subscription_type": "pro-monthly",
		"subscription_onetime": false,
		"subscription_current_period_end": "2026-10-01T00:00:00Z",
		"customer_id": "cust_1",
		"customer_stripe_id": "cus_abc",
		"subscription_id": "sub_1",
		"subscription_stripe_id": "sub_abc",
		"product_id": "prod_1",
		"product_name": "Pro Plan",
		"subscription_plan_price": 29.99,
		"currency": "usd",
		"order_id": "ord_1"
	}`)

	applyMetadata(sub, p)

	require.Equal(t, lo.ToPtr("pro-monthly"), sub.SubscriptionType)
	require.False(t, sub.IsOneTime)
	require.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), *sub.RenewalAt)
	require.Equal(t, lo.ToPtr("cust_1"), sub.ExternalCustomerID)
	require.Equal(t, lo.ToPtr("cus_abc"), sub.StripeCustomerID)
	require.Equal(t, lo.ToPtr("sub_1"), sub.ExternalSubscriptionID)
	require.Equal(t, lo.ToPtr("sub_abc"), sub.StripeSubscriptionID)
	require.Equal(t, lo.ToPtr("prod_1"), sub.ExternalProductID)
	require.Equal(t, lo.ToPtr("Pro Plan"), sub.ExternalProductName)
	require.Equal(t, lo.ToPtr("29.99"), sub.Price)
	require.Equal(t, lo.ToPtr("usd"), sub.Currency)
	require.Equal(t, lo.ToPtr("ord_1"), sub.OrderID)
	require.NotEmpty(t, sub.Extra)
}

func TestApplyMetadata_SparsePayloadKeepsExisting(t *testing.T) {
	renewal := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	sub := &models.Subscriber{
		SubscriptionType: lo.ToPtr("pro-monthly"),
		RenewalAt:        &renewal,
		Price:            lo.ToPtr("29.99"),
	}

	applyMetadata(sub, mustPayload(t, `{"event":"subscription_renewed","customer_email":"a@b.com"}`))

	require.Equal(t, lo.ToPtr("pro-monthly"), sub.SubscriptionType)
	require.Equal(t, renewal, *sub.RenewalAt)
	require.Equal(t, lo.ToPtr("29.99"), sub.Price)
}

func TestApplyMetadata_PresentFieldsOverwrite(t *testing.T) {
	sub := &models.Subscriber{SubscriptionType: lo.ToPtr("pro-monthly")}

	applyMetadata(sub, mustPayload(t, `{"subscription_type":"pro-yearly"}`))

	require.Equal(t, lo.ToPtr("pro-yearly"), sub.SubscriptionType)
}

func TestApplyMetadata_NilPayload(t *testing.T) {
	sub := &models.Subscriber{SubscriptionType: lo.ToPtr("pro-monthly")}
	applyMetadata(sub, nil)
	require.Equal(t, lo.ToPtr("pro-monthly"), sub.SubscriptionType)
}
