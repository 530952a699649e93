package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/subgate/internal/app/service/access"
	"github.com/fatflowers/subgate/pkg/response"
)

type SubscriptionStatusResponse struct {
	UserID    string `json:"user_id"`
	HasAccess bool   `json:"has_access"`
}

// ApiGetSubscriptionStatus handles GET /api/v1/access/subscription_status/:user_id
func ApiGetSubscriptionStatus(svc *access.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("user_id")
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id"))
			return
		}
		ok, err := svc.HasActiveSubscription(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(&SubscriptionStatusResponse{UserID: userID, HasAccess: ok}))
	}
}

type CheckoutURLResponse struct {
	URL string `json:"url"`
}

// ApiGetCheckoutURL handles GET /api/v1/access/checkout_url. The optional
// email query parameter is appended so the checkout page is pre-filled.
func ApiGetCheckoutURL(svc *access.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, response.OKT(&CheckoutURLResponse{URL: svc.CheckoutURLWithEmail(c.Query("email"))}))
	}
}

func RegisterAccessRoutes(r gin.IRouter, svc *access.Service) {
	r.GET("/subscription_status/:user_id", ApiGetSubscriptionStatus(svc))
	r.GET("/checkout_url", ApiGetCheckoutURL(svc))
}
