package types

// AccountCreationMode controls how the webhook coordinates account
// provisioning with the provider's external automation pipeline.
type AccountCreationMode string

const (
	// AccountCreationWebhookOnly creates missing accounts immediately.
	AccountCreationWebhookOnly AccountCreationMode = "webhook_only"
	// AccountCreationAutomationWithFallback waits a grace period for the
	// automation pipeline to create the account, then creates it itself.
	AccountCreationAutomationWithFallback AccountCreationMode = "automation_with_fallback"
	// AccountCreationAutomationOnly never creates accounts; activation for an
	// unknown email is acknowledged as deferred, not failed.
	AccountCreationAutomationOnly AccountCreationMode = "automation_only"
)

func (m AccountCreationMode) Valid() bool {
	switch m {
	case AccountCreationWebhookOnly, AccountCreationAutomationWithFallback, AccountCreationAutomationOnly:
		return true
	}
	return false
}
