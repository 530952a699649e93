package types

// EventClass groups provider event names by the state transition they drive.
type EventClass string

const (
	EventClassActivate      EventClass = "activate"
	EventClassDeactivate    EventClass = "deactivate"
	EventClassRenew         EventClass = "renew"
	EventClassPlanChange    EventClass = "plan_change"
	EventClassInformational EventClass = "informational"
	EventClassUnrecognized  EventClass = "unrecognized"
)

// eventClasses is the fixed event-name table from the Easytools webhook docs.
// Unknown names classify as EventClassUnrecognized and must be acknowledged
// with success: the provider adds event types we do not need to act on.
var eventClasses = map[string]EventClass{
	// grant access
	"product_assigned":      EventClassActivate,
	"subscription_created":  EventClassActivate,
	"subscription_resumed":  EventClassActivate,
	"single_product_bought": EventClassActivate,

	// revoke access
	"subscription_expired":   EventClassDeactivate,
	"subscription_cancelled": EventClassDeactivate, // UK spelling used by the provider API
	"subscription_deleted":   EventClassDeactivate,
	"product_access_expired": EventClassDeactivate,

	"subscription_renewed":      EventClassRenew,
	"subscription_plan_changed": EventClassPlanChange,

	// no access change
	"product_access_expiring":       EventClassInformational,
	"subscription_renewal_failed":   EventClassInformational,
	"subscription_renewal_upcoming": EventClassInformational,
	"customer_data_changed":         EventClassInformational,
}

// ClassifyEvent maps a provider event name to its EventClass.
func ClassifyEvent(name string) EventClass {
	if class, ok := eventClasses[name]; ok {
		return class
	}
	return EventClassUnrecognized
}

// Mutates reports whether events of this class change subscriber state.
func (c EventClass) Mutates() bool {
	switch c {
	case EventClassActivate, EventClassDeactivate, EventClassRenew, EventClassPlanChange:
		return true
	}
	return false
}
