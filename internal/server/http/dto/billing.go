package dto

// Billing event types accepted on the events endpoint. Payloads arrive
// already verified and decoded by the upstream webhook gateway.
const (
	BillingEventCustomerAttached    = "customer.attached"
	BillingEventSubscriptionUpdated = "subscription.updated"
)

// BillingEventRequest describes a pre-interpreted billing event.
type BillingEventRequest struct {
	Type       string `json:"type"`
	Login      string `json:"login,omitempty"`
	CustomerID string `json:"customer_id"`
	Active     bool   `json:"active,omitempty"`
}
