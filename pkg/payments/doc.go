// Package payments reconciles payment-provider webhook deliveries against the
// tenant subscription clock.
//
// Deliveries are authenticated with a shared secret, mapped to a tenant via
// the externalReference field, and deduplicated on (paymentId, eventType).
// The durable dedup gate is a row in processed_payment_events inserted in the
// same transaction as the tenant update; Redis only short-circuits repeats
// cheaply and may be down without affecting correctness.
//
// Confirmation events extend the responsible tenant's paid window. They never
// touch the manual block flag: an operator block survives payment.
package payments
