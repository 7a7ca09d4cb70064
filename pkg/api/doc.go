// Package api assembles the cobrador HTTP surface: tenant lifecycle and
// seat management, billing status and invoice reads, and the payment
// provider webhook.
//
// Server wires the handler groups onto a gorilla/mux router behind the
// common middleware stack (request IDs, structured logging, panic recovery,
// HTTP metrics and the billing gate). Handlers stay thin: parse, call the
// service layer, map domain errors onto status codes.
package api
