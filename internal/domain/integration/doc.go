// Package integration contains the price-label Integration bounded context.
// This context moves vendor price and promotion documents onto the label platform.
//
// Key concepts:
//   - Document: one vendor batch file (ITM items or PRM promotions) identified by name
//   - Record: one SKU's attribute set, reshaped by a FieldMap and coerced by a TypeMap
//   - Evaluation: the refresh decision taken for a record before delivery
//   - Ledger / PendingQueue: per-store state for dedup and deferred records
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
