// Package service contains the business rules of the application.
//
// THE THREE LAYERS:
//
//	Handler (HTTP)     → parses requests, writes responses
//	Service (rules)    → validates, enforces ownership and credits, orchestrates
//	Repository (data)  → reads/writes the database
//
// Services accept plain Go values, never *http.Request, and return
// apperror kinds that the handler layer maps to status codes. They depend on
// repository.Store (an interface), so a transaction is just another Store
// handed to the same code.
package service
