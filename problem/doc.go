// Package problem provides the structured error shape shared by all tool
// handlers.
//
// Every caller-visible failure (validation, not-found, conflict, rate-limit,
// internal) is expressed as the same JSON object: an error-kind URI, a human
// title, an HTTP-style status, a detail string, an instance identifier, and
// an actionable next-steps string.
package problem
