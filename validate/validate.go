// Package validate checks the structured identifiers carried by tool calls.
//
// The patterns are fixed and intentionally literal: an order ID is one
// uppercase letter followed by 3-6 digits (B456), an idempotency key is
// lowercase words followed by an order-ID segment and a sequence number
// (exp_B456_001), and a request ID is req_ followed by 6-12 alphanumerics.
// Failures are reported as structured validation errors.
package validate

import (
	"fmt"
	"regexp"

	"github.com/jonwraymond/toolgate/problem"
)

var (
	orderIDPattern        = regexp.MustCompile(`^[A-Z][0-9]{3,6}$`)
	idempotencyKeyPattern = regexp.MustCompile(`^[a-z_]+_[A-Z][0-9]{3,6}_[0-9]+$`)
	requestIDPattern      = regexp.MustCompile(`^req_[a-zA-Z0-9]{6,12}$`)
)

// OrderID validates an order identifier such as "B456".
func OrderID(tool, orderID string) *problem.Error {
	if orderID == "" {
		return problem.Validation(tool, "order_id is required",
			"Provide an order_id like B456: one uppercase letter followed by 3-6 digits.")
	}
	if !orderIDPattern.MatchString(orderID) {
		return problem.Validation(tool,
			fmt.Sprintf("order_id %q is malformed", orderID),
			"Use one uppercase letter followed by 3-6 digits, e.g. B456.")
	}
	return nil
}

// IdempotencyKey validates a caller-supplied idempotency key such as
// "exp_B456_001".
func IdempotencyKey(tool, key string) *problem.Error {
	if key == "" {
		return problem.Validation(tool, "idempotency_key is required for write operations",
			"Provide meta.idempotency_key, e.g. exp_B456_001.")
	}
	if !idempotencyKeyPattern.MatchString(key) {
		return problem.Validation(tool,
			fmt.Sprintf("idempotency_key %q is malformed", key),
			"Use the form <operation>_<OrderID>_<sequence>, e.g. exp_B456_001.")
	}
	return nil
}

// RequestID validates a request identifier such as "req_a1b2c3".
func RequestID(tool, requestID string) *problem.Error {
	if !requestIDPattern.MatchString(requestID) {
		return problem.Validation(tool,
			fmt.Sprintf("request_id %q is malformed", requestID),
			"Use req_ followed by 6-12 alphanumeric characters.")
	}
	return nil
}

// Enum validates that value is one of the allowed choices.
func Enum(tool, field, value string, allowed []string) *problem.Error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return problem.Validation(tool,
		fmt.Sprintf("%s %q is not a valid choice", field, value),
		fmt.Sprintf("Use one of: %v.", allowed))
}

// StringLength validates that value's length falls within [min, max].
func StringLength(tool, field, value string, min, max int) *problem.Error {
	if len(value) < min || len(value) > max {
		return problem.Validation(tool,
			fmt.Sprintf("%s must be between %d and %d characters, got %d", field, min, max, len(value)),
			fmt.Sprintf("Shorten or lengthen %s to fit the allowed range.", field))
	}
	return nil
}
