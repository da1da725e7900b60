package instrumentation

import "strings"

// Cardinality management helpers for metrics.
// These functions reduce high-cardinality label values to prevent metrics explosion.
//
// # Warning
//
// A single analysis run can surface thousands of distinct senders.
// Recording them verbatim as metric labels would blow up series counts
// in Prometheus, so sender identifiers are reduced to their domain
// before they reach a label.

// ExtractSenderDomain extracts the domain part from a sender address.
// This reduces cardinality by using the domain instead of the full email.
//
// Example:
//
//	ExtractSenderDomain("news@example.com")  // "example.com"
//	ExtractSenderDomain("invalid")           // "unknown"
//	ExtractSenderDomain("")                  // "unknown"
func ExtractSenderDomain(email string) string {
	if email == "" {
		return "unknown"
	}

	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}

	return "unknown"
}

// Gmail API operation names used as metric label values.
// Status and result constants are defined in config.go.
const (
	OperationListMessages = "list_messages"
	OperationGetMessage   = "get_message"
	OperationBatchModify  = "batch_modify"
	OperationGetProfile   = "get_profile"
	OperationListLabels   = "list_labels"
	OperationCreateLabel  = "create_label"
	OperationCreateFilter = "create_filter"
	OperationUnsubscribe  = "unsubscribe"
)
