// Package observability provides metrics, tracing, and logging utilities.
package observability

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys
const (
	attrMethod       = "method"
	attrPath         = "path"
	attrStatus       = "status"
	attrSuccess      = "success"
	attrPollStatus   = "poll_status"
	attrTransportErr = "transport_error"
	attrOutcome      = "outcome"
	attrEventType    = "event_type"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func pathAttr(path string) attribute.KeyValue {
	// Normalize paths with IDs to reduce cardinality
	// /v1/audits/abc123 -> /v1/audits/{jobId}
	return attribute.String(attrPath, normalizePath(path))
}

func statusAttr(code int) attribute.KeyValue {
	// Group status codes to reduce cardinality
	// 200-299 -> 2xx, 400-499 -> 4xx, 500-599 -> 5xx
	group := fmt.Sprintf("%dxx", code/100)
	return attribute.String(attrStatus, group)
}

func successAttr(success bool) attribute.KeyValue {
	return attribute.Bool(attrSuccess, success)
}

func pollStatusAttr(status string) attribute.KeyValue {
	return attribute.String(attrPollStatus, status)
}

func transportErrAttr(failed bool) attribute.KeyValue {
	return attribute.Bool(attrTransportErr, failed)
}

func outcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String(attrOutcome, outcome)
}

func eventTypeAttr(eventType string) attribute.KeyValue {
	return attribute.String(attrEventType, eventType)
}

// idRoutes are the collection prefixes whose next segment is a job ID.
var idRoutes = []string{"/v1/audits/", "/v1/reports/"}

// normalizePath replaces dynamic path segments with placeholders.
func normalizePath(path string) string {
	for _, prefix := range idRoutes {
		if len(path) > len(prefix) && strings.HasPrefix(path, prefix) {
			return prefix + "{jobId}"
		}
	}
	return path
}
