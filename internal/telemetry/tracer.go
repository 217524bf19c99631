package telemetry

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for relay spans.
const (
	AttrClientIP  = "client.ip"
	AttrSessionID = "relay.session_id"
	AttrFrameKind = "relay.kind"
	AttrBrand     = "card.brand"
	AttrCardType  = "card.type"
	AttrStrategy  = "bypass.strategy"
	AttrTerminal  = "bypass.terminal"
	AttrEdits     = "bypass.edits"
)

// String builds a string attribute.
func String(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// Int builds an int attribute.
func Int(key string, value int) attribute.KeyValue {
	return attribute.Int(key, value)
}
