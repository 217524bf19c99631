package metrics

import "time"

// RelayMetrics provides observability for the TCP relay and the HTTP relay
// path. Implementations are optional; pass nil to disable collection with
// zero overhead (callers nil-check).
type RelayMetrics interface {
	// RecordFrame records one processed frame with its kind, analyzed
	// brand, strategy, duration and outcome. errorCode is the wire
	// taxonomy code, empty on success.
	RecordFrame(kind, brand, strategy string, duration time.Duration, errorCode string)

	// RecordEdit counts one applied TLV edit by tag hex.
	RecordEdit(tag string)

	// SetActiveSessions updates the current TCP session gauge.
	SetActiveSessions(count int)

	// RecordSessionAccepted counts an accepted TCP session.
	RecordSessionAccepted()

	// RecordSessionRejected counts a session refused at the ceiling.
	RecordSessionRejected()

	// RecordSessionClosed counts a closed TCP session.
	RecordSessionClosed()

	// RecordHTTPRelay records one HTTP relay request by status code.
	RecordHTTPRelay(status int, duration time.Duration)

	// SetEventsDropped publishes the event sink drop counter.
	SetEventsDropped(count uint64)
}
