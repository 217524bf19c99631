package logger

// Standard field keys for structured logging. Use these consistently so the
// relay and HTTP paths produce queryable, uniform records.
const (
	// Session & connection
	KeySessionID = "session_id" // wrapper session identifier (hex)
	KeyClientIP  = "client_ip"  // peer IP address
	KeyRequestID = "request_id" // HTTP request id

	// Frames
	KeyFrameKind  = "kind"        // wrapper message kind (INIT, NFC_DATA, ...)
	KeyFrameIndex = "frame_index" // per-session frame counter
	KeyPayloadLen = "payload_len" // wrapper payload size in bytes

	// Card analysis
	KeyBrand    = "brand"     // card scheme
	KeyCardType = "card_type" // product type
	KeyBIN      = "bin"       // first six PAN digits
	KeyPAN      = "pan"       // masked PAN, last four only
	KeyCountry  = "country"   // issuer country label
	KeyCurrency = "currency"  // currency label

	// Bypass engine
	KeyStrategy    = "strategy"     // selected strategy row name
	KeyTerminal    = "terminal"     // terminal kind
	KeyEdits       = "edits"        // number of applied edits
	KeyHighRisk    = "high_risk"    // high-risk combination flag
	KeySuccessProb = "success_prob" // opaque observability scalar

	// Outcome
	KeyDurationMs = "duration_ms" // processing duration in milliseconds
	KeyError      = "error"       // error message
	KeyErrorCode  = "error_code"  // wire taxonomy code
	KeySigned     = "signed"      // signature element appended
)
