package constants

// Status is the outcome of one auto-fill request after reconciliation.
type Status string

const (
	StatusSuccess Status = "success" // every requested field resolved
	StatusPartial Status = "partial" // some fields null; reported as "success" on the wire
	StatusInvalid Status = "invalid" // nothing usable; reported as "invalid doc"
	StatusError   Status = "error"   // hard failure
)

// Envelope messages. Clients branch on these exact strings.
const (
	MessageSuccess             = "success"
	MessageInvalidDoc          = "invalid doc"
	MessageInvalidFieldsPrefix = "Invalid fields parameter: "
	MessageUnsupportedFileType = "Unsupported file type. Supported types: " + SupportedTypesLabel
	MessageProcessingPrefix    = "Error processing document: "
)

// DefaultClientID keys usage for callers that do not identify themselves.
const DefaultClientID = "anonymous"
