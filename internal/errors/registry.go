package errors

import "sort"

// Template defines a registered error.
type Template struct {
	Category   Category
	Severity   Severity
	Message    string
	Suggestion string
}

// Registered codes.
const (
	CodeDuplicateBinding  = "E001"
	CodeInvalidConfig     = "E010"
	CodeUnknownStore      = "E011"
	CodeUnknownCodec      = "E012"
	CodeConfigNotFound    = "E013"
	CodeReadFailure       = "W001"
	CodeWriteFailure      = "W002"
	CodeUnsupportedEnv    = "W003"
	CodeSyncDecodeFailure = "W004"
)

var registry = map[string]Template{
	CodeDuplicateBinding: {
		Category:   CategoryBinding,
		Severity:   SeverityError,
		Message:    "Multiple concurrent bindings for the same key",
		Suggestion: "Share one binding through state or context instead.",
	},
	CodeInvalidConfig: {
		Category:   CategoryConfig,
		Severity:   SeverityError,
		Message:    "Invalid configuration",
		Suggestion: "Check localstate.json and LOCALSTATE_* environment variables.",
	},
	CodeUnknownStore: {
		Category:   CategoryConfig,
		Severity:   SeverityError,
		Message:    "Unknown store kind",
		Suggestion: "Use one of: memory, file, sqlite, s3, null.",
	},
	CodeUnknownCodec: {
		Category:   CategoryCodec,
		Severity:   SeverityError,
		Message:    "Unknown codec",
		Suggestion: "Use one of: json, yaml, toml.",
	},
	CodeConfigNotFound: {
		Category:   CategoryConfig,
		Severity:   SeverityError,
		Message:    "Configuration file not found",
		Suggestion: "Run 'localstate init' or create localstate.json manually.",
	},
	CodeReadFailure: {
		Category: CategoryStorage,
		Severity: SeverityWarning,
		Message:  "Failed to read stored value, using initial value",
	},
	CodeWriteFailure: {
		Category: CategoryStorage,
		Severity: SeverityWarning,
		Message:  "Failed to write value to store",
	},
	CodeUnsupportedEnv: {
		Category:   CategoryStorage,
		Severity:   SeverityWarning,
		Message:    "No persistent store available, update ignored",
		Suggestion: "Updates are only supported once the binding is hydrated with a client store.",
	},
	CodeSyncDecodeFailure: {
		Category: CategoryCodec,
		Severity: SeverityWarning,
		Message:  "Failed to decode value from change notification",
	},
}

// Codes returns all registered codes in sorted order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Lookup returns the template for code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
