package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Config Errors (T100-T199)
	// ============================================

	"T101": {
		Category: CategoryConfig,
		Message:  "Config file not found",
	},
	"T102": {
		Category: CategoryConfig,
		Message:  "Config file could not be parsed",
	},
	"T103": {
		Category: CategoryConfig,
		Message:  "Unsupported config format",
		Detail:   "Config files must end in .json, .yaml or .yml.",
	},
	"T104": {
		Category: CategoryConfig,
		Message:  "Invalid listen address",
	},
	"T105": {
		Category: CategoryConfig,
		Message:  "Invalid update interval",
	},
	"T106": {
		Category: CategoryConfig,
		Message:  "Invalid idle timeout",
	},
	"T107": {
		Category: CategoryConfig,
		Message:  "Invalid session limit",
	},
	"T108": {
		Category: CategoryConfig,
		Message:  "Invalid session mode",
		Detail:   `Mode must be "per-browser" or "shared".`,
	},
	"T109": {
		Category: CategoryConfig,
		Message:  "Invalid cookie settings",
	},
	"T110": {
		Category: CategoryConfig,
		Message:  "Invalid socket limits",
	},
	"T111": {
		Category: CategoryConfig,
		Message:  "Invalid log level",
		Detail:   `Level must be "debug", "info", "warn" or "error".`,
	},

	// ============================================
	// Transport Errors (T200-T299)
	// ============================================

	"T201": {
		Category: CategoryTransport,
		Message:  "WebSocket handshake failed",
	},
	"T202": {
		Category: CategoryTransport,
		Message:  "Malformed frame",
	},
	"T203": {
		Category: CategoryTransport,
		Message:  "Payload too large",
	},
	"T204": {
		Category: CategoryTransport,
		Message:  "Listener failed",
	},

	// ============================================
	// Runtime Errors (T300-T399)
	// ============================================

	"T301": {
		Category: CategoryRuntime,
		Message:  "Callback target not found",
		Detail:   "The node or handler named by the callback does not exist in the current tree.",
	},
	"T302": {
		Category: CategoryRuntime,
		Message:  "Handler panicked",
	},
	"T303": {
		Category: CategoryRuntime,
		Message:  "Session closed",
	},
	"T304": {
		Category: CategoryRuntime,
		Message:  "Session limit reached",
	},
	"T305": {
		Category: CategoryRuntime,
		Message:  "Shutdown timed out",
		Detail:   "Some sessions were still closing when the shutdown deadline passed.",
	},

	// ============================================
	// CLI Errors (T400-T499)
	// ============================================

	"T401": {
		Category: CategoryCLI,
		Message:  "Invalid flag value",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
