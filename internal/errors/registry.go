package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
	DocURL     string
}

const docBase = "https://frp.vango.dev/docs/errors/"

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Runtime Errors (E101-E199)
	// ============================================

	"E101": {
		Category:   CategoryRuntime,
		Message:    "Reentrant notification",
		Detail:     "A node was asked to notify while it was still notifying its consumers. The graph contains a synchronous cycle.",
		Suggestion: "Route the feedback edge through frp.Defer or Source.EmitLater",
		DocURL:     docBase + "E101",
	},
	"E102": {
		Category:   CategoryRuntime,
		Message:    "Emission budget exceeded",
		Detail:     "A single propagation step delivered more notifications than the runtime budget allows.",
		Suggestion: "Look for fan-out that grows with every emission, or raise budget.max_emissions",
		DocURL:     docBase + "E102",
	},
	"E103": {
		Category:   CategoryRuntime,
		Message:    "Deferred budget exceeded",
		Detail:     "The deferred queue kept scheduling new emissions and never settled.",
		Suggestion: "Check Defer feedback loops for a condition that stops them",
		DocURL:     docBase + "E103",
	},
	"E104": {
		Category: CategoryRuntime,
		Message:  "Network disposed",
		Detail:   "A combinator was called on a network that has already been disposed.",
		DocURL:   docBase + "E104",
	},
	"E105": {
		Category: CategoryRuntime,
		Message:  "Invalid input handle",
		Detail:   "A combinator was given a zero handle, a released handle, or a handle from another runtime.",
		DocURL:   docBase + "E105",
	},

	// ============================================
	// Config Errors (E301-E399)
	// ============================================

	"E301": {
		Category: CategoryConfig,
		Message:  "Configuration file not readable",
		Detail:   "The configuration file exists but could not be read or parsed.",
		DocURL:   docBase + "E301",
	},
	"E302": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration field holds a value outside its allowed range.",
		DocURL:   docBase + "E302",
	},
	"E303": {
		Category:   CategoryConfig,
		Message:    "Unknown log level",
		Detail:     "log.level must be one of debug, info, warn or error.",
		Suggestion: `Set "level": "info"`,
		DocURL:     docBase + "E303",
	},

	// ============================================
	// Protocol Errors (E401-E499)
	// ============================================

	"E401": {
		Category: CategoryProtocol,
		Message:  "Malformed frame",
		Detail:   "A client sent a frame that could not be decoded.",
		DocURL:   docBase + "E401",
	},
	"E402": {
		Category: CategoryProtocol,
		Message:  "Unknown input target",
		Detail:   "A client addressed an input that the server does not expose.",
		DocURL:   docBase + "E402",
	},
	"E403": {
		Category: CategoryProtocol,
		Message:  "Input rate limited",
		Detail:   "A client sent inputs faster than the configured rate.",
		DocURL:   docBase + "E403",
	},
	"E404": {
		Category: CategoryProtocol,
		Message:  "Bridge failed to start",
		Detail:   "The HTTP listener could not be opened.",
		DocURL:   docBase + "E404",
	},

	// ============================================
	// CLI Errors (E501-E599)
	// ============================================

	"E501": {
		Category: CategoryCLI,
		Message:  "Unknown demo",
		Detail:   "The requested demo graph does not exist.",
		DocURL:   docBase + "E501",
	},
	"E502": {
		Category: CategoryCLI,
		Message:  "Unknown graph format",
		Detail:   "Graphs can be written as dot or json.",
		DocURL:   docBase + "E502",
	},
}

// GetAllCodes returns all registered error codes in ascending order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
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
