package sanitize

// The types below carry page runtime values that have no direct JSON or Go
// equivalent. Capture agents tag them on the wire and the envelope decoder
// turns the tags into these values.

// Undefined is the page's undefined.
type Undefined struct{}

// Function is a function reference; Name is empty for anonymous functions.
type Function struct {
	Name string
}

// BigInt is an arbitrary precision integer in decimal digits.
type BigInt struct {
	Digits string
}

// Symbol is a symbol with its optional description.
type Symbol struct {
	Description string
}

// ErrorValue is an error-like object as captured on the page.
type ErrorValue struct {
	Name    string
	Message string
	Stack   string
}

// Options bounds the sanitized output. Zero or negative limits disable the
// corresponding bound.
type Options struct {
	MaxArgs     int
	MaxArgChars int
}

const (
	// CircularMarker replaces a revisited reference during serialization.
	CircularMarker = "[Circular]"

	anonymousFunction = "anonymous"
)
