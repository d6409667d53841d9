// Package codec centralizes document decoding.
//
// Advisory documents are plain JSON, but the fetch path decodes thousands of
// them in a browsing session, so the codec is pluggable: the default is the
// goccy decoder, with the standard library available as the zero-dependency
// fallback.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}
