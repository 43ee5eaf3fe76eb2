// Package recurly translates between the typed payment entities and the
// Recurly v3 wire format.
//
// The package is split in two layers. The Client interface and the wire
// structs in wire.go model the remote API exactly as it appears on the wire,
// including its optionality quirks. The Gateway wraps a Client and is the
// only place that knows the identifier namespaces ("code-" prefixed account
// codes, "uuid-" prefixed subscription ids) and the provider's error
// vocabulary. Code above the gateway never sees wire types or raw provider
// errors.
package recurly
