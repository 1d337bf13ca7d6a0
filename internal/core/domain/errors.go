package domain

import "errors"

var (
	// ErrNotFound is returned by repositories when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidMerge rejects merges whose target is not canonical or equals the source.
	ErrInvalidMerge = errors.New("invalid identity merge")
	// ErrUnknownItem is returned when an observation references a missing item.
	ErrUnknownItem = errors.New("unknown item")
	// ErrGatewayRejected marks a gateway answer that must not be retried
	// (non-200 status, GraphQL error payload, unparseable body).
	ErrGatewayRejected = errors.New("gateway rejected request")
)
