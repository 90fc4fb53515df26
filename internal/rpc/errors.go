package rpc

import "errors"

// ErrConnection marks failures to reach or handshake with the RPC endpoint.
// It is fatal for the run; chain-id retrieval is the one call whose failure
// the caller tolerates.
var ErrConnection = errors.New("rpc connection failed")
