package p2p

import (
	"errors"
	"fmt"

	"github.com/blockj/node/foundation/blockchain/peer"
)

// NetworkError is returned when a connection to a peer fails. The network
// keeps trying to reconnect in the background.
type NetworkError struct {
	Peer peer.Peer
	Err  error
}

// Error implements the error interface.
func (ne *NetworkError) Error() string {
	return fmt.Sprintf("peer %s: %s", ne.Peer, ne.Err)
}

// Unwrap provides access to the underlying error.
func (ne *NetworkError) Unwrap() error {
	return ne.Err
}

// IsNetworkError checks if an error of type NetworkError exists.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
