package database

import "fmt"

// Key families used to namespace the values kept in the one shared store.
const (
	blockPrefix   = "block:"
	heightPrefix  = "height:"
	messagePrefix = "message:"
	accountPrefix = "account:"
	walletPrefix  = "wallet:"

	chainHeadKey = "chain_head"
	minerAddrKey = "miner_addr"
)

func blockKey(hash string) string {
	return blockPrefix + hash
}

// heightKey pads the height so keys sort in chain order.
func heightKey(height uint64) string {
	return fmt.Sprintf("%s%016d", heightPrefix, height)
}

func messageKey(cid string) string {
	return messagePrefix + cid
}

func accountKey(address string) string {
	return accountPrefix + address
}

func walletKey(address string) string {
	return walletPrefix + address
}
