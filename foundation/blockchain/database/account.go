package database

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// RewardAddress is the sender of system minted value. It is exempt from
// balance and nonce checks and is never debited.
const RewardAddress = "0x0000000000000000000000000000000000000000"

// Account represents information stored in the database for an individual account.
type Account struct {
	Address      string          `json:"address"`
	Balance      decimal.Decimal `json:"balance"`
	PubKey       string          `json:"pub_key,omitempty"`
	MessageNonce uint64          `json:"message_nonce"`
}

// NewAccount constructs a new account value for use. A new account always
// starts at nonce zero. Values read back from the store are authoritative.
func NewAccount(address string, balance decimal.Decimal) Account {
	return Account{
		Address: address,
		Balance: balance,
	}
}

// =============================================================================

// IsAddress verifies whether the underlying data represents a valid
// hex-encoded account address.
func IsAddress(a string) bool {
	const addressLength = 20

	if has0xPrefix(a) {
		a = a[2:]
	}

	return len(a) == 2*addressLength && isHex(a)
}

// ToAddress returns the checksummed form of a valid address so the same
// account always maps to the same key. Other values are returned unchanged.
func ToAddress(a string) string {
	if !IsAddress(a) {
		return a
	}

	return common.HexToAddress(a).Hex()
}

// has0xPrefix validates the address starts with a 0x.
func has0xPrefix(a string) bool {
	return len(a) >= 2 && a[0] == '0' && (a[1] == 'x' || a[1] == 'X')
}

// isHex validates whether each byte is valid hexadecimal string.
func isHex(a string) bool {
	if len(a)%2 != 0 {
		return false
	}

	for _, c := range []byte(a) {
		if !isHexCharacter(c) {
			return false
		}
	}

	return true
}

// isHexCharacter returns bool of c being a valid hexadecimal.
func isHexCharacter(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
