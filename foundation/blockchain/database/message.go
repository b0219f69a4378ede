package database

import (
	"fmt"

	"github.com/blockj/node/foundation/blockchain/codec"
	"github.com/blockj/node/foundation/blockchain/signature"
	"github.com/shopspring/decimal"
)

// Message is the transfer of value between two accounts.
type Message struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Value  decimal.Decimal `json:"value"`
	Params string          `json:"params"`
	Nonce  uint64          `json:"nonce"`
	PubKey string          `json:"pub_key,omitempty"`
	Sign   string          `json:"sign,omitempty"`
	Cid    string          `json:"cid"`
}

// NewMessage constructs an unsigned message with its cid calculated.
func NewMessage(from string, to string, value decimal.Decimal, params string, nonce uint64) (Message, error) {
	if !IsAddress(to) {
		return Message{}, NewValidationError("to account %q is not properly formatted", to)
	}

	if value.IsNegative() {
		return Message{}, NewValidationError("value %s is negative", value)
	}

	msg := Message{
		From:   ToAddress(from),
		To:     ToAddress(to),
		Value:  value,
		Params: params,
		Nonce:  nonce,
	}

	cid, err := codec.CID(msg)
	if err != nil {
		return Message{}, err
	}
	msg.Cid = cid.String()

	return msg, nil
}

// SignableFields returns the fields that make up the content of the message
// in their canonical order.
func (m Message) SignableFields() []any {
	return []any{m.From, m.To, m.Value.String(), m.Params, m.Nonce}
}

// SignableBytes returns the canonical encoding that is signed.
func (m Message) SignableBytes() ([]byte, error) {
	return codec.Encode(m.SignableFields()...)
}

// CID recalculates the content identifier of the message.
func (m Message) CID() (string, error) {
	cid, err := codec.CID(m)
	if err != nil {
		return "", err
	}

	return cid.String(), nil
}

// SignWith signs the message with the wallet and records its public key.
func (m Message) SignWith(w Wallet) (Message, error) {
	data, err := m.SignableBytes()
	if err != nil {
		return Message{}, err
	}

	sig, err := signature.Sign(w.PrivKey, data)
	if err != nil {
		return Message{}, err
	}

	m.PubKey = w.PubKey
	m.Sign = sig

	return m, nil
}

// Validate checks the cid and signature of the message and that the public
// key belongs to the sender.
func (m Message) Validate() error {
	cid, err := m.CID()
	if err != nil {
		return err
	}

	if cid != m.Cid {
		return NewValidationError("message cid mismatch, got %s, exp %s", m.Cid, cid)
	}

	if m.Value.IsNegative() {
		return NewValidationError("message %s value %s is negative", m.Cid, m.Value)
	}

	data, err := m.SignableBytes()
	if err != nil {
		return err
	}

	if !signature.Verify(m.PubKey, data, m.Sign) {
		return NewValidationError("message %s signature does not verify", m.Cid)
	}

	from, err := signature.Address(m.PubKey)
	if err != nil || from != m.From {
		return NewValidationError("message %s public key does not belong to %s", m.Cid, m.From)
	}

	return nil
}

// IsReward reports whether the message mints value from the reward address.
func (m Message) IsReward() bool {
	return m.From == RewardAddress
}

// String implements the fmt.Stringer interface for logging.
func (m Message) String() string {
	return fmt.Sprintf("%s:%d", m.From, m.Nonce)
}
