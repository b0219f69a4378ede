package state

import (
	"errors"
	"fmt"

	"github.com/blockj/node/foundation/blockchain/database"
	"github.com/shopspring/decimal"
)

// SubmitMessage signs a transfer with a wallet kept by this node and accepts
// it for inclusion. The message carries the next nonce of the sender taking
// the messages already waiting in the mempool into account.
func (s *State) SubmitMessage(from string, to string, value decimal.Decimal, params string) (database.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.db.Wallet(from)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return database.Message{}, database.NewValidationError("no wallet kept for account %s", from)
		}
		return database.Message{}, err
	}

	account, err := s.account(w.Address)
	if err != nil {
		return database.Message{}, err
	}

	if account.Balance.LessThan(value) {
		return database.Message{}, database.NewValidationError("account %s has insufficient funds, balance %s, value %s", w.Address, account.Balance, value)
	}

	nonce := max(account.MessageNonce, s.mempool.PendingNonce(w.Address)) + 1

	msg, err := database.NewMessage(w.Address, to, value, params, nonce)
	if err != nil {
		return database.Message{}, err
	}

	if msg, err = msg.SignWith(w); err != nil {
		return database.Message{}, fmt.Errorf("sign message: %w", err)
	}

	if err := msg.Validate(); err != nil {
		return database.Message{}, err
	}

	n := s.mempool.Upsert(msg)
	s.evHandler("state: SubmitMessage: msg[%s]: nonce[%d]: mempool[%d]", msg.Cid, msg.Nonce, n)

	s.signalShareMessage(msg)
	s.signalStartMining()

	return msg, nil
}

// ProcessProposedMessage accepts a message shared by a peer for inclusion.
func (s *State) ProcessProposedMessage(msg database.Message) error {
	if msg.IsReward() {
		return database.NewValidationError("reward message %s can't be proposed", msg.Cid)
	}

	if err := msg.Validate(); err != nil {
		return err
	}

	account, err := s.account(msg.From)
	if err != nil {
		return err
	}

	if msg.Nonce <= account.MessageNonce {
		return database.NewValidationError("message nonce %d already used, account nonce %d", msg.Nonce, account.MessageNonce)
	}

	n := s.mempool.Upsert(msg)
	s.evHandler("state: ProcessProposedMessage: msg[%s]: nonce[%d]: mempool[%d]", msg.Cid, msg.Nonce, n)

	s.signalStartMining()

	return nil
}

// =============================================================================

// account returns the stored account or an empty one for an address that
// has never been part of an applied message.
func (s *State) account(address string) (database.Account, error) {
	account, err := s.db.Account(address)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return database.NewAccount(address, decimal.Zero), nil
	case err != nil:
		return database.Account{}, err
	}

	return account, nil
}
