package public

import (
	"github.com/blockj/node/foundation/blockchain/database"
	"github.com/shopspring/decimal"
)

// newMessage is the payload for sending value from a wallet kept by the node.
type newMessage struct {
	From   string `json:"from" validate:"required,eth_addr"`
	To     string `json:"to" validate:"required,eth_addr"`
	Value  string `json:"value" validate:"required,numeric"`
	Params string `json:"params" validate:"max=256"`
}

type messageCid struct {
	Cid string `json:"cid"`
}

type address struct {
	Address string `json:"address"`
}

type balance struct {
	Address string          `json:"address"`
	Balance decimal.Decimal `json:"balance"`
}

type chainHead struct {
	Height uint64 `json:"height"`
}

type mempool struct {
	Count    int                `json:"count"`
	Messages []database.Message `json:"messages"`
}
