// Package client provides access to the public api of a node.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/blockj/node/foundation/blockchain/database"
	"github.com/blockj/node/foundation/blockchain/peer"
	"github.com/shopspring/decimal"
)

// DefaultTimeout bounds a single call to the node.
const DefaultTimeout = 10 * time.Second

// ApiError is returned when the node responds with a non 2xx status.
type ApiError struct {
	Status  int
	Message string
	Fields  map[string]string
}

// Error implements the error interface.
func (ae *ApiError) Error() string {
	return fmt.Sprintf("node api: status %d: %s", ae.Status, ae.Message)
}

// =============================================================================

// Client calls the v1 public api of a node.
type Client struct {
	url  string
	http *http.Client
}

// New constructs a client for the node listening at the base url.
func New(url string) *Client {
	return &Client{
		url:  strings.TrimSuffix(url, "/"),
		http: &http.Client{Timeout: DefaultTimeout},
	}
}

// NewWallet asks the node to create a wallet and returns its address.
func (c *Client) NewWallet(ctx context.Context) (string, error) {
	var resp struct {
		Address string `json:"address"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/wallet/new", nil, &resp); err != nil {
		return "", err
	}

	return resp.Address, nil
}

// Wallets returns the addresses of the wallets kept by the node.
func (c *Client) Wallets(ctx context.Context) ([]string, error) {
	var addresses []string
	if err := c.do(ctx, http.MethodGet, "/v1/wallet/list", nil, &addresses); err != nil {
		return nil, err
	}

	return addresses, nil
}

// Balance returns the balance of the address.
func (c *Client) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	var resp struct {
		Balance decimal.Decimal `json:"balance"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/balance/"+address, nil, &resp); err != nil {
		return decimal.Zero, err
	}

	return resp.Balance, nil
}

// SendMessage asks the node to sign and submit a message from one of its
// wallets. The cid of the message is returned.
func (c *Client) SendMessage(ctx context.Context, from string, to string, value decimal.Decimal, params string) (string, error) {
	req := struct {
		From   string `json:"from"`
		To     string `json:"to"`
		Value  string `json:"value"`
		Params string `json:"params"`
	}{
		From:   from,
		To:     to,
		Value:  value.String(),
		Params: params,
	}

	var resp struct {
		Cid string `json:"cid"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/message/send", req, &resp); err != nil {
		return "", err
	}

	return resp.Cid, nil
}

// Message returns the applied message for the cid.
func (c *Client) Message(ctx context.Context, cid string) (database.Message, error) {
	var msg database.Message
	if err := c.do(ctx, http.MethodGet, "/v1/message/"+cid, nil, &msg); err != nil {
		return database.Message{}, err
	}

	return msg, nil
}

// ChainHead returns the height of the latest block.
func (c *Client) ChainHead(ctx context.Context) (uint64, error) {
	var resp struct {
		Height uint64 `json:"height"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/chain/head", nil, &resp); err != nil {
		return 0, err
	}

	return resp.Height, nil
}

// Block returns the block at the height.
func (c *Client) Block(ctx context.Context, height uint64) (database.Block, error) {
	var block database.Block
	if err := c.do(ctx, http.MethodGet, "/v1/block/"+strconv.FormatUint(height, 10), nil, &block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// Mempool returns the messages waiting to be mined.
func (c *Client) Mempool(ctx context.Context) ([]database.Message, error) {
	var resp struct {
		Messages []database.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/mempool/list", nil, &resp); err != nil {
		return nil, err
	}

	return resp.Messages, nil
}

// Status returns the chain head and the known peers of the node.
func (c *Client) Status(ctx context.Context) (peer.PeerStatus, error) {
	var status peer.PeerStatus
	if err := c.do(ctx, http.MethodGet, "/v1/node/status", nil, &status); err != nil {
		return peer.PeerStatus{}, err
	}

	return status, nil
}

// =============================================================================

func (c *Client) do(ctx context.Context, method string, path string, body any, v any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url+path, r)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}

	if v == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// apiError builds the error for a failed response. A body that isn't an
// error document falls back to the status text.
func apiError(resp *http.Response) error {
	var er struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error == "" {
		er.Error = http.StatusText(resp.StatusCode)
	}

	return &ApiError{
		Status:  resp.StatusCode,
		Message: er.Error,
		Fields:  er.Fields,
	}
}
