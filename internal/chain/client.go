// Package chain holds the blockchain leg: a narrow RPC client contract and
// the confirmer that finalizes transfers against chain facts. The engine
// never parses chain data or touches key material; both stay behind the
// client.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"SettleCore/internal/model"
)

// Tx is a confirmed on-chain transaction as reported by the RPC node.
type Tx struct {
	Hash      string    `json:"hash"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// Client is the RPC collaborator contract. Any non-success response is a
// transient failure the caller may retry; an explicit not-found is
// authoritative and surfaces as model.ErrNotFound.
type Client interface {
	GetWalletBalance(ctx context.Context, address string) (int64, error)
	GetTransaction(ctx context.Context, hash string) (*Tx, error)
	Broadcast(ctx context.Context, signedTx []byte) (string, error)
}

// HTTPClient talks JSON over HTTP to the chain RPC node.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *HTTPClient) call(ctx context.Context, method string, params, result interface{}) error {
	body, err := json.Marshal(rpcRequest{Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: chain rpc %s: %v", model.ErrInternal, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: chain rpc %s: status %d", model.ErrInternal, method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("%w: chain rpc %s: decode: %v", model.ErrInternal, method, err)
	}
	if rpcResp.Error != nil {
		if rpcResp.Error.Code == "not_found" {
			return model.NotFoundf("chain %s", method)
		}
		return fmt.Errorf("%w: chain rpc %s: %s", model.ErrInternal, method, rpcResp.Error.Message)
	}

	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("%w: chain rpc %s: unmarshal result: %v", model.ErrInternal, method, err)
		}
	}
	return nil
}

func (c *HTTPClient) GetWalletBalance(ctx context.Context, address string) (int64, error) {
	var out struct {
		Balance int64 `json:"balance"`
	}
	err := c.call(ctx, "get_wallet_balance", map[string]string{"address": address}, &out)
	if err != nil {
		return 0, err
	}
	return out.Balance, nil
}

func (c *HTTPClient) GetTransaction(ctx context.Context, hash string) (*Tx, error) {
	var out Tx
	if err := c.call(ctx, "get_transaction", map[string]string{"hash": hash}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Broadcast(ctx context.Context, signedTx []byte) (string, error) {
	var out struct {
		TxID string `json:"tx_id"`
	}
	err := c.call(ctx, "broadcast", map[string]json.RawMessage{"signed_tx": signedTx}, &out)
	if err != nil {
		return "", err
	}
	return out.TxID, nil
}
