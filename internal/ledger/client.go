package ledger

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// RetryConfig bounds the client's backoff on transient RPC failures.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Client is a JSON-RPC client scoped to the Signele contract: it only issues
// eth_call, eth_getLogs and eth_blockNumber against one contract address.
type Client struct {
	rpcURL     string
	contract   string
	httpClient *http.Client
	retry      RetryConfig
	nextID     uint64
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

func NewClient(rpcURL, contractAddr string, opts ...Option) *Client {
	c := &Client{
		rpcURL:     strings.TrimRight(rpcURL, "/"),
		contract:   contractAddr,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		retry:      RetryConfig{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.MaxAttempts < 1 {
		c.retry.MaxAttempts = 1
	}
	return c
}

// ContractAddress returns the contract this client is bound to.
func (c *Client) ContractAddress() string { return c.contract }

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) rpc(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	// One client is shared by the poll loop and request handlers.
	id := atomic.AddUint64(&c.nextID, 1)
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, &FetchError{Op: method, Err: err}
	}
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
		if err != nil {
			return nil, &FetchError{Op: method, Err: err}
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt < c.retry.MaxAttempts {
				sleepWithBackoff(ctx, c.retry, attempt)
				continue
			}
			break
		}
		respBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode >= 500 && attempt < c.retry.MaxAttempts {
			lastErr = fmt.Errorf("rpc endpoint returned %d", resp.StatusCode)
			sleepWithBackoff(ctx, c.retry, attempt)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &FetchError{Op: method, Err: fmt.Errorf("rpc endpoint returned %d", resp.StatusCode)}
		}
		var out rpcResponse
		if err := json.Unmarshal(respBody, &out); err != nil {
			return nil, &FetchError{Op: method, Err: err}
		}
		if out.Error != nil {
			return nil, &FetchError{Op: method, Err: fmt.Errorf("rpc error %d: %s", out.Error.Code, out.Error.Message)}
		}
		return out.Result, nil
	}
	return nil, &FetchError{Op: method, Err: lastErr}
}

func sleepWithBackoff(ctx context.Context, cfg RetryConfig, attempt int) {
	d := cfg.BaseDelay << (attempt - 1)
	if d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Call runs a read-only contract call and returns the raw ABI-encoded result.
func (c *Client) Call(ctx context.Context, data []byte) ([]byte, error) {
	raw, err := c.rpc(ctx, "eth_call", map[string]string{
		"to":   c.contract,
		"data": "0x" + hex.EncodeToString(data),
	}, "latest")
	if err != nil {
		return nil, err
	}
	var hexResult string
	if err := json.Unmarshal(raw, &hexResult); err != nil {
		return nil, &FetchError{Op: "eth_call", Err: err}
	}
	out, err := decodeHex(hexResult)
	if err != nil {
		return nil, &FetchError{Op: "eth_call", Err: err}
	}
	return out, nil
}

// BlockNumber returns the current chain head.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	raw, err := c.rpc(ctx, "eth_blockNumber")
	if err != nil {
		return 0, err
	}
	var hexNum string
	if err := json.Unmarshal(raw, &hexNum); err != nil {
		return 0, &FetchError{Op: "eth_blockNumber", Err: err}
	}
	n, err := parseHexUint(hexNum)
	if err != nil {
		return 0, &FetchError{Op: "eth_blockNumber", Err: err}
	}
	return n, nil
}

type rawLog struct {
	BlockNumber string   `json:"blockNumber"`
	TxHash      string   `json:"transactionHash"`
	LogIndex    string   `json:"logIndex"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
}

// Logs fetches the contract's log entries for one topic signature within a
// block range, oldest first.
func (c *Client) Logs(ctx context.Context, topic0 string, fromBlock, toBlock uint64) ([]Log, error) {
	raw, err := c.rpc(ctx, "eth_getLogs", map[string]any{
		"address":   c.contract,
		"topics":    []string{topic0},
		"fromBlock": hexUint(fromBlock),
		"toBlock":   hexUint(toBlock),
	})
	if err != nil {
		return nil, err
	}
	var raws []rawLog
	if err := json.Unmarshal(raw, &raws); err != nil {
		return nil, &FetchError{Op: "eth_getLogs", Err: err}
	}
	out := make([]Log, 0, len(raws))
	for _, rl := range raws {
		lg, err := rl.parse()
		if err != nil {
			return nil, &FetchError{Op: "eth_getLogs", Err: err}
		}
		out = append(out, lg)
	}
	return out, nil
}

func (rl rawLog) parse() (Log, error) {
	block, err := parseHexUint(rl.BlockNumber)
	if err != nil {
		return Log{}, fmt.Errorf("log blockNumber: %w", err)
	}
	idx, err := parseHexUint(rl.LogIndex)
	if err != nil {
		return Log{}, fmt.Errorf("log logIndex: %w", err)
	}
	data, err := decodeHex(rl.Data)
	if err != nil {
		return Log{}, fmt.Errorf("log data: %w", err)
	}
	return Log{
		BlockNumber: block,
		TxHash:      rl.TxHash,
		LogIndex:    idx,
		Topics:      rl.Topics,
		Data:        data,
	}, nil
}

func hexUint(n uint64) string { return "0x" + strconv.FormatUint(n, 16) }

func parseHexUint(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if s == "" {
		return 0, fmt.Errorf("empty hex quantity")
	}
	return strconv.ParseUint(s, 16, 64)
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}
