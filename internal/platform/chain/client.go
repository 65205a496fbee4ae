// Package chain is a minimal JSON-RPC client for the Polygon endpoints the
// indexer needs: block-number lookup, log queries, and per-transaction
// sender lookup. Every call retries transient failures with exponential
// backoff before escalating.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/polytrack/polytrack/internal/domain"
)

// Config holds the client's endpoint and retry parameters.
type Config struct {
	RPCURL     string
	MaxRetries int
	// BaseDelay is the first retry delay; it doubles on every subsequent
	// attempt.
	BaseDelay time.Duration
}

// Client is a retrying JSON-RPC client over HTTP.
type Client struct {
	rpcURL     string
	maxRetries int
	baseDelay  time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Client for the given endpoint.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}
	delay := cfg.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}
	return &Client{
		rpcURL:     cfg.RPCURL,
		maxRetries: retries,
		baseDelay:  delay,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With(slog.String("component", "rpc")),
	}
}

// rpcRequest is the standard JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// rpcResponse is the standard JSON-RPC 2.0 response envelope.
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// call performs a single JSON-RPC request and unmarshals the result into
// out. A non-nil response error is returned as-is.
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("chain: marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chain: create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chain: %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("chain: %s: unexpected status %d: %s", method, resp.StatusCode, string(respBody))
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("chain: decode %s response: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("chain: %s: %w", method, envelope.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("chain: unmarshal %s result: %w", method, err)
	}
	return nil
}

// Call performs a JSON-RPC request with exponential backoff. It fails with
// domain.ErrRetryExhausted wrapped around the last error only after
// maxRetries attempts.
func (c *Client) Call(ctx context.Context, method string, params []any, out any) error {
	delay := c.baseDelay

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		lastErr = c.call(ctx, method, params, out)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("chain: %s: %w", method, ctx.Err())
		}
		if attempt == c.maxRetries {
			break
		}

		c.logger.WarnContext(ctx, "rpc retry",
			slog.String("method", method),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", c.maxRetries),
			slog.String("error", lastErr.Error()),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("chain: %s: %w", method, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	return fmt.Errorf("chain: %s after %d attempts: %w: %w",
		method, c.maxRetries, domain.ErrRetryExhausted, lastErr)
}

// BlockNumber returns the latest block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var raw string
	if err := c.Call(ctx, "eth_blockNumber", []any{}, &raw); err != nil {
		return 0, err
	}
	n, err := hexutil.DecodeUint64(raw)
	if err != nil {
		return 0, fmt.Errorf("chain: parse block number %q: %w", raw, err)
	}
	return n, nil
}

// LogFilter describes an eth_getLogs query.
type LogFilter struct {
	FromBlock uint64
	ToBlock   uint64
	Addresses []string
	Topics    []string
}

// rawLogDTO mirrors the eth_getLogs response entry.
type rawLogDTO struct {
	BlockNumber     string   `json:"blockNumber"`
	TransactionHash string   `json:"transactionHash"`
	LogIndex        string   `json:"logIndex"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
}

// GetLogs queries event logs in the given block range for the configured
// addresses and topics.
func (c *Client) GetLogs(ctx context.Context, filter LogFilter) ([]domain.RawLog, error) {
	addresses := make([]string, 0, len(filter.Addresses))
	for _, a := range filter.Addresses {
		addresses = append(addresses, common.HexToAddress(a).Hex())
	}

	params := []any{map[string]any{
		"fromBlock": hexutil.EncodeUint64(filter.FromBlock),
		"toBlock":   hexutil.EncodeUint64(filter.ToBlock),
		"address":   addresses,
		"topics":    filter.Topics,
	}}

	var dtos []rawLogDTO
	if err := c.Call(ctx, "eth_getLogs", params, &dtos); err != nil {
		return nil, err
	}

	logs := make([]domain.RawLog, 0, len(dtos))
	for i, dto := range dtos {
		blockNum, err := hexutil.DecodeUint64(dto.BlockNumber)
		if err != nil {
			return nil, fmt.Errorf("chain: log %d: parse block number %q: %w", i, dto.BlockNumber, err)
		}
		logIdx, err := hexutil.DecodeUint64(dto.LogIndex)
		if err != nil {
			return nil, fmt.Errorf("chain: log %d: parse log index %q: %w", i, dto.LogIndex, err)
		}
		logs = append(logs, domain.RawLog{
			BlockNumber: blockNum,
			TxHash:      strings.ToLower(dto.TransactionHash),
			LogIndex:    uint(logIdx),
			Topics:      dto.Topics,
			Data:        dto.Data,
		})
	}
	return logs, nil
}

// TransactionSender returns the from address of a transaction, lower-cased.
// A transaction the node does not know yields domain.ErrNotFound rather
// than an RPC failure, so callers can distinguish "missing" from "down".
func (c *Client) TransactionSender(ctx context.Context, txHash string) (string, error) {
	var result *struct {
		From string `json:"from"`
	}
	if err := c.Call(ctx, "eth_getTransactionByHash", []any{txHash}, &result); err != nil {
		return "", err
	}
	if result == nil || result.From == "" {
		return "", fmt.Errorf("chain: tx %s: %w", txHash, domain.ErrNotFound)
	}
	return strings.ToLower(result.From), nil
}

// GetCode returns the deployed bytecode at an address. An externally owned
// account returns "0x".
func (c *Client) GetCode(ctx context.Context, address string) (string, error) {
	var code string
	addr := common.HexToAddress(address).Hex()
	if err := c.Call(ctx, "eth_getCode", []any{addr, "latest"}, &code); err != nil {
		return "", err
	}
	return code, nil
}
