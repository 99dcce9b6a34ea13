package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"staychain/core/types"
)

// Client calls a node's JSON-RPC endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	token    func() (string, error)
	nextID   atomic.Int64
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithBearer attaches a JWT produced by fn to every call.
func WithBearer(fn func() (string, error)) ClientOption {
	return func(c *Client) { c.token = fn }
}

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if !strings.HasSuffix(c.endpoint, "/rpc") {
		c.endpoint += "/rpc"
	}
	return c
}

// Call invokes method with a single parameter object and decodes the result
// into out. A JSON-RPC error is returned as *RPCError.
func (c *Client) Call(ctx context.Context, method string, param interface{}, out interface{}) error {
	var params []json.RawMessage
	if param != nil {
		raw, err := json.Marshal(param)
		if err != nil {
			return fmt.Errorf("rpc: encode params: %w", err)
		}
		params = []json.RawMessage{raw}
	}
	id, _ := json.Marshal(c.nextID.Add(1))
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: params, ID: id})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != nil {
		token, err := c.token()
		if err != nil {
			return fmt.Errorf("rpc: bearer token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("rpc: decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	if envelope.Error != nil {
		envelope.Error.status = resp.StatusCode
		return envelope.Error
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Result, out)
}

// SendTransaction submits a signed transaction.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) (*ReceiptJSON, error) {
	var receipt ReceiptJSON
	if err := c.Call(ctx, "stay_sendTransaction", tx, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Nonce returns the next nonce of addr.
func (c *Client) Nonce(ctx context.Context, addr string) (uint64, error) {
	var nonce uint64
	err := c.Call(ctx, "stay_getNonce", addressParams{Address: addr}, &nonce)
	return nonce, err
}

// ListEvents pages through escrow events after afterSeq.
func (c *Client) ListEvents(ctx context.Context, typePrefix string, afterSeq int64, limit int) ([]EventRecordJSON, int64, error) {
	var out struct {
		Events  []EventRecordJSON `json:"events"`
		NextSeq int64             `json:"nextSeq"`
	}
	err := c.Call(ctx, "escrow_listEvents", listEventsParams{TypePrefix: typePrefix, AfterSeq: afterSeq, Limit: limit}, &out)
	return out.Events, out.NextSeq, err
}

// EventRecordJSON is the client view of a persisted event.
type EventRecordJSON struct {
	Seq        int64             `json:"seq"`
	TxHash     string            `json:"txHash"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Digest     string            `json:"digest"`
	RecordedAt int64             `json:"recordedAt"`
}

// IsCode reports whether err is a JSON-RPC error with code.
func IsCode(err error, code int) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == code
}

// ErrorCode returns the escrow error code carried in err's data, or "".
func ErrorCode(err error) string {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return ""
	}
	data, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		return ""
	}
	code, _ := data["code"].(string)
	return code
}

// Exported error codes for clients.
const (
	CodeInvalidParams = codeInvalidParams
	CodeNotFound      = codeNotFound
	CodeForbidden     = codeForbidden
	CodeConflict      = codeConflict
	CodeInternal      = codeInternal
	CodeValidation    = codeValidation
)
