package rpc

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"staychain/core"
	"staychain/core/types"
	"staychain/native/common"
	"staychain/native/escrow"
	"staychain/native/lodging"
	"staychain/native/token"
	"staychain/storage"
	"staychain/storage/eventlog"
)

const (
	testChainID = 187
	testSecret  = "test-secret"
	testIssuer  = "staychain"
)

type signer struct {
	priv  *ecdsa.PrivateKey
	addr  [20]byte
	nonce uint64
}

func newSigner(t *testing.T) *signer {
	t.Helper()
	priv, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	return &signer{priv: priv, addr: [20]byte(ethcrypto.PubkeyToAddress(priv.PublicKey))}
}

func (s *signer) tx(t *testing.T, txType types.TxType, payload interface{}) *types.Transaction {
	t.Helper()
	tx := &types.Transaction{ChainID: testChainID, Type: txType, Nonce: s.nonce}
	require.NoError(t, tx.EncodePayload(payload))
	require.NoError(t, tx.Sign(s.priv))
	s.nonce++
	return tx
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type env struct {
	node      *core.Node
	server    *Server
	clock     *testClock
	authority *signer
	mint      [20]byte
	treasury  [20]byte
}

func newEnv(t *testing.T, cfg ServerConfig) *env {
	t.Helper()
	authority := newSigner(t)
	log, err := eventlog.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	clk := &testClock{now: time.Unix(1_700_000_000, 0)}
	node, err := core.NewNode(storage.NewMemDB(), core.Options{
		ChainID:           testChainID,
		PlatformAuthority: authority.addr,
		EventLog:          log,
		Now:               clk.Now,
	})
	require.NoError(t, err)
	params := core.DefaultBootstrapParams()
	params.InitialSupply = 10_000_000_000_000
	mint, treasury, err := node.Bootstrap(context.Background(), params)
	require.NoError(t, err)

	server, err := NewServer(node, cfg, nil)
	require.NoError(t, err)
	return &env{node: node, server: server, clock: clk, authority: authority, mint: mint, treasury: treasury}
}

func doRPC(t *testing.T, h http.Handler, method string, params ...interface{}) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		b, err := json.Marshal(p)
		require.NoError(t, err)
		raw = append(raw, b)
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: "2.0", Method: method, Params: raw, ID: json.RawMessage("1")})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp RPCResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, resp
}

func TestHealthzAndRequestID(t *testing.T) {
	e := newEnv(t, ServerConfig{})
	h := e.server.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))

	const id = "9b2f3c1e-5d0a-4c8e-8f51-2a7d6b3e4c10"
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, id)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, id, rec.Header().Get(requestIDHeader))
}

func TestMethodNotFound(t *testing.T) {
	e := newEnv(t, ServerConfig{})
	rec, resp := doRPC(t, e.server.Handler(), "stay_missing")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
	require.Equal(t, json.RawMessage("1"), resp.ID)
}

func TestMalformedRequests(t *testing.T) {
	e := newEnv(t, ServerConfig{MaxBodyBytes: 64})
	h := e.server.Handler()

	cases := []struct {
		name   string
		body   string
		status int
		code   int
	}{
		{"empty", "", http.StatusBadRequest, codeInvalidRequest},
		{"parse", "{", http.StatusBadRequest, codeParseError},
		{"version", `{"jsonrpc":"1.0","method":"stay_getNonce","id":1}`, http.StatusBadRequest, codeInvalidRequest},
		{"method", `{"jsonrpc":"2.0","id":1}`, http.StatusBadRequest, codeInvalidRequest},
		{"too large", `{"jsonrpc":"2.0","method":"` + strings.Repeat("x", 128) + `"}`, http.StatusRequestEntityTooLarge, codeInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(tc.body)))
			require.Equal(t, tc.status, rec.Code)
			var resp RPCResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			require.Equal(t, tc.code, resp.Error.Code)
		})
	}
}

func TestInvalidParams(t *testing.T) {
	e := newEnv(t, ServerConfig{})
	h := e.server.Handler()

	rec, resp := doRPC(t, h, "escrow_get")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	_, resp = doRPC(t, h, "escrow_get", addressParams{Address: "stay1notanaddress"})
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	_, resp = doRPC(t, h, "escrow_quote", quoteParams{Amount: "-5"})
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	_, resp = doRPC(t, h, "escrow_listEvents", listEventsParams{AfterSeq: -1})
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestEscrowQuote(t *testing.T) {
	e := newEnv(t, ServerConfig{})
	rec, resp := doRPC(t, e.server.Handler(), "escrow_quote", quoteParams{Amount: "2000000"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, resp.Error)

	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var quote QuoteJSON
	require.NoError(t, json.Unmarshal(raw, &quote))
	require.Equal(t, QuoteJSON{
		Amount:         "2000000",
		PlatformFee:    "100000",
		HostNet:        "1900000",
		TransferAmount: "2000000",
	}, quote)
}

func TestEscrowGetNotFound(t *testing.T) {
	e := newEnv(t, ServerConfig{})
	addr, err := e.node.EscrowAddress([20]byte{1}, 1)
	require.NoError(t, err)
	rec, resp := doRPC(t, e.server.Handler(), "escrow_get", addressParams{Address: formatAddress(addr)})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, codeNotFound, resp.Error.Code)
}

func TestSendTransactionRequiresJWT(t *testing.T) {
	e := newEnv(t, ServerConfig{JWT: JWTConfig{Secret: testSecret, Issuer: testIssuer}})
	h := e.server.Handler()
	host := newSigner(t)
	tx := host.tx(t, types.TxTypeInitializeHost, types.InitializeHostPayload{Name: "Ada"})

	rec, resp := doRPC(t, h, "stay_sendTransaction", tx)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	// Reads stay open.
	rec, _ = doRPC(t, h, "stay_getNonce", addressParams{Address: formatAddress(host.addr)})
	require.Equal(t, http.StatusOK, rec.Code)

	wrong, err := IssueToken("other-secret", testIssuer, "cli", time.Minute, time.Now())
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, sendWithToken(t, h, tx, wrong).Code)

	token, err := IssueToken(testSecret, testIssuer, "cli", time.Minute, time.Now())
	require.NoError(t, err)
	rec = sendWithToken(t, h, tx, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	nonce, err := e.node.Nonce(host.addr)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)
}

func sendWithToken(t *testing.T, h http.Handler, tx *types.Transaction, token string) *httptest.ResponseRecorder {
	t.Helper()
	param, err := json.Marshal(tx)
	require.NoError(t, err)
	body, err := json.Marshal(RPCRequest{JSONRPC: "2.0", Method: "stay_sendTransaction", Params: []json.RawMessage{param}, ID: json.RawMessage("7")})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIssueTokenRequiresSecret(t *testing.T) {
	_, err := IssueToken(" ", testIssuer, "cli", time.Minute, time.Now())
	require.Error(t, err)
}

func TestRateLimit(t *testing.T) {
	e := newEnv(t, ServerConfig{RateLimit: RateLimit{PerSecond: 1, Burst: 1}})
	h := e.server.Handler()

	rec, _ := doRPC(t, h, "escrow_quote", quoteParams{Amount: "100"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, resp := doRPC(t, h, "escrow_quote", quoteParams{Amount: "100"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, codeRateLimited, resp.Error.Code)

	// Health checks bypass the limiter.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterForwardedFor(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{PerSecond: 1, Burst: 1}, true)
	req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	require.Equal(t, "203.0.113.9", limiter.clientSource(req))

	untrusted := NewRateLimiter(RateLimit{PerSecond: 1, Burst: 1}, false)
	require.Equal(t, "192.0.2.1", untrusted.clientSource(req))
}

func TestLedgerErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		code   int
		status int
	}{
		{escrow.ErrEscrowNotFound, codeNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: id 3", escrow.ErrReservationNotFound), codeNotFound, http.StatusNotFound},
		{escrow.ErrUnauthorizedGuest, codeForbidden, http.StatusForbidden},
		{escrow.ErrUnauthorizedAuthority, codeForbidden, http.StatusForbidden},
		{escrow.ErrInvalidMint, codeValidation, http.StatusUnprocessableEntity},
		{escrow.ErrInvalidTreasuryMint, codeValidation, http.StatusUnprocessableEntity},
		{escrow.ErrEscrowNotFunded, codeConflict, http.StatusConflict},
		{escrow.ErrReleaseNotYetAllowed, codeConflict, http.StatusConflict},
		{escrow.ErrArithmetic, codeInternal, http.StatusUnprocessableEntity},
		{common.ErrRecordNotFound, codeNotFound, http.StatusNotFound},
		{lodging.ErrListingInactive, codeConflict, http.StatusConflict},
		{token.ErrInsufficientFunds, codeConflict, http.StatusConflict},
		{core.ErrNonceMismatch, codeConflict, http.StatusConflict},
		{common.ErrModulePaused, codeForbidden, http.StatusForbidden},
		{types.ErrInvalidPayload, codeValidation, http.StatusUnprocessableEntity},
		{errors.New("boom"), codeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got := ledgerError(tc.err)
		if got.Code != tc.code || got.status != tc.status {
			t.Fatalf("%v: got code %d status %d, want %d %d", tc.err, got.Code, got.status, tc.code, tc.status)
		}
	}
	require.Nil(t, ledgerError(nil))

	data, ok := ledgerError(escrow.ErrEscrowNotFunded).Data.(map[string]string)
	require.True(t, ok)
	require.Equal(t, "EscrowNotFunded", data["code"])
}

func TestEscrowLifecycleOverClient(t *testing.T) {
	e := newEnv(t, ServerConfig{JWT: JWTConfig{Secret: testSecret, Issuer: testIssuer}})
	srv := httptest.NewServer(e.server.Handler())
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, WithBearer(func() (string, error) {
		return IssueToken(testSecret, testIssuer, "test", time.Minute, time.Now())
	}))
	ctx := context.Background()

	var asset PaymentAssetJSON
	require.NoError(t, client.Call(ctx, "token_getPaymentAsset", nil, &asset))
	require.Equal(t, formatAddress(e.mint), asset.Mint)
	require.Equal(t, formatAddress(e.treasury), asset.Treasury)

	host, guest := newSigner(t), newSigner(t)
	send := func(s *signer, txType types.TxType, payload interface{}) *ReceiptJSON {
		t.Helper()
		receipt, err := client.SendTransaction(ctx, s.tx(t, txType, payload))
		require.NoError(t, err, "%s", txType)
		return receipt
	}
	send(host, types.TxTypeInitializeHost, types.InitializeHostPayload{Name: "Ada", Email: "ada@example.com"})
	send(host, types.TxTypeInitializeListing, types.InitializeListingPayload{
		Title: "Loft", Category: "apartment", RoomCount: 1, BathroomCount: 1, GuestCount: 2, CountryCode: "NL", Price: 1_000_000,
	})
	send(guest, types.TxTypeInitializeGuest, types.InitializeGuestPayload{Name: "Bo"})
	send(e.authority, types.TxTypeMintTo, types.MintToPayload{Mint: e.mint, Owner: guest.addr, Amount: 5_000_000})

	listing, _, err := lodging.ListingAddress(host.addr, 0)
	require.NoError(t, err)
	send(guest, types.TxTypeInitializeReservation, types.InitializeReservationPayload{
		Listing: listing, ReservationID: 1, StartDate: 1_700_100_000, EndDate: 1_700_186_400,
		GuestCount: 1, TotalNights: 1, PricePerNight: 1_000_000, TotalPrice: 1_000_000,
	})
	reservation, _, err := lodging.ReservationAddress(guest.addr, 1)
	require.NoError(t, err)

	releaseAt := uint64(e.clock.Now().Add(time.Hour).Unix())
	receipt := send(guest, types.TxTypeFundEscrow, types.FundEscrowPayload{
		Reservation: reservation, EscrowID: 1, Amount: 1_000_000, ReleaseDate: releaseAt, Mint: e.mint, Treasury: e.treasury,
	})
	require.Equal(t, "fund_escrow", receipt.Type)
	require.True(t, strings.HasPrefix(receipt.TxHash, "0x"))

	var escrowAddr string
	require.NoError(t, client.Call(ctx, "escrow_address", escrowAddressParams{Reservation: formatAddress(reservation), EscrowID: 1}, &escrowAddr))
	var esc EscrowJSON
	require.NoError(t, client.Call(ctx, "escrow_get", addressParams{Address: escrowAddr}, &esc))
	require.Equal(t, "funded", esc.Status)
	require.Equal(t, "50000", esc.PlatformFee)

	events, next, err := client.ListEvents(ctx, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, escrow.EventTypeEscrowFunded, events[0].Type)
	require.Equal(t, events[0].Seq, next)

	rawEscrow, err := parseAddress(escrowAddr)
	require.NoError(t, err)
	release := types.ReleaseEscrowPayload{Escrow: rawEscrow, Mint: e.mint, Treasury: e.treasury}
	_, err = client.SendTransaction(ctx, e.authority.tx(t, types.TxTypeReleaseEscrow, release))
	require.True(t, IsCode(err, CodeConflict), "%v", err)
	require.Equal(t, "ReleaseNotYetAllowed", ErrorCode(err))
	e.authority.nonce--

	e.clock.Advance(2 * time.Hour)
	send(e.authority, types.TxTypeReleaseEscrow, release)

	_, err = client.SendTransaction(ctx, e.authority.tx(t, types.TxTypeReleaseEscrow, release))
	require.Equal(t, "EscrowNotFunded", ErrorCode(err))

	events, _, err = client.ListEvents(ctx, escrow.EventTypeEscrowReleased, next, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	nonce, err := client.Nonce(ctx, formatAddress(guest.addr))
	require.NoError(t, err)
	require.Equal(t, guest.nonce, nonce)
}
