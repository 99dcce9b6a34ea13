package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"staychain/core/types"
	"staychain/storage/eventlog"
)

type addressParams struct {
	Address string `json:"address"`
}

type escrowAddressParams struct {
	Reservation string `json:"reservation"`
	EscrowID    uint64 `json:"escrowId"`
}

type quoteParams struct {
	Amount string `json:"amount"`
}

type listEventsParams struct {
	TypePrefix string `json:"typePrefix,omitempty"`
	AfterSeq   int64  `json:"afterSeq,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type listEventsResult struct {
	Events  []eventlog.Record `json:"events"`
	NextSeq int64             `json:"nextSeq"`
}

// decodeSingle unmarshals the only positional parameter into out.
func decodeSingle(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return invalidParams("exactly one parameter object expected")
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return invalidParams(err.Error())
	}
	return nil
}

func (s *Server) addressParam(req *RPCRequest) ([20]byte, *RPCError) {
	var params addressParams
	if rpcErr := decodeSingle(req, &params); rpcErr != nil {
		return [20]byte{}, rpcErr
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		return addr, invalidParams(err.Error())
	}
	return addr, nil
}

func (s *Server) handleSendTransaction(ctx context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var tx types.Transaction
	if rpcErr := decodeSingle(req, &tx); rpcErr != nil {
		return nil, rpcErr
	}
	if tx.ChainID != s.node.ChainID() {
		return nil, invalidParams(fmt.Sprintf("chainId %d does not match node chain %d", tx.ChainID, s.node.ChainID()))
	}
	receipt, err := s.node.ApplyTransaction(ctx, &tx)
	if err != nil {
		return nil, ledgerError(err)
	}
	return formatReceipt(receipt), nil
}

func (s *Server) handleGetNonce(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	addr, rpcErr := s.addressParam(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	nonce, err := s.node.Nonce(addr)
	if err != nil {
		return nil, ledgerError(err)
	}
	return nonce, nil
}

func (s *Server) handleEscrowGet(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	addr, rpcErr := s.addressParam(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	esc, err := s.node.EscrowGet(addr)
	if err != nil {
		return nil, ledgerError(err)
	}
	return formatEscrow(esc), nil
}

func (s *Server) handleEscrowAddress(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params escrowAddressParams
	if rpcErr := decodeSingle(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	reservation, err := parseAddress(params.Reservation)
	if err != nil {
		return nil, invalidParams(err.Error())
	}
	addr, err := s.node.EscrowAddress(reservation, params.EscrowID)
	if err != nil {
		return nil, ledgerError(err)
	}
	return formatAddress(addr), nil
}

func (s *Server) handleEscrowQuote(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params quoteParams
	if rpcErr := decodeSingle(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, invalidParams(err.Error())
	}
	q, err := s.node.Quote(amount)
	if err != nil {
		return nil, ledgerError(err)
	}
	return QuoteJSON{
		Amount:         formatUint(q.Amount),
		PlatformFee:    formatUint(q.PlatformFee),
		HostNet:        formatUint(q.HostNet),
		TransferAmount: formatUint(q.TransferAmount),
	}, nil
}

func (s *Server) handleEscrowListEvents(ctx context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params listEventsParams
	if len(req.Params) > 0 {
		if rpcErr := decodeSingle(req, &params); rpcErr != nil {
			return nil, rpcErr
		}
	}
	if params.AfterSeq < 0 || params.Limit < 0 {
		return nil, invalidParams("afterSeq and limit must not be negative")
	}
	prefix := params.TypePrefix
	if prefix == "" {
		prefix = "escrow."
	}
	records, err := s.node.ListEvents(ctx, eventlog.Filter{TypePrefix: prefix, AfterSeq: params.AfterSeq, Limit: params.Limit})
	if err != nil {
		return nil, ledgerError(err)
	}
	next := params.AfterSeq
	if len(records) > 0 {
		next = records[len(records)-1].Seq
	}
	if records == nil {
		records = []eventlog.Record{}
	}
	return listEventsResult{Events: records, NextSeq: next}, nil
}

func (s *Server) handleLodgingGetHost(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	addr, rpcErr := s.addressParam(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	host, err := s.node.HostGet(addr)
	if err != nil {
		return nil, ledgerError(err)
	}
	return formatHost(host), nil
}

func (s *Server) handleLodgingGetGuest(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	addr, rpcErr := s.addressParam(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	guest, err := s.node.GuestGet(addr)
	if err != nil {
		return nil, ledgerError(err)
	}
	return formatGuest(guest), nil
}

func (s *Server) handleLodgingGetListing(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	addr, rpcErr := s.addressParam(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	listing, err := s.node.ListingGet(addr)
	if err != nil {
		return nil, ledgerError(err)
	}
	return formatListing(listing), nil
}

func (s *Server) handleLodgingGetReservation(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	addr, rpcErr := s.addressParam(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	res, err := s.node.ReservationGet(addr)
	if err != nil {
		return nil, ledgerError(err)
	}
	return formatReservation(res), nil
}

func (s *Server) handleTokenGetAccount(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	addr, rpcErr := s.addressParam(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	acct, err := s.node.TokenAccountGet(addr)
	if err != nil {
		return nil, ledgerError(err)
	}
	return formatTokenAccount(acct), nil
}

func (s *Server) handleTokenGetMint(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	addr, rpcErr := s.addressParam(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	mint, err := s.node.MintGet(addr)
	if err != nil {
		return nil, ledgerError(err)
	}
	return formatMint(mint), nil
}

func (s *Server) handleTokenGetPaymentAsset(_ context.Context, _ *RPCRequest) (interface{}, *RPCError) {
	mint, treasury, err := s.node.PaymentAsset()
	if err != nil {
		return nil, ledgerError(err)
	}
	return PaymentAssetJSON{Mint: formatAddress(mint), Treasury: formatAddress(treasury)}, nil
}
