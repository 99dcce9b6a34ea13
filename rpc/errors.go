package rpc

import (
	"errors"
	"net/http"

	"staychain/core"
	"staychain/core/types"
	"staychain/native/common"
	"staychain/native/escrow"
	"staychain/native/fees"
	"staychain/native/lodging"
	"staychain/native/token"
)

const (
	codeInvalidParams = -32021
	codeNotFound      = -32022
	codeForbidden     = -32023
	codeConflict      = -32024
	codeInternal      = -32025
	codeValidation    = -32026
)

func invalidParams(detail string) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: detail, status: http.StatusBadRequest}
}

// ledgerError classifies err into a JSON-RPC error. Typed escrow errors are
// mapped by kind; errors from the other modules by sentinel.
func ledgerError(err error) *RPCError {
	if err == nil {
		return nil
	}
	out := &RPCError{Code: codeInternal, Message: "internal_error", Data: err.Error(), status: http.StatusInternalServerError}
	if code := escrow.CodeOf(err); code != "" {
		out.Data = map[string]string{"code": code, "detail": err.Error()}
	}

	if kind, ok := escrow.KindOf(err); ok {
		switch {
		case errors.Is(err, escrow.ErrEscrowNotFound), errors.Is(err, escrow.ErrReservationNotFound):
			out.Code, out.Message, out.status = codeNotFound, "not_found", http.StatusNotFound
		case kind == escrow.KindAuthorization:
			out.Code, out.Message, out.status = codeForbidden, "forbidden", http.StatusForbidden
		case kind == escrow.KindValidation:
			out.Code, out.Message, out.status = codeValidation, "validation_failed", http.StatusUnprocessableEntity
		case kind == escrow.KindState, kind == escrow.KindTiming:
			out.Code, out.Message, out.status = codeConflict, "conflict", http.StatusConflict
		case kind == escrow.KindArithmetic:
			out.Code, out.Message, out.status = codeInternal, "arithmetic_error", http.StatusUnprocessableEntity
		}
		return out
	}

	switch {
	case errors.Is(err, common.ErrRecordNotFound),
		errors.Is(err, lodging.ErrHostNotFound),
		errors.Is(err, lodging.ErrGuestNotFound),
		errors.Is(err, lodging.ErrListingNotFound),
		errors.Is(err, lodging.ErrReservationNotFound),
		errors.Is(err, token.ErrMintNotFound),
		errors.Is(err, token.ErrAccountNotFound):
		out.Code, out.Message, out.status = codeNotFound, "not_found", http.StatusNotFound
	case errors.Is(err, types.ErrMissingSignature),
		errors.Is(err, token.ErrMintAuthority),
		errors.Is(err, token.ErrOwnerMismatch),
		errors.Is(err, common.ErrModulePaused):
		out.Code, out.Message, out.status = codeForbidden, "forbidden", http.StatusForbidden
	case errors.Is(err, core.ErrNonceMismatch),
		errors.Is(err, common.ErrRecordExists),
		errors.Is(err, lodging.ErrHostExists),
		errors.Is(err, lodging.ErrGuestExists),
		errors.Is(err, lodging.ErrListingExists),
		errors.Is(err, lodging.ErrReservationExists),
		errors.Is(err, lodging.ErrListingInactive),
		errors.Is(err, token.ErrMintExists),
		errors.Is(err, token.ErrAccountExists),
		errors.Is(err, token.ErrInsufficientFunds):
		out.Code, out.Message, out.status = codeConflict, "conflict", http.StatusConflict
	case errors.Is(err, core.ErrInvalidChainID),
		errors.Is(err, core.ErrUnsupportedTxType),
		errors.Is(err, types.ErrInvalidPayload),
		errors.Is(err, common.ErrFieldTooLong),
		errors.Is(err, common.ErrInvalidUTF8),
		errors.Is(err, lodging.ErrInvalidDates),
		errors.Is(err, lodging.ErrTooManyGuests),
		errors.Is(err, token.ErrMintMismatch),
		errors.Is(err, token.ErrDecimalsMismatch),
		errors.Is(err, token.ErrInvalidSymbol),
		errors.Is(err, token.ErrInvalidTransferFee),
		errors.Is(err, token.ErrSelfTransfer):
		out.Code, out.Message, out.status = codeValidation, "validation_failed", http.StatusUnprocessableEntity
	case errors.Is(err, fees.ErrArithmeticOverflow),
		errors.Is(err, fees.ErrArithmeticUnderflow),
		errors.Is(err, token.ErrSupplyOverflow),
		errors.Is(err, token.ErrBalanceOverflow):
		out.Message, out.status = "arithmetic_error", http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrEventLogUnavailable), errors.Is(err, core.ErrMintNotBootstrapped):
		out.Message, out.status = "unavailable", http.StatusServiceUnavailable
	}
	return out
}
