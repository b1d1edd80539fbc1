// Package wagererr defines the rejection taxonomy shared by every wager operation.
//
// All codes are terminal for the operation that produced them: nothing was
// committed and the caller has to resubmit a corrected operation.
package wagererr

import (
	"errors"
	"net/http"
)

// Code is a machine-readable rejection code.
type Code string

const (
	CodeInvalidAddress        Code = "INVALID_ADDRESS"
	CodeInvalidOpponent       Code = "INVALID_OPPONENT"
	CodeInvalidBet            Code = "INVALID_BET"
	CodeInvalidMatchID        Code = "INVALID_MATCH_ID"
	CodeUnknownMatch          Code = "UNKNOWN_MATCH"
	CodeNotMatchCreator       Code = "NOT_MATCH_CREATOR"
	CodeNotAwaitingOpponent   Code = "NOT_AWAITING_OPPONENT"
	CodeStillAwaitingOpponent Code = "STILL_AWAITING_OPPONENT"
	CodeMatchAlreadyFinished  Code = "MATCH_ALREADY_FINISHED"
	CodeNotYourTurn           Code = "NOT_YOUR_TURN"
	CodeInvalidMoveEncoding   Code = "INVALID_MOVE_ENCODING"
	CodeInvalidBoardEncoding  Code = "INVALID_BOARD_ENCODING"
	CodeIllegalMove           Code = "ILLEGAL_MOVE"
	CodeUnauthorized          Code = "UNAUTHORIZED"

	// Lifecycle of the deployed instance itself.
	CodeNotInitialized     Code = "NOT_INITIALIZED"
	CodeAlreadyInitialized Code = "ALREADY_INITIALIZED"
	CodeInvalidMigration   Code = "INVALID_MIGRATION"

	// Raised by the bank while attaching funds.
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
)

// BetReason refines CodeInvalidBet.
type BetReason string

const (
	MissingBet    BetReason = "MISSING_BET"
	TooManyCoins  BetReason = "TOO_MANY_COINS"
	WrongDenom    BetReason = "WRONG_DENOM"
	AmountTooLow  BetReason = "AMOUNT_TOO_LOW"
	InvalidAmount BetReason = "INVALID_AMOUNT"
)

// HTTPStatus maps a code to the status returned at the HTTP boundary.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidAddress,
		CodeInvalidOpponent,
		CodeInvalidBet,
		CodeInvalidMatchID,
		CodeInvalidMoveEncoding,
		CodeIllegalMove,
		CodeInvalidMigration,
		CodeInsufficientFunds:
		return http.StatusBadRequest
	case CodeUnknownMatch:
		return http.StatusNotFound
	case CodeNotMatchCreator, CodeUnauthorized:
		return http.StatusForbidden
	case CodeNotAwaitingOpponent,
		CodeStillAwaitingOpponent,
		CodeMatchAlreadyFinished,
		CodeNotYourTurn,
		CodeNotInitialized,
		CodeAlreadyInitialized:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a rejected operation.
type Error struct {
	Code   Code
	Reason BetReason
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return "wager: " + string(e.Code) + ": " + string(e.Reason)
	}
	return "wager: " + string(e.Code)
}

// Is matches on Code, and on Reason when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

var (
	ErrInvalidAddress        = &Error{Code: CodeInvalidAddress}
	ErrInvalidOpponent       = &Error{Code: CodeInvalidOpponent}
	ErrInvalidBet            = &Error{Code: CodeInvalidBet}
	ErrInvalidMatchID        = &Error{Code: CodeInvalidMatchID}
	ErrUnknownMatch          = &Error{Code: CodeUnknownMatch}
	ErrNotMatchCreator       = &Error{Code: CodeNotMatchCreator}
	ErrNotAwaitingOpponent   = &Error{Code: CodeNotAwaitingOpponent}
	ErrStillAwaitingOpponent = &Error{Code: CodeStillAwaitingOpponent}
	ErrMatchAlreadyFinished  = &Error{Code: CodeMatchAlreadyFinished}
	ErrNotYourTurn           = &Error{Code: CodeNotYourTurn}
	ErrInvalidMoveEncoding   = &Error{Code: CodeInvalidMoveEncoding}
	ErrInvalidBoardEncoding  = &Error{Code: CodeInvalidBoardEncoding}
	ErrIllegalMove           = &Error{Code: CodeIllegalMove}
	ErrUnauthorized          = &Error{Code: CodeUnauthorized}
	ErrNotInitialized        = &Error{Code: CodeNotInitialized}
	ErrAlreadyInitialized    = &Error{Code: CodeAlreadyInitialized}
	ErrInvalidMigration      = &Error{Code: CodeInvalidMigration}
	ErrInsufficientFunds     = &Error{Code: CodeInsufficientFunds}
)

// InvalidBet builds an InvalidBet rejection with the given reason.
func InvalidBet(reason BetReason) error {
	return &Error{Code: CodeInvalidBet, Reason: reason}
}

// As extracts the domain error from err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
