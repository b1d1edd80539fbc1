package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/park285/cheese-wager/internal/boardimg"
	"github.com/park285/cheese-wager/internal/chain"
	"github.com/park285/cheese-wager/internal/ledger"
	"github.com/park285/cheese-wager/internal/msgcat"
	"github.com/park285/cheese-wager/internal/obslog"
	"github.com/park285/cheese-wager/internal/wagererr"
	"github.com/park285/cheese-wager/pkg/wagerdto"
)

const (
	codeBadRequest  = "BAD_REQUEST"
	codeConflict    = "CONFLICT"
	codeNoArchive   = "NO_ARCHIVE"
	codeRateLimited = "RATE_LIMITED"
	codeInternal    = "INTERNAL"
)

// badRequest is a malformed request rejected before reaching the host.
type badRequest struct{ reason string }

func (e *badRequest) Error() string { return "bad request: " + e.reason }

func errBadRequest(reason string) error { return &badRequest{reason: reason} }

// toDomainError maps err onto the wire error and its HTTP status.
func toDomainError(msgs *msgcat.Catalog, err error) (int, wagerdto.DomainError) {
	if errors.Is(err, boardimg.ErrBadPosition) {
		err = wagererr.ErrInvalidBoardEncoding
	}

	if e, ok := wagererr.As(err); ok {
		data := map[string]string{"Code": string(e.Code), "Reason": string(e.Reason)}
		fallback := string(e.Code)
		msg := msgs.RenderOr("errors."+string(e.Code), data, fallback)
		if e.Reason != "" {
			msg = msgs.RenderOr("bet."+string(e.Reason), data, msg)
		}
		return e.Code.HTTPStatus(), wagerdto.DomainError{
			Code:    string(e.Code),
			Reason:  string(e.Reason),
			Message: msg,
		}
	}

	var br *badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, wagerdto.DomainError{
			Code:    codeBadRequest,
			Reason:  br.reason,
			Message: msgs.RenderOr("api.bad_request", map[string]string{"Reason": br.reason}, br.reason),
		}
	case errors.Is(err, ledger.ErrConflict):
		return http.StatusConflict, wagerdto.DomainError{
			Code:      codeConflict,
			Message:   msgs.RenderOr("api.conflict", nil, codeConflict),
			Retryable: true,
		}
	case errors.Is(err, chain.ErrNoArchive):
		return http.StatusNotFound, wagerdto.DomainError{
			Code:    codeNoArchive,
			Message: msgs.RenderOr("api.no_archive", nil, codeNoArchive),
		}
	}
	return http.StatusInternalServerError, wagerdto.DomainError{
		Code:    codeInternal,
		Message: msgs.RenderOr("api.internal", nil, codeInternal),
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, body := toDomainError(h.msgs, err)
	if status >= http.StatusInternalServerError {
		obslog.L().Error("http_internal_error",
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, body)
}
