package handlers

import (
	"errors"
	"fmt"
	"net/http"

	e "github.com/gartstein/staffing/internal/staffing/errors"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain is the domain reported in ErrorInfo details.
const ErrorDomain = "staffing"

// toStatus maps a service error onto a gRPC status. Rule errors carry their
// reason and details as an ErrorInfo.
func toStatus(err error) *status.Status {
	var code codes.Code
	switch {
	case errors.Is(err, e.ErrUnauthenticated):
		code = codes.Unauthenticated
	case errors.Is(err, e.ErrForbidden):
		code = codes.PermissionDenied
	case errors.Is(err, e.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, e.ErrInvalidInput):
		code = codes.InvalidArgument
	case errors.Is(err, e.ErrBusinessRule):
		code = codes.FailedPrecondition
	case errors.Is(err, e.ErrConflict):
		return status.New(codes.Aborted, "the record was changed by a concurrent request, retry")
	default:
		return status.New(codes.Internal, "internal error")
	}

	rule, ok := e.AsRule(err)
	if !ok {
		return status.New(code, err.Error())
	}
	st := status.New(code, rule.Message)
	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   rule.Reason,
		Domain:   ErrorDomain,
		Metadata: rule.Details,
	})
	if derr != nil {
		return st
	}
	return detailed
}

// writeError renders err through the gateway error handler. Internal errors
// are logged here since the response hides them.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	st := toStatus(err)
	if st.Code() == codes.Internal {
		h.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	_, outbound := runtime.MarshalerForRequest(h.mux, r)
	runtime.HTTPError(r.Context(), h.mux, outbound, w, r, st.Err())
}

func (h *Handler) authError(w http.ResponseWriter, r *http.Request, err error) {
	h.writeError(w, r, fmt.Errorf("%w: %v", e.ErrUnauthenticated, err))
}

func invalidField(field, format string) error {
	return e.Invalid(e.ReasonInvalidField, fmt.Sprintf("%s must be %s", field, format))
}
