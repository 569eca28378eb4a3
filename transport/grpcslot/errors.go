package grpcslot

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"xdao.co/w3slot/slot"
)

const errorDomain = "w3slot.xdao.co"

var kindCodes = map[slot.Kind]codes.Code{
	slot.KindIntegrityMismatch:   codes.DataLoss,
	slot.KindInsufficientFunding: codes.FailedPrecondition,
	slot.KindAlreadyClaimed:      codes.AlreadyExists,
	slot.KindDerivationExhausted: codes.ResourceExhausted,
	slot.KindMalformed:           codes.InvalidArgument,
	slot.KindUnauthorized:        codes.PermissionDenied,
	slot.KindInternal:            codes.Internal,
}

// toStatus maps an application-side error to a gRPC status. The kind and
// rule id travel in an ErrorInfo detail so the client can rebuild the
// structured error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	var se *slot.Error
	if !errors.As(err, &se) {
		return status.Error(codes.Internal, err.Error())
	}
	code, ok := kindCodes[se.Kind]
	if !ok {
		code = codes.Unknown
	}
	st := status.New(code, err.Error())
	withInfo, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   se.RuleID,
		Domain:   errorDomain,
		Metadata: map[string]string{"kind": string(se.Kind)},
	})
	if derr != nil {
		return st.Err()
	}
	return withInfo.Err()
}

// fromStatus rebuilds a *slot.Error from an RPC failure. Only statuses
// carrying the w3slot ErrorInfo came from the application side; any other
// status, whatever its code, was produced by the RPC layer and is a
// KindTransportFailure.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return slot.WrapError(slot.KindTransportFailure, "RPC-001", "rpc failed", err)
	}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != errorDomain {
			continue
		}
		return slot.NewError(slot.Kind(info.GetMetadata()["kind"]), info.GetReason(), st.Message())
	}
	return slot.WrapError(slot.KindTransportFailure, "RPC-002", "rpc failed: "+st.Code().String(), err)
}
