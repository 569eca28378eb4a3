package grpcslot

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/w3slot/address"
	"xdao.co/w3slot/codec"
	"xdao.co/w3slot/wire"
)

// Program is the application side the server exposes. *engine.Engine
// implements it.
type Program interface {
	SubmitEncoded(ctx context.Context, encoded []byte) (string, error)
	MinimumBalance(size int) uint64
	Balance(ctx context.Context, payer address.Address) (uint64, error)
	Airdrop(ctx context.Context, payer address.Address, amount uint64) (uint64, error)
}

// Server exposes a Program over the SlotProgram gRPC service.
type Server struct {
	UnimplementedSlotProgramServer
	Program Program
}

func (s *Server) Submit(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	if s == nil || s.Program == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing program")
	}
	id, err := s.Program.SubmitEncoded(ctx, in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.String(id), nil
}

func (s *Server) MinimumBalance(ctx context.Context, in *wrapperspb.UInt64Value) (*wrapperspb.UInt64Value, error) {
	if s == nil || s.Program == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing program")
	}
	if in.GetValue() > math.MaxInt32 {
		return nil, status.Error(codes.InvalidArgument, "size out of range")
	}
	return wrapperspb.UInt64(s.Program.MinimumBalance(int(in.GetValue()))), nil
}

func (s *Server) Balance(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error) {
	if s == nil || s.Program == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing program")
	}
	payer, err := address.Parse(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	bal, err := s.Program.Balance(ctx, payer)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.UInt64(bal), nil
}

func (s *Server) Airdrop(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.UInt64Value, error) {
	if s == nil || s.Program == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing program")
	}
	var req wire.AirdropRequest
	if err := codec.Unmarshal(in.GetValue(), &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	bal, err := s.Program.Airdrop(ctx, req.Payer, req.Amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.UInt64(bal), nil
}

// UnaryLogger logs every RPC with its method, duration and status code.
func UnaryLogger(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		ev := logger.Debug()
		if err != nil {
			ev = logger.Warn().Err(err)
		}
		ev.Str("method", info.FullMethod).
			Dur("took", time.Since(start)).
			Str("code", status.Code(err).String()).
			Msg("rpc")
		return resp, err
	}
}
