package grpcslot

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/w3slot/address"
	"xdao.co/w3slot/codec"
	"xdao.co/w3slot/slot"
	"xdao.co/w3slot/wire"
)

// Client submits envelopes to a SlotProgram daemon. It implements
// upload.Submitter.
//
// Errors are always *slot.Error: application-side rejections keep their
// kind and rule id, everything else is KindTransportFailure.
type Client struct {
	cc     *grpc.ClientConn
	client SlotProgramClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
		dialOpts = append(dialOpts, grpc.WithBlock())
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, slot.WrapError(slot.KindTransportFailure, "RPC-003", "dialing "+target, err)
	}
	return NewClient(cc), nil
}

// NewClient wraps an existing connection. Close closes cc.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc, client: NewSlotProgramClient(cc)}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// Submit sends env and returns the daemon's confirmation id.
func (c *Client) Submit(ctx context.Context, env wire.Envelope) (string, error) {
	b, err := env.Encode()
	if err != nil {
		return "", slot.WrapError(slot.KindMalformed, "RPC-004", "encoding envelope", err)
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Submit(ctx, wrapperspb.Bytes(b))
	if err != nil {
		return "", fromStatus(err)
	}
	return reply.GetValue(), nil
}

func (c *Client) MinimumBalance(ctx context.Context, size int) (uint64, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	reply, err := c.client.MinimumBalance(ctx, wrapperspb.UInt64(uint64(size)))
	if err != nil {
		return 0, fromStatus(err)
	}
	return reply.GetValue(), nil
}

func (c *Client) Balance(ctx context.Context, payer address.Address) (uint64, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	reply, err := c.client.Balance(ctx, wrapperspb.String(payer.String()))
	if err != nil {
		return 0, fromStatus(err)
	}
	return reply.GetValue(), nil
}

func (c *Client) Airdrop(ctx context.Context, payer address.Address, amount uint64) (uint64, error) {
	b, err := codec.Marshal(wire.AirdropRequest{Payer: payer, Amount: amount})
	if err != nil {
		return 0, err
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	reply, err := c.client.Airdrop(ctx, wrapperspb.Bytes(b))
	if err != nil {
		return 0, fromStatus(err)
	}
	return reply.GetValue(), nil
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}
