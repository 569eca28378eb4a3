// Package engine is the application side of the slot protocol.
//
// An Engine verifies each envelope, decodes its operation, re-derives every
// target address from the operation's own fields, and applies the
// operation inside a single ledger commit. Declared addresses are only
// checked against the derivation, never trusted.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"xdao.co/w3slot/address"
	"xdao.co/w3slot/chunked"
	"xdao.co/w3slot/record"
	"xdao.co/w3slot/slot"
	"xdao.co/w3slot/storage"
	"xdao.co/w3slot/wire"
)

// Engine applies signed operations for one program.
type Engine struct {
	program address.Address
	ledger  storage.Ledger
	deriver address.Deriver
	slots   *slot.Store
	chunks  *chunked.Store
	rent    slot.Rent
	now     func() time.Time
	logger  zerolog.Logger

	airdrop      bool
	airdropLimit uint64
}

// Option configures an Engine.
type Option func(*Engine)

func WithRent(rent slot.Rent) Option {
	return func(e *Engine) { e.rent = rent }
}

// WithNow sets the clock used for name record timestamps.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithAirdrop enables development funding of up to limit per request.
func WithAirdrop(limit uint64) Option {
	return func(e *Engine) {
		e.airdrop = true
		e.airdropLimit = limit
	}
}

func New(program address.Address, ledger storage.Ledger, opts ...Option) *Engine {
	e := &Engine{
		program: program,
		ledger:  ledger,
		deriver: address.NewDeriver(program),
		rent:    slot.DefaultRent,
		now:     time.Now,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.slots = slot.NewStore(program, e.rent)
	e.chunks = &chunked.Store{Slots: e.slots, Deriver: e.deriver}
	return e
}

func (e *Engine) Program() address.Address { return e.program }

func (e *Engine) Deriver() address.Deriver { return e.deriver }

// Receipt describes an applied operation.
type Receipt struct {
	Confirmation string
	Kind         wire.Kind
	Payer        address.Address
	Slots        []slot.Outcome
}

// Charged is the total debited from the payer, net of refunds.
func (r Receipt) Charged() (charged, refunded uint64) {
	for _, o := range r.Slots {
		charged += o.Charged
		refunded += o.Refunded
	}
	return charged, refunded
}

// Submit applies env and returns its confirmation id.
func (e *Engine) Submit(ctx context.Context, env wire.Envelope) (string, error) {
	r, err := e.Apply(ctx, env)
	if err != nil {
		return "", err
	}
	return r.Confirmation, nil
}

// SubmitEncoded decodes and applies an encoded envelope. The confirmation
// id is computed over encoded exactly as received.
func (e *Engine) SubmitEncoded(ctx context.Context, encoded []byte) (string, error) {
	env, err := wire.DecodeEnvelope(encoded)
	if err != nil {
		return "", slot.WrapError(slot.KindMalformed, "ENG-DEC-001", "decoding envelope", err)
	}
	r, err := e.apply(ctx, env, wire.Confirmation(encoded))
	if err != nil {
		return "", err
	}
	return r.Confirmation, nil
}

// Apply verifies and applies env.
func (e *Engine) Apply(ctx context.Context, env wire.Envelope) (Receipt, error) {
	encoded, err := env.Encode()
	if err != nil {
		return Receipt{}, slot.WrapError(slot.KindMalformed, "ENG-DEC-002", "encoding envelope", err)
	}
	return e.apply(ctx, env, wire.Confirmation(encoded))
}

func (e *Engine) apply(ctx context.Context, env wire.Envelope, confirmation string) (Receipt, error) {
	log := e.logger.With().Str("kind", string(env.Kind)).Stringer("payer", env.Payer).Logger()

	if err := env.Verify(); err != nil {
		log.Warn().Err(err).Msg("rejected envelope")
		if errors.Is(err, wire.ErrMalformed) {
			return Receipt{}, slot.WrapError(slot.KindMalformed, "ENG-AUTH-001", "envelope key material", err)
		}
		return Receipt{}, slot.WrapError(slot.KindUnauthorized, "ENG-AUTH-002", "envelope signature", err)
	}
	msg, err := env.Message()
	if err != nil {
		log.Warn().Err(err).Msg("rejected envelope")
		return Receipt{}, slot.WrapError(slot.KindMalformed, "ENG-DEC-003", "decoding operation", err)
	}

	receipt := Receipt{Confirmation: confirmation, Kind: env.Kind, Payer: env.Payer}
	err = e.ledger.Update(ctx, func(tx storage.Tx) error {
		outcomes, err := e.dispatch(tx, env.Payer, msg)
		if err != nil {
			return err
		}
		receipt.Slots = outcomes
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("rule", slot.RuleID(err)).Msg("operation rejected")
		return Receipt{}, err
	}

	charged, refunded := receipt.Charged()
	log.Info().
		Str("confirmation", confirmation).
		Int("slots", len(receipt.Slots)).
		Uint64("charged", charged).
		Uint64("refunded", refunded).
		Msg("operation applied")
	return receipt, nil
}

func (e *Engine) dispatch(tx storage.Tx, payer address.Address, msg wire.Message) ([]slot.Outcome, error) {
	switch m := msg.(type) {
	case wire.PutContent:
		return e.putContent(tx, payer, m)
	case wire.PutChunk:
		return e.putChunk(tx, payer, m)
	case wire.ClaimName:
		return e.claimName(tx, payer, m)
	default:
		return nil, slot.NewError(slot.KindMalformed, "ENG-DEC-004", fmt.Sprintf("unsupported operation %T", msg))
	}
}

func (e *Engine) putContent(tx storage.Tx, payer address.Address, m wire.PutContent) ([]slot.Outcome, error) {
	if m.Path == "" {
		return nil, slot.NewError(slot.KindMalformed, "ENG-OP-001", "path is required")
	}
	d, err := e.deriver.Content(m.Path)
	if err != nil {
		return nil, chunked.DerivationError(err)
	}
	out, err := e.slots.Write(tx, payer, slot.Target{Declared: m.Target, Derived: d}, m.Body)
	if err != nil {
		return nil, err
	}
	// A path that used to be chunked now lives in its content slot.
	if _, err := e.chunks.ResetMeta(tx, payer, m.Path); err != nil {
		return nil, err
	}
	return []slot.Outcome{out}, nil
}

func (e *Engine) putChunk(tx storage.Tx, payer address.Address, m wire.PutChunk) ([]slot.Outcome, error) {
	if m.Path == "" {
		return nil, slot.NewError(slot.KindMalformed, "ENG-OP-001", "path is required")
	}
	res, err := e.chunks.WriteChunk(tx, payer, chunked.Op{
		Path:       m.Path,
		ChunkNo:    m.ChunkNo,
		ChunkCount: m.ChunkCount,
		Body:       m.Body,
		Target:     m.Target,
		Meta:       m.Meta,
	})
	if err != nil {
		return nil, err
	}
	out := []slot.Outcome{res.Chunk}
	if res.Meta != nil {
		out = append(out, *res.Meta)
	}
	return out, nil
}

func (e *Engine) claimName(tx storage.Tx, payer address.Address, m wire.ClaimName) ([]slot.Outcome, error) {
	if m.Name == "" {
		return nil, slot.NewError(slot.KindMalformed, "ENG-OP-002", "name is required")
	}
	d, err := e.deriver.Name(m.Name)
	if err != nil {
		return nil, chunked.DerivationError(err)
	}
	rec, err := record.Name{
		Name:        m.Name,
		Program:     m.TargetProgram,
		Creator:     payer,
		CreatedAt:   uint64(e.now().Unix()),
		DefaultPage: m.DefaultPage,
	}.Encode()
	if err != nil {
		return nil, slot.WrapError(slot.KindInternal, "ENG-REC-001", "encoding name record", err)
	}
	out, err := e.slots.Claim(tx, payer, slot.Target{Declared: m.Target, Derived: d}, rec)
	if err != nil {
		return nil, err
	}
	return []slot.Outcome{out}, nil
}

// MinimumBalance is the balance a slot of size bytes must hold.
func (e *Engine) MinimumBalance(size int) uint64 {
	return e.slots.MinimumBalance(size)
}

// Balance returns a payer's funding balance.
func (e *Engine) Balance(ctx context.Context, payer address.Address) (uint64, error) {
	var bal uint64
	err := e.ledger.View(ctx, func(tx storage.Tx) error {
		var err error
		bal, err = tx.Balance(payer)
		return err
	})
	return bal, err
}

// Airdrop credits amount to payer when development funding is enabled and
// returns the new balance.
func (e *Engine) Airdrop(ctx context.Context, payer address.Address, amount uint64) (uint64, error) {
	if !e.airdrop {
		return 0, slot.NewError(slot.KindUnauthorized, "ENG-AIR-001", "airdrop is disabled")
	}
	if e.airdropLimit > 0 && amount > e.airdropLimit {
		return 0, slot.NewError(slot.KindUnauthorized, "ENG-AIR-002",
			fmt.Sprintf("airdrop of %d exceeds limit %d", amount, e.airdropLimit))
	}
	var bal uint64
	err := e.ledger.Update(ctx, func(tx storage.Tx) error {
		cur, err := tx.Balance(payer)
		if err != nil {
			return err
		}
		if amount > math.MaxUint64-cur {
			return slot.NewError(slot.KindMalformed, "ENG-AIR-003", "airdrop overflows balance")
		}
		bal = cur + amount
		return tx.SetBalance(payer, bal)
	})
	if err != nil {
		return 0, err
	}
	e.logger.Info().Stringer("payer", payer).Uint64("amount", amount).Uint64("balance", bal).Msg("airdrop")
	return bal, nil
}

// ReadPath resolves the stored bytes of path, chunked or single. Used by
// tooling and tests; the protocol itself has no read operation.
func (e *Engine) ReadPath(ctx context.Context, path string) ([]byte, error) {
	var out []byte
	err := e.ledger.View(ctx, func(tx storage.Tx) error {
		var err error
		out, err = chunked.Resolve(tx, e.deriver, path)
		return err
	})
	return out, err
}

// ReadName returns the claimed record for name.
func (e *Engine) ReadName(ctx context.Context, name string) (record.Name, error) {
	d, err := e.deriver.Name(name)
	if err != nil {
		return record.Name{}, err
	}
	var rec record.Name
	err = e.ledger.View(ctx, func(tx storage.Tx) error {
		s, err := tx.Slot(d.Address)
		if err != nil {
			return err
		}
		rec, err = record.DecodeName(s.Data)
		return err
	})
	return rec, err
}
