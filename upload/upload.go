// Package upload is the submission side: it walks a content source, derives
// every target address, signs one operation per slot and submits each
// independently.
//
// Uploads are best effort. A failed item or chunk is recorded in the Report
// and processing continues with the next one; nothing already applied is
// rolled back.
package upload

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"xdao.co/w3slot/address"
	"xdao.co/w3slot/chunked"
	"xdao.co/w3slot/cidutil"
	"xdao.co/w3slot/keys"
	"xdao.co/w3slot/slot"
	"xdao.co/w3slot/source"
	"xdao.co/w3slot/wire"
)

// DefaultPage is the page a claimed name resolves to when none is given.
const DefaultPage = "/index.html"

// Submitter delivers one signed operation to the application side and
// returns its confirmation id.
type Submitter interface {
	Submit(ctx context.Context, env wire.Envelope) (string, error)
}

// SubmitFunc adapts a function to Submitter.
type SubmitFunc func(ctx context.Context, env wire.Envelope) (string, error)

func (f SubmitFunc) Submit(ctx context.Context, env wire.Envelope) (string, error) {
	return f(ctx, env)
}

type Mode string

const (
	ModeSingle  Mode = "single"
	ModeChunked Mode = "chunked"
)

// ChunkFailure is one chunk whose submission failed.
type ChunkFailure struct {
	Index int
	Err   error
}

// ItemResult is the outcome for one logical path.
type ItemResult struct {
	Path string
	Size int
	// CID of the whole payload (CIDv1, raw, sha2-256).
	CID    string
	Mode   Mode
	Chunks int
	// Confirmations holds one id per successfully submitted operation.
	Confirmations []string
	FailedChunks  []ChunkFailure
	// Err is set when the item failed as a whole: unreadable, not
	// derivable, too large, or its single-slot write was rejected.
	Err error
}

// OK reports whether every slot write of the item succeeded.
func (r ItemResult) OK() bool {
	return r.Err == nil && len(r.FailedChunks) == 0
}

type Report struct {
	Items []ItemResult
}

func (r Report) OK() bool {
	for _, it := range r.Items {
		if !it.OK() {
			return false
		}
	}
	return true
}

// Failed returns the items that did not fully succeed.
func (r Report) Failed() []ItemResult {
	var out []ItemResult
	for _, it := range r.Items {
		if !it.OK() {
			out = append(out, it)
		}
	}
	return out
}

// Uploader signs and submits content operations for one program.
type Uploader struct {
	Deriver   address.Deriver
	Signer    keys.Signer
	Submitter Submitter

	// ChunkSize is the largest payload written to a single slot and the
	// size of every chunk but the last. Zero means chunked.DefaultChunkSize.
	ChunkSize int
	// Workers is the number of items uploaded concurrently. Chunks of one
	// item are always submitted in ascending order by a single worker.
	Workers int
	Logger  zerolog.Logger
}

func (u *Uploader) chunkSize() int {
	if u.ChunkSize > 0 {
		return u.ChunkSize
	}
	return chunked.DefaultChunkSize
}

func (u *Uploader) workers() int {
	if u.Workers > 0 {
		return u.Workers
	}
	return 1
}

// Upload uploads every item of src. The Report lists items in enumeration
// order. The returned error is only set when enumeration fails or ctx is
// canceled; items that were never started then carry ctx.Err().
func (u *Uploader) Upload(ctx context.Context, src source.Source) (Report, error) {
	if u.Signer == nil || u.Submitter == nil {
		return Report{}, fmt.Errorf("upload: signer and submitter are required")
	}
	items, err := src.Enumerate(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("upload: enumerating source: %w", err)
	}
	u.Logger.Info().Int("items", len(items)).Int("chunk_size", u.chunkSize()).Int("workers", u.workers()).Msg("upload started")

	results := make([]ItemResult, len(items))
	next := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < u.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				results[i] = u.uploadItem(ctx, src, items[i])
			}
		}()
	}

	scheduled := 0
schedule:
	for ; scheduled < len(items); scheduled++ {
		select {
		case <-ctx.Done():
			break schedule
		case next <- scheduled:
		}
	}
	close(next)
	wg.Wait()

	for i := scheduled; i < len(items); i++ {
		results[i] = ItemResult{Path: items[i].Path, Err: ctx.Err()}
	}
	report := Report{Items: results}
	u.Logger.Info().Int("items", len(items)).Int("failed", len(report.Failed())).Msg("upload finished")
	return report, ctx.Err()
}

func (u *Uploader) uploadItem(ctx context.Context, src source.Source, it source.Item) ItemResult {
	payload, err := src.Read(ctx, it.Locator)
	if err != nil {
		res := ItemResult{Path: it.Path, Err: fmt.Errorf("reading %s: %w", it.Locator, err)}
		u.logItem(res)
		return res
	}
	res := u.UploadBytes(ctx, it.Path, payload)
	u.logItem(res)
	return res
}

func (u *Uploader) logItem(res ItemResult) {
	ev := u.Logger.Info()
	if !res.OK() {
		ev = u.Logger.Warn().Err(res.Err).Int("failed_chunks", len(res.FailedChunks))
	}
	ev.Str("path", res.Path).
		Int("size", res.Size).
		Str("mode", string(res.Mode)).
		Int("chunks", res.Chunks).
		Str("cid", res.CID).
		Msg("item")
}

// UploadBytes stores payload under path: in its single content slot when it
// fits ChunkSize, otherwise as chunks followed by the meta update that rides
// on the final chunk.
func (u *Uploader) UploadBytes(ctx context.Context, path string, payload []byte) ItemResult {
	res := ItemResult{Path: path, Size: len(payload), CID: cidutil.PayloadCIDString(payload)}
	if !chunked.NeedsChunking(len(payload), u.chunkSize()) {
		res.Mode = ModeSingle
		res.Chunks = 1
		u.putSingle(ctx, &res, payload)
		return res
	}
	res.Mode = ModeChunked
	u.putChunked(ctx, &res, payload)
	return res
}

func (u *Uploader) putSingle(ctx context.Context, res *ItemResult, payload []byte) {
	d, err := u.Deriver.Content(res.Path)
	if err != nil {
		res.Err = chunked.DerivationError(err)
		return
	}
	id, err := u.submit(ctx, wire.PutContent{Path: res.Path, Body: payload, Target: d.Address})
	if err != nil {
		res.Err = err
		return
	}
	res.Confirmations = append(res.Confirmations, id)
}

func (u *Uploader) putChunked(ctx context.Context, res *ItemResult, payload []byte) {
	chunks, err := chunked.Split(payload, u.chunkSize())
	if err != nil {
		res.Err = slot.WrapError(slot.KindMalformed, "UPL-001", "payload cannot be chunked", err)
		return
	}
	res.Chunks = len(chunks)
	meta, err := u.Deriver.Meta(res.Path)
	if err != nil {
		res.Err = chunked.DerivationError(err)
		return
	}
	count := uint8(len(chunks))
	for i, body := range chunks {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(chunks); j++ {
				res.FailedChunks = append(res.FailedChunks, ChunkFailure{Index: j, Err: err})
			}
			return
		}
		d, err := u.Deriver.Chunk(res.Path, uint8(i))
		if err != nil {
			res.FailedChunks = append(res.FailedChunks, ChunkFailure{Index: i, Err: chunked.DerivationError(err)})
			continue
		}
		id, err := u.submit(ctx, wire.PutChunk{
			Path:       res.Path,
			ChunkNo:    uint8(i),
			ChunkCount: count,
			Body:       body,
			Target:     d.Address,
			Meta:       meta.Address,
		})
		if err != nil {
			u.Logger.Warn().Err(err).Str("path", res.Path).Int("chunk", i).Msg("chunk failed")
			res.FailedChunks = append(res.FailedChunks, ChunkFailure{Index: i, Err: err})
			continue
		}
		res.Confirmations = append(res.Confirmations, id)
	}
}

// ClaimName claims name for targetProgram. An empty defaultPage means
// DefaultPage.
func (u *Uploader) ClaimName(ctx context.Context, name string, targetProgram address.Address, defaultPage string) (string, error) {
	if defaultPage == "" {
		defaultPage = DefaultPage
	}
	d, err := u.Deriver.Name(name)
	if err != nil {
		return "", chunked.DerivationError(err)
	}
	return u.submit(ctx, wire.ClaimName{
		Name:          name,
		TargetProgram: targetProgram,
		DefaultPage:   defaultPage,
		Target:        d.Address,
	})
}

// submit seals msg and hands it to the Submitter. Errors that are not
// already structured become KindTransportFailure.
func (u *Uploader) submit(ctx context.Context, msg wire.Message) (string, error) {
	env, err := wire.Seal(msg, u.Signer)
	if err != nil {
		return "", slot.WrapError(slot.KindMalformed, "UPL-002", "sealing operation", err)
	}
	id, err := u.Submitter.Submit(ctx, env)
	if err != nil {
		if slot.KindOf(err) == "" {
			return "", slot.WrapError(slot.KindTransportFailure, "UPL-003", "submitting "+string(msg.Kind()), err)
		}
		return "", err
	}
	return id, nil
}
