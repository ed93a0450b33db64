// Package verifier checks proof documents against the ledger: content hash,
// anchor lookup, creator signature, workflow reconstruction, chain of trust
// and chronology.
package verifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/ipfs/go-cid"
	"golang.org/x/sync/errgroup"

	"xdao.co/trailproof/compliance"
	"xdao.co/trailproof/errdefs"
	"xdao.co/trailproof/keys"
	"xdao.co/trailproof/ledger"
	"xdao.co/trailproof/proof"
	"xdao.co/trailproof/storage"
	"xdao.co/trailproof/workflow"
)

// DefaultProbeTimeout bounds each schema fetch from content storage.
const DefaultProbeTimeout = 2 * time.Second

// DefaultFetchLimit bounds concurrent trail lookups during reconstruction.
const DefaultFetchLimit = 8

// Options controls a single verification.
//
// Default behavior is Permissive when Options{} is used.
type Options struct {
	Mode compliance.ComplianceMode
	// OnStage, when set, is called after each completed stage with the
	// partial result. It must not retain or mutate r.
	OnStage func(s Stage, r *Result)
}

// Verifier is safe for concurrent use once constructed.
type Verifier struct {
	Ledger ledger.Reader
	Index  *workflow.Index
	// Content is optional; without it step schemas are reported Unknown.
	Content    storage.CAS
	Timestamps *ledger.TimestampCache
	Logger     *slog.Logger

	ProbeTimeout time.Duration
	Limit        int

	schemas schemaCache
}

// New returns a Verifier reading records through index and block timestamps
// through index.Reader.
func New(index *workflow.Index, content storage.CAS, logger *slog.Logger) *Verifier {
	return &Verifier{
		Ledger:     index.Reader,
		Index:      index,
		Content:    content,
		Timestamps: ledger.NewTimestampCache(),
		Logger:     logger,
	}
}

func (v *Verifier) logger() *slog.Logger {
	if v.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return v.Logger
}

func (v *Verifier) probeTimeout() time.Duration {
	if v.ProbeTimeout <= 0 {
		return DefaultProbeTimeout
	}
	return v.ProbeTimeout
}

func (v *Verifier) limit() int {
	if v.Limit <= 0 {
		return DefaultFetchLimit
	}
	return v.Limit
}

func (v *Verifier) index() *workflow.Index {
	if v.Index == nil {
		return workflow.New(v.Ledger, workflow.Namespaces{})
	}
	return v.Index
}

func (v *Verifier) reader() ledger.Reader {
	if v.Ledger == nil {
		return v.index().Reader
	}
	return v.Ledger
}

// run tracks one verification in progress.
type run struct {
	v    *Verifier
	opts Options
	res  *Result
}

func (r *run) done(s Stage) {
	r.res.Stages = append(r.res.Stages, s)
	r.v.logger().Debug("stage complete", "stage", string(s), "hash", r.res.ContentHash.Hex())
	if r.opts.OnStage != nil {
		r.opts.OnStage(s, r.res)
	}
}

func (r *run) reason(kind errdefs.Kind, ruleID, format string, args ...any) {
	r.res.Reasons = append(r.res.Reasons, errdefs.Newf(kind, ruleID, format, args...))
}

// halt records err as the failure of stage s and returns the partial result.
func (r *run) halt(s Stage, err error) (*Result, error) {
	r.res.Error = err
	r.res.IsValid = false
	r.v.logger().Warn("verification halted", "stage", string(s), "hash", r.res.ContentHash.Hex(), "err", err)
	return r.res, err
}

func (r *run) finish() (*Result, error) {
	res := r.res
	res.IsValid = res.verdict()
	if r.opts.Mode == compliance.Strict && res.Expired {
		res.IsValid = false
	}
	if r.opts.Mode == compliance.Strict && res.Reconstructed() {
		if res.ChainOfTrust != True {
			r.reason(errdefs.KindChainOfTrust, "TP-VER-030", "strict mode: chain of trust is %s", res.ChainOfTrust)
			res.IsValid = false
		}
		if res.Chronology != True {
			r.reason(errdefs.KindChronology, "TP-VER-031", "strict mode: chronology is %s", res.Chronology)
			res.IsValid = false
		}
	}
	r.v.logger().Info("proof verified", "hash", res.ContentHash.Hex(), "valid", res.IsValid, "stages", len(res.Stages))
	return res, nil
}

// Verify runs the verification stages over a raw proof document.
//
// Malformed input fails immediately with a Decode error and no result.
// Provenance problems are verdicts on the returned Result, never errors.
// A transport failure halts the current stage and is returned together
// with the partial result.
func (v *Verifier) Verify(ctx context.Context, raw []byte, opts Options) (*Result, error) {
	doc, err := proof.Parse(raw)
	if err != nil {
		return nil, err
	}
	h, err := doc.ContentHash()
	if err != nil {
		return nil, err
	}
	r := &run{v: v, opts: opts, res: &Result{ContentHash: h, Workflow: doc.IsWorkflow(), CurrentIndex: -1}}
	if doc.IsWorkflow() {
		r.res.RagHash = doc.RagData.RagHash
		r.res.StepHash = doc.RagData.StepHash
	}
	r.done(StageHash)

	idx := v.index()
	trail, found, err := idx.Trail(ctx, h)
	if err != nil {
		return r.halt(StageLookup, err)
	}
	if found && trail.ContentHash != h {
		r.reason(errdefs.KindValidation, "TP-VER-003", "trail stored under %s records content hash %s", h, trail.ContentHash)
		found = false
	}
	r.res.Found = found
	if !found {
		r.reason(errdefs.KindNotFound, "TP-VER-001", "content hash %s is not anchored", h)
		r.done(StageLookup)
		return r.finish()
	}
	r.res.Trail = trail
	r.res.Creator = trail.Creator
	r.res.Block = trail.CreatedAt
	r.done(StageLookup)

	r.res.Scheme = keys.VerifyWrapped(trail.Creator, h[:], trail.Signature)
	r.res.SignatureValid = r.res.Scheme != keys.SchemeNone
	r.done(StageSignature)
	if !r.res.SignatureValid {
		r.reason(errdefs.KindSignature, "TP-VER-002", "signature by %s does not verify", trail.Creator)
		return r.finish()
	}

	if !doc.IsWorkflow() || len(doc.RagData.Deliverable) < 2 {
		return r.finish()
	}
	resolved, err := idx.Master(ctx, doc.RagData.RagHash, doc.RagData.StepHash)
	if errdefs.IsKind(err, errdefs.KindNotFound) {
		r.res.Reasons = append(r.res.Reasons, err)
		return r.finish()
	}
	if err != nil {
		return r.halt(StageWorkflow, err)
	}
	if resolved.Master.Expired(trail.CreatedAt) {
		r.res.Expired = true
		r.reason(errdefs.KindValidation, "TP-VER-013", "workflow %s expired at block %d, before the proof was anchored at block %d", resolved.RagHash, resolved.Master.ExpiresAt, trail.CreatedAt)
	}
	if err := r.reconstruct(ctx, resolved, doc.RagData.Deliverable); err != nil {
		if errdefs.IsKind(err, errdefs.KindDecode) {
			return nil, err
		}
		return r.halt(StageWorkflow, err)
	}
	r.done(StageWorkflow)

	if err := r.chain(ctx, doc.RagData.Deliverable); err != nil {
		if errdefs.IsKind(err, errdefs.KindDecode) {
			return nil, err
		}
		return r.halt(StageChain, err)
	}
	r.done(StageChain)
	return r.finish()
}

// reconstruct rebuilds the history up to the proof's step. Trails are
// fetched concurrently and gathered by index.
func (r *run) reconstruct(ctx context.Context, resolved *workflow.Resolved, d proof.Deliverable) error {
	n := resolved.CurrentIndex + 1
	switch {
	case len(d) < n:
		return errdefs.Newf(errdefs.KindDecode, "TP-VER-011", "deliverable has %d entries but step %s is at position %d", len(d), resolved.StepHash, resolved.CurrentIndex)
	case len(d) > n:
		return errdefs.Newf(errdefs.KindDecode, "TP-VER-012", "deliverable has %d entries beyond step %s at position %d", len(d)-n, resolved.StepHash, resolved.CurrentIndex)
	}

	history := make([]HistoryStep, n)
	mismatched := make([]bool, n)
	for i := range history {
		h, err := proof.PrefixHash(d, i+1)
		if err != nil {
			return err
		}
		history[i] = HistoryStep{Index: i, StepKey: d[i].Key, ContentHash: h}
	}

	idx := r.v.index()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.v.limit())
	for i := range history {
		i := i
		g.Go(func() error {
			step := &history[i]
			t, ok, err := idx.Trail(gctx, step.ContentHash)
			if err != nil {
				return err
			}
			if ok && t.ContentHash != step.ContentHash {
				mismatched[i], ok = true, false
			}
			if ok {
				step.Found = true
				step.Trail = t
				step.Creator = t.Creator
				step.Block = t.CreatedAt
			}
			schema := cid.Undef
			if rec := resolved.Step(i); rec != nil {
				schema = rec.SchemaCID
			}
			step.SchemaValid = r.v.checkSchema(gctx, schema, d[i].Payload)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range history {
		if mismatched[i] {
			r.reason(errdefs.KindValidation, "TP-VER-022", "step %d (%s) trail records a different content hash", i, history[i].StepKey)
		}
		if !history[i].Found {
			r.reason(errdefs.KindNotFound, "TP-VER-020", "step %d (%s) has no anchored trail", i, history[i].StepKey)
		}
		if history[i].SchemaValid == False {
			r.reason(errdefs.KindValidation, "TP-VER-021", "step %d (%s) does not match its schema", i, history[i].StepKey)
		}
	}
	r.res.CurrentIndex = resolved.CurrentIndex
	r.res.History = history
	return nil
}

// chain runs the chain-of-trust and chronology checks over the reconstructed history.
func (r *run) chain(ctx context.Context, d proof.Deliverable) error {
	res := r.res
	cot, violations, err := CheckChainOfTrust(res.History, d)
	if err != nil {
		return err
	}
	res.ChainOfTrust, res.ChainViolations = cot, violations
	for _, i := range violations {
		r.reason(errdefs.KindChainOfTrust, "TP-VER-040", "step %d was created by %s, not the recipient named by step %d", i, res.History[i].Creator, i-1)
	}
	if cot == Unknown {
		r.reason(errdefs.KindChainOfTrust, "TP-VER-041", "chain of trust could not be determined")
	}

	var blocks []uint32
	for _, s := range res.History {
		if s.Found {
			blocks = append(blocks, s.Block)
		}
	}
	cache := r.v.Timestamps
	if cache == nil {
		cache = ledger.NewTimestampCache()
	}
	times, err := cache.Resolve(ctx, r.v.reader(), blocks)
	if err != nil {
		return err
	}
	var untimed []uint32
	for i := range res.History {
		s := &res.History[i]
		if !s.Found {
			continue
		}
		if ts, ok := times[s.Block]; ok {
			s.Timestamp = ts
		} else {
			untimed = append(untimed, s.Block)
		}
	}
	if len(untimed) > 0 {
		r.reason(errdefs.KindNotFound, "TP-VER-051", "no timestamp for blocks %v; chronology judged on block order", untimed)
	}

	res.Chronology, res.ChronologyViolations = CheckChronology(res.History)
	for _, i := range res.ChronologyViolations {
		r.reason(errdefs.KindChronology, "TP-VER-050", "step %d (block %d) predates an earlier anchored step", i, res.History[i].Block)
	}
	return nil
}
