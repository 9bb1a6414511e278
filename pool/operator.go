package pool

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"
	lru "github.com/hashicorp/golang-lru"
	"github.com/inconshreveable/log15"
	"golang.org/x/sync/errgroup"

	"github.com/regolith-labs/ore-pool-sub000/ore"
	"github.com/regolith-labs/ore-pool-sub000/params"
)

// Operator is the process-wide coordinator. It owns the aggregator, the
// attribution window and the recent-events cache behind one readers-writer
// lock, and drives the submission and reconciliation loops. The lock is never
// held across a chain RPC, database call or sleep.
type Operator struct {
	signer      solana.PrivateKey
	authority   solana.PublicKey
	poolAddress solana.PublicKey
	poolBump    uint8
	commission  uint64

	back      Backend
	directory *Directory
	reader    *Reader

	mu           sync.RWMutex
	agg          *Aggregator
	window       *window
	recentEvents *lru.Cache
	lastEventKey int64
	deadline     time.Time

	contribCh chan *Contribution
	eventCh   chan *WebhookEvent

	log log15.Logger
}

// New wires an operator from its signing key, commission percentage, chain
// backend and member store. The first challenge is installed by Run.
func New(signer solana.PrivateKey, commission uint64, back Backend, store MemberStore) (*Operator, error) {
	if commission > 100 {
		return nil, &Error{Kind: KindConfigMissing, Msg: "commission must be 0..100"}
	}
	authority := signer.PublicKey()
	poolAddress, poolBump := ore.PoolAddress(authority)
	events, err := lru.New(params.RecentEventsCap)
	if err != nil {
		return nil, errInternal("event cache", err)
	}
	return &Operator{
		signer:       signer,
		authority:    authority,
		poolAddress:  poolAddress,
		poolBump:     poolBump,
		commission:   commission,
		back:         back,
		directory:    NewDirectory(store, back, authority),
		reader:       NewReader(back, poolAddress, params.OperatorMinDifficulty),
		agg:          NewAggregator(),
		window:       newWindow(params.AttributionWindow),
		recentEvents: events,
		contribCh:    make(chan *Contribution, params.ContributionBacklog),
		eventCh:      make(chan *WebhookEvent, 64),
		log:          log15.New("module", "pool"),
	}, nil
}

// Authority returns the operator signing identity.
func (o *Operator) Authority() solana.PublicKey { return o.authority }

// PoolAddress returns the pool PDA and its bump.
func (o *Operator) PoolAddress() (solana.PublicKey, uint8) {
	return o.poolAddress, o.poolBump
}

// Directory exposes the member directory to the HTTP edge.
func (o *Operator) Directory() *Directory { return o.directory }

// Run installs the first round and drives the four long-running tasks until
// the context is cancelled: contribution ingestion, the submission timer, the
// webhook event consumer and the attribution reconciler.
func (o *Operator) Run(ctx context.Context) error {
	ch, err := o.reader.Current(ctx)
	if err != nil {
		return err
	}
	o.installRound(ctx, ch)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.contributionLoop(ctx) })
	g.Go(func() error { return o.submissionLoop(ctx) })
	g.Go(func() error { return o.eventLoop(ctx) })
	g.Go(func() error { return o.reconcileLoop(ctx) })
	return g.Wait()
}

// installRound reads the member count, then swaps the new round in under the
// lock. The count snapshot stays fixed for the round's lifetime so the nonce
// partition is stable even when members register mid-round.
func (o *Operator) installRound(ctx context.Context, ch Challenge) {
	numMembers := o.memberCount(ctx)
	o.mu.Lock()
	o.agg.Install(ch, numMembers)
	o.deadline = time.Now().Add(time.Duration(ch.CutoffSeconds) * time.Second)
	o.mu.Unlock()
	o.log.Info("round installed",
		"last_hash_at", ch.LastHashAt,
		"min_difficulty", ch.MinDifficulty,
		"cutoff", ch.CutoffSeconds,
		"members", numMembers)
}

func (o *Operator) memberCount(ctx context.Context) uint64 {
	pl, err := o.back.Pool(ctx, o.authority)
	if err != nil {
		o.mu.RLock()
		prev := o.agg.NumMembers()
		o.mu.RUnlock()
		o.log.Warn("pool account read failed, keeping member count", "count", prev, "err", err)
		return prev
	}
	return pl.TotalMembers
}

// SubmitContribution hands an admitted contribution to the ingestion loop.
func (o *Operator) SubmitContribution(c *Contribution) error {
	select {
	case o.contribCh <- c:
		return nil
	default:
		return errInternal("contribution backlog full", nil)
	}
}

// HandleWebhook hands a mining-event delivery to the attribution consumer.
func (o *Operator) HandleWebhook(ev *WebhookEvent) error {
	select {
	case o.eventCh <- ev:
		return nil
	default:
		return errInternal("event backlog full", nil)
	}
}

// ChallengeInfo copies the fields the HTTP edge serves, under the read lock.
func (o *Operator) ChallengeInfo() (Challenge, uint64, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.agg.Challenge(), o.agg.NumMembers(), o.agg.Closed()
}

// LatestEvent returns the most recently attributed mining event.
func (o *Operator) LatestEvent() (*MiningEvent, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.lastEventKey == 0 {
		return nil, false
	}
	v, ok := o.recentEvents.Get(o.lastEventKey)
	if !ok {
		return nil, false
	}
	return v.(*MiningEvent), true
}

// Event returns the mining event of a specific round, if still cached.
func (o *Operator) Event(lastHashAt int64) (*MiningEvent, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.recentEvents.Get(lastHashAt)
	if !ok {
		return nil, false
	}
	return v.(*MiningEvent), true
}

// contributionLoop serializes aggregator writes: many HTTP handlers produce,
// one goroutine consumes.
func (o *Operator) contributionLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-o.contribCh:
			o.mu.Lock()
			ok := o.agg.Insert(c)
			o.mu.Unlock()
			if !ok {
				// Duplicate within the round, or the round closed between
				// admission and ingestion.
				o.log.Debug("contribution dropped", "member", c.Member, "difficulty", c.Difficulty)
				contributionsDropped.Inc()
				continue
			}
			contributionsAccepted.Inc()
		}
	}
}

// submissionLoop sleeps until the round cutoff, then finalizes the round and
// rotates. Submission happens on the timer tick only, never on contribution
// arrival.
func (o *Operator) submissionLoop(ctx context.Context) error {
	for {
		o.mu.RLock()
		deadline := o.deadline
		o.mu.RUnlock()
		if wait := time.Until(deadline); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := o.finishRound(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.log.Error("round finalization failed", "err", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(params.RotationDelay):
			}
		}
	}
}

// finishRound snapshots the aggregator, submits the winner if any, then
// rotates to the next challenge. If a previous rotation attempt failed the
// aggregator is already closed; the snapshot and submission are skipped and
// only rotation is retried, so one round never submits twice.
func (o *Operator) finishRound(ctx context.Context) error {
	var snap *RoundSnapshot
	o.mu.Lock()
	prev := o.agg.Challenge().LastHashAt
	if !o.agg.Closed() {
		snap = o.agg.Snapshot()
		o.window.push(snap.Challenge.LastHashAt, snap)
	}
	o.mu.Unlock()

	if snap != nil {
		if snap.Winner == nil {
			o.log.Info("no contributions at cutoff, skipping submission", "last_hash_at", prev)
			submissionsSkipped.Inc()
		} else if err := o.submit(ctx, snap); err != nil {
			// The round is lost; rotation still proceeds so the pool can
			// rejoin the next one.
			o.log.Error("submission failed", "last_hash_at", prev, "err", err)
			submissionsFailed.Inc()
		}
	}

	next, err := o.reader.AwaitRotation(ctx, prev)
	if err != nil {
		return err
	}
	o.installRound(ctx, next)
	return nil
}

// submit lands the winning solution: compute budget, submit instruction, and
// one tip transfer to a randomly picked tip account.
func (o *Operator) submit(ctx context.Context, snap *RoundSnapshot) error {
	tip := params.TipAccounts[rand.Intn(len(params.TipAccounts))]
	sig, err := o.back.SendAndConfirm(ctx, func(blockhash solana.Hash) (*solana.Transaction, error) {
		ixs := []solana.Instruction{
			computebudget.NewSetComputeUnitLimitInstruction(params.ComputeUnitLimit).Build(),
			computebudget.NewSetComputeUnitPriceInstruction(params.ComputeUnitPrice).Build(),
			ore.NewSubmitInstruction(o.authority, snap.Winner.Solution, snap.Attestation),
			system.NewTransferInstruction(params.TipLamports, o.authority, tip).Build(),
		}
		tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(o.authority))
		if err != nil {
			return nil, err
		}
		if _, err := tx.Sign(o.signerFor); err != nil {
			return nil, err
		}
		return tx, nil
	})
	if err != nil {
		return errTransient("submit transaction", err)
	}
	submissionsLanded.Inc()
	o.log.Info("submission landed",
		"sig", sig,
		"last_hash_at", snap.Challenge.LastHashAt,
		"difficulty", snap.Winner.Difficulty,
		"contributions", len(snap.Contributions),
		"total_score", snap.TotalScore)
	return nil
}

func (o *Operator) signerFor(key solana.PublicKey) *solana.PrivateKey {
	if key.Equals(o.authority) {
		return &o.signer
	}
	return nil
}

// eventLoop consumes webhook deliveries one at a time and attributes rewards.
func (o *Operator) eventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-o.eventCh:
			o.handleEvent(ctx, ev)
		}
	}
}

// handleEvent reconstructs the mine event from the transaction logs and
// dispatches it to the round bucket identified by last_hash_at. Deliveries
// arriving out of order or for evicted rounds are dropped.
func (o *Operator) handleEvent(ctx context.Context, ev *WebhookEvent) {
	mineEvent, err := ore.ParseMineEvent(ev.Logs)
	if err != nil {
		// Undecodable return data never becomes decodable; drop, don't retry.
		o.log.Warn("mine event dropped", "sig", ev.Signature, "err", errPermanent("mine event decode", err))
		eventsDropped.Inc()
		return
	}
	if err := o.attribute(ctx, ev, mineEvent); err != nil {
		o.log.Error("attribution failed", "sig", ev.Signature, "err", err)
	}
}
