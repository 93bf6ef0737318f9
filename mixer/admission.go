package mixer

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/veilcash/go-veil/entropy"
	"github.com/veilcash/go-veil/params"
)

// RevealEntry is one element of a reveal batch: the hidden payout intent
// and the depositor's signature over its commitment envelope.
type RevealEntry struct {
	Recipient common.Address
	Entropy   common.Hash
	// Sig is a 65-byte [R || S || V] secp256k1 signature over
	// CommitmentEnvelope(CommitmentBody(...)).
	Sig []byte
}

// CommitmentBody recomputes the commitment digest binding a payout intent
// to this deployment: recipient, caller entropy, contract identity, chain
// identity and the normalized per-share amount.
func (m *Mixer) CommitmentBody(recipient common.Address, userEntropy common.Hash) common.Hash {
	return crypto.Keccak256Hash(
		recipient.Bytes(),
		userEntropy.Bytes(),
		m.cfg.Contract.Bytes(),
		common.LeftPadBytes(m.cfg.ChainID.Bytes(), 32),
		common.LeftPadBytes(m.cfg.ShareValue.Bytes(), 32),
	)
}

// CommitmentEnvelope wraps a commitment body in the signing envelope the
// depositor's wallet produces.
func CommitmentEnvelope(body common.Hash) common.Hash {
	return crypto.Keccak256Hash(
		[]byte("\x19Ethereum Signed Message:\n32"),
		body.Bytes(),
	)
}

// Deposit mints credit against deposited value and notifies observers.
func (m *Mixer) Deposit(call Call, amount *big.Int) error {
	if err := m.enter(); err != nil {
		return err
	}
	defer m.exit()

	if err := m.ledger.Mint(call.Caller, amount); err != nil {
		return err
	}
	depositCounter.Inc(1)
	m.mintFeed.Send(MintEvent{Account: call.Caller, Amount: new(big.Int).Set(amount)})
	m.Log.Debug("Deposit minted", "account", call.Caller, "amount", amount)
	return nil
}

// Commit stores the caller's commitment. The caller must hold at least one
// share of credit and must not have another commitment open; admission past
// the queue capacity is rejected here rather than at reveal.
func (m *Mixer) Commit(call Call, commitment common.Hash) error {
	if err := m.enter(); err != nil {
		return err
	}
	defer m.exit()

	if m.ledger.BalanceOf(call.Caller).Cmp(m.cfg.ShareValue) < 0 {
		return ErrInsufficientCredit
	}
	if _, open := m.state.registry[call.Caller]; open {
		return ErrOpenCommitment
	}
	if m.state.queue.live()+m.state.pendingCommits >= m.cfg.QueueCap {
		return ErrQueueFull
	}

	m.state.registry[call.Caller] = commitment
	m.state.pendingCommits++
	commitCounter.Inc(1)
	m.commitFeed.Send(CommitEvent{Depositor: call.Caller, Commitment: commitment})
	m.Log.Debug("Commitment received", "depositor", call.Caller, "commitment", commitment)
	return nil
}

// verifiedEntry is the outcome of phase one of a reveal: everything needed
// to admit the payout without any further fallible check.
type verifiedEntry struct {
	signer    common.Address
	body      common.Hash
	sigDigest common.Hash
	entry     RevealEntry
}

// RevealBatch verifies a full batch of reveal entries and admits the
// resulting payouts into the withdrawal queue. Verification is two-phase:
// no state is mutated until every entry has passed, so a single malformed
// entry aborts the whole batch with no partial admission.
func (m *Mixer) RevealBatch(call Call, entries []RevealEntry) error {
	if err := m.enter(); err != nil {
		return err
	}
	defer m.exit()

	if len(entries) != m.cfg.MinAnonymitySet {
		return ErrBadBatchSize
	}
	// One boundary at a time: admitting a second batch before the pending
	// one is processed would overfill the boundary and strand every payout
	// behind the exact-size processing precondition.
	if m.state.admittedInBoundary != 0 {
		return ErrBoundaryPending
	}
	if m.state.queue.live()+uint64(len(entries)) > m.cfg.QueueCap {
		return ErrQueueFull
	}

	// Phase one: verify everything.
	verified := make([]verifiedEntry, 0, len(entries))
	seen := make(map[common.Hash]struct{}, len(entries))
	for i, entry := range entries {
		ve, err := m.verifyEntry(entry)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if _, dup := seen[ve.body]; dup {
			return fmt.Errorf("entry %d: %w", i, ErrDuplicatePayout)
		}
		seen[ve.body] = struct{}{}
		if m.ledger.BalanceOf(ve.signer).Cmp(m.cfg.ShareValue) < 0 {
			return fmt.Errorf("entry %d: %w", i, ErrInsufficientCredit)
		}
		verified = append(verified, ve)
	}

	// Phase two: admit. Nothing here can fail: balances were checked above
	// and the engine call is exclusive, so no interleaving spend exists.
	now := m.now()
	frame := newFrame(call)
	for _, ve := range verified {
		if err := m.ledger.Burn(ve.signer, m.cfg.ShareValue); err != nil {
			// Unreachable after phase one; surfaced loudly if a ledger
			// implementation violates its contract.
			m.Log.Crit("Burn failed after balance check", "signer", ve.signer, "err", err)
		}
		delete(m.state.registry, ve.signer)
		m.state.pendingCommits--
		m.state.usedSigs.Add(ve.sigDigest)

		delay, err := m.rnd.Delay(ve.signer, m.acc.Root(), ve.entry.Entropy, now, call.GasPrice, frame.remaining)
		if err != nil {
			// Entropy was checked non-zero in phase one.
			m.Log.Crit("Delay derivation failed after verification", "err", err)
		}
		m.state.payouts[ve.body] = &PendingPayout{
			Amount:     new(big.Int).Set(m.cfg.ShareValue),
			UnlockTime: now.Add(delay),
			Recipient:  ve.entry.Recipient,
		}
		m.state.queue.push(ve.body)
		m.state.active.Add(ve.body)
		m.state.boundary[ve.signer] = struct{}{}
		m.state.reserve.Add(m.state.reserve, m.cfg.ShareValue)
		m.state.admittedInBoundary++
		m.state.admissionsSinceRebuild++
		admitCounter.Inc(1)
	}
	queueLiveGauge.Update(int64(m.state.queue.live()))

	if m.state.admissionsSinceRebuild >= m.cfg.RebuildEveryAdmissions {
		if frame.consume(uint64(m.state.active.Len()) * params.BudgetPerRebuildLeaf) {
			m.rebuild()
		}
	}
	return nil
}

// verifyEntry runs every per-entry admission check without mutating state.
func (m *Mixer) verifyEntry(entry RevealEntry) (verifiedEntry, error) {
	if entry.Entropy == (common.Hash{}) {
		return verifiedEntry{}, entropy.ErrZeroEntropy
	}
	body := m.CommitmentBody(entry.Recipient, entry.Entropy)
	envelope := CommitmentEnvelope(body)

	pub, err := crypto.SigToPub(envelope.Bytes(), entry.Sig)
	if err != nil {
		return verifiedEntry{}, ErrBadSignature
	}
	signer := crypto.PubkeyToAddress(*pub)
	if signer == (common.Address{}) {
		return verifiedEntry{}, ErrBadSignature
	}

	stored, ok := m.state.registry[signer]
	if !ok || stored != body {
		return verifiedEntry{}, ErrSignerMismatch
	}

	// Terminal and live payout keys are rejected before the signature
	// replay set: a re-reveal of a processed commitment reproduces the
	// same deterministic signature, and the payout-level refusal is the
	// meaningful one.
	if _, done := m.state.processed[body]; done {
		return verifiedEntry{}, ErrDuplicatePayout
	}
	if _, live := m.state.payouts[body]; live {
		return verifiedEntry{}, ErrDuplicatePayout
	}
	sigDigest := crypto.Keccak256Hash(entry.Sig)
	if m.state.usedSigs.Contains(sigDigest) {
		return verifiedEntry{}, ErrReplayedSig
	}
	return verifiedEntry{signer: signer, body: body, sigDigest: sigDigest, entry: entry}, nil
}
