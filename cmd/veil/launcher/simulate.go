package launcher

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/veilcash/go-veil/entropy"
	"github.com/veilcash/go-veil/ledger"
	"github.com/veilcash/go-veil/mixer"
	"github.com/veilcash/go-veil/monitoring"
	"github.com/veilcash/go-veil/params"
	"github.com/veilcash/go-veil/store"
)

var (
	simRoundsFlag = &cli.IntFlag{
		Name:  "rounds",
		Usage: "Number of full mixing rounds to run",
		Value: 1,
	}
	simSetFlag = &cli.IntFlag{
		Name:  "set",
		Usage: "Anonymity set size for the simulated instance",
		Value: 8,
	}

	simulateCommand = &cli.Command{
		Action:      simulate,
		Name:        "simulate",
		Usage:       "Run full mixing rounds against in-memory collaborators",
		ArgsUsage:   "",
		Category:    "MISCELLANEOUS COMMANDS",
		Description: `Runs deposit, commit, reveal and batch processing rounds with a simulated clock and persists the final state snapshot.`,
	}
)

// simSource derives simulation entropy from a round counter, so runs are
// reproducible.
type simSource struct {
	round uint64
}

func (s *simSource) Sample(back int) common.Hash {
	return crypto.Keccak256Hash(
		common.BigToHash(new(big.Int).SetUint64(s.round)).Bytes(),
		[]byte{byte(back)},
	)
}

var _ entropy.Source = (*simSource)(nil)

type simActor struct {
	addr      common.Address
	recipient common.Address
	entropy   common.Hash
	sig       []byte
}

func simulate(ctx *cli.Context) error {
	cfg, err := makeAllConfigs(ctx)
	if err != nil {
		return err
	}
	cfg.Rules.MinAnonymitySet = ctx.Int(simSetFlag.Name)
	rounds := ctx.Int(simRoundsFlag.Name)

	var db *store.Store
	if cfg.DataDir == "inmemory" || cfg.DataDir == "" {
		db = store.NewMemStore()
	} else {
		db, err = store.NewStore(cfg.DataDir)
		if err != nil {
			return err
		}
		monitoring.SetDataDirMonitor(cfg.DataDir)
	}
	defer db.Close()

	src := &simSource{}
	clock := time.Unix(time.Now().Unix(), 0)
	vault := mixer.NewMemVault()
	m := mixer.New(cfg.Rules, ledger.NewInMemory(), vault, src, big.NewInt(1)).
		WithClock(func() time.Time { return clock })
	defer m.Stop()

	for round := 1; round <= rounds; round++ {
		actors, err := admitRound(m, cfg.Rules, byte(round))
		if err != nil {
			return err
		}

		// Fast-forward past every randomized unlock in the batch.
		clock = clock.Add(params.MaxDelay)
		src.round++

		receipt, err := m.ProcessBatch(mixer.DefaultCall(actors[0].addr, big.NewInt(1)))
		if err != nil {
			return err
		}
		log.Info("Round processed", "round", round,
			"paid", receipt.PaidCount, "deferred", receipt.DeferredCount,
			"disbursed", receipt.Disbursed, "swept", receipt.Swept,
			"root", m.CurrentRoot())
	}

	snap, err := m.ExportState()
	if err != nil {
		return err
	}
	if err := db.SaveState(snap); err != nil {
		return err
	}
	log.Info("Simulation finished", "rounds", rounds,
		"reserve", m.Reserve(), "root", m.CurrentRoot())
	return nil
}

// admitRound funds one anonymity set worth of actors, commits and reveals
// them.
func admitRound(m *mixer.Mixer, rules mixer.Rules, salt byte) ([]simActor, error) {
	n := rules.MinAnonymitySet
	actors := make([]simActor, n)
	entries := make([]mixer.RevealEntry, n)
	for i := range actors {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		a := simActor{
			addr:      crypto.PubkeyToAddress(key.PublicKey),
			recipient: common.BytesToAddress(crypto.Keccak256([]byte{salt, byte(i), 'r'})[:20]),
			entropy:   crypto.Keccak256Hash([]byte{salt, byte(i), 'e'}),
		}
		if err := m.Deposit(mixer.DefaultCall(a.addr, big.NewInt(1)), rules.ShareValue); err != nil {
			return nil, err
		}
		body := m.CommitmentBody(a.recipient, a.entropy)
		if err := m.Commit(mixer.DefaultCall(a.addr, big.NewInt(1)), body); err != nil {
			return nil, err
		}
		a.sig, err = crypto.Sign(mixer.CommitmentEnvelope(body).Bytes(), key)
		if err != nil {
			return nil, err
		}
		actors[i] = a
		entries[i] = mixer.RevealEntry{Recipient: a.recipient, Entropy: a.entropy, Sig: a.sig}
	}
	if err := m.RevealBatch(mixer.DefaultCall(actors[0].addr, big.NewInt(1)), entries); err != nil {
		return nil, err
	}
	return actors, nil
}
