package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"SettleCore/internal/ledger"
	"SettleCore/internal/model"
	"SettleCore/internal/notify"
	"SettleCore/internal/observability"
	"SettleCore/internal/store"
)

// Config carries the chain-leg fee schedule and confirmation window.
type Config struct {
	TransferTTL   time.Duration
	DepositFee    decimal.Decimal
	WithdrawalFee decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		TransferTTL:   time.Hour,
		DepositFee:    decimal.NewFromFloat(0.01),
		WithdrawalFee: decimal.NewFromFloat(0.01),
	}
}

// Confirmer drives blockchain transfers: it opens deposit/withdrawal legs,
// verifies chain facts through the RPC client, and settles the ledger once a
// fact is confirmed. Chain RPC never runs inside an open database
// transaction; the confirmer reads the chain first and only then opens a
// short transaction to finalize.
type Confirmer struct {
	store   store.Store
	client  Client
	ledger  *ledger.Ledger
	cfg     Config
	notif   notify.Notifier
	events  notify.Publisher
	metrics *observability.Metrics
	log     zerolog.Logger

	now func() time.Time
}

func NewConfirmer(st store.Store, client Client, led *ledger.Ledger, cfg Config, notif notify.Notifier, events notify.Publisher, metrics *observability.Metrics) *Confirmer {
	return &Confirmer{
		store:   st,
		client:  client,
		ledger:  led,
		cfg:     cfg,
		notif:   notif,
		events:  events,
		metrics: metrics,
		log:     observability.NewLogger("chain"),
		now:     time.Now,
	}
}

// WithClock overrides the confirmer's clock; test hook.
func (c *Confirmer) WithClock(now func() time.Time) *Confirmer {
	c.now = now
	return c
}

// RequestDeposit opens a deposit leg: the user is handed the pool wallet with
// the lowest on-chain balance and a window to send funds to it. Nothing is
// reserved; the credit happens at confirmation.
func (c *Confirmer) RequestDeposit(ctx context.Context, userID uuid.UUID, amount int64) (*model.BlockchainTransfer, error) {
	if amount <= 0 {
		return nil, model.BadRequestf("amount must be positive")
	}

	wallet, err := c.pickWallet(ctx, false)
	if err != nil {
		return nil, err
	}

	now := c.now()
	transfer := &model.BlockchainTransfer{
		ID:        uuid.New(),
		UserID:    userID,
		ToAddress: wallet.Address,
		Amount:    amount,
		Type:      model.TransferTypeDeposit,
		Status:    model.TransferStatusPending,
		ExpiresAt: now.Add(c.cfg.TransferTTL),
	}
	err = c.store.ExecTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Accounts().Get(ctx, userID); err != nil {
			return err
		}
		return tx.Transfers().Create(ctx, transfer)
	})
	if err != nil {
		return nil, err
	}

	c.log.Info().
		Str("transfer_id", transfer.ID.String()).
		Str("user_id", userID.String()).
		Int64("amount", amount).
		Msg("deposit requested")
	return transfer, nil
}

// RequestWithdrawal opens a withdrawal leg. The user's funds are reserved
// immediately — amount plus the withdrawal fee — so a pending withdrawal
// cannot be double-spent against platform settlements.
func (c *Confirmer) RequestWithdrawal(ctx context.Context, userID uuid.UUID, toAddress string, amount int64) (*model.BlockchainTransfer, error) {
	if amount <= 0 {
		return nil, model.BadRequestf("amount must be positive")
	}
	if toAddress == "" {
		return nil, model.BadRequestf("destination address is required")
	}

	now := c.now()
	transfer := &model.BlockchainTransfer{
		ID:        uuid.New(),
		UserID:    userID,
		ToAddress: toAddress,
		Amount:    amount,
		Type:      model.TransferTypeWithdrawal,
		Status:    model.TransferStatusPending,
		ExpiresAt: now.Add(c.cfg.TransferTTL),
	}
	err := c.store.ExecTx(ctx, func(tx store.Tx) error {
		account, err := tx.Accounts().GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		need := ledger.DebitWithPenalty(amount, c.cfg.WithdrawalFee)
		if account.Available() < need {
			return model.BadRequestf("insufficient balance: need %d, available %d", need, account.Available())
		}
		if err := tx.Transfers().Create(ctx, transfer); err != nil {
			return err
		}
		return c.ledger.Reserve(ctx, tx, ledger.TransferRef(transfer.ID), userID, need)
	})
	if err != nil {
		return nil, err
	}

	c.log.Info().
		Str("transfer_id", transfer.ID.String()).
		Str("user_id", userID.String()).
		Int64("amount", amount).
		Msg("withdrawal requested")
	return transfer, nil
}

// ConfirmDeposit verifies the claimed hash against the chain and, if the fact
// checks out, credits the user net of the deposit fee. The chain read is the
// source of truth: a hash the node reports as not found leaves the transfer
// pending and surfaces NotFound to the caller.
func (c *Confirmer) ConfirmDeposit(ctx context.Context, transferID uuid.UUID, hash string) error {
	transfer, err := c.getTransfer(ctx, transferID)
	if err != nil {
		return err
	}
	if transfer.Type != model.TransferTypeDeposit {
		return model.BadRequestf("transfer %s is not a deposit", transferID)
	}
	if transfer.Status != model.TransferStatusPending {
		return model.Conflictf("transfer is %s, not %s", transfer.Status, model.TransferStatusPending)
	}

	chainTx, err := c.rpcGetTransaction(ctx, hash)
	if err != nil {
		return err
	}
	if chainTx.To != transfer.ToAddress {
		return model.BadRequestf("chain transaction pays %s, expected %s", chainTx.To, transfer.ToAddress)
	}
	if chainTx.Amount < transfer.Amount {
		return model.BadRequestf("chain transaction carries %d, expected at least %d", chainTx.Amount, transfer.Amount)
	}

	err = c.store.ExecTx(ctx, func(tx store.Tx) error {
		t, err := tx.Transfers().GetForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if t.Status != model.TransferStatusPending {
			return model.Conflictf("transfer is %s, not %s", t.Status, model.TransferStatusPending)
		}
		if err := c.ledger.SettleCredit(ctx, tx, ledger.TransferRef(t.ID), t.UserID, t.Amount, c.cfg.DepositFee); err != nil {
			return err
		}
		t.Status = model.TransferStatusSuccess
		t.Hash = chainTx.Hash
		t.FromAddress = chainTx.From
		return tx.Transfers().Update(ctx, t)
	})
	if err != nil {
		return err
	}

	c.countConfirmation("deposit", "success")
	c.log.Info().
		Str("transfer_id", transferID.String()).
		Str("hash", hash).
		Msg("deposit confirmed")
	c.notif.Notify(transfer.UserID, "Your deposit was confirmed")
	c.events.Publish(notify.EventTransferFinalized, transferID, nil)
	return nil
}

// ConfirmWithdrawal broadcasts the withdrawal from the richest pool wallet
// and finalizes the leg: the reservation is released and the user debited
// amount plus the withdrawal fee. A broadcast that succeeds but whose
// finalize transaction fails leaves the transfer pending with the hash
// unrecorded; the retry path re-reads the chain before re-broadcasting.
func (c *Confirmer) ConfirmWithdrawal(ctx context.Context, transferID uuid.UUID) error {
	transfer, err := c.getTransfer(ctx, transferID)
	if err != nil {
		return err
	}
	if transfer.Type != model.TransferTypeWithdrawal {
		return model.BadRequestf("transfer %s is not a withdrawal", transferID)
	}
	if transfer.Status != model.TransferStatusPending {
		return model.Conflictf("transfer is %s, not %s", transfer.Status, model.TransferStatusPending)
	}

	wallet, err := c.pickWallet(ctx, true)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]interface{}{
		"from":        wallet.Address,
		"to":          transfer.ToAddress,
		"amount":      transfer.Amount,
		"private_key": wallet.PrivateKey,
	})
	if err != nil {
		return fmt.Errorf("marshal withdrawal: %w", err)
	}
	hash, err := c.rpcBroadcast(ctx, payload)
	if err != nil {
		return err
	}

	reserved := ledger.DebitWithPenalty(transfer.Amount, c.cfg.WithdrawalFee)
	err = c.store.ExecTx(ctx, func(tx store.Tx) error {
		t, err := tx.Transfers().GetForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if t.Status != model.TransferStatusPending {
			return model.Conflictf("transfer is %s, not %s", t.Status, model.TransferStatusPending)
		}
		ref := ledger.TransferRef(t.ID)
		if err := c.ledger.Release(ctx, tx, ref, t.UserID, reserved); err != nil {
			return err
		}
		if err := c.ledger.SettleDebit(ctx, tx, ref, t.UserID, t.Amount, c.cfg.WithdrawalFee); err != nil {
			return err
		}
		t.Status = model.TransferStatusSuccess
		t.Hash = hash
		t.FromAddress = wallet.Address
		return tx.Transfers().Update(ctx, t)
	})
	if err != nil {
		return err
	}

	c.countConfirmation("withdrawal", "success")
	c.log.Info().
		Str("transfer_id", transferID.String()).
		Str("hash", hash).
		Msg("withdrawal confirmed")
	c.notif.Notify(transfer.UserID, "Your withdrawal was broadcast")
	c.events.Publish(notify.EventTransferFinalized, transferID, nil)
	return nil
}

// CancelExpired fails a pending transfer whose window has elapsed. Invoked
// exclusively by the sweep. Expiring a withdrawal returns the reservation;
// an expired deposit never froze anything.
func (c *Confirmer) CancelExpired(ctx context.Context, transferID uuid.UUID) error {
	var userID uuid.UUID
	var kind model.TransferType
	err := c.store.ExecTx(ctx, func(tx store.Tx) error {
		t, err := tx.Transfers().GetForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		kind = t.Type
		if t.Status != model.TransferStatusPending {
			return model.Conflictf("transfer is %s, not %s", t.Status, model.TransferStatusPending)
		}
		if !t.Expired(c.now()) {
			return model.Conflictf("transfer has not expired yet")
		}

		if t.Type == model.TransferTypeWithdrawal {
			reserved := ledger.DebitWithPenalty(t.Amount, c.cfg.WithdrawalFee)
			if err := c.ledger.Release(ctx, tx, ledger.TransferRef(t.ID), t.UserID, reserved); err != nil {
				return err
			}
		}

		userID = t.UserID
		t.Status = model.TransferStatusCancelled
		return tx.Transfers().Update(ctx, t)
	})
	if err != nil {
		return err
	}

	c.countConfirmation(strings.ToLower(string(kind)), "cancelled")
	c.log.Info().Str("transfer_id", transferID.String()).Msg("transfer expired")
	c.notif.Notify(userID, "Your transfer expired and was cancelled")
	return nil
}

// AddWallet registers a pool wallet.
func (c *Confirmer) AddWallet(ctx context.Context, address, privateKey string) (*model.Wallet, error) {
	if address == "" || privateKey == "" {
		return nil, model.BadRequestf("address and private key are required")
	}
	w := &model.Wallet{ID: uuid.New(), Address: address, PrivateKey: privateKey}
	err := c.store.ExecTx(ctx, func(tx store.Tx) error {
		return tx.Wallets().Create(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// pickWallet selects a pool wallet by on-chain balance: the poorest for
// deposits, spreading inbound funds across the pool, and the richest for
// withdrawals, so one wallet can cover the amount.
func (c *Confirmer) pickWallet(ctx context.Context, richest bool) (*model.Wallet, error) {
	var wallets []*model.Wallet
	err := c.store.ExecTx(ctx, func(tx store.Tx) error {
		var err error
		wallets, err = tx.Wallets().List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(wallets) == 0 {
		return nil, model.NotFoundf("no pool wallets configured")
	}

	var best *model.Wallet
	var bestBalance int64
	for _, w := range wallets {
		balance, err := c.rpcWalletBalance(ctx, w.Address)
		if err != nil {
			c.log.Warn().Err(err).Str("address", w.Address).Msg("wallet balance unavailable, skipping")
			continue
		}
		if best == nil || (richest && balance > bestBalance) || (!richest && balance < bestBalance) {
			best, bestBalance = w, balance
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no pool wallet reachable", model.ErrInternal)
	}
	return best, nil
}

func (c *Confirmer) rpcWalletBalance(ctx context.Context, address string) (int64, error) {
	start := time.Now()
	balance, err := c.client.GetWalletBalance(ctx, address)
	c.observeRPC("get_wallet_balance", start, err)
	return balance, err
}

func (c *Confirmer) rpcGetTransaction(ctx context.Context, hash string) (*Tx, error) {
	start := time.Now()
	tx, err := c.client.GetTransaction(ctx, hash)
	c.observeRPC("get_transaction", start, err)
	return tx, err
}

func (c *Confirmer) rpcBroadcast(ctx context.Context, payload []byte) (string, error) {
	start := time.Now()
	hash, err := c.client.Broadcast(ctx, payload)
	c.observeRPC("broadcast", start, err)
	return hash, err
}

func (c *Confirmer) observeRPC(method string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.ChainRPCDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil && !model.IsNotFound(err) {
		c.metrics.ChainRPCErrors.WithLabelValues(method).Inc()
	}
}

func (c *Confirmer) countConfirmation(kind, status string) {
	if c.metrics != nil {
		c.metrics.ChainConfirmations.WithLabelValues(kind, status).Inc()
	}
}

func (c *Confirmer) getTransfer(ctx context.Context, transferID uuid.UUID) (*model.BlockchainTransfer, error) {
	var transfer *model.BlockchainTransfer
	err := c.store.ExecTx(ctx, func(tx store.Tx) error {
		var err error
		transfer, err = tx.Transfers().Get(ctx, transferID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return transfer, nil
}
