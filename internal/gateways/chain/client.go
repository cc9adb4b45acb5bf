// Package chain talks to the deployed coinflip contract over JSON-RPC. It
// implements the authority read surface and the quest transactions.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/irysflip/questsync/internal/domain/quests"
)

const defaultPollInterval = 2 * time.Second

// Backend is the node connection. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// TxRequest describes a transaction awaiting approval.
type TxRequest struct {
	Method string
	Quest  quests.QuestType
	From   common.Address
	To     common.Address
}

// Approver decides whether a transaction may be signed. Returning false
// declines it, which surfaces as quests.ErrTxRejected.
type Approver func(ctx context.Context, req TxRequest) (bool, error)

type Config struct {
	RPCURL              string
	ChainID             int64
	Contract            string
	PrivateKey          string
	ABIPath             string
	ReceiptPollInterval time.Duration
}

type Client struct {
	backend      Backend
	address      common.Address
	abi          abi.ABI
	contract     *bind.BoundContract
	auth         *bind.TransactOpts
	approver     Approver
	pollInterval time.Duration
	loginIndex   int
	hasLogin     bool

	mu     sync.Mutex
	claims map[common.Hash]quests.QuestType
}

// Dial connects to cfg.RPCURL. Without a private key the client is read only.
func Dial(ctx context.Context, cfg Config, approver Approver) (*Client, error) {
	backend, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rpc: %w", err)
	}

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		chainID, err = backend.ChainID(ctx)
		if err != nil {
			backend.Close()
			return nil, fmt.Errorf("failed to read chain id: %w", err)
		}
	}

	var key *ecdsa.PrivateKey
	if cfg.PrivateKey != "" {
		key, err = crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			backend.Close()
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
	}

	c, err := NewClient(backend, cfg, chainID, key, approver)
	if err != nil {
		backend.Close()
		return nil, err
	}

	slog.Info("Connected to chain",
		slog.String("type", "chain"),
		slog.String("chain_id", chainID.String()),
		slog.String("contract", c.address.Hex()),
		slog.Bool("signer", c.auth != nil))
	return c, nil
}

func NewClient(backend Backend, cfg Config, chainID *big.Int, key *ecdsa.PrivateKey, approver Approver) (*Client, error) {
	if !common.IsHexAddress(cfg.Contract) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.Contract)
	}
	parsed, err := LoadABI(cfg.ABIPath)
	if err != nil {
		return nil, err
	}

	address := common.HexToAddress(cfg.Contract)
	c := &Client{
		backend:      backend,
		address:      address,
		abi:          parsed,
		contract:     bind.NewBoundContract(address, parsed, backend, backend, backend),
		approver:     approver,
		pollInterval: cfg.ReceiptPollInterval,
		claims:       make(map[common.Hash]quests.QuestType),
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	c.loginIndex, c.hasLogin = lastLoginIndex(parsed)

	if key != nil {
		auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
		if err != nil {
			return nil, fmt.Errorf("failed to create transactor: %w", err)
		}
		c.auth = auth
	}
	return c, nil
}

// Signer is the address transactions are sent from, zero when read only.
func (c *Client) Signer() common.Address {
	if c.auth == nil {
		return common.Address{}
	}
	return c.auth.From
}

func (c *Client) CanTransact() bool { return c.auth != nil }

func (c *Client) Close() {
	if closer, ok := c.backend.(interface{ Close() }); ok {
		closer.Close()
	}
}

func (c *Client) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return out, nil
}

func (c *Client) GetPlayerQuestStatus(ctx context.Context, player common.Address) (quests.PlayerQuestState, error) {
	out, err := c.call(ctx, methodQuestStatus, player)
	if err != nil {
		return quests.PlayerQuestState{}, err
	}
	if len(out) < 7 {
		return quests.PlayerQuestState{}, fmt.Errorf("%s: expected 7 outputs, got %d", methodQuestStatus, len(out))
	}
	return quests.PlayerQuestState{
		DailyLoginCompleted:    toBool(out[0]),
		DailyFlipCompleted:     toBool(out[1]),
		WeeklyFlipsCompleted:   toBool(out[2]),
		MonthlyStreakCompleted: toBool(out[3]),
		DailyFlipsToday:        toUint64(out[4]),
		WeeklyFlips:            toUint64(out[5]),
		MonthlyStreak:          toUint64(out[6]),
	}, nil
}

// LastLoginTimestamp reads the login anchor from getPlayerData. Contracts
// without that getter report 0, which the reconciler treats as never logged in.
func (c *Client) LastLoginTimestamp(ctx context.Context, player common.Address) (int64, error) {
	if !c.hasLogin {
		return 0, nil
	}
	out, err := c.call(ctx, methodPlayerData, player)
	if err != nil {
		return 0, err
	}
	if c.loginIndex >= len(out) {
		return 0, fmt.Errorf("%s: missing %s output", methodPlayerData, outputLastLogin)
	}
	return int64(toUint64(out[c.loginIndex])), nil
}

func (c *Client) CanClaimQuestReward(ctx context.Context, player common.Address, quest quests.QuestType) (bool, error) {
	out, err := c.call(ctx, methodCanClaim, player, uint8(quest))
	if err != nil {
		return false, err
	}
	if len(out) == 0 {
		return false, fmt.Errorf("%s: empty result", methodCanClaim)
	}
	return toBool(out[0]), nil
}

func (c *Client) GetQuestRewardAmount(ctx context.Context, player common.Address, quest quests.QuestType) (*big.Int, error) {
	out, err := c.call(ctx, methodRewardAmount, player, uint8(quest))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty result", methodRewardAmount)
	}
	return toBig(out[0]), nil
}

// Requirements reads the three threshold getters. Any missing getter fails
// the whole read so the caller falls back to defaults.
func (c *Client) Requirements(ctx context.Context) (quests.Requirements, error) {
	var req quests.Requirements
	for _, r := range []struct {
		method string
		dst    *uint64
	}{
		{methodDailyReq, &req.DailyFlips},
		{methodWeeklyReq, &req.WeeklyFlips},
		{methodMonthlyReq, &req.MonthlyStreak},
	} {
		if _, ok := c.abi.Methods[r.method]; !ok {
			return quests.Requirements{}, fmt.Errorf("abi has no %s getter", r.method)
		}
		out, err := c.call(ctx, r.method)
		if err != nil {
			return quests.Requirements{}, err
		}
		if len(out) == 0 {
			return quests.Requirements{}, fmt.Errorf("%s: empty result", r.method)
		}
		*r.dst = toUint64(out[0])
	}
	return req, nil
}

func (c *Client) CompleteDailyLogin(ctx context.Context) (common.Hash, error) {
	return c.transact(ctx, quests.DailyLogin, methodCompleteLogin)
}

func (c *Client) ClaimQuestReward(ctx context.Context, quest quests.QuestType) (common.Hash, error) {
	hash, err := c.transact(ctx, quest, methodClaimReward, uint8(quest))
	if err == nil {
		c.expectClaim(hash, quest)
	}
	return hash, err
}

// expectClaim remembers which quest a claim transaction pays out, so its
// receipt only counts the matching reward event.
func (c *Client) expectClaim(hash common.Hash, quest quests.QuestType) {
	c.mu.Lock()
	c.claims[hash] = quest
	c.mu.Unlock()
}

func (c *Client) takeClaim(hash common.Hash) (quests.QuestType, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	quest, ok := c.claims[hash]
	delete(c.claims, hash)
	return quest, ok
}

func (c *Client) transact(ctx context.Context, quest quests.QuestType, method string, args ...interface{}) (common.Hash, error) {
	if c.auth == nil {
		return common.Hash{}, quests.ErrReadOnly
	}
	if c.approver != nil {
		ok, err := c.approver(ctx, TxRequest{Method: method, Quest: quest, From: c.auth.From, To: c.address})
		if err != nil {
			return common.Hash{}, fmt.Errorf("approval failed: %w", err)
		}
		if !ok {
			return common.Hash{}, quests.ErrTxRejected
		}
	}

	opts := *c.auth
	opts.Context = ctx
	tx, err := c.contract.Transact(&opts, method, args...)
	if err != nil {
		return common.Hash{}, classify(err)
	}

	slog.Info("Transaction sent",
		slog.String("type", "chain"),
		slog.String("method", method),
		slog.String("quest", quest.String()),
		slog.String("tx", tx.Hash().Hex()),
		slog.Uint64("nonce", tx.Nonce()))
	return tx.Hash(), nil
}

// WaitConfirmed polls for the receipt of hash until it is mined or ctx ends.
func (c *Client) WaitConfirmed(ctx context.Context, hash common.Hash) (*quests.TxReceipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return c.settle(ctx, receipt), nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			slog.Warn("Receipt lookup failed, retrying",
				slog.String("type", "chain"),
				slog.String("tx", hash.Hex()),
				slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) settle(ctx context.Context, receipt *types.Receipt) *quests.TxReceipt {
	quest, claim := c.takeClaim(receipt.TxHash)
	out := &quests.TxReceipt{
		TxHash:    receipt.TxHash,
		Succeeded: receipt.Status == types.ReceiptStatusSuccessful,
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if out.Succeeded {
		out.ClaimedAmount = c.claimedAmount(receipt.Logs, quest, claim)
		return out
	}
	out.RevertReason = c.revertReason(ctx, receipt)
	return out
}

type rewardClaimed struct {
	Player    common.Address
	QuestType uint8
	Amount    *big.Int
}

// claimedAmount sums the QuestRewardClaimed events the contract emitted for
// the signer. When the claimed quest is known only its events count.
func (c *Client) claimedAmount(logs []*types.Log, quest quests.QuestType, claim bool) *big.Int {
	event := c.abi.Events[eventRewardClaimed]
	var total *big.Int
	for _, l := range logs {
		if l == nil || l.Address != c.address || len(l.Topics) == 0 || l.Topics[0] != event.ID {
			continue
		}
		var ev rewardClaimed
		if err := c.contract.UnpackLog(&ev, eventRewardClaimed, *l); err != nil {
			slog.Warn("Failed to decode reward event",
				slog.String("type", "chain"),
				slog.String("tx", l.TxHash.Hex()),
				slog.Any("error", err))
			continue
		}
		if c.auth != nil && ev.Player != c.auth.From {
			continue
		}
		if claim && ev.QuestType != uint8(quest) {
			continue
		}
		if total == nil {
			total = new(big.Int)
		}
		total.Add(total, ev.Amount)
	}
	return total
}

// revertReason replays the reverted transaction at its block to recover the
// revert string. It returns "" when the node cannot tell.
func (c *Client) revertReason(ctx context.Context, receipt *types.Receipt) string {
	tx, _, err := c.backend.TransactionByHash(ctx, receipt.TxHash)
	if err != nil || tx == nil {
		return ""
	}
	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return ""
	}
	msg := ethereum.CallMsg{
		From:  from,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}
	_, err = c.backend.CallContract(ctx, msg, receipt.BlockNumber)
	if err == nil {
		return ""
	}
	return revertMessage(err)
}

func toBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func toBig(v interface{}) *big.Int {
	if b, ok := v.(*big.Int); ok && b != nil {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func toUint64(v interface{}) uint64 {
	switch n := v.(type) {
	case *big.Int:
		if n == nil || n.Sign() < 0 {
			return 0
		}
		if !n.IsUint64() {
			return ^uint64(0)
		}
		return n.Uint64()
	case uint8:
		return uint64(n)
	case uint64:
		return n
	}
	return 0
}
