package methods

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/catalogfi/fusion/daemon/types"
	"github.com/catalogfi/fusion/pkg/fault"
	"github.com/catalogfi/fusion/pkg/fusion"
	"github.com/catalogfi/fusion/pkg/htlc"
	"github.com/catalogfi/fusion/pkg/order"
	"github.com/ethereum/go-ethereum/common"
)

var ErrInvalidParams = fault.New(fault.Validation, "invalid params")

// Method is a JSON-RPC procedure. caller is the wallet the request was
// authenticated as.
type Method interface {
	Name() string
	Query(ctx context.Context, cfg *types.CoreConfig, caller common.Address, params json.RawMessage) (json.RawMessage, error)
}

// All returns every procedure the daemon serves.
func All() []Method {
	return []Method{
		CreateOrder(),
		FillOrder(),
		CancelOrder(),
		CancelOrderByResolver(),
		GetOrder(),
		OrderIdentity(),
		Quote(),
		Deposit(),
		Claim(),
		Refund(),
		GetEscrow(),
		GetSecret(),
		IsActive(),
		EscrowCounter(),
		RegisterResolver(),
		DeregisterResolver(),
		SetAuthority(),
		Balance(),
	}
}

func decode(params json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

type createOrder struct{}

func CreateOrder() Method {
	return &createOrder{}
}

func (a *createOrder) Name() string {
	return "createOrder"
}

func (a *createOrder) Query(ctx context.Context, cfg *types.CoreConfig, caller common.Address, params json.RawMessage) (json.RawMessage, error) {
	var req types.RequestCreate
	if err := decode(params, &req); err != nil {
		return nil, err
	}

	escrow, err := cfg.Fusion.Create(ctx, caller, fusion.CreateRequest{
		Order:      req.Order,
		Parties:    req.Parties,
		Collateral: req.Collateral,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(escrow)
}

type fillOrder struct{}

func FillOrder() Method {
	return &fillOrder{}
}

func (a *fillOrder) Name() string {
	return "fillOrder"
}

func (a *fillOrder) Query(ctx context.Context, cfg *types.CoreConfig, caller common.Address, params json.RawMessage) (json.RawMessage, error) {
	var req types.RequestFill
	if err := decode(params, &req); err != nil {
		return nil, err
	}

	result, err := cfg.Fusion.Fill(ctx, caller, fusion.FillRequest{
		Maker:    req.Maker,
		Order:    req.Order,
		Parties:  req.Parties,
		Identity: req.Identity,
		Amount:   req.Amount,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

type cancelOrder struct{}

func CancelOrder() Method {
	return &cancelOrder{}
}

func (a *cancelOrder) Name() string {
	return "cancelOrder"
}

func (a *cancelOrder) Query(ctx context.Context, cfg *types.CoreConfig, caller common.Address, params json.RawMessage) (json.RawMessage, error) {
	var req types.RequestCancel
	if err := decode(params, &req); err != nil {
		return nil, err
	}

	escrow, err := cfg.Fusion.Cancel(ctx, caller, req.Identity, req.SrcIsNative)
	if err != nil {
		return nil, err
	}
	return json.Marshal(escrow)
}

type cancelOrderByResolver struct{}

func CancelOrderByResolver() Method {
	return &cancelOrderByResolver{}
}

func (a *cancelOrderByResolver) Name() string {
	return "cancelOrderByResolver"
}

func (a *cancelOrderByResolver) Query(ctx context.Context, cfg *types.CoreConfig, caller common.Address, params json.RawMessage) (json.RawMessage, error) {
	var req types.RequestCancelByResolver
	if err := decode(params, &req); err != nil {
		return nil, err
	}

	result, err := cfg.Fusion.CancelByResolver(ctx, caller, fusion.CancelByResolverRequest{
		Maker:       req.Maker,
		Order:       req.Order,
		Parties:     req.Parties,
		RewardLimit: req.RewardLimit,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

type getOrder struct{}

func GetOrder() Method {
	return &getOrder{}
}

func (a *getOrder) Name() string {
	return "getOrder"
}

func (a *getOrder) Query(ctx context.Context, cfg *types.CoreConfig, caller common.Address, params json.RawMessage) (json.RawMessage, error) {
	var req types.RequestGetOrder
	if err := decode(params, &req); err != nil {
		return nil, err
	}

	escrow, err := cfg.Fusion.Escrow(ctx, req.Address)
	if err != nil {
		return nil, err
	}
	return json.Marshal(escrow)
}

type orderIdentity struct{}

func OrderIdentity() Method {
	return &orderIdentity{}
}

func (a *orderIdentity) Name() string {
	return "orderIdentity"
}

func (a *orderIdentity) Query(ctx context.Context, cfg *types.CoreConfig, caller common.Address, params json.RawMessage) (json.RawMessage, error) {
	var req types.RequestIdentity
	if err := decode(params, &req); err != nil {
		return nil, err
	}

	maker := caller
	if req.Maker != nil {
		maker = *req.Maker
	}
	identity, err := order.Identity(req.Order, req.Parties)
	if err != nil {
		return nil, err
	}
	return json.Marshal(types.ResponseIdentity{
		Identity: identity,
		Escrow:   order.EscrowAddress(maker, identity),
	})
}

type quote struct{}

func Quote() Method {
	return &quote{}
}

func (a *quote) Name() string {
	return "quote"
}

func (a *quote) Query(ctx context.Context, cfg *types.CoreConfig, caller common.Address, params json.RawMessage) (json.RawMessage, error) {
	var req types.RequestQuote
	if err := decode(params, &req); err != nil {
		return nil, err
	}

	q, err := cfg.Fusion.Quote(ctx, req.Order, req.SrcFilled)
	if err != nil {
		return nil, err
	}
	return json.Marshal(q)
}

type deposit struct{}

func Deposit() Method {
	return &deposit{}
}

func (a *deposit) Name() string {
	return "deposit"
}

func (a *deposit) Query(ctx context.Context, cfg *types.CoreConfig, caller common.Address, params json.RawMessage) (json.RawMessage, error) {
	var req types.RequestDeposit
	if err := decode(params, &req); err != nil {
		return nil, err
	}

	id, err := cfg.HTLC.Deposit(ctx, caller, htlc.DepositRequest{
		Depositor:   caller,
		Token:       req.Token,
		Amount:      req.Amount,
		Beneficiary: req.Beneficiary,
		HashLock:    req.HashLock,
		Duration:    req.Duration,
		SrcChainID:  req.SrcChainID,
		OrderHash:   req.OrderHash,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(types.ResponseDeposit{ID: id})
}

type claim struct{}

func Claim() Method {
	return &claim{}
}

func (a *claim) Name() string {
	return "claim"
}

func (a *claim) Query(ctx context.Context, cfg *types.CoreConfig, caller common.Address, params json.RawMessage) (json.RawMessage, error) {
	var req types.RequestClaim
	if err := decode(params, &req); err != nil {
		return nil, err
	}

	if err := cfg.HTLC.Claim(ctx, caller, req.ID, req.Secret); err != nil {
		return nil, err
	}
	return json.Marshal("escrow claimed")
}

type refund struct{}

func Refund() Method {
	return &refund{}
}

func (a *refund) Name() string {
	return "refund"
}

func (a *refund) Query(ctx context.Context, cfg *types.CoreConfig, caller common.Address, params json.RawMessage) (json.RawMessage, error) {
	var req types.RequestEscrowID
	if err := decode(params, &req); err != nil {
		return nil, err
	}

	if err := cfg.HTLC.Refund(ctx, caller, req.ID); err != nil {
		return nil, err
	}
	return json.Marshal("escrow refunded")
}

type getEscrow struct{}

func GetEscrow() Method {
	return &getEscrow{}
}

func (a *getEscrow) Name() string {
	return "getEscrow"
}

func (a *getEscrow) Query(ctx context.Context, cfg *types.CoreConfig, caller common.Address, params json.RawMessage) (json.RawMessage, error) {
	var req types.RequestEscrowID
	if err := decode(params, &req); err != nil {
		return nil, err
	}

	escrow, err := cfg.HTLC.Escrow(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(escrow)
}

type getSecret struct{}

func GetSecret() Method {
	return &getSecret{}
}

func (a *getSecret) Name() string {
	return "getSecret"
}

func (a *getSecret) Query(ctx context.Context, cfg *types.CoreConfig, caller common.Address, params json.RawMessage) (json.RawMessage, error) {
	var req types.RequestEscrowID
	if err := decode(params, &req); err != nil {
		return nil, err
	}

	secret, revealed, err := cfg.HTLC.Secret(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(types.ResponseSecret{Secret: secret, Revealed: revealed})
}

type isActive struct{}

func IsActive() Method {
	return &isActive{}
}

func (a *isActive) Name() string {
	return "isActive"
}

func (a *isActive) Query(ctx context.Context, cfg *types.CoreConfig, caller common.Address, params json.RawMessage) (json.RawMessage, error) {
	var req types.RequestEscrowID
	if err := decode(params, &req); err != nil {
		return nil, err
	}

	active, err := cfg.HTLC.IsActive(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(types.ResponseActive{Active: active})
}

type escrowCounter struct{}

func EscrowCounter() Method {
	return &escrowCounter{}
}

func (a *escrowCounter) Name() string {
	return "escrowCounter"
}

func (a *escrowCounter) Query(ctx context.Context, cfg *types.CoreConfig, caller common.Address, params json.RawMessage) (json.RawMessage, error) {
	counter, err := cfg.HTLC.Counter(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(types.ResponseCounter{Counter: counter})
}

type registerResolver struct{}

func RegisterResolver() Method {
	return &registerResolver{}
}

func (a *registerResolver) Name() string {
	return "registerResolver"
}

func (a *registerResolver) Query(ctx context.Context, cfg *types.CoreConfig, caller common.Address, params json.RawMessage) (json.RawMessage, error) {
	var req types.RequestResolver
	if err := decode(params, &req); err != nil {
		return nil, err
	}

	if err := cfg.Whitelist.Register(ctx, caller, req.Resolver); err != nil {
		return nil, err
	}
	return json.Marshal("resolver registered")
}

type deregisterResolver struct{}

func DeregisterResolver() Method {
	return &deregisterResolver{}
}

func (a *deregisterResolver) Name() string {
	return "deregisterResolver"
}

func (a *deregisterResolver) Query(ctx context.Context, cfg *types.CoreConfig, caller common.Address, params json.RawMessage) (json.RawMessage, error) {
	var req types.RequestResolver
	if err := decode(params, &req); err != nil {
		return nil, err
	}

	if err := cfg.Whitelist.Deregister(ctx, caller, req.Resolver); err != nil {
		return nil, err
	}
	return json.Marshal("resolver deregistered")
}

type setAuthority struct{}

func SetAuthority() Method {
	return &setAuthority{}
}

func (a *setAuthority) Name() string {
	return "setAuthority"
}

func (a *setAuthority) Query(ctx context.Context, cfg *types.CoreConfig, caller common.Address, params json.RawMessage) (json.RawMessage, error) {
	var req types.RequestAuthority
	if err := decode(params, &req); err != nil {
		return nil, err
	}
	if err := cfg.Whitelist.SetAuthority(ctx, caller, req.Authority); err != nil {
		return nil, err
	}
	return json.Marshal("authority changed")
}

type balance struct{}

func Balance() Method {
	return &balance{}
}

func (a *balance) Name() string {
	return "balance"
}

func (a *balance) Query(ctx context.Context, cfg *types.CoreConfig, caller common.Address, params json.RawMessage) (json.RawMessage, error) {
	var req types.RequestBalance
	if err := decode(params, &req); err != nil {
		return nil, err
	}

	account := caller
	if req.Account != nil {
		account = *req.Account
	}
	bal, err := cfg.Ledger.Balance(ctx, req.Asset, account)
	if err != nil {
		return nil, err
	}
	return json.Marshal(types.ResponseBalance{Asset: req.Asset, Account: account, Balance: bal})
}
