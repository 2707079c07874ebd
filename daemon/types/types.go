package types

import (
	"github.com/catalogfi/fusion/pkg/fusion"
	"github.com/catalogfi/fusion/pkg/htlc"
	"github.com/catalogfi/fusion/pkg/ledger"
	"github.com/catalogfi/fusion/pkg/order"
	"github.com/catalogfi/fusion/pkg/whitelist"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

// CoreConfig is what every rpc method runs against.
type CoreConfig struct {
	Fusion    fusion.Service
	HTLC      htlc.Service
	Whitelist whitelist.Registry
	Ledger    ledger.Ledger
	Logger    *zap.Logger
}

type RequestCreate struct {
	Order      order.Order   `json:"order"`
	Parties    order.Parties `json:"parties"`
	Collateral uint64        `json:"collateral"`
}

type RequestFill struct {
	Maker    common.Address `json:"maker"`
	Order    order.Order    `json:"order"`
	Parties  order.Parties  `json:"parties"`
	Identity common.Hash    `json:"identity"`
	Amount   uint64         `json:"amount"`
}

type RequestCancel struct {
	Identity    common.Hash `json:"identity"`
	SrcIsNative bool        `json:"srcIsNative"`
}

type RequestCancelByResolver struct {
	Maker       common.Address `json:"maker"`
	Order       order.Order    `json:"order"`
	Parties     order.Parties  `json:"parties"`
	RewardLimit uint64         `json:"rewardLimit"`
}

type RequestGetOrder struct {
	Address common.Hash `json:"address"`
}

// RequestIdentity derives the escrow of Maker, or of the caller when unset.
type RequestIdentity struct {
	Maker   *common.Address `json:"maker,omitempty"`
	Order   order.Order     `json:"order"`
	Parties order.Parties   `json:"parties"`
}

type ResponseIdentity struct {
	Identity common.Hash `json:"identity"`
	Escrow   common.Hash `json:"escrow"`
}

type RequestQuote struct {
	Order     order.Order `json:"order"`
	SrcFilled uint64      `json:"srcFilled"`
}

// RequestDeposit locks funds of the caller.
type RequestDeposit struct {
	Token       common.Address `json:"token"`
	Amount      uint64         `json:"amount"`
	Beneficiary common.Address `json:"beneficiary"`
	HashLock    common.Hash    `json:"hashLock"`
	Duration    uint64         `json:"duration"`
	SrcChainID  uint32         `json:"srcChainId"`
	OrderHash   hexutil.Bytes  `json:"orderHash"`
}

type ResponseDeposit struct {
	ID uint64 `json:"id"`
}

type RequestClaim struct {
	ID     uint64        `json:"id"`
	Secret hexutil.Bytes `json:"secret"`
}

type RequestEscrowID struct {
	ID uint64 `json:"id"`
}

type ResponseSecret struct {
	Secret   hexutil.Bytes `json:"secret,omitempty"`
	Revealed bool          `json:"revealed"`
}

type ResponseActive struct {
	Active bool `json:"active"`
}

type ResponseCounter struct {
	Counter uint64 `json:"counter"`
}

type RequestResolver struct {
	Resolver common.Address `json:"resolver"`
}

type RequestAuthority struct {
	Authority common.Address `json:"authority"`
}

// RequestBalance reads the balance of Account, or of the caller when unset.
type RequestBalance struct {
	Asset   common.Address  `json:"asset"`
	Account *common.Address `json:"account,omitempty"`
}

type ResponseBalance struct {
	Asset   common.Address `json:"asset"`
	Account common.Address `json:"account"`
	Balance uint64         `json:"balance"`
}

type VerifySiwe struct {
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}
