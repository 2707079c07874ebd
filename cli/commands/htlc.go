package commands

import (
	"fmt"

	"github.com/catalogfi/fusion/daemon/types"
	"github.com/catalogfi/fusion/pkg/htlc"
	"github.com/catalogfi/fusion/rpcclient"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func Deposit(rpcClient rpcclient.Client) *cobra.Command {
	var (
		token       string
		amount      uint64
		beneficiary string
		hashLock    string
		duration    uint64
		srcChainID  uint32
		orderHash   string
	)
	var cmd = &cobra.Command{
		Use:   "deposit",
		Short: "Lock funds for a beneficiary behind a hash lock",
		Run: func(c *cobra.Command, args []string) {
			var hash hexutil.Bytes
			if orderHash != "" {
				decoded, err := hexutil.Decode(orderHash)
				if err != nil {
					cobra.CheckErr(fmt.Errorf("invalid order hash: %w", err))
				}
				hash = decoded
			}
			resp, err := rpcClient.Deposit(types.RequestDeposit{
				Token:       parseAddress("token", token),
				Amount:      amount,
				Beneficiary: parseAddress("beneficiary", beneficiary),
				HashLock:    common.HexToHash(hashLock),
				Duration:    duration,
				SrcChainID:  srcChainID,
				OrderHash:   hash,
			})
			if err != nil {
				cobra.CheckErr(fmt.Errorf("failed to deposit: %w", err))
			}
			color.Green("Funds locked")
			printResult(resp)
		}}
	cmd.Flags().StringVar(&token, "token", "", "token address")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "amount to lock")
	cmd.Flags().StringVar(&beneficiary, "beneficiary", "", "beneficiary address")
	cmd.Flags().StringVar(&hashLock, "hash-lock", "", "sha256 of the secret")
	cmd.Flags().Uint64Var(&duration, "duration", 0, "seconds until the depositor can refund")
	cmd.Flags().Uint32Var(&srcChainID, "src-chain-id", 0, "chain id of the source order")
	cmd.Flags().StringVar(&orderHash, "order-hash", "", "hash of the source order")
	cmd.MarkFlagRequired("token")
	cmd.MarkFlagRequired("amount")
	cmd.MarkFlagRequired("beneficiary")
	cmd.MarkFlagRequired("hash-lock")
	cmd.MarkFlagRequired("duration")
	return cmd
}

func Claim(rpcClient rpcclient.Client) *cobra.Command {
	var (
		id     uint64
		secret string
	)
	var cmd = &cobra.Command{
		Use:   "claim",
		Short: "Claim an escrow with its secret",
		Run: func(c *cobra.Command, args []string) {
			preimage, err := hexutil.Decode(secret)
			if err != nil {
				cobra.CheckErr(fmt.Errorf("invalid secret: %w", err))
			}
			if _, err := rpcClient.Claim(types.RequestClaim{ID: id, Secret: preimage}); err != nil {
				cobra.CheckErr(fmt.Errorf("failed to claim: %w", err))
			}
			color.Green("Escrow %d claimed", id)
		}}
	cmd.Flags().Uint64Var(&id, "id", 0, "escrow id")
	cmd.Flags().StringVar(&secret, "secret", "", "hex encoded secret")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("secret")
	return cmd
}

func Refund(rpcClient rpcclient.Client) *cobra.Command {
	var (
		id uint64
	)
	var cmd = &cobra.Command{
		Use:   "refund",
		Short: "Take back an expired escrow",
		Run: func(c *cobra.Command, args []string) {
			if _, err := rpcClient.Refund(types.RequestEscrowID{ID: id}); err != nil {
				cobra.CheckErr(fmt.Errorf("failed to refund: %w", err))
			}
			color.Green("Escrow %d refunded", id)
		}}
	cmd.Flags().Uint64Var(&id, "id", 0, "escrow id")
	cmd.MarkFlagRequired("id")
	return cmd
}

// Escrow groups the read only escrow queries.
func Escrow(rpcClient rpcclient.Client) *cobra.Command {
	var (
		id uint64
	)
	var cmd = &cobra.Command{
		Use:   "escrow",
		Short: "Show a hash time locked escrow",
		Run: func(c *cobra.Command, args []string) {
			resp, err := rpcClient.GetEscrow(types.RequestEscrowID{ID: id})
			if err != nil {
				cobra.CheckErr(fmt.Errorf("failed to get escrow: %w", err))
			}
			printResult(resp)
		}}
	cmd.PersistentFlags().Uint64Var(&id, "id", 0, "escrow id")

	cmd.AddCommand(&cobra.Command{
		Use:   "secret",
		Short: "Show the secret revealed by a claim",
		Run: func(c *cobra.Command, args []string) {
			resp, err := rpcClient.GetSecret(types.RequestEscrowID{ID: id})
			if err != nil {
				cobra.CheckErr(fmt.Errorf("failed to get secret: %w", err))
			}
			printResult(resp)
		}})
	cmd.AddCommand(&cobra.Command{
		Use:   "active",
		Short: "Check whether an escrow can still be claimed",
		Run: func(c *cobra.Command, args []string) {
			resp, err := rpcClient.IsActive(types.RequestEscrowID{ID: id})
			if err != nil {
				cobra.CheckErr(fmt.Errorf("failed to check escrow: %w", err))
			}
			printResult(resp)
		}})
	cmd.AddCommand(&cobra.Command{
		Use:   "counter",
		Short: "Show the last assigned escrow id",
		Run: func(c *cobra.Command, args []string) {
			resp, err := rpcClient.EscrowCounter()
			if err != nil {
				cobra.CheckErr(fmt.Errorf("failed to get counter: %w", err))
			}
			printResult(resp)
		}})
	return cmd
}

func NewSecret() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "new-secret",
		Short: "Generate a secret and its hash lock",
		Run: func(c *cobra.Command, args []string) {
			secret, hash, err := htlc.NewSecret()
			if err != nil {
				cobra.CheckErr(fmt.Errorf("failed to generate secret: %w", err))
			}
			color.Green("secret:    %v", hexutil.Encode(secret))
			color.Green("hash lock: %v", hash.Hex())
		}}
	return cmd
}
