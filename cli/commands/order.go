package commands

import (
	"fmt"

	"github.com/catalogfi/fusion/daemon/types"
	"github.com/catalogfi/fusion/rpcclient"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func Create(rpcClient rpcclient.Client) *cobra.Command {
	var (
		requestFile string
	)
	var cmd = &cobra.Command{
		Use:   "create",
		Short: "Create an order and escrow its source amount",
		Run: func(c *cobra.Command, args []string) {
			var req types.RequestCreate
			readRequest(requestFile, &req)

			resp, err := rpcClient.CreateOrder(req)
			if err != nil {
				cobra.CheckErr(fmt.Errorf("failed to create order: %w", err))
			}
			color.Green("Order created")
			printResult(resp)
		}}
	cmd.Flags().StringVar(&requestFile, "request", "", "JSON file with the order, parties and collateral")
	cmd.MarkFlagRequired("request")
	return cmd
}

func Fill(rpcClient rpcclient.Client) *cobra.Command {
	var (
		requestFile string
		amount      uint64
	)
	var cmd = &cobra.Command{
		Use:   "fill",
		Short: "Fill an order at the current auction price",
		Run: func(c *cobra.Command, args []string) {
			var req types.RequestFill
			readRequest(requestFile, &req)
			if amount != 0 {
				req.Amount = amount
			}

			resp, err := rpcClient.FillOrder(req)
			if err != nil {
				cobra.CheckErr(fmt.Errorf("failed to fill order: %w", err))
			}
			color.Green("Order filled")
			printResult(resp)
		}}
	cmd.Flags().StringVar(&requestFile, "request", "", "JSON file with the maker, order, parties and identity")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "source amount to fill, overrides the request file")
	cmd.MarkFlagRequired("request")
	return cmd
}

func Cancel(rpcClient rpcclient.Client) *cobra.Command {
	var (
		identity string
		native   bool
	)
	var cmd = &cobra.Command{
		Use:   "cancel",
		Short: "Cancel your order and take back the unfilled amount",
		Run: func(c *cobra.Command, args []string) {
			resp, err := rpcClient.CancelOrder(types.RequestCancel{
				Identity:    common.HexToHash(identity),
				SrcIsNative: native,
			})
			if err != nil {
				cobra.CheckErr(fmt.Errorf("failed to cancel order: %w", err))
			}
			color.Green("Order cancelled")
			printResult(resp)
		}}
	cmd.Flags().StringVar(&identity, "identity", "", "order identity")
	cmd.Flags().BoolVar(&native, "native", false, "the source asset is native")
	cmd.MarkFlagRequired("identity")
	return cmd
}

func CancelByResolver(rpcClient rpcclient.Client) *cobra.Command {
	var (
		requestFile string
		rewardLimit uint64
	)
	var cmd = &cobra.Command{
		Use:   "cancel-by-resolver",
		Short: "Clean up an expired order for a premium",
		Run: func(c *cobra.Command, args []string) {
			var req types.RequestCancelByResolver
			readRequest(requestFile, &req)
			if rewardLimit != 0 {
				req.RewardLimit = rewardLimit
			}

			resp, err := rpcClient.CancelOrderByResolver(req)
			if err != nil {
				cobra.CheckErr(fmt.Errorf("failed to cancel order: %w", err))
			}
			color.Green("Order cancelled")
			printResult(resp)
		}}
	cmd.Flags().StringVar(&requestFile, "request", "", "JSON file with the maker, order and parties")
	cmd.Flags().Uint64Var(&rewardLimit, "reward-limit", 0, "highest premium to take, overrides the request file")
	cmd.MarkFlagRequired("request")
	return cmd
}

func Order(rpcClient rpcclient.Client) *cobra.Command {
	var (
		address string
	)
	var cmd = &cobra.Command{
		Use:   "order",
		Short: "Show an order escrow",
		Run: func(c *cobra.Command, args []string) {
			resp, err := rpcClient.GetOrder(types.RequestGetOrder{Address: common.HexToHash(address)})
			if err != nil {
				cobra.CheckErr(fmt.Errorf("failed to get order: %w", err))
			}
			printResult(resp)
		}}
	cmd.Flags().StringVar(&address, "escrow", "", "escrow address")
	cmd.MarkFlagRequired("escrow")
	return cmd
}

func Identity(rpcClient rpcclient.Client) *cobra.Command {
	var (
		requestFile string
		maker       string
	)
	var cmd = &cobra.Command{
		Use:   "identity",
		Short: "Compute the identity and escrow address of an order",
		Run: func(c *cobra.Command, args []string) {
			var req types.RequestIdentity
			readRequest(requestFile, &req)
			if maker != "" {
				addr := parseAddress("maker", maker)
				req.Maker = &addr
			}

			resp, err := rpcClient.OrderIdentity(req)
			if err != nil {
				cobra.CheckErr(fmt.Errorf("failed to compute identity: %w", err))
			}
			printResult(resp)
		}}
	cmd.Flags().StringVar(&requestFile, "request", "", "JSON file with the order and parties")
	cmd.Flags().StringVar(&maker, "maker", "", "maker address (default: you)")
	cmd.MarkFlagRequired("request")
	return cmd
}

func Quote(rpcClient rpcclient.Client) *cobra.Command {
	var (
		requestFile string
		filled      uint64
	)
	var cmd = &cobra.Command{
		Use:   "quote",
		Short: "Price a fill at the current time",
		Run: func(c *cobra.Command, args []string) {
			var req types.RequestQuote
			readRequest(requestFile, &req)
			if filled != 0 {
				req.SrcFilled = filled
			}

			resp, err := rpcClient.Quote(req)
			if err != nil {
				cobra.CheckErr(fmt.Errorf("failed to quote: %w", err))
			}
			printResult(resp)
		}}
	cmd.Flags().StringVar(&requestFile, "request", "", "JSON file with the order")
	cmd.Flags().Uint64Var(&filled, "amount", 0, "source amount to price, overrides the request file")
	cmd.MarkFlagRequired("request")
	return cmd
}
