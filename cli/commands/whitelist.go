package commands

import (
	"fmt"

	"github.com/catalogfi/fusion/daemon/types"
	"github.com/catalogfi/fusion/rpcclient"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func Register(rpcClient rpcclient.Client) *cobra.Command {
	var (
		resolver string
	)
	var cmd = &cobra.Command{
		Use:   "register",
		Short: "Whitelist a resolver",
		Run: func(c *cobra.Command, args []string) {
			addr := parseAddress("resolver", resolver)
			if _, err := rpcClient.RegisterResolver(types.RequestResolver{Resolver: addr}); err != nil {
				cobra.CheckErr(fmt.Errorf("failed to register resolver: %w", err))
			}
			color.Green("Resolver %v registered", addr.Hex())
		}}
	cmd.Flags().StringVar(&resolver, "resolver", "", "resolver address")
	cmd.MarkFlagRequired("resolver")
	return cmd
}

func Deregister(rpcClient rpcclient.Client) *cobra.Command {
	var (
		resolver string
	)
	var cmd = &cobra.Command{
		Use:   "deregister",
		Short: "Remove a resolver from the whitelist",
		Run: func(c *cobra.Command, args []string) {
			addr := parseAddress("resolver", resolver)
			if _, err := rpcClient.DeregisterResolver(types.RequestResolver{Resolver: addr}); err != nil {
				cobra.CheckErr(fmt.Errorf("failed to deregister resolver: %w", err))
			}
			color.Green("Resolver %v deregistered", addr.Hex())
		}}
	cmd.Flags().StringVar(&resolver, "resolver", "", "resolver address")
	cmd.MarkFlagRequired("resolver")
	return cmd
}

func SetAuthority(rpcClient rpcclient.Client) *cobra.Command {
	var (
		authority string
	)
	var cmd = &cobra.Command{
		Use:   "set-authority",
		Short: "Hand the whitelist over to a new authority",
		Run: func(c *cobra.Command, args []string) {
			addr := parseAddress("authority", authority)
			if _, err := rpcClient.SetAuthority(types.RequestAuthority{Authority: addr}); err != nil {
				cobra.CheckErr(fmt.Errorf("failed to set authority: %w", err))
			}
			color.Green("Whitelist authority is now %v", addr.Hex())
		}}
	cmd.Flags().StringVar(&authority, "authority", "", "new authority address")
	cmd.MarkFlagRequired("authority")
	return cmd
}

func Balance(rpcClient rpcclient.Client) *cobra.Command {
	var (
		asset   string
		account string
	)
	var cmd = &cobra.Command{
		Use:   "balance",
		Short: "Show a ledger balance",
		Run: func(c *cobra.Command, args []string) {
			req := types.RequestBalance{Asset: parseAddress("asset", asset)}
			if account != "" {
				addr := parseAddress("account", account)
				req.Account = &addr
			}
			resp, err := rpcClient.Balance(req)
			if err != nil {
				cobra.CheckErr(fmt.Errorf("failed to get balance: %w", err))
			}
			printResult(resp)
		}}
	cmd.Flags().StringVar(&asset, "asset", "", "asset address")
	cmd.Flags().StringVar(&account, "account", "", "account address (default: you)")
	cmd.MarkFlagRequired("asset")
	return cmd
}
