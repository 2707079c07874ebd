package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/catalogfi/fusion/rpcclient"
	"github.com/catalogfi/fusion/utils"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func Login(rpcClient rpcclient.Client, config utils.Config, configPath string) *cobra.Command {
	var (
		key string
	)
	var cmd = &cobra.Command{
		Use:   "login",
		Short: "Sign in with a wallet key and store the session token",
		Run: func(c *cobra.Command, args []string) {
			if key == "" {
				key = os.Getenv("FUSION_KEY")
			}
			privKey, err := crypto.HexToECDSA(strings.TrimPrefix(key, "0x"))
			if err != nil {
				cobra.CheckErr(fmt.Errorf("invalid key: %w", err))
			}

			token, err := rpcClient.Login(privKey)
			if err != nil {
				cobra.CheckErr(fmt.Errorf("failed to login: %w", err))
			}
			config.Token = token
			if err := utils.SaveConfig(configPath, config); err != nil {
				cobra.CheckErr(fmt.Errorf("failed to save token: %w", err))
			}
			color.Green("Logged in as %v", crypto.PubkeyToAddress(privKey.PublicKey).Hex())
		}}
	cmd.Flags().StringVar(&key, "key", "", "hex encoded private key (default: $FUSION_KEY)")
	return cmd
}
