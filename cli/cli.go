package cli

import (
	"github.com/catalogfi/fusion/cli/commands"
	"github.com/catalogfi/fusion/rpcclient"
	"github.com/catalogfi/fusion/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func Run(version string) error {
	var cmd = &cobra.Command{
		Use: "fusion",
		Run: func(c *cobra.Command, args []string) {
			c.HelpFunc()(c, args)
		},
		Version:           version,
		DisableAutoGenTag: true,
	}

	configPath := utils.DefaultConfigPath()
	envConfig, err := utils.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := utils.NewLogger(envConfig)
	if err != nil {
		return err
	}
	defer logger.Sync()

	protocol := "https"
	if envConfig.NoTLS {
		protocol = "http"
	}
	rpcClient := rpcclient.NewClient(protocol, envConfig.RPCServer, envConfig.Token)

	cmd.AddCommand(commands.Login(rpcClient, envConfig, configPath))
	cmd.AddCommand(commands.Create(rpcClient))
	cmd.AddCommand(commands.Fill(rpcClient))
	cmd.AddCommand(commands.Cancel(rpcClient))
	cmd.AddCommand(commands.CancelByResolver(rpcClient))
	cmd.AddCommand(commands.Order(rpcClient))
	cmd.AddCommand(commands.Identity(rpcClient))
	cmd.AddCommand(commands.Quote(rpcClient))
	cmd.AddCommand(commands.Deposit(rpcClient))
	cmd.AddCommand(commands.Claim(rpcClient))
	cmd.AddCommand(commands.Refund(rpcClient))
	cmd.AddCommand(commands.Escrow(rpcClient))
	cmd.AddCommand(commands.NewSecret())
	cmd.AddCommand(commands.Register(rpcClient))
	cmd.AddCommand(commands.Deregister(rpcClient))
	cmd.AddCommand(commands.SetAuthority(rpcClient))
	cmd.AddCommand(commands.Balance(rpcClient))
	if err := cmd.Execute(); err != nil {
		logger.Error("command failed", zap.Error(err))
		return err
	}
	return nil
}
