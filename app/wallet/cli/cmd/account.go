package cmd

import (
	"context"
	"fmt"

	"github.com/blockj/node/foundation/blockchain/client"
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage the wallets kept by the node",
}

var accountNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a wallet on the node and print its address",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(func(ctx context.Context, c *client.Client) error {
			address, err := c.NewWallet(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), address)
			return nil
		})
	},
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the addresses of the wallets kept by the node",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(func(ctx context.Context, c *client.Client) error {
			addresses, err := c.Wallets(ctx)
			if err != nil {
				return err
			}

			for _, address := range addresses {
				fmt.Fprintln(cmd.OutOrStdout(), address)
			}
			return nil
		})
	},
}

func init() {
	accountCmd.AddCommand(accountNewCmd, accountListCmd)
	rootCmd.AddCommand(accountCmd)
}
