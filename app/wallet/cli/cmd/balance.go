package cmd

import (
	"context"
	"fmt"

	"github.com/blockj/node/foundation/blockchain/client"
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "Print the balance of an address.",
	Args:  cobra.ExactArgs(1),
	RunE:  balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) error {
	return call(func(ctx context.Context, c *client.Client) error {
		balance, err := c.Balance(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), balance.String())
		return nil
	})
}
