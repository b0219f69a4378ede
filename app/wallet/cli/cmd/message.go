package cmd

import (
	"context"

	"github.com/blockj/node/foundation/blockchain/client"
	"github.com/spf13/cobra"
)

var messageCmd = &cobra.Command{
	Use:   "message <cid>",
	Short: "Print an applied message.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(func(ctx context.Context, c *client.Client) error {
			msg, err := c.Message(ctx, args[0])
			if err != nil {
				return err
			}

			return printJSON(cmd, msg)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the chain head and the known peers of the node.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(func(ctx context.Context, c *client.Client) error {
			status, err := c.Status(ctx)
			if err != nil {
				return err
			}

			return printJSON(cmd, status)
		})
	},
}

func init() {
	rootCmd.AddCommand(messageCmd, statusCmd)
}
