package cmd

import (
	"context"
	"fmt"

	"github.com/blockj/node/foundation/blockchain/client"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	from   string
	to     string
	value  string
	params string
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send value from a wallet kept by the node",
	Args:  cobra.NoArgs,
	RunE:  sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&from, "from", "f", "", "Address of the sending wallet.")
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Address receiving the value.")
	sendCmd.Flags().StringVarP(&value, "value", "v", "0", "Value to send.")
	sendCmd.Flags().StringVarP(&params, "params", "p", "", "Params carried by the message.")
	sendCmd.MarkFlagRequired("from")
	sendCmd.MarkFlagRequired("to")
}

func sendRun(cmd *cobra.Command, args []string) error {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return fmt.Errorf("parsing value: %w", err)
	}

	return call(func(ctx context.Context, c *client.Client) error {
		cid, err := c.SendMessage(ctx, from, to, amount, params)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), cid)
		return nil
	})
}
