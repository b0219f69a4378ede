package cmd

import (
	"fmt"

	"github.com/blockj/node/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var keyPath string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new key pair offline",
	Args:  cobra.NoArgs,
	RunE:  generateRun,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVarP(&keyPath, "save", "s", "", "Path to save the private key to.")
}

func generateRun(cmd *cobra.Command, args []string) error {
	privateKey, err := signature.GenerateKeyPair()
	if err != nil {
		return err
	}

	pubKey := signature.PublicKeyHex(&privateKey.PublicKey)
	address, err := signature.Address(pubKey)
	if err != nil {
		return err
	}

	if keyPath != "" {
		if err := crypto.SaveECDSA(keyPath, privateKey); err != nil {
			return err
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), "address:", address)
	fmt.Fprintln(cmd.OutOrStdout(), "pubkey: ", pubKey)
	return nil
}
