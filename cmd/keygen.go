package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voltmesh/fex/core/auth"
)

var (
	keyOut    string
	pubKeyOut string
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a signing keypair",
	RunE:  generateKeys,
}

func init() {
	keygenCmd.Flags().StringVar(&keyOut, "out", "key.pem", "private key output path")
	keygenCmd.Flags().StringVar(&pubKeyOut, "pub-out", "key.pub.pem", "public key output path")
	rootCmd.AddCommand(keygenCmd)
}

func generateKeys(cmd *cobra.Command, args []string) error {
	kp, err := auth.GenerateKeypair()
	if err != nil {
		return fmt.Errorf("generate keypair: %w", err)
	}
	if err := auth.SaveKeypair(kp, keyOut); err != nil {
		return fmt.Errorf("save private key: %w", err)
	}
	pub, err := auth.EncodePublicPEM(kp.Public())
	if err != nil {
		return fmt.Errorf("encode public key: %w", err)
	}
	if err := os.WriteFile(pubKeyOut, pub, 0o644); err != nil {
		return fmt.Errorf("save public key: %w", err)
	}
	fmt.Printf("wrote %s and %s\n", keyOut, pubKeyOut)
	return nil
}
