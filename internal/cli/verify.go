package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hookrelay-systems/hookrelay/pkg/signature"
)

var (
	verifyKey     string
	verifyFile    string
	verifyPayload string
	verifySig     string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Sign or verify a webhook payload",
	Long: `Compute the base64 HMAC-SHA256 signature for a payload, or verify a
signature received from the platform.

Examples:
  # Compute a signature
  hookrelay verify --key SECRET --payload '{"event_id":"evt-1"}'

  # Verify a received signature over a saved body
  hookrelay verify --key SECRET --file body.json --signature 'aGVsbG8...'`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyKey, "key", "", "shared signature secret (required)")
	verifyCmd.Flags().StringVar(&verifyFile, "file", "", "read payload from file")
	verifyCmd.Flags().StringVar(&verifyPayload, "payload", "", "payload as a literal string")
	verifyCmd.Flags().StringVar(&verifySig, "signature", "", "signature to verify; omit to just sign")
	verifyCmd.MarkFlagRequired("key")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	var payload []byte
	switch {
	case verifyFile != "":
		data, err := os.ReadFile(verifyFile)
		if err != nil {
			return fmt.Errorf("read payload file: %w", err)
		}
		payload = data
	case verifyPayload != "":
		payload = []byte(verifyPayload)
	default:
		return fmt.Errorf("one of --payload or --file is required")
	}

	if verifySig == "" {
		fmt.Println(signature.Sign(verifyKey, payload))
		return nil
	}

	if signature.Verify(verifyKey, payload, verifySig) {
		fmt.Println("valid")
		return nil
	}

	fmt.Println("invalid")
	os.Exit(1)
	return nil
}
