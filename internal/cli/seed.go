package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hookrelay-systems/hookrelay/internal/handlers"
	"github.com/hookrelay-systems/hookrelay/internal/seeder"
	"github.com/hookrelay-systems/hookrelay/pkg/signature"
)

var (
	seedURL   string
	seedKey   string
	seedCount int
	seedTypes string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate and send test webhook deliveries",
	Long: `Generate realistic commerce webhook envelopes, sign each one with the
shared secret, and POST them to a running relay.

Examples:
  # 100 mixed events against a local relay
  hookrelay seed --key SECRET

  # Orders only
  hookrelay seed --key SECRET --count 500 --types order.created,order.updated`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedURL, "url", "http://localhost:8085/webhooks/commerce", "webhook endpoint")
	seedCmd.Flags().StringVar(&seedKey, "key", "", "shared signature secret (required)")
	seedCmd.Flags().IntVar(&seedCount, "count", 100, "number of envelopes to send")
	seedCmd.Flags().StringVar(&seedTypes, "types", "", "comma-separated event types (default: all)")
	seedCmd.MarkFlagRequired("key")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	var types []string
	if seedTypes != "" {
		types = strings.Split(seedTypes, ",")
	}

	envelopes := seeder.GenerateN(seedCount, types)
	client := &http.Client{Timeout: 10 * time.Second}

	var sent, failed int
	for _, env := range envelopes {
		body, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("marshal envelope: %w", err)
		}

		req, err := http.NewRequest(http.MethodPost, seedURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(handlers.SignatureHeader, signature.Sign(seedKey, body))

		resp, err := client.Do(req)
		if err != nil {
			failed++
			fmt.Printf("send %s: %v\n", env.EventID, err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			failed++
			fmt.Printf("send %s: status %d\n", env.EventID, resp.StatusCode)
			continue
		}
		sent++
	}

	fmt.Printf("Sent %d envelopes (%d failed)\n", sent, failed)
	return nil
}
