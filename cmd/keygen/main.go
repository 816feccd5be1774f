// Command keygen is the vendor-side activation key generator. It runs
// entirely offline: the customer reads the device fingerprint out of the
// application, reports it over any support channel, and the generated key
// goes back the same way. It never touches device state or a network.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"billcli/internal/keycode"
)

func main() {
	app := &cli.Command{
		Name:  "keygen",
		Usage: "Generate and check BillCLI activation keys from a reported device fingerprint",
		Commands: []*cli.Command{
			generateCommand(),
			checkCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate the activation key for a reported fingerprint",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "fingerprint",
				Usage:    "Device fingerprint as shown in the application (e.g. A3F0-9C1D-77E2-4B88)",
				Required: true,
			},
		},
		Action: runGenerate,
	}
}

func runGenerate(ctx context.Context, cmd *cli.Command) error {
	identity, err := normalizeFingerprint(cmd.String("fingerprint"))
	if err != nil {
		return err
	}

	key, err := keycode.Generate(identity)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	// Sanity check before handing the key to a customer.
	if !keycode.Validate(key, identity) {
		return fmt.Errorf("generated key failed self-check for fingerprint %s", cmd.String("fingerprint"))
	}

	fmt.Println(key)
	return nil
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Check that an activation key matches a reported fingerprint",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "key",
				Usage:    "Activation key to check",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "fingerprint",
				Usage:    "Device fingerprint the key was issued for",
				Required: true,
			},
		},
		Action: runCheck,
	}
}

func runCheck(ctx context.Context, cmd *cli.Command) error {
	identity, err := normalizeFingerprint(cmd.String("fingerprint"))
	if err != nil {
		return err
	}

	key := cmd.String("key")
	if keycode.Validate(key, identity) {
		fmt.Println("valid")
		return nil
	}
	if reason := keycode.Explain(key, identity); reason != "" {
		return fmt.Errorf("invalid key: %s", reason)
	}
	return fmt.Errorf("invalid key")
}

// normalizeFingerprint accepts both the dash-grouped display form and a raw
// identity digest.
func normalizeFingerprint(input string) (string, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(input), "-", "")
	if len(cleaned) < 12 {
		return "", fmt.Errorf("fingerprint too short: need at least 12 characters, got %d", len(cleaned))
	}
	return cleaned, nil
}
