// Command licstatus is the support diagnostics tool for the license core. It
// runs against the same data directory as the application and reports the
// validation verdict, the device fingerprint for key requests, and storage
// health. It can also activate a key, which support uses when walking a
// customer through a stuck activation.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"billcli/internal/config"
	"billcli/internal/fingerprint"
	"billcli/internal/license"
	"billcli/internal/storage"
)

func main() {
	app := &cli.Command{
		Name:  "licstatus",
		Usage: "Inspect and manage the BillCLI license state",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Override the data directory (defaults to the directory next to the executable)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Run a full validation and print the result",
				Action: runStatus,
			},
			{
				Name:   "fingerprint",
				Usage:  "Print the device fingerprint to report when requesting a key",
				Action: runFingerprint,
			},
			{
				Name:   "health",
				Usage:  "Print storage and cache health as JSON",
				Action: runHealth,
			},
			{
				Name:  "activate",
				Usage: "Activate a license key on this device",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "key",
						Usage:    "Activation key (XXXX-XXXX-XXXX-XXXX)",
						Required: true,
					},
				},
				Action: runActivate,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// setup wires the full license stack the same way the application does:
// config, paths, identity provider, the three storage locations, and the
// manager. The returned cleanup closes the database handle.
func setup(cmd *cli.Command) (*license.Manager, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	configureLogging(cfg.Logging)

	var paths *config.Paths
	switch {
	case cmd.String("data-dir") != "":
		paths = config.PathsAt(cmd.String("data-dir"))
	case cfg.Paths.DataDir != "":
		paths = config.PathsAt(cfg.Paths.DataDir)
	default:
		paths, err = config.GetPaths()
		if err != nil {
			return nil, nil, err
		}
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, nil, err
	}

	sqlite, err := storage.NewSQLiteLocation(paths.DatabaseFile, config.StorageRecordKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open license database: %w", err)
	}

	store := license.NewStorageManager(cfg.License.StorageTimeout,
		storage.NewPrefsLocation(paths.PrefsFile, config.StorageRecordKey),
		sqlite,
		storage.NewFileLocation(paths.LicenseFile),
	)

	identity := fingerprint.NewManager(paths.InstallIDFile)
	manager := license.NewManager(cfg.License, identity, store)
	return manager, func() { _ = sqlite.Close() }, nil
}

func configureLogging(cfg config.LoggingConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func runStatus(ctx context.Context, cmd *cli.Command) error {
	manager, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := manager.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("Status:          %s\n", result.Status)
	fmt.Printf("Integrity score: %d\n", result.IntegrityScore)
	if result.TrialStartDate != "" {
		fmt.Printf("Trial start:     %s\n", result.TrialStartDate)
	}
	if result.DaysRemaining != nil {
		fmt.Printf("Days remaining:  %d\n", *result.DaysRemaining)
	}
	if result.LicenseKey != "" {
		fmt.Printf("License key:     %s\n", license.MaskLicenseKey(result.LicenseKey))
	}
	for _, issue := range result.Errors {
		fmt.Printf("Issue:           %s\n", issue)
	}
	return nil
}

func runFingerprint(ctx context.Context, cmd *cli.Command) error {
	manager, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	display, err := manager.DisplayFingerprint()
	if err != nil {
		return err
	}
	fmt.Println(display)
	return nil
}

func runHealth(ctx context.Context, cmd *cli.Command) error {
	manager, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := manager.Initialize(ctx); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	report := manager.HealthCheck(ctx)
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runActivate(ctx context.Context, cmd *cli.Command) error {
	manager, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := manager.Initialize(ctx); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	res := manager.Activate(ctx, cmd.String("key"))
	if !res.Success {
		return fmt.Errorf("activation failed: %s", res.Error)
	}

	result, err := manager.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("post-activation validation failed: %w", err)
	}
	fmt.Printf("Activated. Status: %s\n", result.Status)
	return nil
}
