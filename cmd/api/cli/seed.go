package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spec-kit/feedback-service/internal/config"
	"github.com/spec-kit/feedback-service/internal/observability"
	"github.com/spec-kit/feedback-service/internal/service"
)

func newSeedCmd() *cobra.Command {
	var (
		pin         string
		onlyMissing bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Set the admin PIN",
		Long: `Set the single admin PIN. An existing PIN is overwritten and every admin
session is revoked, unless --if-missing is given.`,
		Example: `  feedbackd seed --pin 4821
  feedbackd seed              # prompts for the PIN`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pin == "" {
				var err error
				if pin, err = promptPIN(); err != nil {
					return err
				}
			}
			return runSeed(cmd.Context(), pin, onlyMissing)
		},
	}

	cmd.Flags().StringVar(&pin, "pin", "", "Admin PIN, digits only (prompted if omitted)")
	cmd.Flags().BoolVar(&onlyMissing, "if-missing", false, "Only set the PIN when none exists yet")

	return cmd
}

func promptPIN() (string, error) {
	fmt.Print("Admin PIN: ")
	first, err := readSecret()
	if err != nil {
		return "", fmt.Errorf("failed to read PIN: %w", err)
	}
	fmt.Println()

	fmt.Print("Confirm PIN: ")
	confirm, err := readSecret()
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}
	fmt.Println()

	pin := strings.TrimSpace(first)
	if pin != strings.TrimSpace(confirm) {
		return "", fmt.Errorf("PINs do not match")
	}
	return pin, nil
}

func readSecret() (string, error) {
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func runSeed(ctx context.Context, pin string, onlyMissing bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		AdminRepo: st.admins,
		Logger:    logger,
	})

	if onlyMissing {
		created, err := authService.EnsureAdmin(ctx, pin)
		if err != nil {
			return err
		}
		if !created {
			fmt.Println("Admin PIN already set; nothing changed.")
			return nil
		}
		fmt.Println("Admin PIN set.")
		return nil
	}

	if err := authService.SeedPIN(ctx, pin); err != nil {
		return err
	}
	logger.Info("admin PIN replaced from CLI", zap.String("store", cfg.Store.Driver))
	fmt.Println("Admin PIN set. Existing admin sessions were revoked.")
	return nil
}
