package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/feedback-service/internal/client"
)

func newWatchCmd() *cobra.Command {
	var (
		apiURL      string
		realtimeURL string
		statePath   string
		pin         string
		logout      bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Log in as admin and print new reviews as they arrive",
		Example: `  feedbackd watch --api http://localhost:5000 --realtime ws://localhost:5001/ws
  feedbackd watch --logout`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, apiURL, realtimeURL, statePath, pin, logout)
		},
	}

	cmd.Flags().StringVar(&apiURL, "api", envOr("FEEDBACK_API_URL", "http://localhost:5000"), "Feedback API base URL")
	cmd.Flags().StringVar(&realtimeURL, "realtime", envOr("FEEDBACK_REALTIME_URL", "ws://localhost:5001/ws"), "Realtime websocket URL")
	cmd.Flags().StringVar(&statePath, "state", defaultStatePath(), "Where the admin session is remembered")
	cmd.Flags().StringVar(&pin, "pin", "", "Admin PIN (prompted if no session is stored)")
	cmd.Flags().BoolVar(&logout, "logout", false, "End the stored session and exit")

	return cmd
}

func runWatch(ctx context.Context, apiURL, realtimeURL, statePath, pin string, logout bool) error {
	c, err := client.New(apiURL, 10*time.Second)
	if err != nil {
		return err
	}

	session := client.NewSession(c, client.SessionOptions{
		StatePath:      statePath,
		RealtimeURL:    realtimeURL,
		OnNotification: printNotification,
	})
	defer session.Close() //nolint:errcheck

	if err := session.Load(ctx); err != nil {
		return err
	}

	if logout {
		if !session.IsAdmin() {
			fmt.Println("No admin session stored.")
			return nil
		}
		if err := session.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	}

	if !session.IsAdmin() {
		if pin == "" {
			if pin, err = promptSinglePIN(); err != nil {
				return err
			}
		}
		if err := session.Login(ctx, pin); err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) {
				return errors.New(apiErr.Message)
			}
			return err
		}
		fmt.Println("Logged in.")
	}

	fmt.Println("Waiting for new reviews. Press Ctrl+C to stop.")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\n%d notification(s) received.\n", session.Notifications().Len())
			return nil
		case <-ticker.C:
			if !session.IsAdmin() {
				return errors.New("admin session was revoked; log in again")
			}
		}
	}
}

func printNotification(n client.Notification) {
	stars := strings.Repeat("*", n.Rating)
	fmt.Printf("[%s] New review from %s %s\n  %s\n", n.CreatedAt.Local().Format(time.Kitchen), n.Name, stars, n.Feedback)
}

func promptSinglePIN() (string, error) {
	fmt.Print("Admin PIN: ")
	raw, err := readSecret()
	if err != nil {
		return "", fmt.Errorf("failed to read PIN: %w", err)
	}
	fmt.Println()
	return strings.TrimSpace(raw), nil
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".feedbackd-session.json"
	}
	return filepath.Join(dir, "feedbackd", "session.json")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
