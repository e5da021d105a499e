package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sessionbridge/internal/bootstrap"
	"github.com/felixgeelhaar/sessionbridge/internal/identity"
)

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Attach a headless window to a host and print its session",
	Long: `Attach a headless window to a running host.

The window patches its HTTP transport, performs the initialize handshake,
loads the session and prints it. With --watch it stays attached and prints
the session again whenever it changes, including changes made by other
windows.

Example:
  sessionbridge window --label settings -o yaml --watch`,
	RunE: runWindow,
}

var (
	windowOutput string
	windowWatch  bool
	windowNow    = time.Now
)

func init() {
	f := windowCmd.Flags()
	f.String("label", "", "window label (default main)")
	f.String("ipc-url", "", "host command URL (default http://127.0.0.1:8765)")
	f.String("origin", "", "page origin injected into direct plugin fetches")
	f.String("proxy-url", "", "frontend API proxy URL")
	f.String("user-agent", "", "user agent injected into direct plugin fetches")
	f.StringVarP(&windowOutput, "output", "o", FormatJSON, "output format: json, yaml")
	f.BoolVar(&windowWatch, "watch", false, "keep printing the session as it changes")

	rootCmd.AddCommand(windowCmd)
}

func runWindow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	encode, err := newEncoder(windowOutput, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, map[string]string{
		"window.label":      "label",
		"window.ipc_url":    "ipc-url",
		"window.origin":     "origin",
		"window.proxy_url":  "proxy-url",
		"window.user_agent": "user-agent",
	})
	if err != nil {
		return err
	}

	logger := cfg.Log.NewLogger(cmd.ErrOrStderr(), "window")
	stopTracing := setupTelemetry(ctx, cfg, logger)
	defer stopTracing()

	b, err := bootstrap.New(bootstrap.Config{
		IPCURL:      cfg.Window.IPCURL,
		WindowLabel: cfg.Window.Label,
		Origin:      cfg.Window.Origin,
		UserAgent:   cfg.Window.UserAgent,
		ProxyURL:    cfg.Window.ProxyURL,
		Diagnostics: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer b.Close()

	session, err := b.Init(ctx, identity.LoadOptions{}, logger)
	if err != nil {
		return err
	}

	if !windowWatch {
		return encode(newSessionView(b.Label(), session.State(), windowNow()))
	}

	// Registered before the first print so no change is missed.
	updates := make(chan identity.State, 16)
	remove := session.AddListener(func(st identity.State) {
		select {
		case updates <- st:
		default:
		}
	})
	defer remove()

	if err := encode(newSessionView(b.Label(), session.State(), windowNow())); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case st := <-updates:
			if err := encode(newSessionView(b.Label(), st, windowNow())); err != nil {
				return err
			}
		}
	}
}
