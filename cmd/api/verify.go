package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ekuphumuleni-api/pkg/email"
	"ekuphumuleni-api/pkg/logger"

	"github.com/spf13/cobra"
)

func newVerifySMTPCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "verify-smtp",
		Short: "Check that the SMTP relay accepts a connection and the credentials",
		Long: `Connects to the configured relay, negotiates TLS, authenticates and quits
without sending anything. Exits non-zero when any step fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			smtpConfig := cfg.MailSMTP()
			if !smtpConfig.IsConfigured() {
				return errors.New("SMTP_HOST, SMTP_USER and SMTP_PASSWORD must all be set")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			transport := email.NewSMTPTransport(smtpConfig, logger.Log)
			effective := transport.Config()

			start := time.Now()
			if err := transport.Verify(ctx); err != nil {
				return fmt.Errorf("verify %s:%d: %w", effective.Host, effective.Port, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "SMTP relay %s:%d OK (%s)\n",
				effective.Host, effective.Port, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline for the check")
	return cmd
}
