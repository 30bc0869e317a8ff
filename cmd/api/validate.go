package main

import (
	"errors"
	"fmt"

	"ekuphumuleni-api/pkg/validation"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var name, email, message string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a name, email and message against the contact form rules",
		Example: `  ekuphumuleni-api validate --name "Jo" --email jo@x.co --message "Hello there, friend"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			errs := validation.ValidateSubmission(name, email, message)
			out := cmd.OutOrStdout()

			if !errs.HasErrors() {
				fmt.Fprintln(out, "valid")
				return nil
			}

			for _, rule := range validation.Rules {
				if msg, ok := errs[rule.Field]; ok {
					fmt.Fprintf(out, "%s: %s\n", rule.Field, msg)
				}
			}
			return errors.New("submission is invalid")
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "submitter name")
	cmd.Flags().StringVar(&email, "email", "", "submitter email")
	cmd.Flags().StringVar(&message, "message", "", "message body")
	return cmd
}
