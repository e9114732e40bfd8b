package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/xxxsen/tooldir/internal/client"
)

type codeFlags struct {
	server string
	token  string
	email  string
	kind   string
}

func (f *codeFlags) bind(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.server, "server", "http://127.0.0.1:8080/api/v1", "api base url")
	cmd.PersistentFlags().StringVar(&f.token, "token", "", "session token, needed for email_change")
	cmd.PersistentFlags().StringVar(&f.email, "email", "", "email address")
	cmd.PersistentFlags().StringVar(&f.kind, "type", "register", "register, login, reset_password, email_change or feedback")
}

func (f *codeFlags) client() (*client.Client, error) {
	if f.email == "" {
		return nil, fmt.Errorf("--email is required")
	}
	return client.New(f.server, client.WithToken(f.token)), nil
}

func newCodeCmd() *cobra.Command {
	flags := &codeFlags{}
	cmd := &cobra.Command{
		Use:   "code",
		Short: "request or check verification codes against a running server",
	}
	flags.bind(cmd)
	cmd.AddCommand(newCodeSendCmd(flags), newCodeVerifyCmd(flags))
	return cmd
}

func newCodeSendCmd(flags *codeFlags) *cobra.Command {
	var template string
	var wait bool
	cmd := &cobra.Command{
		Use:   "send",
		Short: "mail a verification code",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			out := cmd.OutOrStdout()
			cooldown := client.NewCooldown(func(left time.Duration) {
				if left == 0 {
					fmt.Fprintln(out, "you can request a new code now")
					return
				}
				fmt.Fprintf(out, "resend available in %ds\n", int((left+time.Second-1)/time.Second))
			})

			res, err := c.SendVerification(ctx, flags.email, flags.kind, template)
			var hold time.Duration
			switch apiErr, ok := client.AsAPIError(err); {
			case err == nil:
				fmt.Fprintf(out, "%s, expires at %s\n", res.Message, res.ExpiresAt.Format(time.RFC3339))
				hold = res.Cooldown
			case ok && apiErr.RetryAfter > 0:
				fmt.Fprintln(out, apiErr.Message)
				hold = apiErr.RetryAfter
			default:
				return err
			}
			if !wait {
				return nil
			}
			cooldown.Sync(ctx, hold)
			cooldown.Wait()
			return nil
		},
	}
	cmd.Flags().StringVar(&template, "template", "", "mail template name")
	cmd.Flags().BoolVar(&wait, "wait", false, "show the resend countdown")
	return cmd
}

func newCodeVerifyCmd(flags *codeFlags) *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "check and consume a verification code",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			if code == "" {
				return fmt.Errorf("--code is required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := c.VerifyCode(ctx, flags.email, flags.kind, code); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "code verified")
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "6 character code")
	return cmd
}
