package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/teemow/mailgateway/internal/config"
	"github.com/teemow/mailgateway/internal/gatewayclient"
	"github.com/teemow/mailgateway/internal/graph"
)

func newClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Call a running gateway",
		Long: `Call the routes of a running gateway (--gateway-url) with the configured
API key and mailbox credential. Failed calls are retried with exponential
backoff (--retries, --backoff-factor).

Results are printed to stdout as JSON.`,
	}

	cmd.AddCommand(newClientHealthCmd())
	cmd.AddCommand(newClientSendCmd())
	cmd.AddCommand(newClientMessagesCmd())
	cmd.AddCommand(newClientMailCmd())
	cmd.AddCommand(newClientCodeCmd())
	cmd.AddCommand(newClientDeleteCmd())
	return cmd
}

// newGatewayClient builds a gateway client from the configuration.
func newGatewayClient(cfg config.Config, logger *slog.Logger) *gatewayclient.Client {
	return gatewayclient.New(cfg.GatewayURL, cfg.APIKey,
		gatewayclient.WithRetries(cfg.Retries),
		gatewayclient.WithBackoff(gatewayclient.DefaultInitialInterval, cfg.BackoffFactor),
		gatewayclient.WithLogger(logger),
	)
}

// clientSetup loads the configuration and returns a gateway client together
// with the mailbox credential.
func clientSetup(cmd *cobra.Command) (*gatewayclient.Client, graph.Credential, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, graph.Credential{}, err
	}
	cred, err := mailboxCredential(cfg)
	if err != nil {
		return nil, graph.Credential{}, err
	}
	return newGatewayClient(cfg, newLogger(cfg)), cred, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newClientHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the gateway is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			status, err := newGatewayClient(cfg, newLogger(cfg)).Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func newClientSendCmd() *cobra.Command {
	var (
		to      string
		subject string
		content string
		isHTML  bool
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send an email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recipients := parseCommaSeparatedList(to)
			if len(recipients) == 0 {
				return fmt.Errorf("at least one recipient is required (--to)")
			}

			client, cred, err := clientSetup(cmd)
			if err != nil {
				return err
			}
			ok, err := client.SendEmail(cmd.Context(), cred, gatewayclient.SendEmailRequest{
				To:      recipients,
				Subject: subject,
				Content: content,
				IsHTML:  isHTML,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]bool{"success": ok})
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Recipient email address(es), comma-separated")
	cmd.Flags().StringVar(&subject, "subject", "", "Email subject")
	cmd.Flags().StringVar(&content, "content", "", "Email body content")
	cmd.Flags().BoolVar(&isHTML, "html", false, "Send the content as HTML")
	return cmd
}

func newClientMessagesCmd() *cobra.Command {
	var (
		folder string
		top    int
	)

	cmd := &cobra.Command{
		Use:   "messages",
		Short: "List the newest messages of a folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cred, err := clientSetup(cmd)
			if err != nil {
				return err
			}
			msgs, err := client.GetMessages(cmd.Context(), cred, folder, top)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), msgs)
		},
	}

	cmd.Flags().StringVar(&folder, "folder", "", "Mail folder (default: inbox)")
	cmd.Flags().IntVar(&top, "top", 0, "Maximum number of messages (default: 10)")
	return cmd
}

// addMailQueryFlags declares the message selection flags shared by the mail
// and code commands.
func addMailQueryFlags(cmd *cobra.Command, mq *gatewayclient.MailQuery) {
	cmd.Flags().StringVar(&mq.SubjectPattern, "subject", "", "Only match messages whose subject contains this text")
	cmd.Flags().StringVar(&mq.Sender, "sender", "", "Only match messages from this exact sender address")
	cmd.Flags().StringVar(&mq.Folder, "folder", "", "Mail folder (default: inbox)")
	cmd.Flags().IntVar(&mq.Top, "top", 0, "Number of newest messages to search (default: 1)")
}

func newClientMailCmd() *cobra.Command {
	var mq gatewayclient.MailQuery

	cmd := &cobra.Command{
		Use:   "mail",
		Short: "Get the newest matching message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cred, err := clientSetup(cmd)
			if err != nil {
				return err
			}
			mail, err := client.GetMail(cmd.Context(), cred, mq)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), mail)
		},
	}

	addMailQueryFlags(cmd, &mq)
	return cmd
}

func newClientCodeCmd() *cobra.Command {
	var cq gatewayclient.CodeQuery

	cmd := &cobra.Command{
		Use:   "code",
		Short: "Extract a code or link from the newest matching message",
		Long: `Extract content from the newest matching message.

--pattern returns the first match of a regular expression (for example
'\d{6}'). --between 'start,end' returns every substring between the two
delimiters. Prints false when nothing is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cq.Pattern == "" && cq.Between == "" {
				return fmt.Errorf("either --pattern or --between is required")
			}
			client, cred, err := clientSetup(cmd)
			if err != nil {
				return err
			}
			result, err := client.GetCodeOrLink(cmd.Context(), cred, cq)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	addMailQueryFlags(cmd, &cq.MailQuery)
	cmd.Flags().StringVar(&cq.Pattern, "pattern", "", "Regular expression to search for")
	cmd.Flags().StringVar(&cq.Between, "between", "", "Delimiter pair 'start,end'")
	return cmd
}

func newClientDeleteCmd() *cobra.Command {
	var folder string

	cmd := &cobra.Command{
		Use:   "delete-all",
		Short: "Delete every message in the inbox or junk folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cred, err := clientSetup(cmd)
			if err != nil {
				return err
			}
			switch folder {
			case graph.FolderInbox:
				err = client.DeleteAllInbox(cmd.Context(), cred)
			case graph.FolderJunk:
				err = client.DeleteAllJunk(cmd.Context(), cred)
			default:
				return fmt.Errorf("unsupported folder %q: must be %q or %q", folder, graph.FolderInbox, graph.FolderJunk)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]bool{"success": true})
		},
	}

	cmd.Flags().StringVar(&folder, "folder", graph.FolderInbox, "Folder to empty: inbox or junkemail")
	return cmd
}
