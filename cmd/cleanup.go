package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/mailgateway/internal/graph"
	"github.com/teemow/mailgateway/internal/logging"
)

func newCleanupCmd() *cobra.Command {
	var (
		inbox bool
		junk  bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Empty the inbox and junk folders through the gateway",
		Long: `Delete the messages in the inbox and junk folders of the configured mailbox
by calling a running gateway. Each folder is emptied in one bulk delete of up
to 1000 messages.

Use --inbox=false or --junk=false to leave a folder alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !inbox && !junk {
				return fmt.Errorf("nothing to clean up: both --inbox and --junk are disabled")
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cred, err := mailboxCredential(cfg)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			client := newGatewayClient(cfg, logger)

			type step struct {
				folder string
				run    func() error
			}
			var steps []step
			if inbox {
				steps = append(steps, step{graph.FolderInbox, func() error { return client.DeleteAllInbox(cmd.Context(), cred) }})
			}
			if junk {
				steps = append(steps, step{graph.FolderJunk, func() error { return client.DeleteAllJunk(cmd.Context(), cred) }})
			}

			for _, s := range steps {
				logger.Info("Emptying folder", logging.Folder(s.folder))
				if err := s.run(); err != nil {
					return fmt.Errorf("failed to empty %s: %w", s.folder, err)
				}
				logger.Info("Folder emptied", logging.Folder(s.folder), logging.ClientHash(cred.ClientID))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&inbox, "inbox", true, "Empty the inbox")
	cmd.Flags().BoolVar(&junk, "junk", true, "Empty the junk folder")
	return cmd
}
