package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/witos44/UserAuthSystem/app/service"
	"github.com/witos44/UserAuthSystem/config"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored login sessions",
}

var sessionSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete every expired session once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, store, err := openSessionCommandStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		removed, err := service.NewSessionSweeper(store.sessions, 0).SweepOnce(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired session(s)\n", removed)
		return nil
	},
}

var sessionRevokeCmd = &cobra.Command{
	Use:   "revoke <account_id>",
	Short: "Sign an account out of every device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		accountID := strings.TrimSpace(args[0])
		if accountID == "" {
			return errors.New("account id is required")
		}

		skipPrompt, _ := cmd.Flags().GetBool("yes")
		if !skipPrompt {
			confirmed, err := promptConfirm(cmd.InOrStdin(), cmd.OutOrStdout(),
				fmt.Sprintf("Revoke every session of account %s? [y/N]: ", accountID))
			if err != nil {
				return err
			}
			if !confirmed {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted")
				return nil
			}
		}

		cfg, store, err := openSessionCommandStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		userAuthService := service.NewUserAuthService(store.accounts, store.sessions, service.NewLogNotifier(cfg.App.RootURL), cfg)
		count, err := userAuthService.RevokeSessions(cmd.Context(), accountID)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "revoked %d session(s) for account %s\n", count, accountID)
		return nil
	},
}

func init() {
	sessionRevokeCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	sessionCmd.AddCommand(sessionSweepCmd)
	sessionCmd.AddCommand(sessionRevokeCmd)
	rootCmd.AddCommand(sessionCmd)
}

func openSessionCommandStore(cmd *cobra.Command) (*config.Config, *accountStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Storage.Driver != config.StorageDriverMySQL {
		return nil, nil, errMemoryStoreUnsupported
	}
	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func promptConfirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprint(out, question)
	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
