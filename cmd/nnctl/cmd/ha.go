package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yaroslav/nnctl/internal/namenode"
)

// errNotActive makes is-active exit nonzero on a standby.
var errNotActive = errors.New("NameNode is not active")

var isActiveCmd = &cobra.Command{
	Use:   "is-active",
	Short: "Report whether this NameNode is the HA active node",
	Long: `Query this NameNode, then its peer, for the HA service state.

Without HA the NameNode is always active. Exits 0 when active, 1 otherwise.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if !a.orch.IsActive(cmd.Context()) {
			fmt.Fprintln(cmd.OutOrStdout(), "standby")
			return errNotActive
		}
		fmt.Fprintln(cmd.OutOrStdout(), "active")
		return nil
	},
}

var bootstrapPhase string

var bootstrapStandbyCmd = &cobra.Command{
	Use:   "bootstrap-standby",
	Short: "Copy the active NameNode's metadata onto this standby",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		phase, err := namenode.ParsePhase(bootstrapPhase)
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		return a.orch.BootstrapStandby(cmd.Context(), phase)
	},
}

var safemodeWaitCmd = &cobra.Command{
	Use:   "safemode-wait",
	Short: "Wait for the NameNode to leave safe mode",
	Long: fmt.Sprintf(`Poll the NameNode up to %d times, %s apart, until safe mode is OFF.

Exits 0 when safe mode is off, 1 when it is still on.`, namenode.SafeModeTries, namenode.SafeModeDelay),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.orch.WaitSafeModeOff(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "safe mode off=%t attempts=%d reason=%s\n", res.Off, res.Attempts, res.Reason)
		if !res.Off {
			return fmt.Errorf("NameNode is still in safe mode after %d attempts", res.Attempts)
		}
		return nil
	},
}

var isFormattedCmd = &cobra.Command{
	Use:   "is-formatted",
	Short: "Report whether the NameNode has been formatted",
	Long: `Run the format decision without formatting: markers first, then legacy
markers (migrated when found), then the name directories themselves.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		fmt.Fprintf(cmd.OutOrStdout(), "formatted=%t\n", a.orch.IsFormatted(cmd.Context()))
		return nil
	},
}

func init() {
	bootstrapStandbyCmd.Flags().StringVar(&bootstrapPhase, "phase", "",
		"Command phase, initial_start adds -force")

	rootCmd.AddCommand(isActiveCmd)
	rootCmd.AddCommand(bootstrapStandbyCmd)
	rootCmd.AddCommand(safemodeWaitCmd)
	rootCmd.AddCommand(isFormattedCmd)
}
