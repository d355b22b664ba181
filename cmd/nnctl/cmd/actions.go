package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yaroslav/nnctl/internal/namenode"
)

// actionFlags are shared by every lifecycle command.
type actionFlags struct {
	hdfsBinary       string
	doFormat         bool
	force            bool
	upgradeType      string
	upgradeDirection string
	phase            string
}

var flags actionFlags

func (f actionFlags) request(action namenode.Action) (namenode.Request, error) {
	upType, err := namenode.ParseUpgradeType(f.upgradeType)
	if err != nil {
		return namenode.Request{}, err
	}
	dir, err := namenode.ParseDirection(f.upgradeDirection)
	if err != nil {
		return namenode.Request{}, err
	}
	phase, err := namenode.ParsePhase(f.phase)
	if err != nil {
		return namenode.Request{}, err
	}
	return namenode.Request{
		Action:      action,
		HDFSBinary:  f.hdfsBinary,
		DoFormat:    f.doFormat,
		ForceFormat: f.force,
		Upgrade: namenode.UpgradeContext{
			Type:      upType,
			Direction: dir,
			Phase:     phase,
		},
	}, nil
}

func newActionCmd(action namenode.Action, short, long string) *cobra.Command {
	return &cobra.Command{
		Use:   string(action),
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, action)
		},
	}
}

func runAction(cmd *cobra.Command, action namenode.Action) error {
	req, err := flags.request(action)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.orch.Run(cmd.Context(), req); err != nil {
		return err
	}
	if action == namenode.ActionStatus {
		fmt.Fprintln(cmd.OutOrStdout(), "NameNode is running")
	}
	return nil
}

func init() {
	configureCmd := newActionCmd(namenode.ActionConfigure, "Create the NameNode name directories",
		`Create every configured name directory owned by the HDFS user.`)

	startCmd := newActionCmd(namenode.ActionStart, "Start the NameNode",
		`Start the NameNode, formatting it first when requested and safe.

The start sequence:
  - Enables the audit plugin when configured
  - Formats an empty NameNode unless --do-format=false is given
  - Writes the decommission exclude file
  - Bootstraps the standby NameNode in an HA pair
  - Starts ZKFC during a rolling upgrade with HA
  - Launches the NameNode with upgrade options
  - Waits for safe mode to turn off where appropriate
  - Creates /tmp and the smoke user home on the active NameNode`)
	startCmd.Flags().BoolVar(&flags.doFormat, "do-format", true,
		"Format the NameNode if it has never been formatted (--do-format=false to skip)")
	startCmd.Flags().StringVar(&flags.upgradeType, "upgrade-type", "",
		"Stack upgrade in progress: rolling or nonrolling")
	startCmd.Flags().StringVar(&flags.upgradeDirection, "upgrade-direction", "upgrade",
		"Upgrade direction: upgrade or downgrade")
	startCmd.Flags().StringVar(&flags.phase, "phase", "",
		"Command phase, initial_start on the first start of a new cluster")

	stopCmd := newActionCmd(namenode.ActionStop, "Stop the NameNode", `Stop the NameNode process.`)

	statusCmd := newActionCmd(namenode.ActionStatus, "Check whether the NameNode is running",
		`Check the NameNode pid file. Exits with code 3 when the NameNode is not running.`)

	decommissionCmd := newActionCmd(namenode.ActionDecommission, "Apply the decommission exclude list",
		`Rewrite the exclude file and ask this NameNode to refresh its node lists,
unless decommission.update_exclude_file_only is set.`)

	formatCmd := newActionCmd(namenode.ActionFormat, "Format the NameNode if it is not formatted",
		`Format the NameNode metadata. Only a non-HA NameNode or the designated
HA active host formats. Without --force an already formatted NameNode is left alone.`)
	formatCmd.Flags().BoolVar(&flags.force, "force", false,
		"Reformat even if the NameNode looks formatted (destroys metadata)")

	for _, c := range []*cobra.Command{configureCmd, startCmd, stopCmd, statusCmd, decommissionCmd, formatCmd} {
		c.Flags().StringVar(&flags.hdfsBinary, "hdfs-binary", "",
			"Path of the hdfs client (required for start and stop)")
		rootCmd.AddCommand(c)
	}
}
