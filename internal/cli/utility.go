package cli

import (
	"fmt"

	"github.com/hurttlocker/recall/internal/utility"
	"github.com/spf13/cobra"
)

var utilityCmd = &cobra.Command{
	Use:   "utility",
	Short: "Manage utility-feedback state",
}

var utilityClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop all retrieval and citation counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer log.Sync()

		opts, err := loadOptions(log)
		if err != nil {
			return err
		}

		tracker := utility.NewTracker(opts.UtilityPath, log)
		if err := tracker.Load(); err != nil {
			return fmt.Errorf("loading utility state: %w", err)
		}
		if err := tracker.Clear(); err != nil {
			return fmt.Errorf("clearing utility state: %w", err)
		}

		fmt.Println("Utility state cleared")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the recall version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("recall", Version)
	},
}

func init() {
	utilityCmd.AddCommand(utilityClearCmd)
	RootCmd.AddCommand(utilityCmd)
	RootCmd.AddCommand(versionCmd)
}
