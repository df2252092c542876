package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var querySession string

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Run a one-shot recall and print the context block",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer log.Sync()

		opts, err := loadOptions(log)
		if err != nil {
			return err
		}

		eng, st, _, err := buildEngine(opts, log)
		if err != nil {
			return err
		}
		defer st.Close()
		defer eng.Close()

		sessionKey := querySession
		if sessionKey == "" {
			sessionKey = uuid.NewString()
		}

		block, ok := eng.Recall(cmdContext(), args[0], sessionKey)
		if !ok {
			fmt.Println("No relevant memories found")
			return nil
		}
		fmt.Println(block)
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&querySession, "session", "", "Session key for feedback correlation (generated when omitted)")
	RootCmd.AddCommand(queryCmd)
}
