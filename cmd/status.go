package cmd

import (
	"fmt"
	"strconv"

	"github.com/creativeprojects/mailwatch/mailbox"
	"github.com/creativeprojects/mailwatch/store"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display the stored watch position and notification history",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	tag := mailbox.AccountTag(config.IMAP.ServerURL, config.IMAP.Username)
	boltStore, err := store.NewBoltStoreWithLogger(config.Watch.StateFile, tag, debugLogger())
	if err != nil {
		return fmt.Errorf("cannot open state file: %w", err)
	}
	defer boltStore.Close()

	uidValidity, uid := boltStore.Cursor()
	keys, err := boltStore.LedgerKeys()
	if err != nil {
		return fmt.Errorf("cannot read notification history: %w", err)
	}

	table := pterm.DefaultTable.WithData(pterm.TableData{
		{"State file", config.Watch.StateFile},
		{"Account", config.IMAP.Username},
		{"Folder", config.IMAP.Folder},
		{"UIDVALIDITY", strconv.FormatUint(uint64(uidValidity), 10)},
		{"Cursor uid", strconv.FormatUint(uint64(uid), 10)},
		{"Notified messages", strconv.Itoa(len(keys))},
	})
	return table.Render()
}
