package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/creativeprojects/mailwatch/dedup"
	"github.com/creativeprojects/mailwatch/filter"
	"github.com/creativeprojects/mailwatch/mailbox"
	"github.com/creativeprojects/mailwatch/publish"
	"github.com/creativeprojects/mailwatch/remote"
	"github.com/creativeprojects/mailwatch/store"
	"github.com/creativeprojects/mailwatch/term"
	"github.com/creativeprojects/mailwatch/watcher"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the mailbox and publish notifications",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := debugLogger()
	tag := mailbox.AccountTag(config.IMAP.ServerURL, config.IMAP.Username)
	boltStore, err := store.NewBoltStoreWithLogger(config.Watch.StateFile, tag, logger)
	if err != nil {
		return fmt.Errorf("cannot open state file: %w", err)
	}
	defer boltStore.Close()

	ledger := dedup.NewLedger(config.Watch.DedupCapacity)
	keys, err := boltStore.LedgerKeys()
	if err != nil {
		term.Warnf("cannot load notification history: %s", err)
	} else {
		ledger.Load(keys)
	}

	publisher, err := publish.NewClient(publish.Config{
		ServerURL:           config.MQTT.BrokerURL,
		ClientID:            config.MQTT.ClientID,
		Username:            config.MQTT.Username,
		Password:            config.MQTT.Password,
		Topic:               config.MQTT.Topic,
		QoS:                 1,
		QueueSize:           config.MQTT.QueueSize,
		Timeout:             config.MQTT.Timeout.Value(),
		SkipTLSVerification: config.MQTT.SkipTLSVerification,
		DebugLogger:         logger,
	})
	if err != nil {
		return fmt.Errorf("cannot create broker client: %w", err)
	}
	if err = publisher.Connect(); err != nil {
		return fmt.Errorf("cannot connect to broker %s: %w", config.MQTT.BrokerURL, err)
	}
	publisher.Start(ctx)
	defer publisher.Close()

	rules := filter.Rules{
		SubjectKeywords: config.Filters.SubjectKeywords,
		FromContains:    config.Filters.FromContains,
	}
	if rules.IsEmpty() {
		term.Warn("no filters configured: no message will match, so nothing will be published")
	}

	supervisor := watcher.New(watcher.Config{
		Open:            openSession,
		Publisher:       publisher,
		Tracker:         boltStore,
		Ledger:          ledger,
		Rules:           rules,
		BodyLimit:       config.Watch.BodyLimit,
		MarkSeen:        config.Watch.MarkSeen,
		MaxAuthAttempts: config.Watch.MaxAuthAttempts,
		Backoff: watcher.Backoff{
			Base:    config.Watch.BackoffBase.Value(),
			Ceiling: config.Watch.BackoffCeiling.Value(),
		},
		OnStateChange: func(state watcher.State) {
			term.Infof("Connection %s", state)
		},
		DebugLogger: logger,
	})

	term.Infof("Watching folder %q on %s", config.IMAP.Folder, config.IMAP.ServerURL)
	err = supervisor.Run(ctx)

	if saveErr := boltStore.SaveLedgerKeys(ledger.Keys()); saveErr != nil {
		term.Warnf("cannot save notification history: %s", saveErr)
	}
	printStats(supervisor.Stats(), publisher)
	return err
}

func openSession() (watcher.Session, error) {
	session, err := remote.Open(remote.Config{
		ServerURL:           config.IMAP.ServerURL,
		Username:            config.IMAP.Username,
		Password:            config.IMAP.Password,
		AccessToken:         config.IMAP.AccessToken,
		Folder:              config.IMAP.Folder,
		IdleTimeout:         config.Watch.IdleTimeout.Value(),
		MarkSeen:            config.Watch.MarkSeen,
		NoTLS:               config.IMAP.NoTLS,
		SkipTLSVerification: config.IMAP.SkipTLSVerification,
		DebugLogger:         debugLogger(),
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func printStats(stats watcher.Stats, publisher *publish.Client) {
	table := pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"Connections", "Fetched", "Published", "Duplicates", "Filtered", "Dropped", "Errors"},
		{
			strconv.Itoa(stats.Connections),
			strconv.Itoa(stats.Fetched),
			strconv.Itoa(stats.Published),
			strconv.Itoa(stats.Duplicates),
			strconv.Itoa(stats.Filtered),
			strconv.FormatUint(publisher.Dropped(), 10),
			strconv.Itoa(stats.Errors),
		},
	})
	if err := table.Render(); err != nil {
		term.Warnf("cannot display results: %s", err)
	}
}
