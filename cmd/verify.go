package cmd

import (
	"fmt"

	"github.com/creativeprojects/mailwatch/publish"
	"github.com/creativeprojects/mailwatch/term"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check connectivity to the mail server and the broker",
	RunE:  runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	term.Infof("Connecting to mail server %s...", config.IMAP.ServerURL)
	session, err := openSession()
	if err != nil {
		return fmt.Errorf("mail server check failed: %w", err)
	}
	term.Infof("Mailbox OK: folder %q, uidvalidity=%d, next uid %d",
		config.IMAP.Folder, session.UIDValidity(), session.UIDNext())
	if err = session.Close(); err != nil {
		term.Warnf("error closing the mailbox session: %s", err)
	}

	term.Infof("Connecting to broker %s...", config.MQTT.BrokerURL)
	publisher, err := publish.NewClient(publish.Config{
		ServerURL:           config.MQTT.BrokerURL,
		ClientID:            config.MQTT.ClientID,
		Username:            config.MQTT.Username,
		Password:            config.MQTT.Password,
		Topic:               config.MQTT.Topic,
		Timeout:             config.MQTT.Timeout.Value(),
		SkipTLSVerification: config.MQTT.SkipTLSVerification,
		DebugLogger:         debugLogger(),
	})
	if err != nil {
		return fmt.Errorf("broker check failed: %w", err)
	}
	if err = publisher.Connect(); err != nil {
		return fmt.Errorf("broker check failed: %w", err)
	}
	publisher.Close()
	term.Infof("Broker OK: topic %q", config.MQTT.Topic)
	return nil
}
