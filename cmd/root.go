package cmd

import (
	"os"

	"github.com/creativeprojects/mailwatch/cfg"
	"github.com/creativeprojects/mailwatch/term"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mailwatch",
	Short: "Mail notification bridge: watch a mailbox, publish to MQTT",
	Long:  "\nMail notification bridge: watch an IMAP folder and publish a notification to an MQTT broker for every new message that matches your filters",
	RunE:  runWatch,
}

func init() {
	cobra.OnInitialize(initConfig, initLog)
	flag := rootCmd.PersistentFlags()
	flag.StringVarP(&global.configFile, "config", "c", "mailwatch.yaml", "configuration file")
	flag.BoolVarP(&global.quiet, "quiet", "q", false, "only display warnings and errors")
	flag.BoolVarP(&global.verbose, "verbose", "v", false, "display debugging information")
}

func initConfig() {
	var err error
	config, err = cfg.LoadFromFile(global.configFile)
	if err != nil {
		term.Errorf("cannot open or read configuration file: %s", err)
		os.Exit(1)
	}
}

func initLog() {
	switch {
	case global.verbose:
		term.SetLevel(term.LevelDebug)
	case global.quiet:
		term.SetLevel(term.LevelWarn)
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		term.Error(err)
		os.Exit(1)
	}
}
