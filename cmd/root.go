package cmd

import (
	"context"
	"os"

	"codedrop/internal/config"
	"codedrop/internal/engine"
	"codedrop/internal/session"
	"codedrop/internal/signalling"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfg     *config.Config
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "codedrop",
	Short: "codedrop - code-based peer-to-peer file and text transfer",
	Long: `codedrop transfers files, text and directories directly between two
machines. The sender gets a short human-transcribable code; the receiver
types that code and confirms, and the payload moves over an encrypted
peer-to-peer channel.

Usage:
  Send a file:       codedrop send ./photo.jpg
  Send a message:    codedrop send-text "meet at noon"
  Send a directory:  codedrop send-dir ./reports
  Receive:           codedrop receive 7-crossover-clockwork`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initConfig()
		bindSessionFlags(cmd)

		cfg = config.NewDefaultConfig()
		cfg.Session.Verbose = verbose
		applyViper(cfg)
		if err := cfg.Validate(); err != nil {
			log.Fatalf("invalid configuration: %v", err)
		}

		log.SetTimeFormat("15:04:05")
		if cfg.Session.Verbose {
			log.SetLevel(log.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.codedrop.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	viper.SetEnvPrefix("CODEDROP")
	viper.AutomaticEnv()
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Warnf("could not find home directory: %v", err)
			return
		}

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".codedrop")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Debugf("using config file: %s", viper.ConfigFileUsed())
	}
}

// bindSessionFlags binds the invoked command's flags into viper so an
// explicit flag wins over file and env values for the same key. Cobra
// shares flag names across subcommands, so binding has to happen per
// invocation rather than at init.
func bindSessionFlags(cmd *cobra.Command) {
	bindings := map[string]string{
		"session.show_qr":     "qr",
		"session.copy_code":   "copy",
		"session.auto_accept": "yes",
		"receive.dst":         "dst",
	}
	for key, name := range bindings {
		if f := cmd.Flags().Lookup(name); f != nil {
			viper.BindPFlag(key, f)
		}
	}
}

// applyViper layers flag/file/env configuration over the defaults.
func applyViper(cfg *config.Config) {
	if viper.IsSet("session.code_words") {
		cfg.Session.CodeWords = viper.GetInt("session.code_words")
	}
	if viper.IsSet("session.cancel_grace") {
		cfg.Session.CancelGrace = viper.GetDuration("session.cancel_grace")
	}
	cfg.Session.ShowQR = viper.GetBool("session.show_qr")
	cfg.Session.CopyCode = viper.GetBool("session.copy_code")
	cfg.Session.AutoAccept = viper.GetBool("session.auto_accept")
	cfg.Mailbox.ProjectID = viper.GetString("mailbox.project_id")
	cfg.Mailbox.DatabaseURL = viper.GetString("mailbox.database_url")
	cfg.Mailbox.CredentialsPath = viper.GetString("mailbox.credentials_path")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// newEngine builds the WebRTC transfer engine over the Firebase
// rendezvous mailbox.
func newEngine(ctx context.Context, destDir string) (engine.Engine, error) {
	mailbox, err := signalling.NewFirebaseMailbox(ctx, &cfg.Mailbox)
	if err != nil {
		return nil, err
	}
	return engine.NewWebRTCEngine(cfg, mailbox, destDir), nil
}

// exitFor maps the session's terminal status to a process exit code:
// 0 completed, 1 failed, 130 cancelled.
func exitFor(res session.Result) {
	switch res.Status {
	case session.StatusCompleted:
	case session.StatusCancelled:
		os.Exit(130)
	default:
		os.Exit(1)
	}
}
