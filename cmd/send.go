package cmd

import (
	"context"
	"fmt"
	"os"

	"codedrop/internal/engine"
	"codedrop/internal/session"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

type SendFlags struct {
	ShowQR   bool
	CopyCode bool
}

var sendFlags SendFlags

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <file>",
	Short: "Send a file to a peer",
	Long: `Send a file to a peer. This will:

1. Open a rendezvous session and print a short code
2. Wait for the receiver to enter the code and accept
3. Stream the file over a direct encrypted channel

Pass --qr to also render the code as a QR block, and --copy to place it
on the clipboard.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(args[0]); err != nil {
			return fmt.Errorf("cannot read %s: %w", args[0], err)
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		payload, err := engine.NewFilePayload(args[0])
		if err != nil {
			log.Fatalf("%v", err)
		}
		exitFor(runSendSession(payload))
	},
}

// sendTextCmd represents the send-text command
var sendTextCmd = &cobra.Command{
	Use:   "send-text <message>",
	Short: "Send a text message to a peer",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitFor(runSendSession(engine.NewTextPayload(args[0])))
	},
}

// sendDirCmd represents the send-dir command
var sendDirCmd = &cobra.Command{
	Use:   "send-dir <directory>",
	Short: "Send a directory to a peer as a tar.gz archive",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		payload, err := engine.NewDirectoryPayload(args[0])
		if err != nil {
			log.Fatalf("%v", err)
		}
		exitFor(runSendSession(payload))
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(sendTextCmd)
	rootCmd.AddCommand(sendDirCmd)

	for _, cmd := range []*cobra.Command{sendCmd, sendTextCmd, sendDirCmd} {
		cmd.Flags().BoolVar(&sendFlags.ShowQR, "qr", false, "also render the code as a terminal QR block")
		cmd.Flags().BoolVar(&sendFlags.CopyCode, "copy", false, "copy the code to the clipboard")
	}
}

// runSendSession wires the monitor, presenter, reporter and engine into
// a send-side session controller and runs it.
func runSendSession(payload engine.Payload) session.Result {
	monitor := session.NewMonitor()
	token := monitor.Start()
	defer monitor.Stop()

	ctx, unbind := token.Bind(context.Background())
	defer unbind()

	eng, err := newEngine(ctx, "")
	if err != nil {
		log.Fatalf("cannot reach rendezvous mailbox: %v", err)
	}

	controller := session.NewController(
		cfg,
		eng,
		session.BuildPresenter(&cfg.Session, os.Stdout),
		session.NewProgressReporter("Sending", os.Stderr),
		session.NewConfirmationGate(os.Stdin, os.Stdout, false),
		token,
		os.Stdout,
	)

	return controller.RunSend(ctx, payload)
}
