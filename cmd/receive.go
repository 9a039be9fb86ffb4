package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"codedrop/internal/session"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type ReceiveFlags struct {
	DestDir    string
	AutoAccept bool
}

var receiveFlags ReceiveFlags

// receiveCmd represents the receive command
var receiveCmd = &cobra.Command{
	Use:   "receive [code]",
	Short: "Receive a payload from a peer",
	Long: `Receive a file, text message or directory from a peer. This will:

1. Redeem the code the sender gave you (prompted if not passed)
2. Show what is offered and ask for confirmation
3. Receive the payload into --dst (current directory by default)

Use --yes to accept without prompting.`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if v := viper.GetString("receive.dst"); v != "" {
			receiveFlags.DestDir = v
		}
		return validateDestDir(receiveFlags.DestDir)
	},
	Run: func(cmd *cobra.Command, args []string) {
		code := ""
		if len(args) > 0 {
			code = args[0]
		}
		exitFor(runReceiveSession(code))
	},
}

// validateDestDir ensures the destination is an existing directory.
func validateDestDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("destination directory %q does not exist", dir)
		}
		return fmt.Errorf("cannot access destination directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("destination %q is not a directory", dir)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(receiveCmd)

	receiveCmd.Flags().StringVarP(&receiveFlags.DestDir, "dst", "d", ".", "directory to save the received payload in")
	receiveCmd.Flags().BoolVarP(&receiveFlags.AutoAccept, "yes", "y", false, "accept the transfer without prompting")
}

// runReceiveSession wires the monitor, gate, reporter and engine into a
// receive-side session controller and runs it.
func runReceiveSession(code string) session.Result {
	monitor := session.NewMonitor()
	token := monitor.Start()
	defer monitor.Stop()

	ctx, unbind := token.Bind(context.Background())
	defer unbind()

	if code == "" {
		var err error
		code, err = session.AskForCode(ctx, os.Stdin, os.Stdout)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(os.Stdout, "Transfer cancelled.")
				return session.Result{Status: session.StatusCancelled, Err: err}
			}
			log.Fatalf("no code: %v", err)
		}
	}

	destDir, err := filepath.Abs(receiveFlags.DestDir)
	if err != nil {
		log.Fatalf("cannot resolve destination: %v", err)
	}

	eng, err := newEngine(ctx, destDir)
	if err != nil {
		log.Fatalf("cannot reach rendezvous mailbox: %v", err)
	}

	controller := session.NewController(
		cfg,
		eng,
		session.NewPresenter(), // the receiver typed the code, nothing to present
		session.NewProgressReporter("Receiving", os.Stderr),
		session.NewConfirmationGate(os.Stdin, os.Stdout, cfg.Session.AutoAccept),
		token,
		os.Stdout,
	)

	return controller.RunReceive(ctx, code)
}
