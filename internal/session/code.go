package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"codedrop/pkg/wordlist"
)

// AskForCode prompts for a session code until a well-formed one is
// entered. A partial last word with exactly one wordlist completion is
// expanded in place. The blocking read is guarded by ctx so an
// interrupt while waiting for a keystroke unblocks promptly.
func AskForCode(ctx context.Context, in io.Reader, out io.Writer) (string, error) {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "Enter code from sender: ")

		inputCh := make(chan string, 1)
		readDone := make(chan struct{})
		go func() {
			if scanner.Scan() {
				inputCh <- strings.TrimSpace(scanner.Text())
				return
			}
			close(readDone)
		}()

		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return "", ctx.Err()
		case entry := <-inputCh:
			code := entry
			if matches := wordlist.Complete(code); len(matches) == 1 && matches[0] != code {
				code = matches[0]
				fmt.Fprintf(out, "Using: %s\n", code)
			}
			if err := wordlist.Validate(code); err != nil {
				if matches := wordlist.Complete(entry); len(matches) > 1 {
					fmt.Fprintf(out, "Ambiguous code, could be: %s\n",
						strings.Join(matches[:min(len(matches), 4)], ", "))
				} else {
					fmt.Fprintf(out, "Invalid code (%v), please enter again.\n", err)
				}
				continue
			}
			return code, nil
		case <-readDone:
			return "", fmt.Errorf("input closed before a code was entered")
		}
	}
}
