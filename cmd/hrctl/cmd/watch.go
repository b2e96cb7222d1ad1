package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jrsteele09/go-workforce-client/hrclient"
	"github.com/jrsteele09/go-workforce-client/invalidation"
	"github.com/jrsteele09/go-workforce-client/push"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the push channel",
	Long: `Keep the push channel open and print connection status changes and
notifications until interrupted. Run with LOG_LEVEL=debug to see cache
invalidations as data changes arrive.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		out := &syncWriter{w: cmd.OutOrStdout()}
		c, release, err := newClient(cmd, hrclient.WithNotifier(notificationPrinter(out)))
		if err != nil {
			return err
		}
		defer release()
		if err := restore(c); err != nil {
			return err
		}
		return runWatch(ctx, out, audience(c).Push)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// syncWriter serialises writes from the push goroutine and the status loop.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func notificationPrinter(w io.Writer) invalidation.Notifier {
	return invalidation.NotifierFunc(func(n push.Notification) {
		fmt.Fprintf(w, "%s  notification  %s: %s\n", mutedStyle.Render(time.Now().Format(time.TimeOnly)), titleStyle.Render(n.Title), n.Body)
	})
}

// runWatch prints every status change of p until ctx is done.
func runWatch(ctx context.Context, w io.Writer, p *push.Client) error {
	lease := p.Subscribe()
	defer lease.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-lease.C():
			if !ok {
				return nil
			}
			fmt.Fprintf(w, "%s  status        %s\n", mutedStyle.Render(time.Now().Format(time.TimeOnly)), statusStyle(s).Render(s.String()))
		}
	}
}
