package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"newslens/internal/events"
)

var (
	watchTCP    string
	watchNATS   string
	watchPretty bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live ingestion events from the TCP event stream or NATS",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if watchNATS != "" {
			return watchBus(ctx, out, watchNATS)
		}

		for {
			err := watchStream(ctx, out, watchTCP)
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "disconnected: %v\n", err)

			// reconnect
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchTCP, "tcp", "127.0.0.1:7070", "TCP event stream address")
	watchCmd.Flags().StringVar(&watchNATS, "nats", "", "NATS URL; subscribes to newslens.> instead of the TCP stream")
	watchCmd.Flags().BoolVar(&watchPretty, "pretty", true, "pretty print JSON events")
}

func watchStream(ctx context.Context, out io.Writer, addr string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	// unblock the scanner on cancel
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	fmt.Fprintf(os.Stderr, "connected to %s\n", addr)

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		printEvent(out, sc.Bytes())
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}

func watchBus(ctx context.Context, out io.Writer, url string) error {
	bus, err := events.NewNATSPublisher(url)
	if err != nil {
		return err
	}
	defer bus.Close()

	if _, err := bus.Subscribe(ctx, func(evt events.Event) {
		data, err := json.Marshal(evt)
		if err != nil {
			return
		}
		printEvent(out, data)
	}); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "subscribed to %s\n", events.Subject(">"))
	<-ctx.Done()
	return nil
}

func printEvent(out io.Writer, line []byte) {
	if !watchPretty {
		fmt.Fprintln(out, string(line))
		return
	}

	var obj map[string]any
	if err := json.Unmarshal(line, &obj); err != nil {
		// not JSON? print raw
		fmt.Fprintln(out, string(line))
		return
	}
	b, _ := json.MarshalIndent(obj, "", "  ")
	fmt.Fprintln(out, string(b))
}
