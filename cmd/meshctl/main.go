// Command meshctl is a debug CLI for a running meshnode: it dials either
// its neighbor-query listener (-debug-addr) or its Tunnel bridge listener
// (-tunnel-addr) and prints whatever comes back.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"meshnet/socket/tunnel"
)

func main() {
	debugAddr := flag.String("debug-addr", "", "dial a meshnode's debug listener and run one query")
	tunnelAddr := flag.String("tunnel-addr", "", "dial a meshnode's Tunnel bridge and pipe stdin/stdout to it")
	query := flag.String("query", "NEIGHBORS", "query line sent to -debug-addr")
	flag.Parse()

	ctx := context.Background()

	switch {
	case *debugAddr != "":
		if err := runQuery(ctx, *debugAddr, *query); err != nil {
			fmt.Fprintf(os.Stderr, "meshctl: %v\n", err)
			os.Exit(1)
		}
	case *tunnelAddr != "":
		if err := runBridge(ctx, *tunnelAddr); err != nil {
			fmt.Fprintf(os.Stderr, "meshctl: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "meshctl: one of -debug-addr or -tunnel-addr is required")
		os.Exit(1)
	}
}

// runQuery sends one line to addr's debug listener and prints every line of
// its response until the stream closes.
func runQuery(ctx context.Context, addr, query string) error {
	conn, stream, err := tunnel.DialClient(ctx, addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.CloseWithError(0, "")

	if _, err := fmt.Fprintf(stream, "%s\n", query); err != nil {
		return fmt.Errorf("send query: %w", err)
	}
	scanner := bufio.NewScanner(stream)
	for scanner.Scan() {
		fmt.Println(scanner.Text())
	}
	return nil
}

// runBridge pipes stdin to the tunnel stream and the stream to stdout,
// exercising the same Tunnel transport a real debug client would use to
// reach a node's mesh-side byte stream.
func runBridge(ctx context.Context, addr string) error {
	conn, stream, err := tunnel.DialClient(ctx, addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.CloseWithError(0, "")

	errCh := make(chan error, 2)
	go func() { _, err := io.Copy(stream, os.Stdin); errCh <- err }()
	go func() { _, err := io.Copy(os.Stdout, stream); errCh <- err }()
	return <-errCh
}
