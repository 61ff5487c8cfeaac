// Command bdevctl is a generic JSON-RPC 2.0 CLI client over a unix-domain
// socket, the client-side counterpart to the jsonrpc codec: it frames
// requests and parses responses, the same way the SPDK rpc.py tool drives
// any spdk_rpc-speaking target, but does not implement or embed an RPC
// server itself (out of scope — spec.md §1).
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		socketPath   string
		outputFormat string
		timeoutSec   int
	)

	rootCmd := &cobra.Command{
		Use:     "bdevctl",
		Short:   "Drive a JSON-RPC 2.0 bdev-management endpoint over a unix socket",
		Version: version + " (" + commit + ")",
	}

	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "/var/run/bdev.sock", "unix-domain socket to connect to")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "output format: json, yaml")
	rootCmd.PersistentFlags().IntVar(&timeoutSec, "timeout", 5, "connect/request timeout, in seconds")

	rootCmd.AddCommand(newCallCmd(&socketPath, &outputFormat, &timeoutSec))
	rootCmd.AddCommand(newBatchCmd(&socketPath, &outputFormat, &timeoutSec))

	return rootCmd
}
