package main

import (
	"time"

	"github.com/spf13/cobra"
)

func newBatchCmd(socketPath, outputFormat *string, timeoutSec *int) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <method> [method...]",
		Short: "Send several no-params methods as one JSON-RPC batch",
		Long: `Wrap one request per method in a single JSON-RPC batch array and print
the codec's aggregated response: the first error observed, if any, otherwise
the first successful result.

Example:
  bdevctl batch bdev_get_bdevs bdev_nvme_get_controllers`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(*socketPath, time.Duration(*timeoutSec)*time.Second, args, *outputFormat)
		},
	}
	return cmd
}

func runBatch(socketPath string, timeout time.Duration, methods []string, outputFormat string) error {
	c, err := dialRPC(socketPath, timeout)
	if err != nil {
		return err
	}
	defer c.Close()

	resp, err := c.callBatch(methods)
	if err != nil {
		return err
	}
	return printResponse(resp, outputFormat)
}
