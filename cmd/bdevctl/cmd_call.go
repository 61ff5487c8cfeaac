package main

import (
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

var errUnknownOutputFormat = errors.New("unknown output format")

func newCallCmd(socketPath, outputFormat *string, timeoutSec *int) *cobra.Command {
	var params string

	cmd := &cobra.Command{
		Use:   "call <method>",
		Short: "Send one JSON-RPC request and print the response",
		Long: `Send a single JSON-RPC 2.0 request over the configured unix socket and
print its response.

Examples:
  # Call a method with no parameters
  bdevctl call bdev_get_bdevs

  # Call a method with a raw JSON params object
  bdevctl call bdev_get_bdevs --params '{"name":"Malloc0"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(*socketPath, time.Duration(*timeoutSec)*time.Second, args[0], params, *outputFormat)
		},
	}
	cmd.Flags().StringVar(&params, "params", "", "raw JSON object to send as the request's params field")
	return cmd
}

func runCall(socketPath string, timeout time.Duration, method, params, outputFormat string) error {
	if params != "" && !jsoniter.Valid([]byte(params)) {
		return fmt.Errorf("--params is not valid JSON: %q", params)
	}

	c, err := dialRPC(socketPath, timeout)
	if err != nil {
		return err
	}
	defer c.Close()

	var writeParams func(w *jsoniter.Stream)
	if params != "" {
		writeParams = func(w *jsoniter.Stream) { w.WriteRaw(params) }
	}

	resp, err := c.call(1, method, writeParams)
	if err != nil {
		return err
	}
	return printResponse(resp, outputFormat)
}
