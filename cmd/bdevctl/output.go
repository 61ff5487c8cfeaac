package main

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/go-bdev/bdev/jsonrpc"
)

// responseView is the shape printed to the user: a plain projection of
// jsonrpc.Response omitting the version field, which carries no operator
// value.
type responseView struct {
	ID     interface{} `json:"id,omitempty" yaml:"id,omitempty"`
	Result interface{} `json:"result,omitempty" yaml:"result,omitempty"`
	Error  interface{} `json:"error,omitempty" yaml:"error,omitempty"`
}

func printResponse(resp *jsonrpc.Response, format string) error {
	view := responseView{ID: resp.ID, Result: resp.Result, Error: resp.Error}

	switch format {
	case "json", "":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		return enc.Encode(view)
	default:
		return fmt.Errorf("%w: %s", errUnknownOutputFormat, format)
	}
}
