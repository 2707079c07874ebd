package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

// readRequest decodes a JSON request file into v.
func readRequest(path string, v interface{}) {
	data, err := os.ReadFile(path)
	if err != nil {
		cobra.CheckErr(fmt.Errorf("failed to read request file: %w", err))
	}
	if err := json.Unmarshal(data, v); err != nil {
		cobra.CheckErr(fmt.Errorf("failed to unmarshal request file: %w", err))
	}
}

func parseAddress(name, value string) common.Address {
	if !common.IsHexAddress(value) {
		cobra.CheckErr(fmt.Errorf("invalid %v address %q", name, value))
	}
	return common.HexToAddress(value)
}

func printResult(resp json.RawMessage) {
	var v interface{}
	if err := json.Unmarshal(resp, &v); err != nil {
		fmt.Println(string(resp))
		return
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(string(resp))
		return
	}
	fmt.Println(string(out))
}
