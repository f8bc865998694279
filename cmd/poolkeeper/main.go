package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"

	serverURL string

	httpClient = &http.Client{Timeout: 30 * time.Second}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "poolkeeper",
	Short:   "Poolkeeper CLI - manage resource pools over the HTTP API",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server",
		"http://127.0.0.1:8080", "Address of the poolkeeperd API server")

	rootCmd.AddCommand(driverCmd)
	rootCmd.AddCommand(resourceCmd)
}

// apiRequest performs one JSON request against the server and decodes the
// response envelope. A non-2xx response is returned as an error carrying
// the server's error message.
func apiRequest(method, path string, body interface{}) (map[string]interface{}, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequest(method, serverURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	decoded := map[string]interface{}{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("server returned %s: %s", resp.Status, raw)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if msg, ok := decoded["error"].(string); ok {
			return nil, fmt.Errorf("%s (%s)", msg, resp.Status)
		}
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}
	return decoded, nil
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// Driver commands
var driverCmd = &cobra.Command{
	Use:   "driver",
	Short: "Inspect registered drivers",
}

var driverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered driver names",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := apiRequest(http.MethodGet, "/v1/drivers/", nil)
		if err != nil {
			return err
		}
		drivers, _ := body["drivers"].([]interface{})
		for _, d := range drivers {
			fmt.Println(d)
		}
		return nil
	},
}

var driverSchemaCmd = &cobra.Command{
	Use:   "schema <name>",
	Short: "Show a driver's input schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := apiRequest(http.MethodGet, "/v1/drivers/"+args[0], nil)
		if err != nil {
			return err
		}
		return printJSON(body["driver"])
	},
}

func init() {
	driverCmd.AddCommand(driverListCmd)
	driverCmd.AddCommand(driverSchemaCmd)
}
