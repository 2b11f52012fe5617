package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/standardbeagle/scenebridge/internal/client"
	"github.com/standardbeagle/scenebridge/internal/protocol"
)

var sendCmd = &cobra.Command{
	Use:   "send <action> [params-json]",
	Short: "Send one command to a running server",
	Long: `Send one command and print the response as JSON.

Examples:
  scenebridge send ping
  scenebridge send create_scene '{"root_type":"Node2D","root_name":"Main"}'
  scenebridge send get_scene_tree_simple '{"max_depth":2}'
  echo '{"path":"Main/Hero"}' | scenebridge send get_node_info -

The exit status is 2 when the server answers with an error.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSend,
}

var (
	sendTimeout time.Duration
	sendURL     string
	sendCompact bool
)

func init() {
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 30*time.Second, "Time to wait for the response")
	sendCmd.Flags().StringVar(&sendURL, "url", "", "Server URL (default: from config)")
	sendCmd.Flags().BoolVar(&sendCompact, "compact", false, "Print compact JSON even on a terminal")
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	url := sendURL
	if url == "" {
		url = cfg.URL()
	}

	params, err := readParams(args[1:], cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeout)
	defer cancel()

	c, err := client.Dial(ctx, client.WithURL(url), client.WithTimeout(sendTimeout))
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := c.Send(ctx, args[0], params)
	if err != nil {
		return err
	}

	pretty := !sendCompact && isTerminal(os.Stdout)
	if err := printResult(cmd.OutOrStdout(), res, pretty); err != nil {
		return err
	}
	if !res.OK() {
		os.Exit(2)
	}
	return nil
}

// readParams decodes the optional params argument. "-" reads stdin.
func readParams(args []string, stdin io.Reader) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	raw := []byte(args[0])
	if args[0] == "-" {
		var err error
		if raw, err = io.ReadAll(stdin); err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	}
	var params map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(raw), &params); err != nil {
		return nil, fmt.Errorf("params must be a JSON object: %w", err)
	}
	return params, nil
}

func printResult(w io.Writer, res protocol.Result, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(res)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
