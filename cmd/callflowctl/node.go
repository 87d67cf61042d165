package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	nodehandler "callflow/backend/internal/node/handler"
)

var nodeMethods = map[string]string{
	"execute":    nodehandler.ExecuteMethod,
	"options":    nodehandler.LoadOptionsMethod,
	"activate":   nodehandler.ActivateTriggerMethod,
	"deactivate": nodehandler.DeactivateTriggerMethod,
}

func newNodeCmd() *cobra.Command {
	var (
		addr    string
		token   string
		file    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:       "node execute|options|activate|deactivate",
		Short:     "Call NodeService with a JSON request",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"execute", "options", "activate", "deactivate"},
		Long: `Reads a JSON request from --file (or stdin with "-") and prints the JSON response.

Example:
  callflowctl node execute --addr localhost:8080 --token $TOKEN --file request.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			method, ok := nodeMethods[args[0]]
			if !ok {
				return fmt.Errorf("unknown node method %q", args[0])
			}
			in, err := readRequest(cmd, file)
			if err != nil {
				return err
			}
			if token == "" {
				token = os.Getenv("CALLFLOW_TOKEN")
			}

			conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if token != "" {
				ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
			}
			out, err := nodehandler.NewClient(conn).Invoke(ctx, method, in)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "NodeService gRPC address")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token (default $CALLFLOW_TOKEN)")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON request file, or - for stdin")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Call timeout")
	return cmd
}

func readRequest(cmd *cobra.Command, file string) (map[string]any, error) {
	r := cmd.InOrStdin()
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var in map[string]any
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	return in, nil
}
