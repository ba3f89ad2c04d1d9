// Package main provides the falkorq CLI, a small query tool for FalkorDB.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/saulfrancisco-ruizacevedo/go-falkorpersist"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "falkorq",
		Short: "falkorq - run Cypher against FalkorDB and print decoded results",
		Long: `falkorq sends queries with the compact result protocol and prints
every row as JSON, with labels, relationship types and property keys resolved.

Settings come from --config (YAML), then FALKORDB_URL, FALKORDB_GRAPH and
FALKORDB_LOG_LEVEL, then the flags below.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "YAML config file")
	rootCmd.PersistentFlags().String("url", "", "Server URL (redis://[user:pass@]host:port)")
	rootCmd.PersistentFlags().StringP("graph", "g", "", "Graph name")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	// Query command
	queryCmd := &cobra.Command{
		Use:   "query <cypher>",
		Short: "Run a query and print its rows",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuery,
	}
	queryCmd.Flags().StringArrayP("param", "p", nil, "Query parameter as name=value (repeatable)")
	queryCmd.Flags().Bool("readonly", false, "Use GRAPH.RO_QUERY")
	queryCmd.Flags().Duration("timeout", 0, "Server-side query timeout")
	rootCmd.AddCommand(queryCmd)

	// Graphs command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "graphs",
		Short: "List the graphs on the server",
		Args:  cobra.NoArgs,
		RunE:  runGraphs,
	})

	// Schema command
	rootCmd.AddCommand(&cobra.Command{
		Use:       "schema <labels|relationship-types|property-keys>",
		Short:     "List the labels, relationship types or property keys of a graph",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"labels", "relationship-types", "property-keys"},
		RunE:      runSchema,
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type session struct {
	exec   *falkorpersist.RedisExecutor
	client *falkorpersist.Client
	graph  *falkorpersist.Graph
	log    *logrus.Logger
}

func (s *session) Close() {
	if err := s.exec.Close(); err != nil {
		s.log.WithError(err).Warn("closing connection")
	}
}

func openSession(cmd *cobra.Command) (*session, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := falkorpersist.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("url"); v != "" {
		cfg.URL = v
	}
	if v, _ := cmd.Flags().GetString("graph"); v != "" {
		cfg.Graph = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	logger.SetOutput(os.Stderr)

	exec, err := falkorpersist.NewRedisExecutor(cfg)
	if err != nil {
		return nil, err
	}
	client := falkorpersist.NewClient(exec, falkorpersist.WithLogger(logger))
	return &session{
		exec:   exec,
		client: client,
		graph:  client.SelectGraph(cfg.Graph),
		log:    logger,
	}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runQuery(cmd *cobra.Command, args []string) error {
	rawParams, _ := cmd.Flags().GetStringArray("param")
	readonly, _ := cmd.Flags().GetBool("readonly")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	params, err := parseParams(rawParams)
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := signalContext()
	defer cancel()

	var opts []falkorpersist.QueryOption
	if timeout > 0 {
		opts = append(opts, falkorpersist.WithTimeout(timeout))
	}

	run := s.graph.Query
	if readonly {
		run = s.graph.ROQuery
	}
	start := time.Now()
	res, err := run(ctx, args[0], params, opts...)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, row := range res.Rows {
		out := make(map[string]any, len(row.Keys))
		for i, k := range row.Keys {
			out[k] = falkorpersist.Native(row.Values[i])
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	s.log.WithFields(logrus.Fields{
		"rows":           len(res.Rows),
		"nodes_created":  res.Stats.NodesCreated,
		"properties_set": res.Stats.PropertiesSet,
		"execution_time": res.Stats.ExecutionTime,
		"elapsed":        time.Since(start),
	}).Info("query done")
	return nil
}

func runGraphs(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := signalContext()
	defer cancel()

	graphs, err := s.client.ListGraphs(ctx)
	if err != nil {
		return err
	}
	for _, g := range graphs {
		fmt.Fprintln(cmd.OutOrStdout(), g)
	}
	return nil
}

func runSchema(cmd *cobra.Command, args []string) error {
	var table falkorpersist.SchemaTable
	switch args[0] {
	case "labels":
		table = falkorpersist.Labels
	case "relationship-types":
		table = falkorpersist.RelationshipTypes
	case "property-keys":
		table = falkorpersist.PropertyKeys
	default:
		return fmt.Errorf("unknown schema table %q", args[0])
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := signalContext()
	defer cancel()

	names, err := s.graph.Schema().List(ctx, table)
	if err != nil {
		return err
	}
	for i, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i, name)
	}
	return nil
}

// parseParams turns name=value flags into query parameters. Values that
// parse as integers, floats or booleans keep that type; `null` is nil and
// anything else is a string.
func parseParams(raw []string) (map[string]any, error) {
	params := make(map[string]any, len(raw))
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected name=value", kv)
		}
		params[name] = parseParamValue(value)
	}
	return params, nil
}

func parseParamValue(s string) any {
	if s == "null" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
