// Command asbench seeds a cluster, runs a fixed number of put/get pairs
// against it, and prints a latency/error summary. It exists to exercise
// the client end to end, the way the teacher's examples/ programs do.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/aerospike/aerospike-client-go-async-core/pkg/as"
	"github.com/aerospike/aerospike-client-go-async-core/pkg/aslog"
	"github.com/aerospike/aerospike-client-go-async-core/pkg/asmetrics"
)

func main() {
	var (
		seedAddr    string
		namespace   string
		setName     string
		clusterName string
		count       int
		metrics     bool
	)

	root := &cobra.Command{
		Use:   "asbench",
		Short: "Benchmark puts and gets against an Aerospike cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), seedAddr, namespace, setName, clusterName, count, metrics)
		},
	}

	flags := root.Flags()
	flags.StringVar(&seedAddr, "host", "127.0.0.1:3000", "seed host:port")
	flags.StringVar(&namespace, "namespace", "test", "namespace to write to")
	flags.StringVar(&setName, "set", "bench", "set name to write to")
	flags.StringVar(&clusterName, "cluster-name", "", "expected cluster name (optional)")
	flags.IntVar(&count, "count", 1000, "number of put/get pairs to run")
	flags.BoolVar(&metrics, "metrics", false, "register a Prometheus reporter")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, seedAddr, namespace, setName, clusterName string, count int, withMetrics bool) error {
	host, err := parseSeedAddr(seedAddr)
	if err != nil {
		return err
	}

	opts := []as.Opt{as.WithLogger(aslog.New(nil))}
	if clusterName != "" {
		opts = append(opts, as.WithClusterName(clusterName))
	}
	if withMetrics {
		reporter := asmetrics.New(nil)
		opts = append(opts, as.WithPoolObserver(reporter), as.WithCommandObserver(reporter), as.WithTendObserver(reporter))
	}

	policy := as.NewClientPolicy(opts...)
	client, err := as.NewClient(ctx, []as.Host{host}, policy)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()

	writePolicy := as.DefaultWritePolicy()
	readPolicy := as.DefaultPolicy()

	var puts, gets, errs int
	start := time.Now()
	for i := 0; i < count; i++ {
		key := as.NewKey(namespace, setName, as.IntValue(int64(i)))
		bins := as.Bins{"v": as.IntValue(int64(i))}

		if err := client.Put(key, bins, writePolicy); err != nil {
			errs++
			continue
		}
		puts++

		if _, err := client.Get(key, readPolicy); err != nil {
			errs++
			continue
		}
		gets++
	}

	elapsed := time.Since(start)
	fmt.Printf("puts=%d gets=%d errors=%d elapsed=%s\n", puts, gets, errs, elapsed)
	return nil
}

func parseSeedAddr(addr string) (as.Host, error) {
	h, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return as.Host{}, fmt.Errorf("invalid --host %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return as.Host{}, fmt.Errorf("invalid --host port %q: %w", addr, err)
	}
	return as.NewHost(h, port), nil
}
