// Command dronectl drives a running dronesim over its gRPC command API.
//
//	dronectl [-endpoint host:port] add [-types circle,square] [-count N]
//	dronectl [-endpoint host:port] filter [circle,triangle,...]
//	dronectl [-endpoint host:port] list
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/drone-simulator/core"
	"github.com/signalsfoundry/drone-simulator/internal/command"
	"github.com/signalsfoundry/drone-simulator/model"
)

var errUsage = errors.New("usage: dronectl [-endpoint host:port] add|filter|list [args]")

func main() {
	endpoint := flag.String("endpoint", "localhost:50051", "dronesim gRPC endpoint (host:port)")
	timeout := flag.Duration("timeout", 10*time.Second, "Per-command deadline")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, err := grpc.NewClient(*endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", *endpoint, err)
		os.Exit(1)
	}
	defer func() { _ = conn.Close() }()

	if err := dispatch(ctx, command.NewClient(conn), flag.Args(), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// dispatch runs one subcommand against client and writes its output to out.
func dispatch(ctx context.Context, client *command.Client, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	ctx = command.WithRequestID(ctx, "dronectl-"+uuid.NewString())

	switch args[0] {
	case "add":
		fs := flag.NewFlagSet("add", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		types := fs.String("types", "circle,triangle,square", "Comma separated drone types")
		count := fs.Int("count", 1, "Drones to spawn per type")
		if err := fs.Parse(args[1:]); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		flags, err := parseTypes(*types)
		if err != nil {
			return err
		}
		res, err := client.AddDrones(ctx, flags, *count)
		if err != nil {
			return fmt.Errorf("add drones: %w", err)
		}
		fmt.Fprintf(out, "added %d, rejected %d\n", len(res.Added), res.Rejected)
		for _, id := range res.Added {
			fmt.Fprintln(out, id)
		}
		return nil

	case "filter":
		if len(args) == 1 {
			f, err := client.GetVisibilityFilter(ctx)
			if err != nil {
				return fmt.Errorf("get filter: %w", err)
			}
			fmt.Fprintln(out, formatTypes(f))
			return nil
		}
		flags, err := parseTypes(args[1])
		if err != nil {
			return err
		}
		if err := client.SetVisibilityFilter(ctx, flags); err != nil {
			return fmt.Errorf("set filter: %w", err)
		}
		fmt.Fprintln(out, formatTypes(flags))
		return nil

	case "list":
		drones, err := client.ListDrones(ctx)
		if err != nil {
			return fmt.Errorf("list drones: %w", err)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTYPE\tLAT\tLNG\tSPEED_KMH\tVISIBLE\tTTL")
		for _, d := range drones {
			ttl := "-"
			if d.TTL != nil {
				ttl = fmt.Sprintf("%.1f", *d.TTL)
			}
			fmt.Fprintf(tw, "%s\t%s\t%.5f\t%.5f\t%.2f\t%t\t%s\n",
				d.ID, d.Type, d.Location.Lat, d.Location.Lng, core.MsToKmh(d.SpeedMS), d.Visible, ttl)
		}
		return tw.Flush()
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
}

// parseTypes accepts a comma separated list of drone type names. An empty
// string or "none" yields no types.
func parseTypes(s string) (model.DroneFlags, error) {
	var f model.DroneFlags
	if s == "" || s == "none" {
		return f, nil
	}
	for _, name := range strings.Split(s, ",") {
		t, err := model.ParseDroneType(strings.TrimSpace(name))
		if err != nil {
			return f, err
		}
		f = f.With(t, true)
	}
	return f, nil
}

func formatTypes(f model.DroneFlags) string {
	types := f.Types()
	if len(types) == 0 {
		return "none"
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ",")
}
