package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/NordCoder/Sitewatch/internal/domain/audit"
	"github.com/NordCoder/Sitewatch/internal/domain/check"
	"github.com/NordCoder/Sitewatch/internal/domain/monitor"
	"github.com/NordCoder/Sitewatch/internal/services/scheduler"
)

var errAborted = errors.New("aborted")

func flagSet(name string) *pflag.FlagSet {
	return pflag.NewFlagSet(name, pflag.ContinueOnError)
}

func parseCheckArgs(args []string, actor string) (scheduler.ForceRequest, error) {
	fs := flagSet("check")
	all := fs.Bool("all", false, "check every active monitor")
	id := fs.Int64("monitor", 0, "monitor id")
	typ := fs.String("type", "both", "uptime|ssl|both")
	if err := fs.Parse(args); err != nil {
		return scheduler.ForceRequest{}, err
	}
	if *all == (*id != 0) {
		return scheduler.ForceRequest{}, errors.New("exactly one of --all or --monitor is required")
	}
	t, err := check.ParseType(*typ)
	if err != nil {
		return scheduler.ForceRequest{}, err
	}
	return scheduler.ForceRequest{MonitorID: *id, All: *all, Type: t, Actor: actor}, nil
}

func runCheck(ctx context.Context, e *env, args []string) error {
	req, err := parseCheckArgs(args, e.cfg.Actor)
	if err != nil {
		return err
	}
	uc, err := e.usecase(ctx)
	if err != nil {
		return err
	}
	b, err := uc.ForceCheck(ctx, req)
	_, _ = fmt.Fprintf(e.out, "requested %d check(s) for %d monitor(s)\n", b.Sent, b.Fetched)
	return err
}

func runBackfill(ctx context.Context, e *env, args []string) error {
	fs := flagSet("backfill-ssl")
	since := fs.Duration("since", 24*time.Hour, "re-check monitors without an SSL result in this window")
	if err := fs.Parse(args); err != nil {
		return err
	}
	uc, err := e.usecase(ctx)
	if err != nil {
		return err
	}
	b, err := uc.BackfillSSL(ctx, time.Now().Add(-*since), e.cfg.Actor)
	_, _ = fmt.Fprintf(e.out, "requested SSL checks for %d monitor(s)\n", b.Sent)
	return err
}

type pruneArgs struct {
	olderThan time.Duration
	dryRun    bool
	yes       bool
}

func parsePruneArgs(args []string, def time.Duration) (pruneArgs, error) {
	fs := flagSet("prune")
	var p pruneArgs
	fs.DurationVar(&p.olderThan, "older-than", def, "delete results older than this")
	fs.BoolVar(&p.dryRun, "dry-run", false, "only count matching results")
	fs.BoolVar(&p.yes, "yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return p, err
	}
	if p.olderThan <= 0 {
		return p, fmt.Errorf("--older-than must be positive, got %s", p.olderThan)
	}
	return p, nil
}

func runPrune(ctx context.Context, e *env, args []string) error {
	p, err := parsePruneArgs(args, e.cfg.Retention)
	if err != nil {
		return err
	}
	uc, err := e.usecase(ctx)
	if err != nil {
		return err
	}

	req := scheduler.PruneRequest{Retention: p.olderThan, DryRun: true, Actor: e.cfg.Actor, Source: audit.SourceCLI}
	n, err := uc.Prune(ctx, req)
	if err != nil {
		return err
	}
	if p.dryRun {
		_, _ = fmt.Fprintf(e.out, "%d result(s) older than %s would be deleted\n", n, p.olderThan)
		return nil
	}
	if n == 0 {
		_, _ = fmt.Fprintln(e.out, "nothing to prune")
		return nil
	}
	if !p.yes && !confirm(e.in, e.out, fmt.Sprintf("delete %d result(s) older than %s?", n, p.olderThan)) {
		return errAborted
	}

	req.DryRun = false
	n, err = uc.Prune(ctx, req)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(e.out, "deleted %d result(s)\n", n)
	return nil
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	_, _ = fmt.Fprintf(out, "%s [y/N]: ", prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func runMonitor(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 {
		return errors.New("monitor: expected add, update, disable or list")
	}
	uc, err := e.usecase(ctx)
	if err != nil {
		return err
	}
	switch args[0] {
	case "add":
		m, err := parseMonitorAdd(args[1:])
		if err != nil {
			return err
		}
		if err := uc.AddMonitor(ctx, m, e.cfg.Actor); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(e.out, "monitor %d created\n", m.ID)
		return nil
	case "update":
		id, patch, err := parseMonitorUpdate(args[1:])
		if err != nil {
			return err
		}
		m, err := uc.UpdateMonitor(ctx, id, patch, e.cfg.Actor)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(e.out, "monitor %d updated\n", m.ID)
		return nil
	case "disable":
		id, err := parseID(args[1:])
		if err != nil {
			return err
		}
		if err := uc.DisableMonitor(ctx, id, e.cfg.Actor); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(e.out, "monitor %d disabled\n", id)
		return nil
	case "list":
		fs := flagSet("monitor list")
		all := fs.Bool("all", false, "include disabled monitors")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		list, err := uc.ListMonitors(ctx, *all)
		if err != nil {
			return err
		}
		return printMonitors(e.out, list)
	default:
		return fmt.Errorf("monitor: unknown subcommand %q", args[0])
	}
}

func parseMonitorAdd(args []string) (*monitor.Monitor, error) {
	fs := flagSet("monitor add")
	m := &monitor.Monitor{}
	fs.StringVar(&m.Name, "name", "", "display name")
	fs.StringVar(&m.URL, "url", "", "http(s) URL to watch")
	fs.BoolVar(&m.UptimeCheckEnabled, "uptime", true, "enable uptime checks")
	fs.BoolVar(&m.CertificateCheckEnabled, "ssl", true, "enable certificate checks")
	fs.DurationVar(&m.CheckInterval, "interval", 5*time.Minute, "uptime check interval")
	fs.IntVar(&m.ExpectedStatusCode, "expected-status", 0, "exact status to expect (0 accepts any 2xx/3xx)")
	fs.StringSliceVar(&m.ExpectedContent, "expect", nil, "text that must appear in the body")
	fs.StringSliceVar(&m.ForbiddenContent, "forbid", nil, "text that must not appear in the body")
	fs.StringArrayVar(&m.ContentPatterns, "pattern", nil, "regular expression the body must match")
	fs.BoolVar(&m.JavaScriptEnabled, "js", false, "request JavaScript rendering")
	fs.DurationVar(&m.JavaScriptWait, "js-wait", 0, "wait after load when rendering JavaScript")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return m, nil
}

// parseMonitorUpdate reads "ID [flags]"; only flags given on the command
// line end up in the patch.
func parseMonitorUpdate(args []string) (int64, monitor.Patch, error) {
	fs := flagSet("monitor update")
	var (
		p       monitor.Patch
		name    = fs.String("name", "", "display name")
		rawURL  = fs.String("url", "", "http(s) URL to watch")
		uptime  = fs.Bool("uptime", true, "enable uptime checks")
		ssl     = fs.Bool("ssl", true, "enable certificate checks")
		every   = fs.Duration("interval", 0, "uptime check interval")
		status  = fs.Int("expected-status", 0, "exact status to expect (0 accepts any 2xx/3xx)")
		expect  = fs.StringSlice("expect", nil, "text that must appear in the body")
		forbid  = fs.StringSlice("forbid", nil, "text that must not appear in the body")
		pattern = fs.StringArray("pattern", nil, "regular expression the body must match")
		js      = fs.Bool("js", false, "request JavaScript rendering")
		jsWait  = fs.Duration("js-wait", 0, "wait after load when rendering JavaScript")
	)
	if err := fs.Parse(args); err != nil {
		return 0, p, err
	}
	id, err := parseID(fs.Args())
	if err != nil {
		return 0, p, err
	}

	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "name":
			p.Name = name
		case "url":
			p.URL = rawURL
		case "uptime":
			p.UptimeCheckEnabled = uptime
		case "ssl":
			p.CertificateCheckEnabled = ssl
		case "interval":
			p.CheckInterval = every
		case "expected-status":
			p.ExpectedStatusCode = status
		case "expect":
			p.ExpectedContent = expect
		case "forbid":
			p.ForbiddenContent = forbid
		case "pattern":
			p.ContentPatterns = pattern
		case "js":
			p.JavaScriptEnabled = js
		case "js-wait":
			p.JavaScriptWait = jsWait
		}
	})
	if fs.NFlag() == 0 {
		return 0, p, errors.New("monitor update: no fields to change")
	}
	return id, p, nil
}

func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.New("expected exactly one ID")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", args[0])
	}
	return id, nil
}

func printMonitors(out io.Writer, list []*monitor.Monitor) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tURL\tUPTIME\tSSL\tINTERVAL\tLAST CHECK\tSTATE")
	for _, m := range list {
		last := "-"
		if m.LastCheckedAt != nil {
			last = m.LastCheckedAt.UTC().Format(time.RFC3339)
		}
		state := "active"
		if !m.Active() {
			state = "disabled"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			m.ID, m.Name, m.URL,
			checkState(m.UptimeCheckEnabled, string(m.UptimeStatus)),
			checkState(m.CertificateCheckEnabled, string(m.SSLStatus)),
			m.CheckInterval, last, state)
	}
	return tw.Flush()
}

func checkState(enabled bool, status string) string {
	if !enabled {
		return "off"
	}
	if status == "" {
		return "pending"
	}
	return status
}

func runAlert(ctx context.Context, e *env, args []string) error {
	if len(args) != 2 || args[0] != "ack" {
		return errors.New("usage: monctl alert ack ID")
	}
	id, err := uuid.Parse(args[1])
	if err != nil {
		return fmt.Errorf("invalid alert id %q: %w", args[1], err)
	}
	c, err := e.alerts(ctx)
	if err != nil {
		return err
	}
	if err := c.Acknowledge(ctx, id); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(e.out, "alert %s acknowledged\n", id)
	return nil
}

var healthServices = []string{"", "postgres", "kafka", "scheduler"}

func runHealth(ctx context.Context, e *env, args []string) error {
	fs := flagSet("health")
	addr := fs.String("addr", e.cfg.HealthAddr, "scheduler ops gRPC address")
	timeout := fs.Duration("timeout", 5*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial %s: %w", *addr, err)
	}
	defer conn.Close()
	return reportHealth(ctx, e.out, healthpb.NewHealthClient(conn), *timeout)
}

func reportHealth(ctx context.Context, out io.Writer, client healthpb.HealthClient, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SERVICE\tSTATUS")
	var overall healthpb.HealthCheckResponse_ServingStatus
	for _, svc := range healthServices {
		status := "UNREACHABLE"
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: svc})
		if err == nil {
			status = resp.GetStatus().String()
			if svc == "" {
				overall = resp.GetStatus()
			}
		}
		name := svc
		if name == "" {
			name = "(overall)"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", name, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if overall != healthpb.HealthCheckResponse_SERVING {
		return errors.New("scheduler is not healthy")
	}
	return nil
}
