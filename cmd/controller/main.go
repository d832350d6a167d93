package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hcloud-firewall-controller/internal/discover"
	"hcloud-firewall-controller/internal/engine"
	"hcloud-firewall-controller/internal/hcloud"
	"hcloud-firewall-controller/internal/metrics"
	"hcloud-firewall-controller/internal/model"
	"hcloud-firewall-controller/internal/netparse"
	"hcloud-firewall-controller/internal/provider"
)

const defaultFirewallName = "hcloud-firewall-controller"

func newRootCmd() (*cobra.Command, *viper.Viper) {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "hcloud-firewall-controller",
		Short: "Keeps a Hetzner Cloud firewall in sync with your public IP",
		Long: `hcloud-firewall-controller discovers the host's current public IPv4/IPv6
addresses, derives the firewall rules that should exist from the configured
protocols and ports, and idempotently converges the named Hetzner Cloud
firewall toward that desired state across one or more projects.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v)
		},
	}

	flags := rootCmd.Flags()
	flags.BoolP("run-once", "1", false, "Run a single reconciliation and exit, useful under cron or a systemd timer")
	flags.StringSliceP("token", "t", nil, "Hetzner Cloud API token with read/write permissions, repeatable or comma separated to manage several projects")
	flags.StringP("firewall-name", "f", defaultFirewallName, "Name of the firewall to manage, created when missing")
	flags.StringSlice("tcp", nil, "TCP ports or port ranges to allow, e.g. '80', '80,443' or '8000-8005'")
	flags.StringSlice("udp", nil, "UDP ports or port ranges to allow, see --tcp for examples")
	flags.Bool("icmp", false, "Allow ICMP traffic")
	flags.Bool("gre", false, "Allow GRE traffic")
	flags.Bool("esp", false, "Allow ESP traffic")
	flags.StringSlice("ip", nil, "Static networks in CIDR notation added to every rule; the address must be the network id, so 127.0.0.0/24 works while 127.0.0.1/24 does not")
	flags.Bool("disable-ipv4", false, "Disable discovery of the public IPv4 address")
	flags.Bool("disable-ipv6", false, "Disable discovery of the public IPv6 address")
	flags.UintP("reconciliation-interval", "r", 60, "Reconciliation interval in seconds")
	flags.StringP("ip-endpoint", "e", "https://ip.fotoallerlei.com", "Endpoint returning the caller's public IP as plain text")
	flags.String("api-endpoint", hcloud.DefaultBaseURL, "Hetzner Cloud API base URL")
	flags.String("accounts-file", "", "YAML file with per-account tokens and firewall name overrides")
	flags.String("db-dsn", "", "Optional MariaDB DSN for an external allow-list table merged into every cycle")
	flags.String("db-table", provider.DefaultTable, "Allow-list table name, single column 'cidr'")
	flags.String("metrics-addr", "", "Expose Prometheus metrics on this address, e.g. ':9090' (disabled when empty)")
	flags.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	flags.String("log-file", "", "Log file path (default: stderr)")

	v.SetEnvPrefix("HFC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.BindPFlags(flags)

	return rootCmd, v
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd, _ := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, v *viper.Viper) error {
	logger := setupLogger(v.GetString("log-level"), v.GetString("log-file"))
	slog.SetDefault(logger)

	rules, err := buildRuleConfig(v)
	if err != nil {
		slog.Error("invalid port configuration", "error", err)
		return err
	}

	static, err := netparse.ParseNetworkPrefixes(splitList(v.GetStringSlice("ip")))
	if err != nil {
		slog.Error("invalid static network configuration", "error", err)
		return err
	}

	accounts, err := loadAccounts(v.GetString("accounts-file"), v.GetString("firewall-name"), splitList(v.GetStringSlice("token")))
	if err != nil {
		slog.Error("invalid account configuration", "error", err)
		return err
	}

	var source engine.SourceProvider
	if dsn := v.GetString("db-dsn"); dsn != "" {
		db, err := provider.NewMariaDBSource(dsn, v.GetString("db-table"))
		if err != nil {
			slog.Error("connecting to allow-list database failed", "error", err)
			return err
		}
		defer db.Close()
		source = db
	}

	if addr := v.GetString("metrics-addr"); addr != "" {
		go metrics.Serve(ctx, addr)
	}

	book := engine.NewAddressBook(
		discover.NewHTTPResolver(v.GetString("ip-endpoint")),
		source,
		!v.GetBool("disable-ipv4"),
		!v.GetBool("disable-ipv6"),
		static,
	)

	apiEndpoint := v.GetString("api-endpoint")
	reconciler := engine.NewReconciler(func(token string) hcloud.Client {
		return hcloud.NewClient(token, apiEndpoint)
	})

	scheduler := engine.NewScheduler(
		accounts,
		book,
		rules,
		reconciler,
		time.Duration(v.GetUint("reconciliation-interval"))*time.Second,
		v.GetBool("run-once"),
	)

	slog.Info("starting reconciliation",
		"accounts", len(accounts),
		"firewall", v.GetString("firewall-name"),
		"run_once", v.GetBool("run-once"))
	return scheduler.Run(ctx)
}

func buildRuleConfig(v *viper.Viper) (engine.RuleConfig, error) {
	tcpPorts, err := netparse.ParsePortRanges(model.TCP, v.GetStringSlice("tcp"))
	if err != nil {
		return engine.RuleConfig{}, err
	}
	udpPorts, err := netparse.ParsePortRanges(model.UDP, v.GetStringSlice("udp"))
	if err != nil {
		return engine.RuleConfig{}, err
	}
	return engine.RuleConfig{
		ICMP:     v.GetBool("icmp"),
		GRE:      v.GetBool("gre"),
		ESP:      v.GetBool("esp"),
		TCPPorts: tcpPorts,
		UDPPorts: udpPorts,
	}, nil
}

// splitList flattens comma separated entries, which show up when a list
// flag is populated from its HFC_* environment variable.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

func setupLogger(level, logFilePath string) *slog.Logger {
	var logWriter io.Writer = os.Stderr
	if logFilePath != "" {
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			logWriter = f
		}
		// Logger is not set up yet, fall back to stderr silently.
	}

	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "INFO":
		lvl = slog.LevelInfo
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(logWriter, &slog.HandlerOptions{Level: lvl}))
}
