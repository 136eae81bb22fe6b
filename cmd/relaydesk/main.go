// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

// relaydesk is the operator CLI for a Relaydesk deployment. The engine
// itself runs embedded in a host process that links the platform
// transports; this binary validates configuration and inspects the
// persisted per-tenant state on disk.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/relaydesk/relaydesk/lib/channelmap"
	"github.com/relaydesk/relaydesk/lib/clock"
	"github.com/relaydesk/relaydesk/lib/config"
	"github.com/relaydesk/relaydesk/lib/identity"
	"github.com/relaydesk/relaydesk/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var verbose bool
	var status bool

	flagSet := pflag.NewFlagSet("relaydesk", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to relaydesk.yaml (default: $RELAYDESK_CONFIG)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flagSet.BoolVar(&status, "status", false, "show per-tenant bridge state")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing to match other binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("relaydesk")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printUsage(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printUsage(flagSet)
		return nil
	}

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	if status {
		return printStatus(cfg, logger)
	}

	printUsage(flagSet)
	return nil
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Print(`relaydesk - contact-to-ticket bridge operator CLI

USAGE
    relaydesk [flags]

FLAGS
`)
	fmt.Println(flagSet.FlagUsages())
	fmt.Print(`EXAMPLES
    # Validate the configuration
    relaydesk --config ./relaydesk.yaml

    # Inspect every tenant's persisted state
    relaydesk --config ./relaydesk.yaml --status
`)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	tenantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	countStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// printStatus renders one line per tenant storage root: registered
// contacts and active channel bindings, read straight from the
// persisted stores.
func printStatus(cfg *config.Config, logger *slog.Logger) error {
	entries, err := os.ReadDir(cfg.Paths.Root)
	if err != nil {
		return fmt.Errorf("reading storage root %s: %w", cfg.Paths.Root, err)
	}

	var tenants []string
	for _, entry := range entries {
		if entry.IsDir() {
			tenants = append(tenants, entry.Name())
		}
	}
	sort.Strings(tenants)

	if len(tenants) == 0 {
		fmt.Println(dimStyle.Render("no tenants registered under " + cfg.Paths.Root))
		return nil
	}

	fmt.Println(headerStyle.Render("TENANT            CONTACTS  OPEN TICKETS"))
	for _, tenant := range tenants {
		root := filepath.Join(cfg.Paths.Root, tenant)

		identities, err := identity.Open(root, clock.Real(), logger)
		if err != nil {
			logger.Error("reading tenant identity store failed", "tenant", tenant, "error", err)
			continue
		}
		channels, err := channelmap.Open(root, logger)
		if err != nil {
			logger.Error("reading tenant channel map failed", "tenant", tenant, "error", err)
			continue
		}

		fmt.Printf("%s  %s  %s\n",
			tenantStyle.Width(16).Render(tenant),
			countStyle.Width(8).Align(lipgloss.Right).Render(fmt.Sprintf("%d", identities.Count())),
			countStyle.Width(12).Align(lipgloss.Right).Render(fmt.Sprintf("%d", channels.Len())),
		)
	}
	return nil
}
