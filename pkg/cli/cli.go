// Package cli implements the mosspay command: one subcommand per client action.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"mosspay/pkg/client"
)

// DefaultServer is used when neither -server nor MOSSPAY_SERVER is set.
const DefaultServer = "http://localhost:5000"

// Env holds the process streams so commands stay testable.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Interactive enables the bill builder TUI.
	Interactive bool
}

type globals struct {
	server   string
	email    string
	password string
}

type command struct {
	summary string
	run     func(ctx context.Context, g globals, env Env, args []string) error
}

var commands = map[string]command{
	"register-consumer": {"create a consumer account", registerConsumer},
	"register-vendor":   {"create a vendor account", registerVendor},
	"bills":             {"list your bills (consumer)", listBills},
	"log-purchase":      {"log a pending bill and claim its MossCoins (consumer)", logPurchase},
	"rewards":           {"list rewards and your balance (consumer)", listRewards},
	"redeem":            {"redeem a reward by id (consumer)", redeem},
	"items":             {"list billable items (vendor)", listItems},
	"add-item":          {"add an inventory item (vendor)", addItem},
	"delete-item":       {"delete an inventory item (vendor)", deleteItem},
	"send-bill":         {"send a bill to a customer phone (vendor)", sendBill},
	"bill":              {"open the interactive bill builder (vendor)", billBuilder},
	"change-password":   {"change the password of a consumer or vendor", changePassword},
	"advisor":           {"ask the eco advisor (consumer)", askAdvisor},
	"health":            {"show server health", health},
}

// ErrUsage is returned when the command line cannot be understood.
var ErrUsage = errors.New("usage error")

// Run parses global flags, then dispatches to the named subcommand.
func Run(ctx context.Context, args []string, env Env) error {
	if env.Stdout == nil {
		env.Stdout = io.Discard
	}
	if env.Stderr == nil {
		env.Stderr = io.Discard
	}
	set := flag.NewFlagSet("mosspay", flag.ContinueOnError)
	set.SetOutput(env.Stderr)
	set.Usage = func() { usage(env.Stderr) }

	var g globals
	set.StringVar(&g.server, "server", envOr("MOSSPAY_SERVER", DefaultServer), "MossPay server base URL")
	set.StringVar(&g.email, "email", os.Getenv("MOSSPAY_EMAIL"), "login email")
	set.StringVar(&g.password, "password", os.Getenv("MOSSPAY_PASSWORD"), "login password")
	if err := set.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	rest := set.Args()
	if len(rest) == 0 {
		usage(env.Stderr)
		return fmt.Errorf("%w: missing command", ErrUsage)
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		usage(env.Stderr)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, rest[0])
	}
	return cmd.run(ctx, g, env, rest[1:])
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: mosspay [-server URL] [-email E -password P] <command> [flags]")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-18s %s\n", name, commands[name].summary)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// subFlags builds a FlagSet for one subcommand with errors going to stderr.
func subFlags(name string, env Env) *flag.FlagSet {
	set := flag.NewFlagSet(name, flag.ContinueOnError)
	set.SetOutput(env.Stderr)
	return set
}

func parseSub(set *flag.FlagSet, args []string) error {
	if err := set.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return nil
}

func connect(g globals) (*client.Client, error) {
	return client.New(g.server)
}

func loginAs(ctx context.Context, g globals, role client.Role) (*client.Client, error) {
	if strings.TrimSpace(g.email) == "" || g.password == "" {
		return nil, fmt.Errorf("%w: -email and -password are required", ErrUsage)
	}
	c, err := connect(g)
	if err != nil {
		return nil, err
	}
	switch role {
	case client.RoleVendor:
		err = c.LoginVendor(ctx, g.email, g.password)
	default:
		err = c.LoginConsumer(ctx, g.email, g.password)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
