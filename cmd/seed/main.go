package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"dailyexpense/internal/auth"
	"dailyexpense/internal/backend"
	"dailyexpense/internal/cli"
	"dailyexpense/internal/core"
	"dailyexpense/internal/identity"
	"dailyexpense/internal/services"
	"dailyexpense/internal/store"
)

const (
	demoUsername = "demo_student"
	demoEmail    = "demo@student.com"
	demoPassword = "password123"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	username string
	email    string
	password string
	device   string
	demo     bool
}

// needsAccount reports whether an account is created. Demo data for a
// device id alone needs none.
func (o options) needsAccount() bool {
	return o.email != "" || (o.demo && o.device == "")
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.username, "username", "", "Account username")
	fs.StringVar(&opts.email, "email", "", "Account email")
	fs.StringVar(&opts.password, "password", "", "Account password (optional, will prompt if omitted)")
	fs.StringVar(&opts.device, "device", "", "Device id that owns the demo expenses instead of the account")
	fs.BoolVar(&opts.demo, "demo", false, "Create the demo account and sample expenses")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if opts.demo && opts.email == "" && opts.device == "" {
		opts.username, opts.email = demoUsername, demoEmail
		if opts.password == "" {
			opts.password = demoPassword
		}
	}
	if !opts.demo && (opts.email == "" || opts.username == "") {
		fmt.Fprintln(stdout, "Usage: seed -demo [-device <id>] | seed -username <name> -email <email> [-password <password>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: username, email or demo")
	}

	if opts.needsAccount() && opts.password == "" {
		fmt.Fprint(stdout, "Password: ")
		password, err := readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
		opts.password = password
	}

	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	cli.SetupLogger(cfg, stderr)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	// Seeding never publishes events.
	backendCfg.AMQPURL = ""
	result, err := backend.NewFactory(nil).CreateBackend(ctx, backendCfg)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}
	defer result.Close()

	authSvc, err := auth.NewService(result.Backend, identity.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL), cfg.BcryptCost)
	if err != nil {
		return err
	}
	expenses := services.NewExpenseService(result.Backend, nil, cfg.StoreTimeout)

	return seed(ctx, stdout, authSvc, result.Backend, expenses, opts, time.Now().UTC())
}

// seed creates the account (reusing one with the same email) and inserts
// the demo expenses.
func seed(ctx context.Context, out io.Writer, authSvc *auth.Service, accounts store.AccountStore,
	expenses *services.ExpenseService, opts options, now time.Time) error {
	owner := opts.device
	if opts.needsAccount() {
		account, err := ensureAccount(ctx, out, authSvc, accounts, opts)
		if err != nil {
			return err
		}
		if owner == "" {
			owner = account.ID
		}
	}
	if !opts.demo {
		return nil
	}

	for _, e := range demoExpenses(now) {
		if _, err := expenses.Add(ctx, owner, e); err != nil {
			return fmt.Errorf("add demo expense: %w", err)
		}
	}
	fmt.Fprintf(out, "Sample expenses added for owner %s\n", owner)
	return nil
}

func ensureAccount(ctx context.Context, out io.Writer, authSvc *auth.Service, accounts store.AccountStore, opts options) (core.PublicUser, error) {
	sess, err := authSvc.Register(ctx, opts.username, opts.email, opts.password)
	if err == nil {
		fmt.Fprintf(out, "User created: %s (%s)\n", sess.User.Email, sess.User.ID)
		return sess.User, nil
	}
	if !errors.Is(err, core.ErrEmailTaken) {
		return core.PublicUser{}, fmt.Errorf("register account: %w", err)
	}

	existing, err := accounts.FindAccountByEmail(ctx, core.NormalizeEmail(opts.email))
	if err != nil {
		return core.PublicUser{}, fmt.Errorf("lookup account: %w", err)
	}
	fmt.Fprintf(out, "User %s already exists (%s)\n", existing.Email, existing.ID)
	return existing.Public(), nil
}

func demoExpenses(now time.Time) []core.NewExpense {
	amount := func(f float64) *core.Money {
		m := core.MoneyFromFloat(f)
		return &m
	}
	return []core.NewExpense{
		{Amount: amount(150), Category: core.Food, Note: "Lunch at canteen", Date: now},
		{Amount: amount(50), Category: core.Travel, Note: "Bus ticket", Date: now},
		{Amount: amount(500), Category: core.Study, Note: "Books", Date: now.Add(-24 * time.Hour)},
		{Amount: amount(1200), Category: core.Entertainment, Note: "Movie night", Date: now.Add(-48 * time.Hour)},
	}
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Fallback for non-terminal (e.g. tests, pipes)
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return strings.TrimRight(scanner.Text(), "\r"), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
