package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/Strob0t/democrm/internal/adapter/postgres"
	"github.com/Strob0t/democrm/internal/config"
	"github.com/Strob0t/democrm/internal/domain/tenant"
	"github.com/Strob0t/democrm/internal/domain/user"
	"github.com/Strob0t/democrm/internal/logger"
	"github.com/Strob0t/democrm/internal/tenancy"
)

// runAdmin dispatches admin subcommands.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "provision":
		return runAdminProvision(args[1:])
	case "list-tenants":
		return runAdminListTenants(args[1:])
	case "migrate-tenants":
		return runAdminMigrateTenants(args[1:])
	case "sweep":
		return runAdminSweep(args[1:])
	case "create-user":
		return runAdminCreateUser(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: democrm admin <command> [options]

Commands:
  provision        Create a company with its schema and primary domain
  list-tenants     List all companies
  migrate-tenants  Apply pending schema migrations to every company
  sweep            Delete members scheduled for deletion
  create-user      Add a member to a company
  help             Show this help message

Examples:
  democrm admin provision --name "Acme Corp" --email ops@acme.example
  democrm admin list-tenants
  democrm admin migrate-tenants
  democrm admin sweep --date 2026-03-01
  democrm admin create-user --company acme-corp --email jane@acme.example --name "Jane Doe" --role admin
`)
}

// loadAdminDeps wires the application with errors-only logging on stderr.
func loadAdminDeps(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logCfg := cfg.Logging
	logCfg.Level = "warn"
	logCfg.Format = "text"
	log := logger.NewWithWriter(os.Stderr, logCfg)
	slog.SetDefault(log)

	return newApp(ctx, cfg, log)
}

func runAdminProvision(args []string) error {
	fs := flag.NewFlagSet("provision", flag.ContinueOnError)
	var req tenant.ProvisionRequest
	fs.StringVar(&req.Name, "name", "", "company display name (required)")
	fs.StringVar(&req.Email, "email", "", "contact email")
	fs.StringVar(&req.Phone, "phone", "", "contact phone")
	fs.StringVar(&req.State, "state", "", "state or region")
	fs.StringVar(&req.Country, "country", "", "country")
	fs.StringVar(&req.Currency, "currency", "", "ISO currency code")
	fs.StringVar(&req.Timezone, "timezone", "", "IANA timezone")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if req.Name == "" {
		return fmt.Errorf("--name is required")
	}

	ctx := context.Background()
	a, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.companies.Provision(ctx, req)
	if err != nil {
		return fmt.Errorf("provision: %w", err)
	}

	hostname := ""
	if len(c.Domains) > 0 {
		hostname = c.Domains[0].Hostname
	}
	fmt.Fprintf(os.Stderr, "Company created: %s (id=%s, schema=%s, domain=%s)\n", c.Name, c.ID, c.SchemaName, hostname)
	return nil
}

func runAdminListTenants(args []string) error {
	fs := flag.NewFlagSet("list-tenants", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	a, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	companies, err := a.companies.List(ctx)
	if err != nil {
		return fmt.Errorf("list companies: %w", err)
	}

	if len(companies) == 0 {
		fmt.Println("No companies found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSCHEMA\tPRIMARY_DOMAIN\tCREATED")
	for i := range companies {
		primary := ""
		for _, d := range companies[i].Domains {
			if d.IsPrimary {
				primary = d.Hostname
			}
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			companies[i].ID, companies[i].Name, companies[i].SchemaName, primary,
			companies[i].CreatedAt.Format(time.DateOnly))
	}
	return w.Flush()
}

func runAdminMigrateTenants(args []string) error {
	fs := flag.NewFlagSet("migrate-tenants", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	a, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	v, err := postgres.MigrationVersion(ctx, a.cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Public schema at version %d\n", v)

	failures, err := a.maintenance.MigrateTenants(ctx)
	for _, f := range failures {
		fmt.Fprintf(os.Stderr, "FAILED %s: %v\n", f.Partition, f.Err)
	}
	if err != nil {
		return fmt.Errorf("migrate tenants: %w", err)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d company schemas failed to migrate", len(failures))
	}
	fmt.Fprintln(os.Stderr, "All company schemas are up to date.")
	return nil
}

func runAdminSweep(args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	date := fs.String("date", "", "sweep day as YYYY-MM-DD (default today, UTC)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	day := time.Now().UTC()
	if *date != "" {
		d, err := time.Parse(time.DateOnly, *date)
		if err != nil {
			return fmt.Errorf("--date: %w", err)
		}
		day = d
	}

	ctx := context.Background()
	a, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.maintenance.SweepDeletions(ctx, day)
	if report != nil {
		for _, f := range report.Failures {
			fmt.Fprintf(os.Stderr, "FAILED %s: %v\n", f.Partition, f.Err)
		}
		fmt.Fprintf(os.Stderr, "Swept %d companies for %s: %d members deleted, %d failures\n",
			report.Tenants, report.Date, report.UsersDeleted, len(report.Failures))
	}
	return err
}

func runAdminCreateUser(args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	company := fs.String("company", "", "company hint, as sent in the company header (required)")
	email := fs.String("email", "", "user email address (required)")
	name := fs.String("name", "", "user display name (required)")
	mobile := fs.String("mobile", "", "mobile number")
	role := fs.String("role", string(user.RoleViewer), "role: admin, editor or viewer")
	password := fs.String("password", "", "password (prompted if not provided)") //nolint:gosec // CLI flag
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *company == "" {
		return fmt.Errorf("--company is required")
	}
	if *email == "" {
		return fmt.Errorf("--email is required")
	}
	if *name == "" {
		return fmt.Errorf("--name is required")
	}

	pass := *password
	if pass == "" {
		var err error
		pass, err = promptPassword("Password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		confirm, err := promptPassword("Confirm password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		if pass != confirm {
			return fmt.Errorf("passwords do not match")
		}
	}

	ctx := context.Background()
	a, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.resolver.ResolveTenant(ctx, *company)
	if err != nil {
		return err
	}
	if t == nil {
		return errors.New("--company must name a company")
	}

	var u *user.User
	err = a.binder.WithPartition(tenancy.ContextWithTenant(ctx, t), tenancy.Partition(t.SchemaName), func(ctx context.Context) error {
		var err error
		u, err = a.users.Create(ctx, &user.CreateRequest{
			Email:    *email,
			Name:     *name,
			Mobile:   *mobile,
			Password: pass,
			Role:     user.Role(*role),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Fprintf(os.Stderr, "User created in %s: %s (id=%s, role=%s)\n", t.Name, u.Email, u.ID, u.Role)
	return nil
}

// promptPassword reads a password from the terminal without echoing.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)                         // newline after password input
	if err != nil {
		return "", err
	}
	return string(b), nil
}
