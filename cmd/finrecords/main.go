// finrecords prints a user's financial dashboard: the monthly income and
// expense trend, the per-category breakdown and the record table.
//
// Records come from the records API (API_BASE_URL) or, with --demo, from
// an in-memory store seeded with sample data. Records can be created,
// edited one cell at a time and deleted before the dashboard is printed.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"finrecords/internal/cli"
	"finrecords/internal/config"
	"finrecords/internal/core"
	"finrecords/internal/dashboard"
	"finrecords/internal/log"
	"finrecords/internal/records"
	"finrecords/internal/remote"
	"finrecords/internal/remote/httpapi"
	"finrecords/internal/remote/memory"
	"finrecords/internal/view"
)

func main() {
	cli.LoadEnvFile()
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	userID  string
	apiURL  string
	timeout time.Duration
	demo    bool

	filter string
	sortBy string
	desc   bool

	add     bool
	draft   core.DraftInput
	edits   []string
	deletes []string
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg := config.Load()

	var opts options
	flagSet := pflag.NewFlagSet("finrecords", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.userID, "user", "u", cfg.UserID, "user whose records are shown (default $USER_ID)")
	flagSet.StringVar(&opts.apiURL, "api-url", cfg.APIBaseURL, "base URL of the records API")
	flagSet.DurationVar(&opts.timeout, "timeout", cfg.APITimeout, "timeout of each API request")
	flagSet.BoolVar(&opts.demo, "demo", false, "use an in-memory store seeded with sample records")
	flagSet.StringVar(&opts.filter, "filter", "all", "show only income or expense rows (all, income, expense)")
	flagSet.StringVar(&opts.sortBy, "sort", "", "sort rows by column (date, description, type, amount, category, paymentMethod)")
	flagSet.BoolVar(&opts.desc, "desc", false, "sort descending")
	flagSet.BoolVar(&opts.add, "add", false, "create a record from the --date, --description, --amount, --category, --payment-method and --type flags")
	flagSet.StringVar(&opts.draft.Date, "date", time.Now().UTC().Format("2006-01-02"), "date of the new record (YYYY-MM-DD)")
	flagSet.StringVar(&opts.draft.Description, "description", "", "description of the new record")
	flagSet.StringVar(&opts.draft.Amount, "amount", "", "amount of the new record, e.g. 1,250.50")
	flagSet.StringVar(&opts.draft.Category, "category", "", "category of the new record")
	flagSet.StringVar(&opts.draft.PaymentMethod, "payment-method", "", "payment method of the new record")
	flagSet.StringVar(&opts.draft.Type, "type", "", "Income or Expense")
	flagSet.StringArrayVar(&opts.edits, "edit", nil, "edit one cell, as ID:COLUMN=VALUE (repeatable)")
	flagSet.StringArrayVar(&opts.deletes, "delete", nil, "delete the record with this ID (repeatable)")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected arguments: %s", strings.Join(rest, " "))
	}

	params, err := opts.params()
	if err != nil {
		return err
	}

	cfg.APIBaseURL = opts.apiURL
	cfg.APITimeout = opts.timeout
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	var rs remote.RecordSync
	if opts.demo {
		if opts.userID == "" {
			opts.userID = demoUser
		}
		mem := memory.New()
		mem.Seed(demoRecords(opts.userID, time.Now())...)
		rs = mem
	} else {
		if err := cfg.ValidateClient(); err != nil {
			return err
		}
		rs = httpapi.New(cfg.APIBaseURL, cfg.APITimeout)
	}
	if strings.TrimSpace(opts.userID) == "" {
		return fmt.Errorf("%w: no user given, use --user or set USER_ID", core.ErrValidation)
	}

	store := records.New(rs, logger)
	projector := view.NewProjector(store)
	projector.SetParams(params)
	dash := dashboard.New(store, projector, logger)
	defer dash.Close()

	if err := store.Load(ctx, opts.userID); err != nil {
		return err
	}
	if err := opts.apply(ctx, store, projector); err != nil {
		return err
	}
	return render(stdout, dash.Refresh())
}

func (o *options) params() (view.Params, error) {
	filter, err := view.ParseFilter(o.filter)
	if err != nil {
		return view.Params{}, err
	}
	params := view.Params{Filter: filter}
	if o.sortBy != "" {
		col, err := view.ParseColumn(o.sortBy)
		if err != nil {
			return view.Params{}, err
		}
		params.Sort = view.Sort{Column: col, Direction: view.Asc}
		if o.desc {
			params.Sort.Direction = view.Desc
		}
	}
	return params, nil
}

// apply runs the requested mutations in order: create, edits, deletes.
func (o *options) apply(ctx context.Context, store *records.Store, projector *view.Projector) error {
	if o.add {
		in := o.draft
		in.UserID = o.userID
		d, err := core.ParseDraft(in)
		if err != nil {
			return fmt.Errorf("new record: %w", err)
		}
		if _, err := store.Create(ctx, d); err != nil {
			return err
		}
	}
	for _, e := range o.edits {
		if err := editCell(ctx, store, projector, e); err != nil {
			return err
		}
	}
	for _, id := range o.deletes {
		if _, err := projector.DeleteRow(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func editCell(ctx context.Context, store *records.Store, projector *view.Projector, edit string) error {
	id, col, value, err := parseEdit(edit)
	if err != nil {
		return err
	}
	var rec core.FinancialRecord
	found := false
	for _, r := range store.Records() {
		if r.ID == id {
			rec, found = r, true
			break
		}
	}
	if !found {
		return fmt.Errorf("edit %s: %w", id, core.ErrNotFound)
	}

	cell, err := projector.Activate(rec, col)
	if err != nil {
		return fmt.Errorf("edit %s: %w", edit, err)
	}
	if err := projector.Set(cell, value); err != nil {
		return fmt.Errorf("edit %s: %w", edit, err)
	}
	if _, err := projector.Commit(ctx, cell); err != nil {
		projector.Cancel(cell)
		return fmt.Errorf("edit %s: %w", edit, err)
	}
	return nil
}

// parseEdit splits ID:COLUMN=VALUE. The value may itself contain ':' or '='.
func parseEdit(s string) (string, view.Column, string, error) {
	id, rest, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return "", "", "", fmt.Errorf("%w: edit %q must look like ID:COLUMN=VALUE", core.ErrValidation, s)
	}
	name, value, ok := strings.Cut(rest, "=")
	if !ok {
		return "", "", "", fmt.Errorf("%w: edit %q must look like ID:COLUMN=VALUE", core.ErrValidation, s)
	}
	col, err := view.ParseColumn(name)
	if err != nil {
		return "", "", "", err
	}
	return id, col, value, nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `finrecords prints the financial dashboard of one user.

Records are read from the records API at --api-url. With --demo an
in-memory store seeded with sample records is used instead, and nothing
leaves the process.

Usage:
  finrecords [flags]

Examples:
  # Show the dashboard of user_1, newest rows first
  finrecords --user user_1 --sort date --desc

  # Try it without a server
  finrecords --demo --filter expense

  # Record an expense, then fix its amount
  finrecords -u user_1 --add --type Expense --amount 42.50 --category Food --payment-method Cash
  finrecords -u user_1 --edit 65a1:amount=45

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
