package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joshsymonds/mailrake/internal/actions"
	"github.com/joshsymonds/mailrake/internal/config"
	gc "github.com/joshsymonds/mailrake/internal/gmail"
	"github.com/joshsymonds/mailrake/internal/rate"
	"github.com/joshsymonds/mailrake/internal/rules"
	"github.com/joshsymonds/mailrake/internal/runtime"
	"github.com/joshsymonds/mailrake/internal/store"
)

type applyFlags struct {
	configPath  string
	credentials string
	dbPath      string
	rulesFile   string
	ids         string
	rps         int
	dryRun      bool
	yes         bool
	verbose     bool
}

func main() {
	flags := parseApplyFlags()
	if err := run(flags); err != nil {
		runtime.DefaultLogger().Error("mailrake-apply failed", "error", err)
		os.Exit(1)
	}
}

func parseApplyFlags() applyFlags {
	configPath := flag.String("config", config.DefaultPath(), "config file path")
	credentials := flag.String("credentials", "", "OAuth credentials directory (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	rulesFile := flag.String("rules", "", "rules JSON file (overrides config)")
	ids := flag.String("ids", "", "comma separated store IDs to evaluate (default: all)")
	rps := flag.Int("rps", 0, "max requests per second (overrides config)")
	dryRun := flag.Bool("dry-run", false, "log intended actions without performing them")
	yes := flag.Bool("yes", false, "skip the confirmation prompt")
	verbose := flag.Bool("verbose", false, "print the full action plan before executing")
	flag.Parse()

	return applyFlags{
		configPath:  *configPath,
		credentials: *credentials,
		dbPath:      *dbPath,
		rulesFile:   *rulesFile,
		ids:         *ids,
		rps:         *rps,
		dryRun:      *dryRun,
		yes:         *yes,
		verbose:     *verbose,
	}
}

func run(flags applyFlags) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if flags.credentials != "" {
		cfg.CredentialsDir = flags.credentials
	}
	if flags.dbPath != "" {
		cfg.DBPath = flags.dbPath
	}
	if flags.rulesFile != "" {
		cfg.RulesFile = flags.rulesFile
	}
	if flags.rps > 0 {
		cfg.RPS = flags.rps
	}
	if flags.dryRun {
		cfg.DryRun = true
	}

	ruleSet, err := rules.Load(cfg.RulesFile)
	if err != nil {
		return err
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ids, err := parseIDs(flags.ids)
	if err != nil {
		return err
	}
	emails, err := st.GetEmails(ctx, ids)
	if err != nil {
		return err
	}

	fmt.Printf("Processing %d emails with rules from %s...\n", len(emails), cfg.RulesFile)

	plan, err := rules.Evaluate(ruleSet, toMessages(emails), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("evaluate rules: %w", err)
	}
	if len(plan) == 0 {
		fmt.Println("No actions to perform.")
		return nil
	}

	if flags.verbose {
		printPlan(plan)
	}

	if !flags.yes && !cfg.DryRun {
		ok, err := confirm(fmt.Sprintf("\nFound %d emails with applicable actions. Proceed? (y/n): ", len(plan)))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Dry runs never touch the API, so skip the OAuth dance entirely.
	var client gc.Client
	if !cfg.DryRun {
		client, err = runtime.NewGmailClient(ctx, cfg.CredentialsDir, runtime.ScopeModify)
		if err != nil {
			return fmt.Errorf("create gmail client: %w", err)
		}
	}

	var limiter rate.Limiter = rate.Unlimited{}
	if cfg.RPS > 0 {
		bucket := rate.NewTokenBucket(cfg.RPS)
		defer bucket.Stop()
		limiter = bucket
	}

	svc := actions.NewService(client, st, limiter, runtime.DefaultLogger())
	svc.DryRun = cfg.DryRun

	fmt.Println("Executing actions...")
	results := svc.Execute(ctx, plan)
	printResults(results)
	return nil
}

func parseIDs(csv string) ([]int64, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func toMessages(emails []store.Email) []rules.Message {
	msgs := make([]rules.Message, 0, len(emails))
	for _, e := range emails {
		msg := rules.Message{
			ID:      e.ID,
			From:    e.FromAddress,
			To:      e.ToAddress,
			Subject: e.Subject,
		}
		if e.BodyText != nil {
			msg.Body = *e.BodyText
		}
		if e.ReceivedDate != nil {
			msg.Received = *e.ReceivedDate
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func printPlan(plan rules.Plan) {
	ids := make([]int64, 0, len(plan))
	for id := range plan {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	fmt.Println("\nApplicable actions:")
	for _, id := range ids {
		fmt.Printf("Email ID %d:\n", id)
		for _, ref := range plan[id] {
			fmt.Printf("  - Rule %s: %s\n", ref.RuleID, ref.Action.Type)
		}
	}
}

func confirm(prompt string) (bool, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	return strings.EqualFold(strings.TrimSpace(line), "y"), nil
}

func printResults(results map[int64][]actions.Result) {
	ids := make([]int64, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	total, succeeded := 0, 0
	fmt.Println("\nResults:")
	for _, id := range ids {
		for _, res := range results[id] {
			total++
			status := "✗"
			if res.Success {
				status = "✓"
				succeeded++
			}
			fmt.Printf("%s %s\n", status, res.Message)
		}
	}
	fmt.Printf("\nSummary: %d/%d actions completed successfully.\n", succeeded, total)
}
