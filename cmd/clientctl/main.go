package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"swiftroute/internal/config"
	dbpkg "swiftroute/internal/db"
)

const usageText = `clientctl manages API clients and keys.

Commands:
  create-client  -email <addr> [-company <name>] [-tier starter|professional|enterprise]
  create-key     -email <addr> [-name <label>] [-expires <duration>]
  list-clients
  list-keys      -email <addr>
  usage          -email <addr> [-days <n>]
  deactivate     -email <addr>
  set-password   -email <addr> -password <secret>
  cleanup        [-days <n>]
`

func main() {
	log.SetLevel(log.WarnLevel)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.Load()

	db, err := dbpkg.Connect(cfg)
	if err != nil {
		fatal("failed to connect database: %v", err)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "create-client":
		createClient(db, args)
	case "create-key":
		createKey(db, args)
	case "list-clients":
		listClients(db)
	case "list-keys":
		listKeys(db, args)
	case "usage":
		showUsage(db, cfg, args)
	case "deactivate":
		deactivate(db, args)
	case "set-password":
		setPassword(db, args)
	case "cleanup":
		cleanup(db, cfg, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usageText)
		os.Exit(2)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func createClient(db *gorm.DB, args []string) {
	fs := flag.NewFlagSet("create-client", flag.ExitOnError)
	email := fs.String("email", "", "client email (required)")
	company := fs.String("company", "", "company name")
	tier := fs.String("tier", dbpkg.TierStarter, "billing tier")
	fs.Parse(args)
	if *email == "" {
		fatal("-email is required")
	}

	client, err := dbpkg.CreateClient(db, *email, *company, *tier)
	if err != nil {
		fatal("create client: %v", err)
	}
	fmt.Printf("created client %d (%s, %s tier, quota %d/month)\n",
		client.ID, client.Email, client.BillingTier, client.MonthlyQuota)

	plaintext, key, err := dbpkg.CreateKey(db, client.ID, "Default API Key", nil)
	if err != nil {
		fatal("create key: %v", err)
	}
	fmt.Printf("api key %d: %s\n", key.ID, plaintext)
	fmt.Println("store this key securely; it will not be shown again")
}

func createKey(db *gorm.DB, args []string) {
	fs := flag.NewFlagSet("create-key", flag.ExitOnError)
	email := fs.String("email", "", "client email (required)")
	name := fs.String("name", "API Key", "key label")
	expires := fs.Duration("expires", 0, "time until the key expires (0 = never)")
	fs.Parse(args)
	if *email == "" {
		fatal("-email is required")
	}

	client, err := dbpkg.FindClientByEmail(db, *email)
	if err != nil {
		fatal("find client: %v", err)
	}

	var expiresAt *time.Time
	if *expires > 0 {
		t := time.Now().Add(*expires)
		expiresAt = &t
	}
	plaintext, key, err := dbpkg.CreateKey(db, client.ID, *name, expiresAt)
	if err != nil {
		fatal("create key: %v", err)
	}
	fmt.Printf("api key %d: %s\n", key.ID, plaintext)
	fmt.Println("store this key securely; it will not be shown again")
}

func listClients(db *gorm.DB) {
	var clients []dbpkg.APIClient
	if err := db.Order("id").Find(&clients).Error; err != nil {
		fatal("list clients: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tCOMPANY\tTIER\tACTIVE\tUSED/QUOTA")
	for _, c := range clients {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\t%d/%d\n",
			c.ID, c.Email, c.CompanyName, c.BillingTier, c.Active, c.RequestsUsed, c.MonthlyQuota)
	}
	w.Flush()
}

func listKeys(db *gorm.DB, args []string) {
	fs := flag.NewFlagSet("list-keys", flag.ExitOnError)
	email := fs.String("email", "", "client email (required)")
	fs.Parse(args)
	if *email == "" {
		fatal("-email is required")
	}

	client, err := dbpkg.FindClientByEmail(db, *email)
	if err != nil {
		fatal("find client: %v", err)
	}
	keys, err := dbpkg.ListKeys(db, client.ID)
	if err != nil {
		fatal("list keys: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPREFIX\tACTIVE\tEXPIRES\tLAST USED")
	for _, k := range keys {
		expires, lastUsed := "never", "never"
		if k.ExpiresAt != nil {
			expires = k.ExpiresAt.Format(time.RFC3339)
		}
		if k.LastUsedAt != nil {
			lastUsed = k.LastUsedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\t%s\n", k.ID, k.Name, k.KeyPrefix, k.Active, expires, lastUsed)
	}
	w.Flush()
}

func showUsage(db *gorm.DB, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("usage", flag.ExitOnError)
	email := fs.String("email", "", "client email (required)")
	days := fs.Int("days", 7, "trailing window in days")
	fs.Parse(args)
	if *email == "" {
		fatal("-email is required")
	}

	client, err := dbpkg.FindClientByEmail(db, *email)
	if err != nil {
		fatal("find client: %v", err)
	}
	stats, err := dbpkg.ClientUsageStats(db, client.ID, *days, cfg.RetentionDays)
	if err != nil {
		fatal("load usage: %v", err)
	}

	s := stats.Summary
	fmt.Printf("%s, last %d days:\n", client.Email, s.PeriodDays)
	fmt.Printf("  requests: %d (%d ok, %d failed, %.1f%% success)\n",
		s.TotalRequests, s.SuccessfulRequests, s.FailedRequests, s.SuccessRate*100)
	fmt.Printf("  avg response: %.1fms\n", s.AvgResponseTimeMs)
	for _, e := range stats.EndpointUsage {
		fmt.Printf("  %-40s %6d requests, %.1f%% success\n", e.Endpoint, e.Requests, e.SuccessRate*100)
	}
}

func deactivate(db *gorm.DB, args []string) {
	fs := flag.NewFlagSet("deactivate", flag.ExitOnError)
	email := fs.String("email", "", "client email (required)")
	fs.Parse(args)
	if *email == "" {
		fatal("-email is required")
	}

	if err := dbpkg.DeactivateClient(db, *email); err != nil {
		fatal("deactivate: %v", err)
	}
	fmt.Printf("deactivated %s and all their keys\n", *email)
}

func setPassword(db *gorm.DB, args []string) {
	fs := flag.NewFlagSet("set-password", flag.ExitOnError)
	email := fs.String("email", "", "client email (required)")
	password := fs.String("password", "", "dashboard password (required)")
	fs.Parse(args)
	if *email == "" || *password == "" {
		fatal("-email and -password are required")
	}

	client, err := dbpkg.FindClientByEmail(db, *email)
	if err != nil {
		fatal("find client: %v", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		fatal("hash password: %v", err)
	}
	if err := dbpkg.SetDashboardPassword(db, client.ID, string(hash)); err != nil {
		fatal("set password: %v", err)
	}
	fmt.Printf("dashboard password set for %s\n", *email)
}

func cleanup(db *gorm.DB, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	days := fs.Int("days", cfg.RetentionDays, "delete usage rows older than this many days")
	fs.Parse(args)

	deleted, err := dbpkg.RunRetentionOnce(db, *days)
	if err != nil {
		fatal("cleanup: %v", err)
	}
	fmt.Printf("deleted %d usage records older than %d days\n", deleted, *days)
}
