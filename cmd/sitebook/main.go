package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nhle/sitebook/internal/app"
	"github.com/nhle/sitebook/internal/archive"
	"github.com/nhle/sitebook/internal/credential"
	"github.com/nhle/sitebook/internal/ledger"
	"github.com/nhle/sitebook/internal/mailer"
	"github.com/nhle/sitebook/internal/metrics"
	"github.com/nhle/sitebook/internal/model"
	"github.com/nhle/sitebook/internal/store"
	appsync "github.com/nhle/sitebook/internal/sync"
)

var (
	configFlag        = flag.String("config", model.DefaultConfigPath(), "Path to the YAML config file")
	migrateOnlyFlag   = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	exportInvoiceFlag = flag.String("export-invoice", "", "Render the invoice with this number to PDF and exit")
	outFlag           = flag.String("out", "", "Output path for -export-invoice (default <number>.pdf)")
	metricsAddrFlag   = flag.String("metrics-addr", "", "Serve /metrics and /healthz on this address (overrides metrics.addr)")
	setSecretFlag     = flag.String("set-secret", "", "Read a secret from stdin, store it in the keyring under this key and exit")
	logFileFlag       = flag.String("log-file", "", "Write TUI logs to this file (default <config dir>/sitebook.log)")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	vault := credential.Default()

	if *setSecretFlag != "" {
		if err := setSecret(vault, *setSecretFlag); err != nil {
			log.Fatalf("Storing secret: %v", err)
		}
		log.Printf("Stored %s in the keyring", *setSecretFlag)
		return
	}

	cfg, err := model.LoadConfig(*configFlag)
	if err != nil {
		log.Fatalf("Loading config: %v", err)
	}
	if *metricsAddrFlag != "" {
		cfg.Metrics.Addr = *metricsAddrFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.Database, vault)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()

	if *migrateOnlyFlag {
		log.Println("Migrations completed successfully")
		return
	}

	// Logs go to a file while the TUI owns the terminal.
	logger := log.Default()
	if *exportInvoiceFlag == "" {
		logPath := *logFileFlag
		if logPath == "" {
			logPath = filepath.Join(model.DefaultConfigDir(), "sitebook.log")
		}
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			log.Fatalf("Creating log directory: %v", err)
		}
		f, err := tea.LogToFile(logPath, "sitebook")
		if err != nil {
			log.Fatalf("Opening log file: %v", err)
		}
		defer f.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewRecorder(reg)
	if err != nil {
		log.Fatalf("Registering metrics: %v", err)
	}

	repo := ledger.New(st,
		ledger.WithLogger(logger),
		ledger.WithMetricsRecorder(recorder),
		ledger.WithDueDays(cfg.Billing.DueDays),
	)

	if cfg.Metrics.Addr != "" {
		router := metrics.NewRouter(reg, st.Ping)
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, router); err != nil {
				log.Printf("metrics: %v", err)
			}
		}()
	}

	archiveSecret, err := vault.Lookup(credential.KeyArchiveSecret)
	if err != nil {
		log.Printf("Reading archive secret: %v", err)
	}
	docStore, err := archive.Open(ctx, cfg.Archive, archiveSecret)
	if err != nil {
		log.Fatalf("Opening document archive: %v", err)
	}

	mailPassword, err := vault.Lookup(credential.KeyMailPassword)
	if err != nil {
		log.Printf("Reading mail password: %v", err)
	}
	mail := mailer.New(cfg.Mail, mailPassword, logger)

	docs := app.NewDocuments(repo, cfg.Billing, docStore, mail)

	loadLedger(ctx, repo, logger)

	if *exportInvoiceFlag != "" {
		if err := exportInvoice(docs, *exportInvoiceFlag, *outFlag); err != nil {
			log.Fatalf("Exporting invoice: %v", err)
		}
		return
	}

	interval := time.Duration(cfg.Display.RefreshIntervalSec) * time.Second
	if interval <= 0 {
		interval = appsync.DefaultInterval
	}
	poller := appsync.New(repo, interval)
	defer poller.Stop()

	p := tea.NewProgram(app.New(repo, docs, poller, cfg.Billing), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Fprintf(os.Stderr, "sitebook: %v\n", err)
		os.Exit(1)
	}
}

// loadLedger runs the first load. A collection that fails to load stays
// empty and the poller retries it; only opening the store is fatal.
func loadLedger(ctx context.Context, repo *ledger.Repository, logger *log.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := repo.LoadAll(ctx); err != nil {
		logger.Printf("Loading ledger, continuing with partial data: %v", err)
	}
}

// openStore connects to the database selected by cfg. For Postgres the
// keyring password is merged into the DSN when the DSN carries none.
func openStore(ctx context.Context, cfg model.DatabaseConfig, vault *credential.Vault) (*store.SQLStore, error) {
	switch cfg.Driver {
	case "postgres":
		password, err := vault.Lookup(credential.KeyDatabasePassword)
		if err != nil {
			return nil, fmt.Errorf("reading database password: %w", err)
		}
		dsn, err := withPassword(cfg.DSN, password)
		if err != nil {
			return nil, err
		}
		return store.NewPostgresStore(ctx, dsn)
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		return store.NewSQLiteStore(cfg.Path)
	}
}

// withPassword adds password to a URL or key/value DSN that has none.
func withPassword(dsn, password string) (string, error) {
	if password == "" {
		return dsn, nil
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parsing database dsn: %w", err)
		}
		if u.User == nil {
			return "", fmt.Errorf("database dsn has no user")
		}
		if _, set := u.User.Password(); set {
			return dsn, nil
		}
		u.User = url.UserPassword(u.User.Username(), password)
		return u.String(), nil
	}
	if strings.Contains(dsn, "password=") {
		return dsn, nil
	}
	return dsn + " password='" + strings.ReplaceAll(password, "'", `\'`) + "'", nil
}

func exportInvoice(docs *app.Documents, number, out string) error {
	inv, err := docs.InvoiceByNumber(number)
	if err != nil {
		return err
	}
	doc, err := docs.RenderInvoice(inv.ID)
	if err != nil {
		return err
	}
	if out == "" {
		out = doc.Name
	}
	if err := os.WriteFile(out, doc.Data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	log.Printf("Wrote %s (%d bytes)", out, len(doc.Data))
	return nil
}

func setSecret(vault *credential.Vault, key string) error {
	if !credential.IsKnownKey(key) {
		return fmt.Errorf("unknown key %q (known: %s)", key, strings.Join(credential.Keys(), ", "))
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("reading stdin: %w", err)
	}
	value := strings.TrimRight(line, "\r\n")
	if value == "" {
		return fmt.Errorf("empty secret")
	}
	return vault.Set(key, value)
}
