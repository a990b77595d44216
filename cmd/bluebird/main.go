package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"Bluebird/internal/app"
	"Bluebird/internal/config"
	"Bluebird/internal/domain"
	"Bluebird/internal/logging"
)

const (
	defaultStart = "2006-04-21"
	defaultLimit = 5000
)

// termList collects -terms values; each occurrence may hold several comma separated terms.
type termList []string

func (l *termList) String() string {
	return strings.Join(*l, ",")
}

func (l *termList) Set(value string) error {
	for _, term := range strings.Split(value, ",") {
		if term = strings.TrimSpace(term); term != "" {
			*l = append(*l, term)
		}
	}
	return nil
}

type cliArgs struct {
	terms          termList
	start          string
	end            string
	limit          int
	output         string
	file           string
	databaseConfig string
	useDatabase    bool
	configPath     string
	logLevel       string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	args, err := parseArgs(argv, stderr, time.Now())
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return domain.ExitCompleted
		}
		fmt.Fprintln(stderr, err)
		return domain.ExitInvalidQuery
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(stderr, err)
		return domain.ExitFailed
	}
	cfg, err := config.Load(args.configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return domain.ExitFailed
	}
	if args.logLevel != "" {
		cfg.Logging.Level = args.logLevel
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	query, err := buildQuery(args)
	if err != nil {
		logger.Error("invalid arguments", "error", err)
		return domain.ExitCode(err)
	}

	target, err := buildTarget(args, cfg)
	if err != nil {
		logger.Error("sink target", "error", err)
		return domain.ExitCode(err)
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		return domain.ExitFailed
	}

	summary, err := application.Run(ctx, query, target)
	if err != nil {
		fmt.Fprintf(stderr, "run %s failed after %d records: %v\n", summary.RunID, summary.Written, err)
		return domain.ExitCode(err)
	}

	fmt.Fprintf(stdout, "run %s completed: %d records written in %s\n",
		summary.RunID, summary.Written, summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
	return domain.ExitCompleted
}

func parseArgs(argv []string, stderr io.Writer, now time.Time) (cliArgs, error) {
	var args cliArgs

	fs := flag.NewFlagSet("bluebird", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Var(&args.terms, "terms", "search terms, comma separated or repeated (required)")
	fs.StringVar(&args.start, "start", defaultStart, "first day of the window, YYYY-MM-DD")
	fs.StringVar(&args.end, "end", now.UTC().Format(domain.DateLayout), "last day of the window, YYYY-MM-DD")
	fs.IntVar(&args.limit, "limit", defaultLimit, "maximum number of records to write")
	fs.StringVar(&args.output, "output", "", "directory for the CSV file")
	fs.StringVar(&args.file, "file", "", "CSV file name (default bluebird_<unix>.csv)")
	fs.StringVar(&args.databaseConfig, "database-config", "", "JSON file with host, port, database, user, password and table")
	fs.BoolVar(&args.useDatabase, "database", false, "write to the database section of the config")
	fs.StringVar(&args.configPath, "config", "", "YAML config file (default $BLUEBIRD_CONFIG)")
	fs.StringVar(&args.logLevel, "log-level", "", "override logging.level")

	if err := fs.Parse(argv); err != nil {
		return cliArgs{}, err
	}
	if fs.NArg() > 0 {
		return cliArgs{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return args, nil
}

func buildQuery(args cliArgs) (domain.Query, error) {
	start, err := domain.ParseDate(args.start)
	if err != nil {
		return domain.Query{}, err
	}
	end, err := domain.ParseDate(args.end)
	if err != nil {
		return domain.Query{}, err
	}
	return domain.Query{
		Terms:      args.terms,
		Start:      start,
		End:        end,
		MaxRecords: args.limit,
	}, nil
}

// buildTarget picks the database sink when -database-config or -database is given, the CSV sink otherwise.
func buildTarget(args cliArgs, cfg config.Config) (domain.SinkTarget, error) {
	wantsDatabase := args.databaseConfig != "" || args.useDatabase
	if wantsDatabase && args.file != "" {
		return domain.SinkTarget{}, fmt.Errorf("%w: -file cannot be combined with a database target", domain.ErrInvalidQuery)
	}
	if args.databaseConfig != "" && args.useDatabase {
		return domain.SinkTarget{}, fmt.Errorf("%w: -database-config and -database are mutually exclusive", domain.ErrInvalidQuery)
	}

	switch {
	case args.databaseConfig != "":
		db, err := config.LoadDatabaseFile(args.databaseConfig)
		if err != nil {
			return domain.SinkTarget{}, err
		}
		if db.Driver == "" {
			db.Driver = cfg.Database.Driver
		}
		if db.SSLMode == "" {
			db.SSLMode = cfg.Database.SSLMode
		}
		target := db.Target()
		return domain.SinkTarget{Database: &target}, nil
	case args.useDatabase:
		target := cfg.Database.Target()
		return domain.SinkTarget{Database: &target}, nil
	default:
		file := domain.FileTarget{Name: cfg.Output.File, Directory: cfg.Output.Directory}
		if args.file != "" {
			file.Name = args.file
		}
		if args.output != "" {
			file.Directory = args.output
		}
		return domain.SinkTarget{File: &file}, nil
	}
}
