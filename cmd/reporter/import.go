package main

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/thatguy/facility-reports/internal/reports"
	"github.com/thatguy/facility-reports/internal/storage"
)

type importOptions struct {
	csvPath  string
	logsPath string
	dbPath   string
	timezone string
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a CSV export of the report sheet into the local database",
		Long: `import reads a CSV export of the ApartmentReports sheet (columns id,
facility id, created at, room, issue type, description, priority, status) and
stores every row under its original id. Rows with an existing id are replaced.

With --logs, subscribers are also recovered from "User subscribed" entries of
a previous bot log.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runImport(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "path to the CSV export")
	cmd.Flags().StringVar(&opts.logsPath, "logs", "", "optional bot log to recover subscribers from")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "SQLite database path (default from DB_PATH)")
	cmd.Flags().StringVar(&opts.timezone, "tz", "Local", "time zone of the created_at column")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}

func runImport(cmd *cobra.Command, opts importOptions) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.dbPath != "" {
		cfg.DBPath = opts.dbPath
	}

	loc, err := time.LoadLocation(opts.timezone)
	if err != nil {
		return fmt.Errorf("load time zone: %w", err)
	}

	registry, err := cfg.Registry()
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.DBPath, log.WithComponent("storage"))
	if err != nil {
		return err
	}
	defer store.Close()

	rows, err := readCSV(opts.csvPath)
	if err != nil {
		return err
	}

	svc := reports.NewService(registry, store, reports.WithLogger(log.WithComponent("import")))
	imported, err := svc.Import(cmd.Context(), rows, loc)
	if err != nil {
		return fmt.Errorf("import %s: %w", opts.csvPath, err)
	}

	subscriberCount := 0
	if opts.logsPath != "" {
		f, err := os.Open(opts.logsPath)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()

		chatIDs, err := recoverSubscribers(f)
		if err != nil {
			return fmt.Errorf("read log file: %w", err)
		}
		for _, chatID := range chatIDs {
			if err := store.AddSubscriber(chatID); err == nil {
				subscriberCount++
			}
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Import completed:\n- Reports: %d\n- Subscribers: %d\n", imported, subscriberCount)
	return nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	// sheet exports drop trailing empty cells
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

type logEntry struct {
	Message string `json:"message"`
	ChatID  int64  `json:"chat_id,omitempty"`
}

var chatIDPattern = regexp.MustCompile(`chat_id"?\s*[:=]\s*(\d+)`)

// recoverSubscribers returns the chat ids that subscribed according to a bot
// log, accepting both JSON lines and plain text lines.
func recoverSubscribers(r io.Reader) ([]int64, error) {
	seen := make(map[int64]bool)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry logEntry
		if err := json.Unmarshal([]byte(line), &entry); err == nil {
			if entry.Message == "User subscribed" && entry.ChatID != 0 {
				seen[entry.ChatID] = true
			}
			continue
		}

		if !strings.Contains(line, "User subscribed") {
			continue
		}
		if m := chatIDPattern.FindStringSubmatch(line); len(m) > 1 {
			if chatID, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				seen[chatID] = true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
