package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/scriptassembler/internal/foundation/errors"
	"git.home.luguber.info/inful/scriptassembler/internal/journal"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Journal string `name:"journal" help:"Session journal database (overrides build.journal_path)"`
	Limit   int    `short:"n" name:"limit" default:"10" help:"Number of sessions to show (0 for all)"`
	JSON    bool   `name:"json" help:"Print summaries as JSON"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	path := h.Journal
	if path == "" {
		path = cfg.Build.JournalPath
	}
	if path == "" {
		return errors.ConfigError("no journal configured (set build.journal_path or --journal)").Build()
	}
	if _, err := os.Stat(path); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "journal not found").
			WithContext("path", path).
			Build()
	}

	store, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	summaries, err := journal.History(context.Background(), store, h.Limit)
	if err != nil {
		return err
	}
	return WriteHistory(os.Stdout, summaries, h.JSON)
}

// WriteHistory renders session summaries as a table or as JSON.
func WriteHistory(w io.Writer, summaries []*journal.SessionSummary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tSTARTED\tSTATUS\tUNITS\tARTIFACTS\tDURATION")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			s.SessionID,
			s.StartedAt.Local().Format(time.DateTime),
			s.Status,
			s.UnitCount,
			len(s.Artifacts),
			s.Duration.Round(time.Millisecond))
		if s.Error != "" {
			fmt.Fprintf(tw, "\t\terror: %s\t\t\t\n", s.Error)
		}
	}
	return tw.Flush()
}
