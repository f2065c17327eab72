package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/marmos91/tiercache/internal/cli/output"
	"github.com/marmos91/tiercache/internal/logger"
	"github.com/marmos91/tiercache/pkg/engine"
	"github.com/marmos91/tiercache/pkg/lifecycle"
	"github.com/marmos91/tiercache/pkg/repository"
	"github.com/spf13/cobra"
)

var (
	simulateSettle time.Duration
	simulateOutput string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [folder...]",
	Short: "Replay a navigation script and report cache occupancy",
	Long: `Navigate the engine through a sequence of folders and print the cache
state after each step settles. Folders are given as "root", a numeric id, or
a slash-separated path of folder names below the root. A purely numeric
reference is always read as an id.

Without arguments the script visits the root, each of its subfolders, and
the root again.

Navigation state is kept in memory and never overwrites the state saved by
"tiercache start".

Examples:
  # Default walk over the imported tree
  tiercache simulate

  # Explicit script by path
  tiercache simulate root trips trips/rome trips root

  # Machine-readable report
  tiercache simulate 3 7 root -o json`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().DurationVar(&simulateSettle, "settle", 5*time.Second, "Maximum time to wait for prefetch work after each step")
	simulateCmd.Flags().StringVarP(&simulateOutput, "output", "o", "table", "Output format (table, json, yaml)")
}

// simulationStep records the engine state after one navigation.
type simulationStep struct {
	Step      int     `json:"step" yaml:"step"`
	Folder    string  `json:"folder" yaml:"folder"`
	Changed   bool    `json:"changed" yaml:"changed"`
	ByteItems int     `json:"byte_items" yaml:"byte_items"`
	ByteSize  int64   `json:"byte_size" yaml:"byte_size"`
	TexItems  int     `json:"texture_items" yaml:"texture_items"`
	TexSize   int64   `json:"texture_size" yaml:"texture_size"`
	HitRate   float64 `json:"hit_rate" yaml:"hit_rate"`
	Pending   int     `json:"pending" yaml:"pending"`
	Completed int     `json:"completed" yaml:"completed"`
	Settled   bool    `json:"settled" yaml:"settled"`
}

// simulationReport is the table rendering of a run.
type simulationReport []simulationStep

func (r simulationReport) Headers() []string {
	return []string{"Step", "Folder", "Bytes", "Textures", "Hit Rate", "Pending", "Loaded"}
}

func (r simulationReport) Rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, s := range r {
		folder := s.Folder
		if !s.Changed {
			folder += " (same)"
		}
		pending := strconv.Itoa(s.Pending)
		if !s.Settled {
			pending += " (timeout)"
		}
		rows = append(rows, []string{
			strconv.Itoa(s.Step),
			folder,
			fmt.Sprintf("%d / %s", s.ByteItems, humanize.Bytes(uint64(s.ByteSize))),
			fmt.Sprintf("%d / %s", s.TexItems, humanize.Bytes(uint64(s.TexSize))),
			fmt.Sprintf("%.0f%%", s.HitRate*100),
			pending,
			strconv.Itoa(s.Completed),
		})
	}
	return rows
}

func runSimulate(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(simulateOutput)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	script, err := buildScript(ctx, store, args)
	if err != nil {
		return err
	}

	eng, err := engine.New(cfg.Engine, store, engine.WithStateStore(lifecycle.NewMemoryStore()))
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := eng.Close(closeCtx); err != nil {
			logger.Warn("Engine shutdown error", logger.Err(err))
		}
	}()

	report := make(simulationReport, 0, len(script))
	for i, folder := range script {
		changed := eng.Navigate(ctx, folder)
		eng.Prefetcher().Wait()
		settled := waitSettled(ctx, eng, simulateSettle)
		report = append(report, stepFromSnapshot(i+1, folder, changed, settled, eng.Snapshot()))
	}

	printer := output.NewPrinter(cmd.OutOrStdout(), format)
	if err := printer.Print(report); err != nil {
		return err
	}

	final := eng.Snapshot()
	printer.Printf("\nMemory class: %s, recent folders: %v\n", final.Cache.MemoryClass, final.Recent)
	return nil
}

func stepFromSnapshot(step int, folder repository.FolderID, changed, settled bool, snap engine.Snapshot) simulationStep {
	hits := snap.Cache.Bytes.Hits + snap.Cache.Textures.Hits
	misses := snap.Cache.Bytes.Misses + snap.Cache.Textures.Misses
	var rate float64
	if hits+misses > 0 {
		rate = float64(hits) / float64(hits+misses)
	}
	return simulationStep{
		Step:      step,
		Folder:    folder.String(),
		Changed:   changed,
		ByteItems: snap.Cache.Bytes.Items,
		ByteSize:  snap.Cache.Bytes.Bytes,
		TexItems:  snap.Cache.Textures.Items,
		TexSize:   snap.Cache.Textures.Bytes,
		HitRate:   rate,
		Pending:   snap.Cache.PendingLoads + snap.Worker.Interactive + snap.Worker.Prefetch,
		Completed: snap.Worker.Completed,
		Settled:   settled,
	}
}

// waitSettled polls until no loads are in flight or the timeout expires.
func waitSettled(ctx context.Context, eng *engine.Engine, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()

	for {
		snap := eng.Snapshot()
		if snap.Cache.PendingLoads == 0 && snap.Worker.Interactive == 0 && snap.Worker.Prefetch == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-tick.C:
		}
	}
}

// folderLister is the part of the repository the default script walks.
type folderLister interface {
	SubfolderIDs(id repository.FolderID) []repository.FolderID
}

// folderFinder resolves folder names below a parent.
type folderFinder interface {
	FolderByName(ctx context.Context, parent repository.FolderID, name string) (repository.FolderID, error)
}

type scriptRepository interface {
	folderLister
	folderFinder
}

// buildScript resolves refs, or returns the default walk when refs is empty.
func buildScript(ctx context.Context, repo scriptRepository, refs []string) ([]repository.FolderID, error) {
	if len(refs) == 0 {
		script := []repository.FolderID{repository.Root}
		script = append(script, repo.SubfolderIDs(repository.Root)...)
		return append(script, repository.Root), nil
	}

	script := make([]repository.FolderID, 0, len(refs))
	for _, ref := range refs {
		id, err := resolveFolder(ctx, repo, ref)
		if err != nil {
			return nil, err
		}
		script = append(script, id)
	}
	return script, nil
}

// resolveFolder accepts "root", a numeric id, or a name path like "2024/rome".
func resolveFolder(ctx context.Context, repo folderFinder, ref string) (repository.FolderID, error) {
	ref = strings.Trim(strings.TrimSpace(ref), "/")
	if ref == "" || strings.EqualFold(ref, "root") {
		return repository.Root, nil
	}
	if n, err := strconv.ParseInt(ref, 10, 64); err == nil && n >= 0 {
		return repository.FolderID(n), nil
	}

	id := repository.Root
	for _, name := range strings.Split(ref, "/") {
		next, err := repo.FolderByName(ctx, id, name)
		if errors.Is(err, repository.ErrFolderNotFound) {
			return repository.Root, fmt.Errorf("folder %q: %q not found under %s", ref, name, id)
		}
		if err != nil {
			return repository.Root, fmt.Errorf("folder %q: %w", ref, err)
		}
		id = next
	}
	return id, nil
}
