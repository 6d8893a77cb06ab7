// Command runner executes workflow definition files locally, without
// the REST service. Point it at a *.json file or a directory of them,
// watch the event stream on stdout, and read the final state when the
// run settles. Exit status follows the execution: 0 completed, 1
// failed or cancelled.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowscript/orchestrator/catalog"
	"github.com/flowscript/orchestrator/common/logger"
	"github.com/flowscript/orchestrator/events"
	"github.com/flowscript/orchestrator/executor"
	"github.com/flowscript/orchestrator/nodes"
	"github.com/flowscript/orchestrator/registry"
	"github.com/flowscript/orchestrator/workflow"
)

func main() {
	var (
		workflowID = flag.String("workflow", "", "workflow ID to run (default: the only loaded definition)")
		inputJSON  = flag.String("input", "{}", "initial state overrides as a JSON object")
		timeout    = flag.Duration("timeout", time.Minute, "abort the run after this long")
		quiet      = flag.Bool("quiet", false, "suppress the event stream, print only the final state")
		logLevel   = flag.String("log-level", "warn", "engine log level (debug, info, warn, error)")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: runner [flags] <workflow.json | directory>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *workflowID, *inputJSON, *timeout, *quiet, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "runner: %v\n", err)
		os.Exit(1)
	}
}

func run(path, workflowID, inputJSON string, timeout time.Duration, quiet bool, logLevel string) error {
	log := logger.New(logLevel, "text")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	def, err := loadDefinition(ctx, path, workflowID)
	if err != nil {
		return err
	}

	var input map[string]interface{}
	if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
		return fmt.Errorf("failed to decode -input: %w", err)
	}

	reg := registry.New(log)
	if err := nodes.Register(reg, nodes.Deps{Logger: log}); err != nil {
		return fmt.Errorf("failed to register built-in nodes: %w", err)
	}

	manager := executor.NewManager(reg, log, executor.Options{
		SubscribeGrace:    50 * time.Millisecond,
		MaxDepth:          100,
		MaxLoopIterations: 10000,
	})

	id, err := manager.Start(ctx, def, input)
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", def.ID, err)
	}

	// Subscribe inside the grace window so no event is missed. The
	// channel closes when the execution is released, which is the run's
	// end-of-stream signal.
	rt, err := manager.GetRuntime(id)
	if err != nil {
		return err
	}
	sub := rt.Emitter().SubscribeChan(512)
	for ev := range sub.Events() {
		if !quiet {
			printEvent(ev)
		}
	}

	st, err := manager.Status(id)
	if err != nil {
		return err
	}

	finalState, err := json.MarshalIndent(st.State, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode final state: %w", err)
	}
	fmt.Printf("\nstatus: %s\n", st.Status)
	if st.Error != "" {
		fmt.Printf("error:  %s\n", st.Error)
	}
	fmt.Printf("state:  %s\n", finalState)

	if st.Status != executor.StatusCompleted {
		return fmt.Errorf("execution %s %s", id, st.Status)
	}
	return nil
}

// loadDefinition reads one file or a directory of *.json definitions
// and picks the one to run.
func loadDefinition(ctx context.Context, path, workflowID string) (*workflow.Definition, error) {
	repo := catalog.NewMemoryRepository()

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		if _, err := catalog.LoadDir(ctx, path, repo); err != nil {
			return nil, err
		}
	} else {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		def, err := workflow.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if err := repo.Create(ctx, def); err != nil {
			return nil, err
		}
	}

	if workflowID != "" {
		return repo.Get(ctx, workflowID)
	}
	defs, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	switch len(defs) {
	case 0:
		return nil, fmt.Errorf("no workflow definitions found in %s", path)
	case 1:
		return defs[0], nil
	default:
		ids := make([]string, len(defs))
		for i, d := range defs {
			ids[i] = d.ID
		}
		return nil, fmt.Errorf("%d workflows loaded, pick one with -workflow: %v", len(defs), ids)
	}
}

func printEvent(ev events.Event) {
	detail := ""
	if len(ev.Data) > 0 {
		if raw, err := json.Marshal(ev.Data); err == nil {
			detail = string(raw)
		}
	}
	fmt.Printf("%s  %-22s %s\n", ev.Timestamp.Format("15:04:05.000"), ev.Type, detail)
}
