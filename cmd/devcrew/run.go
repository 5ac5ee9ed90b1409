package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"devcrew/internal/config"
	"devcrew/internal/orchestrator"
	"devcrew/pkg/models"
)

// runSingleTask solves one task and exits. A failed pipeline run is a
// command error, so the process exits non-zero.
func runSingleTask(task, output string) error {
	setupLogging()

	cfg, err := config.Load(rootConfigPath)
	if err != nil {
		return err
	}

	p := buildPipeline(cfg)
	defer p.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := p.orch.SolveTask(ctx, task)
	printResult(result)

	if output != "" {
		if err := os.WriteFile(output, []byte(result.Solution), 0644); err != nil {
			return fmt.Errorf("write solution to %s: %w", output, err)
		}
		fmt.Printf("Solution written to %s\n", output)
	}

	if result.Err != nil {
		return result.Err
	}
	return nil
}

// runInteractive reads tasks from standard input until EOF or an exit
// command. Configuration edits are picked up between tasks.
func runInteractive() error {
	setupLogging()

	var mu sync.Mutex
	var current *config.Config

	cfg, err := config.LoadAndWatch(rootConfigPath, func(fresh *config.Config) {
		mu.Lock()
		current = fresh
		mu.Unlock()
		fmt.Println(color.YellowString("Configuration reloaded."))
	})
	if err != nil {
		return err
	}
	mu.Lock()
	if current == nil {
		current = cfg
	}
	mu.Unlock()

	fmt.Println(color.CyanString("devcrew interactive mode"))
	fmt.Println("Type a task and press enter. Type 'exit' or 'quit' to leave.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("\ntask> ")
		if !scanner.Scan() {
			break
		}
		task := strings.TrimSpace(scanner.Text())
		if task == "" {
			continue
		}
		if task == "exit" || task == "quit" {
			break
		}

		mu.Lock()
		taskCfg := current
		mu.Unlock()

		// A fresh pipeline per task keeps config edits effective and
		// agent histories scoped to one run.
		p := buildPipeline(taskCfg)
		result := p.orch.SolveTask(ctx, task)
		p.Close()

		printResult(result)

		if ctx.Err() != nil {
			break
		}
	}

	fmt.Println("Bye.")
	return scanner.Err()
}

func printResult(result orchestrator.Result) {
	fmt.Println()
	switch result.Status {
	case models.StatusCompleted:
		fmt.Printf("%s run %s finished in %.1fs\n\n", color.GreenString("✓"), result.TaskID, result.Duration.Seconds())
	default:
		fmt.Printf("%s run %s failed after %.1fs\n\n", color.RedString("✗"), result.TaskID, result.Duration.Seconds())
	}
	fmt.Println(result.Solution)
}
