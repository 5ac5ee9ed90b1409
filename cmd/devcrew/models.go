package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"devcrew/internal/config"
	"devcrew/internal/ollama"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect and manage models on the completion service",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the models available on the service",
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		client, err := serviceClient()
		if err != nil {
			return err
		}

		models, err := client.ListModels(cmd.Context())
		if err != nil {
			return err
		}
		if len(models) == 0 {
			fmt.Println("No models available.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSIZE\tMODIFIED")
		for _, m := range models {
			fmt.Fprintf(w, "%s\t%s\t%s\n", m.Name, formatSize(m.Size), m.ModifiedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var modelsPullCmd = &cobra.Command{
	Use:   "pull <model>",
	Short: "Download a model unless it is already present",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		client, err := serviceClient()
		if err != nil {
			return err
		}

		name := args[0]
		fmt.Printf("Pulling %s (this may take a while)...\n", name)
		if !client.PullModel(context.Background(), name) {
			return fmt.Errorf("pull %s failed", name)
		}
		fmt.Printf("%s model %s is available\n", color.GreenString("✓"), name)
		return nil
	},
}

func serviceClient() (*ollama.Client, error) {
	cfg, err := config.Load(rootConfigPath)
	if err != nil {
		return nil, err
	}
	return ollama.New(ollama.Config{
		BaseURL:    cfg.Ollama.BaseURL,
		Timeout:    cfg.Ollama.Timeout,
		MaxRetries: cfg.Ollama.MaxRetries,
	}), nil
}

func formatSize(bytes int64) string {
	const gb = 1 << 30
	const mb = 1 << 20
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/gb)
	case bytes >= mb:
		return fmt.Sprintf("%.0f MB", float64(bytes)/mb)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsPullCmd)
}
