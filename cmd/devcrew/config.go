package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"devcrew/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the devcrew configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := rootConfigPath
		if path == "" {
			path = config.ConfigPath()
		}
		if err := config.WriteSkeleton(path); err != nil {
			return err
		}
		fmt.Printf("%s wrote %s\n", color.GreenString("✓"), path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the default configuration file location",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.ConfigPath())
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}
