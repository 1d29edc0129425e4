package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskmaster/taskboard/cmd/api/commands"
)

// @title Taskboard API
// @version 1.0
// @description Multi-project task management with per-user ownership

// @license.name MIT

// @host localhost:5000
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	rootCmd := &cobra.Command{
		Use:   "taskboard",
		Short: "Taskboard API Server",
		Long:  `Taskboard is a task management backend: users own projects, projects hold tasks, tasks carry subtasks.`,
	}

	// Add commands
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewUserCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
