// Package cli implements the assetvault admin command line tool. Commands
// talk to a running server over its JSON API; nothing here touches the
// database directly.
package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(c *Client, args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// NewRootCommand creates the root command
func NewRootCommand() *Command {
	root := &Command{
		Name:        "assetvault",
		Description: "assetvault - versioned asset store admin CLI",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("assetvault", flag.ExitOnError),
	}

	root.Subcommands["folders"] = newFoldersCommand()
	root.Subcommands["mkdir"] = newMkdirCommand()
	root.Subcommands["ls"] = newListAssetsCommand()
	root.Subcommands["upload"] = newUploadCommand()
	root.Subcommands["versions"] = newVersionsCommand()
	root.Subcommands["restore"] = newRestoreCommand()
	root.Subcommands["migrate"] = newMigrateCommand()
	root.Subcommands["watch"] = newWatchCommand()

	return root
}

// NewLogger builds the logger the commands report progress through.
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if os.Getenv("ASSETVAULT_DEBUG") != "" {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// Execute runs the command
func (c *Command) Execute() error {
	args := os.Args[1:]
	if len(args) == 0 {
		return c.usage()
	}

	if args[0] == "-h" || args[0] == "--help" {
		return c.usage()
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		client := NewClientFromEnv(NewLogger())
		return subcmd.Run(client, args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	fmt.Printf("Usage: %s <command> [args]\n\n", c.Name)
	fmt.Printf("Commands:\n")
	for name, cmd := range c.Subcommands {
		fmt.Printf("  %-12s %s\n", name, cmd.Description)
	}
	fmt.Printf("\nEnvironment:\n")
	fmt.Printf("  ASSETVAULT_URL    server base URL (default http://localhost:8080)\n")
	fmt.Printf("  ASSETVAULT_KEY    admin bearer token\n")
	fmt.Printf("  ASSETVAULT_EMAIL  acting user email\n")
	return nil
}
