package cli

import (
	"flag"
	"fmt"
)

func newMigrateCommand() *Command {
	cmd := &Command{
		Name:        "migrate",
		Description: "Migrate platform-stored versions to the object store",
		Flags:       flag.NewFlagSet("migrate", flag.ExitOnError),
	}
	version := cmd.Flags.String("version", "", "Migrate a single version id")
	concurrency := cmd.Flags.Int("concurrency", 4, "Parallel uploads for bulk migration")

	cmd.Run = func(c *Client, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *version != "" {
			if err := c.Post("/api/migrate/version", map[string]string{"versionId": *version}, nil); err != nil {
				return err
			}
			c.log.Infof("migrated version %s", *version)
			return nil
		}

		var result struct {
			Migrated int `json:"migrated"`
		}
		if err := c.Post("/api/migrate/all", map[string]int{"concurrency": *concurrency}, &result); err != nil {
			return err
		}
		c.log.Infof("migration complete")
		fmt.Printf("migrated %d versions\n", result.Migrated)
		return nil
	}
	return cmd
}
