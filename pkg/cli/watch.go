package cli

import (
	"flag"
	"fmt"
	"net/url"
	"strconv"
)

type changeEntry struct {
	ID         string `json:"id"`
	CreatedAt  int64  `json:"createdAt"`
	Kind       string `json:"kind"`
	FolderPath string `json:"folderPath"`
	Basename   string `json:"basename"`
	VersionID  string `json:"versionId"`
}

type changePage struct {
	Changes    []changeEntry `json:"changes"`
	NextCursor struct {
		CreatedAt int64  `json:"createdAt"`
		ID        string `json:"id"`
	} `json:"nextCursor"`
}

func newWatchCommand() *Command {
	cmd := &Command{
		Name:        "watch",
		Description: "Follow the changelog, printing entries as they arrive",
		Flags:       flag.NewFlagSet("watch", flag.ExitOnError),
	}
	folder := cmd.Flags.String("folder", "", "Watch a single folder instead of the whole store")
	follow := cmd.Flags.Bool("follow", true, "Keep long-polling after the backlog drains")

	cmd.Run = func(c *Client, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		path := "/api/changes"
		if *folder != "" {
			path = "/api/changes/folder"
		}

		var createdAt int64
		var id string
		for {
			q := url.Values{
				"createdAt": {strconv.FormatInt(createdAt, 10)},
				"id":        {id},
			}
			if *folder != "" {
				q.Set("path", *folder)
			}
			if *follow {
				q.Set("waitMs", "20000")
			}

			var page changePage
			if err := c.Get(path, q, &page); err != nil {
				return err
			}
			for _, e := range page.Changes {
				fmt.Printf("%d %-18s %s/%s %s\n", e.CreatedAt, e.Kind, e.FolderPath, e.Basename, e.VersionID)
			}
			createdAt = page.NextCursor.CreatedAt
			id = page.NextCursor.ID

			if !*follow && len(page.Changes) == 0 {
				return nil
			}
		}
	}
	return cmd
}
