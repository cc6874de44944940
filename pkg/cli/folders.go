package cli

import (
	"flag"
	"fmt"
	"net/url"
)

type folderInfo struct {
	Path       string `json:"path"`
	Name       string `json:"name"`
	ParentPath string `json:"parentPath"`
}

func newFoldersCommand() *Command {
	cmd := &Command{
		Name:        "folders",
		Description: "List folders under a parent path",
		Flags:       flag.NewFlagSet("folders", flag.ExitOnError),
	}
	parent := cmd.Flags.String("parent", "", "Parent folder path (empty for root)")
	all := cmd.Flags.Bool("all", false, "List every folder in the store")

	cmd.Run = func(c *Client, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		var folders []folderInfo
		if *all {
			if err := c.Get("/api/folders/all", nil, &folders); err != nil {
				return err
			}
		} else {
			q := url.Values{"parent": {*parent}}
			if err := c.Get("/api/folders", q, &folders); err != nil {
				return err
			}
		}
		for _, f := range folders {
			fmt.Println(f.Path)
		}
		return nil
	}
	return cmd
}

func newMkdirCommand() *Command {
	cmd := &Command{
		Name:        "mkdir",
		Description: "Create a folder path, including missing ancestors",
		Flags:       flag.NewFlagSet("mkdir", flag.ExitOnError),
	}
	cmd.Run = func(c *Client, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if cmd.Flags.NArg() != 1 {
			return fmt.Errorf("usage: mkdir <path>")
		}
		var folder folderInfo
		if err := c.Post("/api/folders/path", map[string]string{"path": cmd.Flags.Arg(0)}, &folder); err != nil {
			return err
		}
		fmt.Println(folder.Path)
		return nil
	}
	return cmd
}

type assetInfo struct {
	ID                 string  `json:"id"`
	FolderPath         string  `json:"folderPath"`
	Basename           string  `json:"basename"`
	VersionCounter     int     `json:"versionCounter"`
	PublishedVersionID *string `json:"publishedVersionId"`
}

func newListAssetsCommand() *Command {
	cmd := &Command{
		Name:        "ls",
		Description: "List assets in a folder",
		Flags:       flag.NewFlagSet("ls", flag.ExitOnError),
	}
	folder := cmd.Flags.String("folder", "", "Folder path")

	cmd.Run = func(c *Client, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		var assets []assetInfo
		if err := c.Get("/api/assets", url.Values{"folder": {*folder}}, &assets); err != nil {
			return err
		}
		for _, a := range assets {
			state := "empty"
			if a.PublishedVersionID != nil {
				state = fmt.Sprintf("v%d published", a.VersionCounter)
			} else if a.VersionCounter > 0 {
				state = fmt.Sprintf("v%d unpublished", a.VersionCounter)
			}
			fmt.Printf("%-40s %s\n", a.Basename, state)
		}
		return nil
	}
	return cmd
}
