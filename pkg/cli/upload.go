package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path/filepath"
)

type startUploadResult struct {
	IntentID  string `json:"intentId"`
	Backend   string `json:"backend"`
	UploadURL string `json:"uploadUrl"`
	Method    string `json:"method"`
}

type finishUploadResult struct {
	AssetID   string `json:"assetId"`
	VersionID string `json:"versionId"`
	Version   int    `json:"version"`
}

func newUploadCommand() *Command {
	cmd := &Command{
		Name:        "upload",
		Description: "Upload a file as a new published version of an asset",
		Flags:       flag.NewFlagSet("upload", flag.ExitOnError),
	}
	folder := cmd.Flags.String("folder", "", "Destination folder path")
	basename := cmd.Flags.String("basename", "", "Asset basename (defaults to the file name)")
	label := cmd.Flags.String("label", "", "Optional version label")

	cmd.Run = func(c *Client, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if cmd.Flags.NArg() != 1 {
			return fmt.Errorf("usage: upload -folder <path> <file>")
		}
		file := cmd.Flags.Arg(0)
		name := *basename
		if name == "" {
			name = filepath.Base(file)
		}
		contentType := mime.TypeByExtension(filepath.Ext(file))

		var start startUploadResult
		err := c.Post("/api/uploads/start", map[string]string{
			"folderPath":  *folder,
			"basename":    name,
			"filename":    filepath.Base(file),
			"label":       *label,
			"contentType": contentType,
		}, &start)
		if err != nil {
			return err
		}
		c.log.Infof("upload intent %s issued for %s backend", start.IntentID, start.Backend)

		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return err
		}

		respBody, err := c.UploadBytes(start.UploadURL, start.Method, contentType, f)
		if err != nil {
			return err
		}
		defer respBody.Close()

		// The platform backend returns {"storageId": ...}; relay it to finish.
		var uploadResponse map[string]interface{}
		if start.Backend == "convex" {
			if err := json.NewDecoder(respBody).Decode(&uploadResponse); err != nil {
				return fmt.Errorf("failed to decode upload response: %w", err)
			}
		}

		var finish finishUploadResult
		err = c.Post("/api/uploads/finish", map[string]interface{}{
			"intentId":       start.IntentID,
			"uploadResponse": uploadResponse,
			"size":           info.Size(),
			"contentType":    contentType,
		}, &finish)
		if err != nil {
			return err
		}
		c.log.Infof("published %s/%s as version %d", *folder, name, finish.Version)
		fmt.Println(finish.VersionID)
		return nil
	}
	return cmd
}

type versionInfo struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
	State   string `json:"state"`
	Size    int64  `json:"size"`
	Label   string `json:"label"`
}

func newVersionsCommand() *Command {
	cmd := &Command{
		Name:        "versions",
		Description: "List the version history of an asset",
		Flags:       flag.NewFlagSet("versions", flag.ExitOnError),
	}
	folder := cmd.Flags.String("folder", "", "Folder path")
	basename := cmd.Flags.String("basename", "", "Asset basename")

	cmd.Run = func(c *Client, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		var versions []versionInfo
		q := url.Values{"folder": {*folder}, "basename": {*basename}}
		if err := c.Get("/api/versions", q, &versions); err != nil {
			return err
		}
		for _, v := range versions {
			fmt.Printf("v%-4d %-10s %8d bytes  %s  %s\n", v.Version, v.State, v.Size, v.ID, v.Label)
		}
		return nil
	}
	return cmd
}

func newRestoreCommand() *Command {
	cmd := &Command{
		Name:        "restore",
		Description: "Republish an old version's content as a new version",
		Flags:       flag.NewFlagSet("restore", flag.ExitOnError),
	}
	cmd.Run = func(c *Client, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if cmd.Flags.NArg() != 1 {
			return fmt.Errorf("usage: restore <versionId>")
		}
		var result finishUploadResult
		if err := c.Post("/api/versions/restore", map[string]string{"versionId": cmd.Flags.Arg(0)}, &result); err != nil {
			return err
		}
		c.log.Infof("restored as version %d", result.Version)
		fmt.Println(result.VersionID)
		return nil
	}
	return cmd
}
