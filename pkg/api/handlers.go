package api

import (
	"net/http"
	"time"

	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/httputil"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/ids"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/vault"
)

// maxLongPollWait caps the changelog long-poll so proxies do not reap the
// connection.
const maxLongPollWait = 25 * time.Second

// --- Folders ---

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := s.svc.ListFolders(r.Context(), httputil.ParseQueryString(r, "parent", ""))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if folders == nil {
		folders = []*vault.Folder{}
	}
	httputil.WriteSuccess(w, folders)
}

func (s *Server) handleListAllFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := s.svc.ListAllFolders(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if folders == nil {
		folders = []*vault.Folder{}
	}
	httputil.WriteSuccess(w, folders)
}

func (s *Server) handleGetFolder(w http.ResponseWriter, r *http.Request) {
	folder, err := s.svc.GetFolder(r.Context(), httputil.ParseQueryString(r, "path", ""))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, folder)
}

func (s *Server) handleCreateFolderByName(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ParentPath string `json:"parentPath"`
		Name       string `json:"name"`
	}
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	folder, err := s.svc.CreateFolderByName(r.Context(), body.ParentPath, body.Name)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, folder)
}

func (s *Server) handleCreateFolderByPath(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path string `json:"path"`
	}
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	folder, err := s.svc.CreateFolderByPath(r.Context(), body.Path)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, folder)
}

func (s *Server) handleUpdateFolder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path    string `json:"path"`
		NewName string `json:"newName"`
	}
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	folder, err := s.svc.UpdateFolder(r.Context(), body.Path, body.NewName)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, folder)
}

// --- Assets ---

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.svc.ListAssets(r.Context(), httputil.ParseQueryString(r, "folder", ""))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if assets == nil {
		assets = []*vault.Asset{}
	}
	httputil.WriteSuccess(w, assets)
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := s.svc.GetAsset(r.Context(),
		httputil.ParseQueryString(r, "folder", ""),
		httputil.ParseQueryString(r, "basename", ""))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, asset)
}

func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FolderPath string `json:"folderPath"`
		Basename   string `json:"basename"`
	}
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	asset, err := s.svc.CreateAsset(r.Context(), body.FolderPath, body.Basename)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, asset)
}

func (s *Server) handleRenameAsset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FolderPath  string `json:"folderPath"`
		Basename    string `json:"basename"`
		NewBasename string `json:"newBasename"`
	}
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	asset, err := s.svc.RenameAsset(r.Context(), body.FolderPath, body.Basename, body.NewBasename)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, asset)
}

// --- Versions ---

func (s *Server) handleGetAssetVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.svc.GetAssetVersions(r.Context(),
		httputil.ParseQueryString(r, "folder", ""),
		httputil.ParseQueryString(r, "basename", ""))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if versions == nil {
		versions = []*vault.AssetVersion{}
	}
	httputil.WriteSuccess(w, versions)
}

func (s *Server) handleRestoreVersion(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VersionID string `json:"versionId"`
	}
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	result, err := s.svc.RestoreVersion(r.Context(), ids.VersionID(body.VersionID))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

func (s *Server) handleVersionPreviewURL(w http.ResponseWriter, r *http.Request) {
	versionID, ok := httputil.ParsePathStringOrError(w, r, "versionId")
	if !ok {
		return
	}
	url, err := s.svc.GetVersionPreviewUrl(r.Context(), ids.VersionID(versionID))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"url": url})
}

func (s *Server) handleVersionSignedURL(w http.ResponseWriter, r *http.Request) {
	versionID, ok := httputil.ParsePathStringOrError(w, r, "versionId")
	if !ok {
		return
	}
	ttlSeconds, err := httputil.ParseQueryInt(r, "ttl", 900)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	url, err := s.svc.GetSignedUrl(r.Context(), ids.VersionID(versionID), time.Duration(ttlSeconds)*time.Second)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"url": url})
}

func (s *Server) handleVersionText(w http.ResponseWriter, r *http.Request) {
	versionID, ok := httputil.ParsePathStringOrError(w, r, "versionId")
	if !ok {
		return
	}
	text, err := s.svc.GetTextContent(r.Context(), ids.VersionID(versionID))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"content": text})
}

// --- Published files ---

func (s *Server) handleGetPublishedFile(w http.ResponseWriter, r *http.Request) {
	pf, err := s.svc.GetPublishedFile(r.Context(),
		httputil.ParseQueryString(r, "folder", ""),
		httputil.ParseQueryString(r, "basename", ""))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, pf)
}

func (s *Server) handleListPublishedFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.svc.ListPublishedFilesInFolder(r.Context(), httputil.ParseQueryString(r, "folder", ""))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if files == nil {
		files = []*vault.PublishedFile{}
	}
	httputil.WriteSuccess(w, files)
}

// --- Uploads ---

func (s *Server) handleStartUpload(w http.ResponseWriter, r *http.Request) {
	var body vault.StartUploadRequest
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	result, err := s.svc.StartUpload(r.Context(), body)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.UploadStarted(string(result.Backend))
	}
	httputil.WriteSuccess(w, result)
}

func (s *Server) handleFinishUpload(w http.ResponseWriter, r *http.Request) {
	var body vault.FinishUploadRequest
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	result, err := s.svc.FinishUpload(r.Context(), body)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.UploadFinished()
	}
	httputil.WriteSuccess(w, result)
}

// handleLocalUpload receives upload bodies for the platform backend. The
// one-time token in the path authenticates the request; no actor is needed.
func (s *Server) handleLocalUpload(w http.ResponseWriter, r *http.Request) {
	token, ok := httputil.ParsePathStringOrError(w, r, "token")
	if !ok {
		return
	}
	resp, err := s.svc.HandleLocalUpload(r.Context(), token, r.Body)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, resp)
}

// --- Changelog ---

func parseCursor(r *http.Request) (vault.Cursor, error) {
	createdAt, err := httputil.ParseQueryInt64(r, "createdAt", 0)
	if err != nil {
		return vault.Cursor{}, err
	}
	return vault.Cursor{CreatedAt: createdAt, ID: httputil.ParseQueryString(r, "id", "")}, nil
}

func parseWait(r *http.Request) (time.Duration, error) {
	waitMs, err := httputil.ParseQueryInt(r, "waitMs", 0)
	if err != nil {
		return 0, err
	}
	wait := time.Duration(waitMs) * time.Millisecond
	if wait > maxLongPollWait {
		wait = maxLongPollWait
	}
	return wait, nil
}

func (s *Server) handleWatchChangelog(w http.ResponseWriter, r *http.Request) {
	cursor, err := parseCursor(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", 100)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	wait, err := parseWait(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	page, err := s.svc.WatchChangelog(r.Context(), cursor, limit, wait)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, page)
}

func (s *Server) handleWatchFolderChanges(w http.ResponseWriter, r *http.Request) {
	cursor, err := parseCursor(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", 100)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	wait, err := parseWait(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	page, err := s.svc.WatchFolderChanges(r.Context(), httputil.ParseQueryString(r, "path", ""), cursor, limit, wait)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, page)
}

// --- Migration ---

func (s *Server) handleMigrateVersion(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VersionID string `json:"versionId"`
	}
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	if err := s.svc.MigrateVersionToR2(r.Context(), ids.VersionID(body.VersionID)); err != nil {
		s.writeServiceError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.VersionMigrated()
	}
	httputil.WriteNoContent(w)
}

func (s *Server) handleMigrateAll(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Concurrency int `json:"concurrency"`
	}
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	migrated, err := s.svc.MigrateAllToR2(r.Context(), body.Concurrency)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]int{"migrated": migrated})
}

func (s *Server) handleBackfillPublicURL(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VersionID string `json:"versionId"`
	}
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	if err := s.svc.SetVersionR2PublicURL(r.Context(), ids.VersionID(body.VersionID)); err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) handleCleanupStorage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VersionID string `json:"versionId"`
	}
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	if err := s.svc.CleanupVersionStorage(r.Context(), ids.VersionID(body.VersionID)); err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
