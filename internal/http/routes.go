package http

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/code-o-holic/ai-toolkit-datasets/internal/config"
	"github.com/code-o-holic/ai-toolkit-datasets/internal/dataset"
	"github.com/code-o-holic/ai-toolkit-datasets/internal/domain"
	"github.com/code-o-holic/ai-toolkit-datasets/internal/services"
	"github.com/code-o-holic/ai-toolkit-datasets/internal/settings"
	"github.com/code-o-holic/ai-toolkit-datasets/internal/storage"
)

type API struct {
	cfg      config.Config
	files    *storage.FileManager
	settings *settings.Store
	report   *services.ReportService
	share    *services.ShareService
	log      *logrus.Logger
}

func NewAPI(cfg config.Config, fm *storage.FileManager, st *settings.Store, report *services.ReportService, share *services.ShareService, log *logrus.Logger) *API {
	return &API{cfg: cfg, files: fm, settings: st, report: report, share: share, log: log}
}

func registerRoutes(r *gin.Engine, api *API) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", api.handleHealth)

		apiGroup.GET("/datasets", api.handleListDatasets)
		apiGroup.POST("/datasets", api.handleCreateDataset)
		apiGroup.POST("/datasets/:name/media", api.handleUploadMedia)

		apiGroup.POST("/datasets/:name/caption/start", api.handleStartCaptioning)
		apiGroup.POST("/datasets/:name/caption/cancel", api.handleCancelCaptioning)
		apiGroup.GET("/datasets/:name/caption/status", api.handleCaptionStatus)

		apiGroup.POST("/datasets/:name/lock", api.handleLockDataset)
		apiGroup.POST("/datasets/:name/report", api.handleGenerateReport)
		apiGroup.POST("/datasets/:name/report/share", api.handleShareReport)
	}

	r.GET("/report/:name", api.handleServeReport)
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// datasetDir resolves a dataset name against the configured root and
// rejects names that escape it or collide with sidecar conventions.
func (a *API) datasetDir(c *gin.Context) (string, string, bool) {
	name := c.Param("name")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		respondMessage(c, http.StatusBadRequest, "invalid dataset name")
		return "", "", false
	}

	dir := filepath.Join(a.settings.DatasetsRoot(), name)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		respondMessage(c, http.StatusNotFound, "dataset not found")
		return "", "", false
	}

	return dir, name, true
}

func (a *API) handleListDatasets(c *gin.Context) {
	root := a.settings.DatasetsRoot()

	summaries := make([]domain.DatasetSummary, 0)
	for _, name := range dataset.ListDatasetDirs(root) {
		dir := filepath.Join(root, name)
		st := dataset.ComputeStatus(dir, dataset.ModeAll)

		status := domain.CaptionStatusIdle
		if state, ok := dataset.ReadState(dir); ok {
			status = state.Status
		}

		_, locked := dataset.ReadLock(dir)

		summaries = append(summaries, domain.DatasetSummary{
			Name:      name,
			Total:     st.Total,
			Captioned: st.Captioned,
			Status:    status,
			IsLocked:  locked,
		})
	}

	c.JSON(http.StatusOK, summaries)
}

func (a *API) handleCreateDataset(c *gin.Context) {
	var payload struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	dir, err := a.files.CreateDataset(a.settings.DatasetsRoot(), strings.TrimSpace(payload.Name))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"name": payload.Name, "path": dir})
}

func (a *API) handleUploadMedia(c *gin.Context) {
	dir, name, ok := a.datasetDir(c)
	if !ok {
		return
	}

	if lock, locked := dataset.ReadLock(dir); locked && lock.IsLocked {
		respondMessage(c, http.StatusConflict, "dataset is locked")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "missing media file")
		return
	}

	upload, err := fileHeader.Open()
	if err != nil {
		a.log.WithError(err).Error("open upload")
		respondMessage(c, http.StatusInternalServerError, "unable to read uploaded file")
		return
	}
	defer upload.Close()

	path, err := a.files.SaveUploadedMedia(dir, upload, fileHeader.Filename)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	a.log.WithFields(logrus.Fields{
		"dataset": name,
		"file":    filepath.Base(path),
		"size":    fileHeader.Size,
	}).Info("media uploaded")

	c.JSON(http.StatusCreated, gin.H{"path": path})
}

func (a *API) handleStartCaptioning(c *gin.Context) {
	dir, name, ok := a.datasetDir(c)
	if !ok {
		return
	}

	var payload struct {
		Mode     string `json:"mode"`
		Provider string `json:"provider"`
		Model    string `json:"model"`
		Prompt   string `json:"prompt"`
		BaseURL  string `json:"baseUrl"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	if state, active := dataset.ReadState(dir); active && state.Status == domain.CaptionStatusRunning {
		respondMessage(c, http.StatusConflict, "captioning already running")
		return
	}

	st := dataset.ComputeStatus(dir, dataset.ModeAll)

	status := domain.CaptionStatusRunning
	if payload.Mode == "manual" {
		// Manual mode: pre-create empty sidecars so every file shows up in
		// editors, and leave the worker out of it.
		status = domain.CaptionStatusIdle
		for _, mediaPath := range dataset.FindAllMedia(dir, dataset.ModeAll) {
			captionPath := dataset.CaptionPath(mediaPath)
			if _, err := os.Stat(captionPath); err == nil {
				continue
			}
			if err := os.WriteFile(captionPath, nil, 0o644); err != nil {
				a.log.WithError(err).WithField("file", captionPath).Warn("pre-create caption file")
			}
		}
	}

	state := domain.CaptionState{
		Version:  domain.CaptionStateVersion,
		Status:   status,
		Progress: st.Captioned,
		Total:    st.Total,
		Provider: payload.Provider,
		Model:    payload.Model,
		Prompt:   payload.Prompt,
		BaseURL:  payload.BaseURL,
	}

	if err := dataset.WriteState(dir, state); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	a.log.WithFields(logrus.Fields{
		"dataset":  name,
		"mode":     payload.Mode,
		"provider": payload.Provider,
	}).Info("captioning started")

	c.JSON(http.StatusOK, state)
}

func (a *API) handleCancelCaptioning(c *gin.Context) {
	dir, name, ok := a.datasetDir(c)
	if !ok {
		return
	}

	if err := dataset.DeleteState(dir); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	a.log.WithField("dataset", name).Info("captioning cancelled")
	c.Status(http.StatusNoContent)
}

func (a *API) handleCaptionStatus(c *gin.Context) {
	dir, _, ok := a.datasetDir(c)
	if !ok {
		return
	}

	st := dataset.ComputeStatus(dir, dataset.ModeAll)

	status := domain.CaptionStatusIdle
	if state, active := dataset.ReadState(dir); active {
		status = state.Status
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"total":     st.Total,
		"captioned": st.Captioned,
	})
}

func (a *API) handleLockDataset(c *gin.Context) {
	dir, name, ok := a.datasetDir(c)
	if !ok {
		return
	}

	st := dataset.ComputeStatus(dir, dataset.ModeAll)
	lock, err := dataset.WriteLock(dir, name, st)
	if err != nil {
		status := http.StatusInternalServerError
		if strings.Contains(err.Error(), "already locked") {
			status = http.StatusConflict
		}
		respondMessage(c, status, err.Error())
		return
	}

	a.log.WithFields(logrus.Fields{
		"dataset":    name,
		"identifier": lock.Identifier,
	}).Info("dataset locked")

	c.JSON(http.StatusCreated, lock)
}

func (a *API) handleGenerateReport(c *gin.Context) {
	dir, name, ok := a.datasetDir(c)
	if !ok {
		return
	}

	st := dataset.ComputeStatus(dir, dataset.ModeAll)
	lock, locked := dataset.ReadLock(dir)

	path, err := a.report.GenerateReport(dir, name, st, lock, locked)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reportPath": path})
}

func (a *API) handleShareReport(c *gin.Context) {
	dir, name, ok := a.datasetDir(c)
	if !ok {
		return
	}

	if _, err := os.Stat(a.report.ReportPath(dir)); err != nil {
		respondMessage(c, http.StatusBadRequest, "no report available for this dataset")
		return
	}

	url, expiresAt, err := a.share.Generate(name)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url, "expiresAt": expiresAt.UTC()})
}

func (a *API) handleServeReport(c *gin.Context) {
	expiresParam := c.Query("exp")
	signature := c.Query("sig")

	if expiresParam == "" || signature == "" {
		respondMessage(c, http.StatusBadRequest, "missing signature")
		return
	}

	expires, err := strconv.ParseInt(expiresParam, 10, 64)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid expiration")
		return
	}

	if expires < time.Now().Unix() {
		respondMessage(c, http.StatusGone, "link expired")
		return
	}

	if !a.share.Validate(c.Request.URL.Path, expires, signature) {
		respondMessage(c, http.StatusForbidden, "invalid signature")
		return
	}

	dir, _, ok := a.datasetDir(c)
	if !ok {
		return
	}

	reportPath := a.report.ReportPath(dir)
	if _, err := os.Stat(reportPath); err != nil {
		respondMessage(c, http.StatusNotFound, "report not found")
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.FileAttachment(reportPath, filepath.Base(reportPath))
}

func respondError(c *gin.Context, status int, err error) {
	respondMessage(c, status, err.Error())
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
