// Handlers for the transcription job server's HTTP routes: submission,
// status/result lookup, deletion, module registration, and system status.
package httpapi

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tsapi/internal/captions"
	"tsapi/internal/core"
	"tsapi/internal/models"
	"tsapi/internal/modules"
	"tsapi/internal/store"
)

// Handler holds the dependencies every route needs.
type Handler struct {
	core *core.Core
}

// NewHandler builds a Handler.
func NewHandler(c *core.Core) *Handler {
	return &Handler{core: c}
}

// PostTranscribe handles POST /transcribe: a File upload or an Opencast
// link+module_id pair, admitted through Core.Submit.
//
// @Summary Submit a transcription job
// @Tags jobs
// @Accept mpfp
// @Param priority formData int true "Queue priority"
// @Param file formData file false "Audio or video file"
// @Param module formData string false "Module name (e.g. opencast)"
// @Param module_id formData string false "Registered module ID"
// @Param link formData string false "Remote media URL (opencast module)"
// @Param title formData string false "Initial prompt / title"
// @Success 201 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 415 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Failure 507 {object} map[string]string
// @Router /transcribe [post]
func (h *Handler) PostTranscribe(c *gin.Context) {
	priorityStr := c.PostForm("priority")
	if priorityStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Priority nan"})
		return
	}
	priority, err := strconv.Atoi(priorityStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Priority nan"})
		return
	}

	moduleName := c.PostForm("module")
	moduleID := c.PostForm("module_id")
	link := c.PostForm("link")
	var title *string
	if t := c.PostForm("title"); t != "" {
		title = &t
	}

	fileHeader, fileErr := c.FormFile("file")
	hasLink := moduleName != "" && moduleID != "" && link != ""
	if fileErr != nil && !hasLink {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "No file or link with module and module id"})
		return
	}

	uid := uuid.NewString()
	now := time.Now()

	if fileErr == nil {
		f, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read upload"})
			return
		}
		defer f.Close()

		if err := modules.SaveUpload(h.core.Config.AudioInputDir, uid, f); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		entry := &models.Entry{
			UID:           uid,
			ModuleUID:     "DefaultFileModule",
			ModuleType:    models.ModuleTypeFile,
			Priority:      int32(priority),
			CreatedAt:     now,
			UpdatedAt:     now,
			InitialPrompt: title,
			Title:         title,
		}
		if err := h.core.Submit(c.Request.Context(), entry, int32(priority)); err != nil {
			_ = os.Remove(filepath.Join(h.core.Config.AudioInputDir, uid))
			writeSubmitError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"jobId": uid})
		return
	}

	if moduleName != "opencast" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Module not found"})
		return
	}
	if _, err := h.core.Store.GetModule(moduleID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Module ID not found"})
		return
	}

	entry := &models.Entry{
		UID:           uid,
		ModuleUID:     moduleID,
		ModuleType:    models.ModuleTypeOpencast,
		Priority:      int32(priority),
		CreatedAt:     now,
		UpdatedAt:     now,
		Link:          &link,
		InitialPrompt: title,
		Title:         title,
	}
	if err := h.core.Submit(c.Request.Context(), entry, int32(priority)); err != nil {
		if store.IsConflict(err) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Max Opencast Queue length reached"})
			return
		}
		writeSubmitError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"jobId": uid})
}

func writeSubmitError(c *gin.Context, err error) {
	kind, ok := store.KindOf(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	switch kind {
	case store.KindSelfCareReject:
		c.JSON(http.StatusInsufficientStorage, gin.H{"error": err.Error()})
	case store.KindNotFound:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Module ID not found"})
	case store.KindConflict:
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// GetTranscribe handles GET /transcribe?id=&format=: renders the finished
// job's captions in the requested format.
//
// @Summary Download a completed job's transcript
// @Tags jobs
// @Param id query string true "Job UID"
// @Param format query string true "vtt, srt, txt, csv, tsv or json"
// @Success 200 {file} file
// @Failure 404 {object} map[string]string
// @Router /transcribe [get]
func (h *Handler) GetTranscribe(c *gin.Context) {
	id := c.Query("id")
	entry, err := h.core.Store.LoadJob(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	if entry.Status != models.StatusCompleted {
		c.JSON(http.StatusOK, gin.H{"error": "Job not whispered yet"})
		return
	}

	format := c.Query("format")
	writer, ok := captions.For(format)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"error": "Output format not supported"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.%s", entry.UID, format))
	c.Status(http.StatusOK)
	if err := writer.Write(c.Writer, entry.WhisperResult); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error while generating File: " + err.Error()})
	}
}

// DeleteTranscribe handles DELETE /transcribe?id=: a job may be deleted
// unless it's currently Processing.
//
// @Summary Cancel and delete a job
// @Tags jobs
// @Param id query string true "Job UID"
// @Success 200 {string} string "OK"
// @Failure 404 {object} map[string]string
// @Router /transcribe [delete]
func (h *Handler) DeleteTranscribe(c *gin.Context) {
	id := c.Query("id")
	entry, err := h.core.Store.LoadJob(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	if entry.Status == models.StatusProcessing {
		c.JSON(http.StatusOK, gin.H{"error": "Job currently processing"})
		return
	}
	if err := h.core.DeleteJob(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.String(http.StatusOK, "OK")
}

// PostModuleOpencast handles POST /module/opencast: registers a new
// Opencast module with a max_queue_length cap.
//
// @Summary Register an Opencast module
// @Tags modules
// @Param max_queue_length formData int true "Admission cap, <=0 for uncapped"
// @Success 201 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /module/opencast [post]
func (h *Handler) PostModuleOpencast(c *gin.Context) {
	maxQueueStr := c.PostForm("max_queue_length")
	if maxQueueStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No max queue length specified"})
		return
	}
	maxQueue, err := strconv.Atoi(maxQueueStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No max queue length specified"})
		return
	}

	mod := &models.Module{
		ModuleUID:      uuid.NewString(),
		ModuleType:     models.ModuleTypeOpencast,
		MaxQueueLength: maxQueue,
	}
	if err := h.core.Store.AddModule(mod); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"moduleId": mod.ModuleUID})
}

// GetStatus handles GET /status?id=.
//
// @Summary Get a job's status
// @Tags jobs
// @Param id query string true "Job UID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /status [get]
func (h *Handler) GetStatus(c *gin.Context) {
	id := c.Query("id")
	entry, err := h.core.Store.LoadJob(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobId": id, "status": ToWireStatus(entry.Status)})
}

// GetSystemStatus handles GET /status/system, surfacing the same gauges
// the admission gate reads.
//
// @Summary Get host resource gauges and queue depth
// @Tags system
// @Success 200 {object} map[string]interface{}
// @Router /status/system [get]
func (h *Handler) GetSystemStatus(c *gin.Context) {
	gauges, err := h.core.SelfCare.Read(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cpu_usage":     gauges.CPUPercent,
		"ram_usage":     gauges.RAMPercent,
		"storage_usage": gauges.DiskPercent,
		"queue_length":  gauges.QueueLength,
		"running_jobs":  len(h.core.Scheduler.InFlightUIDs()),
		"parallel_jobs": h.core.Config.ParallelWorkers,
	})
}

// GetLanguage handles GET /language?id=.
//
// @Summary Get a job's detected language
// @Tags jobs
// @Param id query string true "Job UID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /language [get]
func (h *Handler) GetLanguage(c *gin.Context) {
	id := c.Query("id")
	entry, err := h.core.Store.LoadJob(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	if entry.WhisperLanguage == nil {
		c.JSON(http.StatusOK, gin.H{"error": "Job not processed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobId": id, "language": *entry.WhisperLanguage})
}

// GetModel handles GET /model?id=.
//
// @Summary Get the model a job ran with
// @Tags jobs
// @Param id query string true "Job UID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /model [get]
func (h *Handler) GetModel(c *gin.Context) {
	id := c.Query("id")
	entry, err := h.core.Store.LoadJob(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	if entry.WhisperModel == nil {
		c.JSON(http.StatusOK, gin.H{"error": "Job not processed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobId": id, "model": *entry.WhisperModel})
}

// GetRoot handles GET /.
func (h *Handler) GetRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Listening to API calls", "status": http.StatusOK})
}

// PostCLILogin issues a bearer token for the CLI (the supplemental feature
// recorded in SPEC_FULL.md). The handler checks no credentials itself: it
// relies on the global auth.Any middleware, which lets the request through
// on valid Basic credentials or a valid bearer token, and which is not
// installed at all when login_username is unset.
func (h *Handler) PostCLILogin(c *gin.Context) {
	token, err := h.core.Issuer.IssueToken(h.core.Config.LoginUsername)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
