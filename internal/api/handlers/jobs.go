package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/asset-tracker/internal/api/middleware"
	"github.com/dvloznov/asset-tracker/internal/jobs"
	"github.com/dvloznov/asset-tracker/internal/models"
)

// maxStatementBytes bounds uploaded statement PDFs.
const maxStatementBytes = 20 << 20

// StatementUploader stores uploaded statements.
type StatementUploader interface {
	UploadBytes(ctx context.Context, bucketName, objectName, contentType string, data []byte) (string, error)
}

// AccountLookup finds a loaded account.
type AccountLookup interface {
	Account(id string) (*models.Account, error)
}

// StatementImporter turns a stored statement into transactions.
type StatementImporter interface {
	ImportStatement(ctx context.Context, gcsURI string, account *models.Account) ([]*models.Transaction, error)
}

// TransactionImporter appends transactions to an account.
type TransactionImporter interface {
	AccountLookup
	ImportTransactions(ctx context.Context, id string, txs []*models.Transaction) (int, error)
}

// JobsHandler handles statement imports and job status endpoints.
type JobsHandler struct {
	store     jobs.JobStore
	publisher jobs.Publisher
	uploader  StatementUploader
	bucket    string
	accounts  AccountLookup
	validate  *validator.Validate
	log       zerolog.Logger
}

// NewJobsHandler creates a new jobs handler. Without a bucket only
// statements already in GCS can be imported.
func NewJobsHandler(store jobs.JobStore, publisher jobs.Publisher, uploader StatementUploader, bucket string, accounts AccountLookup, validate *validator.Validate, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store:     store,
		publisher: publisher,
		uploader:  uploader,
		bucket:    bucket,
		accounts:  accounts,
		validate:  validate,
		log:       log,
	}
}

type importRequest struct {
	GCSURI string `json:"gcs_uri" validate:"required,startswith=gs://"`
}

// ImportStatement handles POST /api/accounts/{id}/import
// The body is either a PDF or {"gcs_uri": "gs://..."}.
func (h *JobsHandler) ImportStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := r.PathValue("id")

	if _, err := h.accounts.Account(accountID); err != nil {
		writeError(w, h.log, err, "Failed to import statement")
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var gcsURI string
	if mediaType == "application/pdf" {
		if h.bucket == "" || h.uploader == nil {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Statement uploads are disabled")
			return
		}
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxStatementBytes))
		if err != nil {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Statement is too large")
			return
		}
		if len(data) == 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Statement is empty")
			return
		}

		objectName := path.Join("statements", accountID, time.Now().Format("2006/01/02"), uuid.NewString()+".pdf")
		gcsURI, err = h.uploader.UploadBytes(ctx, h.bucket, objectName, mediaType, data)
		if err != nil {
			writeError(w, h.log, err, "Failed to upload statement")
			return
		}
		h.log.Info().Str("gcs_uri", gcsURI).Int("bytes", len(data)).Msg("Statement uploaded")
	} else {
		var req importRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := h.validate.Struct(req); err != nil {
			writeError(w, h.log, err, "Invalid import request")
			return
		}
		gcsURI = req.GCSURI
	}

	job := &jobs.ImportStatementJob{
		AccountID: accountID,
		GCSURI:    gcsURI,
	}
	if err := h.publisher.PublishImportStatement(ctx, job); err != nil {
		writeError(w, h.log, err, "Failed to enqueue import job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("account_id", accountID).Msg("Import job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":     job.JobID,
		"account_id": accountID,
		"gcs_uri":    gcsURI,
		"status":     string(job.Status),
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, h.log, err, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		AccountID: query.Get("account_id"),
		Status:    jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		writeError(w, h.log, err, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// ImportJobHandler returns the queue handler that parses a statement and
// appends its transactions to the job's account.
func ImportJobHandler(importer StatementImporter, target TransactionImporter, log zerolog.Logger) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		importJob, ok := job.(*jobs.ImportStatementJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log := log.With().
			Str("job_id", importJob.JobID).
			Str("account_id", importJob.AccountID).
			Logger()
		log.Info().Str("gcs_uri", importJob.GCSURI).Msg("Processing import job")

		account, err := target.Account(importJob.AccountID)
		if err != nil {
			return fmt.Errorf("import job %s: %w", importJob.JobID, err)
		}

		txs, err := importer.ImportStatement(ctx, importJob.GCSURI, account)
		if err != nil {
			return fmt.Errorf("import job %s: %w", importJob.JobID, err)
		}

		n, err := target.ImportTransactions(ctx, importJob.AccountID, txs)
		if err != nil {
			return fmt.Errorf("import job %s: %w", importJob.JobID, err)
		}
		importJob.Imported = n

		log.Info().Int("imported", n).Msg("Import job completed")
		return nil
	}
}
