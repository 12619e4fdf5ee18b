package http

import (
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docquiz/internal/config"
	"docquiz/internal/domain"
	"docquiz/internal/services"
	"docquiz/internal/storage"
)

type API struct {
	cfg      config.Config
	files    *storage.FileManager
	store    *storage.Store
	upload   *services.UploadService
	generate *services.GenerateService
	pdf      *services.PDFService
	share    *services.ShareService
}

func NewAPI(cfg config.Config, fm *storage.FileManager, store *storage.Store, upload *services.UploadService, generate *services.GenerateService, pdf *services.PDFService, share *services.ShareService) *API {
	return &API{cfg: cfg, files: fm, store: store, upload: upload, generate: generate, pdf: pdf, share: share}
}

func registerRoutes(r *gin.Engine, api *API) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", api.handleHealth)

		apiGroup.POST("/upload", api.handleUpload)
		apiGroup.POST("/generate", api.handleGenerate)

		apiGroup.GET("/batches", api.handleListBatches)

		apiGroup.POST("/quiz/pdf", api.handleExportQuizPDF)
	}

	r.GET("/pdf/:id", api.handleServePDF)
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) handleUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		a.respondError(c, domain.ValidationErrorf("invalid multipart body"))
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		a.respondError(c, domain.ValidationErrorf("no files provided"))
		return
	}

	staged := make([]domain.StagedFile, 0, len(headers))
	defer func() { a.files.Discard(staged) }()

	for _, header := range headers {
		if !storage.HasPDFExtension(header.Filename) {
			a.respondError(c, domain.ValidationErrorf("file %s is not a PDF", header.Filename))
			return
		}

		upload, err := header.Open()
		if err != nil {
			log.Printf("open upload %s: %v", header.Filename, err)
			a.respondError(c, domain.UnexpectedError(err, "unable to read uploaded file %s", header.Filename))
			return
		}

		file, err := a.files.StageUpload(upload, header.Filename)
		upload.Close()
		if err != nil {
			a.respondError(c, domain.ValidationErrorf("%s", err.Error()))
			return
		}
		staged = append(staged, file)
	}

	result, err := a.upload.Upload(c.Request.Context(), staged)
	if err != nil {
		a.respondError(c, err)
		return
	}

	names := make([]string, len(staged))
	for i, f := range staged {
		names[i] = f.Name
	}

	status := domain.BatchStatusCompleted
	message := "files uploaded and indexed"
	if result.Pending {
		status = domain.BatchStatusInProgress
		message = "files uploaded, indexing still in progress"
	}

	batchID := uuid.NewString()
	batch, err := a.store.CreateBatch(result.StoreID, names, result.FileIDs, status)
	if err != nil {
		log.Printf("record upload batch: %v", err)
	} else {
		batchID = batch.ID
	}

	c.JSON(http.StatusOK, gin.H{
		"storeHandle":   result.StoreID,
		"message":       message,
		"filesUploaded": len(staged),
		"batchId":       batchID,
	})
}

func (a *API) handleGenerate(c *gin.Context) {
	var payload struct {
		StoreHandle       string   `json:"storeHandle" binding:"required"`
		ExistingQuestions []string `json:"existingQuestions"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		a.respondError(c, domain.ValidationErrorf("missing or invalid storeHandle"))
		return
	}

	questions, err := a.generate.Generate(c.Request.Context(), payload.StoreHandle, payload.ExistingQuestions)
	if err != nil {
		a.respondError(c, err)
		return
	}

	if questions == nil {
		questions = []domain.Question{}
	}
	c.JSON(http.StatusOK, gin.H{"quiz": questions})
}

func (a *API) handleListBatches(c *gin.Context) {
	c.JSON(http.StatusOK, a.store.ListBatches())
}

func (a *API) handleExportQuizPDF(c *gin.Context) {
	var payload struct {
		Title string            `json:"title"`
		Quiz  []domain.Question `json:"quiz" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		a.respondError(c, domain.ValidationErrorf("missing or invalid quiz"))
		return
	}

	if err := domain.ValidateQuestionSet(payload.Quiz); err != nil {
		a.respondError(c, domain.ValidationErrorf("%s", err.Error()))
		return
	}

	id := uuid.NewString()
	if err := a.pdf.GenerateQuizPDF(payload.Title, payload.Quiz, a.files.PDFPath(id)); err != nil {
		a.respondError(c, domain.UnexpectedError(err, "unable to generate quiz PDF"))
		return
	}

	url, expiresAt, err := a.share.Generate(id)
	if err != nil {
		a.respondError(c, domain.UnexpectedError(err, "unable to sign download link"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "url": url, "expiresAt": expiresAt.UTC()})
}

func (a *API) handleServePDF(c *gin.Context) {
	quizID := c.Param("id")
	expiresParam := c.Query("exp")
	signature := c.Query("sig")

	if expiresParam == "" || signature == "" {
		a.respondError(c, domain.ValidationErrorf("missing signature"))
		return
	}

	expires, err := strconv.ParseInt(expiresParam, 10, 64)
	if err != nil {
		a.respondError(c, domain.ValidationErrorf("invalid expiration"))
		return
	}

	if expires < time.Now().Unix() {
		c.JSON(http.StatusGone, gin.H{"message": "link expired"})
		return
	}

	path := c.Request.URL.Path
	if !a.share.Validate(path, expires, signature) {
		c.JSON(http.StatusForbidden, gin.H{"message": "invalid signature"})
		return
	}

	pdfPath := a.files.PDFPath(quizID)
	if _, err := os.Stat(pdfPath); err != nil {
		a.respondError(c, domain.NotFoundErrorf("quiz PDF not found"))
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.FileAttachment(pdfPath, filepath.Base(pdfPath))
}

func (a *API) respondError(c *gin.Context, err error) {
	status := statusForKind(domain.KindOf(err))

	message := err.Error()
	var derr *domain.Error
	if errors.As(err, &derr) {
		message = derr.Message
	}

	body := gin.H{"message": message}
	if !a.cfg.IsProduction() && err.Error() != message {
		body["detail"] = err.Error()
	}

	c.JSON(status, body)
}

func statusForKind(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
