package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/postora/postora-server/internal/config"
	domain "github.com/postora/postora-server/internal/domain/upload"
	"github.com/postora/postora-server/internal/infrastructure/auth"
	"github.com/postora/postora-server/internal/interfaces/httpserver/requests"
	"github.com/postora/postora-server/internal/interfaces/httpserver/responses"
	"github.com/postora/postora-server/internal/utils/platformerrors"
)

const (
	singleFileField = "file"

	// multipartOverhead covers boundaries, part headers and plain form fields.
	multipartOverhead = 1 << 20
)

// UploadHandler exposes upload endpoints.
type UploadHandler struct {
	cfg           *config.Config
	service       *domain.Service
	validate      *validator.Validate
	singleLimit   int64
	multipleLimit int64
	log           zerolog.Logger
}

func NewUploadHandler(cfg *config.Config, service *domain.Service, log zerolog.Logger) *UploadHandler {
	single, multiple := RequestLimits(cfg, service.Policies())
	return &UploadHandler{
		cfg:           cfg,
		service:       service,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		singleLimit:   single,
		multipleLimit: multiple,
		log:           log.With().Str("component", "upload-handler").Logger(),
	}
}

// RequestLimits returns the body caps of single and multi-file uploads. A
// configured UPLOAD_MAX_REQUEST_BYTES wins; otherwise the cap is the largest
// policy size times the files a request may carry, plus multipart framing.
func RequestLimits(cfg *config.Config, policies map[string]config.CategoryPolicy) (single, multiple int64) {
	if cfg.MaxRequestBytes > 0 {
		return cfg.MaxRequestBytes, cfg.MaxRequestBytes
	}
	var largest int64
	for _, policy := range policies {
		largest = max(largest, policy.MaxBytes)
	}
	files := 0
	for _, count := range cfg.MultiFields {
		files += count
	}
	files = max(files, 1)
	return largest + multipartOverhead, largest*int64(files) + multipartOverhead
}

// UploadSingle godoc
// @Summary      Upload a file
// @Description  Stores one file from the multipart field "file". Images are downsized and re-encoded as JPEG.
// @Tags         uploads
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "File to upload"
// @Success      201   {object}  responses.UploadSingleResponse
// @Failure      400   {object}  responses.ErrorResponse
// @Failure      500   {object}  responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/uploads/single [post]
func (h *UploadHandler) UploadSingle(c *gin.Context) {
	form, ok := h.multipartForm(c, h.singleLimit)
	if !ok {
		return
	}
	defer h.removeForm(form)

	headers := form.File[singleFileField]
	switch {
	case len(headers) == 0:
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "no file uploaded in field \"file\"", "6f0b7c43-2a59-4c8e-9d6e-0c1f5a7b3e21")
		return
	case len(headers) > 1:
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "field \"file\" accepts a single file", "0d7e4a5b-93c1-4f26-8b0e-5a2d9c6f1e47")
		return
	}

	inputs, closeAll, err := openParts(singleFileField, headers)
	if err != nil {
		responses.HandleError(c, err, "failed to read upload")
		return
	}
	defer closeAll()

	result, err := h.service.UploadSingle(c.Request.Context(), inputs[0], auth.OwnerID(c))
	if err != nil {
		responses.HandleError(c, err, "upload failed")
		return
	}

	c.JSON(http.StatusCreated, responses.UploadSingleResponse{
		Message: "File uploaded successfully",
		File:    responses.BuildFileDescriptor(result),
	})
}

// UploadMultiple godoc
// @Summary      Upload several files
// @Description  Stores files from the "images", "videos" and "documents" fields. Either every file is stored or none is.
// @Tags         uploads
// @Accept       multipart/form-data
// @Produce      json
// @Param        images     formData  file  false  "Images (max 10)"
// @Param        videos     formData  file  false  "Videos (max 3)"
// @Param        documents  formData  file  false  "Documents (max 5)"
// @Success      201        {object}  responses.UploadMultipleResponse
// @Failure      400        {object}  responses.ErrorResponse
// @Failure      500        {object}  responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/uploads/multiple [post]
func (h *UploadHandler) UploadMultiple(c *gin.Context) {
	form, ok := h.multipartForm(c, h.multipleLimit)
	if !ok {
		return
	}
	defer h.removeForm(form)

	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var inputs []domain.FileInput
	var closers []func()
	defer func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}()
	for _, field := range fields {
		parts, closeAll, err := openParts(field, form.File[field])
		if err != nil {
			responses.HandleError(c, err, "failed to read upload")
			return
		}
		closers = append(closers, closeAll)
		inputs = append(inputs, parts...)
	}

	results, err := h.service.UploadMultiple(c.Request.Context(), inputs, auth.OwnerID(c))
	if err != nil {
		responses.HandleError(c, err, "upload failed")
		return
	}

	c.JSON(http.StatusCreated, responses.UploadMultipleResponse{
		Message: "Files uploaded successfully",
		Count:   len(results),
		Files:   responses.BuildFileDescriptors(results),
	})
}

// List godoc
// @Summary      List uploaded files
// @Tags         uploads
// @Produce      json
// @Param        limit     query     int     false  "Page size (max 100)"
// @Param        offset    query     int     false  "Offset"
// @Param        category  query     string  false  "image, video, audio or document"
// @Param        user_id   query     string  false  "Owner id"
// @Success      200       {object}  responses.FileListResponse
// @Failure      400       {object}  responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/uploads [get]
func (h *UploadHandler) List(c *gin.Context) {
	var query requests.ListUploadsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "limit and offset must be integers", "4b8d2f16-7e3a-4c59-a0d1-9f6e2b5c8a73")
		return
	}
	if err := h.validate.Struct(query); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid query: "+err.Error(), "e2c7a9d0-51f8-4b36-8e4a-7d0c3f9b1a65")
		return
	}
	var category domain.Category
	if query.Category != "" {
		var ok bool
		if category, ok = domain.ParseCategory(query.Category); !ok {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "unknown category "+strconv.Quote(query.Category), "91a3e6c8-0f4d-4d72-b5e9-3c8a1f6d2b04")
			return
		}
	}
	filter := domain.NormalizeFilter(query.ToDomain(category))

	files, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		responses.HandleError(c, err, "failed to list files")
		return
	}

	results := make([]*domain.Result, 0, len(files))
	for _, f := range files {
		results = append(results, h.service.Describe(f))
	}
	c.JSON(http.StatusOK, responses.FileListResponse{
		Data:   responses.BuildFileDescriptors(results),
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// Get godoc
// @Summary      Get an uploaded file record
// @Tags         uploads
// @Produce      json
// @Param        id   path      string  true  "File id"
// @Success      200  {object}  responses.FileDescriptor
// @Failure      404  {object}  responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/uploads/{id} [get]
func (h *UploadHandler) Get(c *gin.Context) {
	file, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "failed to get file")
		return
	}
	c.JSON(http.StatusOK, responses.BuildFileDescriptor(h.service.Describe(file)))
}

// Delete godoc
// @Summary      Delete an uploaded file
// @Description  Removes the record and, best effort, the stored file.
// @Tags         uploads
// @Produce      json
// @Param        id   path      string  true  "File id"
// @Success      200  {object}  responses.DeleteResponse
// @Failure      404  {object}  responses.ErrorResponse
// @Failure      500  {object}  responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/uploads/{id} [delete]
func (h *UploadHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		responses.HandleError(c, err, "failed to delete file")
		return
	}
	c.JSON(http.StatusOK, responses.DeleteResponse{ID: id, Deleted: true})
}

// Policies godoc
// @Summary      Active upload policies
// @Description  Per-category size limits, allowed types and image settings.
// @Tags         uploads
// @Produce      json
// @Success      200  {object}  responses.PoliciesResponse
// @Router       /v1/uploads/policies [get]
func (h *UploadHandler) Policies(c *gin.Context) {
	c.JSON(http.StatusOK, responses.PoliciesResponse{Policies: h.service.Policies()})
}

// PolicySchema godoc
// @Summary      Policy file JSON Schema
// @Description  JSON Schema accepted by the UPLOAD_POLICY_FILE document.
// @Tags         uploads
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /v1/uploads/policies/schema [get]
func (h *UploadHandler) PolicySchema(c *gin.Context) {
	c.JSON(http.StatusOK, config.PolicySchema())
}

// Serve streams a stored file from the public prefix.
func (h *UploadHandler) Serve(c *gin.Context) {
	path, err := h.service.Locate(c.Request.Context(), c.Param("category"), c.Param("name"))
	if err != nil {
		responses.HandleError(c, err, "file not found")
		return
	}
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
	c.File(path)
}

// multipartForm parses the body, reading at most limit bytes of it.
func (h *UploadHandler) multipartForm(c *gin.Context, limit int64) (*multipart.Form, bool) {
	if c.Request.ContentLength > limit {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "request body too large", "5c1e8b27-d94a-4f03-a6b2-8e7f0d3c9a51")
		return nil, false
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	form, err := c.MultipartForm()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.log.Warn().Int64("limit", limit).Msg("upload request body exceeds limit")
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "request body too large", "5c1e8b27-d94a-4f03-a6b2-8e7f0d3c9a51")
			return nil, false
		}
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "expected a multipart/form-data body", "a7d40f92-3b6e-4e18-9c25-1f8b6d0e4c39")
		return nil, false
	}
	return form, true
}

func (h *UploadHandler) removeForm(form *multipart.Form) {
	if err := form.RemoveAll(); err != nil {
		h.log.Warn().Err(err).Str("kind", string(domain.KindCleanupFailed)).Msg("failed to remove multipart spool files")
	}
}

// openParts opens every part of a field. The returned func closes them.
func openParts(field string, headers []*multipart.FileHeader) ([]domain.FileInput, func(), error) {
	inputs := make([]domain.FileInput, 0, len(headers))
	files := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, &domain.Error{
				Stage:  domain.StagePersist,
				Kind:   domain.KindPersistIOFailed,
				Field:  field,
				File:   fh.Filename,
				Reason: "failed to open multipart part",
				Err:    err,
			}
		}
		files = append(files, f)
		inputs = append(inputs, domain.FileInput{
			FieldName:    field,
			OriginalName: fh.Filename,
			ContentType:  fh.Header.Get("Content-Type"),
			Size:         fh.Size,
			Content:      f,
		})
	}
	return inputs, closeAll, nil
}
