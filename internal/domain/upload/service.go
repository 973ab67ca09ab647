package upload

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/postora/postora-server/internal/config"
	"github.com/postora/postora-server/internal/infrastructure/metrics"
	"github.com/postora/postora-server/internal/infrastructure/telemetry"
	"github.com/postora/postora-server/internal/utils/platformerrors"
	"github.com/postora/postora-server/utils/fileid"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Service orchestrates uploads: classify, validate, persist, optimize and record,
// rolling back every side effect of a file that fails.
type Service struct {
	cfg       *config.Config
	policies  *config.PolicyTable
	repo      Repository
	storage   Storage
	optimizer Optimizer
	sanitizer *telemetry.Sanitizer
	log       zerolog.Logger
	tracer    trace.Tracer
}

func NewService(cfg *config.Config, policies *config.PolicyTable, repo Repository, storage Storage, optimizer Optimizer, log zerolog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		policies:  policies,
		repo:      repo,
		storage:   storage,
		optimizer: optimizer,
		sanitizer: telemetry.NewSanitizer(telemetry.PIILevel(cfg.LogPIILevel), cfg.LogPIISalt),
		log:       log.With().Str("component", "upload-service").Logger(),
		tracer:    otel.Tracer("github.com/postora/postora-server/internal/domain/upload"),
	}
}

// Policies returns a copy of the active policy table keyed by category.
func (s *Service) Policies() map[string]config.CategoryPolicy {
	return s.policies.Snapshot()
}

// UploadSingle runs one file through the pipeline. On failure nothing the file
// produced remains on disk or in the database.
func (s *Service) UploadSingle(ctx context.Context, in FileInput, userID *string) (*Result, error) {
	undo := &rollback{}
	file, err := s.process(ctx, in, userID, undo)
	if err != nil {
		undo.run(ctx, s.log)
		return nil, err
	}
	metrics.RecordUpload(string(file.Category), file.FileSize)
	return s.Describe(file), nil
}

// UploadMultiple runs every file of a request concurrently. The request is
// all-or-nothing: if any file fails, every file is rolled back and a BatchError
// lists the failures.
func (s *Service) UploadMultiple(ctx context.Context, files []FileInput, userID *string) ([]*Result, error) {
	if err := s.checkFields(files); err != nil {
		return nil, err
	}

	stored := make([]*StoredFile, len(files))
	failures := make([]*Error, len(files))
	undos := make([]*rollback, len(files))
	for i := range undos {
		undos[i] = &rollback{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.MaxConcurrency, 1))
	for i := range files {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			file, err := s.process(gctx, files[i], userID, undos[i])
			if err != nil {
				failures[i] = asUploadError(err, files[i])
				return err
			}
			stored[i] = file
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		rolledBack := 0
		for _, undo := range undos {
			if undo.len() > 0 {
				rolledBack++
			}
			undo.run(ctx, s.log)
		}
		for _, file := range stored {
			if file != nil {
				metrics.RecordUploadRolledBack(string(file.Category))
			}
		}
		batch := collectFailures(failures)
		s.log.Warn().
			Int("files", len(files)).
			Int("failed", len(batch.Failures)).
			Int("rolled_back", rolledBack).
			Msg("multi-file upload rolled back")
		return nil, batch
	}

	results := make([]*Result, 0, len(stored))
	for _, file := range stored {
		metrics.RecordUpload(string(file.Category), file.FileSize)
		results = append(results, s.Describe(file))
	}
	return results, nil
}

// Get returns a stored record by id.
func (s *Service) Get(ctx context.Context, id string) (*StoredFile, error) {
	if !fileid.IsValid(id) {
		return nil, notFound(ctx, id)
	}
	return s.repo.GetByID(ctx, id)
}

// NormalizeFilter applies the default and maximum page size.
func NormalizeFilter(filter ListFilter) ListFilter {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	filter.Limit = min(filter.Limit, maxListLimit)
	filter.Offset = max(filter.Offset, 0)
	return filter
}

// List returns records matching filter, newest first, and the total match count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*StoredFile, int64, error) {
	return s.repo.List(ctx, NormalizeFilter(filter))
}

// Delete removes a record and its file. A missing record is NotFound and changes
// nothing; a file that cannot be removed is logged and the record is still deleted.
func (s *Service) Delete(ctx context.Context, id string) error {
	if !fileid.IsValid(id) {
		return notFound(ctx, id)
	}
	file, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.storage.Remove(file.FilePath); err != nil {
		metrics.RecordCleanupFailure("delete")
		s.log.Warn().
			Err(err).
			Str("file_id", file.ID).
			Str("path", file.FilePath).
			Str("kind", string(KindCleanupFailed)).
			Msg("failed to remove stored file")
	}
	return s.repo.Delete(ctx, id)
}

// Locate returns the on-disk path of a publicly served file.
func (s *Service) Locate(ctx context.Context, category, name string) (string, error) {
	c, ok := ParseCategory(category)
	if !ok || !isPlainName(name) {
		return "", notFound(ctx, name)
	}
	p := s.storage.Locate(string(c), name)
	if _, err := s.storage.Size(p); err != nil {
		return "", notFound(ctx, name)
	}
	return p, nil
}

// Describe builds the caller-facing descriptor of a stored file.
func (s *Service) Describe(file *StoredFile) *Result {
	return &Result{
		File:          file,
		URL:           s.PublicURL(file),
		FormattedSize: humanize.IBytes(uint64(max(file.FileSize, 0))),
	}
}

// PublicURL is the path the file is served under.
func (s *Service) PublicURL(file *StoredFile) string {
	return path.Join(s.cfg.PublicPrefix, string(file.Category), file.FileName)
}

func (s *Service) process(ctx context.Context, in FileInput, userID *string, undo *rollback) (file *StoredFile, err error) {
	contentType := NormalizeContentType(in.ContentType)
	category := Classify(contentType)

	ctx, span := s.tracer.Start(ctx, "upload.process", trace.WithAttributes(
		attribute.String("upload.field", in.FieldName),
		attribute.String("upload.category", string(category)),
		attribute.String("upload.content_type", contentType),
		attribute.Int64("upload.declared_size", in.Size),
	))
	log := s.log.With().
		Str("file", s.sanitizer.FileName(in.OriginalName)).
		Str("owner", s.sanitizer.UserID(userID)).
		Str("category", string(category)).
		Logger()

	defer func() {
		if err != nil {
			uerr := asUploadError(err, in)
			metrics.RecordUploadFailure(string(category), string(uerr.Stage))
			span.SetStatus(codes.Error, uerr.Error())
			span.SetAttributes(attribute.String("upload.failed_stage", string(uerr.Stage)))
			if uerr.Kind != KindAborted {
				log.Warn().
					Str("stage", string(uerr.Stage)).
					Str("kind", string(uerr.Kind)).
					Msg(uerr.Reason)
			}
		} else {
			span.SetAttributes(attribute.String("upload.file_id", file.ID))
		}
		span.End()
	}()

	// Classified -> Validated
	policy, verr := Validate(s.policies, category, contentType, in.Size)
	if verr != nil {
		verr.Field, verr.File = in.FieldName, in.OriginalName
		return nil, verr
	}
	span.AddEvent("validated")

	// Validated -> Persisted
	if err := ctx.Err(); err != nil {
		return nil, newError(StagePersist, KindAborted, in, "upload aborted", err)
	}
	dir, err := s.storage.ResolveDirectory(string(category))
	if err != nil {
		return nil, newError(StagePersist, KindDirectoryCreateFailed, in, "failed to create upload directory", err)
	}

	staged, err := s.storage.Stage(ctx, in.Content, policy.MaxBytes)
	if err != nil {
		switch {
		case errors.Is(err, ErrSizeLimitExceeded):
			return nil, newError(StageValidation, KindTooLarge, in,
				fmt.Sprintf("file exceeds the %s limit", humanize.IBytes(uint64(policy.MaxBytes))), nil)
		case ctx.Err() != nil:
			return nil, newError(StagePersist, KindAborted, in, "upload aborted", ctx.Err())
		default:
			return nil, newError(StagePersist, KindPersistIOFailed, in, "failed to write upload", err)
		}
	}
	undo.push("remove-staged", func(context.Context) error { return s.storage.Remove(staged.Path) })

	if s.cfg.VerifyContent {
		if err := s.verifyContent(staged.Path, category, in); err != nil {
			return nil, err
		}
	}

	name := GenerateName(in.OriginalName)
	finalPath, err := s.storage.Commit(staged, dir, name)
	if err != nil {
		return nil, newError(StagePersist, KindPersistIOFailed, in, "failed to store upload", err)
	}
	undo.push("remove-file", func(context.Context) error { return s.storage.Remove(finalPath) })
	span.AddEvent("persisted")

	file = &StoredFile{
		ID:           fileid.New(),
		OriginalName: in.OriginalName,
		FileName:     name,
		FilePath:     finalPath,
		FileSize:     staged.Size,
		MimeType:     contentType,
		Category:     category,
		UserID:       userID,
	}

	// Persisted -> Optimized
	if category == CategoryImage && policy.Compress && s.optimizer.Supports(contentType) {
		if err := s.optimize(ctx, file, dir, policy, in, undo, log); err != nil {
			return nil, err
		}
		span.AddEvent("optimized")
	}

	// -> Recorded
	if err := ctx.Err(); err != nil {
		return nil, newError(StageRecord, KindAborted, in, "upload aborted", err)
	}
	// A cancelled insert may still commit, so the undo is registered first.
	id := file.ID
	undo.push("delete-record", func(ctx context.Context) error {
		err := s.repo.Delete(ctx, id)
		if platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
			return nil
		}
		return err
	})
	if err := s.repo.Create(ctx, file); err != nil {
		return nil, newError(StageRecord, KindRecordWriteFailed, in, "failed to record upload", err)
	}

	log.Info().
		Str("file_id", file.ID).
		Str("file_name", file.FileName).
		Int64("bytes", file.FileSize).
		Msg("file uploaded")
	return file, nil
}

// optimize writes a re-encoded copy beside the original, then swaps the record
// over to it and removes the original.
func (s *Service) optimize(ctx context.Context, file *StoredFile, dir string, policy config.CategoryPolicy, in FileInput, undo *rollback, log zerolog.Logger) error {
	name := GenerateName(s.optimizer.Extension())
	dst := filepath.Join(dir, name)
	undo.push("remove-optimized", func(context.Context) error { return s.storage.Remove(dst) })

	start := time.Now()
	err := s.optimizer.Optimize(ctx, file.FilePath, dst, OptimizeOptions{
		Quality:   policy.Quality,
		MaxWidth:  policy.MaxWidth,
		MaxHeight: policy.MaxHeight,
	})
	if err != nil {
		metrics.RecordOptimize("failed", time.Since(start).Seconds(), 0)
		if ctx.Err() != nil {
			return newError(StageOptimize, KindAborted, in, "upload aborted", ctx.Err())
		}
		return newError(StageOptimize, KindOptimizeFailed, in, "failed to optimize image", err)
	}
	size, err := s.storage.Size(dst)
	if err != nil {
		metrics.RecordOptimize("failed", time.Since(start).Seconds(), 0)
		return newError(StageOptimize, KindOptimizeFailed, in, "optimized image is missing", err)
	}
	metrics.RecordOptimize("ok", time.Since(start).Seconds(), file.FileSize-size)

	if err := s.storage.Remove(file.FilePath); err != nil {
		metrics.RecordCleanupFailure("optimize")
		log.Warn().
			Err(err).
			Str("path", file.FilePath).
			Str("kind", string(KindCleanupFailed)).
			Msg("failed to remove original after optimization")
	}

	log.Debug().
		Int64("original_bytes", file.FileSize).
		Int64("optimized_bytes", size).
		Msg("image optimized")
	file.FileName = name
	file.FilePath = dst
	file.FileSize = size
	return nil
}

// verifyContent compares the sniffed type of staged bytes against the declared
// category. Office documents sniff as generic containers and are not compared.
func (s *Service) verifyContent(stagedPath string, category Category, in FileInput) error {
	if category == CategoryDocument {
		return nil
	}
	detected, err := mimetype.DetectFile(stagedPath)
	if err != nil {
		return newError(StagePersist, KindPersistIOFailed, in, "failed to read staged upload", err)
	}
	if Classify(detected.String()) != category {
		return newError(StageValidation, KindDisallowedType, in,
			fmt.Sprintf("content is %s but was declared as %s", NormalizeContentType(detected.String()), NormalizeContentType(in.ContentType)), nil)
	}
	return nil
}

func (s *Service) checkFields(files []FileInput) error {
	if len(files) == 0 {
		return &Error{Stage: StageValidation, Kind: KindNoFiles, Reason: "no files uploaded"}
	}
	counts := make(map[string]int)
	for _, f := range files {
		limit, ok := s.cfg.MultiFields[f.FieldName]
		if !ok {
			return &Error{
				Stage:  StageValidation,
				Kind:   KindUnexpectedField,
				Field:  f.FieldName,
				File:   f.OriginalName,
				Reason: fmt.Sprintf("unexpected field %q, expected one of %s", f.FieldName, strings.Join(s.fieldNames(), ", ")),
			}
		}
		counts[f.FieldName]++
		if counts[f.FieldName] > limit {
			return &Error{
				Stage:  StageValidation,
				Kind:   KindTooManyFiles,
				Field:  f.FieldName,
				Reason: fmt.Sprintf("field %q accepts at most %d files", f.FieldName, limit),
			}
		}
	}
	return nil
}

func (s *Service) fieldNames() []string {
	names := make([]string, 0, len(s.cfg.MultiFields))
	for name := range s.cfg.MultiFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// collectFailures keeps the genuine failures; files that only stopped because a
// sibling failed are reported when nothing else is.
func collectFailures(failures []*Error) *BatchError {
	batch := &BatchError{}
	var aborted []*Error
	for _, f := range failures {
		switch {
		case f == nil:
		case f.Kind == KindAborted:
			aborted = append(aborted, f)
		default:
			batch.Failures = append(batch.Failures, f)
		}
	}
	if len(batch.Failures) == 0 {
		batch.Failures = aborted
	}
	return batch
}

func asUploadError(err error, in FileInput) *Error {
	var uerr *Error
	if errors.As(err, &uerr) {
		return uerr
	}
	return newError(StagePersist, KindPersistIOFailed, in, "upload failed", err)
}

func isPlainName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

func notFound(ctx context.Context, id string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
		fmt.Sprintf("file %s not found", id), nil, "ba1cae4e-5616-4c62-8397-058e9d14b9fb")
}
