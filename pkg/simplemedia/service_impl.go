package simplemedia

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Operation names used for logging and metrics.
const (
	OpRequestUploadURL = "request_upload_url"
	OpProcessUpload    = "process_upload"
	OpListFiles        = "list_files"
	OpDownloadFile     = "download_file"
	OpMarkFailed       = "mark_failed"
)

// Default page sizes for ListFiles.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// supportedThumbnailExtensions are the notification extensions that enter
// the thumbnail pipeline.
var supportedThumbnailExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
}

// service implements the Service interface
type service struct {
	repository       Repository
	storage          Storage
	thumbnailer      Thumbnailer
	logger           *slog.Logger
	metrics          MetricsRecorder
	now              func() time.Time
	newID            func() uuid.UUID
	defaultLimit     int
	maxLimit         int
	thumbnailOptions ThumbnailOptions
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithStorage sets the object storage capability
func WithStorage(storage Storage) Option {
	return func(s *service) {
		s.storage = storage
	}
}

// WithThumbnailer sets the thumbnail rendering capability
func WithThumbnailer(thumbnailer Thumbnailer) Option {
	return func(s *service) {
		s.thumbnailer = thumbnailer
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(metrics MetricsRecorder) Option {
	return func(s *service) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithClock overrides time.Now for created/updated timestamps
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides uuid.New for media ids
func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(s *service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithListLimits sets the default and maximum ListFiles page size
func WithListLimits(defaultLimit, maxLimit int) Option {
	return func(s *service) {
		if defaultLimit > 0 {
			s.defaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			s.maxLimit = maxLimit
		}
	}
}

// WithThumbnailOptions sets the rendering options passed to the thumbnailer
func WithThumbnailOptions(opts ThumbnailOptions) Option {
	return func(s *service) {
		s.thumbnailOptions = opts.WithDefaults()
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		logger:           slog.Default(),
		metrics:          NewNoopMetrics(),
		now:              time.Now,
		newID:            uuid.New,
		defaultLimit:     DefaultListLimit,
		maxLimit:         MaxListLimit,
		thumbnailOptions: DefaultThumbnailOptions,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if s.defaultLimit > s.maxLimit {
		s.defaultLimit = s.maxLimit
	}

	return s, nil
}

func (s *service) RequestUploadURL(ctx context.Context, req RequestUploadURLRequest) (_ *RequestUploadURLResult, err error) {
	defer s.observe(OpRequestUploadURL, time.Now(), &err)

	if req.OwnerID == uuid.Nil {
		return nil, newError(KindBadRequest, OpRequestUploadURL, "owner id is required", nil)
	}

	fileName, err := NewFileName(req.FileName)
	if err != nil {
		s.logger.DebugContext(ctx, "Rejected upload request", "op", OpRequestUploadURL, "owner_id", req.OwnerID, "err", err)
		return nil, asUseCaseError(OpRequestUploadURL, err)
	}
	fileSize, err := NewFileSize(req.FileSize)
	if err != nil {
		s.logger.DebugContext(ctx, "Rejected upload request", "op", OpRequestUploadURL, "owner_id", req.OwnerID, "err", err)
		return nil, asUseCaseError(OpRequestUploadURL, err)
	}
	contentType, err := ParseContentType(req.ContentType)
	if err != nil {
		s.logger.DebugContext(ctx, "Rejected upload request", "op", OpRequestUploadURL, "owner_id", req.OwnerID, "err", err)
		return nil, asUseCaseError(OpRequestUploadURL, err)
	}

	if !contentType.MatchesExtension(fileName.Extension()) {
		s.logger.DebugContext(ctx, "Rejected upload request", "op", OpRequestUploadURL, "owner_id", req.OwnerID,
			"file_name", fileName.String(), "content_type", contentType.String())
		return nil, newError(KindInvalidContentType, OpRequestUploadURL, "file extension does not match content type", nil)
	}

	mediaID := s.newID()
	// The key keeps the extension the client named the file with.
	storageKey, err := NewStorageKey(req.OwnerID.String(), mediaID.String(), fileName.Extension())
	if err != nil {
		return nil, asUseCaseError(OpRequestUploadURL, err)
	}

	media, err := NewMedia(NewMediaParams{
		ID:          mediaID,
		OwnerID:     req.OwnerID,
		FileName:    fileName,
		FileSize:    fileSize,
		ContentType: contentType,
		StorageKey:  storageKey,
		Now:         s.now(),
	})
	if err != nil {
		return nil, asUseCaseError(OpRequestUploadURL, err)
	}
	media.clock = s.now

	// No record is persisted unless a URL was issued.
	ref, err := s.storage.IssueUploadReference(ctx, storageKey, contentType)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to issue upload URL",
			"op", OpRequestUploadURL, "owner_id", req.OwnerID, "storage_key", storageKey.String(), "err", err)
		return nil, newError(KindInternal, OpRequestUploadURL, "failed to generate upload URL", err)
	}

	if err := s.repository.Save(ctx, media); err != nil {
		s.logger.ErrorContext(ctx, "Upload URL issued but media record not persisted",
			"op", OpRequestUploadURL, "owner_id", req.OwnerID, "media_id", mediaID, "err", err)
		return nil, newError(KindInternal, OpRequestUploadURL, "failed to persist media", err)
	}

	s.logger.InfoContext(ctx, "Issued upload URL",
		"op", OpRequestUploadURL, "owner_id", req.OwnerID, "media_id", mediaID,
		"content_type", contentType.String(), "file_size", fileSize.Bytes())

	return &RequestUploadURLResult{
		UploadURL: ref.URL,
		FileID:    mediaID,
		ExpiresIn: ref.ExpiresInSeconds,
	}, nil
}

func (s *service) ProcessUpload(ctx context.Context, req ProcessUploadRequest) (err error) {
	defer s.observe(OpProcessUpload, time.Now(), &err)

	extension := strings.ToLower(strings.TrimPrefix(req.FileExtension, "."))
	if !supportedThumbnailExtensions[extension] {
		s.logger.InfoContext(ctx, "Skipping upload with unsupported extension",
			"op", OpProcessUpload, "storage_key", req.StorageKey, "extension", req.FileExtension)
		return newError(KindBadRequest, OpProcessUpload, "unsupported file extension", nil)
	}
	if req.StorageKey == "" {
		return newError(KindBadRequest, OpProcessUpload, "storage key is required", nil)
	}

	media, err := s.repository.FindByStorageKey(ctx, StorageKeyFromString(req.StorageKey))
	if err != nil {
		return s.lookupError(ctx, OpProcessUpload, err, "storage_key", req.StorageKey)
	}
	media.clock = s.now

	if !media.ContentType().IsImage() {
		return newError(KindBadRequest, OpProcessUpload, "media is not an image", nil)
	}

	thumbnailKey := ThumbnailKeyFor(media.OwnerID(), media.ID())

	// Duplicate deliveries of the completion notification converge here.
	if media.Status() == StatusReady {
		if existing, ok := media.ThumbnailKey(); ok && existing == thumbnailKey {
			s.logger.InfoContext(ctx, "Upload already processed",
				"op", OpProcessUpload, "media_id", media.ID(), "storage_key", req.StorageKey)
			return nil
		}
	}
	if media.Status().IsTerminal() {
		return asUseCaseError(OpProcessUpload, validateTransition(media.Status(), StatusReady))
	}

	if s.thumbnailer == nil {
		return newError(KindInternal, OpProcessUpload, "thumbnailer is not configured", nil)
	}

	original, err := s.storage.GetObject(ctx, req.StorageKey)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to fetch uploaded object",
			"op", OpProcessUpload, "media_id", media.ID(), "storage_key", req.StorageKey, "err", err)
		return newError(KindInternal, OpProcessUpload, "failed to retrieve uploaded object", err)
	}

	thumbnail, err := s.thumbnailer.GenerateThumbnail(ctx, original, s.thumbnailOptions)
	if err != nil {
		if errors.Is(err, ErrEmptyImage) {
			s.logger.InfoContext(ctx, "Uploaded object is empty",
				"op", OpProcessUpload, "media_id", media.ID(), "storage_key", req.StorageKey)
			return newError(KindBadRequest, OpProcessUpload, "uploaded file is empty", err)
		}
		if errors.Is(err, ErrImageTooLarge) {
			s.logger.InfoContext(ctx, "Uploaded image is too large",
				"op", OpProcessUpload, "media_id", media.ID(), "storage_key", req.StorageKey, "err", err)
			return newError(KindBadRequest, OpProcessUpload, "uploaded image is too large", err)
		}
		s.logger.ErrorContext(ctx, "Failed to generate thumbnail",
			"op", OpProcessUpload, "media_id", media.ID(), "storage_key", req.StorageKey, "err", err)
		return newError(KindInternal, OpProcessUpload, "failed to generate thumbnail", err)
	}

	if err := s.storage.PutObject(ctx, thumbnailKey, thumbnail, ThumbnailContentType.String()); err != nil {
		s.logger.ErrorContext(ctx, "Failed to store thumbnail",
			"op", OpProcessUpload, "media_id", media.ID(), "thumbnail_key", thumbnailKey, "err", err)
		return newError(KindInternal, OpProcessUpload, "failed to store thumbnail", err)
	}

	if media.Status() == StatusUploading {
		if err := media.StartProcessing(); err != nil {
			return asUseCaseError(OpProcessUpload, err)
		}
	}
	if err := media.AttachThumbnail(thumbnailKey); err != nil {
		return asUseCaseError(OpProcessUpload, err)
	}
	if err := media.MarkAsReady(); err != nil {
		return asUseCaseError(OpProcessUpload, err)
	}

	if err := s.repository.Save(ctx, media); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist processed media",
			"op", OpProcessUpload, "media_id", media.ID(), "err", err)
		return newError(KindInternal, OpProcessUpload, "failed to persist media", err)
	}

	s.metrics.ThumbnailGenerated(len(thumbnail))
	s.logger.InfoContext(ctx, "Processed upload",
		"op", OpProcessUpload, "media_id", media.ID(), "owner_id", media.OwnerID(), "thumbnail_key", thumbnailKey)

	return nil
}

func (s *service) ListFiles(ctx context.Context, req ListFilesRequest) (_ *ListFilesResult, err error) {
	defer s.observe(OpListFiles, time.Now(), &err)

	limit := req.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	params := FindByOwnerParams{OwnerID: req.OwnerID, Limit: limit}
	if req.LastMediaID != nil && req.LastCreatedAt != nil {
		params.Cursor = &Cursor{
			OwnerID:   req.OwnerID,
			CreatedAt: normalizeTime(*req.LastCreatedAt),
			MediaID:   *req.LastMediaID,
		}
	}

	page, err := s.repository.FindByOwner(ctx, params)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list files", "op", OpListFiles, "owner_id", req.OwnerID, "err", err)
		return nil, newError(KindInternal, OpListFiles, "failed to list files", err)
	}

	result := &ListFilesResult{Files: page.Items}
	if result.Files == nil {
		result.Files = []*Media{}
	}
	if page.NextCursor != nil {
		result.NextCursor = &PageCursor{
			MediaID:   page.NextCursor.MediaID,
			CreatedAt: page.NextCursor.CreatedAt,
		}
	}
	return result, nil
}

func (s *service) DownloadFile(ctx context.Context, req DownloadFileRequest) (_ *DownloadFileResult, err error) {
	defer s.observe(OpDownloadFile, time.Now(), &err)

	createdAt := req.CreatedAt
	if !createdAt.IsZero() {
		createdAt = normalizeTime(createdAt)
	}

	media, err := s.repository.FindByIDAndOwner(ctx, req.FileID, req.OwnerID, createdAt)
	if err != nil {
		return nil, s.lookupError(ctx, OpDownloadFile, err, "media_id", req.FileID)
	}

	ref, err := s.storage.IssueDownloadReference(ctx, media.StorageKey(), media.FileName().String())
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to issue download URL",
			"op", OpDownloadFile, "media_id", media.ID(), "storage_key", media.StorageKey().String(), "err", err)
		return nil, newError(KindInternal, OpDownloadFile, "failed to generate download URL", err)
	}

	return &DownloadFileResult{
		DownloadURL: ref.URL,
		ExpiresIn:   ref.ExpiresInSeconds,
		FileName:    media.FileName().String(),
	}, nil
}

func (s *service) MarkFailed(ctx context.Context, storageKey string) (err error) {
	defer s.observe(OpMarkFailed, time.Now(), &err)

	media, err := s.repository.FindByStorageKey(ctx, StorageKeyFromString(storageKey))
	if err != nil {
		return s.lookupError(ctx, OpMarkFailed, err, "storage_key", storageKey)
	}
	media.clock = s.now

	if err := media.MarkAsFailed(); err != nil {
		return asUseCaseError(OpMarkFailed, err)
	}
	if err := s.repository.Save(ctx, media); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist failed media", "op", OpMarkFailed, "media_id", media.ID(), "err", err)
		return newError(KindInternal, OpMarkFailed, "failed to persist media", err)
	}

	s.logger.WarnContext(ctx, "Marked media as failed", "op", OpMarkFailed, "media_id", media.ID(), "storage_key", storageKey)
	return nil
}

// lookupError maps a repository lookup failure into NotFound or Internal.
func (s *service) lookupError(ctx context.Context, op string, err error, attrs ...any) error {
	if errors.Is(err, ErrNotFound) {
		return newError(KindNotFound, op, "media not found", nil)
	}
	s.logger.ErrorContext(ctx, "Media lookup failed", append([]any{"op", op, "err", err}, attrs...)...)
	return newError(KindInternal, op, "failed to load media", err)
}

func (s *service) observe(op string, start time.Time, err *error) {
	result := "ok"
	if *err != nil {
		result = string(KindOf(*err))
	}
	s.metrics.ObserveOperation(op, result, time.Since(start))
}
