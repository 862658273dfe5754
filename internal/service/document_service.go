package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/mindcare-api/internal/observability"
)

var (
	// ErrDocumentMissing indicates a required credential document was not attached.
	ErrDocumentMissing = fmt.Errorf("%w: document is required", ErrValidation)
	// ErrDocumentTooLarge indicates the payload exceeded the configured limit.
	ErrDocumentTooLarge = fmt.Errorf("%w: document exceeds maximum allowed size", ErrValidation)
	// ErrDocumentTypeNotAllowed indicates the sniffed MIME type is not accepted.
	ErrDocumentTypeNotAllowed = fmt.Errorf("%w: document type not allowed", ErrValidation)
)

// FileStorage abstracts upload destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// DocumentExtractor pulls text out of an uploaded credential document.
type DocumentExtractor interface {
	Extract(ctx context.Context, mimeType string, content []byte) (string, error)
}

// NoopExtractor extracts nothing.
type NoopExtractor struct{}

func (NoopExtractor) Extract(context.Context, string, []byte) (string, error) {
	return "", nil
}

// StoredDocument describes a validated and uploaded credential document.
type StoredDocument struct {
	URL       string
	FileName  string
	MimeType  string
	SizeBytes int64
	Checksum  string
	Text      string
}

// DocumentService validates, stores and extracts credential documents.
type DocumentService interface {
	Store(ctx context.Context, kind string, file *multipart.FileHeader) (StoredDocument, error)
}

type documentService struct {
	storage   FileStorage
	extractor DocumentExtractor
	logger    zerolog.Logger
	maxSize   int64
	tracer    trace.Tracer
}

// NewDocumentService constructs a document service. A nil extractor extracts nothing.
func NewDocumentService(storage FileStorage, extractor DocumentExtractor, maxSizeMB int, logger zerolog.Logger) DocumentService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if extractor == nil {
		extractor = NoopExtractor{}
	}
	return &documentService{
		storage:   storage,
		extractor: extractor,
		logger:    logger.With().Str("component", "document_service").Logger(),
		maxSize:   int64(maxSizeMB) * 1024 * 1024,
		tracer:    otel.Tracer("github.com/noah-isme/mindcare-api/internal/service/document"),
	}
}

func (s *documentService) Store(ctx context.Context, kind string, file *multipart.FileHeader) (StoredDocument, error) {
	ctx, span := s.tracer.Start(ctx, "document.store", trace.WithAttributes(attribute.String("document.kind", kind)))
	defer span.End()

	if file == nil {
		observability.DocumentUploads().WithLabelValues("missing").Inc()
		span.SetStatus(codes.Error, "missing")
		return StoredDocument{}, fmt.Errorf("%w: %s", ErrDocumentMissing, kind)
	}
	if file.Size > s.maxSize {
		observability.DocumentUploads().WithLabelValues("too_large").Inc()
		span.SetStatus(codes.Error, "payload too large")
		return StoredDocument{}, ErrDocumentTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		return StoredDocument{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		return StoredDocument{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		observability.DocumentUploads().WithLabelValues("too_large").Inc()
		span.SetStatus(codes.Error, "payload too large")
		return StoredDocument{}, ErrDocumentTooLarge
	}

	detected := mimetype.Detect(buf.Bytes())
	mimeType := strings.ToLower(detected.String())
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	span.SetAttributes(attribute.String("document.detected_mime", mimeType))
	if !documentTypeAllowed(mimeType) {
		observability.DocumentUploads().WithLabelValues("type").Inc()
		span.SetStatus(codes.Error, "type not allowed")
		return StoredDocument{}, ErrDocumentTypeNotAllowed
	}

	checksum := sha256.Sum256(buf.Bytes())
	name := documentFileName(kind, file.Filename, detected.Extension())

	url, err := s.storage.Upload(ctx, name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		observability.DocumentUploads().WithLabelValues("storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return StoredDocument{}, fmt.Errorf("%w: %v", ErrExternalService, err)
	}

	text, err := s.extractor.Extract(ctx, mimeType, buf.Bytes())
	if err != nil {
		s.logger.Warn().Err(err).Str("kind", kind).Msg("document text extraction failed")
		text = ""
	}

	observability.DocumentUploads().WithLabelValues("stored").Inc()
	span.SetStatus(codes.Ok, "stored")
	return StoredDocument{
		URL:       url,
		FileName:  name,
		MimeType:  mimeType,
		SizeBytes: int64(buf.Len()),
		Checksum:  hex.EncodeToString(checksum[:]),
		Text:      strings.TrimSpace(text),
	}, nil
}

func documentTypeAllowed(mimeType string) bool {
	switch mimeType {
	case "application/pdf", "image/png", "image/jpeg", "image/webp":
		return true
	default:
		return false
	}
}

func documentFileName(kind, original, detectedExt string) string {
	base := strings.TrimSuffix(original, filepath.Ext(original))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("document-%d", time.Now().Unix())
	}
	if detectedExt == "" {
		detectedExt = ".bin"
	}
	return kind + "-" + base + detectedExt
}
