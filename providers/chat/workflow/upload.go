package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/leofalp/chatmux/internal/utils"
	"github.com/leofalp/chatmux/providers/chat"
	"github.com/leofalp/chatmux/providers/observability"
)

// uploadConcurrency bounds simultaneous uploads for one send.
const uploadConcurrency = 4

// File types understood by the chat-messages endpoint.
const (
	FileTypeImage    = "image"
	FileTypeAudio    = "audio"
	FileTypeVideo    = "video"
	FileTypeDocument = "document"
	FileTypeText     = "text"
	FileTypeOther    = "other"
)

var documentExtensions = []string{".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx"}

// ClassifyFile maps an attachment to the backend file type from its MIME type,
// falling back to the file extension for office formats and plain text.
func ClassifyFile(file chat.File) string {
	contentType := strings.ToLower(file.ContentType)
	name := strings.ToLower(file.Name)

	switch {
	case strings.HasPrefix(contentType, "image/"):
		return FileTypeImage
	case strings.HasPrefix(contentType, "audio/"):
		return FileTypeAudio
	case strings.HasPrefix(contentType, "video/"):
		return FileTypeVideo
	case contentType == "application/pdf":
		return FileTypeDocument
	case strings.Contains(contentType, "word"),
		strings.Contains(contentType, "excel"),
		strings.Contains(contentType, "powerpoint"),
		strings.Contains(contentType, "document"),
		hasAnySuffix(name, documentExtensions):
		return FileTypeDocument
	case strings.Contains(contentType, "text"), strings.HasSuffix(name, ".txt"):
		return FileTypeText
	}
	return FileTypeOther
}

func hasAnySuffix(name string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// uploadFiles uploads every file concurrently. Each upload settles on its own:
// one failure neither cancels nor skips the others. References keep the input
// order of the files that succeeded.
func (p *WorkflowProvider) uploadFiles(ctx context.Context, endpoint chat.Endpoint, files []chat.File) ([]fileReference, []chat.UploadFailure) {
	if len(files) == 0 {
		return nil, nil
	}

	references := make([]*fileReference, len(files))
	failures := make([]error, len(files))

	var group errgroup.Group
	group.SetLimit(uploadConcurrency)
	for index, file := range files {
		group.Go(func() error {
			uploaded, err := p.uploadFile(ctx, endpoint, file)
			if err != nil {
				failures[index] = err
				return nil
			}
			references[index] = &fileReference{
				Type:           ClassifyFile(file),
				TransferMethod: "local_file",
				UploadFileID:   uploaded.ID,
			}
			return nil
		})
	}
	_ = group.Wait()

	var succeeded []fileReference
	var failed []chat.UploadFailure
	for index, file := range files {
		if failures[index] != nil {
			failed = append(failed, chat.UploadFailure{Filename: file.Name, Err: failures[index]})
			continue
		}
		succeeded = append(succeeded, *references[index])
	}

	if len(failed) > 0 {
		p.reportUploadFailures(ctx, failed, len(succeeded))
	}
	return succeeded, failed
}

func (p *WorkflowProvider) uploadFile(ctx context.Context, endpoint chat.Endpoint, file chat.File) (*uploadResponse, error) {
	if file.Open == nil {
		return nil, fmt.Errorf("file %q has no content", file.Name)
	}
	reader, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", file.Name, err)
	}
	defer utils.CloseWithLog(reader)

	requestURL := utils.JoinURL(endpoint.BaseURL, filesUploadEndpoint)
	_, uploaded, err := utils.DoMultipart[uploadResponse](ctx, p.client, requestURL, endpoint.APIKey,
		map[string]string{"user": p.user},
		utils.MultipartFile{Field: "file", Filename: file.Name, ContentType: file.ContentType, Reader: reader},
	)
	if err != nil {
		return nil, fmt.Errorf("upload %q: %w", file.Name, translateError(ctx, err))
	}
	if uploaded.ID == "" {
		return nil, fmt.Errorf("upload %q: response carried no file id", file.Name)
	}
	return uploaded, nil
}

func (p *WorkflowProvider) reportUploadFailures(ctx context.Context, failed []chat.UploadFailure, succeeded int) {
	if span := observability.SpanFromContext(ctx); span != nil {
		for _, failure := range failed {
			span.AddEvent(observability.EventUploadFailed,
				observability.String(observability.AttrUploadFilename, failure.Filename),
				observability.Error(failure.Err),
			)
		}
		span.SetAttributes(
			observability.Int(observability.AttrUploadSucceeded, succeeded),
			observability.Int(observability.AttrUploadFailed, len(failed)),
		)
	}

	observer := observability.ObserverFromContext(ctx)
	for _, failure := range failed {
		if observer != nil {
			observer.Warn(ctx, "attachment upload failed, sending without it",
				observability.String(observability.AttrUploadFilename, failure.Filename),
				observability.Error(failure.Err),
			)
			if counter := observer.Counter(observability.MetricUploadFailures); counter != nil {
				counter.Add(ctx, 1)
			}
			continue
		}
		slog.Warn("attachment upload failed, sending without it", "filename", failure.Filename, "error", failure.Err.Error())
	}
}
