package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkharlamov/corporate-agent/internal/core/domain"
	"github.com/mkharlamov/corporate-agent/internal/core/ports"
)

type SubmitUseCase struct {
	repo    ports.SubmissionRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewSubmitUseCase(
	repo ports.SubmissionRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *SubmitUseCase {
	return &SubmitUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

// Submit stores an upload batch, records it and queues the review job.
func (uc *SubmitUseCase) Submit(ctx context.Context, files []ports.UploadedFile) (*domain.Submission, error) {
	if len(files) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit", fmt.Errorf("no files in submission"))
	}

	now := time.Now().UTC()
	sub := &domain.Submission{
		ID:        uuid.NewString(),
		Status:    domain.SubmissionReceived,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.repo.CreateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}

	for _, file := range files {
		docID := uuid.NewString()
		storageKey := fmt.Sprintf("%s/%s_%s", sub.ID, docID, sanitizeFilename(file.Filename))

		if err := uc.storage.Save(ctx, storageKey, file.Body); err != nil {
			return nil, fmt.Errorf("save %s to object storage: %w", file.Filename, err)
		}

		doc := &domain.Document{
			ID:           docID,
			SubmissionID: sub.ID,
			Filename:     file.Filename,
			MimeType:     file.MimeType,
			StoragePath:  storageKey,
			Status:       domain.StatusUploaded,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := uc.repo.CreateDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("create document record: %w", err)
		}
	}

	if err := uc.queue.PublishSubmissionReceived(ctx, sub.ID); err != nil {
		return nil, fmt.Errorf("publish review job: %w", err)
	}
	return sub, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
