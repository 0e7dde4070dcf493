package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"srp-quiz-service/internal/domain"
)

// NewClient builds a storage client. With an emulator host the client talks to
// the emulator without credentials.
func NewClient(ctx context.Context, emulatorHost string) (*storage.Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(emulatorHost), "/")
	if endpoint == "" {
		return storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	}
	_ = os.Setenv("STORAGE_EMULATOR_HOST", endpoint)
	return storage.NewClient(ctx, option.WithoutAuthentication())
}

// ResultStore writes result documents as JSON objects named by storage key.
// Writes carry a DoesNotExist precondition, so the bucket enforces write-once.
type ResultStore struct {
	client *storage.Client
	bucket string
	clock  func() time.Time
}

func NewResultStore(client *storage.Client, bucket string) *ResultStore {
	return &ResultStore{client: client, bucket: bucket, clock: time.Now}
}

func (s *ResultStore) Submit(ctx context.Context, result domain.SessionResult) (domain.SubmitResult, error) {
	now := s.clock()
	key := result.StorageKey(now)
	data, err := result.Encode(now)
	if err != nil {
		return domain.SubmitResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	w := s.object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		if isPreconditionFailed(err) {
			return domain.Duplicate(key), nil
		}
		return domain.SubmitResult{}, fmt.Errorf("failed to write result to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			return domain.Duplicate(key), nil
		}
		return domain.SubmitResult{}, fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return domain.SubmitResult{Accepted: true, Key: key}, nil
}

func (s *ResultStore) Status(ctx context.Context, studentNumber string, week int) (domain.SubmissionStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	r, err := s.object(domain.FirstAttemptKey(week, studentNumber)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return domain.SubmissionStatus{}, nil
	}
	if err != nil {
		return domain.SubmissionStatus{}, fmt.Errorf("read result status: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return domain.SubmissionStatus{Exists: true}, nil
	}
	var stored domain.SessionResult
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.SubmissionStatus{Exists: true}, nil
	}
	return domain.SubmissionStatus{Exists: true, CompletedAt: stored.CompletedAt}, nil
}

func (s *ResultStore) object(key string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(key)
}

func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}
