package lode

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/pngdoctor/doctor"
	"github.com/justapithecus/pngdoctor/metrics"
)

// FailingStore is a lode.Store that returns configurable errors.
type FailingStore struct {
	PutErr    error
	GetErr    error
	ExistsErr error
	ListErr   error
	DeleteErr error

	PutCalls int
	PutPaths []string
}

func (s *FailingStore) Put(_ context.Context, path string, _ io.Reader) error {
	s.PutCalls++
	s.PutPaths = append(s.PutPaths, path)
	return s.PutErr
}

func (s *FailingStore) Get(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, s.GetErr
}

func (s *FailingStore) Exists(_ context.Context, _ string) (bool, error) {
	return false, s.ExistsErr
}

func (s *FailingStore) List(_ context.Context, _ string) ([]string, error) {
	return nil, s.ListErr
}

func (s *FailingStore) Delete(_ context.Context, _ string) error {
	return s.DeleteErr
}

func (s *FailingStore) ReadRange(_ context.Context, _ string, _, _ int64) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *FailingStore) ReaderAt(_ context.Context, _ string) (io.ReaderAt, error) {
	return nil, errors.New("not implemented")
}

var _ lode.Store = (*FailingStore)(nil)

// FailingStoreFactory creates a factory that returns store.
func FailingStoreFactory(store *FailingStore) lode.StoreFactory {
	return func() (lode.Store, error) {
		return store, nil
	}
}

func failingClient(t *testing.T, store *FailingStore) *LodeClient {
	t.Helper()
	client, err := NewLodeClientWithFactory(testConfig(), FailingStoreFactory(store))
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory failed: %v", err)
	}
	return client
}

func TestLodeClient_FSMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "does-not-exist", "nested")

	client, factoryErr := NewLodeClient(testConfig(), root)
	if factoryErr != nil {
		var storageErr *StorageError
		if !errors.As(factoryErr, &storageErr) {
			t.Fatalf("expected *StorageError for factory error, got %T: %v", factoryErr, factoryErr)
		}
		if !errors.Is(factoryErr, ErrNotFound) && !errors.Is(factoryErr, ErrPermissionDenied) {
			t.Errorf("expected ErrNotFound or ErrPermissionDenied, got kind: %v", storageErr.Kind)
		}
		if storageErr.Op != "init" {
			t.Errorf("Op = %q, want init", storageErr.Op)
		}
		return
	}
	defer func() { _ = client.Close() }()

	err := client.WriteReports(t.Context(), []*doctor.Report{testReport(t, "a.png", cleanStream)})
	if err == nil {
		t.Fatal("expected error for missing root, got nil")
	}
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected *StorageError, got %T", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got kind: %v", storageErr.Kind)
	}
}

func TestLodeClient_FSReadOnlyRoot(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("skipping: test requires non-root user")
	}

	readOnly := filepath.Join(t.TempDir(), "readonly")
	if err := os.MkdirAll(readOnly, 0o555); err != nil {
		t.Fatalf("failed to create read-only dir: %v", err)
	}

	client, factoryErr := NewLodeClient(testConfig(), filepath.Join(readOnly, "data"))
	if factoryErr != nil {
		if !errors.Is(factoryErr, ErrPermissionDenied) && !errors.Is(factoryErr, ErrNotFound) {
			t.Errorf("unexpected factory error kind: %v", factoryErr)
		}
		return
	}
	defer func() { _ = client.Close() }()

	err := client.WriteReports(t.Context(), []*doctor.Report{testReport(t, "a.png", cleanStream)})
	if err == nil {
		t.Fatal("expected permission error, got nil")
	}
	if !errors.Is(err, ErrPermissionDenied) && !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrPermissionDenied or ErrNotFound, got: %v", err)
	}
}

func TestLodeClient_WriteFailure_DiskFull(t *testing.T) {
	store := &FailingStore{
		PutErr: errors.New("write /data/pngdoctor/reports.jsonl: no space left on device"),
	}
	client := failingClient(t, store)

	err := client.WriteReports(t.Context(), []*doctor.Report{testReport(t, "a.png", cleanStream)})
	if err == nil {
		t.Fatal("expected disk full error, got nil")
	}
	if !errors.Is(err, ErrDiskFull) {
		t.Errorf("expected errors.Is(err, ErrDiskFull), got: %v", err)
	}

	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected *StorageError, got %T", err)
	}
	if storageErr.Op != "write" {
		t.Errorf("Op = %q, want write", storageErr.Op)
	}
	if !strings.Contains(storageErr.Path, "record_kind=report") {
		t.Errorf("Path = %q, want record_kind=report partition", storageErr.Path)
	}
	if store.PutCalls == 0 {
		t.Error("expected a put attempt")
	}
}

func TestLodeClient_WriteFailure_PermissionDenied(t *testing.T) {
	store := &FailingStore{
		PutErr: errors.New("write /data/pngdoctor/reports.jsonl: permission denied"),
	}
	client := failingClient(t, store)

	err := client.WriteReports(t.Context(), []*doctor.Report{testReport(t, "a.png", cleanStream)})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected errors.Is(err, ErrPermissionDenied), got: %v", err)
	}
}

func TestLodeClient_MetricsWriteFailure_S3Auth(t *testing.T) {
	store := &FailingStore{
		PutErr: errors.New("operation error S3: PutObject, NoCredentialProviders: no valid providers in chain"),
	}
	client := failingClient(t, store)

	err := client.WriteMetrics(t.Context(), metrics.Snapshot{}, testCompleted)
	if !errors.Is(err, ErrAuth) {
		t.Errorf("expected errors.Is(err, ErrAuth), got: %v", err)
	}

	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected *StorageError, got %T", err)
	}
	if !strings.Contains(storageErr.Path, "record_kind=metrics") {
		t.Errorf("Path = %q, want record_kind=metrics partition", storageErr.Path)
	}
}

func TestLodeClient_StorageError_ContainsOperationAndPath(t *testing.T) {
	client := failingClient(t, &FailingStore{PutErr: errors.New("simulated failure")})

	err := client.WriteReports(t.Context(), []*doctor.Report{testReport(t, "a.png", cleanStream)})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	msg := err.Error()
	if !strings.Contains(msg, "write") {
		t.Errorf("error message should contain operation, got: %s", msg)
	}
	if !strings.Contains(msg, "pngdoctor/source=uploads") {
		t.Errorf("error message should contain partition path, got: %s", msg)
	}
	if !errors.Is(err, ErrStorage) {
		t.Errorf("unclassified failure should be ErrStorage, got: %v", err)
	}
}

func TestLodeClient_ErrorChain_UnwrapPreservesOriginal(t *testing.T) {
	original := errors.New("connection refused")
	client := failingClient(t, &FailingStore{PutErr: original})

	err := client.WriteReports(t.Context(), []*doctor.Report{testReport(t, "a.png", cleanStream)})
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("expected ErrNetwork, got: %v", err)
	}
	if !errors.Is(err, original) {
		t.Error("expected the original error in the chain")
	}
}

func TestLodeClient_PutReport_Failure(t *testing.T) {
	store := &FailingStore{PutErr: errors.New("AccessDenied: bucket policy")}
	client := failingClient(t, store)
	r := testReport(t, "a.png", brokenStream)

	err := client.PutReport(t.Context(), r)
	if !errors.Is(err, ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied, got: %v", err)
	}

	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected *StorageError, got %T", err)
	}
	if storageErr.Op != "put_file" {
		t.Errorf("Op = %q, want put_file", storageErr.Op)
	}

	want := "datasets/pngdoctor/partitions/source=uploads/day=" + r.Day() + "/verdict=reject/files/" + r.PassID + ".json"
	if storageErr.Path != want {
		t.Errorf("Path = %q, want %q", storageErr.Path, want)
	}
	if len(store.PutPaths) != 1 || store.PutPaths[0] != want {
		t.Errorf("PutPaths = %v, want [%s]", store.PutPaths, want)
	}
}

func TestLodeClient_PutReport_FactoryFailure(t *testing.T) {
	broken := false
	factory := func() (lode.Store, error) {
		if broken {
			return nil, errors.New("dial tcp: lookup minio: no such host")
		}
		return lode.NewMemory(), nil
	}
	client, err := NewLodeClientWithFactory(testConfig(), factory)
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory failed: %v", err)
	}
	broken = true

	err = client.PutReport(t.Context(), testReport(t, "a.png", cleanStream))
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("expected ErrNetwork, got: %v", err)
	}
	var storageErr *StorageError
	if errors.As(err, &storageErr) && storageErr.Op != "put_file" {
		t.Errorf("Op = %q, want put_file", storageErr.Op)
	}
}
