package upload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/prepview/backend/internal/models"
	"github.com/prepview/backend/pkg/capture"
)

type fakeAPI struct {
	mu       sync.Mutex
	tickets  []models.PresignedUrlResponse
	fetched  int
	confirms []models.ConfirmUploadRequest
}

func (f *fakeAPI) Get(_ context.Context, path string, out interface{}) error {
	if !strings.Contains(path, "/upload-url") {
		return fmt.Errorf("unexpected GET %s", path)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetched >= len(f.tickets) {
		return fmt.Errorf("no more tickets scripted")
	}
	*(out.(*models.PresignedUrlResponse)) = f.tickets[f.fetched]
	f.fetched++
	return nil
}

func (f *fakeAPI) Post(_ context.Context, path string, body, out interface{}) error {
	if !strings.Contains(path, "/confirm-upload") {
		return fmt.Errorf("unexpected POST %s", path)
	}
	req := body.(models.ConfirmUploadRequest)
	f.mu.Lock()
	f.confirms = append(f.confirms, req)
	f.mu.Unlock()
	if ack, ok := out.(*models.ConfirmUploadResponse); ok {
		ack.Message = "upload confirmed"
		ack.QuestionID = req.QuestionID
		ack.S3Key = req.S3Key
	}
	return nil
}

type fakeStorage struct {
	mu      sync.Mutex
	puts    map[string]int // path -> count
	headers map[string]http.Header
	bodies  map[string]string
	status  map[string]int // path -> response code
	srv     *httptest.Server
}

func newFakeStorage(t *testing.T) *fakeStorage {
	s := &fakeStorage{
		puts:    make(map[string]int),
		headers: make(map[string]http.Header),
		bodies:  make(map[string]string),
		status:  make(map[string]int),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("storage got %s, want PUT", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.puts[r.URL.Path]++
		s.headers[r.URL.Path] = r.Header.Clone()
		s.bodies[r.URL.Path] = string(body)
		code, ok := s.status[r.URL.Path]
		s.mu.Unlock()
		if ok {
			w.WriteHeader(code)
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *fakeStorage) url(path string) string { return s.srv.URL + path }

func testArtifact() *capture.Artifact {
	return &capture.Artifact{
		Data:     []byte("webm bytes"),
		MimeType: "video/webm;codecs=vp9,opus",
		Duration: 42 * time.Second,
	}
}

func TestUploadAnswerHappyPath(t *testing.T) {
	storage := newFakeStorage(t)
	api := &fakeAPI{tickets: []models.PresignedUrlResponse{
		{UploadURL: storage.url("/v1"), S3Key: "responses/i/q.webm", ExpiresInSeconds: 600},
	}}
	c := NewCoordinator(api)

	ack, err := c.UploadAnswer(context.Background(), uuid.New(), uuid.New(), testArtifact())
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if ack.S3Key != "responses/i/q.webm" {
		t.Fatalf("ack = %+v", ack)
	}
	if storage.puts["/v1"] != 1 {
		t.Fatalf("puts = %v, want one PUT", storage.puts)
	}
	h := storage.headers["/v1"]
	if h.Get("Authorization") != "" {
		t.Fatal("Authorization header sent to presigned URL")
	}
	if ct := h.Get("Content-Type"); ct != "video/webm;codecs=vp9,opus" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if storage.bodies["/v1"] != "webm bytes" {
		t.Fatalf("body = %q", storage.bodies["/v1"])
	}
	if len(api.confirms) != 1 {
		t.Fatalf("confirms = %d", len(api.confirms))
	}
	confirm := api.confirms[0]
	if confirm.S3Key != "responses/i/q.webm" || confirm.VideoDuration != 42 {
		t.Fatalf("confirm = %+v", confirm)
	}
}

func TestExpiredTicketIsReplacedNotReused(t *testing.T) {
	storage := newFakeStorage(t)
	api := &fakeAPI{tickets: []models.PresignedUrlResponse{
		{UploadURL: storage.url("/stale"), S3Key: "responses/i/q.webm", ExpiresInSeconds: 0},
		{UploadURL: storage.url("/fresh"), S3Key: "responses/i/q.webm", ExpiresInSeconds: 600},
	}}
	c := NewCoordinator(api)

	if _, err := c.UploadAnswer(context.Background(), uuid.New(), uuid.New(), testArtifact()); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if storage.puts["/stale"] != 0 {
		t.Fatal("expired ticket URL was used")
	}
	if storage.puts["/fresh"] != 1 {
		t.Fatalf("fresh ticket puts = %d, want 1", storage.puts["/fresh"])
	}
	if api.fetched != 2 {
		t.Fatalf("tickets fetched = %d, want 2", api.fetched)
	}
}

func TestStorageRejectionFetchesFreshTicketOnce(t *testing.T) {
	storage := newFakeStorage(t)
	storage.status["/rejected"] = http.StatusForbidden
	api := &fakeAPI{tickets: []models.PresignedUrlResponse{
		{UploadURL: storage.url("/rejected"), S3Key: "responses/i/q.webm", ExpiresInSeconds: 600},
		{UploadURL: storage.url("/fresh"), S3Key: "responses/i/q.webm", ExpiresInSeconds: 600},
	}}
	c := NewCoordinator(api)

	if _, err := c.UploadAnswer(context.Background(), uuid.New(), uuid.New(), testArtifact()); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if storage.puts["/rejected"] != 1 {
		t.Fatalf("rejected URL puts = %d, want exactly 1 (never retried)", storage.puts["/rejected"])
	}
	if storage.puts["/fresh"] != 1 {
		t.Fatalf("fresh URL puts = %d, want 1", storage.puts["/fresh"])
	}
}

func TestTwoExpiredTicketsFailTheUpload(t *testing.T) {
	storage := newFakeStorage(t)
	api := &fakeAPI{tickets: []models.PresignedUrlResponse{
		{UploadURL: storage.url("/a"), S3Key: "k", ExpiresInSeconds: 0},
		{UploadURL: storage.url("/b"), S3Key: "k", ExpiresInSeconds: 0},
	}}
	c := NewCoordinator(api)

	if _, err := c.UploadAnswer(context.Background(), uuid.New(), uuid.New(), testArtifact()); err == nil {
		t.Fatal("expected error after two expired tickets")
	}
	if storage.puts["/a"]+storage.puts["/b"] != 0 {
		t.Fatal("expired URLs were used")
	}
}

func TestEmptyArtifactRejected(t *testing.T) {
	c := NewCoordinator(&fakeAPI{})
	if _, err := c.UploadAnswer(context.Background(), uuid.New(), uuid.New(), &capture.Artifact{}); err == nil {
		t.Fatal("expected error for empty artifact")
	}
}
