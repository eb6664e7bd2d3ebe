package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"examai/internal/ocr"
	"examai/internal/paper"
	"examai/internal/storage"
	"examai/pkg/models"
)

// fakeBlobs implements storage.Gateway. uploadErrs is consumed one error per
// Upload call; a nil entry (or an exhausted queue) means success.
type fakeBlobs struct {
	uploadErrs []error
	uploads    []string
	deletes    []string
}

func (f *fakeBlobs) Upload(_ context.Context, object string, data []byte, contentType string) (*storage.UploadResult, error) {
	var err error
	if len(f.uploadErrs) > 0 {
		err = f.uploadErrs[0]
		f.uploadErrs = f.uploadErrs[1:]
	}
	f.uploads = append(f.uploads, object)
	if err != nil {
		return nil, err
	}
	return &storage.UploadResult{
		Name:        object,
		Bucket:      f.Bucket(),
		Size:        int64(len(data)),
		ContentType: contentType,
		URI:         fmt.Sprintf("gs://%s/%s", f.Bucket(), object),
	}, nil
}

func (f *fakeBlobs) Download(_ context.Context, _ string) ([]byte, error) { return nil, nil }

func (f *fakeBlobs) DownloadToFile(_ context.Context, _, _ string) error { return nil }

func (f *fakeBlobs) Delete(_ context.Context, object string) error {
	f.deletes = append(f.deletes, object)
	return nil
}

func (f *fakeBlobs) List(_ context.Context, _ string) ([]storage.ObjectInfo, error) {
	return nil, nil
}

func (f *fakeBlobs) Exists(_ context.Context, _ string) (bool, error) { return false, nil }

func (f *fakeBlobs) Bucket() string { return "test-bucket" }

func (f *fakeBlobs) Close() error { return nil }

// fakeExtractor implements ocr.Service and records every invocation.
type fakeExtractor struct {
	detectResult *ocr.ExtractionResult
	detectErr    error
	detectCalls  int

	processErr    error
	processSource string
	processDest   string
	processCalls  int

	readResult *ocr.ExtractionResult
	readErr    error
	readPrefix string
}

func (f *fakeExtractor) DetectDocumentText(_ context.Context, _ []byte) (*ocr.ExtractionResult, error) {
	f.detectCalls++
	return f.detectResult, f.detectErr
}

func (f *fakeExtractor) ProcessPDFFromGCS(_ context.Context, sourceURI, destinationURI string) error {
	f.processCalls++
	f.processSource = sourceURI
	f.processDest = destinationURI
	return f.processErr
}

func (f *fakeExtractor) ReadAsyncResults(_ context.Context, destinationPrefix string) (*ocr.ExtractionResult, error) {
	f.readPrefix = destinationPrefix
	return f.readResult, f.readErr
}

// fakeGenerator implements paper.Service.
type fakeGenerator struct {
	paper *models.ExamPaper
	err   error
	calls int
}

func (f *fakeGenerator) Generate(_ context.Context, _ string) (*models.ExamPaper, error) {
	f.calls++
	return f.paper, f.err
}

// fakePapers implements mongodb.Store.
type fakePapers struct {
	insertID  string
	insertErr error
	inserts   int
}

func (f *fakePapers) InsertOne(_ context.Context, _ string, _ any) (string, error) {
	f.inserts++
	return f.insertID, f.insertErr
}

func (f *fakePapers) FindOne(_ context.Context, _ string, _ any, _ any) (bson.M, error) {
	return nil, errors.New("not implemented")
}

func (f *fakePapers) Close(_ context.Context) error { return nil }

func newTestService(blobs *fakeBlobs, extractor *fakeExtractor, generator *fakeGenerator, papers *fakePapers) *Service {
	return NewService(blobs, extractor, generator, papers, Config{
		RetryAttempts: 3,
		RetryBackoff:  time.Millisecond,
	})
}

func extractionText(text string) *ocr.ExtractionResult {
	return &ocr.ExtractionResult{FullText: text}
}

func runJob(t *testing.T, svc *Service, filename string, data []byte) *JobStatus {
	t.Helper()

	job := &Job{
		ID:       "job-under-test",
		Filename: filename,
		Data:     data,
		Status:   StatusPending,
	}
	svc.store.Add(job)
	svc.process(job)

	status, err := svc.Status(job.ID)
	if err != nil {
		t.Fatalf("status lookup failed: %v", err)
	}
	return status
}

func TestDeriveBlobKey(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	tests := []struct {
		name     string
		folder   string
		filename string
		want     string
	}{
		{
			name:     "no folder",
			filename: "exam.pdf",
			want:     "20250314_092653_abcd1234_exam.pdf",
		},
		{
			name:     "with folder",
			folder:   "term1",
			filename: "scan.png",
			want:     "term1/20250314_092653_abcd1234_scan.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := deriveBlobKey(tt.folder, tt.filename, now, "abcd1234")
			if got != tt.want {
				t.Errorf("deriveBlobKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubmit_Validation(t *testing.T) {
	svc := newTestService(&fakeBlobs{}, &fakeExtractor{}, &fakeGenerator{}, &fakePapers{})

	if _, err := svc.Submit(nil, "exam.png", "image/png", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty buffer: expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Submit([]byte("data"), "", "image/png", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty filename: expected ErrInvalidInput, got %v", err)
	}
}

func TestStatus_Unknown(t *testing.T) {
	svc := newTestService(&fakeBlobs{}, &fakeExtractor{}, &fakeGenerator{}, &fakePapers{})

	if _, err := svc.Status("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProcess_ImageSuccess(t *testing.T) {
	blobs := &fakeBlobs{}
	extractor := &fakeExtractor{detectResult: extractionText("HELLO WORLD")}
	generator := &fakeGenerator{paper: &models.ExamPaper{}}
	papers := &fakePapers{insertID: "65f2a1"}
	svc := newTestService(blobs, extractor, generator, papers)

	status := runJob(t, svc, "scan.png", []byte("pixels"))

	if status.Status != StatusSuccess || !status.Ready {
		t.Fatalf("expected ready SUCCESS, got %s (error: %+v)", status.Status, status.Error)
	}
	if status.Result == nil {
		t.Fatal("expected a result payload")
	}
	if status.Result.OriginalFilename != "scan.png" {
		t.Errorf("original filename = %q", status.Result.OriginalFilename)
	}
	if status.Result.ExtractedTextLength != len("HELLO WORLD") {
		t.Errorf("extracted text length = %d", status.Result.ExtractedTextLength)
	}
	if status.Result.ExamPaperID != "65f2a1" {
		t.Errorf("exam paper id = %q", status.Result.ExamPaperID)
	}
	if !strings.HasSuffix(status.Result.StorageKey, "_scan.png") {
		t.Errorf("storage key %q does not end with the original filename", status.Result.StorageKey)
	}
	if extractor.detectCalls != 1 || extractor.processCalls != 0 {
		t.Errorf("expected sync path only, got detect=%d process=%d", extractor.detectCalls, extractor.processCalls)
	}
}

func TestProcess_UnsupportedExtension(t *testing.T) {
	blobs := &fakeBlobs{}
	extractor := &fakeExtractor{}
	generator := &fakeGenerator{}
	papers := &fakePapers{}
	svc := newTestService(blobs, extractor, generator, papers)

	status := runJob(t, svc, "syllabus.docx", []byte("doc"))

	if status.Status != StatusFailure {
		t.Fatalf("expected FAILURE, got %s", status.Status)
	}
	if status.Error == nil || status.Error.Stage != StageOCR {
		t.Fatalf("expected stage %q, got %+v", StageOCR, status.Error)
	}
	if !strings.Contains(status.Error.Message, "unsupported file type") {
		t.Errorf("message %q does not name the unsupported type", status.Error.Message)
	}
	if extractor.detectCalls != 0 || extractor.processCalls != 0 {
		t.Error("no OCR call should be made for an unsupported extension")
	}
	if generator.calls != 0 || papers.inserts != 0 {
		t.Error("no generation or persistence should happen after classification fails")
	}
	// Classification is fatal; a single upload attempt, no retry.
	if len(blobs.uploads) != 1 {
		t.Errorf("expected 1 upload attempt, got %d", len(blobs.uploads))
	}
}

func TestProcess_EmptyExtraction(t *testing.T) {
	extractor := &fakeExtractor{detectResult: extractionText("")}
	generator := &fakeGenerator{}
	svc := newTestService(&fakeBlobs{}, extractor, generator, &fakePapers{})

	status := runJob(t, svc, "blank.jpg", []byte("pixels"))

	if status.Status != StatusFailure {
		t.Fatalf("expected FAILURE, got %s", status.Status)
	}
	if status.Error == nil || status.Error.Stage != StageOCR {
		t.Fatalf("expected stage %q, got %+v", StageOCR, status.Error)
	}
	if generator.calls != 0 {
		t.Error("generation must not run without extracted text")
	}
	// Empty extraction is fatal, not transient.
	if extractor.detectCalls != 1 {
		t.Errorf("expected 1 OCR attempt, got %d", extractor.detectCalls)
	}
}

func TestProcess_ExtractionError(t *testing.T) {
	extractor := &fakeExtractor{detectResult: &ocr.ExtractionResult{Error: "bad image data"}}
	svc := newTestService(&fakeBlobs{}, extractor, &fakeGenerator{}, &fakePapers{})

	status := runJob(t, svc, "torn.png", []byte("pixels"))

	if status.Status != StatusFailure {
		t.Fatalf("expected FAILURE, got %s", status.Status)
	}
	if status.Error == nil || status.Error.Stage != StageOCR {
		t.Fatalf("expected stage %q, got %+v", StageOCR, status.Error)
	}
	if !strings.Contains(status.Error.Message, "bad image data") {
		t.Errorf("message %q does not carry the provider error", status.Error.Message)
	}
}

func TestProcess_InvalidGenerationIsFatal(t *testing.T) {
	extractor := &fakeExtractor{detectResult: extractionText("Question 1")}
	generator := &fakeGenerator{err: fmt.Errorf("%w: missing sections", paper.ErrInvalidGeneration)}
	papers := &fakePapers{}
	svc := newTestService(&fakeBlobs{}, extractor, generator, papers)

	status := runJob(t, svc, "scan.png", []byte("pixels"))

	if status.Status != StatusFailure {
		t.Fatalf("expected FAILURE, got %s", status.Status)
	}
	if status.Error == nil || status.Error.Stage != StageGeneration {
		t.Fatalf("expected stage %q, got %+v", StageGeneration, status.Error)
	}
	if generator.calls != 1 {
		t.Errorf("fatal generation failure must not retry, got %d calls", generator.calls)
	}
	if papers.inserts != 0 {
		t.Error("nothing should be persisted after a failed generation")
	}
}

func TestProcess_TransientUploadRetriesToSuccess(t *testing.T) {
	blobs := &fakeBlobs{
		uploadErrs: []error{
			fmt.Errorf("%w: connection reset", storage.ErrUpstream),
			fmt.Errorf("%w: connection reset", storage.ErrUpstream),
		},
	}
	extractor := &fakeExtractor{detectResult: extractionText("Question 1")}
	papers := &fakePapers{insertID: "65f2a1"}
	svc := newTestService(blobs, extractor, &fakeGenerator{paper: &models.ExamPaper{}}, papers)

	status := runJob(t, svc, "scan.png", []byte("pixels"))

	if status.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS after retries, got %s (error: %+v)", status.Status, status.Error)
	}
	if len(blobs.uploads) != 3 {
		t.Errorf("expected 3 upload attempts, got %d", len(blobs.uploads))
	}
	// Each attempt derives a fresh key.
	if blobs.uploads[0] == blobs.uploads[2] {
		t.Errorf("retry reused key %q", blobs.uploads[0])
	}
}

func TestProcess_TransientExhaustsAttempts(t *testing.T) {
	blobs := &fakeBlobs{
		uploadErrs: []error{
			fmt.Errorf("%w: connection reset", storage.ErrUpstream),
			fmt.Errorf("%w: connection reset", storage.ErrUpstream),
			fmt.Errorf("%w: connection reset", storage.ErrUpstream),
		},
	}
	svc := newTestService(blobs, &fakeExtractor{}, &fakeGenerator{}, &fakePapers{})

	status := runJob(t, svc, "scan.png", []byte("pixels"))

	if status.Status != StatusFailure {
		t.Fatalf("expected FAILURE, got %s", status.Status)
	}
	if status.Error == nil || status.Error.Stage != StageUpload {
		t.Fatalf("expected stage %q, got %+v", StageUpload, status.Error)
	}
	if len(blobs.uploads) != 3 {
		t.Errorf("expected exactly 3 upload attempts, got %d", len(blobs.uploads))
	}
}

func TestProcess_PDFPath(t *testing.T) {
	blobs := &fakeBlobs{}
	extractor := &fakeExtractor{readResult: extractionText("page one\npage two")}
	papers := &fakePapers{insertID: "65f2a1"}
	svc := newTestService(blobs, extractor, &fakeGenerator{paper: &models.ExamPaper{}}, papers)

	status := runJob(t, svc, "exam.pdf", []byte("%PDF-1.4"))

	if status.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s (error: %+v)", status.Status, status.Error)
	}
	if extractor.processCalls != 1 || extractor.detectCalls != 0 {
		t.Fatalf("expected async path only, got process=%d detect=%d", extractor.processCalls, extractor.detectCalls)
	}

	wantSource := "gs://test-bucket/" + blobs.uploads[0]
	if extractor.processSource != wantSource {
		t.Errorf("source URI = %q, want %q", extractor.processSource, wantSource)
	}
	if !strings.HasPrefix(extractor.processDest, "gs://test-bucket/ocr_results/") {
		t.Errorf("destination URI = %q, want gs://test-bucket/ocr_results/ prefix", extractor.processDest)
	}
	if !strings.HasPrefix(extractor.readPrefix, "ocr_results/") || !strings.HasSuffix(extractor.readPrefix, "/") {
		t.Errorf("read prefix = %q, want ocr_results/<run>/ shape", extractor.readPrefix)
	}
	if extractor.processDest != "gs://test-bucket/"+extractor.readPrefix {
		t.Errorf("destination %q does not match read prefix %q", extractor.processDest, extractor.readPrefix)
	}
	if status.Result.ExtractedTextLength != len("page one\npage two") {
		t.Errorf("extracted text length = %d", status.Result.ExtractedTextLength)
	}
}

func TestProcess_PDFTimeoutIsTransient(t *testing.T) {
	extractor := &fakeExtractor{processErr: ocr.ErrTimeout}
	svc := newTestService(&fakeBlobs{}, extractor, &fakeGenerator{}, &fakePapers{})

	status := runJob(t, svc, "exam.pdf", []byte("%PDF-1.4"))

	if status.Status != StatusFailure {
		t.Fatalf("expected FAILURE, got %s", status.Status)
	}
	if status.Error == nil || status.Error.Stage != StageOCR {
		t.Fatalf("expected stage %q, got %+v", StageOCR, status.Error)
	}
	if extractor.processCalls != 3 {
		t.Errorf("timeouts should be retried, got %d attempts", extractor.processCalls)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"storage upstream", fmt.Errorf("%w: reset", storage.ErrUpstream), true},
		{"ocr upstream", ocr.ErrUpstream, true},
		{"ocr timeout", ocr.ErrTimeout, true},
		{"generation upstream", paper.ErrUpstream, true},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped in stage error", &StageError{Stage: StageUpload, Err: storage.ErrUpstream}, true},
		{"invalid generation", paper.ErrInvalidGeneration, false},
		{"unsupported type", ErrUnsupportedType, false},
		{"no text", ocr.ErrNoText, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
