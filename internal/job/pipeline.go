package job

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"examai/internal/logger"
	"examai/internal/ocr"
)

const keyTimeFormat = "20060102_150405"

// rasterExtensions route to the synchronous image OCR path.
var rasterExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
}

// deriveBlobKey builds the storage key for an uploaded document:
// [folder/]<timestamp>_<disambiguator>_<filename>. The timestamp plus random
// disambiguator guarantees uniqueness without a coordinator; re-submission
// always lands on a fresh key.
func deriveBlobKey(folder, filename string, now time.Time, disambiguator string) string {
	name := fmt.Sprintf("%s_%s_%s", now.Format(keyTimeFormat), disambiguator, filename)
	if folder != "" {
		return folder + "/" + name
	}
	return name
}

func newDisambiguator() string {
	return uuid.NewString()[:8]
}

// runStages executes one attempt of the stage sequence: derive key, store,
// classify, extract, generate, persist. Each stage wraps its failure in a
// StageError so terminal failures carry the stage name. Stages run strictly
// in order; none begins before the previous one's side effect is durable.
func (s *Service) runStages(job *Job) error {
	s.store.SetStatus(job, StatusRunning)

	ctx := context.Background()
	log := logger.WithJobID(job.ID)

	now := time.Now()
	disambiguator := newDisambiguator()
	key := deriveBlobKey(job.Folder, job.Filename, now, disambiguator)

	upload, err := s.blobs.Upload(ctx, key, job.Data, job.ContentType)
	if err != nil {
		return &StageError{Stage: StageUpload, Err: err}
	}
	log.Info().Str("uri", upload.URI).Msg("Document stored")

	extension := strings.ToLower(filepath.Ext(job.Filename))

	var result *ocr.ExtractionResult
	switch {
	case extension == ".pdf":
		destinationPrefix := fmt.Sprintf("ocr_results/%s_%s/", now.Format(keyTimeFormat), disambiguator)
		destinationURI := fmt.Sprintf("gs://%s/%s", s.blobs.Bucket(), destinationPrefix)

		if err := s.extractor.ProcessPDFFromGCS(ctx, upload.URI, destinationURI); err != nil {
			return &StageError{Stage: StageOCR, Err: err}
		}
		result, err = s.extractor.ReadAsyncResults(ctx, destinationPrefix)
		if err != nil {
			return &StageError{Stage: StageOCR, Err: err}
		}

	case rasterExtensions[extension]:
		result, err = s.extractor.DetectDocumentText(ctx, job.Data)
		if err != nil {
			return &StageError{Stage: StageOCR, Err: err}
		}

	default:
		return &StageError{Stage: StageOCR, Err: fmt.Errorf("%w: %q", ErrUnsupportedType, extension)}
	}

	if result.Error != "" {
		return &StageError{Stage: StageOCR, Err: fmt.Errorf("extraction failed: %s", result.Error)}
	}
	if result.FullText == "" {
		return &StageError{Stage: StageOCR, Err: ocr.ErrNoText}
	}
	log.Info().
		Int("text_length", len(result.FullText)).
		Int("pages", len(result.StructuredData)).
		Msg("OCR extraction completed")

	examPaper, err := s.generator.Generate(ctx, result.FullText)
	if err != nil {
		return &StageError{Stage: StageGeneration, Err: err}
	}

	paperID, err := s.papers.InsertOne(ctx, s.cfg.Collection, examPaper)
	if err != nil {
		return &StageError{Stage: StagePersistence, Err: err}
	}
	log.Info().Str("exam_paper_id", paperID).Msg("Exam paper persisted")

	s.store.Complete(job, &Result{
		OriginalFilename:    job.Filename,
		StorageKey:          key,
		ExtractedTextLength: len(result.FullText),
		ExamPaperID:         paperID,
	})
	return nil
}
