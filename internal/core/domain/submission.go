package domain

import "time"

type FileKind string

const (
	KindPDF  FileKind = "pdf"
	KindText FileKind = "text"
)

type SubmissionStatus string

const (
	StatusQueued     SubmissionStatus = "queued"
	StatusProcessing SubmissionStatus = "processing"
	StatusCompleted  SubmissionStatus = "completed"
	StatusPartial    SubmissionStatus = "partial"
	StatusFailed     SubmissionStatus = "failed"
)

// FileState is the per-file processing state machine:
// received -> extracting -> {extracted | extraction_failed} -> grading -> {graded | grading_failed}.
// extraction_failed is terminal and skips grading.
type FileState string

const (
	FileReceived         FileState = "received"
	FileExtracting       FileState = "extracting"
	FileExtracted        FileState = "extracted"
	FileExtractionFailed FileState = "extraction_failed"
	FileGrading          FileState = "grading"
	FileGraded           FileState = "graded"
	FileGradingFailed    FileState = "grading_failed"
)

type SubmissionFile struct {
	ID          string   `json:"id"`
	Filename    string   `json:"filename"`
	Kind        FileKind `json:"kind"`
	StoragePath string   `json:"storage_path"`
	ScratchPath string   `json:"-"`
	SizeBytes   int64    `json:"size_bytes"`
	Position    int      `json:"position"`
}

type Submission struct {
	ID              string           `json:"id"`
	Rubric          string           `json:"rubric"`
	PointsAvailable float64          `json:"points_available"`
	Status          SubmissionStatus `json:"status"`
	Error           string           `json:"error,omitempty"`
	Files           []SubmissionFile `json:"files"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

type ExtractionMethod string

const (
	MethodBatchOCR      ExtractionMethod = "batch_ocr"
	MethodSequentialOCR ExtractionMethod = "sequential_ocr"
	MethodLocalFallback ExtractionMethod = "local_fallback"
	MethodDirectText    ExtractionMethod = "direct_text"
	MethodFailed        ExtractionMethod = "failed"
)

// ExtractionOutcome is the result of resolving text for one file.
// Exactly one of Text or Err is meaningful; Method == MethodFailed implies Err is set.
type ExtractionOutcome struct {
	Text   string
	Method ExtractionMethod
	Err    error
}

func (o ExtractionOutcome) Failed() bool {
	return o.Method == MethodFailed
}

type FileResult struct {
	Filename         string           `json:"filename"`
	Position         int              `json:"position"`
	State            FileState        `json:"state"`
	ExtractionMethod ExtractionMethod `json:"extraction_method"`
	Grade            *GradeRecord     `json:"grade,omitempty"`
	ErrorMessage     string           `json:"error_message,omitempty"`
}

// SubmissionResult always carries one entry per submitted file, in input order.
type SubmissionResult struct {
	SubmissionID string           `json:"submission_id"`
	Status       SubmissionStatus `json:"status"`
	Files        []FileResult     `json:"files"`
	CreatedAt    time.Time        `json:"created_at"`
}
