package types

import "time"

// DefaultDocumentType is reported when the classification program omits a type.
const DefaultDocumentType = "unknown"

// ClassificationRequest is the validated, transport-independent form of a request.
type ClassificationRequest struct {
	ImagePath  string
	BatchMode  bool
	SaveOutput bool
	OutputDir  string
}

// ProcessRequest is the JSON body accepted by the dispatch endpoint.
type ProcessRequest struct {
	ImagePath    string `json:"imagePath"`
	BatchProcess bool   `json:"batchProcess"`
	SaveToFile   *bool  `json:"saveToFile"` // nil means true
	OutputDir    string `json:"outputDir"`
}

type ProcessExecutionResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

type ClassificationResult struct {
	ImagePath      string   `json:"imagePath"`
	DocumentType   string   `json:"documentType,omitempty"`
	TextLines      []string `json:"recTexts"`
	Success        bool     `json:"success"`
	Error          *string  `json:"error,omitempty"`
	Confidence     string   `json:"confidence,omitempty"` // reserved, never populated
	OutputFilePath string   `json:"outputFilePath,omitempty"`
}

// Failed builds a failure result; TextLines stays non-nil so it encodes as [].
func Failed(imagePath, msg string) ClassificationResult {
	return ClassificationResult{
		ImagePath: imagePath,
		TextLines: []string{},
		Success:   false,
		Error:     &msg,
	}
}

type BatchReport struct {
	Results        []ClassificationResult `json:"results"`
	TotalProcessed int                    `json:"totalProcessed"`
	SuccessCount   int                    `json:"successCount"`
	FailureCount   int                    `json:"failureCount"`
}

// NewBatchReport derives every count from results.
func NewBatchReport(results []ClassificationResult) BatchReport {
	r := BatchReport{Results: results, TotalProcessed: len(results)}
	for _, res := range results {
		if res.Success {
			r.SuccessCount++
		} else {
			r.FailureCount++
		}
	}
	return r
}

// ClassificationResponse is the envelope returned by every classification endpoint.
type ClassificationResponse struct {
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"errorMessage,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	Result         *ClassificationResult  `json:"result,omitempty"`
	Results        []ClassificationResult `json:"results,omitempty"`
	TotalProcessed int                    `json:"totalProcessed"`
	SuccessCount   int                    `json:"successCount"`
	FailureCount   int                    `json:"failureCount"`
}

func SingleResponse(res ClassificationResult) ClassificationResponse {
	resp := ClassificationResponse{
		Success:        res.Success,
		Timestamp:      time.Now().UTC(),
		Result:         &res,
		TotalProcessed: 1,
	}
	if res.Success {
		resp.SuccessCount = 1
	} else {
		resp.FailureCount = 1
		if res.Error != nil {
			resp.ErrorMessage = *res.Error
		}
	}
	return resp
}

func BatchResponse(report BatchReport) ClassificationResponse {
	return ClassificationResponse{
		Success:        true,
		Timestamp:      time.Now().UTC(),
		Results:        report.Results,
		TotalProcessed: report.TotalProcessed,
		SuccessCount:   report.SuccessCount,
		FailureCount:   report.FailureCount,
	}
}

func ErrorResponse(msg string) ClassificationResponse {
	return ClassificationResponse{
		Success:      false,
		ErrorMessage: msg,
		Timestamp:    time.Now().UTC(),
	}
}
