package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/toricodesthings/doc-classification-service/internal/format"
	"github.com/toricodesthings/doc-classification-service/internal/types"
)

// UI prints human readable results, or a single JSON document in json mode.
type UI struct {
	jsonMode bool
}

func NewUI(jsonMode, noColor bool) *UI {
	if noColor {
		color.NoColor = true
	}
	return &UI{jsonMode: jsonMode}
}

func (ui *UI) Success(msg string, args ...interface{}) {
	if ui.jsonMode {
		return
	}
	color.New(color.FgGreen).Printf("✓ %s\n", fmt.Sprintf(msg, args...))
}

func (ui *UI) Error(msg string, args ...interface{}) {
	if ui.jsonMode {
		return
	}
	color.New(color.FgRed).Fprintf(os.Stderr, "✗ %s\n", fmt.Sprintf(msg, args...))
}

func (ui *UI) Info(msg string, args ...interface{}) {
	if ui.jsonMode {
		return
	}
	fmt.Printf("  %s\n", fmt.Sprintf(msg, args...))
}

func (ui *UI) Section(title string) {
	if ui.jsonMode {
		return
	}
	color.New(color.FgCyan, color.Bold).Printf("\n%s\n", title)
}

func (ui *UI) JSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Result prints one classification result.
func (ui *UI) Result(res types.ClassificationResult) {
	if !res.Success {
		msg := ""
		if res.Error != nil {
			msg = *res.Error
		}
		ui.Error("%s: %s", res.ImagePath, msg)
		return
	}
	ui.Success("%s: %s", res.ImagePath, res.DocumentType)
	if text := format.Combine(res.TextLines, " | "); text != "" {
		ui.Info("text: %s", text)
	}
	if res.OutputFilePath != "" {
		ui.Info("saved: %s", res.OutputFilePath)
	}
}

// Response prints the whole envelope.
func (ui *UI) Response(resp types.ClassificationResponse) error {
	if ui.jsonMode {
		return ui.JSON(resp)
	}
	if resp.Result != nil {
		ui.Result(*resp.Result)
		return nil
	}
	ui.Section("Batch results")
	for _, res := range resp.Results {
		ui.Result(res)
	}
	ui.Section("Summary")
	ui.Info("total: %d  success: %d  failure: %d", resp.TotalProcessed, resp.SuccessCount, resp.FailureCount)
	return nil
}
