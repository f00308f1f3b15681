package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/toricodesthings/doc-classification-service/internal/types"
)

// ToResult maps the extracted payload onto a ClassificationResult. It never
// returns an error: unparsable payloads become failure results.
func ToResult(jsonText, imagePath string) types.ClassificationResult {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonText), &obj); err != nil {
		return types.Failed(imagePath, types.OutputParseError(err).Error())
	}
	if obj == nil {
		return types.Failed(imagePath, types.OutputParseError(fmt.Errorf("payload is null")).Error())
	}

	if raw, ok := obj["error"]; ok {
		return types.Failed(imagePath, asText(raw))
	}

	docType := types.DefaultDocumentType
	if raw, ok := obj["document_type"]; ok {
		var s string
		if !isNull(raw) && json.Unmarshal(raw, &s) == nil {
			docType = s
		}
	}

	lines := []string{}
	if raw, ok := obj["rec_texts"]; ok {
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) == nil {
			for _, it := range items {
				lines = append(lines, asText(it))
			}
		}
	}

	return types.ClassificationResult{
		ImagePath:    imagePath,
		DocumentType: docType,
		TextLines:    lines,
		Success:      true,
	}
}

// Combine joins recognised lines into a single text block, skipping blanks.
func Combine(lines []string, sep string) string {
	var b strings.Builder
	first := true
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if !first {
			b.WriteString(sep)
		}
		first = false
		b.WriteString(l)
	}
	return b.String()
}

// asText renders strings unquoted and any other JSON value as compact JSON.
func asText(raw json.RawMessage) string {
	var s string
	if !isNull(raw) && json.Unmarshal(raw, &s) == nil {
		return s
	}
	var buf bytes.Buffer
	if json.Compact(&buf, raw) == nil {
		return buf.String()
	}
	return strings.TrimSpace(string(raw))
}

// isNull reports a JSON null, which json.Unmarshal accepts into a string.
func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
