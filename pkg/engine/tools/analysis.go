package tools

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/pitchline/pitchline/pkg/engine"
)

// Analyzer is the model-backed analysis collaborator. The Gemini
// implementation lives in pkg/gateway/upstream/gemini; tests use a
// scripted fake.
type Analyzer interface {
	AnalyzeText(ctx context.Context, prompt, text string) (string, error)
	AnalyzeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

const (
	documentPrompt = "Summarize this document for a sales conversation: key facts, team size, tooling, and any stated goals or constraints."
	visionPrompt   = "Describe what this screenshot or photo shows, focusing on products, dashboards, or documents relevant to a sales conversation."
)

// DocumentAnalysisTool summarizes pasted or uploaded document text.
type DocumentAnalysisTool struct {
	analyzer Analyzer
}

func NewDocumentAnalysisTool(analyzer Analyzer) *DocumentAnalysisTool {
	return &DocumentAnalysisTool{analyzer: analyzer}
}

func (t *DocumentAnalysisTool) Name() string { return ToolDocumentAnalysis }

func (t *DocumentAnalysisTool) Description() string {
	return "Summarize a shared document's sales-relevant content."
}

func (t *DocumentAnalysisTool) Execute(ctx context.Context, input map[string]any) (any, error) {
	if t.analyzer == nil {
		return nil, engine.NewAuthError("document_analysis is not configured")
	}
	text, _ := input["text"].(string)
	if strings.TrimSpace(text) == "" {
		return nil, engine.NewInvalidInputErrorWithParam("text is required", "text")
	}
	summary, err := t.analyzer.AnalyzeText(ctx, documentPrompt, text)
	if err != nil {
		return nil, err
	}
	return map[string]any{"summary": summary}, nil
}

// VisionAnalysisTool describes a shared image.
type VisionAnalysisTool struct {
	analyzer Analyzer
}

func NewVisionAnalysisTool(analyzer Analyzer) *VisionAnalysisTool {
	return &VisionAnalysisTool{analyzer: analyzer}
}

func (t *VisionAnalysisTool) Name() string { return ToolVisionAnalysis }

func (t *VisionAnalysisTool) Description() string {
	return "Describe a shared screenshot or photo."
}

func (t *VisionAnalysisTool) Execute(ctx context.Context, input map[string]any) (any, error) {
	if t.analyzer == nil {
		return nil, engine.NewAuthError("vision_analysis is not configured")
	}
	dataB64, _ := input["image_b64"].(string)
	if strings.TrimSpace(dataB64) == "" {
		return nil, engine.NewInvalidInputErrorWithParam("image_b64 is required", "image_b64")
	}
	image, err := base64.StdEncoding.DecodeString(dataB64)
	if err != nil {
		return nil, engine.NewInvalidInputErrorWithParam("image_b64 is not valid base64", "image_b64")
	}
	mimeType, _ := input["mime_type"].(string)
	if strings.TrimSpace(mimeType) == "" {
		mimeType = "image/png"
	}
	description, err := t.analyzer.AnalyzeImage(ctx, visionPrompt, image, mimeType)
	if err != nil {
		return nil, err
	}
	return map[string]any{"description": description}, nil
}
