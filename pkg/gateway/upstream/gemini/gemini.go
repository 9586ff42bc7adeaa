// Package gemini backs live sessions with the Gemini Live API and
// serves the analysis tools with the plain generative endpoint.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/pitchline/pitchline/pkg/engine"
	"github.com/pitchline/pitchline/pkg/engine/tools"
	"github.com/pitchline/pitchline/pkg/gateway/live/session"
)

const (
	defaultLiveModel     = "gemini-2.0-flash-live-001"
	defaultAnalysisModel = "gemini-2.0-flash"
)

type Config struct {
	APIKey        string
	LiveModel     string
	AnalysisModel string
}

type Client struct {
	client        *genai.Client
	logger        *slog.Logger
	liveModel     string
	analysisModel string
}

func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, engine.NewAuthError("gemini api key is not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, engine.NewUpstreamError("gemini", err)
	}

	liveModel := strings.TrimSpace(cfg.LiveModel)
	if liveModel == "" {
		liveModel = defaultLiveModel
	}
	analysisModel := strings.TrimSpace(cfg.AnalysisModel)
	if analysisModel == "" {
		analysisModel = defaultAnalysisModel
	}
	return &Client{
		client:        client,
		logger:        logger,
		liveModel:     liveModel,
		analysisModel: analysisModel,
	}, nil
}

// Connect implements session.Upstream.
func (c *Client) Connect(ctx context.Context, cfg session.UpstreamConfig) (session.UpstreamConn, error) {
	connectCfg := &genai.LiveConnectConfig{
		ResponseModalities:       []genai.Modality{genai.ModalityAudio},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if prompt := strings.TrimSpace(cfg.SystemPrompt); prompt != "" {
		connectCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: prompt}}}
	}
	if cfg.LanguageCode != "" || cfg.VoiceName != "" {
		speech := &genai.SpeechConfig{LanguageCode: cfg.LanguageCode}
		if cfg.VoiceName != "" {
			speech.VoiceConfig = &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.VoiceName},
			}
		}
		connectCfg.SpeechConfig = speech
	}
	if decls := declarationsFor(cfg.ToolNames); len(decls) > 0 {
		connectCfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	live, err := c.client.Live.Connect(ctx, c.liveModel, connectCfg)
	if err != nil {
		return nil, engine.NewUpstreamError("gemini", err)
	}

	conn := &liveConn{
		live:   live,
		logger: c.logger.With("session_id", cfg.SessionID),
		events: make(chan session.UpstreamEvent, 64),
	}
	go conn.receiveLoop()
	return conn, nil
}

type liveConn struct {
	live   *genai.Session
	logger *slog.Logger
	events chan session.UpstreamEvent
}

func (c *liveConn) receiveLoop() {
	defer close(c.events)
	for {
		msg, err := c.live.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.events <- session.UpstreamEvent{Type: session.UpstreamClosed}
			} else {
				c.events <- session.UpstreamEvent{Type: session.UpstreamClosed, Err: engine.NewUpstreamError("gemini", err)}
			}
			return
		}
		for _, ev := range translate(msg) {
			c.events <- ev
		}
	}
}

func translate(msg *genai.LiveServerMessage) []session.UpstreamEvent {
	if msg == nil {
		return nil
	}
	var out []session.UpstreamEvent

	if msg.SetupComplete != nil {
		out = append(out, session.UpstreamEvent{Type: session.UpstreamSetupComplete})
	}
	if sc := msg.ServerContent; sc != nil {
		if sc.Interrupted {
			out = append(out, session.UpstreamEvent{Type: session.UpstreamInterrupted})
		}
		if tr := sc.InputTranscription; tr != nil && strings.TrimSpace(tr.Text) != "" {
			out = append(out, session.UpstreamEvent{
				Type:    session.UpstreamInputTranscript,
				Text:    tr.Text,
				IsFinal: tr.Finished,
			})
		}
		if tr := sc.OutputTranscription; tr != nil && strings.TrimSpace(tr.Text) != "" {
			out = append(out, session.UpstreamEvent{
				Type:    session.UpstreamOutputTranscript,
				Text:    tr.Text,
				IsFinal: tr.Finished,
			})
		}
		if turn := sc.ModelTurn; turn != nil {
			for _, part := range turn.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" {
					out = append(out, session.UpstreamEvent{Type: session.UpstreamModelText, Text: part.Text})
				}
				if part.InlineData != nil && len(part.InlineData.Data) > 0 {
					out = append(out, session.UpstreamEvent{
						Type:     session.UpstreamAudio,
						Audio:    part.InlineData.Data,
						MimeType: part.InlineData.MIMEType,
					})
				}
			}
		}
		if sc.TurnComplete {
			out = append(out, session.UpstreamEvent{Type: session.UpstreamTurnComplete})
		}
	}
	if tc := msg.ToolCall; tc != nil && len(tc.FunctionCalls) > 0 {
		calls := make([]session.UpstreamToolCall, 0, len(tc.FunctionCalls))
		for _, fc := range tc.FunctionCalls {
			if fc == nil {
				continue
			}
			calls = append(calls, session.UpstreamToolCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
		}
		if len(calls) > 0 {
			out = append(out, session.UpstreamEvent{Type: session.UpstreamEventToolCall, Calls: calls})
		}
	}
	if tcc := msg.ToolCallCancellation; tcc != nil && len(tcc.IDs) > 0 {
		out = append(out, session.UpstreamEvent{Type: session.UpstreamToolCallCancellation, CancelIDs: tcc.IDs})
	}
	return out
}

func (c *liveConn) SendAudio(data []byte, mimeType string) error {
	if strings.TrimSpace(mimeType) == "" {
		mimeType = "audio/pcm;rate=16000"
	}
	return c.live.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{Data: data, MIMEType: mimeType},
	})
}

func (c *liveConn) SendText(text string) error {
	return c.live.SendClientContent(genai.LiveClientContentInput{
		Turns: []*genai.Content{{
			Role:  "user",
			Parts: []*genai.Part{{Text: text}},
		}},
		TurnComplete: genai.Ptr(true),
	})
}

func (c *liveConn) SendToolResult(callID, name string, result map[string]any) error {
	return c.live.SendToolResponse(genai.LiveToolResponseInput{
		FunctionResponses: []*genai.FunctionResponse{{
			ID:       callID,
			Name:     name,
			Response: result,
		}},
	})
}

func (c *liveConn) Events() <-chan session.UpstreamEvent { return c.events }

func (c *liveConn) Close() error { return c.live.Close() }

// AnalyzeText implements tools.Analyzer.
func (c *Client) AnalyzeText(ctx context.Context, prompt, text string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.analysisModel, genai.Text(prompt+"\n\n"+text), nil)
	if err != nil {
		return "", engine.NewUpstreamError("gemini", err)
	}
	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", engine.NewUpstreamError("gemini", fmt.Errorf("empty analysis response"))
	}
	return out, nil
}

// AnalyzeImage implements tools.Analyzer.
func (c *Client) AnalyzeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{Data: image, MIMEType: mimeType}},
		},
	}}
	resp, err := c.client.Models.GenerateContent(ctx, c.analysisModel, contents, nil)
	if err != nil {
		return "", engine.NewUpstreamError("gemini", err)
	}
	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", engine.NewUpstreamError("gemini", fmt.Errorf("empty analysis response"))
	}
	return out, nil
}

// declarationsFor maps registered tool names to function declarations
// the model can call. Names without a declaration are not exposed.
func declarationsFor(names []string) []*genai.FunctionDeclaration {
	var decls []*genai.FunctionDeclaration
	for _, name := range names {
		if decl, ok := toolDeclarations[name]; ok {
			decls = append(decls, decl)
		}
	}
	return decls
}

var toolDeclarations = map[string]*genai.FunctionDeclaration{
	tools.ToolWebSearch: {
		Name:        tools.ToolWebSearch,
		Description: "Search the web for current information about a company, market, or topic.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"query":       {Type: genai.TypeString, Description: "The search query."},
				"max_results": {Type: genai.TypeNumber, Description: "Maximum number of results."},
			},
			Required: []string{"query"},
		},
	},
	tools.ToolCompanyEnrich: {
		Name:        tools.ToolCompanyEnrich,
		Description: "Look up firmographic data for a company by domain.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"domain": {Type: genai.TypeString, Description: "The company domain, e.g. acme.com."},
			},
			Required: []string{"domain"},
		},
	},
	tools.ToolPersonEnrich: {
		Name:        tools.ToolPersonEnrich,
		Description: "Look up role and seniority data for a person by work email.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"email": {Type: genai.TypeString, Description: "The person's work email address."},
			},
			Required: []string{"email"},
		},
	},
	tools.ToolROICalculator: {
		Name:        tools.ToolROICalculator,
		Description: "Project annual savings, ROI multiple, and payback period from usage assumptions.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"hours_saved_per_week": {Type: genai.TypeNumber},
				"hourly_cost":          {Type: genai.TypeNumber},
				"seats":                {Type: genai.TypeNumber},
				"annual_price":         {Type: genai.TypeNumber},
			},
			Required: []string{"hours_saved_per_week", "hourly_cost", "seats", "annual_price"},
		},
	},
	tools.ToolURLAnalysis: {
		Name:        tools.ToolURLAnalysis,
		Description: "Fetch a link the lead shared and summarize its sales-relevant content.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"url": {Type: genai.TypeString, Description: "The absolute http(s) link to fetch."},
			},
			Required: []string{"url"},
		},
	},
	tools.ToolDocumentAnalysis: {
		Name:        tools.ToolDocumentAnalysis,
		Description: "Summarize a document the lead shared.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"text": {Type: genai.TypeString, Description: "The document text."},
			},
			Required: []string{"text"},
		},
	},
	tools.ToolVisionAnalysis: {
		Name:        tools.ToolVisionAnalysis,
		Description: "Describe a screenshot or image the lead shared.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"image_b64": {Type: genai.TypeString, Description: "Base64-encoded image bytes."},
				"mime_type": {Type: genai.TypeString, Description: "Image mime type, defaults to image/png."},
			},
			Required: []string{"image_b64"},
		},
	},
}
