package advisor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
)

// engineAgent is one member of the local advisory panel.
type engineAgent struct {
	name   string
	prompt string
}

// localAgents run in order; the coordinator goes last and sees the
// specialists' answers.
var localAgents = []engineAgent{
	{
		name: "栄養スペシャリスト",
		prompt: `あなたは幼児栄養の専門家です。1歳半〜3歳の子どもの食事について、
栄養バランスの観点から簡潔にアドバイスしてください。`,
	},
	{
		name: "アレルギー専門家",
		prompt: `あなたは食物アレルギーの専門家です。特定7品目（卵・乳・小麦・そば・
落花生・えび・かに）を中心に、相談内容のアレルギーリスクを簡潔に評価してください。`,
	},
	{
		name: "総合アドバイザー",
		prompt: `あなたは子どもの食事相談の総合アドバイザーです。専門家の見解を踏まえ、
保護者向けの実践的なアドバイスをまとめてください。`,
	},
}

const imageAnalysisPrompt = `あなたは幼児向け食事画像の分析専門エージェントです。
アップロードされた食事の画像を分析し、料理名、食材、アレルギー成分、
1歳半〜3歳の幼児への適合性を判定してください。信頼度は0.0〜1.0で評価します。`

// LocalEngine is the development stand-in for the hosted services. It serves
// the chat stream, an in-memory session store, and the image analysis
// endpoint on a single handler, backed by one OpenAI-compatible model.
type LocalEngine struct {
	llm    *LLM
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string][]SessionEvent
}

func NewLocalEngine(llm *LLM) *LocalEngine {
	return &LocalEngine{
		llm:      llm,
		logger:   slog.Default(),
		sessions: make(map[string][]SessionEvent),
	}
}

func (e *LocalEngine) SetLogger(logger *slog.Logger) {
	e.logger = logger
}

// Handler returns the route table. All three service URLs can point at it.
func (e *LocalEngine) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat/stream", e.handleChatStream)
	mux.HandleFunc("POST /api/sessions", e.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}/events", e.handleSessionEvents)
	mux.HandleFunc("DELETE /api/sessions/{id}", e.handleDeleteSession)
	mux.HandleFunc("POST /api/image/analyze", e.handleAnalyzeImage)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (e *LocalEngine) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := newID()
	e.mu.Lock()
	e.sessions[id] = nil
	e.mu.Unlock()

	e.logger.Info("Session created", "sessionID", id)
	writeJSON(w, http.StatusOK, apiResponse{Success: true, SessionID: id})
}

func (e *LocalEngine) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	e.mu.Lock()
	events, ok := e.sessions[id]
	e.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, apiResponse{Error: ErrSessionNotFound.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Events: events})
}

func (e *LocalEngine) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	e.mu.Lock()
	_, ok := e.sessions[id]
	delete(e.sessions, id)
	e.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, apiResponse{Error: ErrSessionNotFound.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true})
}

// appendEvent records one entry in the in-memory session history.
func (e *LocalEngine) appendEvent(sessionID, author, text string) {
	ev := SessionEvent{
		Name:      newID(),
		Author:    author,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
	}
	ev.Content.Parts = []struct {
		Text string `json:"text"`
	}{{Text: text}}

	e.mu.Lock()
	e.sessions[sessionID] = append(e.sessions[sessionID], ev)
	e.mu.Unlock()
}

func sendEvent(w http.ResponseWriter, flusher http.Flusher, ev StreamEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func (e *LocalEngine) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message   string `json:"message"`
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: "message is required"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, apiResponse{Error: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	e.logger.Info("Stream started", "sessionID", req.SessionID)
	e.appendEvent(req.SessionID, "user", req.Message)

	ctx := r.Context()
	var priorViews []string
	for _, agent := range localAgents {
		sendEvent(w, flusher, StreamEvent{Type: EventAgentStart, AgentName: agent.name})

		messages := []openai.ChatCompletionMessageParamUnion{
			DeveloperMessage(agent.prompt),
		}
		if len(priorViews) > 0 {
			messages = append(messages, DeveloperMessage(
				"他の専門家の見解:\n\n"+strings.Join(priorViews, "\n\n")))
		}
		messages = append(messages, UserMessage(req.Message))

		stream := e.llm.NewStreaming(ctx, openai.ChatCompletionNewParams{
			Messages: openai.F(messages),
			Model:    openai.F(e.llm.Model),
		})

		var answer strings.Builder
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				delta := chunk.Choices[0].Delta.Content
				answer.WriteString(delta)
				sendEvent(w, flusher, StreamEvent{Type: EventChunk, AgentName: agent.name, Content: delta})
			}
		}
		if err := stream.Err(); err != nil {
			e.logger.Error("Agent stream failed", "agent", agent.name, "error", err)
			sendEvent(w, flusher, StreamEvent{Type: EventError, Content: "streaming error: " + err.Error()})
			return
		}

		sendEvent(w, flusher, StreamEvent{Type: EventAgentComplete, AgentName: agent.name})
		priorViews = append(priorViews, fmt.Sprintf("**%s**\n%s", agent.name, answer.String()))
		e.appendEvent(req.SessionID, agent.name, answer.String())
	}

	sendEvent(w, flusher, StreamEvent{Type: EventStreamEnd})
	e.logger.Info("Stream finished", "sessionID", req.SessionID)
}

// readUploadedImage accepts either a multipart "image" file field or a JSON
// body with a base64 "image" value.
func readUploadedImage(r *http.Request) ([]byte, error) {
	if strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, fmt.Errorf("no image file provided")
		}
		defer file.Close()
		return io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	}

	var req struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Image == "" {
		return nil, fmt.Errorf("no image data provided")
	}
	if idx := strings.Index(req.Image, ","); idx >= 0 && strings.HasPrefix(req.Image, "data:") {
		req.Image = req.Image[idx+1:]
	}
	return base64.StdEncoding.DecodeString(req.Image)
}

func (e *LocalEngine) handleAnalyzeImage(w http.ResponseWriter, r *http.Request) {
	image, err := readUploadedImage(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: err.Error()})
		return
	}
	if len(image) == 0 || len(image) > maxImageBytes {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: "invalid image size"})
		return
	}

	mimeType := http.DetectContentType(image)
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        openai.F("foodAnalysis"),
		Description: openai.F("Structured analysis of a toddler meal photo"),
		Schema:      openai.F(GenerateSchema[FoodAnalysis]()),
		Strict:      openai.Bool(true),
	}

	completion, err := e.llm.New(r.Context(), openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			DeveloperMessage(imageAnalysisPrompt),
			openai.UserMessageParts(openai.ImagePart(dataURL)),
		}),
		Model: openai.F(e.llm.Model),
		ResponseFormat: openai.F[openai.ChatCompletionNewParamsResponseFormatUnion](
			openai.ResponseFormatJSONSchemaParam{
				Type:       openai.F(openai.ResponseFormatJSONSchemaTypeJSONSchema),
				JSONSchema: openai.F(schemaParam),
			},
		),
	})
	if err != nil {
		e.logger.Error("Image analysis failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, apiResponse{Error: "image analysis failed: " + err.Error()})
		return
	}

	var analysis FoodAnalysis
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &analysis); err != nil {
		e.logger.Error("Failed to parse analysis", "error", err)
		writeJSON(w, http.StatusInternalServerError, apiResponse{Error: "failed to parse analysis"})
		return
	}

	data, err := json.Marshal(analysis)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiResponse{Error: "failed to encode analysis"})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: data})
}
