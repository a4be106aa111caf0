package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"golang.org/x/time/rate"
)

const (
	defaultModel   = "gpt-4o-mini"
	historyLimit   = 6
	followUpTokens = 200
)

// Runner executes a validated call. The server implements it by submitting the call to the
// command dispatcher, so assistant changes go through the single writer.
type Runner interface {
	RunCall(ctx context.Context, call Call) (Report, error)
}

type RunnerFunc func(ctx context.Context, call Call) (Report, error)

func (f RunnerFunc) RunCall(ctx context.Context, call Call) (Report, error) { return f(ctx, call) }

type Config struct {
	APIKey             string
	BaseURL            string
	Model              string
	MaxTokens          int
	RequestsPerMinute  int
	CurrentProjectOnly bool
	Logger             *slog.Logger
}

// Client is a chat session with the model. It keeps a short history so follow-up questions
// have context.
type Client struct {
	api       *openai.Client
	model     string
	maxTokens int
	onlyMode  bool
	limiter   *rate.Limiter
	runner    Runner
	logger    *slog.Logger

	mu      sync.Mutex
	history []openai.ChatCompletionMessage
}

func NewClient(cfg Config, runner Runner) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("missing OpenAI API key (set OPENAI_API_KEY or assistant.apiKeyEnv)")
	}
	if runner == nil {
		return nil, errors.New("assistant: nil runner")
	}
	oc := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		api:       openai.NewClientWithConfig(oc),
		model:     model,
		maxTokens: cfg.MaxTokens,
		onlyMode:  cfg.CurrentProjectOnly,
		limiter:   rate.NewLimiter(limit, 1),
		runner:    runner,
		logger:    logger,
	}, nil
}

// Tool is the manipular_datos function definition offered to the model.
func Tool() openai.Tool {
	str := jsonschema.Definition{Type: jsonschema.String}
	tags := jsonschema.Definition{Type: jsonschema.Array, Items: &str}
	priority := jsonschema.Definition{Type: jsonschema.String, Enum: []string{"alta", "media", "baja"}}
	subtask := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"title":       str,
			"description": str,
			"priority":    priority,
			"dueDate":     str,
			"tags":        tags,
		},
	}
	item := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"tipo":        {Type: jsonschema.String, Enum: []string{"escenario", "proyecto", "tarea"}, Description: "Tipo de elemento en crear_estructura_completa"},
			"id":          {Type: jsonschema.Integer, Description: "ID de la tarea a editar, eliminar o marcar"},
			"title":       {Type: jsonschema.String, Description: "Nombre o texto"},
			"description": str,
			"icon":        {Type: jsonschema.String, Description: "Emoji"},
			"priority":    priority,
			"dueDate":     {Type: jsonschema.String, Description: "Fecha YYYY-MM-DD o YYYY-MM-DDTHH:MM"},
			"tags":        tags,
			"completed":   {Type: jsonschema.Boolean},
			"parentId":    {Type: jsonschema.Integer, Description: "ID de la tarea padre"},
			"scenarioId":  {Type: jsonschema.Integer},
			"projectId":   {Type: jsonschema.Integer},
			"subtasks":    {Type: jsonschema.Array, Items: &subtask},
		},
	}
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        FunctionName,
			Description: "Consulta y modifica escenarios, proyectos y tareas. Genera contenido específico para cada proyecto, no plantillas.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"operacion": {
						Type:        jsonschema.String,
						Enum:        []string{string(OpGet), string(OpAdd), string(OpEdit), string(OpDelete), string(OpMarkDone), string(OpMarkPending), string(OpCreateStructure)},
						Description: "Operación a realizar. crear_estructura_completa genera escenario, proyectos y tareas de una vez.",
					},
					"tipo": {
						Type: jsonschema.String,
						Enum: []string{string(EntityTasks), string(EntityProjects), string(EntityScenarios), string(EntityStructure)},
					},
					"tema":  {Type: jsonschema.String, Description: "Tema del proyecto a generar"},
					"datos": {Type: jsonschema.Array, Items: &item},
				},
				Required: []string{"operacion", "tipo"},
			},
		},
	}
}

func (c *Client) systemPrompt(now time.Time) string {
	mode := "Puedes trabajar con todos los escenarios y proyectos."
	if c.onlyMode {
		mode = "Trabaja solo con el proyecto actual; no crees escenarios ni proyectos."
	}
	return fmt.Sprintf("Eres un asistente de gestión de tareas. Hoy es %s. %s Usa la función %s para consultar o modificar datos y responde en español de forma concisa.",
		now.Format(time.DateOnly), mode, FunctionName)
}

func (c *Client) complete(ctx context.Context, msgs []openai.ChatCompletionMessage, tools []openai.Tool, maxTokens int) (openai.ChatCompletionMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return openai.ChatCompletionMessage{}, err
	}
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
		Tools:    tools,
	}
	if maxTokens > 0 {
		req.MaxCompletionTokens = maxTokens
	}
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return openai.ChatCompletionMessage{}, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionMessage{}, errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message, nil
}

// Ask sends one user message. When the model calls manipular_datos the calls are executed
// through the runner, their results are sent back, and the model's follow-up is returned.
func (c *Client) Ask(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("empty message")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: c.systemPrompt(time.Now())}}
	msgs = append(msgs, c.history...)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	reply, err := c.complete(ctx, msgs, []openai.Tool{Tool()}, c.maxTokens)
	if err != nil {
		return "", err
	}
	answer := reply.Content
	if len(reply.ToolCalls) > 0 {
		msgs = append(msgs, reply)
		var results []string
		for _, tc := range reply.ToolCalls {
			out := c.runTool(ctx, tc)
			results = append(results, out)
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    out,
				Name:       tc.Function.Name,
				ToolCallID: tc.ID,
			})
		}
		tokens := followUpTokens
		if c.maxTokens > 0 && c.maxTokens < tokens {
			tokens = c.maxTokens
		}
		final, err := c.complete(ctx, msgs, nil, tokens)
		switch {
		case err != nil:
			c.logger.Warn("assistant follow-up failed", "err", err)
			answer = strings.Join(results, "\n")
		case strings.TrimSpace(final.Content) == "":
			answer = strings.Join(results, "\n")
		default:
			answer = final.Content
		}
	}

	c.history = append(c.history,
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message},
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: answer},
	)
	if n := len(c.history); n > historyLimit {
		c.history = append([]openai.ChatCompletionMessage(nil), c.history[n-historyLimit:]...)
	}
	return answer, nil
}

func (c *Client) runTool(ctx context.Context, tc openai.ToolCall) string {
	if tc.Function.Name != FunctionName {
		return "❌ Función no reconocida."
	}
	call, err := ParseCall(tc.Function.Arguments)
	if err != nil {
		return "❌ " + err.Error()
	}
	c.logger.Info("assistant call", "operation", call.Operation, "entity", call.EntityType, "items", len(call.Items))
	rep, err := c.runner.RunCall(ctx, call)
	if err != nil {
		return "❌ Error ejecutando operación: " + err.Error()
	}
	if len(rep.Messages) == 0 {
		return "Sin cambios."
	}
	return rep.Text()
}
