package vision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agent-api/core"
	"github.com/agent-api/core/agent"
	"github.com/agent-api/core/agent/bootstrap"
	"github.com/agent-api/ollama"
	"github.com/go-logr/logr"
)

// ollamaBackend runs a local vision model through an Ollama agent.
type ollamaBackend struct {
	agent *agent.Agent
}

func NewOllamaBackend(ctx context.Context, logger *slog.Logger, host string, port int, modelID string) (Backend, error) {
	lgr := logr.FromSlogHandler(logger.Handler())
	provider := ollama.NewProvider(&ollama.ProviderOpts{
		Logger:  &lgr,
		BaseURL: host,
		Port:    port,
	})

	model := &core.Model{ID: modelID}
	provider.UseModel(ctx, model)

	visionAgent, err := agent.NewAgent(
		bootstrap.WithProvider(provider),
		bootstrap.WithLogger(&lgr),
		bootstrap.WithSystemPrompt("You are a visual analysis assistant specialized in detailed image descriptions of video frames."),
	)
	if err != nil {
		return nil, err
	}
	return &ollamaBackend{agent: visionAgent}, nil
}

func (o *ollamaBackend) Name() string { return "ollama" }

func (o *ollamaBackend) Describe(ctx context.Context, imagePath, prompt string) (string, error) {
	response, err := o.agent.Run(ctx,
		agent.WithInput(prompt),
		agent.WithImagePath(imagePath),
	)
	if err != nil {
		return "", err
	}
	if len(response.Messages) == 0 {
		return "", fmt.Errorf("no response messages received from model")
	}
	return response.Messages[len(response.Messages)-1].Content, nil
}
