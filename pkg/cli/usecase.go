package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vidqa/pkg/cli/config"
	"github.com/secmon-lab/vidqa/pkg/usecase"
	"github.com/secmon-lab/vidqa/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// pipelineConfig groups the flag sets needed to build the answering pipeline
type pipelineConfig struct {
	llm        config.LLM
	transcript config.Transcript
	pipeline   config.Pipeline
}

func (x *pipelineConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, x.llm.Flags()...)
	flags = append(flags, x.transcript.Flags()...)
	flags = append(flags, x.pipeline.Flags()...)
	return flags
}

func (x *pipelineConfig) Configure(ctx context.Context, c *cli.Command) (*usecase.UseCases, error) {
	settings, err := x.pipeline.Configure(c)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure pipeline")
	}

	source, err := x.transcript.Configure()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure transcript source")
	}

	embedder, generator, err := x.llm.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure LLM")
	}

	uc, err := usecase.New(source, embedder, generator,
		usecase.WithAnswerOptions(settings.AnswerOptions()...),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create use cases")
	}

	logging.Default().Info("Pipeline configured",
		"llm", x.llm,
		"transcript", x.transcript,
		"pipeline", settings,
	)
	return uc, nil
}
