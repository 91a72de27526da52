package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vidqa/pkg/domain/model"
	"github.com/urfave/cli/v3"
)

func cmdAsk() *cli.Command {
	var videoID string
	var question string
	var showContext bool
	var pipelineCfg pipelineConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "video-id",
			Usage:       "YouTube video ID or URL",
			Required:    true,
			Destination: &videoID,
		},
		&cli.StringFlag{
			Name:        "question",
			Aliases:     []string{"q"},
			Usage:       "Question about the video",
			Required:    true,
			Destination: &question,
		},
		&cli.BoolFlag{
			Name:        "show-context",
			Usage:       "Print the transcript chunks the answer was generated from",
			Destination: &showContext,
		},
	}
	flags = append(flags, pipelineCfg.Flags()...)

	return &cli.Command{
		Name:  "ask",
		Usage: "Answer one question and exit",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, err := pipelineCfg.Configure(ctx, c)
			if err != nil {
				return err
			}

			answer, err := uc.Answer.Answer(ctx, model.AskRequest{VideoID: videoID, Question: question})
			if err != nil {
				return goerr.Wrap(err, "invalid question")
			}

			printAnswer(os.Stdout, answer, showContext)
			return nil
		},
	}
}

func printAnswer(w io.Writer, answer *model.Answer, showContext bool) {
	switch {
	case answer.Succeeded() && !answer.Refused:
		color.New(color.FgGreen).Fprintln(w, answer.Text)
	case answer.Succeeded():
		color.New(color.FgYellow).Fprintln(w, answer.Text)
	default:
		color.New(color.FgRed).Fprintf(w, "%s\n", answer.Text)
		color.New(color.Faint).Fprintf(w, "(%s at %s)\n", answer.Reason, answer.FailedAt)
	}

	if !showContext {
		return
	}
	for _, chunk := range answer.Context {
		color.New(color.FgCyan).Fprintf(w, "\n--- chunk %d ---\n", chunk.Index)
		fmt.Fprintln(w, chunk.Text)
	}
}
