package retriever_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/vidqa/pkg/domain/model"
	"github.com/secmon-lab/vidqa/pkg/service/llm"
	"github.com/secmon-lab/vidqa/pkg/service/retriever"
	"github.com/secmon-lab/vidqa/pkg/service/vectorindex"
)

type failingEmbedder struct{ err error }

func (f *failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, f.err
}

func TestNew(t *testing.T) {
	_, err := retriever.New(nil, 2)
	gt.Value(t, err).NotNil()

	_, err = retriever.New(llm.NewHashEmbedder(16), 0)
	gt.Value(t, err).NotNil()

	r, err := retriever.New(llm.NewHashEmbedder(16), retriever.DefaultK)
	gt.NoError(t, err).Required()
	gt.Value(t, r.K()).Equal(2)
}

func TestRetrieve(t *testing.T) {
	embedder := llm.NewHashEmbedder(256)
	chunks := []model.Chunk{
		{Index: 0, Text: "rockets burn liquid fuel at launch"},
		{Index: 1, Text: "cats are small furry mammals"},
		{Index: 2, Text: "the weather was sunny all week"},
		{Index: 3, Text: "many cats sleep most of the day"},
	}
	idx, err := vectorindex.Build(t.Context(), chunks, embedder)
	gt.NoError(t, err).Required()
	defer idx.Release()

	r, err := retriever.New(embedder, 2)
	gt.NoError(t, err).Required()

	t.Run("returns k most relevant chunks", func(t *testing.T) {
		got, err := r.Retrieve(t.Context(), idx, "cats mammals")
		gt.NoError(t, err).Required()
		gt.Array(t, got).Length(2)
		gt.Value(t, got[0].Index).Equal(1)
		gt.Value(t, got[1].Index).Equal(3)
	})

	t.Run("embedding failure propagates", func(t *testing.T) {
		providerErr := errors.New("network down")
		failing, err := retriever.New(&failingEmbedder{err: providerErr}, 2)
		gt.NoError(t, err).Required()

		_, err = failing.Retrieve(t.Context(), idx, "cats")
		gt.Error(t, err).Is(providerErr)
	})
}

func TestRetrieve_EmptyIndex(t *testing.T) {
	r, err := retriever.New(llm.NewHashEmbedder(16), 2)
	gt.NoError(t, err).Required()

	_, err = r.Retrieve(t.Context(), nil, "anything")
	gt.Error(t, err).Is(model.ErrEmptyIndex)

	idx, err := vectorindex.New([]model.Chunk{{Text: "a"}}, [][]float32{{1}})
	gt.NoError(t, err).Required()
	idx.Release()

	_, err = r.Retrieve(t.Context(), idx, "anything")
	gt.Error(t, err).Is(model.ErrEmptyIndex)
}

func TestJoinContext(t *testing.T) {
	got := retriever.JoinContext([]model.Chunk{{Text: "first"}, {Text: "second"}})
	gt.Value(t, got).Equal("first\n\nsecond")
	gt.Value(t, retriever.JoinContext(nil)).Equal("")
}
