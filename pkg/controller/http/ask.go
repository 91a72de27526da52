package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vidqa/pkg/domain/model"
	"github.com/secmon-lab/vidqa/pkg/utils/errutil"
	"github.com/secmon-lab/vidqa/pkg/utils/safe"
)

type askResponse struct {
	Answer string `json:"answer"`
}

// askHandler serves POST /ask. Pipeline failures are answers, not HTTP errors: only
// malformed requests get a 4xx.
func askHandler(uc AnswerUseCase, maxBodyBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		req, err := decodeAskRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			errutil.HandleHTTP(ctx, w, &model.InputError{Msg: model.InvalidJSONMessage}, http.StatusBadRequest)
			return
		}

		answer, err := uc.Answer(ctx, *req)
		if err != nil {
			if errors.Is(err, model.ErrClientInput) {
				errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
				return
			}
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to answer"), http.StatusInternalServerError)
			return
		}

		data, err := json.Marshal(askResponse{Answer: answer.Text})
		if err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to marshal answer"), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		safe.Write(ctx, w, data)
	}
}

// decodeAskRequest reads exactly one JSON object from body. Trailing data other than
// whitespace makes the body invalid.
func decodeAskRequest(body io.Reader) (*model.AskRequest, error) {
	dec := json.NewDecoder(body)

	var req model.AskRequest
	if err := dec.Decode(&req); err != nil {
		return nil, goerr.Wrap(err, "failed to decode request body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, goerr.New("unexpected data after request body")
	}
	return &req, nil
}
