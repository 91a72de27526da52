package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	httpctrl "github.com/secmon-lab/vidqa/pkg/controller/http"
	"github.com/secmon-lab/vidqa/pkg/domain/model"
)

type mockAnswerUseCase struct {
	answerFn func(ctx context.Context, req model.AskRequest) (*model.Answer, error)
	calls    int
}

func (m *mockAnswerUseCase) Answer(ctx context.Context, req model.AskRequest) (*model.Answer, error) {
	m.calls++
	return m.answerFn(ctx, req)
}

func validatingUseCase(text string) *mockAnswerUseCase {
	return &mockAnswerUseCase{answerFn: func(_ context.Context, req model.AskRequest) (*model.Answer, error) {
		if _, err := req.Validate(); err != nil {
			return nil, err
		}
		return &model.Answer{Text: text, State: model.StateDone}, nil
	}}
}

func post(t *testing.T, srv http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &out)).Required()
	return out
}

func TestAsk(t *testing.T) {
	t.Run("returns answer", func(t *testing.T) {
		uc := validatingUseCase("Cats are mammals.")
		srv := httpctrl.New(uc)

		w := post(t, srv, `{"video_id":"abc123","question":"What are cats?"}`)
		gt.Value(t, w.Code).Equal(http.StatusOK)
		gt.String(t, w.Header().Get("Content-Type")).Contains("application/json")
		gt.Value(t, decode(t, w)).Equal(map[string]string{"answer": "Cats are mammals."})
	})

	t.Run("failed pipeline is still an answer", func(t *testing.T) {
		uc := &mockAnswerUseCase{answerFn: func(context.Context, model.AskRequest) (*model.Answer, error) {
			return &model.Answer{
				Text:   model.DisabledTranscriptMessage,
				State:  model.StateFailed,
				Reason: model.FailureDisabled,
			}, nil
		}}
		srv := httpctrl.New(uc)

		w := post(t, srv, `{"video_id":"xyz999","question":"Anything?"}`)
		gt.Value(t, w.Code).Equal(http.StatusOK)
		gt.Value(t, decode(t, w)["answer"]).Equal("Transcript is disabled for this video.")
	})

	t.Run("invalid JSON", func(t *testing.T) {
		uc := validatingUseCase("unused")
		srv := httpctrl.New(uc)

		w := post(t, srv, `{"video_id":`)
		gt.Value(t, w.Code).Equal(http.StatusBadRequest)
		gt.Value(t, decode(t, w)).Equal(map[string]string{"error": "Invalid JSON input"})
		gt.Number(t, uc.calls).Equal(0)
	})

	t.Run("trailing data after object", func(t *testing.T) {
		for _, body := range []string{
			`{"video_id":"abc123","question":"q"} }garbage{`,
			`{"video_id":"abc123","question":"q"}{"video_id":"abc123","question":"q"}`,
		} {
			uc := validatingUseCase("unused")
			srv := httpctrl.New(uc)

			w := post(t, srv, body)
			gt.Value(t, w.Code).Equal(http.StatusBadRequest)
			gt.Value(t, decode(t, w)["error"]).Equal(model.InvalidJSONMessage)
			gt.Number(t, uc.calls).Equal(0)
		}
	})

	t.Run("trailing whitespace is accepted", func(t *testing.T) {
		srv := httpctrl.New(validatingUseCase("Cats are mammals."))

		w := post(t, srv, "{\"video_id\":\"abc123\",\"question\":\"q\"}\n\t ")
		gt.Value(t, w.Code).Equal(http.StatusOK)
		gt.Value(t, decode(t, w)["answer"]).Equal("Cats are mammals.")
	})

	t.Run("missing field", func(t *testing.T) {
		srv := httpctrl.New(validatingUseCase("unused"))

		w := post(t, srv, `{"video_id":"abc123"}`)
		gt.Value(t, w.Code).Equal(http.StatusBadRequest)
		gt.Value(t, decode(t, w)).Equal(map[string]string{"error": "Missing video_id or question"})
	})

	t.Run("malformed video id", func(t *testing.T) {
		srv := httpctrl.New(validatingUseCase("unused"))

		w := post(t, srv, `{"video_id":"a b","question":"q"}`)
		gt.Value(t, w.Code).Equal(http.StatusBadRequest)
		gt.Value(t, decode(t, w)["error"]).Equal("Invalid video_id: a b")
	})

	t.Run("body too large", func(t *testing.T) {
		uc := validatingUseCase("unused")
		srv := httpctrl.New(uc, httpctrl.WithMaxBodyBytes(16))

		w := post(t, srv, `{"video_id":"abc123","question":"What are cats?"}`)
		gt.Value(t, w.Code).Equal(http.StatusBadRequest)
		gt.Value(t, decode(t, w)["error"]).Equal(model.InvalidJSONMessage)
		gt.Number(t, uc.calls).Equal(0)
	})

	t.Run("unexpected error hides detail", func(t *testing.T) {
		uc := &mockAnswerUseCase{answerFn: func(context.Context, model.AskRequest) (*model.Answer, error) {
			return nil, errors.New("token=abcdef leaked")
		}}
		srv := httpctrl.New(uc)

		w := post(t, srv, `{"video_id":"abc123","question":"q"}`)
		gt.Value(t, w.Code).Equal(http.StatusInternalServerError)
		gt.Bool(t, strings.Contains(w.Body.String(), "abcdef")).False()
	})

	t.Run("GET is not allowed", func(t *testing.T) {
		srv := httpctrl.New(validatingUseCase("unused"))
		req := httptest.NewRequest(http.MethodGet, "/ask", nil)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		gt.Value(t, w.Code).Equal(http.StatusMethodNotAllowed)
	})
}

func TestHealth(t *testing.T) {
	srv := httpctrl.New(validatingUseCase("unused"))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	gt.Value(t, w.Code).Equal(http.StatusOK)
	body, err := io.ReadAll(w.Body)
	gt.NoError(t, err)
	gt.Value(t, string(body)).Equal("ok")
}

func TestCORS(t *testing.T) {
	t.Run("preflight from extension", func(t *testing.T) {
		srv := httpctrl.New(validatingUseCase("unused"))
		req := httptest.NewRequest(http.MethodOptions, "/ask", nil)
		req.Header.Set("Origin", "chrome-extension://abcdefghijklmnop")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)

		gt.Value(t, w.Header().Get("Access-Control-Allow-Origin")).Equal("*")
		gt.String(t, w.Header().Get("Access-Control-Allow-Methods")).Contains(http.MethodPost)
	})

	t.Run("restricted origins", func(t *testing.T) {
		srv := httpctrl.New(validatingUseCase("ok"), httpctrl.WithAllowedOrigins("https://allowed.example"))

		req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"video_id":"abc123","question":"q"}`))
		req.Header.Set("Origin", "https://other.example")
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		gt.Value(t, w.Header().Get("Access-Control-Allow-Origin")).Equal("")

		req = httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"video_id":"abc123","question":"q"}`))
		req.Header.Set("Origin", "https://allowed.example")
		w = httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		gt.Value(t, w.Header().Get("Access-Control-Allow-Origin")).Equal("https://allowed.example")
	})
}
