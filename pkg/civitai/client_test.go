package civitai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"civitdl/pkg/errors"
	"civitdl/pkg/logger"
	"civitdl/pkg/retry"
)

func newTestClient(t *testing.T, handler http.Handler, attempts int) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = attempts
	cfg.Backoff = &retry.ConstantBackoff{Delay: time.Millisecond}
	cfg.Logger = logger.NewTestLogger()

	client := NewClient("test-key", 5*time.Second, cfg, logger.NewTestLogger())
	client.SetBaseURL(server.URL)
	client.SetDeliveryBaseURL(server.URL)
	return client, server
}

func writeResult(w http.ResponseWriter, inner string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"result":{"data":{"json":%s}}}`, inner)
}

func TestGetCollectionSendsBearerToken(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeResult(w, `{"collection":{"id":42,"name":"Test Set"}}`)
	}), 1)

	col, err := client.GetCollection(42)
	if err != nil {
		t.Fatalf("GetCollection() error = %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization header = %q, want %q", gotAuth, "Bearer test-key")
	}
	if col.ID != 42 || col.Name != "Test Set" {
		t.Errorf("collection = %+v, want id 42 name Test Set", col)
	}
}

func TestGetPostDecodesPayload(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/post.get" {
			t.Errorf("path = %q, want /post.get", r.URL.Path)
		}
		writeResult(w, `{"id":7,"title":"Evening Set","user":{"id":1,"username":"civit_user"}}`)
	}), 1)

	post, err := client.GetPost(7)
	if err != nil {
		t.Fatalf("GetPost() error = %v", err)
	}
	if post.Title != "Evening Set" {
		t.Errorf("post.Title = %q, want Evening Set", post.Title)
	}
	if post.User == nil || post.User.Username != "civit_user" {
		t.Errorf("post.User = %+v, want civit_user", post.User)
	}
}

func TestAuthErrorNotRetried(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}), 3)

	_, err := client.GetCollection(42)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !errors.IsAuth(err) {
		t.Errorf("error type = %v, want auth", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("request count = %d, want 1 (auth errors are fatal)", n)
	}
}

func TestServerErrorRetriedUntilSuccess(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeResult(w, `{"collection":{"id":42,"name":"Recovered"}}`)
	}), 3)

	col, err := client.GetCollection(42)
	if err != nil {
		t.Fatalf("GetCollection() error = %v, want success after retries", err)
	}
	if col.Name != "Recovered" {
		t.Errorf("collection.Name = %q, want Recovered", col.Name)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("request count = %d, want 3", n)
	}
}

func TestNonstandardServerStatusRetried(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			w.WriteHeader(599)
			return
		}
		writeResult(w, `{"collection":{"id":42,"name":"Recovered"}}`)
	}), 3)

	col, err := client.GetCollection(42)
	if err != nil {
		t.Fatalf("GetCollection() error = %v, want success after retry", err)
	}
	if col.Name != "Recovered" {
		t.Errorf("collection.Name = %q, want Recovered", col.Name)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("request count = %d, want 2", n)
	}
}

func TestNotFoundStatusMapped(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}), 1)

	_, err := client.GetPost(999)
	if !errors.IsNotFound(err) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestTRPCErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		status   int
		wantType errors.ErrorType
	}{
		{"not found", "NOT_FOUND", 404, errors.ErrorTypeNotFound},
		{"unauthorized", "UNAUTHORIZED", 401, errors.ErrorTypeAuth},
		{"forbidden", "FORBIDDEN", 403, errors.ErrorTypeAuth},
		{"internal", "INTERNAL_SERVER_ERROR", 500, errors.ErrorTypeServerError},
		{"timeout maps to retryable", "TIMEOUT", 504, errors.ErrorTypeServerError},
		{"unknown", "BAD_REQUEST", 400, errors.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprintf(w, `{"error":{"json":{"message":"boom","data":{"code":%q,"httpStatus":%d}}}}`,
					tt.code, tt.status)
			}), 1)

			_, err := client.GetCollection(42)
			if err == nil {
				t.Fatal("expected TRPC-level error")
			}
			if got := errors.TypeOf(err); got != tt.wantType {
				t.Errorf("TypeOf(err) = %v, want %v", got, tt.wantType)
			}
		})
	}
}

func TestMalformedJSONIsParsingError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>not json</html>`)
	}), 1)

	_, err := client.GetCollection(42)
	if err == nil {
		t.Fatal("expected parsing error")
	}
	if errors.TypeOf(err) != errors.ErrorTypeParsing {
		t.Errorf("error = %v, want parsing", err)
	}
}

func TestListImagesPassesCursorBack(t *testing.T) {
	var inputs []string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inputs = append(inputs, r.URL.Query().Get("input"))
		if len(inputs) == 1 {
			writeResult(w, `{"items":[{"id":1,"url":"aaa"}],"nextCursor":"cur-2"}`)
			return
		}
		writeResult(w, `{"items":[{"id":2,"url":"bbb"}],"nextCursor":null}`)
	}), 1)

	target := CollectionTarget(42)
	first, err := client.ListImages(target, nil)
	if err != nil {
		t.Fatalf("ListImages(first) error = %v", err)
	}
	if !first.HasMore() {
		t.Fatal("first page should report more results")
	}

	second, err := client.ListImages(target, first.NextCursor)
	if err != nil {
		t.Fatalf("ListImages(second) error = %v", err)
	}
	if second.HasMore() {
		t.Error("second page should be the last")
	}

	// First request carries the undefined-cursor meta, later ones the token
	var firstInput map[string]interface{}
	if err := json.Unmarshal([]byte(inputs[0]), &firstInput); err != nil {
		t.Fatalf("first input is not JSON: %v", err)
	}
	if _, ok := firstInput["meta"]; !ok {
		t.Error("first page input missing meta block")
	}

	var secondInput struct {
		JSON struct {
			Cursor string `json:"cursor"`
		} `json:"json"`
	}
	if err := json.Unmarshal([]byte(inputs[1]), &secondInput); err != nil {
		t.Fatalf("second input is not JSON: %v", err)
	}
	if secondInput.JSON.Cursor != "cur-2" {
		t.Errorf("second page cursor = %q, want cur-2", secondInput.JSON.Cursor)
	}
}

func TestGetGenerationData(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, `{"meta":{"prompt":"a castle","negativePrompt":"blurry","steps":30},
			"resources":[{"modelId":5,"modelName":"DreamShaper","modelType":"Checkpoint"}]}`)
	}), 1)

	gen, err := client.GetGenerationData(100)
	if err != nil {
		t.Fatalf("GetGenerationData() error = %v", err)
	}
	if gen.Meta == nil || gen.Meta.Prompt != "a castle" {
		t.Errorf("gen.Meta = %+v, want prompt 'a castle'", gen.Meta)
	}
	if len(gen.Resources) != 1 || gen.Resources[0].ModelName != "DreamShaper" {
		t.Errorf("gen.Resources = %+v, want one DreamShaper entry", gen.Resources)
	}
}

func TestGetImageTags(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, `[{"id":1,"name":"landscape"},{"id":2,"name":"castle"}]`)
	}), 1)

	tags, err := client.GetImageTags(100)
	if err != nil {
		t.Fatalf("GetImageTags() error = %v", err)
	}
	if len(tags) != 2 || tags[0].Name != "landscape" {
		t.Errorf("tags = %+v, want landscape and castle", tags)
	}
}

func TestDownloadFileRetriesTransientFailures(t *testing.T) {
	var calls int32
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("media-bytes"))
	}), 3)

	var buf bytes.Buffer
	size, err := client.DownloadFile(server.URL+"/file", func(r io.Reader) error {
		_, err := io.Copy(&buf, r)
		return err
	})
	if err != nil {
		t.Fatalf("DownloadFile() error = %v", err)
	}
	if buf.String() != "media-bytes" {
		t.Errorf("data = %q, want media-bytes", buf.String())
	}
	if size != int64(len("media-bytes")) {
		t.Errorf("size = %d, want %d", size, len("media-bytes"))
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("request count = %d, want 2", n)
	}
}

func TestDownloadFileSinkErrorNotRetried(t *testing.T) {
	var calls int32
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte("media-bytes"))
	}), 3)

	// A sink failure is a local write problem; re-requesting the file
	// cannot fix it, so the error must surface without further attempts.
	sinkErr := errors.New(errors.ErrorTypeWrite, "disk full")
	_, err := client.DownloadFile(server.URL+"/file", func(r io.Reader) error {
		return sinkErr
	})
	if err == nil {
		t.Fatal("expected consumer error to surface")
	}
	if errors.TypeOf(err) != errors.ErrorTypeWrite {
		t.Errorf("error = %v, want write", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("request count = %d, want 1 (write errors are fatal)", n)
	}
}

func TestEmptyResultPayload(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"data":{}}}`)
	}), 1)

	_, err := client.GetCollection(42)
	if err == nil {
		t.Fatal("expected error for missing result payload")
	}
	if errors.TypeOf(err) != errors.ErrorTypeParsing {
		t.Errorf("error = %v, want parsing", err)
	}
}
