package civitai

import (
	"encoding/json"
	"net/url"
	"strings"
	"testing"
)

// decodeInput extracts and parses the input query parameter of an
// endpoint URL.
func decodeInput(t *testing.T, endpoint string) map[string]interface{} {
	t.Helper()

	u, err := url.Parse(endpoint)
	if err != nil {
		t.Fatalf("endpoint is not a valid URL: %v", err)
	}
	raw := u.Query().Get("input")
	if raw == "" {
		t.Fatalf("endpoint %q has no input parameter", endpoint)
	}

	var input map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		t.Fatalf("input is not valid JSON: %v\ninput: %s", err, raw)
	}
	return input
}

func jsonPayload(t *testing.T, input map[string]interface{}) map[string]interface{} {
	t.Helper()
	payload, ok := input["json"].(map[string]interface{})
	if !ok {
		t.Fatalf("input missing json payload: %v", input)
	}
	return payload
}

func TestCollectionURL(t *testing.T) {
	endpoint := GetCollectionURL(12345)
	if !strings.HasPrefix(endpoint, BaseURL+"/collection.getById?input=") {
		t.Errorf("endpoint = %q, want collection.getById procedure", endpoint)
	}

	payload := jsonPayload(t, decodeInput(t, endpoint))
	if payload["id"] != float64(12345) {
		t.Errorf("payload id = %v, want 12345", payload["id"])
	}
	if payload["authed"] != true {
		t.Errorf("payload authed = %v, want true", payload["authed"])
	}
}

func TestPostURL(t *testing.T) {
	endpoint := GetPostURL(67890)
	if !strings.Contains(endpoint, "/post.get?input=") {
		t.Errorf("endpoint = %q, want post.get procedure", endpoint)
	}

	payload := jsonPayload(t, decodeInput(t, endpoint))
	if payload["id"] != float64(67890) {
		t.Errorf("payload id = %v, want 67890", payload["id"])
	}
}

func TestImageTagsURLUsesImageType(t *testing.T) {
	endpoint := GetImageTagsURL(55)
	if !strings.Contains(endpoint, "/tag.getVotableTags?input=") {
		t.Errorf("endpoint = %q, want tag.getVotableTags procedure", endpoint)
	}

	payload := jsonPayload(t, decodeInput(t, endpoint))
	if payload["type"] != "image" {
		t.Errorf("payload type = %v, want image", payload["type"])
	}
	if payload["id"] != float64(55) {
		t.Errorf("payload id = %v, want 55", payload["id"])
	}
}

func TestImagePageURLFirstPage(t *testing.T) {
	tests := []struct {
		name    string
		target  Target
		wantKey string
	}{
		{"collection", CollectionTarget(42), "collectionId"},
		{"post", PostTarget(7), "postId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			endpoint := GetImagePageURL(tt.target, nil)
			if !strings.Contains(endpoint, "/image.getInfinite?input=") {
				t.Errorf("endpoint = %q, want image.getInfinite procedure", endpoint)
			}

			input := decodeInput(t, endpoint)
			payload := jsonPayload(t, input)

			if payload[tt.wantKey] != float64(tt.target.ID) {
				t.Errorf("payload[%s] = %v, want %d", tt.wantKey, payload[tt.wantKey], tt.target.ID)
			}
			if payload["browsingLevel"] != float64(BrowsingLevelAll) {
				t.Errorf("browsingLevel = %v, want %d", payload["browsingLevel"], BrowsingLevelAll)
			}

			// First page: null cursor plus the undefined-cursor meta block
			if cursor, ok := payload["cursor"]; !ok || cursor != nil {
				t.Errorf("first page cursor = %v, want explicit null", cursor)
			}
			meta, ok := input["meta"].(map[string]interface{})
			if !ok {
				t.Fatal("first page input missing meta block")
			}
			values, ok := meta["values"].(map[string]interface{})
			if !ok {
				t.Fatal("meta missing values")
			}
			cursorMeta, ok := values["cursor"].([]interface{})
			if !ok || len(cursorMeta) != 1 || cursorMeta[0] != "undefined" {
				t.Errorf(`meta cursor = %v, want ["undefined"]`, values["cursor"])
			}
		})
	}
}

func TestImagePageURLCollectionFilters(t *testing.T) {
	payload := jsonPayload(t, decodeInput(t, GetImagePageURL(CollectionTarget(42), nil)))

	if payload["period"] != "AllTime" {
		t.Errorf("period = %v, want AllTime", payload["period"])
	}
	if payload["sort"] != "Newest" {
		t.Errorf("sort = %v, want Newest", payload["sort"])
	}
	include, ok := payload["include"].([]interface{})
	if !ok || len(include) != 1 || include[0] != "cosmetics" {
		t.Errorf(`include = %v, want ["cosmetics"]`, payload["include"])
	}
}

func TestImagePageURLPostHasNoCollectionFilters(t *testing.T) {
	payload := jsonPayload(t, decodeInput(t, GetImagePageURL(PostTarget(7), nil)))

	for _, key := range []string{"period", "sort", "include", "collectionId"} {
		if _, ok := payload[key]; ok {
			t.Errorf("post payload unexpectedly contains %q", key)
		}
	}
}

func TestImagePageURLLaterPageCarriesCursor(t *testing.T) {
	endpoint := GetImagePageURL(CollectionTarget(42), json.RawMessage(`"opaque-token"`))

	input := decodeInput(t, endpoint)
	if _, ok := input["meta"]; ok {
		t.Error("later page input should not carry the meta block")
	}
	payload := jsonPayload(t, input)
	if payload["cursor"] != "opaque-token" {
		t.Errorf("cursor = %v, want opaque-token", payload["cursor"])
	}
}

func TestImagePageURLNumericCursor(t *testing.T) {
	payload := jsonPayload(t, decodeInput(t, GetImagePageURL(PostTarget(7), json.RawMessage(`123456`))))
	if payload["cursor"] != float64(123456) {
		t.Errorf("cursor = %v, want 123456", payload["cursor"])
	}
}

func TestResolveMediaURL(t *testing.T) {
	tests := []struct {
		name     string
		urlOrKey string
		want     string
	}{
		{
			name:     "absolute https URL passes through",
			urlOrKey: "https://cdn.example.com/path/file.jpg",
			want:     "https://cdn.example.com/path/file.jpg",
		},
		{
			name:     "absolute http URL passes through",
			urlOrKey: "http://cdn.example.com/file.mp4",
			want:     "http://cdn.example.com/file.mp4",
		},
		{
			name:     "bare key joins against delivery base",
			urlOrKey: "abc123-def456",
			want:     "https://image.civitai.com/acct/abc123-def456/100.jpg",
		},
		{
			name:     "empty key resolves to nothing",
			urlOrKey: "",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveMediaURL(DeliveryBaseURL, tt.urlOrKey, "acct", "100.jpg")
			if got != tt.want {
				t.Errorf("ResolveMediaURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestImagePageURLIsQueryEscaped(t *testing.T) {
	endpoint := GetImagePageURL(CollectionTarget(42), nil)
	rawQuery := endpoint[strings.Index(endpoint, "input=")+len("input="):]
	if strings.ContainsAny(rawQuery, `{}" `) {
		t.Errorf("input parameter not escaped: %q", rawQuery)
	}
}
