package civitai

import (
	"encoding/json"
	"fmt"
	"time"
)

// TargetType distinguishes the two kinds of downloadable containers.
type TargetType string

const (
	TargetTypeCollection TargetType = "collection"
	TargetTypePost       TargetType = "post"
)

// Target identifies one collection or post requested on the command line.
// It is immutable for the duration of a run.
type Target struct {
	Type TargetType
	ID   int64
}

// CollectionTarget builds a collection target.
func CollectionTarget(id int64) Target {
	return Target{Type: TargetTypeCollection, ID: id}
}

// PostTarget builds a post target.
func PostTarget(id int64) Target {
	return Target{Type: TargetTypePost, ID: id}
}

func (t Target) String() string {
	return fmt.Sprintf("%s/%d", t.Type, t.ID)
}

// trpcEnvelope is the standard TRPC response wrapper:
// {"result":{"data":{"json": ...}}}
type trpcEnvelope struct {
	Result struct {
		Data struct {
			JSON json.RawMessage `json:"json"`
		} `json:"data"`
	} `json:"result"`
	Error *trpcError `json:"error,omitempty"`
}

// trpcError is the TRPC error wrapper returned with non-2xx responses
// and some 200 responses.
type trpcError struct {
	JSON struct {
		Message string `json:"message"`
		Data    struct {
			Code       string `json:"code"`
			HTTPStatus int    `json:"httpStatus"`
		} `json:"data"`
	} `json:"json"`
}

// User is the owner of an image, collection or post.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// ImageStats carries the engagement counters attached to an image.
type ImageStats struct {
	LikeCount    int `json:"likeCountAllTime"`
	LaughCount   int `json:"laughCountAllTime"`
	HeartCount   int `json:"heartCountAllTime"`
	CryCount     int `json:"cryCountAllTime"`
	CommentCount int `json:"commentCountAllTime"`
}

// Image is one media entry (image or video) from a listing page or a
// detail response. Field presence depends on what the API returned; absent
// fields keep their zero values.
type Image struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	URL         string      `json:"url"`
	Hash        string      `json:"hash"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	MimeType    string      `json:"mimeType"`
	Type        string      `json:"type"`
	NSFWLevel   int         `json:"nsfwLevel"`
	CreatedAt   *time.Time  `json:"createdAt"`
	PublishedAt *time.Time  `json:"publishedAt"`
	PostID      int64       `json:"postId"`
	User        *User       `json:"user"`
	Stats       *ImageStats `json:"stats"`
}

// IsVideo reports whether the item is a video, based on its MIME type
// with the API's type field as fallback.
func (i *Image) IsVideo() bool {
	if i.MimeType != "" {
		return len(i.MimeType) > 6 && i.MimeType[:6] == "video/"
	}
	return i.Type == "video"
}

// ImagePage is one page of the image.getInfinite listing.
type ImagePage struct {
	Items []Image `json:"items"`
	// NextCursor is an opaque pagination token passed back verbatim on the
	// next request. The API has used both string and numeric cursors.
	NextCursor json.RawMessage `json:"nextCursor"`
}

// HasMore reports whether another page follows this one.
func (p *ImagePage) HasMore() bool {
	s := string(p.NextCursor)
	return s != "" && s != "null"
}

// Collection is the target-level info for a collection.
type Collection struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Type        string     `json:"type"`
	NSFW        bool       `json:"nsfw"`
	NSFWLevel   int        `json:"nsfwLevel"`
	CreatedAt   *time.Time `json:"createdAt"`
	User        *User      `json:"user"`
}

// collectionResponse wraps the collection object the way collection.getById
// returns it, alongside the caller's permissions.
type collectionResponse struct {
	Collection Collection `json:"collection"`
}

// Post is the target-level info for a post.
type Post struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Detail      string     `json:"detail"`
	NSFWLevel   int        `json:"nsfwLevel"`
	PublishedAt *time.Time `json:"publishedAt"`
	User        *User      `json:"user"`
}

// GenerationMeta holds the prompt block of an image's generation data.
type GenerationMeta struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negativePrompt"`
	CFGScale       float64 `json:"cfgScale"`
	Steps          int     `json:"steps"`
	Sampler        string  `json:"sampler"`
	Seed           int64   `json:"seed"`
}

// GenerationResource is one model used to generate an image.
type GenerationResource struct {
	ModelID     int64   `json:"modelId"`
	ModelName   string  `json:"modelName"`
	ModelType   string  `json:"modelType"`
	VersionID   int64   `json:"versionId"`
	VersionName string  `json:"versionName"`
	Strength    float64 `json:"strength"`
}

// GenerationData is the image.getGenerationData response: prompts plus the
// list of models involved.
type GenerationData struct {
	Meta      *GenerationMeta      `json:"meta"`
	Resources []GenerationResource `json:"resources"`
}

// VotableTag is one tag attached to an image.
type VotableTag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
