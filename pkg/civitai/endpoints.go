package civitai

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"
)

const (
	// BaseURL is the root of CivitAI's TRPC API.
	BaseURL = "https://civitai.com/api/trpc"

	// DeliveryBaseURL is the image delivery CDN used for bare URL keys.
	DeliveryBaseURL = "https://image.civitai.com"

	// BrowsingLevelAll requests every content rating:
	// 1(PG) + 2(PG-13) + 4(R) + 8(X) + 16(XXX).
	BrowsingLevelAll = 31
)

// trpcInput is the query payload of a TRPC GET request. The meta block is
// only present on the first listing page, where the cursor is "undefined"
// rather than null.
type trpcInput struct {
	JSON interface{} `json:"json"`
	Meta interface{} `json:"meta,omitempty"`
}

var firstPageMeta = map[string]interface{}{
	"values": map[string]interface{}{"cursor": []string{"undefined"}},
}

// encodeInput marshals a TRPC input and query-escapes it for the URL.
func encodeInput(in trpcInput) string {
	data, err := json.Marshal(in)
	if err != nil {
		// All inputs are built from maps of marshalable values.
		panic(fmt.Sprintf("civitai: encode trpc input: %v", err))
	}
	return url.QueryEscape(string(data))
}

func endpointURL(base, procedure string, in trpcInput) string {
	return fmt.Sprintf("%s/%s?input=%s", base, procedure, encodeInput(in))
}

// idInput is the common {"id":N,"authed":true} payload.
func idInput(id int64) trpcInput {
	return trpcInput{JSON: map[string]interface{}{"id": id, "authed": true}}
}

func collectionURL(base string, collectionID int64) string {
	return endpointURL(base, "collection.getById", idInput(collectionID))
}

func postURL(base string, postID int64) string {
	return endpointURL(base, "post.get", idInput(postID))
}

func imageDetailURL(base string, imageID int64) string {
	return endpointURL(base, "image.get", idInput(imageID))
}

func generationDataURL(base string, imageID int64) string {
	return endpointURL(base, "image.getGenerationData", idInput(imageID))
}

func imageTagsURL(base string, imageID int64) string {
	return endpointURL(base, "tag.getVotableTags", trpcInput{
		JSON: map[string]interface{}{"id": imageID, "type": "image", "authed": true},
	})
}

// imagePageURL builds the image.getInfinite endpoint for one listing page
// of a target. A nil cursor requests the first page, which also carries
// the undefined-cursor meta block.
func imagePageURL(base string, target Target, cursor json.RawMessage) string {
	payload := map[string]interface{}{
		"browsingLevel": BrowsingLevelAll,
		"authed":        true,
	}
	switch target.Type {
	case TargetTypeCollection:
		payload["collectionId"] = target.ID
		payload["period"] = "AllTime"
		payload["sort"] = "Newest"
		payload["include"] = []string{"cosmetics"}
	case TargetTypePost:
		payload["postId"] = target.ID
	}

	in := trpcInput{JSON: payload}
	if cursor == nil {
		payload["cursor"] = nil
		in.Meta = firstPageMeta
	} else {
		payload["cursor"] = cursor
	}

	return endpointURL(base, "image.getInfinite", in)
}

// GetCollectionURL builds the collection.getById endpoint for a collection.
func GetCollectionURL(collectionID int64) string {
	return collectionURL(BaseURL, collectionID)
}

// GetPostURL builds the post.get endpoint for a post.
func GetPostURL(postID int64) string {
	return postURL(BaseURL, postID)
}

// GetImageDetailURL builds the image.get endpoint for one media item.
func GetImageDetailURL(imageID int64) string {
	return imageDetailURL(BaseURL, imageID)
}

// GetGenerationDataURL builds the image.getGenerationData endpoint.
func GetGenerationDataURL(imageID int64) string {
	return generationDataURL(BaseURL, imageID)
}

// GetImageTagsURL builds the tag.getVotableTags endpoint for an image.
func GetImageTagsURL(imageID int64) string {
	return imageTagsURL(BaseURL, imageID)
}

// GetImagePageURL builds the image.getInfinite endpoint for one listing
// page of a target against the default API base.
func GetImagePageURL(target Target, cursor json.RawMessage) string {
	return imagePageURL(BaseURL, target, cursor)
}

// ResolveMediaURL returns the download URL for a media item. Absolute
// http(s) URLs pass through unchanged; bare CDN keys are joined against
// the delivery CDN as {base}/{account}/{key}/{filename}, which serves the
// original-quality rendition.
func ResolveMediaURL(base, urlOrKey, account, filename string) string {
	if urlOrKey == "" {
		return ""
	}
	if u, err := url.Parse(urlOrKey); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return urlOrKey
	}
	return base + "/" + path.Join(account, urlOrKey, filename)
}
