package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var directImagePattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif)$`)

// Post is a Reddit listing entry reduced to the fields that carry media.
//
// Decoding is lenient: a payload that does not fit the expected shape still yields a Post,
// with the failure kept for extraction to report.
type Post struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Permalink     string           `json:"permalink"`
	URL           string           `json:"url"`
	IsGallery     bool             `json:"is_gallery"`
	MediaMetadata *GalleryMetadata `json:"media_metadata"`
	Preview       *Preview         `json:"preview"`
	Over18        bool             `json:"over_18"`

	decodeErr error
	fieldErr  error
}

// Preview is the preview block Reddit attaches to link posts.
type Preview struct {
	Images []struct {
		Source struct {
			URL string `json:"url"`
		} `json:"source"`
	} `json:"images"`
}

// GalleryItem is one entry of a gallery's media_metadata.
type GalleryItem struct {
	Key       string
	SourceURL string
}

// GalleryMetadata holds gallery items in the key order they appear in the payload.
type GalleryMetadata []GalleryItem

// UnmarshalJSON walks the object token by token so item order survives decoding.
func (g *GalleryMetadata) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("media_metadata: expected object, got %v", tok)
	}

	items := GalleryMetadata{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("media_metadata[%s]: %w", key, err)
		}

		var item struct {
			S *struct {
				U string `json:"u"`
			} `json:"s"`
		}
		// entries without a usable source stay in place with an empty URL
		if err := json.Unmarshal(raw, &item); err == nil && item.S != nil {
			items = append(items, GalleryItem{Key: key, SourceURL: item.S.U})
		} else {
			items = append(items, GalleryItem{Key: key})
		}
	}

	*g = items
	return nil
}

// UnmarshalJSON decodes a post field by field. A field that does not fit its expected type is left
// zero and its error recorded, so one bad field never hides media carried by the others.
func (p *Post) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*p = Post{decodeErr: err}
		return nil
	}

	var post Post
	var errs []error
	field := func(name string, dst any) bool {
		v, ok := raw[name]
		if !ok {
			return false
		}
		if err := json.Unmarshal(v, dst); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return false
		}
		return true
	}

	field("id", &post.ID)
	field("title", &post.Title)
	field("permalink", &post.Permalink)
	field("url", &post.URL)
	field("is_gallery", &post.IsGallery)
	field("over_18", &post.Over18)

	var metadata *GalleryMetadata
	if field("media_metadata", &metadata) {
		post.MediaMetadata = metadata
	}
	var preview *Preview
	if field("preview", &preview) {
		post.Preview = preview
	}

	post.fieldErr = errors.Join(errs...)
	*p = post
	return nil
}

// MediaShape is the tagged union of media layouts a post can carry.
type MediaShape interface {
	// URLs returns the media URLs of this shape with &amp; entities resolved.
	URLs() []string
	isMediaShape()
}

// DirectImage is a post whose URL points straight at an image file.
type DirectImage struct{ URL string }

// Gallery is a multi-image post.
type Gallery struct{ Items []GalleryItem }

// PreviewEmbedded is a post whose only image is the preview source.
type PreviewEmbedded struct{ URL string }

// Unrecognized is a post with no usable media.
type Unrecognized struct{ Reason string }

func (DirectImage) isMediaShape()     {}
func (Gallery) isMediaShape()         {}
func (PreviewEmbedded) isMediaShape() {}
func (Unrecognized) isMediaShape()    {}

func (d DirectImage) URLs() []string { return []string{unescapeURL(d.URL)} }

func (g Gallery) URLs() []string {
	urls := make([]string, 0, len(g.Items))
	for _, item := range g.Items {
		if item.SourceURL != "" {
			urls = append(urls, unescapeURL(item.SourceURL))
		}
	}
	return urls
}

func (p PreviewEmbedded) URLs() []string { return []string{unescapeURL(p.URL)} }

func (Unrecognized) URLs() []string { return nil }

// Shape classifies the post. Precedence is direct link, then gallery, then preview.
func (p Post) Shape() MediaShape {
	if p.decodeErr != nil {
		return Unrecognized{Reason: p.decodeErr.Error()}
	}

	if directImagePattern.MatchString(p.URL) {
		return DirectImage{URL: p.URL}
	}

	if p.IsGallery && p.MediaMetadata != nil {
		return Gallery{Items: *p.MediaMetadata}
	}

	if p.Preview != nil && len(p.Preview.Images) > 0 && p.Preview.Images[0].Source.URL != "" {
		return PreviewEmbedded{URL: p.Preview.Images[0].Source.URL}
	}

	if p.fieldErr != nil {
		return Unrecognized{Reason: p.fieldErr.Error()}
	}
	return Unrecognized{Reason: "no media"}
}

// Malformed returns the decode failures recorded for this post, if any.
func (p Post) Malformed() error {
	return errors.Join(p.decodeErr, p.fieldErr)
}

func unescapeURL(u string) string {
	return strings.ReplaceAll(u, "&amp;", "&")
}
