package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/joip/internal/shared"
	tu "github.com/desertthunder/joip/internal/testing"
)

func listingJSON(posts ...string) string {
	children := make([]string, len(posts))
	for i, p := range posts {
		children[i] = `{"kind":"t3","data":` + p + `}`
	}
	return `{"kind":"Listing","data":{"children":[` + strings.Join(children, ",") + `]}}`
}

func decodePosts(t *testing.T, raw ...string) []Post {
	t.Helper()
	var body listing
	if err := json.Unmarshal([]byte(listingJSON(raw...)), &body); err != nil {
		t.Fatalf("failed to decode listing: %v", err)
	}
	posts := make([]Post, 0, len(body.Data.Children))
	for _, c := range body.Data.Children {
		posts = append(posts, c.Data)
	}
	return posts
}

func newTestReddit(t *testing.T, handler http.HandlerFunc, creds CredentialProvider) *RedditService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewRedditService(RedditOpts{BaseURL: server.URL, Credentials: creds})
}

func TestRedditService(t *testing.T) {
	t.Run("NormalizeChannel", func(t *testing.T) {
		s := NewRedditService(RedditOpts{})
		for _, in := range []string{"pics", "r/pics", "  r/pics ", " pics"} {
			if got := s.NormalizeChannel(in); got != "pics" {
				t.Errorf("NormalizeChannel(%q) = %q, want pics", in, got)
			}
		}
	})

	t.Run("FetchChannelPosts", func(t *testing.T) {
		t.Run("Sends authenticated request", func(t *testing.T) {
			s := newTestReddit(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/r/pics/hot" {
					t.Errorf("expected path /r/pics/hot, got %s", r.URL.Path)
				}
				if got := r.URL.Query().Get("limit"); got != "5" {
					t.Errorf("expected limit 5, got %s", got)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer tok" {
					t.Errorf("expected bearer token, got %q", got)
				}
				if got := r.Header.Get("User-Agent"); got != DefaultUserAgent {
					t.Errorf("expected user agent %q, got %q", DefaultUserAgent, got)
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(listingJSON(`{"id":"1","url":"https://i.redd.it/a.jpg"}`, `{"id":"2","url":"https://i.redd.it/b.png"}`)))
			}, &tu.StaticCredentials{Token: "tok"})

			posts, err := s.FetchChannelPosts(context.Background(), " r/pics ", 5)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(posts) != 2 || posts[0].ID != "1" || posts[1].ID != "2" {
				t.Errorf("expected posts in provider order, got %+v", posts)
			}
		})

		t.Run("No token makes no request", func(t *testing.T) {
			var hits atomic.Int32
			s := newTestReddit(t, func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
			}, &tu.StaticCredentials{Err: &AuthError{Kind: AuthUnavailable}})

			_, err := s.FetchChannelPosts(context.Background(), "pics", 10)

			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) || fetchErr.Kind != FetchNoToken {
				t.Fatalf("expected FetchError{NoToken}, got %v", err)
			}
			if !errors.Is(err, shared.ErrNoToken) {
				t.Error("expected error to wrap ErrNoToken")
			}
			if hits.Load() != 0 {
				t.Errorf("expected no HTTP calls, got %d", hits.Load())
			}
		})

		t.Run("Non-2xx status", func(t *testing.T) {
			s := newTestReddit(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"message":"Forbidden","error":403}`))
			}, &tu.StaticCredentials{Token: "tok"})

			_, err := s.FetchChannelPosts(context.Background(), "private", 10)

			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("expected FetchError, got %v", err)
			}
			if fetchErr.Kind != FetchHTTP || fetchErr.Status != http.StatusForbidden || fetchErr.Message != "Forbidden" {
				t.Errorf("unexpected fetch error %+v", fetchErr)
			}
		})

		t.Run("Error body with 2xx status", func(t *testing.T) {
			s := newTestReddit(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"error":404,"message":"Not Found"}`))
			}, &tu.StaticCredentials{Token: "tok"})

			_, err := s.FetchChannelPosts(context.Background(), "missing", 10)

			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) || fetchErr.Status != 404 || fetchErr.Message != "Not Found" {
				t.Errorf("expected FetchError{HTTP 404}, got %v", err)
			}
		})

		t.Run("Transport failure", func(t *testing.T) {
			s := NewRedditService(RedditOpts{
				BaseURL:     "http://reddit.invalid",
				Credentials: &tu.StaticCredentials{Token: "tok"},
				HTTPClient:  &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection reset"))},
			})

			_, err := s.FetchChannelPosts(context.Background(), "pics", 10)
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("Empty channel", func(t *testing.T) {
			s := NewRedditService(RedditOpts{Credentials: &tu.StaticCredentials{Token: "tok"}})
			_, err := s.FetchChannelPosts(context.Background(), " r/ ", 10)
			if !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) || fetchErr.Kind != FetchHTTP {
				t.Errorf("expected FetchError{HTTP}, got %#v", err)
			}
		})
	})

	t.Run("ExtractMedia", func(t *testing.T) {
		s := NewRedditService(RedditOpts{})

		tc := []struct {
			name  string
			posts []string
			want  []string
		}{
			{
				name:  "direct image",
				posts: []string{`{"id":"a","url":"https://i.redd.it/x.JPG"}`},
				want:  []string{"https://i.redd.it/x.JPG"},
			},
			{
				name: "gallery keeps key order and unescapes",
				posts: []string{`{"id":"g","url":"https://www.reddit.com/gallery/g","is_gallery":true,"media_metadata":{
					"b":{"s":{"u":"http://x/1.png?a&amp;b=1"}},
					"a":{"s":{"u":"http://x/2.png"}}}}`},
				want: []string{"http://x/1.png?a&b=1", "http://x/2.png"},
			},
			{
				name: "gallery items without source are skipped",
				posts: []string{`{"id":"g","is_gallery":true,"media_metadata":{
					"a":{"status":"failed"},
					"b":{"s":{"u":"http://x/2.png"}}}}`},
				want: []string{"http://x/2.png"},
			},
			{
				name: "gallery flag wins over preview",
				posts: []string{`{"id":"g","is_gallery":true,"media_metadata":{},
					"preview":{"images":[{"source":{"url":"http://x/p.jpg"}}]}}`},
				want: []string{},
			},
			{
				name:  "metadata without gallery flag falls back to preview",
				posts: []string{`{"id":"g","media_metadata":{"a":{"s":{"u":"http://x/1.png"}}},"preview":{"images":[{"source":{"url":"http://x/p.jpg?w=1&amp;s=2"}}]}}`},
				want:  []string{"http://x/p.jpg?w=1&s=2"},
			},
			{
				name:  "direct wins over preview",
				posts: []string{`{"id":"d","url":"http://x/d.gif","preview":{"images":[{"source":{"url":"http://x/p.jpg"}}]}}`},
				want:  []string{"http://x/d.gif"},
			},
			{
				name:  "no media",
				posts: []string{`{"id":"t","url":"https://example.com/article","preview":{"images":[]}}`},
				want:  []string{},
			},
			{
				name: "malformed post does not drop the rest",
				posts: []string{
					`{"id":"1","url":"http://x/1.jpg"}`,
					`{"id":"bad","url":12,"is_gallery":"yes"}`,
					`{"id":"3","url":"http://x/3.png"}`,
				},
				want: []string{"http://x/1.jpg", "http://x/3.png"},
			},
			{
				name:  "malformed gallery metadata keeps direct image",
				posts: []string{`{"id":"g","url":"http://x/d.jpg","is_gallery":true,"media_metadata":["x"]}`},
				want:  []string{"http://x/d.jpg"},
			},
			{
				name: "malformed gallery metadata falls back to preview",
				posts: []string{`{"id":"g","is_gallery":true,"media_metadata":["x"],
					"preview":{"images":[{"source":{"url":"http://x/p.jpg"}}]}}`},
				want: []string{"http://x/p.jpg"},
			},
			{
				name:  "malformed title keeps media",
				posts: []string{`{"id":"t","title":42,"url":"http://x/t.png"}`},
				want:  []string{"http://x/t.png"},
			},
			{
				name:  "malformed gallery metadata",
				posts: []string{`{"id":"g","is_gallery":true,"media_metadata":["nope"]}`, `{"id":"2","url":"http://x/2.jpg"}`},
				want:  []string{"http://x/2.jpg"},
			},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				got := s.ExtractMedia(decodePosts(t, tt.posts...))
				if !reflect.DeepEqual(got, tt.want) {
					t.Errorf("ExtractMedia() = %v, want %v", got, tt.want)
				}
				for _, u := range got {
					if strings.Contains(u, "&amp;") {
						t.Errorf("url %q still contains &amp;", u)
					}
				}
			})
		}

		t.Run("Empty input", func(t *testing.T) {
			if got := s.ExtractMedia(nil); got == nil || len(got) != 0 {
				t.Errorf("expected empty non-nil slice, got %#v", got)
			}
		})
	})

	t.Run("Shape", func(t *testing.T) {
		posts := decodePosts(t,
			`{"id":"1","url":"http://x/1.jpeg"}`,
			`{"id":"2","is_gallery":true,"media_metadata":{"k":{"s":{"u":"u"}}}}`,
			`{"id":"3","preview":{"images":[{"source":{"url":"p"}}]}}`,
			`{"id":"4"}`,
		)

		if _, ok := posts[0].Shape().(DirectImage); !ok {
			t.Errorf("expected DirectImage, got %T", posts[0].Shape())
		}
		if g, ok := posts[1].Shape().(Gallery); !ok || len(g.Items) != 1 || g.Items[0].Key != "k" {
			t.Errorf("expected Gallery with key k, got %#v", posts[1].Shape())
		}
		if _, ok := posts[2].Shape().(PreviewEmbedded); !ok {
			t.Errorf("expected PreviewEmbedded, got %T", posts[2].Shape())
		}
		if _, ok := posts[3].Shape().(Unrecognized); !ok {
			t.Errorf("expected Unrecognized, got %T", posts[3].Shape())
		}
	})

	t.Run("FetchChannelMedia", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			s := newTestReddit(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(listingJSON(`{"id":"1","url":"http://x/1.jpg"}`, `{"id":"2","url":"http://x/page"}`)))
			}, &tu.StaticCredentials{Token: "tok"})

			got := s.FetchChannelMedia(context.Background(), "pics", 10)
			if !reflect.DeepEqual(got, []string{"http://x/1.jpg"}) {
				t.Errorf("unexpected media %v", got)
			}
		})

		t.Run("Failure yields empty", func(t *testing.T) {
			s := newTestReddit(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}, &tu.StaticCredentials{Token: "tok"})

			got := s.FetchChannelMedia(context.Background(), "pics", 10)
			if got == nil || len(got) != 0 {
				t.Errorf("expected empty slice, got %#v", got)
			}
		})
	})

	t.Run("ValidateChannel", func(t *testing.T) {
		s := newTestReddit(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/r/pics/about":
				w.Write([]byte(`{"kind":"t5","data":{"display_name":"pics"}}`))
			case "/r/empty/about":
				w.Write([]byte(`{"kind":"Listing","data":{"children":[]}}`))
			default:
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"message":"Not Found","error":404}`))
			}
		}, &tu.StaticCredentials{Token: "tok"})

		tc := []struct {
			channel string
			want    bool
		}{
			{channel: "r/pics", want: true},
			{channel: "empty", want: false},
			{channel: "doesnotexist", want: false},
			{channel: "  ", want: false},
		}

		for _, tt := range tc {
			t.Run(tt.channel, func(t *testing.T) {
				ok, err := s.ValidateChannel(context.Background(), tt.channel)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if ok != tt.want {
					t.Errorf("ValidateChannel(%q) = %v, want %v", tt.channel, ok, tt.want)
				}
			})
		}

		t.Run("No token", func(t *testing.T) {
			s := NewRedditService(RedditOpts{Credentials: &tu.StaticCredentials{Err: errors.New("no creds")}})
			if _, err := s.ValidateChannel(context.Background(), "pics"); !errors.Is(err, shared.ErrNoToken) {
				t.Errorf("expected ErrNoToken, got %v", err)
			}
		})
	})
}
