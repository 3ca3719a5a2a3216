// Package services implements the content side of joip: credentials, channel listings and media extraction.
//
// # Token Cache
//
// [TokenCache] holds the application credential for the Reddit API in a durable [KVStore]
// under the keys [KeyAccessToken] and [KeyExpiresAt] (epoch milliseconds). Every call reads through
// the store, so a credential written by one process is visible to the next. Acquisition uses the
// OAuth2 client-credentials grant from [clientcredentials.Config]; failures surface as [*AuthError]
// and never touch the store.
//
// [RedditAuth] runs the user authorization-code flow for `joip auth login` and stores the token
// through the same cache.
//
// # Content Fetcher
//
// [RedditService] fetches `/r/{channel}/hot` listings with a bearer token obtained from a
// [CredentialProvider] and a fixed User-Agent. Requests pass a [rate.Limiter].
// Listing entries decode into [Post], whose [Post.Shape] classifies the media layout as one of
// [DirectImage], [Gallery], [PreviewEmbedded] or [Unrecognized]. Precedence is direct link, then
// gallery (items in payload key order), then preview.
//
// # Errors
//
//   - [*AuthError] : wraps [shared.ErrAuthUnavailable]
//   - [*FetchError] : kind [FetchNoToken] wraps [shared.ErrNoToken], kind [FetchHTTP] wraps [shared.ErrAPIRequest]
//   - [*ExtractionError] : wraps [shared.ErrMalformedPost]; logged and absorbed per post
//
// # Slideshow collaborators
//
// [ImageLoader] warms image URLs for the slideshow engine. [CannedCaptioner] and [HTTPCaptioner]
// produce captions for each slide.
package services
