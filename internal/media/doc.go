// Package media implements the attachment pipeline shared by both adapters.
//
// An inbound attachment moves through Fetched -> Classified -> (Transformed)
// -> Ready. Classification is a closed extension allow-list; anything outside
// it is a logged skip, never an error. Transforms shell out to ffmpeg and
// ffprobe, so the binaries are injectable for tests.
//
// Key types:
//   - Kind: classification result (Image, Video, Audio, Unsupported)
//   - Downloader: HTTP fetch into a subscription's media folder
//   - Transformer: thumbnail extraction and m4a transcode + duration probe
//   - Pipeline: bundles the above behind a worker semaphore
//
// Sentinel errors ErrFetch and ErrTranscode classify failures for callers
// that annotate rather than abort the surrounding relay.
package media
