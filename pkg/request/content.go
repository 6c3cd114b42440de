package request

import "slices"

// Content returns the accumulated body.
func (r *Request) Content() string { return string(r.content) }

// ContentBytes returns the accumulated body without copying. The caller
// must not modify it. Later SetContent, GrowContent or limit changes never
// write into a slice returned earlier.
func (r *Request) ContentBytes() []byte { return r.content }

// ContentSizeLimit returns the current limit.
func (r *Request) ContentSizeLimit() int { return r.contentSizeLimit }

// SetContentSizeLimit sets the maximum body size. A negative n removes
// the limit. Content already above the new limit is truncated.
func (r *Request) SetContentSizeLimit(n int) {
	if n < 0 {
		n = NoContentLimit
	}
	r.contentSizeLimit = n
	if len(r.content) > n {
		r.content = slices.Clip(r.content[:n])
	}
}

// SetContent replaces the body with s truncated to the limit.
func (r *Request) SetContent(s string) {
	r.content = []byte(r.clamp(s))
}

// GrowContent appends p and then truncates the body to the limit. Bytes
// past the limit are dropped silently.
func (r *Request) GrowContent(p []byte) {
	room := r.contentSizeLimit - len(r.content)
	if room <= 0 {
		return
	}
	if len(p) > room {
		p = p[:room]
	}
	r.content = append(r.content, p...)
}

// Write implements io.Writer on top of GrowContent. It always reports
// len(p) bytes written so a copy loop keeps draining the source.
func (r *Request) Write(p []byte) (int, error) {
	r.GrowContent(p)
	return len(p), nil
}

// ContentTooLarge reports whether the body reached or exceeded the limit.
func (r *Request) ContentTooLarge() bool {
	return len(r.content) >= r.contentSizeLimit
}

func (r *Request) clamp(s string) string {
	if len(s) > r.contentSizeLimit {
		return s[:r.contentSizeLimit]
	}
	return s
}
