package provider_test

import (
	"bytes"
	"io"
	"net/http"
	"strings"
)

type capture struct {
	method string
	url    string
	body   []byte
}

// fakeTransport answers every request with a canned body and records the last request.
type fakeTransport struct {
	respStatus  int
	respBody    []byte
	contentType string
	captured    *capture
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var b []byte
	if req.Body != nil {
		b, _ = io.ReadAll(req.Body)
		_ = req.Body.Close()
	}
	if f.captured != nil {
		f.captured.method = req.Method
		f.captured.url = req.URL.String()
		f.captured.body = b
	}
	ct := f.contentType
	if ct == "" {
		ct = "application/json"
	}
	resp := &http.Response{
		StatusCode: f.respStatus,
		Body:       io.NopCloser(bytes.NewReader(f.respBody)),
		Header:     make(http.Header),
		Request:    req,
	}
	resp.Header.Set("Content-Type", ct)
	return resp, nil
}

func httpClient(f *fakeTransport) *http.Client { return &http.Client{Transport: f} }

// sse joins data payloads into a text/event-stream body. Each entry is
// "event\ndata" or just "data" when the event name is empty.
func sse(events ...[2]string) []byte {
	var sb strings.Builder
	for _, e := range events {
		if e[0] != "" {
			sb.WriteString("event: " + e[0] + "\n")
		}
		sb.WriteString("data: " + e[1] + "\n\n")
	}
	return []byte(sb.String())
}
