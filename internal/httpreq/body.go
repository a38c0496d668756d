package httpreq

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// BodyEncoding selects how Post and Put serialize their data argument.
type BodyEncoding int

const (
	// FormURLEncoded sends data as application/x-www-form-urlencoded.
	FormURLEncoded BodyEncoding = iota
	// JSON sends data as application/json.
	JSON
)

func (e BodyEncoding) String() string {
	switch e {
	case FormURLEncoded:
		return "form"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("BodyEncoding(%d)", int(e))
	}
}

const (
	contentTypeForm = "application/x-www-form-urlencoded"
	contentTypeJSON = "application/json"
)

// encodeForm serializes data for a form body. Mappings become key=value pairs,
// string and generic slices are keyed by index, and any other scalar is sent
// as the single field "0". Structs and other composite values are rejected.
func encodeForm(data any) (string, error) {
	switch v := data.(type) {
	case nil:
		return "", nil
	case url.Values:
		return v.Encode(), nil
	case map[string][]string:
		return url.Values(v).Encode(), nil
	case map[string]string:
		values := make(url.Values, len(v))
		for key, value := range v {
			values.Set(key, value)
		}
		return values.Encode(), nil
	case map[string]any:
		values := make(url.Values, len(v))
		for key, value := range v {
			values.Set(key, fmt.Sprint(value))
		}
		return values.Encode(), nil
	case []string:
		values := make(url.Values, len(v))
		for i, value := range v {
			values.Set(strconv.Itoa(i), value)
		}
		return values.Encode(), nil
	case []any:
		values := make(url.Values, len(v))
		for i, value := range v {
			values.Set(strconv.Itoa(i), fmt.Sprint(value))
		}
		return values.Encode(), nil
	}
	switch reflect.ValueOf(data).Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return url.Values{"0": {fmt.Sprint(data)}}.Encode(), nil
	default:
		return "", fmt.Errorf("httpreq: cannot form-encode %T", data)
	}
}

func encodeBody(data any, enc BodyEncoding) (io.Reader, error) {
	switch enc {
	case JSON:
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("httpreq: marshal json body: %w", err)
		}
		return bytes.NewReader(raw), nil
	case FormURLEncoded:
		form, err := encodeForm(data)
		if err != nil {
			return nil, err
		}
		return strings.NewReader(form), nil
	default:
		return nil, fmt.Errorf("httpreq: unsupported body encoding %s", enc)
	}
}

// decodeBody unwraps a compressed response body according to its
// Content-Encoding. Bodies already decoded by net/http pass through, as do
// responses that carry no body at all.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	if resp.Uncompressed || bodyless(resp) {
		return resp.Body, nil
	}
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "", "identity":
		return resp.Body, nil
	case "gzip", "x-gzip":
		reader, err := gzip.NewReader(resp.Body)
		if errors.Is(err, io.EOF) {
			// Chunked response with an empty body.
			return io.NopCloser(bytes.NewReader(nil)), nil
		}
		if err != nil {
			return nil, fmt.Errorf("httpreq: open gzip body: %w", err)
		}
		return reader, nil
	case "deflate":
		return flate.NewReader(resp.Body), nil
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	case "zstd":
		decoder, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("httpreq: open zstd body: %w", err)
		}
		return decoder.IOReadCloser(), nil
	default:
		return resp.Body, nil
	}
}

func bodyless(resp *http.Response) bool {
	switch {
	case resp.StatusCode == http.StatusNoContent, resp.StatusCode == http.StatusNotModified:
		return true
	case resp.Request != nil && resp.Request.Method == http.MethodHead:
		return true
	}
	return resp.ContentLength == 0
}
