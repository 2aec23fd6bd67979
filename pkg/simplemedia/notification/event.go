// Package notification turns object-created notifications from S3 (or an
// S3-compatible store such as MinIO) into ProcessUpload calls.
package notification

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// MediaPrefix is the key prefix of uploaded originals. Other keys, including
// the thumbnails this service writes, are ignored.
const MediaPrefix = "media/"

// S3Event is the subset of the S3 event notification document we read.
type S3Event struct {
	Records []S3EventRecord `json:"Records"`
}

// S3EventRecord is one record of an S3Event.
type S3EventRecord struct {
	EventName string `json:"eventName"`
	S3        struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key  string `json:"key"`
			Size int64  `json:"size"`
		} `json:"object"`
	} `json:"s3"`
}

// ParseS3Event decodes body and returns one ProcessUploadRequest per
// object-created record under MediaPrefix. Malformed documents fail with a
// BadRequest error.
func ParseS3Event(body []byte) ([]simplemedia.ProcessUploadRequest, error) {
	var event S3Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, &simplemedia.Error{Kind: simplemedia.KindBadRequest, Op: "parse_s3_event", Message: "malformed event", Err: err}
	}

	requests := make([]simplemedia.ProcessUploadRequest, 0, len(event.Records))
	for _, record := range event.Records {
		if !isObjectCreated(record.EventName) {
			continue
		}
		// Keys arrive form-encoded: spaces as "+", specials as %XX.
		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			return nil, &simplemedia.Error{Kind: simplemedia.KindBadRequest, Op: "parse_s3_event", Message: "malformed object key", Err: err}
		}
		if !strings.HasPrefix(key, MediaPrefix) {
			continue
		}
		requests = append(requests, simplemedia.ProcessUploadRequest{
			StorageKey:    key,
			FileExtension: strings.TrimPrefix(path.Ext(key), "."),
		})
	}
	return requests, nil
}

// isObjectCreated accepts both "ObjectCreated:Put" (AWS) and
// "s3:ObjectCreated:Put" (MinIO).
func isObjectCreated(eventName string) bool {
	return strings.HasPrefix(strings.TrimPrefix(eventName, "s3:"), "ObjectCreated:")
}
