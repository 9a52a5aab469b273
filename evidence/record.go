// Package evidence captures diagnostic artifacts from a page, such as failure screenshots.
package evidence

import (
	"encoding/json"
	"time"
)

// Record is a captured artifact, i.e. a PNG screenshot
type Record interface {
	ContentType() string
	Data() []byte
}

type record struct {
	createdTime time.Time
	contentType string
	data        []byte
}

// New creates a Record of contentType captured now
func New(contentType string, data []byte) Record {
	return &record{
		createdTime: time.Now().UTC(),
		contentType: contentType,
		data:        data,
	}
}

func (r *record) CreatedTime() time.Time {
	return r.createdTime
}

func (r *record) ContentType() string {
	return r.contentType
}

func (r *record) Data() []byte {
	return r.data
}

func (r *record) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		CreatedTime time.Time `json:",omitempty"`
		ContentType string
		Data        []byte
	}{
		CreatedTime: r.createdTime,
		ContentType: r.contentType,
		Data:        r.data,
	})
}
