package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-media/pkg/simplemedia"
)

func s3Event(records ...string) []byte {
	body := `{"Records":[`
	for i, r := range records {
		if i > 0 {
			body += ","
		}
		body += r
	}
	return []byte(body + `]}`)
}

func record(eventName, key string) string {
	return fmt.Sprintf(`{"eventName":%q,"s3":{"bucket":{"name":"uploads"},"object":{"key":%q,"size":1024}}}`, eventName, key)
}

func TestParseS3Event(t *testing.T) {
	t.Run("object created records", func(t *testing.T) {
		body := s3Event(
			record("ObjectCreated:Put", "media/owner/id.jpg"),
			record("s3:ObjectCreated:CompleteMultipartUpload", "media/owner/other.PNG"),
		)
		reqs, err := ParseS3Event(body)
		require.NoError(t, err)
		assert.Equal(t, []simplemedia.ProcessUploadRequest{
			{StorageKey: "media/owner/id.jpg", FileExtension: "jpg"},
			{StorageKey: "media/owner/other.PNG", FileExtension: "PNG"},
		}, reqs)
	})

	t.Run("skips deletes and foreign prefixes", func(t *testing.T) {
		body := s3Event(
			record("ObjectRemoved:Delete", "media/owner/id.jpg"),
			record("ObjectCreated:Put", "thumbnails/owner/id.jpg"),
			record("ObjectCreated:Put", "other/file.png"),
		)
		reqs, err := ParseS3Event(body)
		require.NoError(t, err)
		assert.Empty(t, reqs)
	})

	t.Run("decodes keys", func(t *testing.T) {
		reqs, err := ParseS3Event(s3Event(record("ObjectCreated:Put", "media%2Fowner%2Fid.jpg")))
		require.NoError(t, err)
		require.Len(t, reqs, 1)
		assert.Equal(t, "media/owner/id.jpg", reqs[0].StorageKey)
	})

	t.Run("key without extension", func(t *testing.T) {
		reqs, err := ParseS3Event(s3Event(record("ObjectCreated:Put", "media/owner/id")))
		require.NoError(t, err)
		require.Len(t, reqs, 1)
		assert.Equal(t, "", reqs[0].FileExtension)
	})

	t.Run("test event has no records", func(t *testing.T) {
		reqs, err := ParseS3Event([]byte(`{"Service":"Amazon S3","Event":"s3:TestEvent"}`))
		require.NoError(t, err)
		assert.Empty(t, reqs)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseS3Event([]byte(`{"Records":`))
		assert.ErrorIs(t, err, simplemedia.ErrBadRequest)

		_, err = ParseS3Event(s3Event(record("ObjectCreated:Put", "media/%zz.jpg")))
		assert.ErrorIs(t, err, simplemedia.ErrBadRequest)
	})
}

type fakeProcessor struct {
	mu    sync.Mutex
	calls []simplemedia.ProcessUploadRequest
	errs  map[string]error
}

func (p *fakeProcessor) ProcessUpload(ctx context.Context, req simplemedia.ProcessUploadRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)
	return p.errs[req.StorageKey]
}

var (
	errNotFound = &simplemedia.Error{Kind: simplemedia.KindNotFound, Message: "media not found"}
	errInternal = &simplemedia.Error{Kind: simplemedia.KindInternal, Message: "storage down"}
)

func TestHandler(t *testing.T) {
	ctx := context.Background()
	body := s3Event(
		record("ObjectCreated:Put", "media/o/a.jpg"),
		record("ObjectCreated:Put", "media/o/b.jpg"),
	)

	tests := []struct {
		name      string
		errs      map[string]error
		wantErr   bool
		retryable bool
	}{
		{"all succeed", nil, false, false},
		{"permanent failure is skipped", map[string]error{"media/o/a.jpg": errNotFound}, false, false},
		{"internal failure is retried", map[string]error{"media/o/b.jpg": errInternal}, true, true},
		{"mixed", map[string]error{"media/o/a.jpg": errNotFound, "media/o/b.jpg": errInternal}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProcessor{errs: tt.errs}
			h := NewHandler(p, slog.Default())

			err := h.Handle(ctx, body)
			assert.Len(t, p.calls, 2)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.retryable, Retryable(err))
		})
	}

	t.Run("malformed body is not retryable", func(t *testing.T) {
		p := &fakeProcessor{}
		err := NewHandler(p, nil).Handle(ctx, []byte("not json"))
		require.Error(t, err)
		assert.False(t, Retryable(err))
		assert.Empty(t, p.calls)
	})
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.True(t, Retryable(errors.New("unclassified")))
	assert.True(t, Retryable(errInternal))
	assert.False(t, Retryable(errNotFound))
	assert.False(t, Retryable(&simplemedia.Error{Kind: simplemedia.KindBadRequest}))
	assert.False(t, Retryable(&simplemedia.Error{Kind: simplemedia.KindInvalidStatusTransition}))
}

type fakeAcknowledger struct {
	acks    int
	nacks   int
	requeue bool
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.acks++
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	a.nacks++
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func TestConsumer_HandleDelivery(t *testing.T) {
	ctx := context.Background()
	body := s3Event(record("ObjectCreated:Put", "media/o/a.jpg"))

	tests := []struct {
		name      string
		body      []byte
		err       error
		wantAcks  int
		wantNacks int
	}{
		{"success acks", body, nil, 1, 0},
		{"permanent failure acks", body, errNotFound, 1, 0},
		{"malformed acks", []byte("{"), nil, 1, 0},
		{"internal failure requeues", body, errInternal, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProcessor{errs: map[string]error{"media/o/a.jpg": tt.err}}
			c := &Consumer{handler: NewHandler(p, nil), logger: slog.Default()}
			ack := &fakeAcknowledger{}

			c.handleDelivery(ctx, amqp.Delivery{Acknowledger: ack, DeliveryTag: 7, Body: tt.body})
			assert.Equal(t, tt.wantAcks, ack.acks)
			assert.Equal(t, tt.wantNacks, ack.nacks)
			if tt.wantNacks > 0 {
				assert.True(t, ack.requeue)
			}
		})
	}
}

func TestDial_RequiresConfig(t *testing.T) {
	_, err := Dial(ConsumerConfig{}, NewHandler(&fakeProcessor{}, nil), nil)
	assert.Error(t, err)
}
