package notification_test

import (
	"context"
	"errors"
	"testing"

	"github.com/siterank/siterank-api/internal/domain/notification"
)

type recordingPublisher struct {
	topics []string
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	p.topics = append(p.topics, topic)
	return p.err
}

func TestFanoutAttemptsAllTransports(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("transport down")}
	working := &recordingPublisher{}
	fanout := notification.NewFanout(failing, working)

	err := fanout.Publish(context.Background(), "exchange.requested", nil)
	if err == nil || err.Error() != "transport down" {
		t.Fatalf("expected first error back, got %v", err)
	}

	if len(working.topics) != 1 || working.topics[0] != "exchange.requested" {
		t.Fatal("second transport must still be attempted after a failure")
	}
}

func TestFanoutSkipsNilPublishers(t *testing.T) {
	working := &recordingPublisher{}
	fanout := notification.NewFanout(nil, working)

	if err := fanout.Publish(context.Background(), "report.resolved", nil); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if len(working.topics) != 1 {
		t.Fatal("non-nil transport must be attempted")
	}
}

func TestRedisPublisherWithoutClient(t *testing.T) {
	p := notification.NewRedisPublisher(nil)
	if err := p.Publish(context.Background(), "exchange.requested", map[string]string{"k": "v"}); err != nil {
		t.Fatalf("nil-client publish must be a no-op, got %v", err)
	}
}
