package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/pricesync-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	c := &Client{projectID: "demo"}
	cases := map[string]string{
		"pricing-events":                       "projects/demo/topics/pricing-events",
		"  pricing-events  ":                   "projects/demo/topics/pricing-events",
		"projects/other/topics/pricing-events": "projects/other/topics/pricing-events",
		"":                                     "",
	}
	for in, want := range cases {
		if got := c.topicResourceName(in); got != want {
			t.Fatalf("topicResourceName(%q) = %q, want %q", in, got, want)
		}
	}

	if got := (&Client{}).topicResourceName("pricing-events"); got != "" {
		t.Fatalf("expected empty name without project, got %q", got)
	}
}

func TestClientOptions(t *testing.T) {
	if got := clientOptions(config.GCPConfig{}); len(got) != 0 {
		t.Fatalf("expected no options, got %d", len(got))
	}
	if got := clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/key.json"}); len(got) != 1 {
		t.Fatalf("expected one option, got %d", len(got))
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if c.publisher("pricing-events") != nil {
		t.Fatalf("expected nil publisher")
	}
}

func TestPublishWithoutClientFails(t *testing.T) {
	c := &Client{projectID: "demo", cfg: config.PubSubConfig{PricingTopic: "pricing-events"}}
	if c.publisher("pricing-events") != nil {
		t.Fatalf("expected nil publisher without a pubsub client")
	}
	err := c.Publish(context.Background(), "pricing-events", Message{Data: []byte(`{}`)})
	if err == nil {
		t.Fatalf("expected publish error without a pubsub client")
	}
}
