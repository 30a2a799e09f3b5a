package queue

import (
	"context"
	"encoding/json"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"pair-alert-bot/internal/types"
)

// Version of the envelope written by this build
const Version = 1

type Kind string

const (
	KindSubmission   Kind = "rule_submission"
	KindNotification Kind = "notification"
	KindSnapshot     Kind = "market_snapshot"
)

var (
	ErrUnknownVersion = errors.New("unknown envelope version")
	ErrUnexpectedKind = errors.New("unexpected envelope kind")
)

type envelope struct {
	Version int             `json:"version"`
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Topics names the three channels between the chat side and the evaluator
type Topics struct {
	Submissions   string
	Notifications string
	Snapshots     string
}

// Transport is the typed view of a Broker
type Transport struct {
	broker Broker
	topics Topics
}

func NewTransport(broker Broker, topics Topics) *Transport {
	return &Transport{broker: broker, topics: topics}
}

// SubmitRule publishes a completed dialog for the evaluator
func (t *Transport) SubmitRule(ctx context.Context, s types.Submission) error {
	return t.publish(ctx, t.topics.Submissions, KindSubmission, s)
}

// FetchSubmission takes at most one pending submission; the caller acks it once stored
func (t *Transport) FetchSubmission(ctx context.Context) (types.Submission, Delivery, bool, error) {
	var s types.Submission
	d, ok, err := t.fetch(ctx, t.topics.Submissions, KindSubmission, &s)
	return s, d, ok, err
}

func (t *Transport) PublishNotification(ctx context.Context, n types.Notification) error {
	return t.publish(ctx, t.topics.Notifications, KindNotification, n)
}

func (t *Transport) FetchNotification(ctx context.Context) (types.Notification, Delivery, bool, error) {
	var n types.Notification
	d, ok, err := t.fetch(ctx, t.topics.Notifications, KindNotification, &n)
	return n, d, ok, err
}

func (t *Transport) PublishSnapshot(ctx context.Context, s types.Snapshot) error {
	return t.publish(ctx, t.topics.Snapshots, KindSnapshot, s)
}

func (t *Transport) FetchSnapshot(ctx context.Context) (types.Snapshot, Delivery, bool, error) {
	var s types.Snapshot
	d, ok, err := t.fetch(ctx, t.topics.Snapshots, KindSnapshot, &s)
	return s, d, ok, err
}

func (t *Transport) Close() error {
	return t.broker.Close()
}

func (t *Transport) publish(ctx context.Context, topic string, kind Kind, payload interface{}) error {
	body, err := Encode(kind, payload)
	if err != nil {
		return err
	}
	return t.broker.Publish(ctx, topic, body)
}

// fetch decodes one message into out. Undecodable messages are acked and
// dropped so they cannot block the topic.
func (t *Transport) fetch(ctx context.Context, topic string, kind Kind, out interface{}) (Delivery, bool, error) {
	d, ok, err := t.broker.Fetch(ctx, topic)
	if err != nil || !ok {
		return nil, false, err
	}

	if err := Decode(d.Body(), kind, out); err != nil {
		log.WithField("topic", topic).Errorf("Dropping malformed message: %v\n%s", err, spew.Sdump(d.Body()))
		if ackErr := d.Ack(); ackErr != nil {
			log.Errorf("Failed to ack malformed message: %v", ackErr)
		}
		return nil, false, nil
	}
	return d, true, nil
}

// Encode wraps payload in a versioned envelope
func Encode(kind Kind, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "could not encode %s", kind)
	}
	body, err := json.Marshal(envelope{Version: Version, Kind: kind, Payload: raw})
	return body, errors.Wrapf(err, "could not encode %s envelope", kind)
}

// Decode unwraps an envelope of the expected kind into out
func Decode(body []byte, kind Kind, out interface{}) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return errors.Wrap(err, "could not decode envelope")
	}
	if env.Version != Version {
		return errors.Wrapf(ErrUnknownVersion, "%d", env.Version)
	}
	if env.Kind != kind {
		return errors.Wrapf(ErrUnexpectedKind, "got %q, want %q", env.Kind, kind)
	}
	return errors.Wrapf(json.Unmarshal(env.Payload, out), "could not decode %s payload", kind)
}
