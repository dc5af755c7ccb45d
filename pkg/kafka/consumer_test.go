package kafka

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/twmb/franz-go/pkg/kgo"
)

func TestConsumerProcessRecordsBlocksPartitionOnFailure(t *testing.T) {
	logger := logrus.New()
	consumer := &Consumer{
		logger:   logger,
		handlers: make(map[string]Handler),
	}

	var handled []string
	consumer.handlers["posts"] = func(_ context.Context, msg Message) error {
		handled = append(handled, recordKey(msg.Topic, msg.Partition, msg.Offset))
		if msg.Partition == 0 && msg.Offset == 1 {
			return errors.New("handler failure")
		}
		return nil
	}

	records := []*kgo.Record{
		{Topic: "posts", Partition: 0, Offset: 0},
		{Topic: "posts", Partition: 0, Offset: 1},
		{Topic: "posts", Partition: 0, Offset: 2},
		{Topic: "posts", Partition: 1, Offset: 0},
		{Topic: "posts", Partition: 1, Offset: 1},
	}

	commitRecords := consumer.processRecords(context.Background(), records)

	sort.Strings(handled)
	expectedHandled := []string{
		recordKey("posts", 0, 0),
		recordKey("posts", 0, 1),
		recordKey("posts", 1, 0),
		recordKey("posts", 1, 1),
	}
	sort.Strings(expectedHandled)

	if len(handled) != len(expectedHandled) {
		t.Fatalf("handled records = %v, want %v", handled, expectedHandled)
	}
	for i, value := range handled {
		if value != expectedHandled[i] {
			t.Fatalf("handled records = %v, want %v", handled, expectedHandled)
		}
	}

	commitKeys := make([]string, 0, len(commitRecords))
	for _, record := range commitRecords {
		commitKeys = append(commitKeys, recordKey(record.Topic, record.Partition, record.Offset))
	}
	sort.Strings(commitKeys)

	expectedCommitKeys := []string{
		recordKey("posts", 0, 0),
		recordKey("posts", 1, 1),
	}
	sort.Strings(expectedCommitKeys)

	if len(commitKeys) != len(expectedCommitKeys) {
		t.Fatalf("commit records = %v, want %v", commitKeys, expectedCommitKeys)
	}
	for i, value := range commitKeys {
		if value != expectedCommitKeys[i] {
			t.Fatalf("commit records = %v, want %v", commitKeys, expectedCommitKeys)
		}
	}
}

func recordKey(topic string, partition int32, offset int64) string {
	return fmt.Sprintf("%s:%d:%d", topic, partition, offset)
}
