package messagebroker

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"gotest.tools/v3/assert"

	"dtw/pkg/logger"
)

func testLog(t *testing.T) *logger.Log {
	t.Helper()
	log, err := logger.New("test", "", false)
	assert.NilError(t, err)
	return log
}

func testActivity(at ActivityType) *Activity {
	return &Activity{
		Type:      at,
		CID:       "cid-1",
		IssuerDID: "did:example:issuer123",
		HolderDID: "did:example:holder456",
		At:        time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestActivityTypeValid(t *testing.T) {
	for _, at := range []ActivityType{ActivityIssued, ActivityReceived, ActivityPresented, ActivityRevoked, ActivityDeleted} {
		assert.Assert(t, at.Valid(), "type %s", at)
	}
	assert.Assert(t, !ActivityType("EXPORTED").Valid())
}

func TestNoopRejectsUnknownType(t *testing.T) {
	err := Noop{}.Publish(context.Background(), testActivity("SOMETHING_ELSE"))
	assert.ErrorContains(t, err, "unknown activity type")

	assert.NilError(t, Noop{}.Publish(context.Background(), testActivity(ActivityIssued)))
}

func TestKafkaPublish(t *testing.T) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, config)
	producer.ExpectSendMessageAndSucceed()

	k := &Kafka{producer: producer, topic: "credential_activity", log: testLog(t)}
	err := k.Publish(context.Background(), testActivity(ActivityRevoked))
	assert.NilError(t, err)
	assert.NilError(t, k.Close())
}

func TestKafkaPublishFailure(t *testing.T) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, config)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	k := &Kafka{producer: producer, topic: "credential_activity", log: testLog(t)}
	err := k.Publish(context.Background(), testActivity(ActivityIssued))
	assert.ErrorContains(t, err, "publish activity")
	assert.NilError(t, k.Close())
}

func TestKafkaRejectsUnknownType(t *testing.T) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, config)

	k := &Kafka{producer: producer, topic: "credential_activity", log: testLog(t)}
	err := k.Publish(context.Background(), testActivity("NOT_A_TYPE"))
	assert.ErrorContains(t, err, "unknown activity type")
	assert.NilError(t, k.Close())
}
