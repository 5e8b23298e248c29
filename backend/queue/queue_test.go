package queue

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProducer records published bodies so tests can run without a broker.
type fakeProducer struct {
	published [][]byte
	fail      bool
}

func (f *fakeProducer) Publish(body []byte) error {
	if f.fail {
		return errors.New("broker unavailable")
	}
	f.published = append(f.published, body)
	return nil
}

func TestPublishRewardSerializesMessage(t *testing.T) {
	producer := &fakeProducer{}
	q := &Queue{Producers: []Producer{producer}}

	err := PublishReward(&RewardMessage{Id: "evt-1", To: "hunter@example.com", Level: 2}, q)
	require.NoError(t, err)
	require.Len(t, producer.published, 1)

	decoded := &RewardMessage{}
	require.NoError(t, json.Unmarshal(producer.published[0], decoded))
	assert.Equal(t, "evt-1", decoded.Id)
	assert.Equal(t, "hunter@example.com", decoded.To)
	assert.Equal(t, 2, decoded.Level)
}

func TestPublishRewardRoundRobin(t *testing.T) {
	globalCount = 0
	first := &fakeProducer{}
	second := &fakeProducer{}
	q := &Queue{Producers: []Producer{first, second}}

	for i := 0; i < 4; i++ {
		require.NoError(t, PublishReward(&RewardMessage{Id: "evt"}, q))
	}

	assert.Len(t, first.published, 2)
	assert.Len(t, second.published, 2)
}

func TestPublishRewardNoProducers(t *testing.T) {
	err := PublishReward(&RewardMessage{Id: "evt"}, &Queue{})
	assert.Error(t, err)
}

func TestPublishRewardProducerFailure(t *testing.T) {
	globalCount = 0
	q := &Queue{Producers: []Producer{&fakeProducer{fail: true}}}

	err := PublishReward(&RewardMessage{Id: "evt"}, q)
	assert.Error(t, err)
}
