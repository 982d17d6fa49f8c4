package queue

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPickReplyTopic(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "job.topic", pickReplyTopic("job.topic", "default.topic"))
	assert.Equal(t, "default.topic", pickReplyTopic("", "default.topic"))
	assert.Equal(t, "default.topic", pickReplyTopic("   ", "default.topic"))
}

func TestDLQTopicFor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "tzurot.generate.reply.dlq", dlqTopicFor("tzurot.generate.reply"))
	assert.Equal(t, "tzurot.generate.reply.dlq", dlqTopicFor("tzurot.generate.reply.dlq"))
	assert.Equal(t, "", dlqTopicFor(""))
}

func TestIsTransientError(t *testing.T) {
	t.Parallel()
	assert.True(t, isTransientError(errors.New("request timeout")))
	assert.True(t, isTransientError(errors.New("429 too many requests")))
	assert.True(t, isTransientError(errors.New("upstream server error: 503")))
	assert.False(t, isTransientError(errors.New("400 bad request: invalid schema")))
	assert.False(t, isTransientError(nil))
}
