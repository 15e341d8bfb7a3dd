package jobs

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/sevigo/metroid/internal/core"
)

// envelope is the unit carried on the job queue.
type envelope struct {
	JobKey        string                   `msgpack:"job_key"`
	CorrelationID string                   `msgpack:"correlation_id"`
	Request       *core.DispatchJobRequest `msgpack:"request"`
}

func encodeEnvelope(env *envelope) ([]byte, error) {
	data, err := msgpack.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job %q: %w", env.JobKey, err)
	}
	return data, nil
}

func decodeEnvelope(data []byte) (*envelope, error) {
	env := &envelope{}
	if err := msgpack.Unmarshal(data, env); err != nil {
		return nil, fmt.Errorf("failed to decode job envelope: %w", err)
	}
	return env, nil
}
