package kafka

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/juniper/pkg/models"
)

func TestEventType(t *testing.T) {
	t.Run("HeaderWins", func(t *testing.T) {
		msg := &IncomingMessage{
			Headers: map[string]string{"type": models.EventTypeReferenceImport},
			Value:   []byte(`{"type":"something-else"}`),
		}
		assert.Equal(t, models.EventTypeReferenceImport, msg.EventType())
	})

	t.Run("SniffedFromBody", func(t *testing.T) {
		msg := &IncomingMessage{
			Headers: map[string]string{},
			Value:   []byte(`{"type":"reference.import","set_name":"x"}`),
		}
		assert.Equal(t, models.EventTypeReferenceImport, msg.EventType())
	})

	t.Run("DefaultsToInstanceBatch", func(t *testing.T) {
		msg := &IncomingMessage{
			Headers: map[string]string{},
			Value:   []byte(`{"case_uuid":"abc"}`),
		}
		assert.Equal(t, models.EventTypeInstancesObserved, msg.EventType())
	})
}

func TestParseInstancesObserved(t *testing.T) {
	evt := models.InstancesObservedEvent{
		CaseUUID: "case-1",
		DeviceID: "dev-1",
		Instances: []models.ObservedInstance{
			{TypeID: models.DomainTypeID, Value: "example.com"},
		},
	}
	value, err := json.Marshal(evt)
	require.NoError(t, err)

	msg := &IncomingMessage{Value: value}
	parsed, err := msg.ParseInstancesObserved()
	require.NoError(t, err)
	assert.Equal(t, "case-1", parsed.CaseUUID)
	require.Len(t, parsed.Instances, 1)
	assert.Equal(t, "example.com", parsed.Instances[0].Value)

	t.Run("MalformedValueFails", func(t *testing.T) {
		bad := &IncomingMessage{Value: []byte(`{`)}
		_, err := bad.ParseInstancesObserved()
		require.Error(t, err)
	})
}
