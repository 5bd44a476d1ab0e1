package humastar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignals(t *testing.T) {
	s, err := ParseSignals([]byte(`{"identity":"row:3","lng":2.35,"lat":0,"multi":true}`))
	require.NoError(t, err)

	assert.Equal(t, "row:3", s.String("identity"))
	assert.Equal(t, 2.35, s.Float("lng"))
	assert.True(t, s.Bool("multi"))
	assert.True(t, s.Has("lat"))
	assert.Zero(t, s.Float("lat"))

	assert.Empty(t, s.String("lng"), "wrong type reads as zero")
	assert.False(t, s.Has("missing"))
}

func TestSignalsInputRejectsBadBody(t *testing.T) {
	in := &SignalsInput{RawBody: []byte(`{not json`)}
	_, err := in.MustParse()
	assert.Error(t, err)

	in.RawBody = []byte(`{"identity":"cat:air"}`)
	s, err := in.MustParse()
	require.NoError(t, err)
	assert.Equal(t, "cat:air", s.String("identity"))
}
