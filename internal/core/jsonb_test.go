// AngelaMos | 2026
// jsonb_test.go

package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONBValue(t *testing.T) {
	v, err := JSONB(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = JSONB(`{"days":["Mon"]}`).Value()
	require.NoError(t, err)
	assert.Equal(t, `{"days":["Mon"]}`, v)
}

func TestJSONBScan(t *testing.T) {
	var j JSONB
	require.NoError(t, j.Scan([]byte(`{"a":1}`)))
	assert.JSONEq(t, `{"a":1}`, string(j))

	require.NoError(t, j.Scan(`[1,2]`))
	assert.JSONEq(t, `[1,2]`, string(j))

	require.NoError(t, j.Scan(nil))
	assert.Nil(t, j)

	assert.Error(t, j.Scan(42))
}

func TestJSONBEmbedsVerbatim(t *testing.T) {
	attrs, err := MarshalJSONB(map[string]any{"subjects": []string{"Math"}})
	require.NoError(t, err)

	out, err := json.Marshal(struct {
		Attributes JSONB `json:"attributes"`
		Empty      JSONB `json:"empty"`
	}{Attributes: attrs})
	require.NoError(t, err)

	assert.JSONEq(t, `{"attributes":{"subjects":["Math"]},"empty":null}`, string(out))
}
