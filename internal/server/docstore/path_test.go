package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"tickets/cs-abcde-12345", "tickets/cs-abcde-12345", false},
		{"/tickets/", "tickets", false},
		{"a/b_c/d.e", "a/b_c/d.e", false},
		{"", "", true},
		{"/", "", true},
		{"a//b", "", true},
		{"a/../b", "", true},
		{"a/./b", "", true},
		{"a/b c", "", true},
		{"a/ü", "", true},
	}
	for _, tt := range tests {
		got, err := CleanPath(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidPath, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestSplitJoin(t *testing.T) {
	parent, key := Split("tickets/cs-1")
	assert.Equal(t, "tickets", parent)
	assert.Equal(t, "cs-1", key)

	parent, key = Split("root")
	assert.Equal(t, "", parent)
	assert.Equal(t, "root", key)

	assert.Equal(t, "a/b/c", Join("a", "b", "c"))
}

func TestMerge(t *testing.T) {
	out, err := Merge([]byte(`{"a":1,"b":"x"}`), []byte(`{"b":"y","c":true}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":"y","c":true}`, string(out))

	_, err = Merge([]byte(`[1,2]`), []byte(`{"a":1}`))
	assert.ErrorIs(t, err, ErrNotObject)
	_, err = Merge([]byte(`null`), []byte(`{"a":1}`))
	assert.ErrorIs(t, err, ErrNotObject)
}

func TestFieldEquals(t *testing.T) {
	doc := []byte(`{"status":"Pending","n":1}`)
	assert.True(t, FieldEquals(doc, "status", "Pending"))
	assert.False(t, FieldEquals(doc, "status", "Verified"))
	assert.False(t, FieldEquals(doc, "n", "1"))
	assert.False(t, FieldEquals(doc, "missing", ""))
	assert.False(t, FieldEquals([]byte(`"x"`), "status", "x"))
}

func TestEncodeFields(t *testing.T) {
	_, err := EncodeFields(nil)
	assert.Error(t, err)
	_, err = EncodeFields(map[string]any{"a": nil})
	assert.Error(t, err)
	raw, err := EncodeFields(map[string]any{"a": "b"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"b"}`, string(raw))
}
