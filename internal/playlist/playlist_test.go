// SPDX-License-Identifier: MIT
package playlist

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemValidate(t *testing.T) {
	tests := []struct {
		name    string
		item    Item
		wantErr bool
	}{
		{"valid image", Item{ID: "a", URL: "https://x/a.jpg", Type: TypeImage, Duration: 5}, false},
		{"valid video zero duration", Item{ID: "b", URL: "https://x/b.mp4", Type: TypeVideo}, false},
		{"empty url", Item{ID: "c", Type: TypeImage}, true},
		{"whitespace url", Item{ID: "c", URL: "  ", Type: TypeImage}, true},
		{"unknown type", Item{ID: "d", URL: "https://x", Type: "gif"}, true},
		{"negative duration", Item{ID: "e", URL: "https://x", Type: TypeVideo, Duration: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseDocumentAbsentFieldsStayNil(t *testing.T) {
	doc, dropped := ParseDocument([]byte(`{"orientation":"portrait"}`))
	require.Empty(t, dropped)

	assert.Nil(t, doc.Playlist, "absent playlist must mean unchanged")
	assert.Nil(t, doc.Command)
	require.NotNil(t, doc.Orientation)
	assert.Equal(t, "portrait", *doc.Orientation)
}

func TestParseDocumentDropsMalformedItems(t *testing.T) {
	raw := []byte(`{"playlist":[
		{"id":"good","url":"https://x/a.jpg","type":"image","duration":5},
		{"id":"bad","url":"","type":"image"},
		{"id":"worse","url":"https://x/b","type":"hologram"}
	]}`)

	doc, dropped := ParseDocument(raw)
	require.NotNil(t, doc.Playlist)
	assert.Len(t, dropped, 2)

	want := []Item{{ID: "good", URL: "https://x/a.jpg", Type: TypeImage, Duration: 5}}
	if diff := cmp.Diff(want, *doc.Playlist); diff != "" {
		t.Errorf("playlist mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDocumentEmptyPlaylistIsExplicit(t *testing.T) {
	doc, dropped := ParseDocument([]byte(`{"playlist":[]}`))
	require.Empty(t, dropped)
	require.NotNil(t, doc.Playlist, "explicit empty playlist must clear, not skip")
	assert.Empty(t, *doc.Playlist)
}

func TestParseDocumentGarbage(t *testing.T) {
	_, dropped := ParseDocument([]byte(`{`))
	assert.NotEmpty(t, dropped)
}

func TestParseDocumentCommand(t *testing.T) {
	doc, dropped := ParseDocument([]byte(`{"command":{"type":"RELOAD","timestamp":1712000000000}}`))
	require.Empty(t, dropped)
	require.NotNil(t, doc.Command)
	assert.Equal(t, CommandReload, doc.Command.Type)
	assert.EqualValues(t, 1712000000000, doc.Command.Timestamp)
}
