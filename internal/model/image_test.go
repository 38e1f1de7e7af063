package model_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/digestmail/digestmail/internal/model"
)

func TestImageRegistry(t *testing.T) {
	t.Parallel()

	t.Run("keeps insertion order for content indices", func(t *testing.T) {
		t.Parallel()

		var r model.ImageRegistry
		require.NoError(t, r.Add("image_2", "b.png"))
		require.NoError(t, r.Add("image_1", "a.png"))

		n, ok := r.ContentIndex("image_2")
		require.True(t, ok)
		require.Equal(t, 1, n)

		n, ok = r.ContentIndex("image_1")
		require.True(t, ok)
		require.Equal(t, 2, n)

		_, ok = r.ContentIndex("image_3")
		require.False(t, ok)
	})

	t.Run("rejects duplicate identifiers", func(t *testing.T) {
		t.Parallel()

		var r model.ImageRegistry
		require.NoError(t, r.Add("image_1", "a.png"))
		require.ErrorIs(t, r.Add("image_1", "b.png"), model.ErrDuplicateImage)
		require.Equal(t, 1, r.Len())
	})

	t.Run("max serial ignores foreign identifiers", func(t *testing.T) {
		t.Parallel()

		r, err := model.NewImageRegistry(
			model.ImageEntry{ID: "image_4", Path: "a.png"},
			model.ImageEntry{ID: "logo", Path: "logo.png"},
			model.ImageEntry{ID: "image_2", Path: "b.png"},
		)
		require.NoError(t, err)
		require.Equal(t, 4, r.MaxSerial())
	})

	t.Run("clone is independent", func(t *testing.T) {
		t.Parallel()

		var r model.ImageRegistry
		require.NoError(t, r.Add("image_1", "a.png"))
		c := r.Clone()
		require.NoError(t, c.Add("image_2", "b.png"))
		require.Equal(t, 1, r.Len())
		require.Equal(t, 2, c.Len())
	})
}

func TestImageRegistryJSON(t *testing.T) {
	t.Parallel()

	t.Run("round trips in order", func(t *testing.T) {
		t.Parallel()

		r, err := model.NewImageRegistry(
			model.ImageEntry{ID: "image_10", Path: "j.png"},
			model.ImageEntry{ID: "image_2", Path: "b.png"},
			model.ImageEntry{ID: "image_1", Path: "a.png"},
		)
		require.NoError(t, err)

		data, err := json.Marshal(r)
		require.NoError(t, err)
		require.Equal(t, `{"image_10":"j.png","image_2":"b.png","image_1":"a.png"}`, string(data))

		var decoded model.ImageRegistry
		require.NoError(t, json.Unmarshal(data, &decoded))
		require.Equal(t, r.Entries(), decoded.Entries())
	})

	t.Run("null decodes to empty", func(t *testing.T) {
		t.Parallel()

		var r model.ImageRegistry
		require.NoError(t, json.Unmarshal([]byte(`null`), &r))
		require.Zero(t, r.Len())
	})

	t.Run("rejects non-object", func(t *testing.T) {
		t.Parallel()

		var r model.ImageRegistry
		require.Error(t, json.Unmarshal([]byte(`["image_1"]`), &r))
	})
}

func TestImageRegistryYAML(t *testing.T) {
	t.Parallel()

	r, err := model.NewImageRegistry(
		model.ImageEntry{ID: "image_3", Path: "c.png"},
		model.ImageEntry{ID: "image_1", Path: "a.png"},
	)
	require.NoError(t, err)

	data, err := yaml.Marshal(struct {
		Images model.ImageRegistry `yaml:"images"`
	}{r})
	require.NoError(t, err)

	var decoded struct {
		Images model.ImageRegistry `yaml:"images"`
	}
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	require.Equal(t, r.Entries(), decoded.Images.Entries())
}

func TestParseImageID(t *testing.T) {
	t.Parallel()

	n, ok := model.ParseImageID("image_12")
	require.True(t, ok)
	require.Equal(t, 12, n)

	for _, id := range []string{"image_", "img_1", "image_x", ""} {
		_, ok := model.ParseImageID(id)
		require.False(t, ok, id)
	}
}
