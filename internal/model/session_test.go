package model_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/digestmail/digestmail/internal/model"
)

func TestSessionRegisterImage(t *testing.T) {
	t.Parallel()

	t.Run("assigns sequential identifiers and appends placeholders", func(t *testing.T) {
		t.Parallel()

		s := model.NewSession("")
		require.Equal(t, model.DefaultSubject, s.Subject)

		id, err := s.RegisterImage("images/a.png")
		require.NoError(t, err)
		require.Equal(t, "image_1", id)
		require.Equal(t, "[image_1]\n", s.Body)

		id, err = s.RegisterImage("images/b.png")
		require.NoError(t, err)
		require.Equal(t, "image_2", id)
		require.Equal(t, "[image_1]\n\n[image_2]\n", s.Body)

		path, ok := s.Images.Get("image_2")
		require.True(t, ok)
		require.Equal(t, "images/b.png", path)
	})

	t.Run("continues numbering after restored images", func(t *testing.T) {
		t.Parallel()

		images, err := model.NewImageRegistry(
			model.ImageEntry{ID: "image_1", Path: "a.png"},
			model.ImageEntry{ID: "image_5", Path: "e.png"},
		)
		require.NoError(t, err)

		s := model.NewSession("Weekly")
		s.Restore("Loaded", "Hello", images)

		id, err := s.RegisterImage("f.png")
		require.NoError(t, err)
		require.Equal(t, "image_6", id)
		require.Equal(t, "Hello\n[image_6]\n", s.Body)
	})

	t.Run("counter never moves backwards", func(t *testing.T) {
		t.Parallel()

		s := model.NewSession("")
		for range 3 {
			_, err := s.RegisterImage("x.png")
			require.NoError(t, err)
		}
		s.Restore("s", "", model.ImageRegistry{})

		id, err := s.RegisterImage("y.png")
		require.NoError(t, err)
		require.Equal(t, "image_4", id)
	})
}

func TestSessionInsertImagePlaceholder(t *testing.T) {
	t.Parallel()

	s := model.NewSession("")
	_, err := s.RegisterImage("a.png")
	require.NoError(t, err)

	s.Body = "Intro"
	require.NoError(t, s.InsertImagePlaceholder("image_1"))
	require.Equal(t, "Intro\n[image_1]\n", s.Body)

	require.ErrorIs(t, s.InsertImagePlaceholder("image_9"), model.ErrUnknownImage)
}

func TestSessionResetAndClone(t *testing.T) {
	t.Parallel()

	s := model.NewSession("Digest")
	_, err := s.RegisterImage("a.png")
	require.NoError(t, err)

	c := s.Clone()
	s.Body = "changed"
	_, err = s.RegisterImage("b.png")
	require.NoError(t, err)

	require.Equal(t, "[image_1]\n", c.Body)
	require.Equal(t, 1, c.Images.Len())

	s.Reset("Digest")
	require.Equal(t, "Digest", s.Subject)
	require.Empty(t, s.Body)
	require.Zero(t, s.Images.Len())

	id, err := s.RegisterImage("c.png")
	require.NoError(t, err)
	require.Equal(t, "image_1", id)
}
