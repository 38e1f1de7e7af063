package repository_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/digestmail/digestmail/internal/config"
	"github.com/digestmail/digestmail/internal/model"
	"github.com/digestmail/digestmail/internal/repository"
)

func storage(dir, settingsFile string) config.StorageConfig {
	return config.StorageConfig{
		BodyFile:       filepath.Join(dir, "weekly_digest.txt"),
		SettingsFile:   filepath.Join(dir, settingsFile),
		BackupDir:      filepath.Join(dir, "backups"),
		DefaultSubject: "Default Subject",
	}
}

func sampleImages(t *testing.T) model.ImageRegistry {
	t.Helper()
	images, err := model.NewImageRegistry(
		model.ImageEntry{ID: "image_2", Path: "images/b.png"},
		model.ImageEntry{ID: "image_1", Path: "images/a.png"},
	)
	require.NoError(t, err)
	return images
}

func TestTemplateRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	for _, settingsFile := range []string{"image_mappings.json", "image_mappings.yaml"} {
		t.Run(settingsFile, func(t *testing.T) {
			t.Parallel()

			repo := repository.NewTemplateRepository(storage(t.TempDir(), settingsFile))
			body := "# Title\r\n  spaced  \n[image_2]\n\n"
			images := sampleImages(t)

			require.NoError(t, repo.Save(body, repository.Settings{Images: images, Subject: "Issue 12"}))

			draft, err := repo.Load()
			require.NoError(t, err)
			require.True(t, draft.BodyFound)
			require.True(t, draft.SettingsFound)
			require.Equal(t, body, draft.Body)
			require.Equal(t, "Issue 12", draft.Settings.Subject)
			require.Equal(t, images.Entries(), draft.Settings.Images.Entries())
		})
	}
}

func TestTemplateRepositoryJSONLayout(t *testing.T) {
	t.Parallel()

	cfg := storage(t.TempDir(), "image_mappings.json")
	repo := repository.NewTemplateRepository(cfg)
	require.NoError(t, repo.Save("", repository.Settings{Images: sampleImages(t), Subject: "S"}))

	data, err := os.ReadFile(cfg.SettingsFile)
	require.NoError(t, err)
	require.Equal(t, `{"images":{"image_2":"images/b.png","image_1":"images/a.png"},"subject":"S"}`, string(data))
}

func TestTemplateRepositoryLoad(t *testing.T) {
	t.Parallel()

	t.Run("missing files are not errors", func(t *testing.T) {
		t.Parallel()

		draft, err := repository.NewTemplateRepository(storage(t.TempDir(), "image_mappings.json")).Load()
		require.NoError(t, err)
		require.False(t, draft.BodyFound)
		require.False(t, draft.SettingsFound)
	})

	t.Run("missing subject falls back to default", func(t *testing.T) {
		t.Parallel()

		cfg := storage(t.TempDir(), "image_mappings.json")
		require.NoError(t, os.WriteFile(cfg.SettingsFile, []byte(`{"images":{"image_1":"a.png"}}`), 0644))

		draft, err := repository.NewTemplateRepository(cfg).Load()
		require.NoError(t, err)
		require.Equal(t, "Default Subject", draft.Settings.Subject)
		require.Equal(t, 1, draft.Settings.Images.Len())
	})

	t.Run("saved empty subject stays empty", func(t *testing.T) {
		t.Parallel()

		for _, settingsFile := range []string{"image_mappings.json", "image_mappings.yaml"} {
			repo := repository.NewTemplateRepository(storage(t.TempDir(), settingsFile))
			require.NoError(t, repo.Save("body", repository.Settings{Images: sampleImages(t), Subject: ""}))

			draft, err := repo.Load()
			require.NoError(t, err)
			require.Empty(t, draft.Settings.Subject, settingsFile)
			require.Equal(t, 2, draft.Settings.Images.Len(), settingsFile)
		}
	})

	t.Run("null subject falls back to default", func(t *testing.T) {
		t.Parallel()

		cfg := storage(t.TempDir(), "image_mappings.json")
		require.NoError(t, os.WriteFile(cfg.SettingsFile, []byte(`{"images":{},"subject":null}`), 0644))

		draft, err := repository.NewTemplateRepository(cfg).Load()
		require.NoError(t, err)
		require.Equal(t, "Default Subject", draft.Settings.Subject)
	})

	t.Run("malformed settings fail", func(t *testing.T) {
		t.Parallel()

		cfg := storage(t.TempDir(), "image_mappings.json")
		require.NoError(t, os.WriteFile(cfg.SettingsFile, []byte(`{"images":`), 0644))

		_, err := repository.NewTemplateRepository(cfg).Load()
		require.Error(t, err)
	})
}

func TestTemplateRepositoryBackup(t *testing.T) {
	t.Parallel()

	cfg := storage(t.TempDir(), "image_mappings.json")
	repo := repository.NewTemplateRepository(cfg)
	require.NoError(t, repo.Save("hello", repository.Settings{}))

	now := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	path, err := repo.Backup(now)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(cfg.BackupDir, "weekly_digest_2024-05-01_09-30-00.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestTemplateRepositoryBackupWithoutBody(t *testing.T) {
	t.Parallel()

	_, err := repository.NewTemplateRepository(storage(t.TempDir(), "image_mappings.json")).Backup(time.Now())
	require.Error(t, err)
}
