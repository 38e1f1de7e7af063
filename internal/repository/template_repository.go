package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/digestmail/digestmail/internal/config"
	"github.com/digestmail/digestmail/internal/model"
)

// backupTimeLayout matches the suffix of body backups, e.g. _2024-05-01_09-30-00
const backupTimeLayout = "2006-01-02_15-04-05"

// Settings is the structured half of a saved draft
type Settings struct {
	Images  model.ImageRegistry `json:"images" yaml:"images"`
	Subject string              `json:"subject" yaml:"subject"`
}

// settingsFile is Settings as decoded; a nil Subject means the key is absent
type settingsFile struct {
	Images  model.ImageRegistry `json:"images" yaml:"images"`
	Subject *string             `json:"subject" yaml:"subject"`
}

// Draft is a saved template as read back from disk
type Draft struct {
	Body     string
	Settings Settings
	// BodyFound and SettingsFound report which files existed on load
	BodyFound     bool
	SettingsFound bool
}

// TemplateRepository persists the draft body as plain text and the subject
// and image registry as a JSON or YAML settings file.
type TemplateRepository struct {
	bodyPath       string
	settingsPath   string
	backupDir      string
	defaultSubject string
}

// NewTemplateRepository creates a new TemplateRepository
func NewTemplateRepository(cfg config.StorageConfig) *TemplateRepository {
	subject := cfg.DefaultSubject
	if subject == "" {
		subject = model.DefaultSubject
	}
	return &TemplateRepository{
		bodyPath:       cfg.BodyFile,
		settingsPath:   cfg.SettingsFile,
		backupDir:      cfg.BackupDir,
		defaultSubject: subject,
	}
}

// Save writes the body byte for byte, then the settings file
func (r *TemplateRepository) Save(body string, settings Settings) error {
	if err := writeFileAtomic(r.bodyPath, []byte(body)); err != nil {
		return fmt.Errorf("failed to write body file: %w", err)
	}

	data, err := r.encodeSettings(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := writeFileAtomic(r.settingsPath, data); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// Load reads the saved draft. Missing files are reported through the Found
// flags rather than as errors. Only an absent subject key falls back to the
// default; a saved empty subject stays empty.
func (r *TemplateRepository) Load() (*Draft, error) {
	var d Draft

	data, err := os.ReadFile(r.settingsPath)
	switch {
	case err == nil:
		var raw settingsFile
		if err := r.decodeSettings(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode settings file %s: %w", r.settingsPath, err)
		}
		defaults := settingsFile{Subject: &r.defaultSubject}
		if err := mergo.Merge(&raw, defaults, mergo.WithoutDereference); err != nil {
			return nil, fmt.Errorf("failed to apply settings defaults: %w", err)
		}
		d.Settings = Settings{Images: raw.Images, Subject: *raw.Subject}
		d.SettingsFound = true
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	body, err := os.ReadFile(r.bodyPath)
	switch {
	case err == nil:
		d.Body = string(body)
		d.BodyFound = true
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read body file: %w", err)
	}

	return &d, nil
}

// Backup copies the body file to <backup dir>/<stem>_<timestamp><ext>
func (r *TemplateRepository) Backup(now time.Time) (string, error) {
	src, err := os.Open(r.bodyPath)
	if err != nil {
		return "", fmt.Errorf("failed to open body file: %w", err)
	}
	defer src.Close()

	base := filepath.Base(r.bodyPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext) + "_" + now.Format(backupTimeLayout) + ext
	dir := r.backupDir
	if dir == "" {
		dir = filepath.Dir(r.bodyPath)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	target := filepath.Join(dir, name)

	dst, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("failed to copy body file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("failed to close backup file: %w", err)
	}
	return target, nil
}

func (r *TemplateRepository) isYAML() bool {
	switch strings.ToLower(filepath.Ext(r.settingsPath)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func (r *TemplateRepository) encodeSettings(s Settings) ([]byte, error) {
	if r.isYAML() {
		return yaml.Marshal(s)
	}
	return json.Marshal(s)
}

func (r *TemplateRepository) decodeSettings(data []byte, s *settingsFile) error {
	if r.isYAML() {
		return yaml.Unmarshal(data, s)
	}
	return json.Unmarshal(data, s)
}

// writeFileAtomic replaces path with data so a failed write never leaves a
// truncated draft behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
