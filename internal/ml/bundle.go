package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// LatestBundleName is the always-current alias overwritten after every
// successful training run.
const LatestBundleName = "latest.json"

// Bundle is the persisted training artifact: one fitted classifier, its
// fitted preprocessing pipeline, the ordered feature names it was
// trained on, and a metadata block. Bundles are immutable once written;
// later training runs supersede, never mutate.
type Bundle struct {
	ModelName      string    `json:"model_name"`
	Version        string    `json:"version"` // "ml-v1", "ml-v2", ...
	FeatureColumns []string  `json:"feature_columns"`
	Metrics        Metrics   `json:"metrics"`
	TrainedAt      time.Time `json:"trained_at"`

	Classifier Classifier `json:"-"`
	Imputer    *Imputer   `json:"imputer"`
	Scaler     *Scaler    `json:"scaler"`
}

// bundleFile is the on-disk JSON shape. The classifier serialises as a
// named parameter block so the artifact stays self-describing.
type bundleFile struct {
	ModelName      string          `json:"model_name"`
	Version        string          `json:"version"`
	FeatureColumns []string        `json:"feature_columns"`
	Metrics        Metrics         `json:"metrics"`
	TrainedAt      time.Time       `json:"trained_at"`
	ClassifierType string          `json:"classifier_type"`
	Classifier     json.RawMessage `json:"classifier"`
	Imputer        *Imputer        `json:"imputer"`
	Scaler         *Scaler         `json:"scaler"`
}

var versionPattern = regexp.MustCompile(`_v(\d+)\.json$`)

// VersionNumber extracts N from a "ml-vN" version tag.
func (b *Bundle) VersionNumber() int {
	const prefix = "ml-v"
	if len(b.Version) > len(prefix) {
		if n, err := strconv.Atoi(b.Version[len(prefix):]); err == nil {
			return n
		}
	}
	return 0
}

// NextVersion scans dir for existing versioned artifacts of modelName
// and returns the next "ml-vN" tag.
func NextVersion(dir, modelName string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, modelName+"_v*.json"))
	if err != nil {
		return "", fmt.Errorf("scan model versions: %w", err)
	}
	maxVersion := 0
	for _, path := range matches {
		m := versionPattern.FindStringSubmatch(filepath.Base(path))
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > maxVersion {
			maxVersion = n
		}
	}
	return fmt.Sprintf("ml-v%d", maxVersion+1), nil
}

// SaveBundle writes the versioned artifact and then overwrites the
// "latest" alias. Both writes go to a temp file first and rename into
// place, so a failed run never corrupts a previously published artifact.
func SaveBundle(dir string, b *Bundle) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create models directory: %w", err)
	}

	params, err := marshalClassifier(b.Classifier)
	if err != nil {
		return "", err
	}
	file := bundleFile{
		ModelName:      b.ModelName,
		Version:        b.Version,
		FeatureColumns: b.FeatureColumns,
		Metrics:        b.Metrics,
		TrainedAt:      b.TrainedAt,
		ClassifierType: b.Classifier.Name(),
		Classifier:     params,
		Imputer:        b.Imputer,
		Scaler:         b.Scaler,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal bundle: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_v%d.json", b.ModelName, b.VersionNumber()))
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}
	if err := writeAtomic(filepath.Join(dir, LatestBundleName), data); err != nil {
		return "", err
	}
	return path, nil
}

// LoadBundle reads and validates an artifact. os.ErrNotExist passes
// through unwrapped so callers can distinguish "missing" from "corrupt".
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file bundleFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode bundle %s: %w", path, err)
	}
	if file.ClassifierType == "" {
		return nil, fmt.Errorf("bundle %s: missing classifier type", path)
	}
	if len(file.FeatureColumns) == 0 {
		return nil, fmt.Errorf("bundle %s: missing feature columns", path)
	}
	classifier, err := unmarshalClassifier(file.ClassifierType, file.Classifier)
	if err != nil {
		return nil, fmt.Errorf("bundle %s: %w", path, err)
	}
	return &Bundle{
		ModelName:      file.ModelName,
		Version:        file.Version,
		FeatureColumns: file.FeatureColumns,
		Metrics:        file.Metrics,
		TrainedAt:      file.TrainedAt,
		Classifier:     classifier,
		Imputer:        file.Imputer,
		Scaler:         file.Scaler,
	}, nil
}

// ListBundles returns the versioned artifact filenames in dir, sorted.
// The "latest" alias is excluded.
func ListBundles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*_v*.json"))
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	names := make([]string, 0, len(matches))
	for _, path := range matches {
		names = append(names, filepath.Base(path))
	}
	sort.Strings(names)
	return names, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".bundle-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}
