package keys

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
)

// Secret names accepted by the store.
const (
	Pollinations = "pollinations"
	GoFileToken  = "gofile-token"
	GoFileFolder = "gofile-folder"
)

// ConfigDirEnvVar overrides the platform config directory.
const ConfigDirEnvVar = "POLLGEN_CONFIG_DIR"

// EnvVars maps each secret to the environment variable that overrides it.
var EnvVars = map[string]string{
	Pollinations: "POLLINATIONS_API_KEY",
	GoFileToken:  "GOFILE_API_TOKEN",
	GoFileFolder: "GOFILE_FOLDER_ID",
}

// Names returns every known secret name in a stable order.
func Names() []string {
	return []string{Pollinations, GoFileToken, GoFileFolder}
}

func IsKnown(name string) bool {
	_, ok := EnvVars[name]
	return ok
}

// Store keeps credentials in a keys.json file readable only by the owner.
type Store struct {
	configDir string
}

type entry struct {
	Value string `json:"value"`
}

type document map[string]entry

// NewStore opens the store in the platform config directory.
func NewStore(getenv func(string) string) (*Store, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	configDir, err := configDir(getenv)
	if err != nil {
		return nil, err
	}
	return &Store{configDir: configDir}, nil
}

func NewStoreAt(dir string) *Store {
	return &Store{configDir: dir}
}

func configDir(getenv func(string) string) (string, error) {
	if dir := getenv(ConfigDirEnvVar); dir != "" {
		return dir, nil
	}

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "pollgen"), nil
	case "windows":
		appData := getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "pollgen"), nil
	default:
		configHome := getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configHome = filepath.Join(home, ".config")
		}
		return filepath.Join(configHome, "pollgen"), nil
	}
}

func (s *Store) Path() string {
	return filepath.Join(s.configDir, "keys.json")
}

func (s *Store) load() (document, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return make(document), nil
		}
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse keys.json: %w", err)
	}
	if doc == nil {
		doc = make(document)
	}
	return doc, nil
}

func (s *Store) save(doc document) error {
	if err := os.MkdirAll(s.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(s.Path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write keys.json: %w", err)
	}
	return nil
}

func (s *Store) Set(name, value string) error {
	if !IsKnown(name) {
		return fmt.Errorf("unknown secret %q: must be one of %v", name, Names())
	}
	doc, err := s.load()
	if err != nil {
		return err
	}

	doc[name] = entry{Value: value}
	return s.save(doc)
}

// Get returns "" without error when the secret is not stored.
func (s *Store) Get(name string) (string, error) {
	doc, err := s.load()
	if err != nil {
		return "", err
	}
	return doc[name].Value, nil
}

func (s *Store) Delete(name string) error {
	doc, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := doc[name]; !ok {
		return fmt.Errorf("no value stored for %s", name)
	}

	delete(doc, name)
	return s.save(doc)
}

// List returns the stored secret names, sorted.
func (s *Store) List() ([]string, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Mask shows the first six characters of a secret.
func Mask(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	r := []rune(secret)
	if len(r) <= 6 {
		return "******"
	}
	return string(r[:6]) + "..."
}
