package cli

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

const (
	profileDir  = "securetransfer"
	profileFile = "config.json"
	dirPerms    = 0o700
	filePerms   = 0o600
	DefaultURL  = "http://localhost:8080"
)

// Profile holds persisted CLI settings. SECURETRANSFER_SERVER and
// SECURETRANSFER_TOKEN override the stored values.
type Profile struct {
	ServerURL string `json:"server_url"`
	Token     string `json:"token"`
}

// ProfilePath returns the config file location. SECURETRANSFER_CONFIG
// replaces the default under the user config dir.
func ProfilePath() (string, error) {
	if p := os.Getenv("SECURETRANSFER_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, profileDir, profileFile), nil
}

// LoadProfile reads the profile from disk. A missing file yields defaults.
func LoadProfile() (*Profile, error) {
	profile := &Profile{ServerURL: DefaultURL}

	p, err := ProfilePath()
	if err == nil {
		data, readErr := os.ReadFile(p)
		switch {
		case readErr == nil:
			if err := json.Unmarshal(data, profile); err != nil {
				return nil, err
			}
		case !errors.Is(readErr, os.ErrNotExist):
			return nil, readErr
		}
	}

	if v := os.Getenv("SECURETRANSFER_SERVER"); v != "" {
		profile.ServerURL = v
	}
	if v := os.Getenv("SECURETRANSFER_TOKEN"); v != "" {
		profile.Token = v
	}
	if profile.ServerURL == "" {
		profile.ServerURL = DefaultURL
	}
	return profile, nil
}

// SaveProfile writes the profile, creating the directory if needed.
func SaveProfile(profile *Profile) error {
	p, err := ProfilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), dirPerms); err != nil {
		return err
	}
	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, filePerms)
}

// ClearProfile removes the stored profile.
func ClearProfile() error {
	p, err := ProfilePath()
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (p *Profile) HasToken() bool {
	return p.Token != ""
}
