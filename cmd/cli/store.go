package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ---- config/token store ----

type tokenFile struct {
	Server      string    `json:"server"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "nanocloud")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "nanocloud")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(server, tok string, exp time.Time) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{Server: server, AccessToken: tok, ExpiresAt: exp})
}

// loadToken returns the stored token if it is unexpired and was issued by server.
func loadToken(server string) (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", errors.New("not logged in")
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	if tf.Server != "" && tf.Server != server {
		return "", errors.New("token belongs to " + tf.Server + " (login required)")
	}
	return tf.AccessToken, nil
}

func clearToken() error {
	err := os.Remove(tokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
