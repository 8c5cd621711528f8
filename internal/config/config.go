/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
	// DataDir holds the key-value store, captures and crash reports. Empty
	// means the per-user default next to the config file.
	DataDir string `yaml:"data_dir"`
}

// GestureConfig carries the touch tuning of the object manipulation engine.
// Durations are milliseconds, distances are screen pixels, angles degrees.
type GestureConfig struct {
	DragThresholdPx       float64 `yaml:"drag_threshold_px"`
	DragGraceMs           int     `yaml:"drag_grace_ms"`
	DeleteGraceMs         int     `yaml:"delete_grace_ms"`
	DeleteMaxMovePx       float64 `yaml:"delete_max_move_px"`
	DeleteMaxDurationMs   int     `yaml:"delete_max_duration_ms"`
	DeleteHitFactor       float64 `yaml:"delete_hit_factor"`
	RotateRadPerPx        float64 `yaml:"rotate_rad_per_px"`
	MaxPitchDeg           float64 `yaml:"max_pitch_deg"`
	SmoothingRate         float64 `yaml:"smoothing_rate"`
	PinchSensitivity      float64 `yaml:"pinch_sensitivity"`
	PinchRotateMultiplier float64 `yaml:"pinch_rotate_multiplier"`
	PinchDeadZone         float64 `yaml:"pinch_dead_zone"`
	MinScale              float64 `yaml:"min_scale"`
	MaxScale              float64 `yaml:"max_scale"`
	EndCooldownMs         int     `yaml:"end_cooldown_ms"`
}

type SceneConfig struct {
	CameraPosition [3]float64 `yaml:"camera_position"`
	CameraTarget   [3]float64 `yaml:"camera_target"`
	FovDeg         float64    `yaml:"fov_deg"`
	Width          int        `yaml:"width"`
	Height         int        `yaml:"height"`
	// Background is a #rrggbb fill used when no video frame is composited.
	Background string `yaml:"background"`
}

type ShareConfig struct {
	Endpoint  string `yaml:"endpoint"`
	TimeoutMs int    `yaml:"timeout_ms"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Gesture       GestureConfig `yaml:"gesture"`
	Scene         SceneConfig   `yaml:"scene"`
	Share         ShareConfig   `yaml:"share"`
	Logging       LoggingConfig `yaml:"logging"`
}

// DefaultGesture returns the tuning the touch engine ships with.
func DefaultGesture() GestureConfig {
	return GestureConfig{
		DragThresholdPx:       4,
		DragGraceMs:           200,
		DeleteGraceMs:         600,
		DeleteMaxMovePx:       10,
		DeleteMaxDurationMs:   500,
		DeleteHitFactor:       0.85,
		RotateRadPerPx:        0.01,
		MaxPitchDeg:           60,
		SmoothingRate:         12,
		PinchSensitivity:      8.4,
		PinchRotateMultiplier: 2.2,
		PinchDeadZone:         0.00025,
		MinScale:              0.1,
		MaxScale:              3,
		EndCooldownMs:         60,
	}
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false},
		Gesture:       DefaultGesture(),
		Scene: SceneConfig{
			CameraPosition: [3]float64{0, 3, 6},
			CameraTarget:   [3]float64{0, 0, 0},
			FovDeg:         75,
			Width:          1280,
			Height:         720,
			Background:     "#ffffff",
		},
		Share:   ShareConfig{Endpoint: "", TimeoutMs: 15000},
		Logging: LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigDir        = "ROV_CONFIG_DIR"
	EnvDataDir          = "ROV_DATA_DIR"
	EnvTelemetryOptIn   = "ROV_TELEMETRY_OPT_IN"
	EnvShareEndpoint    = "ROV_SHARE_ENDPOINT"
	EnvShareTimeoutMs   = "ROV_SHARE_TIMEOUT_MS"
	EnvPinchSensitivity = "ROV_PINCH_SENSITIVITY"
	EnvPinchRotate      = "ROV_PINCH_ROTATE_MULTIPLIER"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "ROV_LOG_LEVEL"
	EnvLogFormat = "ROV_LOG_FORMAT"
	EnvLogSource = "ROV_LOG_SOURCE"
	EnvLogFile   = "ROV_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "RoomOverlay"
	keyringToken   = "share_token"
)

// ConfigDir returns the per-user configuration directory. ROV_CONFIG_DIR
// replaces the platform default.
func ConfigDir() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvConfigDir)); v != "" {
		return v, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "RoomOverlay")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "RoomOverlay")
	default: // linux and others
		home := os.Getenv("HOME")
		if home == "" {
			return "", errors.New("cannot resolve config directory")
		}
		base = filepath.Join(home, ".config", "roomoverlay")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DataDir resolves where stores and captures live.
func (c AppConfig) DataDir() (string, error) {
	if d := strings.TrimSpace(c.General.DataDir); d != "" {
		return d, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// It also loads the share token from keyring (not kept inside the struct; returned separately).
func Load() (AppConfig, string, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), "", err
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		return cfg, "", err
	}
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// LoadFrom reads the YAML file at path over the defaults and applies the
// environment. A missing file is not an error; a malformed one is.
func LoadFrom(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			applyEnvOverrides(&cfg)
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes the user config YAML and persists the token into OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return err
		}
	}
	return nil
}

// ShareToken returns the upload token from the keyring, or "".
func ShareToken() string {
	tok, err := tokenStore.Get(keyringService, keyringToken)
	if err != nil {
		return ""
	}
	return tok
}

// ClearShareToken removes the stored upload token.
func ClearShareToken() error { return tokenStore.Delete(keyringService, keyringToken) }

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if strings.TrimSpace(src.General.DataDir) != "" {
		dst.General.DataDir = strings.TrimSpace(src.General.DataDir)
	}
	mergeGesture(&dst.Gesture, src.Gesture)
	// scene
	if src.Scene.CameraPosition != ([3]float64{}) {
		dst.Scene.CameraPosition = src.Scene.CameraPosition
	}
	if src.Scene.CameraTarget != ([3]float64{}) {
		dst.Scene.CameraTarget = src.Scene.CameraTarget
	}
	if src.Scene.FovDeg > 0 && src.Scene.FovDeg < 180 {
		dst.Scene.FovDeg = src.Scene.FovDeg
	}
	if src.Scene.Width > 0 {
		dst.Scene.Width = src.Scene.Width
	}
	if src.Scene.Height > 0 {
		dst.Scene.Height = src.Scene.Height
	}
	if strings.TrimSpace(src.Scene.Background) != "" {
		dst.Scene.Background = strings.TrimSpace(src.Scene.Background)
	}
	// share
	if strings.TrimSpace(src.Share.Endpoint) != "" {
		dst.Share.Endpoint = strings.TrimSpace(src.Share.Endpoint)
	}
	if src.Share.TimeoutMs != 0 {
		dst.Share.TimeoutMs = src.Share.TimeoutMs
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

// mergeGesture copies every positive tuning value; zero keeps the default.
func mergeGesture(dst *GestureConfig, src GestureConfig) {
	setF := func(d *float64, v float64) {
		if v > 0 {
			*d = v
		}
	}
	setI := func(d *int, v int) {
		if v > 0 {
			*d = v
		}
	}
	setF(&dst.DragThresholdPx, src.DragThresholdPx)
	setI(&dst.DragGraceMs, src.DragGraceMs)
	setI(&dst.DeleteGraceMs, src.DeleteGraceMs)
	setF(&dst.DeleteMaxMovePx, src.DeleteMaxMovePx)
	setI(&dst.DeleteMaxDurationMs, src.DeleteMaxDurationMs)
	setF(&dst.DeleteHitFactor, src.DeleteHitFactor)
	setF(&dst.RotateRadPerPx, src.RotateRadPerPx)
	setF(&dst.MaxPitchDeg, src.MaxPitchDeg)
	setF(&dst.SmoothingRate, src.SmoothingRate)
	setF(&dst.PinchSensitivity, src.PinchSensitivity)
	setF(&dst.PinchRotateMultiplier, src.PinchRotateMultiplier)
	setF(&dst.PinchDeadZone, src.PinchDeadZone)
	setF(&dst.MinScale, src.MinScale)
	setF(&dst.MaxScale, src.MaxScale)
	setI(&dst.EndCooldownMs, src.EndCooldownMs)
	if dst.MinScale > dst.MaxScale {
		dst.MinScale, dst.MaxScale = dst.MaxScale, dst.MinScale
	}
}

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvDataDir)); v != "" {
		cfg.General.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvShareEndpoint)); v != "" {
		cfg.Share.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvShareTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Share.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvPinchSensitivity)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Gesture.PinchSensitivity = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvPinchRotate)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Gesture.PinchRotateMultiplier = f
		}
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	names := map[string]string{
		"general.data_dir":                EnvDataDir,
		"general.telemetry_opt_in":        EnvTelemetryOptIn,
		"share.endpoint":                  EnvShareEndpoint,
		"share.timeout_ms":                EnvShareTimeoutMs,
		"gesture.pinch_sensitivity":       EnvPinchSensitivity,
		"gesture.pinch_rotate_multiplier": EnvPinchRotate,
		"logging.level":                   EnvLogLevel,
		"logging.format":                  EnvLogFormat,
		"logging.source":                  EnvLogSource,
		"logging.file":                    EnvLogFile,
	}
	env, ok := names[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// EffectiveTimeout returns the share upload timeout.
func (s ShareConfig) EffectiveTimeout() time.Duration {
	if s.TimeoutMs <= 0 {
		return time.Duration(Defaults().Share.TimeoutMs) * time.Millisecond
	}
	return time.Duration(s.TimeoutMs) * time.Millisecond
}
