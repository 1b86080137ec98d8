package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trial.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadTrialConfig(t *testing.T) {
	t.Parallel()

	t.Run("minimal config gets defaults", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, `{
			"agents": ["SQ01s", "SQ02s"],
			"formations": [{"name": "line"}, {"name": "grid"}]
		}`)

		cfg, err := LoadTrialConfig(path)
		require.NoError(t, err)

		assert.Equal(t, []string{"SQ01s", "SQ02s"}, cfg.Agents)
		assert.Equal(t, 50, cfg.GetTickRate())
		assert.Equal(t, 1.0, cfg.GetWindowSeconds())
		assert.Equal(t, 50, cfg.WindowTicks())
		assert.Equal(t, 10*time.Second, cfg.GetSimInitTimeout())
		assert.Equal(t, 10*time.Second, cfg.GetTakeOffTimeout())
		assert.Equal(t, 5*time.Second, cfg.GetHoverWait())
		assert.Equal(t, 20*time.Second, cfg.GetAssignmentTimeout())
		assert.Equal(t, time.Second, cfg.GetFormationReceivedWait())
		assert.Equal(t, time.Second, cfg.GetConvergedWait())
		assert.Equal(t, 90*time.Second, cfg.GetGridlockTimeout())
		assert.Equal(t, 600*time.Second, cfg.GetTrialTimeout())
		assert.Equal(t, 0.05, cfg.GetPositionTolerance())
		assert.Equal(t, 1.0, cfg.GetZeroVelThreshold())
		assert.Equal(t, 0.95, cfg.GetAvoidanceThreshold())
		assert.Equal(t, 0.98, cfg.GetSmoothingAlpha())
		assert.Equal(t, 1.0, cfg.GetTakeoffAltitude())
	})

	t.Run("explicit values override defaults", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, `{
			"agents": ["SQ01s"],
			"formations": [{"name": "swarm"}],
			"tick_rate": 20,
			"window_seconds": 2,
			"trial_timeout": "5m",
			"takeoff_altitude": 1.4,
			"smoothing_alpha": 0.9
		}`)

		cfg, err := LoadTrialConfig(path)
		require.NoError(t, err)

		assert.Equal(t, 20, cfg.GetTickRate())
		assert.Equal(t, 40, cfg.WindowTicks())
		assert.Equal(t, 5*time.Minute, cfg.GetTrialTimeout())
		assert.Equal(t, 1.4, cfg.GetTakeoffAltitude())
		assert.Equal(t, 0.9, cfg.GetSmoothingAlpha())
	})

	t.Run("rejects non-json extension", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "trial.yaml")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

		_, err := LoadTrialConfig(path)
		assert.Error(t, err)
	})
}

func TestTrialConfigValidate(t *testing.T) {
	t.Parallel()

	agents := []string{"SQ01s"}
	formations := []FormationSpec{{Name: "line"}}

	tests := []struct {
		name    string
		cfg     TrialConfig
		wantErr string
	}{
		{
			name:    "no agents",
			cfg:     TrialConfig{Formations: formations},
			wantErr: "at least one agent",
		},
		{
			name:    "duplicate agents",
			cfg:     TrialConfig{Agents: []string{"a", "a"}, Formations: formations},
			wantErr: "duplicate agent",
		},
		{
			name:    "empty formation plan",
			cfg:     TrialConfig{Agents: agents},
			wantErr: "formation plan",
		},
		{
			name:    "unnamed formation",
			cfg:     TrialConfig{Agents: agents, Formations: []FormationSpec{{}}},
			wantErr: "must be named",
		},
		{
			name: "bad tick rate",
			cfg: TrialConfig{
				Agents: agents, Formations: formations,
				TickRate: ptrInt(0),
			},
			wantErr: "tick_rate",
		},
		{
			name: "alpha out of range",
			cfg: TrialConfig{
				Agents: agents, Formations: formations,
				SmoothingAlpha: ptrFloat64(1.5),
			},
			wantErr: "smoothing_alpha",
		},
		{
			name: "bad duration",
			cfg: TrialConfig{
				Agents: agents, Formations: formations,
				TrialTimeout: ptrString("ten minutes"),
			},
			wantErr: "trial_timeout",
		},
		{
			name: "valid",
			cfg:  TrialConfig{Agents: agents, Formations: formations},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func ptrInt(v int) *int             { return &v }
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
