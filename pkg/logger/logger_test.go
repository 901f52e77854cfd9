/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidLevel(t *testing.T) {
	_, err := New(&Config{Level: "shouting"})
	require.Error(t, err)
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, errNilConfig)
}

func TestDebugOverridesLevel(t *testing.T) {
	log, err := New(&Config{Level: "error", Debug: true, Output: "stderr"})
	require.NoError(t, err)

	assert.Equal(t, zerolog.DebugLevel, log.WithComponent("test").GetLevel())

	log.SetDebug(false)
	assert.Equal(t, zerolog.InfoLevel, log.WithComponent("test").GetLevel())
}

func TestDefaultConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("DEBUG", "yes")
	t.Setenv("LOG_OUTPUT", "stderr")

	cfg := DefaultConfig()
	assert.Equal(t, "warn", cfg.Level)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "stderr", cfg.Output)
}

func TestTestLoggerDiscards(t *testing.T) {
	log := NewTestLogger()
	log.Info().Str("k", "v").Msg("not written")
	assert.Equal(t, zerolog.Disabled, log.WithComponent("x").GetLevel())
}
