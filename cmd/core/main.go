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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/carverauto/farmradar/pkg/config"
	"github.com/carverauto/farmradar/pkg/core"
	"github.com/carverauto/farmradar/pkg/lifecycle"
	"github.com/carverauto/farmradar/pkg/models"
	"github.com/carverauto/farmradar/pkg/version"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/farmradar/core.json", "Path to core config file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetFullVersion())
		return nil
	}

	ctx := context.Background()

	var cfg models.CoreConfig
	if err := config.NewConfig(nil).LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	coreLogger, err := lifecycle.CreateComponentLogger("core", cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	coreLogger.Info().Str("version", version.GetFullVersion()).Msg("Starting farmradar core")

	svc, err := core.NewService(ctx, &cfg, coreLogger)
	if err != nil {
		return fmt.Errorf("failed to create core service: %w", err)
	}

	return lifecycle.Run(ctx, svc, coreLogger)
}
