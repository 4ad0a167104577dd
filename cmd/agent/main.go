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

	"github.com/carverauto/factsync/pkg/agent"
	"github.com/carverauto/factsync/pkg/config"
	"github.com/carverauto/factsync/pkg/db"
	"github.com/carverauto/factsync/pkg/facts"
	"github.com/carverauto/factsync/pkg/identity"
	"github.com/carverauto/factsync/pkg/lifecycle"
	"github.com/carverauto/factsync/pkg/logger"
	"github.com/carverauto/factsync/pkg/settings"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/factsync/agent.json", "Path to agent config file")
	flag.Parse()

	ctx := context.Background()

	cfgLoader := config.NewConfig(nil)

	var cfg agent.Config
	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	mainLogger, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.Database, mainLogger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := db.Bootstrap(ctx, pool); err != nil {
		return err
	}

	sysinfo := facts.NewSystemProvider(mainLogger)

	svc, err := agent.New(&cfg, agent.Deps{
		Identity:     identity.NewResolver(db.NewSlotStore(pool), mainLogger),
		Settings:     settings.NewResolver(db.NewPolicyStore(pool), mainLogger),
		Store:        db.NewFactStore(pool),
		Fingerprints: sysinfo,
		Hardware:     sysinfo,
		Software:     facts.NewDpkgProvider(mainLogger),
		Power:        sysinfo,
		Logger:       mainLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to build agent: %w", err)
	}

	return lifecycle.Run(ctx, svc, mainLogger)
}
