// Copyright 2022 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/cocopc/retention/pkg/config"
	"github.com/cocopc/retention/pkg/driver"
	"github.com/cocopc/retention/pkg/logutil"
	"github.com/cocopc/retention/pkg/source"
	"github.com/cocopc/retention/pkg/statestore"
)

var (
	configFile = flag.String("cfg", "./etc/lc-tool.toml", "toml configuration of the retention query")
)

func main() {
	flag.Parse()

	cfg, err := config.ParseConfigFromFile(*configFile)
	if err != nil {
		panic(fmt.Sprintf("failed to parse config from %s, error: %s", *configFile, err.Error()))
	}
	logutil.SetupLogger(&cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logutil.Error("lc-tool failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	var opts []driver.Option
	if cfg.Store.Dir != "" {
		store, err := statestore.Open(cfg.Store.Dir)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, driver.WithStore(store))
	}

	d, err := driver.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer d.Close()

	src, err := source.Open(ctx, cfg.Source)
	if err != nil {
		return err
	}
	defer src.Close()

	report, err := d.Run(ctx, src)
	if err != nil {
		return err
	}
	return printReport(os.Stdout, report, cfg.Exec.PrintGroups)
}
