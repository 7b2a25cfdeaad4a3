// Copyright 2021 Matrix Origin
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

package config

import (
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-sql-driver/mysql"

	"github.com/cocopc/retention/pkg/common/moerr"
	"github.com/cocopc/retention/pkg/container/retention"
	"github.com/cocopc/retention/pkg/logutil"
)

const (
	SourceCSV   = "csv"
	SourceMySQL = "mysql"

	dateLayout = "2006-01-02"

	defaultGranularity = "day"
	defaultShards      = 4
	defaultNamespace   = "lc_count"
	defaultWarnSize    = 1024
)

// Config of lc-tool.
type Config struct {
	Log       logutil.LogConfig `toml:"log"`
	Retention RetentionConfig   `toml:"retention"`
	Source    SourceConfig      `toml:"source"`
	Exec      ExecConfig        `toml:"exec"`
	Store     StoreConfig       `toml:"store"`
}

// RetentionConfig describes the query: which events start and end a
// retention, and the two windows counted from start-date.
type RetentionConfig struct {
	//day, week or month. default: day
	Granularity string `toml:"granularity"`

	//the first day of the first window, YYYY-MM-DD
	StartDate string `toml:"start-date"`

	//default: the largest first window of the granularity
	FirstLength int32 `toml:"first-length"`

	//default: the largest second window of the granularity. 0 counts start events only
	SecondLength int32 `toml:"second-length"`

	//comma separated event names
	StartEvents string `toml:"start-events"`
	EndEvents   string `toml:"end-events"`
}

type SourceConfig struct {
	//csv or mysql. default: csv
	Type string `toml:"type"`

	//csv file path
	Path string `toml:"path"`

	//the csv file starts with a header line
	Header bool `toml:"header"`

	//mysql data source name, user:password@tcp(host:port)/db
	DSN string `toml:"dsn"`

	//query returning key, unix seconds and event name
	Query string `toml:"query"`
}

type ExecConfig struct {
	//number of simulated shards. default: 4
	Shards int `toml:"shards"`

	//size of the worker pool. default: number of cpus
	Workers int `toml:"workers"`

	//lz4 compress exchanged partial states
	Compress bool `toml:"compress"`

	//cached event lists above which a warning is logged. default: 1024
	ClassifierWarnSize int `toml:"classifier-warn-size"`

	//print the per group bitmaps
	PrintGroups bool `toml:"print-groups"`
}

type StoreConfig struct {
	//pebble directory, partial states are not persisted when empty
	Dir string `toml:"dir"`

	//key prefix of the states. default: lc_count
	Namespace string `toml:"namespace"`
}

// ParseConfigFromFile decodes, defaults and validates the config at path.
func ParseConfigFromFile(path string) (*Config, error) {
	cfg := &Config{}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, moerr.NewBadConfigNoCtx("decode %s: %v", path, err)
	}
	return cfg.finish(md)
}

// ParseConfig is ParseConfigFromFile on a toml document.
func ParseConfig(data string) (*Config, error) {
	cfg := &Config{}
	md, err := toml.Decode(data, cfg)
	if err != nil {
		return nil, moerr.NewBadConfigNoCtx("decode: %v", err)
	}
	return cfg.finish(md)
}

func (c *Config) finish(md toml.MetaData) (*Config, error) {
	c.setDefaults(md.IsDefined)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// SetDefaults fills the zero fields. A zero second-length is valid, so
// configs decoded from toml only get the default when the key is absent.
func (c *Config) SetDefaults() {
	c.setDefaults(func(...string) bool { return false })
}

func (c *Config) setDefaults(defined func(keys ...string) bool) {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.MaxSize == 0 {
		c.Log.MaxSize = 512
	}

	if c.Retention.Granularity == "" {
		c.Retention.Granularity = defaultGranularity
	}
	if g, err := retention.ParseGranularity(c.Retention.Granularity); err == nil {
		first, second := g.Limits()
		if c.Retention.FirstLength == 0 {
			c.Retention.FirstLength = first
		}
		if c.Retention.SecondLength == 0 && !defined("retention", "second-length") {
			c.Retention.SecondLength = second
		}
	}

	if c.Source.Type == "" {
		c.Source.Type = SourceCSV
	}

	if c.Exec.Shards <= 0 {
		c.Exec.Shards = defaultShards
	}
	if c.Exec.Workers <= 0 {
		c.Exec.Workers = runtime.NumCPU()
	}
	if c.Exec.ClassifierWarnSize == 0 {
		c.Exec.ClassifierWarnSize = defaultWarnSize
	}

	if c.Store.Namespace == "" {
		c.Store.Namespace = defaultNamespace
	}
}

func (c *Config) Validate() error {
	g, err := c.Granularity()
	if err != nil {
		return moerr.NewBadConfigNoCtx("retention.granularity: %v", err)
	}
	if _, err := c.StartTime(); err != nil {
		return moerr.NewBadConfigNoCtx("retention.start-date %q: %v", c.Retention.StartDate, err)
	}
	w := retention.Window{First: c.Retention.FirstLength, Second: c.Retention.SecondLength}
	if err := w.ValidateFor(g); err != nil {
		return moerr.NewBadConfigNoCtx("retention window: %v", err)
	}
	if strings.TrimSpace(c.Retention.StartEvents) == "" || strings.TrimSpace(c.Retention.EndEvents) == "" {
		return moerr.NewBadConfigNoCtx("retention.start-events and retention.end-events are required")
	}

	switch c.Source.Type {
	case SourceCSV:
		if c.Source.Path == "" {
			return moerr.NewBadConfigNoCtx("source.path is required by the csv source")
		}
	case SourceMySQL:
		if _, err := mysql.ParseDSN(c.Source.DSN); err != nil {
			return moerr.NewBadConfigNoCtx("source.dsn: %v", err)
		}
		if c.Source.Query == "" {
			return moerr.NewBadConfigNoCtx("source.query is required by the mysql source")
		}
	default:
		return moerr.NewBadConfigNoCtx("unknown source.type %q", c.Source.Type)
	}
	return nil
}

func (c *Config) Granularity() (retention.Granularity, error) {
	return retention.ParseGranularity(c.Retention.Granularity)
}

// StartTime returns start-date at midnight UTC.
func (c *Config) StartTime() (time.Time, error) {
	return time.ParseInLocation(dateLayout, c.Retention.StartDate, time.UTC)
}
