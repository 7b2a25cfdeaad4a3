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

package logutil2

import (
	"context"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cocopc/retention/pkg/logutil"
)

func TestContextFields(t *testing.T) {
	defer logutil.SetupLogger(&logutil.LogConfig{Level: "info", Format: "console"})

	filename := path.Join(t.TempDir(), "lc-tool.log")
	logutil.SetupLogger(&logutil.LogConfig{
		Level:    "debug",
		Format:   "json",
		Filename: filename,
		MaxSize:  1,
	})

	ctx := logutil.WithFields(context.Background(), zap.String("namespace", "lc_count"))
	ctx = logutil.WithFields(ctx, zap.Int("shard", 2))
	Info(ctx, "merged", zap.Int("groups", 3))
	Debugf(ctx, "flushed %d groups", 4)
	Warn(context.Background(), "plain")
	require.NoError(t, logutil.GetGlobalLogger().Sync())

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	out := string(data)
	require.Regexp(t, `"msg":"merged".*"namespace":"lc_count".*"shard":2.*"groups":3`, out)
	require.Regexp(t, `"msg":"flushed 4 groups".*"namespace":"lc_count"`, out)
	require.Regexp(t, `"msg":"plain"\}`, out)
}
