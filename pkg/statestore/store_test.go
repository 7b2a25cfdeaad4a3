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

package statestore

import (
	"context"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"

	"github.com/cocopc/retention/pkg/common/moerr"
	"github.com/cocopc/retention/pkg/container/retention"
	"github.com/cocopc/retention/pkg/sql/colexec/lccount"
)

func row(when int64, what string) retention.Row {
	return retention.Row{
		When:         when,
		FirstLength:  7,
		SecondLength: 15,
		What:         what,
		StartEvents:  "register",
		EndEvents:    "login",
	}
}

func newTestStore(t *testing.T, fs vfs.FS) *Store {
	s, err := Open("state", WithFS(fs))
	require.NoError(t, err)
	return s
}

func TestMerge(t *testing.T) {
	s := newTestStore(t, vfs.NewMem())
	defer s.Close()
	env := retention.NewEnv()

	acc, err := s.Get("ns", "u1")
	require.NoError(t, err)
	require.True(t, acc.IsEmpty())

	var a, b retention.Accumulator
	require.NoError(t, a.Fill(env, row(2, "register")))
	require.NoError(t, b.Fill(env, row(5, "login")))

	got, err := s.Merge("ns", "u1", &a)
	require.NoError(t, err)
	require.Equal(t, a.Marshal(), got.Marshal())

	got, err = s.Merge("ns", "u1", &b)
	require.NoError(t, err)
	start, end := got.Decode()
	require.Equal(t, int64(4), start)
	require.Equal(t, int64(16), end)

	acc, err = s.Get("ns", "u1")
	require.NoError(t, err)
	require.Equal(t, got.Marshal(), acc.Marshal())

	// other namespaces are separate
	acc, err = s.Get("ns2", "u1")
	require.NoError(t, err)
	require.True(t, acc.IsEmpty())

	// empty states are not written
	got, err = s.Merge("ns", "u2", &retention.Accumulator{})
	require.NoError(t, err)
	require.True(t, got.IsEmpty())
	n := 0
	require.NoError(t, s.Scan("ns", func(string, *retention.Accumulator) error { n++; return nil }))
	require.Equal(t, 1, n)
}

func TestMergeExecAcrossRuns(t *testing.T) {
	fs := vfs.NewMem()
	env := retention.NewEnv()

	run1 := lccount.NewExec(env)
	require.NoError(t, run1.BatchFill(
		[]string{"u1", "u2"},
		[]retention.Row{row(0, "register"), row(3, "register")}))
	s := newTestStore(t, fs)
	require.NoError(t, s.MergeExec(context.Background(), "lc", run1))
	require.NoError(t, s.Close())

	run2 := lccount.NewExec(env)
	require.NoError(t, run2.BatchFill(
		[]string{"u1", "u3"},
		[]retention.Row{row(4, "login"), row(1, "register")}))
	s = newTestStore(t, fs)
	defer s.Close()
	require.NoError(t, s.MergeExec(context.Background(), "lc", run2))

	// run2 now holds the union for the keys it saw
	require.Equal(t, []lccount.Result{
		{Key: "u1", Start: 1, End: 8},
		{Key: "u3", Start: 2, End: 0},
	}, run2.Flush())

	var keys []string
	var starts []int64
	require.NoError(t, s.Scan("lc", func(key string, acc *retention.Accumulator) error {
		keys = append(keys, key)
		start, _ := acc.Decode()
		starts = append(starts, start)
		return nil
	}))
	require.Equal(t, []string{"u1", "u2", "u3"}, keys)
	require.Equal(t, []int64{1, 8, 2}, starts)
}

func TestMergeExecKeepsExecOnError(t *testing.T) {
	s := newTestStore(t, vfs.NewMem())
	defer s.Close()
	env := retention.NewEnv()

	var stored retention.Accumulator
	require.NoError(t, stored.Fill(env, row(1, "register")))
	_, err := s.Merge("lc", "u1", &stored)
	require.NoError(t, err)
	require.NoError(t, s.db.Set(encodeKey("lc", "u2"), []byte{1, 2, 3}, pebble.Sync))

	exec := lccount.NewExec(env)
	require.NoError(t, exec.BatchFill(
		[]string{"u1", "u2"},
		[]retention.Row{row(4, "login"), row(2, "register")}))
	before, err := exec.MarshalBinary()
	require.NoError(t, err)

	err = s.MergeExec(context.Background(), "lc", exec)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrSizeNotMatch), "%v", err)

	after, err := exec.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, before, after)

	acc, err := s.Get("lc", "u1")
	require.NoError(t, err)
	require.Equal(t, stored.Marshal(), acc.Marshal())
}

func TestClosedStore(t *testing.T) {
	s := newTestStore(t, vfs.NewMem())
	require.NoError(t, s.Close())

	_, err := s.Get("lc", "u1")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState), "%v", err)
	_, err = s.Merge("lc", "u1", &retention.Accumulator{})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState), "%v", err)
	err = s.MergeExec(context.Background(), "lc", lccount.NewExec(retention.NewEnv()))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState), "%v", err)
	err = s.Scan("lc", func(string, *retention.Accumulator) error { return nil })
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState), "%v", err)
	require.True(t, moerr.IsMoErrCode(s.Close(), moerr.ErrInvalidState))
}

func TestUpperBound(t *testing.T) {
	require.Equal(t, []byte("ns0"), upperBound([]byte("ns/")))
	require.Equal(t, []byte{'a', 1}, upperBound([]byte{'a', 0, 0xff}))
	require.Nil(t, upperBound([]byte{0xff, 0xff}))
}
