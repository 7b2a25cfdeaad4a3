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

package retention

import (
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/lni/goutils/leaktest"
	"github.com/stretchr/testify/require"
)

func TestListParser(t *testing.T) {
	tests := []struct {
		list string
		want []string
	}{
		{list: "A,B", want: []string{"A", "B"}},
		{list: " A , B ,C", want: []string{"A", "B", "C"}},
		{list: "A,,A", want: []string{"A"}},
		{list: "", want: []string{}},
		{list: " , ", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.list, func(t *testing.T) {
			set := ListParser{}.Parse(tt.list)
			require.Equal(t, tt.want, set.Names())
			require.Equal(t, len(tt.want), set.Len())
			require.False(t, set.Contains(""))
		})
	}
}

func TestClassifierParsesOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	parser := NewMockEventParser(ctrl)
	parser.EXPECT().Parse("A,B").DoAndReturn(ListParser{}.Parse).Times(1)

	c := NewClassifier(parser, 0)
	set := c.Classify(RoleStart, "A,B")
	require.True(t, set.Contains("A"))
	require.True(t, set.Contains("B"))
	require.False(t, set.Contains("C"))

	set = c.Classify(RoleStart, "A,B")
	require.True(t, set.Contains("A"))
	require.Equal(t, 1, c.Len())
}

func TestClassifierSeparatesRoles(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	parser := NewMockEventParser(ctrl)
	parser.EXPECT().Parse("A,B").DoAndReturn(ListParser{}.Parse).Times(2)
	parser.EXPECT().Parse("C").DoAndReturn(ListParser{}.Parse).Times(1)

	c := NewClassifier(parser, 0)
	for i := 0; i < 3; i++ {
		require.True(t, c.Classify(RoleStart, "A,B").Contains("A"))
		require.True(t, c.Classify(RoleEnd, "A,B").Contains("B"))
		require.True(t, c.Classify(RoleEnd, "C").Contains("C"))
	}
	require.Equal(t, 3, c.Len())
}

func TestClassifierConcurrentFirstAccess(t *testing.T) {
	defer leaktest.AfterTest(t)()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	lists := []string{"A,B", "C,D", "E", "A,B,C,D,E"}
	parser := NewMockEventParser(ctrl)
	for _, list := range lists {
		// once per role
		parser.EXPECT().Parse(list).DoAndReturn(ListParser{}.Parse).Times(2)
	}

	c := NewClassifier(parser, 0)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for g := 0; g < 32; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			<-start
			for i := 0; i < 100; i++ {
				list := lists[(g+i)%len(lists)]
				role := RoleStart
				if i%2 == 1 {
					role = RoleEnd
				}
				if !c.Classify(role, list).Contains(list[:1]) {
					t.Errorf("list %q does not contain %q", list, list[:1])
				}
			}
		}(g)
	}
	close(start)
	wg.Wait()
	require.Equal(t, 2*len(lists), c.Len())
}

func TestClassifierWarnSize(t *testing.T) {
	c := NewClassifier(nil, 1)
	require.False(t, c.Classify(RoleStart, "A").Contains("B"))
	require.True(t, c.Classify(RoleEnd, "B").Contains("B"))
	require.True(t, c.Classify(RoleEnd, "C").Contains("C"))
	require.True(t, c.warned.Load())
	require.Equal(t, 3, c.Len())
}
