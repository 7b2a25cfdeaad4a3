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

package lccount

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pierrec/lz4"

	"github.com/cocopc/retention/pkg/common/moerr"
	"github.com/cocopc/retention/pkg/container/retention"
)

// maxPartialStateSize bounds the decompressed body of a partial state.
var maxPartialStateSize int64 = 256 << 20

// MarshalBinary encodes the partial states of e, uncompressed.
func (e *Exec) MarshalBinary() ([]byte, error) {
	return e.Marshal(false)
}

// Marshal encodes the partial states of e:
//
//	flags byte, then the body
//	body: uvarint n, n * (uvarint len, key, uvarint len, state)
//
// With compress the body is an lz4 frame and flagLZ4 is set.
func (e *Exec) Marshal(compress bool) ([]byte, error) {
	body := binary.AppendUvarint(nil, uint64(len(e.groups)))
	for _, g := range e.groups {
		state := g.acc.Marshal()
		body = binary.AppendUvarint(body, uint64(len(g.key)))
		body = append(body, g.key...)
		body = binary.AppendUvarint(body, uint64(len(state)))
		body = append(body, state...)
	}
	if !compress {
		return append([]byte{0}, body...), nil
	}

	var buf bytes.Buffer
	buf.WriteByte(flagLZ4)
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(body); err != nil {
		return nil, moerr.ConvertGoError(moerr.Context(), err)
	}
	if err := w.Close(); err != nil {
		return nil, moerr.ConvertGoError(moerr.Context(), err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes the output of Marshal into a new Exec bound to env.
func Unmarshal(env *retention.Env, data []byte) (*Exec, error) {
	if len(data) == 0 {
		return nil, moerr.NewInvalidInputNoCtx("empty lc_count partial state")
	}
	flags, body := data[0], data[1:]
	if flags&^flagLZ4 != 0 {
		return nil, moerr.NewNotSupportedNoCtx("lc_count partial state flags %#x", flags)
	}
	if flags&flagLZ4 != 0 {
		var err error
		r := io.LimitReader(lz4.NewReader(bytes.NewReader(body)), maxPartialStateSize+1)
		if body, err = io.ReadAll(r); err != nil {
			return nil, moerr.NewInvalidInputNoCtx("lc_count partial state: %v", err)
		}
		if int64(len(body)) > maxPartialStateSize {
			return nil, moerr.NewInvalidInputNoCtx("lc_count partial state exceeds %d bytes", maxPartialStateSize)
		}
	}

	d := decoder{buf: body}
	n := d.uvarint()
	e := NewExec(env)
	for i := uint64(0); i < n && d.err == nil; i++ {
		key := d.bytes()
		state := d.bytes()
		if d.err != nil {
			break
		}
		idx := e.GroupIndex(string(key))
		var acc retention.Accumulator
		if err := acc.Unmarshal(state); err != nil {
			return nil, err
		}
		e.groups[idx].acc.Merge(&acc)
	}
	if d.err != nil {
		return nil, d.err
	}
	if len(d.buf) != 0 {
		return nil, moerr.NewInvalidInputNoCtx("%d trailing bytes in lc_count partial state", len(d.buf))
	}
	return e, nil
}

type decoder struct {
	buf []byte
	err error
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf)
	if n <= 0 {
		d.err = moerr.NewUnexpectedEOF(moerr.Context(), "lc_count partial state")
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

func (d *decoder) bytes() []byte {
	size := d.uvarint()
	if d.err != nil {
		return nil
	}
	if size > uint64(len(d.buf)) {
		d.err = moerr.NewUnexpectedEOF(moerr.Context(), "lc_count partial state")
		return nil
	}
	b := d.buf[:size]
	d.buf = d.buf[size:]
	return b
}
