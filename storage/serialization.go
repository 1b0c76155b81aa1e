// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

const cachedEmbeddingVersion = 1

// CachedEmbeddingMUS encodes CachedEmbedding values as
// version, model, creation time (unix micro), vector length, vector.
var CachedEmbeddingMUS = cachedEmbeddingMUS{}

type cachedEmbeddingMUS struct{}

func (cachedEmbeddingMUS) Size(v CachedEmbedding) (size int) {
	size = varint.PositiveInt.Size(cachedEmbeddingVersion)
	size += ord.String.Size(v.Model)
	size += varint.Int64.Size(v.CreatedAt.UnixMicro())
	size += varint.PositiveInt.Size(len(v.Vector))
	for _, f := range v.Vector {
		size += raw.Float32.Size(f)
	}
	return size
}

func (cachedEmbeddingMUS) Marshal(v CachedEmbedding, bs []byte) (n int) {
	n = varint.PositiveInt.Marshal(cachedEmbeddingVersion, bs)
	n += ord.String.Marshal(v.Model, bs[n:])
	n += varint.Int64.Marshal(v.CreatedAt.UnixMicro(), bs[n:])
	n += varint.PositiveInt.Marshal(len(v.Vector), bs[n:])
	for _, f := range v.Vector {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

func (cachedEmbeddingMUS) Unmarshal(bs []byte) (v CachedEmbedding, n int, err error) {
	version, n, err := varint.PositiveInt.Unmarshal(bs)
	if err != nil {
		return v, n, err
	}
	if version != cachedEmbeddingVersion {
		return v, n, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	var m int
	v.Model, m, err = ord.String.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return v, n, err
	}

	micros, m, err := varint.Int64.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return v, n, err
	}
	v.CreatedAt = time.UnixMicro(micros).UTC()

	length, m, err := varint.PositiveInt.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return v, n, err
	}
	// each float32 takes four bytes
	if length < 0 || length > (len(bs)-n)/4 {
		return v, n, fmt.Errorf("%w: vector length %d exceeds data", ErrSerializationFailed, length)
	}
	v.Vector = make([]float32, length)
	for i := range v.Vector {
		v.Vector[i], m, err = raw.Float32.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return v, n, err
		}
	}
	return v, n, nil
}

// MarshalCachedEmbedding serializes a CachedEmbedding to bytes.
func MarshalCachedEmbedding(entry *CachedEmbedding) []byte {
	buf := make([]byte, CachedEmbeddingMUS.Size(*entry))
	CachedEmbeddingMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalCachedEmbedding deserializes a CachedEmbedding from bytes.
func UnmarshalCachedEmbedding(data []byte) (*CachedEmbedding, error) {
	entry, _, err := CachedEmbeddingMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &entry, nil
}
