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


package core

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// ErrCorruptRecord is returned when an encoded record declares a length its
// bytes cannot hold.
var ErrCorruptRecord = errors.New("corrupt record")

var (
	IDMUS                  = idMUS{}
	DocumentMUS            = documentMUS{}
	DocumentMetadataMUS    = documentMetadataMUS{}
	JobMetadataMUS         = jobMetadataMUS{}
	ProcessingJobMUS       = processingJobMUS{}
	ReprocessingRequestMUS = reprocessingRequestMUS{}
	CheckpointMUS          = checkpointMUS{}
	IndexEntryMUS          = indexEntryMUS{}
)

var (
	_ mus.Serializer[Document]            = DocumentMUS
	_ mus.Serializer[ProcessingJob]       = ProcessingJobMUS
	_ mus.Serializer[ReprocessingRequest] = ReprocessingRequestMUS
	_ mus.Serializer[Checkpoint]          = CheckpointMUS
	_ mus.Serializer[IndexEntry]          = IndexEntryMUS
)

type serializer[T any] interface {
	Marshal(v T, bs []byte) (n int)
	Unmarshal(bs []byte) (v T, n int, err error)
	Size(v T) (size int)
}

// decoder reads fields in order and keeps the first error.
type decoder struct {
	bs  []byte
	n   int
	err error
}

func decode[T any](d *decoder, s serializer[T], dst *T) {
	if d.err != nil {
		return
	}
	v, n, err := s.Unmarshal(d.bs[d.n:])
	d.n += n
	if err != nil {
		d.err = err
		return
	}
	*dst = v
}

func skip[T any](s serializer[T], bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

// readLen decodes a collection length that must fit in the remaining bytes.
func readLen(bs []byte) (int, int, error) {
	l, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return 0, n, err
	}
	if l < 0 || l > len(bs)-n {
		return 0, n, ErrCorruptRecord
	}
	return l, n, nil
}

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) (n int) { return varint.Uint64.Marshal(uint64(v), bs) }

func (idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (idMUS) Size(v ID) (size int) { return varint.Uint64.Size(uint64(v)) }

func (s idMUS) Skip(bs []byte) (n int, err error) { return skip[ID](s, bs) }

// stringMUS encodes any string-kinded type as an ord string.
type stringMUS[T ~string] struct{}

func (stringMUS[T]) Marshal(v T, bs []byte) (n int) { return ord.String.Marshal(string(v), bs) }

func (stringMUS[T]) Unmarshal(bs []byte) (v T, n int, err error) {
	s, n, err := ord.String.Unmarshal(bs)
	return T(s), n, err
}

func (stringMUS[T]) Size(v T) (size int) { return ord.String.Size(string(v)) }

// timeMUS writes a presence flag followed by Unix nanoseconds, so the zero
// time survives a round trip. Decoded times are UTC.
type timeMUS struct{}

func (timeMUS) Marshal(v time.Time, bs []byte) (n int) {
	if v.IsZero() {
		return ord.Bool.Marshal(false, bs)
	}
	n = ord.Bool.Marshal(true, bs)
	return n + varint.Int64.Marshal(v.UnixNano(), bs[n:])
}

func (timeMUS) Unmarshal(bs []byte) (v time.Time, n int, err error) {
	set, n, err := ord.Bool.Unmarshal(bs)
	if err != nil || !set {
		return
	}
	ns, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	return time.Unix(0, ns).UTC(), n, nil
}

func (timeMUS) Size(v time.Time) (size int) {
	if v.IsZero() {
		return ord.Bool.Size(false)
	}
	return ord.Bool.Size(true) + varint.Int64.Size(v.UnixNano())
}

// float32MUS stores the IEEE bits as a varint.
type float32MUS struct{}

func (float32MUS) Marshal(v float32, bs []byte) (n int) {
	return varint.Uint32.Marshal(math.Float32bits(v), bs)
}

func (float32MUS) Unmarshal(bs []byte) (v float32, n int, err error) {
	u, n, err := varint.Uint32.Unmarshal(bs)
	return math.Float32frombits(u), n, err
}

func (float32MUS) Size(v float32) (size int) { return varint.Uint32.Size(math.Float32bits(v)) }

// sliceMUS encodes a length followed by each element. An empty slice decodes as nil.
type sliceMUS[T any] struct {
	elem serializer[T]
}

func (s sliceMUS[T]) Marshal(v []T, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, e := range v {
		n += s.elem.Marshal(e, bs[n:])
	}
	return
}

func (s sliceMUS[T]) Unmarshal(bs []byte) (v []T, n int, err error) {
	l, n, err := readLen(bs)
	if err != nil || l == 0 {
		return
	}
	v = make([]T, l)
	d := decoder{bs: bs, n: n}
	for i := range v {
		decode(&d, s.elem, &v[i])
	}
	return v, d.n, d.err
}

func (s sliceMUS[T]) Size(v []T) (size int) {
	size = varint.Int.Size(len(v))
	for _, e := range v {
		size += s.elem.Size(e)
	}
	return
}

// mapMUS encodes a string-keyed string map. An empty map decodes as nil.
type mapMUS[K ~string] struct{}

func (mapMUS[K]) Marshal(v map[K]string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for k, e := range v {
		n += ord.String.Marshal(string(k), bs[n:])
		n += ord.String.Marshal(e, bs[n:])
	}
	return
}

func (mapMUS[K]) Unmarshal(bs []byte) (v map[K]string, n int, err error) {
	l, n, err := readLen(bs)
	if err != nil || l == 0 {
		return
	}
	v = make(map[K]string, l)
	d := decoder{bs: bs, n: n}
	for range l {
		var k K
		var e string
		decode(&d, stringMUS[K]{}, &k)
		decode(&d, ord.String, &e)
		if d.err != nil {
			break
		}
		v[k] = e
	}
	return v, d.n, d.err
}

func (mapMUS[K]) Size(v map[K]string) (size int) {
	size = varint.Int.Size(len(v))
	for k, e := range v {
		size += ord.String.Size(string(k)) + ord.String.Size(e)
	}
	return
}

// rawMUS keeps a json.RawMessage as opaque bytes.
type rawMUS struct{}

func (rawMUS) Marshal(v json.RawMessage, bs []byte) (n int) { return ord.String.Marshal(string(v), bs) }

func (rawMUS) Unmarshal(bs []byte) (v json.RawMessage, n int, err error) {
	s, n, err := ord.String.Unmarshal(bs)
	if err != nil || s == "" {
		return nil, n, err
	}
	return json.RawMessage(s), n, nil
}

func (rawMUS) Size(v json.RawMessage) (size int) { return ord.String.Size(string(v)) }

var (
	stringList = sliceMUS[string]{elem: ord.String}
	vectors    = sliceMUS[float32]{elem: float32MUS{}}
	chunkList  = sliceMUS[IndexedChunk]{elem: indexedChunkMUS{}}
	times      = timeMUS{}
	labels     = mapMUS[string]{}
	jobFields  = mapMUS[MetadataKey]{}
)

type documentMetadataMUS struct{}

func (documentMetadataMUS) Marshal(v DocumentMetadata, bs []byte) (n int) {
	n = ord.String.Marshal(v.Title, bs)
	n += ord.String.Marshal(v.Company, bs[n:])
	n += varint.Int.Marshal(v.Year, bs[n:])
	n += ord.String.Marshal(v.Summary, bs[n:])
	n += stringList.Marshal(v.Keywords, bs[n:])
	n += ord.String.Marshal(v.DocumentType, bs[n:])
	n += labels.Marshal(v.Extra, bs[n:])
	return
}

func (documentMetadataMUS) Unmarshal(bs []byte) (v DocumentMetadata, n int, err error) {
	d := decoder{bs: bs}
	decode(&d, ord.String, &v.Title)
	decode(&d, ord.String, &v.Company)
	decode(&d, varint.Int, &v.Year)
	decode(&d, ord.String, &v.Summary)
	decode(&d, stringList, &v.Keywords)
	decode(&d, ord.String, &v.DocumentType)
	decode(&d, labels, &v.Extra)
	return v, d.n, d.err
}

func (documentMetadataMUS) Size(v DocumentMetadata) (size int) {
	return ord.String.Size(v.Title) +
		ord.String.Size(v.Company) +
		varint.Int.Size(v.Year) +
		ord.String.Size(v.Summary) +
		stringList.Size(v.Keywords) +
		ord.String.Size(v.DocumentType) +
		labels.Size(v.Extra)
}

func (s documentMetadataMUS) Skip(bs []byte) (n int, err error) { return skip[DocumentMetadata](s, bs) }

type documentMUS struct{}

func (documentMUS) Marshal(v Document, bs []byte) (n int) {
	n = IDMUS.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.Title, bs[n:])
	n += ord.String.Marshal(v.Filename, bs[n:])
	n += ord.String.Marshal(v.StorageID, bs[n:])
	n += ord.String.Marshal(v.SourceURL, bs[n:])
	n += ord.String.Marshal(v.ContentHash, bs[n:])
	n += stringMUS[Source]{}.Marshal(v.Source, bs[n:])
	n += stringMUS[DocumentStatus]{}.Marshal(v.Status, bs[n:])
	n += ord.String.Marshal(v.ProcessingError, bs[n:])
	n += DocumentMetadataMUS.Marshal(v.Metadata, bs[n:])
	n += ord.Bool.Marshal(v.Approved, bs[n:])
	n += varint.Int.Marshal(v.PageCount, bs[n:])
	n += ord.String.Marshal(v.IndexID, bs[n:])
	n += stringMUS[IndexStatus]{}.Marshal(v.IndexStatus, bs[n:])
	n += times.Marshal(v.IndexRequestedAt, bs[n:])
	n += times.Marshal(v.CreatedAt, bs[n:])
	n += times.Marshal(v.UpdatedAt, bs[n:])
	n += times.Marshal(v.ProcessedAt, bs[n:])
	return
}

func (documentMUS) Unmarshal(bs []byte) (v Document, n int, err error) {
	d := decoder{bs: bs}
	decode(&d, IDMUS, &v.ID)
	decode(&d, ord.String, &v.Title)
	decode(&d, ord.String, &v.Filename)
	decode(&d, ord.String, &v.StorageID)
	decode(&d, ord.String, &v.SourceURL)
	decode(&d, ord.String, &v.ContentHash)
	decode(&d, stringMUS[Source]{}, &v.Source)
	decode(&d, stringMUS[DocumentStatus]{}, &v.Status)
	decode(&d, ord.String, &v.ProcessingError)
	decode(&d, DocumentMetadataMUS, &v.Metadata)
	decode(&d, ord.Bool, &v.Approved)
	decode(&d, varint.Int, &v.PageCount)
	decode(&d, ord.String, &v.IndexID)
	decode(&d, stringMUS[IndexStatus]{}, &v.IndexStatus)
	decode(&d, times, &v.IndexRequestedAt)
	decode(&d, times, &v.CreatedAt)
	decode(&d, times, &v.UpdatedAt)
	decode(&d, times, &v.ProcessedAt)
	return v, d.n, d.err
}

func (documentMUS) Size(v Document) (size int) {
	return IDMUS.Size(v.ID) +
		ord.String.Size(v.Title) +
		ord.String.Size(v.Filename) +
		ord.String.Size(v.StorageID) +
		ord.String.Size(v.SourceURL) +
		ord.String.Size(v.ContentHash) +
		stringMUS[Source]{}.Size(v.Source) +
		stringMUS[DocumentStatus]{}.Size(v.Status) +
		ord.String.Size(v.ProcessingError) +
		DocumentMetadataMUS.Size(v.Metadata) +
		ord.Bool.Size(v.Approved) +
		varint.Int.Size(v.PageCount) +
		ord.String.Size(v.IndexID) +
		stringMUS[IndexStatus]{}.Size(v.IndexStatus) +
		times.Size(v.IndexRequestedAt) +
		times.Size(v.CreatedAt) +
		times.Size(v.UpdatedAt) +
		times.Size(v.ProcessedAt)
}

func (s documentMUS) Skip(bs []byte) (n int, err error) { return skip[Document](s, bs) }

type jobMetadataMUS struct{}

func (jobMetadataMUS) Marshal(v JobMetadata, bs []byte) (n int) {
	n = jobFields.Marshal(v.Fields, bs)
	n += rawMUS{}.Marshal(v.Diagnostics, bs[n:])
	return
}

func (jobMetadataMUS) Unmarshal(bs []byte) (v JobMetadata, n int, err error) {
	d := decoder{bs: bs}
	decode(&d, jobFields, &v.Fields)
	decode(&d, rawMUS{}, &v.Diagnostics)
	return v, d.n, d.err
}

func (jobMetadataMUS) Size(v JobMetadata) (size int) {
	return jobFields.Size(v.Fields) + rawMUS{}.Size(v.Diagnostics)
}

func (s jobMetadataMUS) Skip(bs []byte) (n int, err error) { return skip[JobMetadata](s, bs) }

type processingJobMUS struct{}

func (processingJobMUS) Marshal(v ProcessingJob, bs []byte) (n int) {
	n = IDMUS.Marshal(v.ID, bs)
	n += IDMUS.Marshal(v.DocumentID, bs[n:])
	n += stringMUS[JobStage]{}.Marshal(v.Stage, bs[n:])
	n += times.Marshal(v.StartedAt, bs[n:])
	n += times.Marshal(v.CompletedAt, bs[n:])
	n += ord.String.Marshal(v.Error, bs[n:])
	n += JobMetadataMUS.Marshal(v.Metadata, bs[n:])
	return
}

func (processingJobMUS) Unmarshal(bs []byte) (v ProcessingJob, n int, err error) {
	d := decoder{bs: bs}
	decode(&d, IDMUS, &v.ID)
	decode(&d, IDMUS, &v.DocumentID)
	decode(&d, stringMUS[JobStage]{}, &v.Stage)
	decode(&d, times, &v.StartedAt)
	decode(&d, times, &v.CompletedAt)
	decode(&d, ord.String, &v.Error)
	decode(&d, JobMetadataMUS, &v.Metadata)
	return v, d.n, d.err
}

func (processingJobMUS) Size(v ProcessingJob) (size int) {
	return IDMUS.Size(v.ID) +
		IDMUS.Size(v.DocumentID) +
		stringMUS[JobStage]{}.Size(v.Stage) +
		times.Size(v.StartedAt) +
		times.Size(v.CompletedAt) +
		ord.String.Size(v.Error) +
		JobMetadataMUS.Size(v.Metadata)
}

func (s processingJobMUS) Skip(bs []byte) (n int, err error) { return skip[ProcessingJob](s, bs) }

type reprocessingRequestMUS struct{}

func (reprocessingRequestMUS) Marshal(v ReprocessingRequest, bs []byte) (n int) {
	n = ord.String.Marshal(v.Handle, bs)
	n += IDMUS.Marshal(v.DocumentID, bs[n:])
	n += ord.Bool.Marshal(v.Force, bs[n:])
	n += stringMUS[RequestStatus]{}.Marshal(v.Status, bs[n:])
	n += times.Marshal(v.EnqueuedAt, bs[n:])
	n += times.Marshal(v.CompletedAt, bs[n:])
	n += ord.String.Marshal(v.Error, bs[n:])
	return
}

func (reprocessingRequestMUS) Unmarshal(bs []byte) (v ReprocessingRequest, n int, err error) {
	d := decoder{bs: bs}
	decode(&d, ord.String, &v.Handle)
	decode(&d, IDMUS, &v.DocumentID)
	decode(&d, ord.Bool, &v.Force)
	decode(&d, stringMUS[RequestStatus]{}, &v.Status)
	decode(&d, times, &v.EnqueuedAt)
	decode(&d, times, &v.CompletedAt)
	decode(&d, ord.String, &v.Error)
	return v, d.n, d.err
}

func (reprocessingRequestMUS) Size(v ReprocessingRequest) (size int) {
	return ord.String.Size(v.Handle) +
		IDMUS.Size(v.DocumentID) +
		ord.Bool.Size(v.Force) +
		stringMUS[RequestStatus]{}.Size(v.Status) +
		times.Size(v.EnqueuedAt) +
		times.Size(v.CompletedAt) +
		ord.String.Size(v.Error)
}

func (s reprocessingRequestMUS) Skip(bs []byte) (n int, err error) {
	return skip[ReprocessingRequest](s, bs)
}

type checkpointMUS struct{}

func (checkpointMUS) Marshal(v Checkpoint, bs []byte) (n int) {
	n = ord.String.Marshal(v.ProcessorType, bs)
	n += IDMUS.Marshal(v.LastID, bs[n:])
	n += times.Marshal(v.UpdatedAt, bs[n:])
	return
}

func (checkpointMUS) Unmarshal(bs []byte) (v Checkpoint, n int, err error) {
	d := decoder{bs: bs}
	decode(&d, ord.String, &v.ProcessorType)
	decode(&d, IDMUS, &v.LastID)
	decode(&d, times, &v.UpdatedAt)
	return v, d.n, d.err
}

func (checkpointMUS) Size(v Checkpoint) (size int) {
	return ord.String.Size(v.ProcessorType) + IDMUS.Size(v.LastID) + times.Size(v.UpdatedAt)
}

func (s checkpointMUS) Skip(bs []byte) (n int, err error) { return skip[Checkpoint](s, bs) }

type indexedChunkMUS struct{}

func (indexedChunkMUS) Marshal(v IndexedChunk, bs []byte) (n int) {
	n = ord.String.Marshal(v.Text, bs)
	n += vectors.Marshal(v.Vector, bs[n:])
	return
}

func (indexedChunkMUS) Unmarshal(bs []byte) (v IndexedChunk, n int, err error) {
	d := decoder{bs: bs}
	decode(&d, ord.String, &v.Text)
	decode(&d, vectors, &v.Vector)
	return v, d.n, d.err
}

func (indexedChunkMUS) Size(v IndexedChunk) (size int) {
	return ord.String.Size(v.Text) + vectors.Size(v.Vector)
}

type indexEntryMUS struct{}

func (indexEntryMUS) Marshal(v IndexEntry, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += IDMUS.Marshal(v.DocumentID, bs[n:])
	n += chunkList.Marshal(v.Chunks, bs[n:])
	n += labels.Marshal(v.Metadata, bs[n:])
	n += stringMUS[IndexStatus]{}.Marshal(v.Status, bs[n:])
	n += ord.String.Marshal(v.Error, bs[n:])
	n += times.Marshal(v.CreatedAt, bs[n:])
	return
}

func (indexEntryMUS) Unmarshal(bs []byte) (v IndexEntry, n int, err error) {
	d := decoder{bs: bs}
	decode(&d, ord.String, &v.ID)
	decode(&d, IDMUS, &v.DocumentID)
	decode(&d, chunkList, &v.Chunks)
	decode(&d, labels, &v.Metadata)
	decode(&d, stringMUS[IndexStatus]{}, &v.Status)
	decode(&d, ord.String, &v.Error)
	decode(&d, times, &v.CreatedAt)
	return v, d.n, d.err
}

func (indexEntryMUS) Size(v IndexEntry) (size int) {
	return ord.String.Size(v.ID) +
		IDMUS.Size(v.DocumentID) +
		chunkList.Size(v.Chunks) +
		labels.Size(v.Metadata) +
		stringMUS[IndexStatus]{}.Size(v.Status) +
		ord.String.Size(v.Error) +
		times.Size(v.CreatedAt)
}

func (s indexEntryMUS) Skip(bs []byte) (n int, err error) { return skip[IndexEntry](s, bs) }
