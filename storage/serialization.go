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
	"encoding/binary"
	"fmt"

	"github.com/poiesic/docpipe/core"
)

// MarshalID serializes an ID to 8 big-endian bytes so encoded IDs sort numerically.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	if len(data) < 8 {
		return 0, fmt.Errorf("%w: id needs 8 bytes, got %d", ErrTruncatedData, len(data))
	}
	return core.ID(binary.BigEndian.Uint64(data)), nil
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) ([]byte, error) {
	return marshal(core.DocumentMUS, *doc), nil
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	return unmarshal(core.DocumentMUS, data)
}

// MarshalJob serializes a ProcessingJob to bytes.
func MarshalJob(job *core.ProcessingJob) ([]byte, error) {
	return marshal(core.ProcessingJobMUS, *job), nil
}

// UnmarshalJob deserializes a ProcessingJob from bytes.
func UnmarshalJob(data []byte) (*core.ProcessingJob, error) {
	return unmarshal(core.ProcessingJobMUS, data)
}

// MarshalRequest serializes a ReprocessingRequest to bytes.
func MarshalRequest(req *core.ReprocessingRequest) ([]byte, error) {
	return marshal(core.ReprocessingRequestMUS, *req), nil
}

// UnmarshalRequest deserializes a ReprocessingRequest from bytes.
func UnmarshalRequest(data []byte) (*core.ReprocessingRequest, error) {
	return unmarshal(core.ReprocessingRequestMUS, data)
}

// MarshalCheckpoint serializes a Checkpoint to bytes.
func MarshalCheckpoint(checkpoint *core.Checkpoint) ([]byte, error) {
	return marshal(core.CheckpointMUS, *checkpoint), nil
}

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	return unmarshal(core.CheckpointMUS, data)
}

// MarshalIndexEntry serializes an IndexEntry to bytes.
func MarshalIndexEntry(entry *core.IndexEntry) ([]byte, error) {
	return marshal(core.IndexEntryMUS, *entry), nil
}

// UnmarshalIndexEntry deserializes an IndexEntry from bytes.
func UnmarshalIndexEntry(data []byte) (*core.IndexEntry, error) {
	return unmarshal(core.IndexEntryMUS, data)
}

type sizedMarshaller[T any] interface {
	Marshal(v T, bs []byte) (n int)
	Size(v T) (size int)
}

type unmarshaller[T any] interface {
	Unmarshal(bs []byte) (v T, n int, err error)
}

func marshal[T any](s sizedMarshaller[T], v T) []byte {
	buf := make([]byte, s.Size(v))
	s.Marshal(v, buf)
	return buf
}

// unmarshal decodes a whole record; trailing bytes are treated as corruption.
func unmarshal[T any](s unmarshaller[T], data []byte) (*T, error) {
	v, n, err := s.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrSerializationFailed, len(data)-n)
	}
	return &v, nil
}
