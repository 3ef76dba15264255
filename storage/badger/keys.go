package badger

import (
	"encoding/binary"

	"github.com/poiesic/docpipe/core"
)

// Key prefixes for different data types.
// Every prefix ends in ':' so that no prefix is a prefix of another.
const (
	documentPrefix      = "doc:"
	documentHashPrefix  = "dochash:"
	documentTextPrefix  = "doctext:"
	documentIndexPrefix = "docidx:"
	documentIDSeq       = "docseq"
	jobPrefix           = "job:"
	jobDocumentPrefix   = "jobdoc:"
	jobStagePrefix      = "jobstg:"
	jobIDSeq            = "jobseq"
	requestPrefix       = "req:"
	requestDocPrefix    = "reqdoc:"
	checkpointPrefix    = "chkpt:"
	indexEntryPrefix    = "idx:"
)

// appendID appends id in BigEndian order so lexicographic sort matches numeric order.
func appendID(buf []byte, id core.ID) []byte {
	return binary.BigEndian.AppendUint64(buf, uint64(id))
}

// makeDocumentKey generates a key for a document by ID.
// Format: prefix + id
func makeDocumentKey(id core.ID) []byte {
	return appendID([]byte(documentPrefix), id)
}

// documentIDFromKey extracts the ID from a document key.
func documentIDFromKey(key []byte) core.ID {
	return core.ID(binary.BigEndian.Uint64(key[len(documentPrefix):]))
}

// makeDocumentHashKey generates the unique content hash index key.
func makeDocumentHashKey(hash string) []byte {
	return []byte(documentHashPrefix + hash)
}

// makeDocumentTextKey generates the extracted text cache key.
func makeDocumentTextKey(id core.ID) []byte {
	return appendID([]byte(documentTextPrefix), id)
}

// makeDocumentIndexStatusKey generates a composite key for the index status index.
// Format: prefix + status + ':' + id
func makeDocumentIndexStatusKey(status core.IndexStatus, id core.ID) []byte {
	return appendID(makePartialDocumentIndexStatusKey(status), id)
}

// makePartialDocumentIndexStatusKey generates a partial key for index status scans.
func makePartialDocumentIndexStatusKey(status core.IndexStatus) []byte {
	return []byte(documentIndexPrefix + string(status) + ":")
}

// makeJobKey generates a key for a job by ID.
func makeJobKey(id core.ID) []byte {
	return appendID([]byte(jobPrefix), id)
}

// makeJobDocumentKey generates a composite key for the job-by-document index.
// Format: prefix + documentID + jobID
func makeJobDocumentKey(documentID, jobID core.ID) []byte {
	return appendID(makePartialJobDocumentKey(documentID), jobID)
}

// makePartialJobDocumentKey generates a partial key for job-by-document scans.
func makePartialJobDocumentKey(documentID core.ID) []byte {
	return appendID([]byte(jobDocumentPrefix), documentID)
}

// makeJobStageKey generates a composite key for the job stage index.
// Format: prefix + stage + ':' + jobID
func makeJobStageKey(stage core.JobStage, jobID core.ID) []byte {
	return appendID(makePartialJobStageKey(stage), jobID)
}

// makePartialJobStageKey generates a partial key for job stage scans.
func makePartialJobStageKey(stage core.JobStage) []byte {
	return []byte(jobStagePrefix + string(stage) + ":")
}

// makeRequestKey generates a key for a reprocessing request by handle.
func makeRequestKey(handle string) []byte {
	return []byte(requestPrefix + handle)
}

// makeRequestDocumentKey generates a composite key for the request-by-document index.
// Format: prefix + documentID + handle
func makeRequestDocumentKey(documentID core.ID, handle string) []byte {
	return append(makePartialRequestDocumentKey(documentID), handle...)
}

// makePartialRequestDocumentKey generates a partial key for request-by-document scans.
func makePartialRequestDocumentKey(documentID core.ID) []byte {
	return appendID([]byte(requestDocPrefix), documentID)
}

// makeCheckpointKey generates a key for bulk operation checkpoints.
func makeCheckpointKey(processorType string) []byte {
	return []byte(checkpointPrefix + processorType)
}

// makeIndexEntryKey generates a key for a local index entry.
func makeIndexEntryKey(id string) []byte {
	return []byte(indexEntryPrefix + id)
}
