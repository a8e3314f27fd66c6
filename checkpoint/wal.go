// Package checkpoint implements the write-ahead log and manifest
// recovery protocol a Runtime uses to make its step sequence durable
// (spec §4.8): every epoch is bracketed by BeginEpoch/EndEpoch
// records, each record is CRC32-checked and length-prefixed, and
// recovery tolerates a partially written trailing record left by a
// crash mid-write by truncating it rather than failing the whole log.
package checkpoint

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/nelknet/dbsp/dbsperr"
)

// RecordKind tags what a WAL record carries.
type RecordKind uint8

const (
	RecordBeginEpoch RecordKind = iota + 1
	RecordData
	RecordEndEpoch
)

// Record is one length-prefixed, checksummed WAL entry.
type Record struct {
	Kind    RecordKind
	Epoch   uint64
	Payload []byte
}

// wire layout: [kind:1][epoch:8][len:4][payload:len][crc32:4]
// crc32 covers kind+epoch+len+payload, so truncation or bit flips
// anywhere in the record are caught without a separate record-count
// field.
const headerSize = 1 + 8 + 4
const trailerSize = 4

// Writer appends records to an underlying io.Writer, flushing after
// every record so a crash never loses more than the in-flight write.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteRecord appends r and flushes.
func (wr *Writer) WriteRecord(r Record) error {
	buf := make([]byte, headerSize+len(r.Payload)+trailerSize)
	buf[0] = byte(r.Kind)
	binary.BigEndian.PutUint64(buf[1:9], r.Epoch)
	binary.BigEndian.PutUint32(buf[9:13], uint32(len(r.Payload)))
	copy(buf[headerSize:], r.Payload)
	sum := crc32.ChecksumIEEE(buf[:headerSize+len(r.Payload)])
	binary.BigEndian.PutUint32(buf[headerSize+len(r.Payload):], sum)
	if _, err := wr.w.Write(buf); err != nil {
		return dbsperr.New("checkpoint.wal.write", dbsperr.StorageIO, err)
	}
	if err := wr.w.Flush(); err != nil {
		return dbsperr.New("checkpoint.wal.flush", dbsperr.StorageIO, err)
	}
	return nil
}

// Reader reads records back from an underlying io.Reader.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ErrTruncated is returned by ReadRecord when the stream ends mid-record
// (a crash during the write of that record); it is not itself a fatal
// condition, see Recover.
var ErrTruncated = dbsperr.New("checkpoint.wal.read", dbsperr.Serialization, io.ErrUnexpectedEOF)

// ReadRecord reads one record, or io.EOF at a clean boundary, or
// ErrTruncated if fewer than a full record's bytes remain.
func (rd *Reader) ReadRecord() (Record, error) {
	header := make([]byte, headerSize)
	n, err := io.ReadFull(rd.r, header)
	if err == io.EOF && n == 0 {
		return Record{}, io.EOF
	}
	if err != nil {
		return Record{}, ErrTruncated
	}
	payloadLen := binary.BigEndian.Uint32(header[9:13])
	body := make([]byte, int(payloadLen)+trailerSize)
	if _, err := io.ReadFull(rd.r, body); err != nil {
		return Record{}, ErrTruncated
	}
	payload := body[:payloadLen]
	wantCrc := binary.BigEndian.Uint32(body[payloadLen:])
	gotCrc := crc32.ChecksumIEEE(append(append([]byte{}, header...), payload...))
	if gotCrc != wantCrc {
		return Record{}, dbsperr.New("checkpoint.wal.read", dbsperr.CrcMismatch, nil)
	}
	return Record{
		Kind:    RecordKind(header[0]),
		Epoch:   binary.BigEndian.Uint64(header[1:9]),
		Payload: payload,
	}, nil
}

// ReadAll reads every well-formed record up to the first truncated or
// corrupt one, which it treats as the crash boundary rather than an
// error: recovery replays everything before that point and discards
// the rest, per spec §4.8's truncate-on-recovery rule.
func ReadAll(r io.Reader) ([]Record, error) {
	rd := NewReader(r)
	var records []Record
	for {
		rec, err := rd.ReadRecord()
		if err == io.EOF {
			return records, nil
		}
		if err == ErrTruncated || dbsperr.Is(err, dbsperr.CrcMismatch) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}
