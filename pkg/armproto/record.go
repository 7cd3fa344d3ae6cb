// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package armproto

import (
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Record is one committed position with the time it was applied
type Record struct {
	Time   time.Time
	Angles JointAngles
}

// wireRecord is the CBOR layout of a Record: {0: unix_ns, 1: [b, s, e, c]}
type wireRecord struct {
	UnixNano int64    `cbor:"0,keyasint"`
	Angles   [4]uint8 `cbor:"1,keyasint"`
}

func (r Record) toWire() wireRecord {
	return wireRecord{UnixNano: r.Time.UnixNano(), Angles: r.Angles.Payload()}
}

func (w wireRecord) toRecord() Record {
	return Record{Time: time.Unix(0, w.UnixNano), Angles: AnglesFromPayload(w.Angles)}
}

// MarshalRecord encodes a single record as CBOR
func MarshalRecord(r Record) ([]byte, error) {
	data, err := cbor.Marshal(r.toWire())
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return data, nil
}

// UnmarshalRecord decodes a single CBOR record
func UnmarshalRecord(data []byte) (Record, error) {
	var w wireRecord
	if err := cbor.Unmarshal(data, &w); err != nil {
		return Record{}, fmt.Errorf("failed to decode record: %w", err)
	}
	return w.toRecord(), nil
}

// RecordWriter writes records as a CBOR sequence
type RecordWriter struct {
	enc *cbor.Encoder
}

// NewRecordWriter creates a RecordWriter on w
func NewRecordWriter(w io.Writer) *RecordWriter {
	return &RecordWriter{enc: cbor.NewEncoder(w)}
}

// Write appends one record to the sequence
func (rw *RecordWriter) Write(r Record) error {
	if err := rw.enc.Encode(r.toWire()); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// RecordReader reads records from a CBOR sequence
type RecordReader struct {
	dec *cbor.Decoder
}

// NewRecordReader creates a RecordReader on r
func NewRecordReader(r io.Reader) *RecordReader {
	return &RecordReader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the sequence
func (rr *RecordReader) Next() (Record, error) {
	var w wireRecord
	if err := rr.dec.Decode(&w); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("failed to read record: %w", err)
	}
	return w.toRecord(), nil
}
