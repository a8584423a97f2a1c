// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"encoding/binary"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/cwship/lib/logevent"
)

type fingerprint [32]byte

// batchDomainKey separates batch fingerprints from any other BLAKE3
// use of the same bytes.
var batchDomainKey = [32]byte{
	'c', 'w', 's', 'h', 'i', 'p', '.', 'm', 'e', 'm', 'o', 'r', 'y', '.',
	'b', 'a', 't', 'c', 'h', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// fingerprintBatch hashes the token and every record's timestamp and
// length-prefixed payload.
func fingerprintBatch(token string, records []logevent.Record) fingerprint {
	hasher, err := blake3.NewKeyed(batchDomainKey[:])
	if err != nil {
		panic("memory: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], uint64(len(token)))
	hasher.Write(scratch[:])
	hasher.Write([]byte(token))
	for _, record := range records {
		binary.BigEndian.PutUint64(scratch[:], uint64(record.Timestamp))
		hasher.Write(scratch[:])
		binary.BigEndian.PutUint64(scratch[:], uint64(len(record.Payload)))
		hasher.Write(scratch[:])
		hasher.Write(record.Payload)
	}
	var sum fingerprint
	copy(sum[:], hasher.Sum(nil))
	return sum
}
