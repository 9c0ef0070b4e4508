package usecase

import (
	"fmt"

	"replay-proxy/internal/domain"
)

// Flag bits, packed in the fixed order recorded, forwarded, replayed, cache-miss.
const (
	flagMiss     uint8 = 1 << iota // 0001
	flagReplayed                   // 0010
	flagForwarded                  // 0100
	flagRecorded                   // 1000
)

// Outcome is the classification of one request context.
type Outcome struct {
	Bits    uint8
	Buckets []domain.Bucket
	Line    string
	Rec     bool
	Fwd     bool
	Rpl     bool
	Miss    bool
	// Mapped is false when the bit pattern had no entry and fell back to miss.
	Mapped bool
}

// FlagString renders the bits as four characters, e.g. "1100".
func (o Outcome) FlagString() string { return fmt.Sprintf("%04b", o.Bits) }

type outcomeRule struct {
	buckets []domain.Bucket
	format  string
	rec     bool
	fwd     bool
	rpl     bool
	miss    bool
}

var outcomeTable = [16]*outcomeRule{
	flagRecorded | flagForwarded: {
		buckets: []domain.Bucket{domain.BucketRecorded},
		format:  "Request on %s recorded and forwarded",
		rec:     true, fwd: true,
	},
	flagRecorded | flagReplayed: {
		buckets: []domain.Bucket{domain.BucketRecorded, domain.BucketReplayed},
		format:  "Request on %s replayed and re-recorded",
		rec:     true, rpl: true,
	},
	flagForwarded: {
		buckets: []domain.Bucket{domain.BucketForwarded},
		format:  "Request on %s forwarded",
		fwd:     true,
	},
	flagReplayed: {
		buckets: []domain.Bucket{domain.BucketReplayed},
		format:  "Request on %s replayed",
		rpl:     true,
	},
	flagMiss: {
		buckets: []domain.Bucket{domain.BucketMiss},
		format:  "Request on endpoint '%s' missed, no response found",
		miss:    true,
	},
}

func packFlags(rc *RequestContext) uint8 {
	var bits uint8
	if rc.FlagRecorded {
		bits |= flagRecorded
	}
	if rc.FlagForwarded {
		bits |= flagForwarded
	}
	if rc.FlagReplayed {
		bits |= flagReplayed
	}
	if rc.FlagCacheMiss {
		bits |= flagMiss
	}
	return bits
}

// Classify maps the four flags of rc onto exactly one outcome. It is total:
// combinations without a rule, 1111 included, land in the miss bucket.
func Classify(rc *RequestContext) Outcome {
	bits := packFlags(rc)
	rule := outcomeTable[bits]
	if rule == nil {
		return Outcome{
			Bits:    bits,
			Buckets: []domain.Bucket{domain.BucketMiss},
			Line:    fmt.Sprintf("Request on endpoint '%s' missed", rc.Endpoint.Key),
			Miss:    true,
		}
	}
	return Outcome{
		Bits:    bits,
		Buckets: rule.buckets,
		Line:    fmt.Sprintf(rule.format, rc.Endpoint.Key),
		Rec:     rule.rec,
		Fwd:     rule.fwd,
		Rpl:     rule.rpl,
		Miss:    rule.miss,
		Mapped:  true,
	}
}
